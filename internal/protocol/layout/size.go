package layout

import (
	"fmt"
	"math"

	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/danmuck/xwire/internal/protocol/wire"
)

// ConstantSize reports the encoded size, header and padding included, when it
// is the same for every value.
func (p *Plan) ConstantSize() (int, bool) {
	return p.constant, p.isConstant
}

// Size returns the exact number of bytes Encode(v) produces. It walks the
// same steps as the writer without writing.
func (p *Plan) Size(v any) (int, error) {
	if p.isConstant {
		return p.constant, nil
	}
	content, err := p.walk(nil, v, 0)
	if err != nil {
		return 0, err
	}
	return p.finish(content)
}

// finish turns a content byte count into the total message size.
func (p *Plan) finish(content int) (int, error) {
	switch p.def.Role.Kind {
	case schema.RoleRequest:
		total := content + wire.Pad(content)
		if total/4 > math.MaxUint16 {
			return 0, fmt.Errorf("%w: %s of %d bytes exceeds the request length field", wire.ErrLengthOverflow, p.def.Name, total)
		}
		return total, nil
	case schema.RoleReply:
		total := max(content+wire.Pad(content), ReplyMinSize)
		if uint64((total-ReplyMinSize)/4) > math.MaxUint32 {
			return 0, fmt.Errorf("%w: %s of %d bytes exceeds the reply length field", wire.ErrLengthOverflow, p.def.Name, total)
		}
		return total, nil
	case schema.RoleEvent:
		return content + wire.Pad(content), nil
	}
	return content, nil
}
