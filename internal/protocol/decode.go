package protocol

import (
	"encoding/binary"
	"fmt"
	"slices"
	"time"

	"github.com/danmuck/xwire/internal/protocol/frame"
	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/danmuck/xwire/internal/protocol/wire"
)

// Decode decodes b as the named definition.
func (c *Catalog) Decode(name string, b []byte) (any, error) {
	start := time.Now()
	p, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	v, err := p.Decode(b)
	c.observe("decode", name, len(b), start, err)
	return v, err
}

// DecodeRequest picks the request definition from the major opcode, and from
// the minor opcode for extension requests.
func (c *Catalog) DecodeRequest(b []byte) (Message, error) {
	if len(b) < 2 {
		return Message{}, wire.ErrShortRead
	}
	key := opcodeKey{major: b[0], minor: -1}
	if c.withMinor[b[0]] {
		key.minor = int(b[1])
	}
	p, ok := c.requests[key]
	if !ok {
		return Message{}, fmt.Errorf("%w: major=%d minor=%d", ErrUnknownRequest, key.major, key.minor)
	}
	v, err := c.Decode(p.Name(), b)
	if err != nil {
		return Message{}, err
	}
	return Message{Name: p.Name(), Value: v}, nil
}

// DecodeEvent picks the event definition from the code with the synthetic
// bit cleared.
func (c *Catalog) DecodeEvent(b []byte) (Event, error) {
	if len(b) < 1 {
		return Event{}, wire.ErrShortRead
	}
	code := b[0] &^ SyntheticBit
	p, ok := c.events[code]
	if !ok {
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownEvent, code)
	}
	v, err := c.Decode(p.Name(), b)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: p.Name(), Synthetic: b[0]&SyntheticBit != 0, Value: v}, nil
}

// DecodeReply decodes b as the reply of request. The connection layer supplies
// request by matching the reply's sequence number.
func (c *Catalog) DecodeReply(request string, b []byte) (Message, error) {
	if request == "" {
		return Message{}, ErrNoTypeHint
	}
	p, err := c.lookupRole(request, schema.RoleRequest)
	if err != nil {
		return Message{}, err
	}
	reply := p.Role().Reply
	if reply == "" {
		return Message{}, fmt.Errorf("%w: %s", ErrNoReply, request)
	}
	v, err := c.Decode(reply, b)
	if err != nil {
		return Message{}, err
	}
	return Message{Name: reply, Value: v}, nil
}

// DecodeError decodes a 32-byte error packet produced by request. Alloc,
// Implementation and Length are accepted for every request; any other code
// must name an error in the request's error set.
func (c *Catalog) DecodeError(request string, b []byte) (*RequestError, error) {
	start := time.Now()
	re, err := c.decodeError(request, b)
	c.observe("decode", "error", len(b), start, err)
	return re, err
}

func (c *Catalog) decodeError(request string, b []byte) (*RequestError, error) {
	if request == "" {
		return nil, ErrNoTypeHint
	}
	p, err := c.lookupRole(request, schema.RoleRequest)
	if err != nil {
		return nil, err
	}
	r := wire.NewReader(b)
	marker, err := r.U8()
	if err != nil {
		return nil, err
	}
	if marker != 0 {
		return nil, fmt.Errorf("%w: first byte %d", ErrNotError, marker)
	}
	re := &RequestError{Request: request}
	if re.Code, err = r.U8(); err != nil {
		return nil, err
	}
	if re.Sequence, err = r.U16(); err != nil {
		return nil, err
	}
	if re.BadValue, err = r.U32(); err != nil {
		return nil, err
	}
	if re.Minor, err = r.U16(); err != nil {
		return nil, err
	}
	if re.Major, err = r.U8(); err != nil {
		return nil, err
	}
	if err := r.Skip(ErrorPacketSize - 11); err != nil {
		return nil, err
	}
	if re.Major != p.Role().Major {
		return nil, fmt.Errorf("%w: %s is major opcode %d, error names %d", ErrOpcodeMismatch, request, p.Role().Major, re.Major)
	}
	if role := p.Role(); role.HasMinor && re.Minor != uint16(role.Minor) {
		return nil, fmt.Errorf("%w: %s is minor opcode %d, error names %d", ErrOpcodeMismatch, request, role.Minor, re.Minor)
	}

	switch re.Code {
	case CodeAlloc:
		re.Kind = ErrorAlloc
	case CodeImplementation:
		re.Kind = ErrorImplementation
	case CodeLength:
		re.Kind = ErrorLength
	default:
		name, ok := c.errorNames[re.Code]
		if !ok || !slices.Contains(p.Role().Errors, name) {
			return nil, fmt.Errorf("%w: %s got code %d", ErrUnexpectedError, request, re.Code)
		}
		re.Kind = ErrorOther
		re.Other = name
	}
	return re, nil
}

// DecodeServerPacket decodes one reply, event or error. hint names the request
// a reply or error answers and is ignored for events.
func (c *Catalog) DecodeServerPacket(b []byte, hint string) (ServerMessage, error) {
	if len(b) < 1 {
		return ServerMessage{}, wire.ErrShortRead
	}
	out := ServerMessage{Kind: frame.KindOf(b[0])}
	switch out.Kind {
	case frame.KindError:
		re, err := c.DecodeError(hint, b)
		if err != nil {
			return ServerMessage{}, err
		}
		out.Name = re.Name()
		out.Sequence = re.Sequence
		out.Err = re
	case frame.KindReply:
		msg, err := c.DecodeReply(hint, b)
		if err != nil {
			return ServerMessage{}, err
		}
		out.Name = msg.Name
		out.Value = msg.Value
		out.Sequence = binary.BigEndian.Uint16(b[2:4])
	default:
		ev, err := c.DecodeEvent(b)
		if err != nil {
			return ServerMessage{}, err
		}
		out.Name = ev.Name
		out.Value = ev.Value
		out.Synthetic = ev.Synthetic
		if p, ok := c.set.Plan(ev.Name); ok && schema.SequenceItem(p.Definition().Items) != nil {
			out.Sequence = binary.BigEndian.Uint16(b[2:4])
		}
	}
	return out, nil
}
