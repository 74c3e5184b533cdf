package layout

import (
	"fmt"
	"math"

	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/danmuck/xwire/internal/protocol/wire"
)

// Decode decodes one value from the start of b. Bytes after the message are
// ignored.
func (p *Plan) Decode(b []byte) (any, error) {
	return p.DecodeFrom(wire.NewReader(b))
}

// DecodeFrom decodes one value from r in a single left-to-right pass. Any
// failure aborts the whole decode and is returned unchanged.
func (p *Plan) DecodeFrom(r *wire.Reader) (any, error) {
	if p.variants != nil {
		return p.readVariant(r)
	}
	start := r.Offset()
	s := newScope(p.def.Name, &p.body, Fields{})
	declared, err := p.readHeader(r, s)
	if err != nil {
		return nil, err
	}
	s.offset = p.header
	if err := s.readBody(r); err != nil {
		return nil, err
	}
	if err := p.readTrailer(r, r.Offset()-start, declared); err != nil {
		return nil, err
	}
	return s.result(), nil
}

func (p *Plan) readVariant(r *wire.Reader) (any, error) {
	tag, err := r.U8()
	if err != nil {
		return nil, err
	}
	vp, ok := p.byTag[tag]
	if !ok {
		return nil, &wire.UnrecognizedDiscriminantError{Type: p.def.Name, Discriminant: tag}
	}
	s := newScope(p.def.Name, &vp.block, Fields{})
	s.offset = 1
	if err := s.readBody(r); err != nil {
		return nil, err
	}
	return Variant{Name: vp.name, Fields: s.result()}, nil
}

// readHeader consumes the role header and returns the total size declared by
// its length field, or -1 when the role has none.
func (p *Plan) readHeader(r *wire.Reader, s *scope) (int, error) {
	role := p.def.Role
	switch role.Kind {
	case schema.RoleRequest:
		op, err := r.U8()
		if err != nil {
			return 0, err
		}
		if op != role.Major {
			return 0, fmt.Errorf("%w: %s expects major opcode %d, got %d", ErrOpcodeMismatch, p.def.Name, role.Major, op)
		}
		if err := p.readMetabyte(r, s); err != nil {
			return 0, err
		}
		units, err := r.U16()
		if err != nil {
			return 0, err
		}
		return int(units) * 4, nil
	case schema.RoleReply:
		marker, err := r.U8()
		if err != nil {
			return 0, err
		}
		if marker != replyMarker {
			return 0, fmt.Errorf("%w: %s expects reply marker, got %d", ErrOpcodeMismatch, p.def.Name, marker)
		}
		if err := p.readMetabyte(r, s); err != nil {
			return 0, err
		}
		if err := s.read(r, p.sequence); err != nil {
			return 0, err
		}
		units, err := r.U32()
		if err != nil {
			return 0, err
		}
		return ReplyMinSize + int(units)*4, nil
	case schema.RoleEvent:
		code, err := r.U8()
		if err != nil {
			return 0, err
		}
		if code&0x7f != role.Code {
			return 0, fmt.Errorf("%w: %s expects event code %d, got %d", ErrOpcodeMismatch, p.def.Name, role.Code, code&0x7f)
		}
		if p.sequence == nil {
			return -1, nil
		}
		if err := p.readMetabyte(r, s); err != nil {
			return 0, err
		}
		if err := s.read(r, p.sequence); err != nil {
			return 0, err
		}
	}
	return -1, nil
}

func (p *Plan) readMetabyte(r *wire.Reader, s *scope) error {
	switch {
	case p.def.Role.HasMinor:
		minor, err := r.U8()
		if err != nil {
			return err
		}
		if minor != p.def.Role.Minor {
			return fmt.Errorf("%w: %s expects minor opcode %d, got %d", ErrOpcodeMismatch, p.def.Name, p.def.Role.Minor, minor)
		}
		return nil
	case p.metabyte != nil:
		return s.read(r, p.metabyte)
	default:
		return r.Skip(1)
	}
}

// readTrailer checks the length field against the consumed bytes and skips
// the trailing padding.
func (p *Plan) readTrailer(r *wire.Reader, consumed, declared int) error {
	switch p.def.Role.Kind {
	case schema.RoleRequest:
		want, err := p.finish(consumed)
		if err != nil || want != declared {
			return fmt.Errorf("%w: %s declares %d bytes, items need %d", ErrLengthMismatch, p.def.Name, declared, want)
		}
		return r.Skip(declared - consumed)
	case schema.RoleReply:
		if declared < consumed {
			return fmt.Errorf("%w: %s declares %d bytes, items consumed %d", ErrLengthMismatch, p.def.Name, declared, consumed)
		}
		return r.Skip(declared - consumed)
	case schema.RoleEvent:
		return r.Skip(wire.Pad(consumed))
	}
	return nil
}

func (s *scope) readBody(r *wire.Reader) error {
	for _, st := range s.blk.steps {
		if st.header {
			continue
		}
		start := r.Offset()
		if err := s.read(r, st); err != nil {
			return err
		}
		s.offset += r.Offset() - start
	}
	return nil
}

// read decodes one step into the scope's bindings.
func (s *scope) read(r *wire.Reader, st *step) error {
	start := r.Offset()
	switch st.kind {
	case schema.ItemField:
		var (
			v   any
			err error
		)
		if ct, ok := st.typ.(ContextualType); ok {
			var n int64
			n, err = schema.Eval(st.item.Context, s)
			if err != nil {
				return err
			}
			switch {
			case n < 0:
				return fmt.Errorf("%w: %s.%s count %d", ErrNegativeCount, s.def, st.name, n)
			case n > math.MaxUint32:
				return fmt.Errorf("%w: %s.%s count %d", ErrCountRange, s.def, st.name, n)
			}
			v, err = ct.ReadWith(r, int(n))
		} else {
			v, err = st.typ.(ReadableType).Read(r)
		}
		if err != nil {
			return err
		}
		s.values[st.name] = v
	case schema.ItemLet:
		it := st.typ.(integerType)
		v, err := it.Read(r)
		if err != nil {
			return err
		}
		n, _ := it.toInt(v)
		s.lets[st.name] = n
	default:
		n, err := s.unusedCount(st)
		if err != nil {
			return err
		}
		return r.Skip(n)
	}
	s.sizes[st.name] = r.Offset() - start
	return nil
}
