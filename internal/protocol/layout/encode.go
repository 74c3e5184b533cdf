package layout

import (
	"fmt"

	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/danmuck/xwire/internal/protocol/wire"
)

// Encode returns the encoding of v in a new buffer of exactly Size(v) bytes.
func (p *Plan) Encode(v any) ([]byte, error) {
	n, err := p.Size(v)
	if err != nil {
		return nil, err
	}
	w := wire.NewWriter(n)
	if err := p.EncodeTo(w, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeTo appends the encoding of v to w. On failure w is truncated back to
// its starting length.
func (p *Plan) EncodeTo(w *wire.Writer, v any) (err error) {
	start := w.Len()
	defer func() {
		if err != nil {
			w.Truncate(start)
		}
	}()

	total, err := p.Size(v)
	if err != nil {
		return err
	}
	content, err := p.walk(w, v, total)
	if err != nil {
		return err
	}
	w.PutZeros(total - content)
	if written := w.Len() - start; written != total {
		return fmt.Errorf("%w: %s wrote %d of %d bytes", ErrSizeMismatch, p.def.Name, written, total)
	}
	return nil
}

// walk runs the step program over v and returns the content byte count,
// header included. A nil w measures without writing; total is only read when
// writing.
func (p *Plan) walk(w *wire.Writer, v any, total int) (int, error) {
	if p.variants != nil {
		return p.walkVariant(w, v)
	}
	fields, err := p.fieldsOf(v)
	if err != nil {
		return 0, err
	}
	s := newScope(p.def.Name, &p.body, fields)
	if err := s.computeLets(); err != nil {
		return 0, err
	}
	if err := p.emitHeader(w, s, total); err != nil {
		return 0, err
	}
	s.offset = p.header
	if err := s.emitBody(w); err != nil {
		return 0, err
	}
	return s.offset, nil
}

func (p *Plan) walkVariant(w *wire.Writer, v any) (int, error) {
	var vv Variant
	switch x := v.(type) {
	case Variant:
		vv = x
	case *Variant:
		if x == nil {
			return 0, mismatch(p.def.Name, v)
		}
		vv = *x
	default:
		return 0, &ValueError{Definition: p.def.Name, Want: "variant", Got: v}
	}
	vp, ok := p.byName[vv.Name]
	if !ok {
		return 0, &ValueError{Definition: p.def.Name, Reason: fmt.Sprintf("unknown variant %q", vv.Name)}
	}
	put8(w, vp.tag)
	s := newScope(p.def.Name, &vp.block, vv.Fields)
	if err := s.computeLets(); err != nil {
		return 0, err
	}
	s.offset = 1
	if err := s.emitBody(w); err != nil {
		return 0, err
	}
	return s.offset, nil
}

func (p *Plan) fieldsOf(v any) (Fields, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Fields:
		return x, nil
	case map[string]any:
		return Fields(x), nil
	}
	return nil, &ValueError{Definition: p.def.Name, Want: "fields", Got: v}
}

func (p *Plan) emitHeader(w *wire.Writer, s *scope, total int) error {
	role := p.def.Role
	switch role.Kind {
	case schema.RoleRequest:
		put8(w, role.Major)
		if err := p.emitMetabyte(w, s); err != nil {
			return err
		}
		if w != nil {
			w.PutU16(uint16(total / 4))
		}
	case schema.RoleReply:
		put8(w, replyMarker)
		if err := p.emitMetabyte(w, s); err != nil {
			return err
		}
		if _, err := s.emit(w, p.sequence); err != nil {
			return err
		}
		if w != nil {
			w.PutU32(uint32((total - ReplyMinSize) / 4))
		}
	case schema.RoleEvent:
		put8(w, role.Code)
		if p.sequence == nil {
			return nil
		}
		if err := p.emitMetabyte(w, s); err != nil {
			return err
		}
		if _, err := s.emit(w, p.sequence); err != nil {
			return err
		}
	}
	return nil
}

// emitMetabyte fills header byte 1: the minor opcode, else the metabyte item,
// else zero.
func (p *Plan) emitMetabyte(w *wire.Writer, s *scope) error {
	switch {
	case p.def.Role.HasMinor:
		put8(w, p.def.Role.Minor)
	case p.metabyte != nil:
		_, err := s.emit(w, p.metabyte)
		return err
	default:
		put8(w, 0)
	}
	return nil
}

func put8(w *wire.Writer, b uint8) {
	if w != nil {
		w.PutU8(b)
	}
}

func (s *scope) emitBody(w *wire.Writer) error {
	for _, st := range s.blk.steps {
		if st.header {
			continue
		}
		n, err := s.emit(w, st)
		if err != nil {
			return err
		}
		s.offset += n
	}
	return nil
}

// emit writes one step, or only measures it when w is nil, and returns its
// size in bytes.
func (s *scope) emit(w *wire.Writer, st *step) (int, error) {
	switch st.kind {
	case schema.ItemField:
		v, ok := s.values[st.name]
		if !ok {
			return 0, s.missing(st.name)
		}
		if _, ok := st.typ.(ContextualType); ok {
			if err := s.checkContext(st, v); err != nil {
				return 0, err
			}
		}
		n, err := st.typ.Size(v)
		if err != nil {
			return 0, annotate(err, s.def, st.name)
		}
		if w != nil {
			if err := st.typ.Write(w, v); err != nil {
				return 0, annotate(err, s.def, st.name)
			}
		}
		s.sizes[st.name] = n
		return n, nil
	case schema.ItemLet:
		v, err := st.typ.(integerType).fromInt(s.lets[st.name])
		if err != nil {
			return 0, err
		}
		n, _ := st.typ.FixedSize()
		if w != nil {
			if err := st.typ.Write(w, v); err != nil {
				return 0, err
			}
		}
		return n, nil
	default:
		n, err := s.unusedCount(st)
		if err != nil {
			return 0, err
		}
		if w != nil {
			w.PutZeros(n)
		}
		return n, nil
	}
}

// checkContext requires a contextual value to hold exactly the count its
// @context formula gives.
func (s *scope) checkContext(st *step, v any) error {
	want, err := schema.Eval(st.item.Context, s)
	if err != nil {
		return err
	}
	got, ok := lengthOf(v)
	if !ok {
		return annotate(mismatch(st.typ.Name(), v), s.def, st.name)
	}
	if got != want {
		return &ValueError{
			Definition: s.def,
			Field:      st.name,
			Want:       st.typ.Name(),
			Got:        v,
			Reason:     fmt.Sprintf("@context(%s) is %d, value has %d", st.item.Context, want, got),
		}
	}
	return nil
}
