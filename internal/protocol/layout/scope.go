package layout

import (
	"fmt"

	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/danmuck/xwire/internal/protocol/wire"
)

// scope holds the bindings of one block for a single encode or decode call.
// It is the formula environment of that block.
type scope struct {
	def    string
	blk    *block
	values Fields
	lets   map[string]int64
	sizes  map[string]int
	offset int
}

func newScope(def string, blk *block, values Fields) *scope {
	return &scope{
		def:    def,
		blk:    blk,
		values: values,
		lets:   make(map[string]int64),
		sizes:  make(map[string]int),
	}
}

func (s *scope) missing(name string) error {
	return &ValueError{Definition: s.def, Field: name, Reason: "missing field"}
}

func (s *scope) Value(name string) (int64, error) {
	if n, ok := s.lets[name]; ok {
		return n, nil
	}
	v, ok := s.values[name]
	if !ok {
		return 0, s.missing(name)
	}
	n, ok := intOf(v)
	if !ok {
		return 0, &ValueError{Definition: s.def, Field: name, Got: v, Reason: fmt.Sprintf("%T is not an integer", v)}
	}
	return n, nil
}

func (s *scope) Len(name string) (int64, error) {
	v, ok := s.values[name]
	if !ok {
		return 0, s.missing(name)
	}
	n, ok := lengthOf(v)
	if !ok {
		return 0, &ValueError{Definition: s.def, Field: name, Got: v, Reason: fmt.Sprintf("len() of %T", v)}
	}
	return n, nil
}

func (s *scope) Size(name string) (int64, error) {
	if n, ok := s.sizes[name]; ok {
		return int64(n), nil
	}
	st := s.blk.index[name]
	if st.kind == schema.ItemLet {
		n, _ := st.typ.FixedSize()
		return int64(n), nil
	}
	v, ok := s.values[name]
	if !ok {
		return 0, s.missing(name)
	}
	n, err := st.typ.Size(v)
	if err != nil {
		return 0, annotate(err, s.def, name)
	}
	s.sizes[name] = n
	return int64(n), nil
}

func (s *scope) Offset() int64 { return int64(s.offset) }

// computeLets evaluates every let before anything is written, so a let may
// describe a field that comes after it.
func (s *scope) computeLets() error {
	for _, st := range s.blk.steps {
		if st.kind != schema.ItemLet {
			continue
		}
		n, err := schema.Eval(st.item.Source, s)
		if err != nil {
			return err
		}
		if _, err := st.typ.(integerType).fromInt(n); err != nil {
			return fmt.Errorf("%w: %s.%s = %d does not fit %s", wire.ErrLengthOverflow, s.def, st.name, n, st.typ.Name())
		}
		s.lets[st.name] = n
	}
	return nil
}

// unusedCount resolves the zero-byte run of an unused step.
func (s *scope) unusedCount(st *step) (int, error) {
	if st.item.Source == nil {
		return 1, nil
	}
	n, err := schema.Eval(st.item.Source, s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s unused run of %d", ErrNegativeCount, s.def, n)
	}
	return int(n), nil
}

// result is the decoded field map, nil for blocks without fields.
func (s *scope) result() Fields {
	if s.blk.fields == 0 {
		return nil
	}
	return s.values
}
