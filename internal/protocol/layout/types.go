package layout

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/danmuck/xwire/internal/protocol/wire"
)

// Type is the runtime codec of one schema type.
type Type interface {
	Name() string
	// FixedSize reports the encoded size when it does not depend on the value.
	FixedSize() (int, bool)
	Size(v any) (int, error)
	Write(w *wire.Writer, v any) error
	// Coerce converts loosely typed input into the canonical value.
	Coerce(raw any) (any, error)
}

// ReadableType decodes values whose bytes describe their own extent.
type ReadableType interface {
	Type
	Read(r *wire.Reader) (any, error)
}

// ContextualType decodes values whose element count is supplied by a sibling.
type ContextualType interface {
	Type
	ReadWith(r *wire.Reader, count int) (any, error)
}

// integerType is implemented by the fixed-width integer types a let may use.
type integerType interface {
	ReadableType
	fromInt(n int64) (any, error)
	toInt(v any) (int64, bool)
}

type integer interface {
	~uint8 | ~uint16 | ~uint32 | ~int8 | ~int16 | ~int32
}

// scalar covers fixed-width integers and the integer-backed resource types.
type scalar[T integer] struct {
	name string
}

func (s scalar[T]) Name() string { return s.name }

func (s scalar[T]) width() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func (s scalar[T]) FixedSize() (int, bool) { return s.width(), true }

func (s scalar[T]) Size(v any) (int, error) {
	if _, ok := v.(T); !ok {
		return 0, mismatch(s.name, v)
	}
	return s.width(), nil
}

func (s scalar[T]) Write(w *wire.Writer, v any) error {
	x, ok := v.(T)
	if !ok {
		return mismatch(s.name, v)
	}
	switch s.width() {
	case 1:
		w.PutU8(uint8(x))
	case 2:
		w.PutU16(uint16(x))
	default:
		w.PutU32(uint32(x))
	}
	return nil
}

func (s scalar[T]) Read(r *wire.Reader) (any, error) {
	switch s.width() {
	case 1:
		v, err := r.U8()
		if err != nil {
			return nil, err
		}
		return T(v), nil
	case 2:
		v, err := r.U16()
		if err != nil {
			return nil, err
		}
		return T(v), nil
	default:
		v, err := r.U32()
		if err != nil {
			return nil, err
		}
		return T(v), nil
	}
}

func (s scalar[T]) fromInt(n int64) (any, error) {
	x := T(n)
	if int64(x) != n {
		return nil, fmt.Errorf("%w: %d does not fit %s", wire.ErrLengthOverflow, n, s.name)
	}
	return x, nil
}

func (s scalar[T]) toInt(v any) (int64, bool) {
	x, ok := v.(T)
	return int64(x), ok
}

func (s scalar[T]) Coerce(raw any) (any, error) {
	if v, ok := raw.(T); ok {
		return v, nil
	}
	n, ok := toInt64(raw)
	if !ok {
		return nil, mismatch(s.name, raw)
	}
	x := T(n)
	if int64(x) != n {
		return nil, &ValueError{Want: s.name, Got: raw, Reason: fmt.Sprintf("%d out of range for %s", n, s.name)}
	}
	return x, nil
}

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) FixedSize() (int, bool) { return 1, true }

func (boolType) Size(v any) (int, error) {
	if _, ok := v.(bool); !ok {
		return 0, mismatch("bool", v)
	}
	return 1, nil
}

func (boolType) Write(w *wire.Writer, v any) error {
	b, ok := v.(bool)
	if !ok {
		return mismatch("bool", v)
	}
	w.PutBool(b)
	return nil
}

func (boolType) Read(r *wire.Reader) (any, error) {
	b, err := r.Bool()
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (boolType) Coerce(raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	if n, ok := toInt64(raw); ok && (n == 0 || n == 1) {
		return n == 1, nil
	}
	return nil, mismatch("bool", raw)
}

// optionType encodes wire.Option[T]; none is T's sentinel code.
type optionType[T wire.Sentinel[T]] struct {
	inner scalar[T]
}

func (o optionType[T]) Name() string { return "option<" + o.inner.name + ">" }

func (o optionType[T]) FixedSize() (int, bool) { return o.inner.FixedSize() }

func (o optionType[T]) Size(v any) (int, error) {
	x, ok := v.(wire.Option[T])
	if !ok {
		return 0, mismatch(o.Name(), v)
	}
	return x.WireSize(), nil
}

func (o optionType[T]) Write(w *wire.Writer, v any) error {
	x, ok := v.(wire.Option[T])
	if !ok {
		return mismatch(o.Name(), v)
	}
	return x.WriteWire(w)
}

func (o optionType[T]) Read(r *wire.Reader) (any, error) {
	var x wire.Option[T]
	if err := x.ReadWire(r); err != nil {
		return nil, err
	}
	return x, nil
}

func (o optionType[T]) Coerce(raw any) (any, error) {
	switch x := raw.(type) {
	case wire.Option[T]:
		return x, nil
	case nil:
		return wire.None[T](), nil
	case string:
		if x == "none" || x == "" {
			return wire.None[T](), nil
		}
		return nil, mismatch(o.Name(), raw)
	}
	v, err := o.inner.Coerce(raw)
	if err != nil {
		return nil, err
	}
	return wire.Some(v.(T)), nil
}

// anyType encodes wire.AnyOr[T]; any is T's sentinel code.
type anyType[T wire.Sentinel[T]] struct {
	inner scalar[T]
}

func (a anyType[T]) Name() string { return "any<" + a.inner.name + ">" }

func (a anyType[T]) FixedSize() (int, bool) { return a.inner.FixedSize() }

func (a anyType[T]) Size(v any) (int, error) {
	x, ok := v.(wire.AnyOr[T])
	if !ok {
		return 0, mismatch(a.Name(), v)
	}
	return x.WireSize(), nil
}

func (a anyType[T]) Write(w *wire.Writer, v any) error {
	x, ok := v.(wire.AnyOr[T])
	if !ok {
		return mismatch(a.Name(), v)
	}
	return x.WriteWire(w)
}

func (a anyType[T]) Read(r *wire.Reader) (any, error) {
	var x wire.AnyOr[T]
	if err := x.ReadWire(r); err != nil {
		return nil, err
	}
	return x, nil
}

func (a anyType[T]) Coerce(raw any) (any, error) {
	switch x := raw.(type) {
	case wire.AnyOr[T]:
		return x, nil
	case nil:
		return wire.Any[T](), nil
	case string:
		if x == "any" || x == "" {
			return wire.Any[T](), nil
		}
		return nil, mismatch(a.Name(), raw)
	}
	v, err := a.inner.Coerce(raw)
	if err != nil {
		return nil, err
	}
	return wire.Specific(v.(T)), nil
}

// str8Type is text with a one-byte length prefix.
type str8Type struct{}

func (str8Type) Name() string { return "str8" }

func (str8Type) FixedSize() (int, bool) { return 0, false }

func (str8Type) Size(v any) (int, error) {
	s, ok := v.(string)
	if !ok {
		return 0, mismatch("str8", v)
	}
	if len(s) > math.MaxUint8 {
		return 0, fmt.Errorf("%w: str8 of %d bytes", wire.ErrLengthOverflow, len(s))
	}
	return wire.LengthString8(s).WireSize(), nil
}

func (str8Type) Write(w *wire.Writer, v any) error {
	s, ok := v.(string)
	if !ok {
		return mismatch("str8", v)
	}
	return wire.LengthString8(s).WriteWire(w)
}

func (str8Type) Read(r *wire.Reader) (any, error) {
	var s wire.LengthString8
	if err := s.ReadWire(r); err != nil {
		return nil, err
	}
	return string(s), nil
}

func (str8Type) Coerce(raw any) (any, error) {
	return coerceString("str8", raw)
}

// string8Type is text whose byte count is carried by a sibling.
type string8Type struct{}

func (string8Type) Name() string { return "string8" }

func (string8Type) FixedSize() (int, bool) { return 0, false }

func (string8Type) Size(v any) (int, error) {
	s, ok := v.(string)
	if !ok {
		return 0, mismatch("string8", v)
	}
	return wire.String8(s).WireSize(), nil
}

func (string8Type) Write(w *wire.Writer, v any) error {
	s, ok := v.(string)
	if !ok {
		return mismatch("string8", v)
	}
	return wire.String8(s).WriteWire(w)
}

func (string8Type) ReadWith(r *wire.Reader, count int) (any, error) {
	var s wire.String8
	if err := s.ReadWireWith(r, count); err != nil {
		return nil, err
	}
	return string(s), nil
}

func (string8Type) Coerce(raw any) (any, error) {
	return coerceString("string8", raw)
}

func coerceString(name string, raw any) (any, error) {
	switch x := raw.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return nil, mismatch(name, raw)
}

// bytesType is an opaque byte run whose length is carried by a sibling.
type bytesType struct{}

func (bytesType) Name() string { return "bytes" }

func (bytesType) FixedSize() (int, bool) { return 0, false }

func (bytesType) Size(v any) (int, error) {
	b, ok := v.([]byte)
	if !ok {
		return 0, mismatch("bytes", v)
	}
	return len(b), nil
}

func (bytesType) Write(w *wire.Writer, v any) error {
	b, ok := v.([]byte)
	if !ok {
		return mismatch("bytes", v)
	}
	w.PutBytes(b)
	return nil
}

func (bytesType) ReadWith(r *wire.Reader, count int) (any, error) {
	return r.Bytes(count)
}

func (bytesType) Coerce(raw any) (any, error) {
	switch x := raw.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice {
		return nil, mismatch("bytes", raw)
	}
	out := make([]byte, rv.Len())
	for i := range out {
		n, ok := toInt64(rv.Index(i).Interface())
		if !ok || n < 0 || n > math.MaxUint8 {
			return nil, &ValueError{Want: "bytes", Got: raw, Reason: fmt.Sprintf("element %d is not a byte", i)}
		}
		out[i] = byte(n)
	}
	return out, nil
}

// listType is a counted sequence of self-delimiting elements.
type listType struct {
	elem ReadableType
}

func (l listType) Name() string { return "list<" + l.elem.Name() + ">" }

func (l listType) FixedSize() (int, bool) { return 0, false }

func (l listType) Size(v any) (int, error) {
	items, ok := v.([]any)
	if !ok {
		return 0, mismatch(l.Name(), v)
	}
	total := 0
	for _, e := range items {
		n, err := l.elem.Size(e)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (l listType) Write(w *wire.Writer, v any) error {
	items, ok := v.([]any)
	if !ok {
		return mismatch(l.Name(), v)
	}
	for _, e := range items {
		if err := l.elem.Write(w, e); err != nil {
			return err
		}
	}
	return nil
}

func (l listType) ReadWith(r *wire.Reader, count int) (any, error) {
	out := make([]any, 0, min(count, r.Remaining()))
	for i := 0; i < count; i++ {
		e, err := l.elem.Read(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (l listType) Coerce(raw any) (any, error) {
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice {
		return nil, mismatch(l.Name(), raw)
	}
	out := make([]any, rv.Len())
	for i := range out {
		e, err := l.elem.Coerce(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// fixedBytesType is an opaque byte run of a declared length.
type fixedBytesType struct {
	n int
}

func (f fixedBytesType) Name() string { return fmt.Sprintf("bytes[%d]", f.n) }

func (f fixedBytesType) FixedSize() (int, bool) { return f.n, true }

func (f fixedBytesType) check(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, mismatch(f.Name(), v)
	}
	if len(b) != f.n {
		return nil, &ValueError{Want: f.Name(), Got: v, Reason: fmt.Sprintf("%s holds %d bytes, got %d", f.Name(), f.n, len(b))}
	}
	return b, nil
}

func (f fixedBytesType) Size(v any) (int, error) {
	if _, err := f.check(v); err != nil {
		return 0, err
	}
	return f.n, nil
}

func (f fixedBytesType) Write(w *wire.Writer, v any) error {
	b, err := f.check(v)
	if err != nil {
		return err
	}
	w.PutBytes(b)
	return nil
}

func (f fixedBytesType) Read(r *wire.Reader) (any, error) {
	return r.Bytes(f.n)
}

func (f fixedBytesType) Coerce(raw any) (any, error) {
	v, err := bytesType{}.Coerce(raw)
	if err != nil {
		return nil, err
	}
	return f.check(v)
}

// arrayType is a fixed count of fixed-size elements.
type arrayType struct {
	elem ReadableType
	n    int
}

func (a arrayType) Name() string { return fmt.Sprintf("%s[%d]", a.elem.Name(), a.n) }

func (a arrayType) FixedSize() (int, bool) {
	n, _ := a.elem.FixedSize()
	return n * a.n, true
}

func (a arrayType) check(v any) ([]any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, mismatch(a.Name(), v)
	}
	if len(items) != a.n {
		return nil, &ValueError{Want: a.Name(), Got: v, Reason: fmt.Sprintf("%s holds %d elements, got %d", a.Name(), a.n, len(items))}
	}
	return items, nil
}

func (a arrayType) Size(v any) (int, error) {
	items, err := a.check(v)
	if err != nil {
		return 0, err
	}
	for _, e := range items {
		if _, err := a.elem.Size(e); err != nil {
			return 0, err
		}
	}
	n, _ := a.FixedSize()
	return n, nil
}

func (a arrayType) Write(w *wire.Writer, v any) error {
	items, err := a.check(v)
	if err != nil {
		return err
	}
	for _, e := range items {
		if err := a.elem.Write(w, e); err != nil {
			return err
		}
	}
	return nil
}

func (a arrayType) Read(r *wire.Reader) (any, error) {
	out := make([]any, a.n)
	for i := range out {
		e, err := a.elem.Read(r)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (a arrayType) Coerce(raw any) (any, error) {
	v, err := listType{elem: a.elem}.Coerce(raw)
	if err != nil {
		return nil, err
	}
	return a.check(v)
}

type sentinelTypes struct {
	option Type
	anyOr  Type
}

func sentinelPair[T wire.Sentinel[T]](base scalar[T]) sentinelTypes {
	return sentinelTypes{option: optionType[T]{inner: base}, anyOr: anyType[T]{inner: base}}
}

var (
	windowType    = scalar[wire.Window]{name: "window"}
	pixmapType    = scalar[wire.Pixmap]{name: "pixmap"}
	cursorType    = scalar[wire.Cursor]{name: "cursor"}
	fontType      = scalar[wire.Font]{name: "font"}
	colormapType  = scalar[wire.Colormap]{name: "colormap"}
	atomType      = scalar[wire.Atom]{name: "atom"}
	timestampType = scalar[wire.Timestamp]{name: "timestamp"}
	keycodeType   = scalar[wire.Keycode]{name: "keycode"}
	buttonType    = scalar[wire.Button]{name: "button"}
	opcodeType    = scalar[wire.Opcode]{name: "opcode"}
)

var builtins = map[string]Type{
	"u8":        scalar[uint8]{name: "u8"},
	"u16":       scalar[uint16]{name: "u16"},
	"u32":       scalar[uint32]{name: "u32"},
	"i8":        scalar[int8]{name: "i8"},
	"i16":       scalar[int16]{name: "i16"},
	"i32":       scalar[int32]{name: "i32"},
	"bool":      boolType{},
	"window":    windowType,
	"pixmap":    pixmapType,
	"cursor":    cursorType,
	"font":      fontType,
	"colormap":  colormapType,
	"atom":      atomType,
	"timestamp": timestampType,
	"keycode":   keycodeType,
	"button":    buttonType,
	"opcode":    opcodeType,
	"str8":      str8Type{},
	"string8":   string8Type{},
	"bytes":     bytesType{},
}

var sentinels = map[string]sentinelTypes{
	"window":    sentinelPair(windowType),
	"pixmap":    sentinelPair(pixmapType),
	"cursor":    sentinelPair(cursorType),
	"font":      sentinelPair(fontType),
	"colormap":  sentinelPair(colormapType),
	"atom":      sentinelPair(atomType),
	"timestamp": sentinelPair(timestampType),
	"keycode":   sentinelPair(keycodeType),
	"button":    sentinelPair(buttonType),
	"opcode":    sentinelPair(opcodeType),
}
