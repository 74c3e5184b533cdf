package wire

import (
	"strconv"
	"unsafe"
)

// Sentinel is implemented by integer-backed domain types that reserve one code
// with a special meaning (None, Any, CurrentTime). The reserved code is owned
// by the type; wrappers never add a tag byte.
type Sentinel[T any] interface {
	~uint8 | ~uint16 | ~uint32
	Sentinel() T
}

func codeSize[T Sentinel[T]]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func putCode[T Sentinel[T]](w *Writer, v T) {
	switch codeSize[T]() {
	case 1:
		w.PutU8(uint8(v))
	case 2:
		w.PutU16(uint16(v))
	default:
		w.PutU32(uint32(v))
	}
}

func readCode[T Sentinel[T]](r *Reader) (T, error) {
	switch codeSize[T]() {
	case 1:
		v, err := r.U8()
		return T(v), err
	case 2:
		v, err := r.U16()
		return T(v), err
	default:
		v, err := r.U32()
		return T(v), err
	}
}

func sentinelOf[T Sentinel[T]]() T {
	var v T
	return v.Sentinel()
}

// Option is a value that may be absent. Absence is encoded as T's sentinel.
type Option[T Sentinel[T]] struct {
	value T
	some  bool
}

// Some wraps v. Passing the sentinel itself yields None, since the two are
// indistinguishable on the wire.
func Some[T Sentinel[T]](v T) Option[T] {
	if v == sentinelOf[T]() {
		return Option[T]{}
	}
	return Option[T]{value: v, some: true}
}

func None[T Sentinel[T]]() Option[T] {
	return Option[T]{}
}

func (o Option[T]) Get() (T, bool) { return o.value, o.some }

func (o Option[T]) IsSome() bool { return o.some }

// Code returns the on-wire code.
func (o Option[T]) Code() T {
	if !o.some {
		return sentinelOf[T]()
	}
	return o.value
}

func (o Option[T]) WireSize() int { return codeSize[T]() }

func (o Option[T]) WriteWire(w *Writer) error {
	putCode(w, o.Code())
	return nil
}

func (o *Option[T]) ReadWire(r *Reader) error {
	v, err := readCode[T](r)
	if err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

func (o Option[T]) String() string {
	if !o.some {
		return "none"
	}
	return strconv.FormatUint(uint64(o.value), 10)
}

// Plain returns the value, or "none".
func (o Option[T]) Plain() any {
	if !o.some {
		return "none"
	}
	return o.value
}

func (o Option[T]) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// AnyOr is either a specific value or the wildcard encoded as T's sentinel.
type AnyOr[T Sentinel[T]] struct {
	value    T
	specific bool
}

func Any[T Sentinel[T]]() AnyOr[T] {
	return AnyOr[T]{}
}

// Specific wraps v. Passing the sentinel itself yields Any.
func Specific[T Sentinel[T]](v T) AnyOr[T] {
	if v == sentinelOf[T]() {
		return AnyOr[T]{}
	}
	return AnyOr[T]{value: v, specific: true}
}

func (a AnyOr[T]) Get() (T, bool) { return a.value, a.specific }

func (a AnyOr[T]) IsAny() bool { return !a.specific }

func (a AnyOr[T]) Code() T {
	if !a.specific {
		return sentinelOf[T]()
	}
	return a.value
}

func (a AnyOr[T]) WireSize() int { return codeSize[T]() }

func (a AnyOr[T]) WriteWire(w *Writer) error {
	putCode(w, a.Code())
	return nil
}

func (a *AnyOr[T]) ReadWire(r *Reader) error {
	v, err := readCode[T](r)
	if err != nil {
		return err
	}
	*a = Specific(v)
	return nil
}

func (a AnyOr[T]) String() string {
	if !a.specific {
		return "any"
	}
	return strconv.FormatUint(uint64(a.value), 10)
}

// Plain returns the value, or "any".
func (a AnyOr[T]) Plain() any {
	if !a.specific {
		return "any"
	}
	return a.value
}

func (a AnyOr[T]) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
