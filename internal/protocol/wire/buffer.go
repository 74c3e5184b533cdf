package wire

import (
	"encoding/binary"
	"fmt"
)

var order = binary.BigEndian

// Writer is a growable big-endian output buffer.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	if capacity < 0 {
		capacity = 0
	}
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Truncate discards everything written after the first n bytes.
func (w *Writer) Truncate(n int) {
	if n >= 0 && n < len(w.buf) {
		w.buf = w.buf[:n]
	}
}

func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutU16(v uint16) { w.buf = order.AppendUint16(w.buf, v) }

func (w *Writer) PutU32(v uint32) { w.buf = order.AppendUint32(w.buf, v) }

func (w *Writer) PutI8(v int8) { w.PutU8(uint8(v)) }

func (w *Writer) PutI16(v int16) { w.PutU16(uint16(v)) }

func (w *Writer) PutI32(v int32) { w.PutU32(uint32(v)) }

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutU8(1)
		return
	}
	w.PutU8(0)
}

func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) PutString(s string) { w.buf = append(w.buf, s...) }

// PutZeros appends n zero bytes.
func (w *Writer) PutZeros(n int) {
	for ; n > 0; n-- {
		w.buf = append(w.buf, 0)
	}
}

// Reader is a cursor over a byte slice. After a failed read the cursor
// position is unspecified and the enclosing message must be discarded.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShortRead
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// Bool reads one byte that must be 0 or 1.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte %#02x", ErrInvalidData, v)
	}
}

// Bytes returns a copy of the next n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (r *Reader) Skip(n int) error {
	_, err := r.next(n)
	return err
}
