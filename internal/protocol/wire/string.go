package wire

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// LengthString8 is text prefixed on the wire by its one-byte length.
type LengthString8 string

func (s LengthString8) WireSize() int { return 1 + len(s) }

func (s LengthString8) WriteWire(w *Writer) error {
	if len(s) > math.MaxUint8 {
		return fmt.Errorf("%w: string of %d bytes", ErrLengthOverflow, len(s))
	}
	w.PutU8(uint8(len(s)))
	w.PutString(string(s))
	return nil
}

func (s *LengthString8) ReadWire(r *Reader) error {
	n, err := r.U8()
	if err != nil {
		return err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return err
	}
	if !utf8.Valid(b) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidData)
	}
	*s = LengthString8(b)
	return nil
}

func (s LengthString8) Serialize() ([]byte, error) {
	return Marshal(s)
}

func (s *LengthString8) Deserialize(r *Reader) error {
	return s.ReadWire(r)
}

// String8 is text whose byte length is carried elsewhere in the message.
type String8 string

func (s String8) WireSize() int { return len(s) }

func (s String8) WriteWire(w *Writer) error {
	w.PutString(string(s))
	return nil
}

// ReadWireWith reads exactly n bytes of text.
func (s *String8) ReadWireWith(r *Reader, n int) error {
	b, err := r.Bytes(n)
	if err != nil {
		return err
	}
	if !utf8.Valid(b) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidData)
	}
	*s = String8(b)
	return nil
}
