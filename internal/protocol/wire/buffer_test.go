package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterBigEndian(t *testing.T) {
	w := NewWriter(0)
	w.PutU8(0x01)
	w.PutU16(0x0203)
	w.PutU32(0x04050607)
	w.PutI16(-2)
	w.PutBool(true)
	w.PutZeros(3)

	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0xff, 0xfe, 0x01, 0, 0, 0}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("bytes mismatch: got=%x want=%x", w.Bytes(), want)
	}
}

func TestWriterTruncate(t *testing.T) {
	w := NewWriter(8)
	w.PutU32(1)
	w.PutU32(2)
	w.Truncate(4)
	if w.Len() != 4 {
		t.Fatalf("expected len 4, got %d", w.Len())
	}
	w.Truncate(10)
	if w.Len() != 4 {
		t.Fatalf("truncate past end changed len: %d", w.Len())
	}
}

func TestReaderRoundTrip(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0xff, 0xff, 0xff, 0xfe, 0x00, 0xaa})
	u8, err := r.U8()
	if err != nil || u8 != 1 {
		t.Fatalf("u8: %d %v", u8, err)
	}
	u16, err := r.U16()
	if err != nil || u16 != 0x0203 {
		t.Fatalf("u16: %#x %v", u16, err)
	}
	i32, err := r.I32()
	if err != nil || i32 != -2 {
		t.Fatalf("i32: %d %v", i32, err)
	}
	b, err := r.Bool()
	if err != nil || b {
		t.Fatalf("bool: %v %v", b, err)
	}
	if r.Offset() != 8 || r.Remaining() != 1 {
		t.Fatalf("cursor mismatch: off=%d rem=%d", r.Offset(), r.Remaining())
	}
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.U16(); !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
	if _, err := NewReader(nil).U8(); !errors.Is(err, ErrInvalidData) {
		t.Fatalf("short read should be invalid data, got %v", err)
	}
	if err := NewReader([]byte{1, 2}).Skip(3); !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead on skip, got %v", err)
	}
}

func TestReaderBoolRejectsOtherBytes(t *testing.T) {
	_, err := NewReader([]byte{2}).Bool()
	if !errors.Is(err, ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestReaderBytesCopies(t *testing.T) {
	src := []byte{1, 2, 3}
	out, err := NewReader(src).Bytes(2)
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	src[0] = 9
	if out[0] != 1 {
		t.Fatalf("reader bytes alias the input")
	}
}

func TestPad(t *testing.T) {
	cases := map[int]int{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 5: 3, 32: 0}
	for n, want := range cases {
		if got := Pad(n); got != want {
			t.Fatalf("Pad(%d)=%d want %d", n, got, want)
		}
	}
}
