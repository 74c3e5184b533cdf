package wire

// Sizer reports the exact number of bytes a value occupies on the wire.
type Sizer interface {
	WireSize() int
}

// Writable appends exactly WireSize bytes to a Writer.
type Writable interface {
	Sizer
	WriteWire(w *Writer) error
}

// Readable decodes a value in place from a Reader.
type Readable interface {
	ReadWire(r *Reader) error
}

// ContextualReadable is implemented by values whose bytes do not describe
// their own extent; the caller supplies the missing context (usually a count).
type ContextualReadable[C any] interface {
	ReadWireWith(r *Reader, ctx C) error
}

// Pad returns the number of zero bytes that align n to a 4-byte boundary.
func Pad(n int) int {
	return (4 - n%4) % 4
}
