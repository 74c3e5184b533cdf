package wire

// Serializer turns a self-contained structure into bytes. Implementations
// must have no side effects.
type Serializer interface {
	Serialize() ([]byte, error)
}

// Deserializer reads a self-contained structure, consuming only the bytes it
// needs.
type Deserializer interface {
	Deserialize(r *Reader) error
}

// Marshal writes v into a newly allocated buffer of exactly v.WireSize() bytes.
func Marshal(v Writable) ([]byte, error) {
	w := NewWriter(v.WireSize())
	if err := v.WriteWire(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// SerializeTo writes s into dst and returns the number of bytes written. If
// dst is too small nothing is written and ErrCapacityTooLow is returned.
func SerializeTo(s Serializer, dst []byte) (int, error) {
	data, err := s.Serialize()
	if err != nil {
		return 0, err
	}
	if len(dst) < len(data) {
		return 0, ErrCapacityTooLow
	}
	return copy(dst, data), nil
}

// DeserializeBytes decodes d from b. Trailing bytes are ignored.
func DeserializeBytes(b []byte, d Deserializer) error {
	return d.Deserialize(NewReader(b))
}
