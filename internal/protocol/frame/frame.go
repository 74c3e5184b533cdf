package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	RequestHeaderLen = 4
	ServerPacketLen  = 32
)

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrShortBody       = errors.New("frame: short body")
	ErrZeroLength      = errors.New("frame: zero request length (extended lengths unsupported)")
	ErrRequestTooLarge = errors.New("frame: request too large")
	ErrReplyTooLarge   = errors.New("frame: reply too large")
	ErrUnaligned       = errors.New("frame: packet length not a multiple of 4")
)

// Kind classifies a server-to-client packet by its first byte.
type Kind uint8

const (
	KindError Kind = iota
	KindReply
	KindEvent
)

func KindOf(first byte) Kind {
	switch first {
	case 0:
		return KindError
	case 1:
		return KindReply
	default:
		return KindEvent
	}
}

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindReply:
		return "reply"
	case KindEvent:
		return "event"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Packet is one complete server-to-client message.
type Packet struct {
	Kind  Kind
	Bytes []byte
}

// Sequence returns the sequence number of an error or reply. Events are
// reported as unknown because not every event carries one.
func (p Packet) Sequence() (uint16, bool) {
	if p.Kind == KindEvent || len(p.Bytes) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint16(p.Bytes[2:4]), true
}

// Limits constrains packet sizes accepted from a stream.
type Limits struct {
	MaxRequestBytes int
	MaxReplyBytes   int
}

func DefaultLimits() Limits {
	return Limits{
		MaxRequestBytes: 65535 * 4,
		MaxReplyBytes:   16 * 1024 * 1024,
	}
}

// RequestLength returns the total request size declared by a request header.
func RequestLength(header []byte) (int, error) {
	if len(header) < RequestHeaderLen {
		return 0, ErrShortHeader
	}
	units := binary.BigEndian.Uint16(header[2:4])
	if units == 0 {
		return 0, ErrZeroLength
	}
	return int(units) * 4, nil
}

// ServerPacketLength returns the total size of a server packet from its first
// 32 bytes.
func ServerPacketLength(header []byte) (int, error) {
	if len(header) < ServerPacketLen {
		return 0, ErrShortHeader
	}
	if KindOf(header[0]) != KindReply {
		return ServerPacketLen, nil
	}
	extra := int(binary.BigEndian.Uint32(header[4:8])) * 4
	return ServerPacketLen + extra, nil
}

// ReadRequest reads one client request. io.EOF is returned unchanged when the
// stream ends cleanly between requests.
func ReadRequest(r io.Reader, limits Limits) ([]byte, error) {
	var head [RequestHeaderLen]byte
	if err := readHeader(r, head[:]); err != nil {
		return nil, err
	}
	total, err := RequestLength(head[:])
	if err != nil {
		return nil, err
	}
	if total > limits.MaxRequestBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrRequestTooLarge, total)
	}
	buf := make([]byte, total)
	copy(buf, head[:])
	if err := readBody(r, buf[RequestHeaderLen:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadServerPacket reads one reply, event or error. io.EOF is returned
// unchanged when the stream ends cleanly between packets.
func ReadServerPacket(r io.Reader, limits Limits) (Packet, error) {
	var head [ServerPacketLen]byte
	if err := readHeader(r, head[:]); err != nil {
		return Packet{}, err
	}
	total, err := ServerPacketLength(head[:])
	if err != nil {
		return Packet{}, err
	}
	if total > limits.MaxReplyBytes {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrReplyTooLarge, total)
	}
	buf := make([]byte, total)
	copy(buf, head[:])
	if err := readBody(r, buf[ServerPacketLen:]); err != nil {
		return Packet{}, err
	}
	return Packet{Kind: KindOf(buf[0]), Bytes: buf}, nil
}

// WritePacket writes one encoded message after checking its alignment and
// size.
func WritePacket(w io.Writer, b []byte, limits Limits) error {
	if len(b) == 0 || len(b)%4 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrUnaligned, len(b))
	}
	if len(b) > max(limits.MaxRequestBytes, limits.MaxReplyBytes) {
		return fmt.Errorf("%w: %d bytes", ErrRequestTooLarge, len(b))
	}
	_, err := w.Write(b)
	return err
}

func readHeader(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrShortHeader
		}
		return err
	}
	return nil
}

func readBody(r io.Reader, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: want %d bytes", ErrShortBody, len(buf))
		}
		return err
	}
	return nil
}
