package protocol

import "github.com/danmuck/xwire/internal/protocol/frame"

// ErrorPacketSize is the fixed size of every error packet.
const ErrorPacketSize = 32

// SyntheticBit marks an event sent by a client rather than the server.
const SyntheticBit uint8 = 0x80

// Message is a decoded value together with the definition it was decoded as.
type Message struct {
	Name  string
	Value any
}

// Event is a decoded event. Synthetic is set when the code carried 0x80.
type Event struct {
	Name      string
	Synthetic bool
	Value     any
}

// ServerMessage is any packet a server sends. Exactly one of Value or Err is
// meaningful, depending on Kind.
type ServerMessage struct {
	Kind      frame.Kind
	Name      string
	Sequence  uint16
	Synthetic bool
	Value     any
	Err       *RequestError
}
