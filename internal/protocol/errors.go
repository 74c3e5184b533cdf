package protocol

import (
	"errors"
	"fmt"

	"github.com/danmuck/xwire/internal/protocol/layout"
)

var (
	ErrUnknownDefinition = errors.New("protocol: unknown definition")
	ErrUnknownRequest    = errors.New("protocol: no request for opcode")
	ErrUnknownEvent      = errors.New("protocol: no event for code")
	ErrNoReply           = errors.New("protocol: request has no reply")
	ErrNoTypeHint        = errors.New("protocol: reply or error needs the request name")
	ErrNotError          = errors.New("protocol: packet is not an error")
	ErrUnexpectedError   = errors.New("protocol: error code outside the request's error set")
	ErrRoleMismatch      = errors.New("protocol: definition has the wrong role")

	ErrOpcodeMismatch = layout.ErrOpcodeMismatch
	ErrLengthMismatch = layout.ErrLengthMismatch
)

// Universal error codes every request may produce.
const (
	CodeAlloc          uint8 = 11
	CodeLength         uint8 = 16
	CodeImplementation uint8 = 17
)

// ErrorKind discriminates the error union of a request.
type ErrorKind uint8

const (
	ErrorOther ErrorKind = iota
	ErrorAlloc
	ErrorImplementation
	ErrorLength
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorAlloc:
		return "Alloc"
	case ErrorImplementation:
		return "Implementation"
	case ErrorLength:
		return "Length"
	default:
		return "Other"
	}
}

// RequestError is a decoded error packet. Other names the error definition
// and is set only when Kind is ErrorOther.
type RequestError struct {
	Request  string
	Kind     ErrorKind
	Code     uint8
	Sequence uint16
	BadValue uint32
	Minor    uint16
	Major    uint8
	Other    string
}

func (e *RequestError) Name() string {
	if e.Kind == ErrorOther {
		return e.Other
	}
	return e.Kind.String()
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("protocol: %s error (code=%d) for %s seq=%d bad_value=%#x", e.Name(), e.Code, e.Request, e.Sequence, e.BadValue)
}
