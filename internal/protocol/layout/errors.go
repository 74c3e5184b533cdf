package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/xwire/internal/protocol/wire"
)

var (
	ErrOpcodeMismatch = errors.New("layout: opcode mismatch")
	ErrLengthMismatch = errors.New("layout: length field disagrees with content")
	ErrSizeMismatch   = errors.New("layout: written size differs from computed size")
	ErrNegativeCount  = fmt.Errorf("%w: negative count", wire.ErrInvalidData)
	ErrCountRange     = fmt.Errorf("%w: count exceeds 32 bits", wire.ErrInvalidData)
)

// ValueError reports a value that does not fit the field it is given for.
type ValueError struct {
	Definition string
	Field      string
	Want       string
	Got        any
	Reason     string
}

func (e *ValueError) Error() string {
	var b strings.Builder
	b.WriteString("layout: ")
	if e.Definition != "" {
		b.WriteString(e.Definition)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}
	if e.Reason != "" {
		b.WriteString(e.Reason)
	} else {
		fmt.Fprintf(&b, "want %s, got %T", e.Want, e.Got)
	}
	return b.String()
}

func mismatch(want string, got any) error {
	return &ValueError{Want: want, Got: got}
}

// annotate fills in the location of an innermost ValueError.
func annotate(err error, def, field string) error {
	var ve *ValueError
	if errors.As(err, &ve) && ve.Definition == "" {
		ve.Definition = def
		ve.Field = field
	}
	return err
}

// CompileError reports a definition that cannot be turned into a plan.
type CompileError struct {
	Definition string
	Item       string
	Msg        string
}

func (e *CompileError) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("layout: definition=%s: %s", e.Definition, e.Msg)
	}
	return fmt.Sprintf("layout: definition=%s item=%s: %s", e.Definition, e.Item, e.Msg)
}
