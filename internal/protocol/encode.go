package protocol

import (
	"time"

	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/danmuck/xwire/internal/protocol/wire"
)

// Encode encodes v as the named definition.
func (c *Catalog) Encode(name string, v any) ([]byte, error) {
	start := time.Now()
	p, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := p.Encode(v)
	c.observe("encode", name, len(out), start, err)
	return out, err
}

// EncodeTo appends the encoding of v to w. On failure w is left unchanged.
func (c *Catalog) EncodeTo(w *wire.Writer, name string, v any) error {
	start := time.Now()
	p, err := c.lookup(name)
	if err != nil {
		return err
	}
	before := w.Len()
	err = p.EncodeTo(w, v)
	c.observe("encode", name, w.Len()-before, start, err)
	return err
}

// EncodeEvent encodes an event, setting the synthetic bit when asked.
func (c *Catalog) EncodeEvent(name string, v any, synthetic bool) ([]byte, error) {
	start := time.Now()
	p, err := c.lookupRole(name, schema.RoleEvent)
	if err != nil {
		return nil, err
	}
	out, err := p.Encode(v)
	if err == nil && synthetic {
		out[0] |= SyntheticBit
	}
	c.observe("encode", name, len(out), start, err)
	return out, err
}

// EncodedSize returns the exact number of bytes Encode would produce.
func (c *Catalog) EncodedSize(name string, v any) (int, error) {
	p, err := c.lookup(name)
	if err != nil {
		return 0, err
	}
	return p.Size(v)
}
