package protocol

// Coerce converts loosely typed input, such as values decoded from TOML or
// JSON, into the canonical Go values the named definition encodes.
func (c *Catalog) Coerce(name string, raw any) (any, error) {
	p, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	return p.Coerce(raw)
}

// EncodeLoose coerces raw and encodes the result.
func (c *Catalog) EncodeLoose(name string, raw any) ([]byte, error) {
	v, err := c.Coerce(name, raw)
	if err != nil {
		return nil, err
	}
	return c.Encode(name, v)
}
