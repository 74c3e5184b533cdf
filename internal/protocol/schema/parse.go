package schema

import (
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"
)

// ParseError reports malformed declaration text.
type ParseError struct {
	Pos        Pos
	Definition string
	Msg        string
}

func (e *ParseError) Error() string {
	if e.Definition == "" {
		return fmt.Sprintf("schema: %s: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("schema: %s: %s: %s", e.Pos, e.Definition, e.Msg)
}

// ParseFile reads and parses one declaration file.
func ParseFile(path string) ([]*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema read failed (%s): %w", path, err)
	}
	return Parse(path, src)
}

// Parse parses declaration text into definitions in source order. Each
// definition is checked on its own; cross-definition rules are checked by
// Validate.
func Parse(filename string, src []byte) (defs []*Definition, err error) {
	toks, err := lex(filename, src)
	if err != nil {
		log.Error().Str("file", filename).Err(err).Msg("schema rejected")
		return nil, err
	}
	p := &parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ParseError)
			if !ok {
				panic(r)
			}
			log.Error().Str("file", filename).Err(pe).Msg("schema rejected")
			defs, err = nil, pe
		}
	}()
	for p.peek().kind != tokEOF {
		defs = append(defs, p.definition())
	}
	log.Debug().Str("file", filename).Int("definitions", len(defs)).Msg("schema parsed")
	return defs, nil
}

type parser struct {
	toks []token
	i    int
	def  *Definition
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) fail(pos Pos, format string, args ...any) {
	e := &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
	if p.def != nil {
		e.Definition = p.def.Name
	}
	panic(e)
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) acceptPunct(s string) bool {
	if p.isPunct(s) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) token {
	t := p.peek()
	if t.kind != tokPunct || t.text != s {
		p.fail(t.pos, "expected %q, found %s", s, t)
	}
	return p.advance()
}

func (p *parser) expectIdent() token {
	t := p.peek()
	if t.kind != tokIdent {
		p.fail(t.pos, "expected identifier, found %s", t)
	}
	return p.advance()
}

func (p *parser) expectKeyword(kw string) {
	t := p.peek()
	if t.kind != tokIdent || t.text != kw {
		p.fail(t.pos, "expected %q, found %s", kw, t)
	}
	p.advance()
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == kw
}

func (p *parser) byteValue() uint8 {
	t := p.peek()
	if t.kind != tokInt {
		p.fail(t.pos, "expected integer, found %s", t)
	}
	p.advance()
	if t.val < 0 || t.val > math.MaxUint8 {
		p.fail(t.pos, "value %d out of range 0..255", t.val)
	}
	return uint8(t.val)
}

func (p *parser) definition() *Definition {
	kw := p.expectIdent()
	switch kw.text {
	case "record", "variant", "request", "reply", "event", "error":
	default:
		p.fail(kw.pos, "expected declaration keyword, found %s", kw)
	}
	name := p.expectIdent()
	d := &Definition{Name: name.text, Pos: kw.pos}
	p.def = d
	defer func() { p.def = nil }()

	switch kw.text {
	case "record":
		d.Items = p.block()
	case "variant":
		d.Variants = p.variants()
	case "request":
		d.Role.Kind = RoleRequest
		p.expectPunct("(")
		d.Role.Major = p.byteValue()
		if p.acceptPunct(",") {
			p.expectKeyword("minor")
			p.expectPunct("=")
			d.Role.Minor = p.byteValue()
			d.Role.HasMinor = true
		}
		p.expectPunct(")")
		if p.isKeyword("errors") {
			p.advance()
			p.expectPunct("(")
			for !p.isPunct(")") {
				d.Role.Errors = append(d.Role.Errors, p.expectIdent().text)
				if !p.acceptPunct(",") {
					break
				}
			}
			p.expectPunct(")")
		}
		if p.acceptPunct("->") {
			d.Role.Reply = p.expectIdent().text
		}
		d.Items = p.optionalBlock()
	case "reply":
		d.Role.Kind = RoleReply
		p.expectKeyword("for")
		d.Role.Request = p.expectIdent().text
		d.Items = p.block()
	case "event":
		d.Role.Kind = RoleEvent
		p.expectPunct("(")
		code := p.peek()
		d.Role.Code = p.byteValue()
		switch {
		case d.Role.Code < 2:
			p.fail(code.pos, "event code %d is reserved for errors and replies", d.Role.Code)
		case d.Role.Code >= 0x80:
			p.fail(code.pos, "event code %d collides with the synthetic bit", d.Role.Code)
		}
		p.expectPunct(")")
		d.Items = p.optionalBlock()
	case "error":
		d.Role.Kind = RoleError
		p.expectPunct("(")
		d.Role.Code = p.byteValue()
		p.expectPunct(")")
	}
	p.acceptPunct(";")
	p.checkDefinition(d)
	return d
}

func (p *parser) optionalBlock() []*Item {
	if p.isPunct("{") {
		return p.block()
	}
	return nil
}

func (p *parser) block() []*Item {
	p.expectPunct("{")
	var items []*Item
	for !p.isPunct("}") {
		if p.peek().kind == tokEOF {
			p.fail(p.peek().pos, "unterminated block")
		}
		items = append(items, p.item())
		if !p.acceptPunct(",") {
			p.acceptPunct(";")
		}
	}
	p.expectPunct("}")
	return items
}

func (p *parser) item() *Item {
	it := &Item{Pos: p.peek().pos}
	for p.acceptPunct("@") {
		m := p.expectIdent()
		switch m.text {
		case "metabyte":
			if it.Metabyte {
				p.fail(m.pos, "duplicate @metabyte marker")
			}
			it.Metabyte = true
		case "sequence":
			if it.Sequence {
				p.fail(m.pos, "duplicate @sequence marker")
			}
			it.Sequence = true
		case "context":
			if it.Context != nil {
				p.fail(m.pos, "duplicate @context marker")
			}
			p.expectPunct("(")
			it.Context = p.expr()
			p.expectPunct(")")
		default:
			p.fail(m.pos, "unknown marker @%s", m.text)
		}
	}

	tok := p.expectIdent()
	switch tok.text {
	case "_":
		it.Kind = ItemUnused
		if p.acceptPunct("[") {
			it.Source = p.expr()
			p.expectPunct("]")
		}
	case "let":
		it.Kind = ItemLet
		it.Name = p.expectIdent().text
		p.expectPunct(":")
		it.Type = p.typeRef()
		p.expectPunct("=")
		it.Source = p.expr()
	default:
		it.Kind = ItemField
		it.Name = tok.text
		p.expectPunct(":")
		it.Type = p.typeRef()
	}
	return it
}

func (p *parser) typeRef() TypeRef {
	t := TypeRef{Name: p.expectIdent().text}
	if p.acceptPunct("<") {
		arg := p.typeRef()
		t.Arg = &arg
		p.expectPunct(">")
	}
	if p.acceptPunct("[") {
		n := p.peek()
		if n.kind != tokInt {
			p.fail(n.pos, "expected array length, found %s", n)
		}
		p.advance()
		if n.val < 1 || n.val > math.MaxUint16 {
			p.fail(n.pos, "array length %d out of range 1..%d", n.val, math.MaxUint16)
		}
		t.Count = int(n.val)
		p.expectPunct("]")
	}
	return t
}

func (p *parser) variants() []*Variant {
	p.expectPunct("{")
	variants := []*Variant{}
	next := 0
	for !p.isPunct("}") {
		name := p.expectIdent()
		v := &Variant{Name: name.text, Pos: name.pos}
		tag := next
		if p.acceptPunct("=") {
			tag = int(p.byteValue())
		}
		if tag > math.MaxUint8 {
			p.fail(name.pos, "discriminant of %s exceeds 255", name.text)
		}
		v.Discriminant = uint8(tag)
		next = tag + 1
		v.Items = p.optionalBlock()
		variants = append(variants, v)
		p.acceptPunct(",")
	}
	end := p.expectPunct("}")
	if len(variants) == 0 {
		p.fail(end.pos, "variant set has no variants")
	}
	return variants
}

func binaryPrec(t token) int {
	if t.kind != tokPunct {
		return 0
	}
	switch t.text {
	case "+", "-":
		return 1
	case "*", "/", "%":
		return 2
	}
	return 0
}

func (p *parser) expr() Expr {
	return p.binary(1)
}

func (p *parser) binary(minPrec int) Expr {
	left := p.operand()
	for {
		t := p.peek()
		prec := binaryPrec(t)
		if prec == 0 || prec < minPrec {
			return left
		}
		p.advance()
		right := p.binary(prec + 1)
		left = &Binary{Op: t.text[0], Left: left, Right: right}
	}
}

func (p *parser) operand() Expr {
	t := p.peek()
	switch {
	case t.kind == tokInt:
		p.advance()
		return &Num{Value: t.val}
	case t.kind == tokPunct && t.text == "(":
		p.advance()
		e := p.expr()
		p.expectPunct(")")
		return e
	case t.kind == tokIdent:
		p.advance()
		if !p.isPunct("(") {
			return &Ref{Name: t.text}
		}
		return p.call(t)
	}
	p.fail(t.pos, "expected formula operand, found %s", t)
	return nil
}

func (p *parser) call(fn token) Expr {
	switch fn.text {
	case "len", "size", "pad":
	default:
		p.fail(fn.pos, "unknown formula function %q", fn.text)
	}
	p.expectPunct("(")
	c := &Call{Func: fn.text}
	for !p.isPunct(")") {
		c.Args = append(c.Args, &Ref{Name: p.expectIdent().text})
		if !p.acceptPunct(",") {
			break
		}
	}
	p.expectPunct(")")
	if fn.text != "pad" && len(c.Args) != 1 {
		p.fail(fn.pos, "%s() takes exactly one name", fn.text)
	}
	return c
}
