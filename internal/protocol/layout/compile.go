package layout

import (
	"fmt"

	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

type compiler struct {
	defs     map[string]*schema.Definition
	plans    map[string]*Plan
	visiting map[string]bool
}

// Compile validates defs and compiles one plan per definition.
func Compile(defs []*schema.Definition) (*Set, error) {
	if err := schema.Validate(defs); err != nil {
		return nil, err
	}
	c := &compiler{
		defs:     make(map[string]*schema.Definition, len(defs)),
		plans:    make(map[string]*Plan, len(defs)),
		visiting: make(map[string]bool),
	}
	for _, d := range defs {
		c.defs[d.Name] = d
	}
	set := &Set{plans: c.plans, order: make([]*Plan, 0, len(defs))}
	for _, d := range defs {
		p, err := c.plan(d.Name)
		if err != nil {
			log.Error().Str("definition", d.Name).Err(err).Msg("layout.Compile rejected")
			return nil, err
		}
		set.order = append(set.order, p)
	}
	log.Debug().Int("plans", len(set.order)).Msg("layout.Compile ok")
	return set, nil
}

func (c *compiler) plan(name string) (*Plan, error) {
	if p, ok := c.plans[name]; ok {
		return p, nil
	}
	if c.visiting[name] {
		return nil, &CompileError{Definition: name, Msg: "recursive type"}
	}
	c.visiting[name] = true
	defer delete(c.visiting, name)

	d := c.defs[name]
	p := &Plan{def: d}
	if d.IsVariantSet() {
		if err := c.variants(p); err != nil {
			return nil, err
		}
	} else if err := c.record(p); err != nil {
		return nil, err
	}
	c.plans[name] = p
	log.Debug().
		Str("definition", name).
		Str("role", d.Role.Kind.String()).
		Bool("constant", p.isConstant).
		Int("size", p.constant).
		Msg("layout.Compile plan")
	return p, nil
}

func (c *compiler) record(p *Plan) error {
	d := p.def
	body, size, constant, err := c.block(d, d.Items)
	if err != nil {
		return err
	}
	p.body = body

	for _, st := range body.steps {
		switch {
		case st.item.Metabyte:
			if n, ok := st.typ.FixedSize(); !ok || n != 1 {
				return &CompileError{Definition: d.Name, Item: st.name, Msg: fmt.Sprintf("@metabyte item must be one byte wide, %s is not", st.typ.Name())}
			}
			p.metabyte = st
		case st.item.Sequence:
			if st.typ.Name() != "u16" {
				return &CompileError{Definition: d.Name, Item: st.name, Msg: "@sequence item must be u16"}
			}
			p.sequence = st
		}
	}

	switch d.Role.Kind {
	case schema.RoleRequest:
		p.header = RequestHeaderSize
	case schema.RoleReply:
		p.header = ReplyHeaderSize
	case schema.RoleEvent:
		p.header = BareEventSize
		if p.sequence != nil {
			p.header = EventHeaderSize
		}
	}

	if constant {
		total, err := p.finish(p.header + size)
		if err != nil {
			return &CompileError{Definition: d.Name, Msg: err.Error()}
		}
		p.constant, p.isConstant = total, true
	}
	return nil
}

func (c *compiler) variants(p *Plan) error {
	d := p.def
	p.byName = make(map[string]*variantPlan, len(d.Variants))
	p.byTag = make(map[uint8]*variantPlan, len(d.Variants))
	sizes := make(map[int]bool)
	allConstant := true
	for _, v := range d.Variants {
		body, size, constant, err := c.block(d, v.Items)
		if err != nil {
			return err
		}
		if _, reserved := body.index[VariantKey]; reserved {
			return &CompileError{Definition: d.Name, Item: VariantKey, Msg: "item name is reserved in variants"}
		}
		vp := &variantPlan{block: body, name: v.Name, tag: v.Discriminant}
		p.variants = append(p.variants, vp)
		p.byName[v.Name] = vp
		p.byTag[v.Discriminant] = vp
		allConstant = allConstant && constant
		sizes[size] = true
	}
	if allConstant && len(sizes) == 1 {
		for size := range sizes {
			p.constant, p.isConstant = 1+size, true
		}
	}
	return nil
}

// block compiles one item sequence and reports the summed size of its
// non-header steps when that size is known at compile time.
func (c *compiler) block(d *schema.Definition, items []*schema.Item) (block, int, bool, error) {
	b := block{index: make(map[string]*step, len(items))}
	size, constant := 0, true
	for _, it := range items {
		st := &step{kind: it.Kind, name: it.Name, item: it, header: it.Metabyte || it.Sequence}
		switch it.Kind {
		case schema.ItemField:
			typ, err := c.resolve(d, it, it.Type)
			if err != nil {
				return block{}, 0, false, err
			}
			_, contextual := typ.(ContextualType)
			switch {
			case contextual && it.Context == nil:
				return block{}, 0, false, &CompileError{Definition: d.Name, Item: it.Name, Msg: fmt.Sprintf("%s requires @context", typ.Name())}
			case !contextual && it.Context != nil:
				return block{}, 0, false, &CompileError{Definition: d.Name, Item: it.Name, Msg: fmt.Sprintf("%s does not take @context", typ.Name())}
			}
			st.typ = typ
			b.fields++
			if n, ok := typ.FixedSize(); ok && !contextual {
				if !st.header {
					size += n
				}
			} else {
				constant = false
			}
		case schema.ItemLet:
			typ, err := c.resolve(d, it, it.Type)
			if err != nil {
				return block{}, 0, false, err
			}
			if _, ok := typ.(integerType); !ok {
				return block{}, 0, false, &CompileError{Definition: d.Name, Item: it.Name, Msg: fmt.Sprintf("let must be a fixed-width integer, not %s", typ.Name())}
			}
			st.typ = typ
			constant = false
		case schema.ItemUnused:
			switch src := it.Source.(type) {
			case nil:
				size++
			case *schema.Num:
				size += int(src.Value)
			default:
				constant = false
			}
		}
		b.steps = append(b.steps, st)
		if it.Kind != schema.ItemUnused {
			b.index[it.Name] = st
		}
	}
	return b, size, constant, nil
}

func (c *compiler) resolve(d *schema.Definition, it *schema.Item, ref schema.TypeRef) (Type, error) {
	fail := func(format string, args ...any) (Type, error) {
		return nil, &CompileError{Definition: d.Name, Item: it.Name, Msg: fmt.Sprintf(format, args...)}
	}
	if ref.Count > 0 {
		elemRef := ref
		elemRef.Count = 0
		if elemRef.Name == "bytes" && elemRef.Arg == nil {
			return fixedBytesType{n: ref.Count}, nil
		}
		elem, err := c.resolve(d, it, elemRef)
		if err != nil {
			return nil, err
		}
		re, ok := elem.(ReadableType)
		if _, fixed := elem.FixedSize(); !ok || !fixed {
			return fail("array element %s has no fixed size", elem.Name())
		}
		return arrayType{elem: re, n: ref.Count}, nil
	}
	switch ref.Name {
	case "option", "any":
		if ref.Arg == nil {
			return fail("%s needs a type argument", ref.Name)
		}
		pair, ok := sentinels[ref.Arg.Name]
		if !ok || ref.Arg.Arg != nil {
			return fail("%s: %s has no sentinel code", ref, ref.Arg)
		}
		if ref.Name == "option" {
			return pair.option, nil
		}
		return pair.anyOr, nil
	case "list":
		if ref.Arg == nil {
			return fail("list needs an element type")
		}
		elem, err := c.resolve(d, it, *ref.Arg)
		if err != nil {
			return nil, err
		}
		re, ok := elem.(ReadableType)
		if _, contextual := elem.(ContextualType); !ok || contextual {
			return fail("list element %s does not delimit itself", elem.Name())
		}
		return listType{elem: re}, nil
	}
	if ref.Arg != nil {
		return fail("%s takes no type argument", ref.Name)
	}
	if t, ok := builtins[ref.Name]; ok {
		return t, nil
	}
	target, ok := c.defs[ref.Name]
	if !ok {
		return fail("unknown type %q", ref.Name)
	}
	if target.Role.Kind != schema.RolePlain {
		return fail("%s is a %s, not a plain record or variant set", ref.Name, target.Role.Kind)
	}
	return c.plan(ref.Name)
}
