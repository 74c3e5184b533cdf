package schema

// checkDefinition enforces the rules that only need one definition in view.
// Violations are reported at the declaration's position.
func (p *parser) checkDefinition(d *Definition) {
	if !d.IsVariantSet() {
		p.checkItems(d, d.Role.Kind, d.Items)
		return
	}
	names := make(map[string]bool, len(d.Variants))
	tags := make(map[uint8]string, len(d.Variants))
	for _, v := range d.Variants {
		if names[v.Name] {
			p.fail(d.Pos, "duplicate variant %q", v.Name)
		}
		names[v.Name] = true
		if prev, dup := tags[v.Discriminant]; dup {
			p.fail(d.Pos, "variants %q and %q share discriminant %d", prev, v.Name, v.Discriminant)
		}
		tags[v.Discriminant] = v.Name
		p.checkItems(d, RolePlain, v.Items)
	}
}

func (p *parser) checkItems(d *Definition, role RoleKind, items []*Item) {
	declared := make(map[string]int, len(items))
	for i, it := range items {
		if it.Kind == ItemUnused {
			continue
		}
		if _, dup := declared[it.Name]; dup {
			p.fail(d.Pos, "duplicate item name %q", it.Name)
		}
		declared[it.Name] = i
	}

	metabytes, sequences := 0, 0
	for i, it := range items {
		if it.Metabyte {
			metabytes++
			switch {
			case metabytes > 1:
				p.fail(d.Pos, "more than one @metabyte item")
			case it.Kind == ItemUnused:
				p.fail(d.Pos, "@metabyte on an unused item")
			case role == RolePlain || role == RoleError:
				p.fail(d.Pos, "@metabyte outside a request, reply or event")
			case role == RoleRequest && d.Role.HasMinor:
				p.fail(d.Pos, "@metabyte in a request with a minor opcode")
			}
		}
		if it.Sequence {
			sequences++
			switch {
			case role != RoleReply && role != RoleEvent:
				p.fail(d.Pos, "@sequence outside a reply or event")
			case it.Kind != ItemField:
				p.fail(d.Pos, "@sequence on %s item", it.Kind)
			case it.Metabyte:
				p.fail(d.Pos, "item %q marked both @metabyte and @sequence", it.Name)
			case sequences > 1:
				p.fail(d.Pos, "more than one @sequence item")
			}
		}
		if it.Context != nil && it.Kind != ItemField {
			p.fail(d.Pos, "@context on %s item", it.Kind)
		}

		switch it.Kind {
		case ItemField:
			p.checkRefs(d, items, declared, i, it.Context, false)
		case ItemUnused:
			p.checkRefs(d, items, declared, i, it.Source, false)
		case ItemLet:
			p.checkRefs(d, items, declared, i, it.Source, true)
		}
	}

	if role == RoleReply && sequences == 0 {
		p.fail(d.Pos, "reply without a @sequence item")
	}
	if role == RoleEvent && metabytes > 0 && sequences == 0 {
		p.fail(d.Pos, "@metabyte in an event without a @sequence item")
	}
}

// checkRefs enforces the reference rules for the formula of items[index].
// Context and unused formulas see only earlier items. Let formulas see every
// field and earlier lets, and may not read the running counter.
func (p *parser) checkRefs(d *Definition, items []*Item, declared map[string]int, index int, e Expr, isLet bool) {
	Walk(e, func(x Expr) {
		switch x := x.(type) {
		case *Call:
			if isLet && x.Func == "pad" && len(x.Args) == 0 {
				p.fail(d.Pos, "pad() inside let %q", items[index].Name)
			}
		case *Ref:
			j, ok := declared[x.Name]
			if !ok {
				p.fail(d.Pos, "undeclared name %q", x.Name)
			}
			if isLet {
				if items[j].Kind == ItemLet && j >= index {
					p.fail(d.Pos, "let %q references later let %q", items[index].Name, x.Name)
				}
				return
			}
			if j >= index {
				p.fail(d.Pos, "forward reference to %q", x.Name)
			}
		}
	})
}
