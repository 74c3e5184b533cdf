package layout

import (
	"fmt"
	"sort"

	"github.com/danmuck/xwire/internal/protocol/schema"
)

// Coerce converts loosely typed input, such as a decoded TOML table, into the
// canonical value Encode accepts. Variant sets read the variant name from
// VariantKey.
func (p *Plan) Coerce(raw any) (any, error) {
	if p.variants != nil {
		return p.coerceVariant(raw)
	}
	m, err := p.rawFields(raw)
	if err != nil {
		return nil, err
	}
	return coerceBlock(p.def.Name, &p.body, m, "")
}

func (p *Plan) coerceVariant(raw any) (any, error) {
	if v, ok := raw.(Variant); ok {
		vp, ok := p.byName[v.Name]
		if !ok {
			return nil, &ValueError{Definition: p.def.Name, Reason: fmt.Sprintf("unknown variant %q", v.Name)}
		}
		fields, err := coerceBlock(p.def.Name, &vp.block, v.Fields, "")
		if err != nil {
			return nil, err
		}
		return Variant{Name: v.Name, Fields: fields}, nil
	}
	m, err := p.rawFields(raw)
	if err != nil {
		return nil, err
	}
	name, ok := m[VariantKey].(string)
	if !ok {
		return nil, &ValueError{Definition: p.def.Name, Field: VariantKey, Reason: "missing variant name"}
	}
	vp, ok := p.byName[name]
	if !ok {
		return nil, &ValueError{Definition: p.def.Name, Reason: fmt.Sprintf("unknown variant %q", name)}
	}
	fields, err := coerceBlock(p.def.Name, &vp.block, m, VariantKey)
	if err != nil {
		return nil, err
	}
	return Variant{Name: name, Fields: fields}, nil
}

func (p *Plan) rawFields(raw any) (map[string]any, error) {
	switch x := raw.(type) {
	case nil:
		return nil, nil
	case Fields:
		return x, nil
	case map[string]any:
		return x, nil
	}
	return nil, &ValueError{Definition: p.def.Name, Want: "table", Got: raw}
}

func coerceBlock(def string, blk *block, m map[string]any, skip string) (Fields, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == skip {
			continue
		}
		if st, ok := blk.index[k]; !ok || st.kind != schema.ItemField {
			return nil, &ValueError{Definition: def, Field: k, Reason: "unknown field"}
		}
	}
	if blk.fields == 0 {
		return nil, nil
	}

	out := make(Fields, blk.fields)
	for _, st := range blk.steps {
		if st.kind != schema.ItemField {
			continue
		}
		raw, ok := m[st.name]
		if !ok {
			return nil, &ValueError{Definition: def, Field: st.name, Reason: "missing field"}
		}
		v, err := st.typ.Coerce(raw)
		if err != nil {
			return nil, annotate(err, def, st.name)
		}
		out[st.name] = v
	}
	return out, nil
}
