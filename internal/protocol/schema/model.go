package schema

import (
	"fmt"
	"strconv"
)

// Pos is a source position in a declaration file.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

type RoleKind int

const (
	RolePlain RoleKind = iota
	RoleRequest
	RoleReply
	RoleEvent
	RoleError
)

func (k RoleKind) String() string {
	switch k {
	case RolePlain:
		return "plain"
	case RoleRequest:
		return "request"
	case RoleReply:
		return "reply"
	case RoleEvent:
		return "event"
	case RoleError:
		return "error"
	default:
		return fmt.Sprintf("role(%d)", int(k))
	}
}

// Role says which protocol message, if any, a definition is.
type Role struct {
	Kind RoleKind

	// Request.
	Major    uint8
	Minor    uint8
	HasMinor bool
	Errors   []string
	Reply    string

	// Reply.
	Request string

	// Event and error.
	Code uint8
}

// Definition is a named record or variant set.
type Definition struct {
	Name     string
	Pos      Pos
	Role     Role
	Items    []*Item
	Variants []*Variant
}

// IsVariantSet reports whether d is a closed set of tagged variants.
func (d *Definition) IsVariantSet() bool {
	return d.Variants != nil
}

// Variant is one member of a variant set.
type Variant struct {
	Name         string
	Pos          Pos
	Discriminant uint8
	Items        []*Item
}

type ItemKind int

const (
	ItemField ItemKind = iota
	ItemLet
	ItemUnused
)

func (k ItemKind) String() string {
	switch k {
	case ItemField:
		return "field"
	case ItemLet:
		return "let"
	case ItemUnused:
		return "unused"
	default:
		return fmt.Sprintf("item(%d)", int(k))
	}
}

// Item is one entry of a record's item sequence.
//
// Fields carry a Type and an optional Context formula. Lets carry a Type and
// the Source formula computing their value. Unused items carry an optional
// Source formula giving the zero-byte count (nil means one byte).
type Item struct {
	Kind     ItemKind
	Name     string
	Pos      Pos
	Type     TypeRef
	Context  Expr
	Source   Expr
	Metabyte bool
	Sequence bool
}

// TypeRef names a type, optionally applied to one type argument. A positive
// Count makes it a fixed-length array of that many elements.
type TypeRef struct {
	Name  string
	Arg   *TypeRef
	Count int
}

func (t TypeRef) String() string {
	s := t.Name
	if t.Arg != nil {
		s += "<" + t.Arg.String() + ">"
	}
	if t.Count > 0 {
		s += "[" + strconv.Itoa(t.Count) + "]"
	}
	return s
}

// MetabyteItem returns the item marked @metabyte, or nil.
func MetabyteItem(items []*Item) *Item {
	for _, it := range items {
		if it.Metabyte {
			return it
		}
	}
	return nil
}

// SequenceItem returns the item marked @sequence, or nil.
func SequenceItem(items []*Item) *Item {
	for _, it := range items {
		if it.Sequence {
			return it
		}
	}
	return nil
}
