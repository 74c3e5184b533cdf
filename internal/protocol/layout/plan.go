package layout

import (
	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/danmuck/xwire/internal/protocol/wire"
)

// Header sizes by role.
const (
	RequestHeaderSize  = 4
	ReplyHeaderSize    = 8
	EventHeaderSize    = 4
	BareEventSize      = 1
	ReplyMinSize       = 32
)

const replyMarker uint8 = 1

type step struct {
	kind   schema.ItemKind
	name   string
	item   *schema.Item
	typ    Type
	header bool
}

// block is the step program of one item sequence.
type block struct {
	steps  []*step
	index  map[string]*step
	fields int
}

type variantPlan struct {
	block
	name string
	tag  uint8
}

// Plan is the compiled codec of one definition. A Plan is also a Type, so
// plain records and variant sets nest inside other definitions.
type Plan struct {
	def        *schema.Definition
	body       block
	variants   []*variantPlan
	byName     map[string]*variantPlan
	byTag      map[uint8]*variantPlan
	header     int
	metabyte   *step
	sequence   *step
	constant   int
	isConstant bool
}

func (p *Plan) Name() string { return p.def.Name }

// Definition returns the schema definition the plan was compiled from.
func (p *Plan) Definition() *schema.Definition { return p.def }

func (p *Plan) Role() schema.Role { return p.def.Role }

func (p *Plan) FixedSize() (int, bool) { return p.ConstantSize() }

// Write encodes v at the end of w. See EncodeTo.
func (p *Plan) Write(w *wire.Writer, v any) error { return p.EncodeTo(w, v) }

// Read decodes one value from r. See DecodeFrom.
func (p *Plan) Read(r *wire.Reader) (any, error) { return p.DecodeFrom(r) }

// Set holds every compiled plan of a schema, keyed by definition name.
type Set struct {
	plans map[string]*Plan
	order []*Plan
}

func (s *Set) Plan(name string) (*Plan, bool) {
	p, ok := s.plans[name]
	return p, ok
}

// Plans returns the plans in declaration order.
func (s *Set) Plans() []*Plan {
	out := make([]*Plan, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set) Len() int { return len(s.order) }
