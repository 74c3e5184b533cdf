package protocol

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/danmuck/xwire/internal/observability"
	"github.com/danmuck/xwire/internal/protocol/layout"
	"github.com/danmuck/xwire/internal/protocol/schema"
	"github.com/rs/zerolog"
)

// CoreSchemaName is the file name reported in positions inside the embedded
// core schema.
const CoreSchemaName = "core.xwire"

//go:embed core.xwire
var coreSchema []byte

type opcodeKey struct {
	major uint8
	minor int
}

// Catalog resolves definition names and opcodes to compiled plans. It is
// immutable after construction and safe for concurrent use.
type Catalog struct {
	set        *layout.Set
	requests   map[opcodeKey]*layout.Plan
	withMinor  map[uint8]bool
	events     map[uint8]*layout.Plan
	errorNames map[uint8]string
	metrics    *observability.CodecMetrics
	logger     zerolog.Logger
}

type Option func(*Catalog)

// WithMetrics records every encode and decode on m.
func WithMetrics(m *observability.CodecMetrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// CoreSource returns the text of the embedded core schema.
func CoreSource() []byte {
	out := make([]byte, len(coreSchema))
	copy(out, coreSchema)
	return out
}

func CoreDefinitions() ([]*schema.Definition, error) {
	return schema.Parse(CoreSchemaName, coreSchema)
}

// LoadCore builds a catalog of the embedded core schema only.
func LoadCore(opts ...Option) (*Catalog, error) {
	defs, err := CoreDefinitions()
	if err != nil {
		return nil, err
	}
	return NewCatalog(defs, opts...)
}

// LoadCatalog parses every schema file in paths, optionally after the core
// schema, and compiles them as one set.
func LoadCatalog(paths []string, includeCore bool, opts ...Option) (*Catalog, error) {
	var defs []*schema.Definition
	if includeCore {
		core, err := CoreDefinitions()
		if err != nil {
			return nil, err
		}
		defs = append(defs, core...)
	}
	for _, path := range paths {
		parsed, err := schema.ParseFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, parsed...)
	}
	return NewCatalog(defs, opts...)
}

func NewCatalog(defs []*schema.Definition, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		requests:   make(map[opcodeKey]*layout.Plan),
		withMinor:  make(map[uint8]bool),
		events:     make(map[uint8]*layout.Plan),
		errorNames: make(map[uint8]string),
		logger:     observability.Logger("protocol"),
	}
	for _, opt := range opts {
		opt(c)
	}
	set, err := layout.Compile(defs)
	if err != nil {
		c.logger.Error().Err(err).Msg("catalog compile failed")
		return nil, err
	}
	c.set = set
	for _, p := range set.Plans() {
		role := p.Role()
		switch role.Kind {
		case schema.RoleRequest:
			key := opcodeKey{major: role.Major, minor: -1}
			if role.HasMinor {
				key.minor = int(role.Minor)
				c.withMinor[role.Major] = true
			}
			c.requests[key] = p
		case schema.RoleEvent:
			c.events[role.Code] = p
		case schema.RoleError:
			c.errorNames[role.Code] = p.Name()
		}
	}
	c.metrics.SetPlans(set.Len())
	c.logger.Debug().
		Int("plans", set.Len()).
		Int("requests", len(c.requests)).
		Int("events", len(c.events)).
		Int("errors", len(c.errorNames)).
		Msg("catalog ready")
	return c, nil
}

func (c *Catalog) Plan(name string) (*layout.Plan, bool) {
	return c.set.Plan(name)
}

// Plans returns every compiled plan in declaration order.
func (c *Catalog) Plans() []*layout.Plan {
	return c.set.Plans()
}

func (c *Catalog) Len() int { return c.set.Len() }

// ExpectsReply reports whether request declares a reply.
func (c *Catalog) ExpectsReply(request string) bool {
	p, ok := c.set.Plan(request)
	return ok && p.Role().Kind == schema.RoleRequest && p.Role().Reply != ""
}

// ErrorName returns the error definition declared for code.
func (c *Catalog) ErrorName(code uint8) (string, bool) {
	name, ok := c.errorNames[code]
	return name, ok
}

func (c *Catalog) lookup(name string) (*layout.Plan, error) {
	p, ok := c.set.Plan(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefinition, name)
	}
	return p, nil
}

func (c *Catalog) lookupRole(name string, kind schema.RoleKind) (*layout.Plan, error) {
	p, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	if p.Role().Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrRoleMismatch, name, p.Role().Kind, kind)
	}
	return p, nil
}

func (c *Catalog) observe(op, name string, n int, start time.Time, err error) {
	elapsed := time.Since(start)
	c.metrics.Observe(op, name, n, elapsed, err)
	if err != nil {
		observability.LogCodec(c.logger, op, name, n, elapsed, err)
	}
}
