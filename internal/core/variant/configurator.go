package variant

import (
	"maps"
	"slices"

	"github.com/niksmo/repair-shop/internal/core/domain"
)

// State is the progress of a configuration session.
type State int

const (
	StateEmpty State = iota
	StatePartial
	StateComplete
	StateUnresolvable
)

var stateNames = [...]string{"empty", "partial", "complete", "unresolvable"}

func (s State) String() string {
	if s < StateEmpty || s > StateUnresolvable {
		return "unknown"
	}
	return stateNames[s]
}

// A Configurator tracks the selection of one configuration session.
//
// Loading a new record set always starts over with an empty selection, so
// records of different brands or models are never mixed.
// A Configurator is not safe for concurrent use.
type Configurator struct {
	brand     string
	model     string
	records   []domain.Record
	selection domain.Selection
}

func NewConfigurator() *Configurator {
	return &Configurator{selection: domain.Selection{}}
}

// Load replaces the record set and clears the selection.
func (c *Configurator) Load(brand, model string, records []domain.Record) {
	c.brand = brand
	c.model = model
	c.records = slices.Clone(records)
	c.selection = domain.Selection{}
}

func (c *Configurator) Brand() string { return c.brand }
func (c *Configurator) Model() string { return c.model }

func (c *Configurator) Records() []domain.Record {
	return c.records
}

// Selection returns a copy of the current selection.
func (c *Configurator) Selection() domain.Selection {
	return maps.Clone(c.selection)
}

func (c *Configurator) Select(k domain.AttributeKey, v string) {
	mustValidKey("Configurator.Select", k)
	c.selection = c.selection.With(k, v)
}

func (c *Configurator) Clear(k domain.AttributeKey) {
	mustValidKey("Configurator.Clear", k)
	c.selection = c.selection.Without(k)
}

func (c *Configurator) Options() map[domain.AttributeKey][]string {
	return Options(c.records, c.selection)
}

func (c *Configurator) RequiredKeys() []domain.AttributeKey {
	return RequiredKeys(c.records, c.selection)
}

func (c *Configurator) Resolve() Resolution {
	return ResolveSelectedRecord(c.records, c.selection, c.RequiredKeys())
}

func (c *Configurator) State() State {
	res := c.Resolve()
	if len(c.selection) == 0 {
		if res.Resolved() {
			return StateComplete
		}
		return StateEmpty
	}
	switch res.Status {
	case StatusResolved:
		return StateComplete
	case StatusIncomplete:
		return StatePartial
	default:
		return StateUnresolvable
	}
}
