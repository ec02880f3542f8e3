package plan

import (
	errors "github.com/frahmantamala/credit-marketplace/internal"
)

const (
	Basic    = "Basic"
	Advanced = "Advanced"
	Business = "Business"
)

// Plan is a named bundle of credits sold at a fixed price in major currency units.
type Plan struct {
	ID          string `json:"id"`
	Credits     int64  `json:"credits"`
	Amount      int64  `json:"amount"`
	Description string `json:"desc"`
}

// Catalog is the only source of plan pricing.
type Catalog struct {
	plans []Plan
	index map[string]Plan
}

func NewCatalog(plans ...Plan) *Catalog {
	c := &Catalog{
		plans: make([]Plan, 0, len(plans)),
		index: make(map[string]Plan, len(plans)),
	}
	for _, p := range plans {
		c.plans = append(c.plans, p)
		c.index[p.ID] = p
	}
	return c
}

func DefaultCatalog() *Catalog {
	return NewCatalog(
		Plan{ID: Basic, Credits: 100, Amount: 10, Description: "Best for personal use."},
		Plan{ID: Advanced, Credits: 750, Amount: 50, Description: "Best for business use."},
		Plan{ID: Business, Credits: 5000, Amount: 250, Description: "Best for enterprise use."},
	)
}

// Lookup is case sensitive.
func (c *Catalog) Lookup(id string) (Plan, error) {
	p, ok := c.index[id]
	if !ok {
		return Plan{}, errors.ErrUnknownPlan
	}
	return p, nil
}

func (c *Catalog) All() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
