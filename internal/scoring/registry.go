// Package scoring turns sparse daily category observations into windowed,
// normalized, weighted scores and a single priority recommendation.
//
// Everything in this package is pure computation. Reads and writes happen in
// the engine; the functions here take values in and hand values back.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/neonvoidvibes/align/internal/config"
)

// weightTolerance is how far the weight total may drift from 1.0.
const weightTolerance = 1e-6

// Category is one tracked life area.
type Category struct {
	ID          string   `json:"id"`
	Unit        string   `json:"unit,omitempty"`
	Description string   `json:"description,omitempty"`
	Target      float64  `json:"target"`
	Weight      float64  `json:"weight"`
	DerivedFrom []string `json:"derived_from,omitempty"`
}

// Derived reports whether the category is computed from other categories
// instead of being observed.
func (c Category) Derived() bool {
	return c.DerivedFrom != nil
}

// Registry is the validated, read-only category table.
type Registry struct {
	categories  []Category
	byID        map[string]Category
	observed    []string
	derived     []string // dependency order: constituents before composites
	levers      []string
	fallback    string
	decayFactor float64
	loc         *time.Location
}

// NewRegistry validates cfg and builds a Registry from it.
func NewRegistry(cfg config.ScoringConfig) (*Registry, error) {
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("no categories configured")
	}
	if math.IsNaN(cfg.DecayFactor) || cfg.DecayFactor <= 0 || cfg.DecayFactor >= 1 {
		return nil, fmt.Errorf("decay_factor %v must be in (0,1)", cfg.DecayFactor)
	}

	tz := cfg.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}

	r := &Registry{
		byID:        make(map[string]Category, len(cfg.Categories)),
		decayFactor: cfg.DecayFactor,
		loc:         loc,
	}

	var weightSum float64
	for _, cc := range cfg.Categories {
		if cc.ID == "" {
			return nil, fmt.Errorf("category with empty id")
		}
		if _, dup := r.byID[cc.ID]; dup {
			return nil, fmt.Errorf("duplicate category %q", cc.ID)
		}
		if cc.Target < 0 || math.IsNaN(cc.Target) || math.IsInf(cc.Target, 0) {
			return nil, fmt.Errorf("category %q: target must be positive", cc.ID)
		}
		if math.IsNaN(cc.Weight) || cc.Weight < 0 || cc.Weight > 1 {
			return nil, fmt.Errorf("category %q: weight %v out of range [0,1]", cc.ID, cc.Weight)
		}
		c := Category{
			ID:          cc.ID,
			Unit:        cc.Unit,
			Description: cc.Description,
			Target:      cc.Target,
			Weight:      cc.Weight,
			DerivedFrom: cc.DerivedFrom,
		}
		if c.Target == 0 {
			c.Target = 1.0
		}
		r.categories = append(r.categories, c)
		r.byID[c.ID] = c
		weightSum += c.Weight
	}

	if !(math.Abs(weightSum-1.0) <= weightTolerance) {
		return nil, fmt.Errorf("category weights sum to %v, want 1.0", weightSum)
	}

	for _, c := range r.categories {
		for _, dep := range c.DerivedFrom {
			d, ok := r.byID[dep]
			if !ok {
				return nil, fmt.Errorf("category %q derives from unknown category %q", c.ID, dep)
			}
			// Composite-only weighting: a constituent's contribution is already
			// carried by its composite.
			if d.Weight != 0 {
				return nil, fmt.Errorf("category %q is a constituent of %q and must have weight 0", dep, c.ID)
			}
		}
	}

	order, err := derivationOrder(r.categories, r.byID)
	if err != nil {
		return nil, err
	}
	r.derived = order

	for _, c := range r.categories {
		if !c.Derived() {
			r.observed = append(r.observed, c.ID)
		}
	}
	sort.Strings(r.observed)

	if len(cfg.CoreLevers) == 0 {
		return nil, fmt.Errorf("no core levers configured")
	}
	seen := make(map[string]bool, len(cfg.CoreLevers))
	for _, id := range cfg.CoreLevers {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("core lever %q is not a category", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("core lever %q listed twice", id)
		}
		seen[id] = true
	}
	r.levers = append([]string(nil), cfg.CoreLevers...)

	r.fallback = cfg.DefaultPriority
	if r.fallback == "" {
		r.fallback = r.levers[0]
	}
	if _, ok := r.byID[r.fallback]; !ok {
		return nil, fmt.Errorf("default priority %q is not a category", r.fallback)
	}

	return r, nil
}

// derivationOrder returns derived category ids so that every composite comes
// after any composite it depends on. It fails on cycles.
func derivationOrder(cats []Category, byID map[string]Category) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(cats))
	var order []string

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("category cycle: %v", append(path, id))
		}
		state[id] = visiting
		for _, dep := range byID[id].DerivedFrom {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = done
		if byID[id].Derived() {
			order = append(order, id)
		}
		return nil
	}

	for _, c := range cats {
		if err := visit(c.ID, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Categories returns every category in configuration order.
func (r *Registry) Categories() []Category {
	return append([]Category(nil), r.categories...)
}

// Get looks up a category by id.
func (r *Registry) Get(id string) (Category, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Observed returns the ids of categories read from raw storage, sorted.
func (r *Registry) Observed() []string {
	return append([]string(nil), r.observed...)
}

// Derived returns composite category ids in evaluation order.
func (r *Registry) Derived() []string {
	return append([]string(nil), r.derived...)
}

// CoreLevers returns the priority candidates in tie-break order.
func (r *Registry) CoreLevers() []string {
	return append([]string(nil), r.levers...)
}

func (r *Registry) DefaultPriority() string { return r.fallback }

func (r *Registry) DecayFactor() float64 { return r.decayFactor }

// Location is the reference time zone used to assign messages to days.
func (r *Registry) Location() *time.Location { return r.loc }
