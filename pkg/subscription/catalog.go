package subscription

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the static plan catalog. It is immutable once built.
type Catalog struct {
	plans       []Plan
	byID        map[string]int
	byPrice     map[string]int
	defaultPlan string
	warnings    []string
}

// NewCatalog indexes plans. Plan ids and aliases must be unique and defaultPlanID
// must name one of the plans. Missing or shared price ids are not errors; they
// are reported by Warnings.
func NewCatalog(plans []Plan, defaultPlanID string) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, errors.Join(ErrInvalidCatalog, errors.New("no plans defined"))
	}

	c := &Catalog{
		plans:   slices.Clone(plans),
		byID:    make(map[string]int, len(plans)),
		byPrice: make(map[string]int, len(plans)),
	}

	for i, p := range c.plans {
		if p.ID == "" {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("plan #%d has no id", i))
		}
		if p.MonthlyLimit < Unlimited {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("plan %q: monthly limit must be -1 or greater", p.ID))
		}
		for _, key := range append([]string{p.ID}, p.Aliases...) {
			key = strings.ToLower(key)
			if _, dup := c.byID[key]; dup {
				return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("duplicate plan id or alias %q", key))
			}
			c.byID[key] = i
		}

		if p.PriceID == "" {
			c.warnings = append(c.warnings, fmt.Sprintf("plan %q has no provider price id", p.ID))
			continue
		}
		if other, dup := c.byPrice[p.PriceID]; dup {
			c.warnings = append(c.warnings, fmt.Sprintf("plans %q and %q share price id %q", c.plans[other].ID, p.ID, p.PriceID))
			continue
		}
		c.byPrice[p.PriceID] = i
	}

	if _, ok := c.byID[strings.ToLower(defaultPlanID)]; !ok {
		return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("default plan %q is not in the catalog", defaultPlanID))
	}
	c.defaultPlan = defaultPlanID

	return c, nil
}

// LoadCatalog builds the catalog from cfg: plans from the YAML file at cfg.Path
// (or DefaultPlans), price ids and the trial cap from the environment.
func LoadCatalog(cfg CatalogConfig) (*Catalog, error) {
	plans := DefaultPlans()
	if cfg.Path != "" {
		loaded, err := readCatalogFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		plans = loaded
	}

	prices := cfg.prices()
	for i := range plans {
		if price := prices[plans[i].ID]; price != "" {
			plans[i].PriceID = price
		}
		if plans[i].TrialCap > 0 && cfg.TrialCap > 0 {
			plans[i].TrialCap = cfg.TrialCap
		}
	}

	return NewCatalog(plans, cfg.DefaultPlanID)
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

func readCatalogFile(path string) ([]Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("parse %s: %w", path, err))
	}
	return f.Plans, nil
}

// Plan looks a plan up by id or alias, case-insensitively.
func (c *Catalog) Plan(id string) (Plan, bool) {
	i, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i], true
}

// ByPriceID returns the plan sold under the given provider price id.
func (c *Catalog) ByPriceID(priceID string) (Plan, bool) {
	i, ok := c.byPrice[priceID]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i], true
}

// Default returns the plan assigned when an event names no resolvable plan.
func (c *Catalog) Default() Plan {
	p, _ := c.Plan(c.defaultPlan)
	return p
}

// Public returns the self-service plans in catalog order.
func (c *Catalog) Public() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.Public {
			out = append(out, p)
		}
	}
	return out
}

// Warnings lists non-fatal configuration problems found while indexing.
func (c *Catalog) Warnings() []string {
	return slices.Clone(c.warnings)
}

// ResolvePlanID picks the plan for a provider event: the metadata plan id when
// the catalog knows it, then the line-item price, then the default plan.
func (c *Catalog) ResolvePlanID(metadataPlanID, priceID string) string {
	if p, ok := c.Plan(metadataPlanID); ok {
		return p.ID
	}
	if p, ok := c.ByPriceID(priceID); ok {
		return p.ID
	}
	return c.Default().ID
}

// MonthlyLimit returns the monthly message cap for planID, falling back to the
// default plan for ids the catalog no longer knows.
func (c *Catalog) MonthlyLimit(planID string) int {
	if p, ok := c.Plan(planID); ok {
		return p.MonthlyLimit
	}
	return c.Default().MonthlyLimit
}

// SavedChatLimit returns how many conversations planID may keep saved.
// Unknown plans get none.
func (c *Catalog) SavedChatLimit(planID string) int {
	if p, ok := c.Plan(planID); ok {
		return p.SavedChats
	}
	return 0
}
