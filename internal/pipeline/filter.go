package pipeline

import "github.com/sells-group/portfolio-cli/internal/model"

// Predicates selects a subset of the enriched table. A nil/empty slice or
// range bound means "no constraint", so the zero value selects every row.
type Predicates struct {
	Relationships []string `json:"relationships,omitempty"`
	Advisors      []string `json:"advisors,omitempty"`
	Loyalty       []string `json:"loyalty,omitempty"`
	Genders       []string `json:"genders,omitempty"`

	RiskMin *int `json:"risk_min,omitempty"`
	RiskMax *int `json:"risk_max,omitempty"`
	AgeMin  *int `json:"age_min,omitempty"`
	AgeMax  *int `json:"age_max,omitempty"`
}

// IsEmpty reports whether the predicates constrain nothing.
func (p Predicates) IsEmpty() bool {
	return len(p.Relationships) == 0 && len(p.Advisors) == 0 &&
		len(p.Loyalty) == 0 && len(p.Genders) == 0 &&
		p.RiskMin == nil && p.RiskMax == nil &&
		p.AgeMin == nil && p.AgeMax == nil
}

// Filter returns the rows matching every predicate. It is pure: the input
// slice is never mutated, so filtering is idempotent and repeatable for any
// predicate combination. Empty predicates return a copy of the full table.
func (t *Table) Filter(p Predicates) []model.Enriched {
	return Filter(t.Rows, p)
}

// Filter applies the predicates to an arbitrary slice of enriched rows.
func Filter(rows []model.Enriched, p Predicates) []model.Enriched {
	relSet := toSet(p.Relationships)
	advSet := toSet(p.Advisors)
	loySet := toSet(p.Loyalty)
	genSet := toSet(p.Genders)

	out := make([]model.Enriched, 0, len(rows))
	for _, r := range rows {
		if relSet != nil && !relSet[r.RelationshipLabel] {
			continue
		}
		if advSet != nil && !advSet[r.AdvisorName] {
			continue
		}
		if loySet != nil && !loySet[r.Loyalty] {
			continue
		}
		if genSet != nil && !genSet[r.GenderLabel] {
			continue
		}
		if p.RiskMin != nil && r.RiskWeighting < *p.RiskMin {
			continue
		}
		if p.RiskMax != nil && r.RiskWeighting > *p.RiskMax {
			continue
		}
		if p.AgeMin != nil && r.Age < *p.AgeMin {
			continue
		}
		if p.AgeMax != nil && r.Age > *p.AgeMax {
			continue
		}
		out = append(out, r)
	}
	return out
}

// toSet returns nil for an empty list so "no constraint" is distinguishable
// from "matches nothing".
func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
