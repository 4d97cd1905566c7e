package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// Summary holds the dashboard KPIs for a table slice. All values are pure
// functions of the input rows.
type Summary struct {
	ClientCount int `json:"client_count"`

	// PctOfFirm is the slice's share of the firm-wide client count.
	PctOfFirm float64 `json:"pct_of_firm"`

	TotalAUM         decimal.Decimal `json:"total_aum"`
	AvgRiskWeighting float64         `json:"avg_risk_weighting"`

	// AvgTenureYears is the mean over rows with a known tenure.
	AvgTenureYears float64 `json:"avg_tenure_years"`

	// TotalLoans and LoanExposure describe the slice's lending book.
	// Exposure is loans / (aum + loans), zero when both sides are empty.
	TotalLoans   decimal.Decimal `json:"total_loans"`
	LoanExposure float64         `json:"loan_exposure"`
}

// Summarize computes the KPI summary for a slice. firmTotal is the row count
// of the full enriched table; zero disables the percentage.
func Summarize(rows []model.Enriched, firmTotal int) Summary {
	s := Summary{
		ClientCount: len(rows),
		TotalAUM:    decimal.Zero,
		TotalLoans:  decimal.Zero,
	}
	if firmTotal > 0 {
		s.PctOfFirm = float64(len(rows)) / float64(firmTotal) * 100
	}
	if len(rows) == 0 {
		return s
	}

	var riskSum int
	var tenureSum float64
	var tenureN int
	for _, r := range rows {
		s.TotalAUM = s.TotalAUM.Add(r.TotalAUM)
		s.TotalLoans = s.TotalLoans.Add(r.LoanBalance)
		riskSum += r.RiskWeighting
		if r.TenureYears != nil {
			tenureSum += *r.TenureYears
			tenureN++
		}
	}
	s.AvgRiskWeighting = float64(riskSum) / float64(len(rows))
	if tenureN > 0 {
		s.AvgTenureYears = tenureSum / float64(tenureN)
	}
	if denom := s.TotalAUM.Add(s.TotalLoans); denom.IsPositive() {
		s.LoanExposure, _ = s.TotalLoans.Div(denom).Float64()
	}
	return s
}

// AdvisorSummary aggregates one advisor's book of business.
type AdvisorSummary struct {
	Advisor     string          `json:"advisor"`
	ClientCount int             `json:"client_count"`
	TotalAUM    decimal.Decimal `json:"total_aum"`
	AvgRisk     float64         `json:"avg_risk"`
	AvgIncome   decimal.Decimal `json:"avg_income"`
}

// AdvisorBreakdown groups rows by advisor name, sorted by total AUM
// descending (ties broken by name for determinism).
func AdvisorBreakdown(rows []model.Enriched) []AdvisorSummary {
	type acc struct {
		count  int
		aum    decimal.Decimal
		risk   int
		income decimal.Decimal
	}
	byAdvisor := make(map[string]*acc)
	for _, r := range rows {
		a, ok := byAdvisor[r.AdvisorName]
		if !ok {
			a = &acc{aum: decimal.Zero, income: decimal.Zero}
			byAdvisor[r.AdvisorName] = a
		}
		a.count++
		a.aum = a.aum.Add(r.TotalAUM)
		a.risk += r.RiskWeighting
		a.income = a.income.Add(r.EstimatedIncome)
	}

	out := make([]AdvisorSummary, 0, len(byAdvisor))
	for name, a := range byAdvisor {
		n := decimal.NewFromInt(int64(a.count))
		out = append(out, AdvisorSummary{
			Advisor:     name,
			ClientCount: a.count,
			TotalAUM:    a.aum,
			AvgRisk:     float64(a.risk) / float64(a.count),
			AvgIncome:   a.income.Div(n).Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TotalAUM.Equal(out[j].TotalAUM) {
			return out[i].TotalAUM.GreaterThan(out[j].TotalAUM)
		}
		return out[i].Advisor < out[j].Advisor
	})
	return out
}

// RelationshipGenderCount is a client count for one relationship × gender
// cell, feeding the segmentation chart.
type RelationshipGenderCount struct {
	Relationship string `json:"relationship"`
	Gender       string `json:"gender"`
	Count        int    `json:"count"`
}

// RelationshipGenderCounts groups rows by relationship label and gender
// label, sorted by relationship then gender.
func RelationshipGenderCounts(rows []model.Enriched) []RelationshipGenderCount {
	type cell struct{ rel, gen string }
	counts := make(map[cell]int)
	for _, r := range rows {
		counts[cell{r.RelationshipLabel, r.GenderLabel}]++
	}

	out := make([]RelationshipGenderCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, RelationshipGenderCount{
			Relationship: c.rel,
			Gender:       c.gen,
			Count:        n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relationship != out[j].Relationship {
			return out[i].Relationship < out[j].Relationship
		}
		return out[i].Gender < out[j].Gender
	})
	return out
}

// AssetAllocationCell is the total value held in one asset type within one
// banking relationship, feeding the stacked allocation chart.
type AssetAllocationCell struct {
	AssetType    string          `json:"asset_type"`
	Relationship string          `json:"relationship"`
	Value        decimal.Decimal `json:"value"`
}

// AssetAllocation sums each configured asset column per relationship label.
// Cells keep the configured column order, with relationships sorted within
// each asset type.
func AssetAllocation(rows []model.Enriched, assetColumns []string) []AssetAllocationCell {
	type cell struct{ asset, rel string }
	sums := make(map[cell]decimal.Decimal)
	for _, r := range rows {
		for _, col := range assetColumns {
			c := cell{col, r.RelationshipLabel}
			sums[c] = sums[c].Add(r.Assets[col])
		}
	}

	order := make(map[string]int, len(assetColumns))
	for i, col := range assetColumns {
		order[col] = i
	}
	out := make([]AssetAllocationCell, 0, len(sums))
	for c, v := range sums {
		out = append(out, AssetAllocationCell{
			AssetType:    c.asset,
			Relationship: c.rel,
			Value:        v,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetType != out[j].AssetType {
			return order[out[i].AssetType] < order[out[j].AssetType]
		}
		return out[i].Relationship < out[j].Relationship
	})
	return out
}

// FilterOptions enumerates the distinct values for each dashboard control.
type FilterOptions struct {
	Relationships []string `json:"relationships"`
	Advisors      []string `json:"advisors"`
	Loyalty       []string `json:"loyalty"`
	Genders       []string `json:"genders"`
	RiskLevels    []int    `json:"risk_levels"`
	AgeMin        int      `json:"age_min"`
	AgeMax        int      `json:"age_max"`
}

// Options computes the filter option lists from the full table.
func Options(rows []model.Enriched) FilterOptions {
	rels := make(map[string]bool)
	advs := make(map[string]bool)
	loys := make(map[string]bool)
	gens := make(map[string]bool)
	risks := make(map[int]bool)

	opts := FilterOptions{}
	for i, r := range rows {
		rels[r.RelationshipLabel] = true
		advs[r.AdvisorName] = true
		loys[r.Loyalty] = true
		gens[r.GenderLabel] = true
		risks[r.RiskWeighting] = true
		if i == 0 || r.Age < opts.AgeMin {
			opts.AgeMin = r.Age
		}
		if r.Age > opts.AgeMax {
			opts.AgeMax = r.Age
		}
	}

	opts.Relationships = sortedKeys(rels)
	opts.Advisors = sortedKeys(advs)
	opts.Loyalty = sortedKeys(loys)
	opts.Genders = sortedKeys(gens)
	for r := range risks {
		opts.RiskLevels = append(opts.RiskLevels, r)
	}
	sort.Ints(opts.RiskLevels)
	return opts
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
