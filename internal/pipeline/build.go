// Package pipeline builds the enriched client table and exposes the pure
// filtering and aggregation functions the dashboard layer consumes.
package pipeline

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/portfolio-cli/internal/dataset"
	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/schema"
)

// daysPerYear converts a tenure duration to calendar years.
const daysPerYear = 365.25

// Table is one load's enriched rows plus its quality report. It is built
// once per load and treated as immutable afterwards: filtering and metrics
// never mutate it.
type Table struct {
	Rows     []model.Enriched    `json:"rows"`
	Quality  model.QualityReport `json:"quality"`
	LoadedAt time.Time           `json:"loaded_at"`
}

// Build reads every source table, left-joins the fact table to each
// dimension, and derives total_aum, tenure_years, and loan_to_value.
//
// The joins preserve left cardinality: every fact row appears exactly once in
// the result, with dimension fallback labels on unmatched keys. All
// data-quality fallbacks are counted in the returned quality report.
func Build(ctx context.Context, s *schema.Schema) (*Table, error) {
	var (
		fact         *dataset.FactResult
		gender       *dataset.Dimension
		advisor      *dataset.Dimension
		relationship *dataset.Dimension
	)

	// The four sources are independent files; read them concurrently. The
	// join and derivation below stay synchronous and deterministic.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fact, err = dataset.LoadFact(s)
		return err
	})
	g.Go(func() (err error) {
		gender, err = dataset.LoadDimension(schema.DimGender, s.Gender)
		return err
	})
	g.Go(func() (err error) {
		advisor, err = dataset.LoadDimension(schema.DimAdvisor, s.Advisor)
		return err
	})
	g.Go(func() (err error) {
		relationship, err = dataset.LoadDimension(schema.DimRelationship, s.Relationship)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	ref := s.ReferenceTime(now)

	t := &Table{
		Rows:     make([]model.Enriched, 0, len(fact.Clients)),
		LoadedAt: now,
	}
	t.Quality.UnparseableDates = fact.UnparseableDates
	t.Quality.MalformedNumerics = fact.MalformedNumerics
	t.Quality.AddDuplicates(schema.DimGender, gender.DuplicatesDropped)
	t.Quality.AddDuplicates(schema.DimAdvisor, advisor.DuplicatesDropped)
	t.Quality.AddDuplicates(schema.DimRelationship, relationship.DuplicatesDropped)

	for _, c := range fact.Clients {
		row := model.Enriched{Client: c}

		row.GenderLabel = resolve(&t.Quality, gender, c.GenderKey)
		row.AdvisorName = resolve(&t.Quality, advisor, c.AdvisorKey)
		row.RelationshipLabel = resolve(&t.Quality, relationship, c.RelationshipKey)

		row.TotalAUM = totalAUM(c, s.Fact.AssetColumns)

		if c.OnboardingDate != nil {
			years := ref.Sub(*c.OnboardingDate).Hours() / 24 / daysPerYear
			row.TenureYears = &years
		}

		row.LoanToValue = loanToValue(&t.Quality, c, s.Fact.CollateralColumn)

		t.Rows = append(t.Rows, row)
	}

	zap.L().Info("enriched table built",
		zap.Int("rows", len(t.Rows)),
		zap.Int("quality_fallbacks", t.Quality.Total()),
		zap.Time("reference_date", ref),
	)
	return t, nil
}

// resolve looks up a dimension label, counting misses as unmatched keys.
// An empty dimension (no file configured) falls back without counting; there
// is nothing the key could have matched.
func resolve(q *model.QualityReport, d *dataset.Dimension, key string) string {
	label, ok := d.Lookup(key)
	if !ok && d.Len() > 0 {
		q.AddUnmatched(d.Name)
	}
	return label
}

// totalAUM sums the configured asset columns; missing cells were parsed as
// zero upstream, so the sum is defined for every row.
func totalAUM(c model.Client, assetColumns []string) decimal.Decimal {
	sum := decimal.Zero
	for _, col := range assetColumns {
		sum = sum.Add(c.Assets[col])
	}
	return sum
}

// loanToValue divides loan balance by collateral. Zero or missing collateral
// yields nil, never Inf, and is counted when there is a loan to measure.
func loanToValue(q *model.QualityReport, c model.Client, collateralColumn string) *float64 {
	if collateralColumn == "" {
		return nil
	}
	if c.CollateralValue == nil || !c.CollateralValue.IsPositive() {
		if c.LoanBalance.IsPositive() {
			q.ZeroCollateral++
		}
		return nil
	}
	ltv, _ := c.LoanBalance.Div(*c.CollateralValue).Float64()
	return &ltv
}
