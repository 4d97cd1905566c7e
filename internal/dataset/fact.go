package dataset

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/schema"
)

// FactResult is the parsed fact table plus per-load defect counts.
type FactResult struct {
	Clients []model.Client

	UnparseableDates  int
	MalformedNumerics int
}

// LoadFact reads and parses the client fact table.
//
// Fatal: missing file, or a missing ID / foreign-key / asset / date column
// (a foreign key is only required when its dimension is configured).
// Tolerant: malformed cells in non-key columns degrade to zero/nil and are
// counted, never dropped — every source row yields exactly one Client.
func LoadFact(s *schema.Schema) (*FactResult, error) {
	fs := s.Fact
	t, err := ReadTable(fs.Path, fs.Encoding)
	if err != nil {
		return nil, err
	}

	required := []string{fs.IDColumn, fs.DateColumn}
	if s.Gender.Path != "" {
		required = append(required, fs.GenderKeyColumn)
	}
	if s.Advisor.Path != "" {
		required = append(required, fs.AdvisorKeyColumn)
	}
	if s.Relationship.Path != "" {
		required = append(required, fs.RelationshipKeyColumn)
	}
	required = append(required, fs.AssetColumns...)
	if err := t.RequireColumns(required...); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("file", fs.Path))
	res := &FactResult{Clients: make([]model.Client, 0, len(t.Rows))}

	for i, row := range t.Rows {
		c := model.Client{
			ID:              t.Get(row, fs.IDColumn),
			Name:            t.Get(row, fs.NameColumn),
			Age:             parseIntOr(t.Get(row, fs.AgeColumn), 0),
			GenderKey:       t.Get(row, fs.GenderKeyColumn),
			RelationshipKey: t.Get(row, fs.RelationshipKeyColumn),
			AdvisorKey:      t.Get(row, fs.AdvisorKeyColumn),
			Loyalty:         t.Get(row, fs.LoyaltyColumn),
			RiskWeighting:   parseIntOr(t.Get(row, fs.RiskColumn), 0),
		}

		income, ok := parseDecimal(t.Get(row, fs.IncomeColumn))
		if !ok {
			res.MalformedNumerics++
		}
		c.EstimatedIncome = income

		if raw := t.Get(row, fs.DateColumn); raw != "" {
			if d, ok := parseDate(raw, fs.DateLayout); ok {
				c.OnboardingDate = &d
			} else {
				res.UnparseableDates++
				log.Warn("unparseable onboarding date",
					zap.Int("row", i+2),
					zap.String("client_id", c.ID),
					zap.String("value", raw),
				)
			}
		} else {
			res.UnparseableDates++
		}

		c.Assets = make(map[string]decimal.Decimal, len(fs.AssetColumns))
		for _, col := range fs.AssetColumns {
			v, ok := parseDecimal(t.Get(row, col))
			if !ok {
				res.MalformedNumerics++
			}
			c.Assets[col] = v
		}

		if fs.LoanColumn != "" {
			v, ok := parseDecimal(t.Get(row, fs.LoanColumn))
			if !ok {
				res.MalformedNumerics++
			}
			c.LoanBalance = v
		}
		if fs.CollateralColumn != "" && t.HasColumn(fs.CollateralColumn) {
			if raw := t.Get(row, fs.CollateralColumn); raw != "" {
				if v, ok := parseDecimal(raw); ok {
					c.CollateralValue = &v
				} else {
					res.MalformedNumerics++
				}
			}
		}

		res.Clients = append(res.Clients, c)
	}

	return res, nil
}
