package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/schema"
)

// fixtureSchema writes a small fact + three dimension CSVs into a temp dir
// and returns a schema pointing at them. A fixed reference date keeps tenure
// assertions deterministic.
func fixtureSchema(t *testing.T, factCSV string) *schema.Schema {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	s := schema.Default()
	s.ReferenceDate = "2026-01-01"
	s.Fact.Path = write("clients.csv", factCSV)
	s.Fact.AssetColumns = []string{"Bank Deposits", "Saving Accounts"}
	s.Gender.Path = write("gender.csv", "GenderId,Gender\n1,Male\n2,Female\n")
	s.Advisor.Path = write("advisors.csv", "IAId,Investment Advisor\n1,Dana Reed\n2,Omar Haddad\n")
	s.Relationship.Path = write("relationships.csv", "BRId,Banking Relationship\n1,Retail\n2,Private Bank\n")
	return s
}

const factHeader = "Client ID,Name,Age,Estimated Income,GenderId,BRId,IAId,Loyalty Classification,Risk Weighting,Joined Bank,Bank Deposits,Saving Accounts,Bank Loans,Properties Owned\n"

// enrichedRow builds an in-memory row for filter/metrics tests.
func enrichedRow(id string, opts func(*model.Enriched)) model.Enriched {
	tenure := 5.0
	r := model.Enriched{
		Client: model.Client{
			ID:              id,
			Age:             40,
			RiskWeighting:   2,
			Loyalty:         "Gold",
			EstimatedIncome: decimal.NewFromInt(100000),
		},
		GenderLabel:       "Male",
		AdvisorName:       "Dana Reed",
		RelationshipLabel: "Retail",
		TotalAUM:          decimal.NewFromInt(1000),
		TenureYears:       &tenure,
	}
	if opts != nil {
		opts(&r)
	}
	return r
}
