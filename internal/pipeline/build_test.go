package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portfolio-cli/internal/schema"
)

func TestBuild_LeftJoinPreservesCardinality(t *testing.T) {
	s := fixtureSchema(t, factHeader+
		"C1,Alice,44,120000,1,1,1,Gold,2,05-03-2015,1000,2000,500,100000\n"+
		"C2,Bob,31,85000,2,2,2,Silver,1,10-06-2020,300,700,0,\n"+
		"C3,Cara,58,95000,1,1,9,Platinum,3,01-01-2010,50,50,0,\n")

	table, err := Build(context.Background(), s)
	require.NoError(t, err)

	// Every fact row appears exactly once, matched or not.
	require.Len(t, table.Rows, 3)
	ids := []string{table.Rows[0].ID, table.Rows[1].ID, table.Rows[2].ID}
	assert.Equal(t, []string{"C1", "C2", "C3"}, ids)
}

func TestBuild_UnmatchedAdvisorGetsFallback(t *testing.T) {
	// C3's advisor key 9 has no match in the advisor dimension.
	s := fixtureSchema(t, factHeader+
		"C1,Alice,44,120000,1,1,1,Gold,2,05-03-2015,1000,2000,500,100000\n"+
		"C2,Bob,31,85000,2,2,2,Silver,1,10-06-2020,300,700,0,\n"+
		"C3,Cara,58,95000,1,1,9,Platinum,3,01-01-2010,50,50,0,\n")

	table, err := Build(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, "Dana Reed", table.Rows[0].AdvisorName)
	assert.Equal(t, "Unassigned", table.Rows[2].AdvisorName)
	assert.Equal(t, 1, table.Quality.UnmatchedKeys[schema.DimAdvisor])
}

func TestBuild_TotalAUMSumsAssetColumns(t *testing.T) {
	s := fixtureSchema(t, factHeader+
		"C1,Alice,44,120000,1,1,1,Gold,2,05-03-2015,1000.50,2000,0,\n"+
		"C2,Bob,31,85000,2,2,2,Silver,1,10-06-2020,,700,0,\n")

	table, err := Build(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, table.Rows[0].TotalAUM.Equal(decimal.RequireFromString("3000.50")))
	// Missing deposit cell counts as zero.
	assert.True(t, table.Rows[1].TotalAUM.Equal(decimal.NewFromInt(700)))
}

func TestBuild_TenureFromReferenceDate(t *testing.T) {
	s := fixtureSchema(t, factHeader+
		"C1,Alice,44,120000,1,1,1,Gold,2,01-01-2016,100,0,0,\n")

	table, err := Build(context.Background(), s)
	require.NoError(t, err)

	require.NotNil(t, table.Rows[0].TenureYears)
	// 2016-01-01 → 2026-01-01 is ten years of elapsed days.
	assert.InDelta(t, 10.0, *table.Rows[0].TenureYears, 0.01)
}

func TestBuild_InvalidDateYieldsNilTenure(t *testing.T) {
	s := fixtureSchema(t, factHeader+
		"C1,Alice,44,120000,1,1,1,Gold,2,invalid,100,0,0,\n"+
		"C2,Bob,31,85000,2,2,2,Silver,1,10-06-2020,300,700,0,\n")

	table, err := Build(context.Background(), s)
	require.NoError(t, err)

	// Load does not abort; the bad row just has no tenure.
	require.Len(t, table.Rows, 2)
	assert.Nil(t, table.Rows[0].TenureYears)
	assert.NotNil(t, table.Rows[1].TenureYears)
	assert.Equal(t, 1, table.Quality.UnparseableDates)
}

func TestBuild_ZeroCollateralYieldsNilLTV(t *testing.T) {
	s := fixtureSchema(t, factHeader+
		"C1,Alice,44,120000,1,1,1,Gold,2,05-03-2015,100,0,100,0\n"+
		"C2,Bob,31,85000,2,2,2,Silver,1,10-06-2020,300,700,500,2000\n")

	table, err := Build(context.Background(), s)
	require.NoError(t, err)

	// Loan 100 against collateral 0: null, not infinite.
	assert.Nil(t, table.Rows[0].LoanToValue)
	assert.Equal(t, 1, table.Quality.ZeroCollateral)

	require.NotNil(t, table.Rows[1].LoanToValue)
	assert.InDelta(t, 0.25, *table.Rows[1].LoanToValue, 1e-9)
}

func TestBuild_DuplicateDimensionKeysCounted(t *testing.T) {
	s := fixtureSchema(t, factHeader+
		"C1,Alice,44,120000,1,1,1,Gold,2,05-03-2015,100,0,0,\n")
	// Swap in a gender dimension with a duplicated key.
	dup := filepath.Join(t.TempDir(), "gender-dup.csv")
	require.NoError(t, os.WriteFile(dup, []byte("GenderId,Gender\n1,Male\n1,Other\n2,Female\n"), 0o644))
	s.Gender.Path = dup

	table, err := Build(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 1, table.Quality.DuplicateDimensionKeys[schema.DimGender])
	assert.Equal(t, "Male", table.Rows[0].GenderLabel)
}

func TestBuild_MissingFactFileIsFatal(t *testing.T) {
	s := fixtureSchema(t, factHeader)
	s.Fact.Path = "missing-clients.csv"

	_, err := Build(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-clients.csv")
}

func TestBuild_SkippedDimensionFallsBackWithoutCounting(t *testing.T) {
	s := fixtureSchema(t, factHeader+
		"C1,Alice,44,120000,1,1,1,Gold,2,05-03-2015,100,0,0,\n")
	s.Gender.Path = ""

	table, err := Build(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "Not Specified", table.Rows[0].GenderLabel)
	// Nothing to match against is not a data-quality defect.
	assert.Zero(t, table.Quality.UnmatchedKeys[schema.DimGender])
}
