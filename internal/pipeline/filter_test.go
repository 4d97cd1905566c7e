package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portfolio-cli/internal/model"
)

func intPtr(v int) *int { return &v }

func filterFixture() []model.Enriched {
	return []model.Enriched{
		enrichedRow("C1", nil),
		enrichedRow("C2", func(r *model.Enriched) {
			r.AdvisorName = "Omar Haddad"
			r.RelationshipLabel = "Private Bank"
			r.Loyalty = "Silver"
			r.GenderLabel = "Female"
			r.Age = 62
			r.RiskWeighting = 3
		}),
		enrichedRow("C3", func(r *model.Enriched) {
			r.Loyalty = "Platinum"
			r.Age = 25
			r.RiskWeighting = 1
		}),
	}
}

func TestFilter_EmptyPredicatesIsIdentity(t *testing.T) {
	rows := filterFixture()

	got := Filter(rows, Predicates{})

	assert.Equal(t, rows, got)
	assert.True(t, Predicates{}.IsEmpty())
}

func TestFilter_Idempotent(t *testing.T) {
	rows := filterFixture()
	p := Predicates{Loyalty: []string{"Gold", "Platinum"}, AgeMax: intPtr(50)}

	once := Filter(rows, p)
	twice := Filter(once, p)

	assert.Equal(t, once, twice)
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	rows := filterFixture()
	before := make([]model.Enriched, len(rows))
	copy(before, rows)

	Filter(rows, Predicates{Advisors: []string{"Omar Haddad"}})

	assert.Equal(t, before, rows)
}

func TestFilter_Predicates(t *testing.T) {
	rows := filterFixture()

	tests := []struct {
		name string
		p    Predicates
		want []string
	}{
		{"relationship", Predicates{Relationships: []string{"Private Bank"}}, []string{"C2"}},
		{"advisor", Predicates{Advisors: []string{"Dana Reed"}}, []string{"C1", "C3"}},
		{"loyalty", Predicates{Loyalty: []string{"Gold", "Silver"}}, []string{"C1", "C2"}},
		{"gender", Predicates{Genders: []string{"Female"}}, []string{"C2"}},
		{"risk range", Predicates{RiskMin: intPtr(2), RiskMax: intPtr(3)}, []string{"C1", "C2"}},
		{"age range", Predicates{AgeMin: intPtr(30), AgeMax: intPtr(50)}, []string{"C1"}},
		{"combined", Predicates{Advisors: []string{"Dana Reed"}, AgeMin: intPtr(30)}, []string{"C1"}},
		{"no match", Predicates{Loyalty: []string{"Bronze"}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(rows, tt.p)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestTableFilter(t *testing.T) {
	table := &Table{Rows: filterFixture()}

	got := table.Filter(Predicates{Genders: []string{"Female"}})

	require.Len(t, got, 1)
	assert.Equal(t, "C2", got[0].ID)
	assert.Len(t, table.Rows, 3)
}
