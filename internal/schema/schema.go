// Package schema loads the deployment-time column contract: which files hold
// the fact and dimension tables and which columns the pipeline reads from
// each. Column names and types are a deployment contract, not a versioned
// protocol, so everything here is plain declarative YAML.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Dimension names used in quality reports and log fields.
const (
	DimGender       = "gender"
	DimAdvisor      = "advisor"
	DimRelationship = "relationship"
)

// FactSchema describes the client fact table.
type FactSchema struct {
	Path     string `yaml:"path"`
	Encoding string `yaml:"encoding"` // IANA charset name; empty = UTF-8

	IDColumn              string `yaml:"id_column"`
	NameColumn            string `yaml:"name_column"`
	AgeColumn             string `yaml:"age_column"`
	IncomeColumn          string `yaml:"income_column"`
	GenderKeyColumn       string `yaml:"gender_key_column"`
	RelationshipKeyColumn string `yaml:"relationship_key_column"`
	AdvisorKeyColumn      string `yaml:"advisor_key_column"`
	LoyaltyColumn         string `yaml:"loyalty_column"`
	RiskColumn            string `yaml:"risk_column"`

	DateColumn string `yaml:"date_column"`
	DateLayout string `yaml:"date_layout"`

	// AssetColumns are summed row-wise into total_aum.
	AssetColumns []string `yaml:"asset_columns"`

	LoanColumn       string `yaml:"loan_column"`
	CollateralColumn string `yaml:"collateral_column"`
}

// DimensionSchema describes one key→label lookup table. A dimension with an
// empty path is skipped; every fact row then gets the fallback label.
type DimensionSchema struct {
	Path        string `yaml:"path"`
	Encoding    string `yaml:"encoding"`
	KeyColumn   string `yaml:"key_column"`
	LabelColumn string `yaml:"label_column"`
	Fallback    string `yaml:"fallback"`
}

// Schema is the full source contract for one deployment.
type Schema struct {
	Fact         FactSchema      `yaml:"fact"`
	Gender       DimensionSchema `yaml:"gender"`
	Advisor      DimensionSchema `yaml:"advisor"`
	Relationship DimensionSchema `yaml:"relationship"`

	// ReferenceDate overrides "today" for tenure computation (YYYY-MM-DD).
	ReferenceDate string `yaml:"reference_date"`
}

// Default returns a schema matching the standard banking-clients dataset
// layout. Deployments override it via schema.yaml.
func Default() *Schema {
	return &Schema{
		Fact: FactSchema{
			Path:                  "datasets/banking-clients.csv",
			IDColumn:              "Client ID",
			NameColumn:            "Name",
			AgeColumn:             "Age",
			IncomeColumn:          "Estimated Income",
			GenderKeyColumn:       "GenderId",
			RelationshipKeyColumn: "BRId",
			AdvisorKeyColumn:      "IAId",
			LoyaltyColumn:         "Loyalty Classification",
			RiskColumn:            "Risk Weighting",
			DateColumn:            "Joined Bank",
			DateLayout:            "02-01-2006",
			AssetColumns: []string{
				"Bank Deposits",
				"Checking Accounts",
				"Saving Accounts",
				"Foreign Currency Account",
				"Business Lending",
			},
			LoanColumn:       "Bank Loans",
			CollateralColumn: "Properties Owned",
		},
		Gender: DimensionSchema{
			Path:        "datasets/gender.csv",
			KeyColumn:   "GenderId",
			LabelColumn: "Gender",
			Fallback:    "Not Specified",
		},
		Advisor: DimensionSchema{
			Path:        "datasets/investment-advisors.csv",
			KeyColumn:   "IAId",
			LabelColumn: "Investment Advisor",
			Fallback:    "Unassigned",
		},
		Relationship: DimensionSchema{
			Path:        "datasets/banking-relationships.csv",
			KeyColumn:   "BRId",
			LabelColumn: "Banking Relationship",
			Fallback:    "Unknown",
		},
	}
}

// Load reads a schema file and fills unset fields from Default.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}

	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, eris.Wrapf(err, "schema: parse %s", path)
	}
	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// applyDefaults restores per-field defaults that an explicit schema file may
// leave empty (yaml.Unmarshal zeroes whole sections that are present but
// partial).
func (s *Schema) applyDefaults() {
	def := Default()
	if s.Fact.DateLayout == "" {
		s.Fact.DateLayout = def.Fact.DateLayout
	}
	if s.Gender.Fallback == "" {
		s.Gender.Fallback = def.Gender.Fallback
	}
	if s.Advisor.Fallback == "" {
		s.Advisor.Fallback = def.Advisor.Fallback
	}
	if s.Relationship.Fallback == "" {
		s.Relationship.Fallback = def.Relationship.Fallback
	}
}

// Validate checks the parts of the contract a load cannot proceed without.
func (s *Schema) Validate() error {
	if s.Fact.Path == "" {
		return eris.New("schema: fact path is required")
	}
	if s.Fact.IDColumn == "" {
		return eris.New("schema: fact id_column is required")
	}
	if len(s.Fact.AssetColumns) == 0 {
		return eris.New("schema: at least one asset column is required")
	}
	for _, d := range []struct {
		name string
		dim  DimensionSchema
	}{
		{DimGender, s.Gender},
		{DimAdvisor, s.Advisor},
		{DimRelationship, s.Relationship},
	} {
		if d.dim.Path == "" {
			continue
		}
		if d.dim.KeyColumn == "" || d.dim.LabelColumn == "" {
			return eris.Errorf("schema: dimension %s needs key_column and label_column", d.name)
		}
	}
	if s.ReferenceDate != "" {
		if _, err := time.Parse("2006-01-02", s.ReferenceDate); err != nil {
			return eris.Wrapf(err, "schema: parse reference_date %q", s.ReferenceDate)
		}
	}
	return nil
}

// ReferenceTime returns the tenure reference date, defaulting to now.
func (s *Schema) ReferenceTime(now time.Time) time.Time {
	if s.ReferenceDate == "" {
		return now
	}
	t, err := time.Parse("2006-01-02", s.ReferenceDate)
	if err != nil {
		// Validate rejects this earlier; fall back to now defensively.
		return now
	}
	return t
}

// SourcePaths returns the configured source files, fact first.
func (s *Schema) SourcePaths() []string {
	paths := []string{s.Fact.Path}
	for _, p := range []string{s.Gender.Path, s.Advisor.Path, s.Relationship.Path} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// SourceKey derives a cache key from the identity (path, size, mtime) of the
// source files. Two loads with the same key would produce the same table, so
// snapshots can be reused across restarts.
func (s *Schema) SourceKey() string {
	h := sha256.New()
	for _, p := range s.SourcePaths() {
		fmt.Fprintf(h, "%s|", p)
		if fi, err := os.Stat(p); err == nil {
			fmt.Fprintf(h, "%d|%d|", fi.Size(), fi.ModTime().UnixNano())
		}
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
