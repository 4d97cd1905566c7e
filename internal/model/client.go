// Package model defines the tabular domain types shared by the pipeline,
// store, and serving layers.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is one row of the fact table as parsed from the source file.
// Keys are kept as raw strings; resolution to labels happens at join time.
type Client struct {
	ID              string          `json:"id"`
	Name            string          `json:"name,omitempty"`
	Age             int             `json:"age"`
	EstimatedIncome decimal.Decimal `json:"estimated_income"`
	GenderKey       string          `json:"gender_key"`
	RelationshipKey string          `json:"relationship_key"`
	AdvisorKey      string          `json:"advisor_key"`
	Loyalty         string          `json:"loyalty"`
	RiskWeighting   int             `json:"risk_weighting"`

	// OnboardingDate is nil when the source value failed to parse.
	OnboardingDate *time.Time `json:"onboarding_date,omitempty"`

	// Assets holds the raw asset balances keyed by source column name.
	// Missing or malformed cells are stored as zero.
	Assets map[string]decimal.Decimal `json:"assets"`

	LoanBalance decimal.Decimal `json:"loan_balance"`

	// CollateralValue is nil when the column is absent or the cell is empty.
	CollateralValue *decimal.Decimal `json:"collateral_value,omitempty"`
}

// Enriched is a fact row after dimension joins and metric derivation.
// Every fact row produces exactly one Enriched row.
type Enriched struct {
	Client

	GenderLabel       string `json:"gender_label"`
	AdvisorName       string `json:"advisor_name"`
	RelationshipLabel string `json:"relationship_label"`

	TotalAUM decimal.Decimal `json:"total_aum"`

	// TenureYears is nil when the onboarding date was unparseable.
	TenureYears *float64 `json:"tenure_years,omitempty"`

	// LoanToValue is nil when collateral is zero or missing; it is never Inf.
	LoanToValue *float64 `json:"loan_to_value,omitempty"`
}
