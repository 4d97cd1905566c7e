package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/portfolio-cli/internal/pipeline"
	"github.com/sells-group/portfolio-cli/internal/schema"
)

// loadSchema resolves the source contract. An explicit --schema path must
// exist; the configured default falls back to the built-in contract when the
// file is absent.
func loadSchema(override string) (*schema.Schema, error) {
	path := cfg.Schema
	explicit := override != ""
	if explicit {
		path = override
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, eris.Wrapf(err, "schema: stat %s", path)
		}
		return schema.Default(), nil
	}
	return schema.Load(path)
}

// filterFlags maps the dashboard filter controls onto CLI flags.
type filterFlags struct {
	relationships []string
	advisors      []string
	loyalty       []string
	genders       []string
	riskMin       int
	riskMax       int
	ageMin        int
	ageMax        int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.relationships, "relationship", nil, "relationship labels to include")
	cmd.Flags().StringSliceVar(&f.advisors, "advisor", nil, "advisor names to include")
	cmd.Flags().StringSliceVar(&f.loyalty, "loyalty", nil, "loyalty tiers to include")
	cmd.Flags().StringSliceVar(&f.genders, "gender", nil, "gender labels to include")
	cmd.Flags().IntVar(&f.riskMin, "risk-min", 0, "minimum risk weighting")
	cmd.Flags().IntVar(&f.riskMax, "risk-max", 0, "maximum risk weighting")
	cmd.Flags().IntVar(&f.ageMin, "age-min", 0, "minimum age")
	cmd.Flags().IntVar(&f.ageMax, "age-max", 0, "maximum age")
}

// predicates builds Predicates from the flags that were actually set, so an
// untouched command selects the full table.
func (f *filterFlags) predicates(cmd *cobra.Command) pipeline.Predicates {
	p := pipeline.Predicates{
		Relationships: f.relationships,
		Advisors:      f.advisors,
		Loyalty:       f.loyalty,
		Genders:       f.genders,
	}
	if cmd.Flags().Changed("risk-min") {
		p.RiskMin = &f.riskMin
	}
	if cmd.Flags().Changed("risk-max") {
		p.RiskMax = &f.riskMax
	}
	if cmd.Flags().Changed("age-min") {
		p.AgeMin = &f.ageMin
	}
	if cmd.Flags().Changed("age-max") {
		p.AgeMax = &f.ageMax
	}
	return p
}
