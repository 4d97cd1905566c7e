package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/portfolio-cli/internal/pipeline"
)

var (
	metricsSchemaPath string
	metricsByAdvisor  bool
	metricsFilters    filterFlags
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute portfolio KPIs for a filtered client segment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := loadSchema(metricsSchemaPath)
		if err != nil {
			return err
		}

		table, err := pipeline.Build(ctx, s)
		if err != nil {
			return eris.Wrap(err, "metrics: build table")
		}

		rows := table.Filter(metricsFilters.predicates(cmd))
		summary := pipeline.Summarize(rows, len(table.Rows))

		p := message.NewPrinter(language.English)
		p.Fprintf(os.Stdout, "Clients selected:     %d (%.1f%% of firm total)\n",
			summary.ClientCount, summary.PctOfFirm)
		p.Fprintf(os.Stdout, "Total AUM:            $%s\n", summary.TotalAUM.Round(2).String())
		p.Fprintf(os.Stdout, "Avg risk weighting:   %.2f\n", summary.AvgRiskWeighting)
		p.Fprintf(os.Stdout, "Avg tenure:           %.1f years\n", summary.AvgTenureYears)
		p.Fprintf(os.Stdout, "Total bank loans:     $%s\n", summary.TotalLoans.Round(2).String())
		p.Fprintf(os.Stdout, "Loan exposure ratio:  %.2f%%\n", summary.LoanExposure*100)

		if metricsByAdvisor {
			p.Fprintf(os.Stdout, "\nBy advisor:\n")
			for _, a := range pipeline.AdvisorBreakdown(rows) {
				p.Fprintf(os.Stdout, "  %-24s clients=%d  aum=$%s  avg_risk=%.2f  avg_income=$%s\n",
					a.Advisor, a.ClientCount, a.TotalAUM.Round(2).String(), a.AvgRisk, a.AvgIncome.String())
			}
		}

		return nil
	},
}

func init() {
	metricsCmd.Flags().StringVar(&metricsSchemaPath, "schema", "", "schema file path (default from config)")
	metricsCmd.Flags().BoolVar(&metricsByAdvisor, "by-advisor", false, "include the per-advisor breakdown")
	metricsFilters.register(metricsCmd)
	rootCmd.AddCommand(metricsCmd)
}
