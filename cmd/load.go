package main

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/portfolio-cli/internal/pipeline"
	"github.com/sells-group/portfolio-cli/internal/store"
)

var (
	loadSchemaPath string
	loadSave       bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Build the enriched client table and report data quality",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := loadSchema(loadSchemaPath)
		if err != nil {
			return err
		}

		table, err := pipeline.Build(ctx, s)
		if err != nil {
			return eris.Wrap(err, "load: build table")
		}

		printQualityReport(table)

		if loadSave {
			st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
			if err != nil {
				return eris.Wrap(err, "load: open store")
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			snap, err := st.SaveSnapshot(ctx, table, s.SourceKey())
			if err != nil {
				return err
			}
			zap.L().Info("snapshot saved",
				zap.String("id", snap.ID),
				zap.String("source_key", snap.SourceKey),
			)
		}

		return nil
	},
}

// printQualityReport writes the load summary to stdout with locale-aware
// number formatting.
func printQualityReport(table *pipeline.Table) {
	p := message.NewPrinter(language.English)

	p.Fprintf(os.Stdout, "Loaded %d clients\n", len(table.Rows))
	p.Fprintf(os.Stdout, "Data-quality fallbacks applied: %d\n", table.Quality.Total())

	q := table.Quality
	for _, dim := range sortedDims(q.UnmatchedKeys) {
		p.Fprintf(os.Stdout, "  unmatched %s keys: %d\n", dim, q.UnmatchedKeys[dim])
	}
	for _, dim := range sortedDims(q.DuplicateDimensionKeys) {
		p.Fprintf(os.Stdout, "  duplicate %s keys dropped: %d\n", dim, q.DuplicateDimensionKeys[dim])
	}
	if q.UnparseableDates > 0 {
		p.Fprintf(os.Stdout, "  unparseable onboarding dates: %d\n", q.UnparseableDates)
	}
	if q.ZeroCollateral > 0 {
		p.Fprintf(os.Stdout, "  zero/missing collateral: %d\n", q.ZeroCollateral)
	}
	if q.MalformedNumerics > 0 {
		p.Fprintf(os.Stdout, "  malformed numeric cells: %d\n", q.MalformedNumerics)
	}
}

func sortedDims(m map[string]int) []string {
	dims := make([]string, 0, len(m))
	for d := range m {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	return dims
}

func init() {
	loadCmd.Flags().StringVar(&loadSchemaPath, "schema", "", "schema file path (default from config)")
	loadCmd.Flags().BoolVar(&loadSave, "save", false, "persist the enriched table as a snapshot")
	rootCmd.AddCommand(loadCmd)
}
