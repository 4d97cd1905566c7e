package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/pipeline"
	"github.com/sells-group/portfolio-cli/internal/schema"
)

var (
	exportSchemaPath string
	exportOut        string
	exportFilters    filterFlags
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the enriched table to CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := loadSchema(exportSchemaPath)
		if err != nil {
			return err
		}

		table, err := pipeline.Build(ctx, s)
		if err != nil {
			return eris.Wrap(err, "export: build table")
		}
		rows := table.Filter(exportFilters.predicates(cmd))

		header, records := exportRecords(s, rows)

		if strings.EqualFold(filepath.Ext(exportOut), ".xlsx") {
			err = writeXLSX(exportOut, header, records)
		} else {
			err = writeCSV(exportOut, header, records)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("file", exportOut),
			zap.Int("rows", len(records)),
		)
		return nil
	},
}

// exportRecords flattens enriched rows into the documented output schema:
// the fact columns followed by the joined labels and derived metrics.
func exportRecords(s *schema.Schema, rows []model.Enriched) ([]string, [][]string) {
	header := []string{"id", "name", "age", "estimated_income", "loyalty", "risk_weighting", "onboarding_date"}
	header = append(header, s.Fact.AssetColumns...)
	header = append(header,
		"loan_balance", "collateral_value",
		"gender_label", "advisor_name", "relationship_label",
		"total_aum", "tenure_years", "loan_to_value",
	)

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := []string{
			r.ID,
			r.Name,
			strconv.Itoa(r.Age),
			r.EstimatedIncome.String(),
			r.Loyalty,
			strconv.Itoa(r.RiskWeighting),
			formatDate(r.OnboardingDate),
		}
		for _, col := range s.Fact.AssetColumns {
			rec = append(rec, r.Assets[col].String())
		}
		collateral := ""
		if r.CollateralValue != nil {
			collateral = r.CollateralValue.String()
		}
		rec = append(rec,
			r.LoanBalance.String(),
			collateral,
			r.GenderLabel,
			r.AdvisorName,
			r.RelationshipLabel,
			r.TotalAUM.String(),
			formatFloat(r.TenureYears),
			formatFloat(r.LoanToValue),
		)
		records = append(records, rec)
	}
	return header, records
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 4, 64)
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

func writeXLSX(path string, header []string, records [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("clients")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, col := range header {
		hr.AddCell().Value = col
	}
	for _, rec := range records {
		row := sheet.AddRow()
		for _, cell := range rec {
			row.AddCell().Value = cell
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func init() {
	exportCmd.Flags().StringVar(&exportSchemaPath, "schema", "", "schema file path (default from config)")
	exportCmd.Flags().StringVar(&exportOut, "out", "clients-export.csv", "output file (.csv or .xlsx)")
	exportFilters.register(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
