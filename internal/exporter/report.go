package exporter

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"tscast/internal/runner"
	"tscast/internal/series"
)

// ReportExporter turns a batch report into files under the output
// directory: one forecast CSV per series, a combined backtest record dump,
// a selection summary, and an Excel comparison workbook.
type ReportExporter struct {
	csvWriter *CSVWriter
	outputDir string
}

// NewReportExporter creates an exporter rooted at the given directory
func NewReportExporter(outputDir string) *ReportExporter {
	return &ReportExporter{
		csvWriter: NewCSVWriter(outputDir),
		outputDir: outputDir,
	}
}

// ExportAll writes every report artifact
func (e *ReportExporter) ExportAll(report *runner.BatchReport) error {
	if err := e.ExportForecasts(report); err != nil {
		return err
	}
	if err := e.ExportBacktestRecords(report); err != nil {
		return err
	}
	if err := e.ExportSelectionSummary(report); err != nil {
		return err
	}
	return e.ExportComparisonWorkbook(report)
}

// sortedResultIDs returns the successful series IDs in a stable order
func sortedResultIDs(report *runner.BatchReport) []series.ID {
	ids := make([]series.ID, 0, len(report.Results))
	for id := range report.Results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ExportForecasts writes one CSV per successfully forecast series with the
// point forecast and the interval bounds for each configured level.
func (e *ReportExporter) ExportForecasts(report *runner.BatchReport) error {
	for _, id := range sortedResultIDs(report) {
		result := report.Results[id]
		fc := result.Forecast

		headers := []string{"timestamp", "strategy", "point"}
		for _, level := range fc.Levels {
			headers = append(headers,
				fmt.Sprintf("lower_%g", level*100),
				fmt.Sprintf("upper_%g", level*100),
			)
		}

		records := make([][]string, 0, len(fc.Steps))
		for _, step := range fc.Steps {
			row := []string{formatTime(step.Timestamp), fc.Strategy, formatFloat(step.Point)}
			for _, bound := range step.Bounds {
				row = append(row, formatFloat(bound.Lower), formatFloat(bound.Upper))
			}
			records = append(records, row)
		}

		filename := fmt.Sprintf("forecast_%s.csv", id)
		if err := e.csvWriter.WriteSimpleCSV(filename, headers, records); err != nil {
			return fmt.Errorf("export forecast for %s: %w", id, err)
		}
	}
	return nil
}

// ExportBacktestRecords streams every error record from every series into
// a single combined CSV, ordered by series then strategy then origin.
func (e *ReportExporter) ExportBacktestRecords(report *runner.BatchReport) error {
	headers := []string{"series", "strategy", "origin", "step", "actual", "forecast", "error"}
	stream, err := e.csvWriter.CreateStreamWriter("backtest_records.csv", headers)
	if err != nil {
		return fmt.Errorf("create backtest record stream: %w", err)
	}

	for _, id := range sortedResultIDs(report) {
		bt := report.Results[id].Backtest
		if bt == nil {
			continue
		}

		strategies := make([]string, 0, len(bt.Records))
		for name := range bt.Records {
			strategies = append(strategies, name)
		}
		sort.Strings(strategies)

		for _, name := range strategies {
			for _, r := range bt.Records[name] {
				row := []string{
					string(r.Series),
					r.Strategy,
					formatInt(r.Origin),
					formatInt(r.Step),
					formatFloat(r.Actual),
					formatFloat(r.Forecast),
					formatFloat(r.Error),
				}
				if err := stream.WriteRecord(row); err != nil {
					stream.Close()
					return fmt.Errorf("write backtest record: %w", err)
				}
			}
		}
	}

	return stream.Close()
}

// ExportSelectionSummary writes one row per series: the winning strategy,
// its accuracy, and the failure cause for series that did not complete.
func (e *ReportExporter) ExportSelectionSummary(report *runner.BatchReport) error {
	headers := []string{"series", "status", "winner", "mse", "mape", "samples", "zero_actual_excluded", "error"}

	var records [][]string
	for _, id := range sortedResultIDs(report) {
		w := report.Results[id].Winner
		records = append(records, []string{
			string(id), "completed", w.Strategy,
			formatFloat(w.MSE), formatFloat(w.MAPE),
			formatInt(w.Samples), formatInt(w.ZeroActualExcluded),
			"",
		})
	}

	failedIDs := make([]series.ID, 0, len(report.Failures))
	for id := range report.Failures {
		failedIDs = append(failedIDs, id)
	}
	sort.Slice(failedIDs, func(i, j int) bool { return failedIDs[i] < failedIDs[j] })
	for _, id := range failedIDs {
		records = append(records, []string{
			string(id), "failed", "", "", "", "", "",
			report.Failures[id].Error(),
		})
	}

	return e.csvWriter.WriteSimpleCSV("selection_summary.csv", headers, records)
}

// ExportComparisonWorkbook writes the cross-series comparison workbook:
// a Rankings sheet with the strategy leaderboard and a Summaries sheet
// with the per-series, per-strategy accuracy grid.
func (e *ReportExporter) ExportComparisonWorkbook(report *runner.BatchReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const rankingSheet = "Rankings"
	if err := f.SetSheetName("Sheet1", rankingSheet); err != nil {
		return fmt.Errorf("rename ranking sheet: %w", err)
	}

	if err := f.SetSheetRow(rankingSheet, "A1", &[]interface{}{"Rank", "Strategy", "Mean MSE", "Mean MAPE", "Series"}); err != nil {
		return fmt.Errorf("write ranking header: %w", err)
	}
	for i, r := range report.Rankings {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{i + 1, r.Strategy, cellFloat(r.MeanMSE), cellFloat(r.MeanMAPE), r.Series}
		if err := f.SetSheetRow(rankingSheet, cell, &row); err != nil {
			return fmt.Errorf("write ranking row %d: %w", i, err)
		}
	}

	const summarySheet = "Summaries"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A1", &[]interface{}{"Series", "Strategy", "MSE", "MAPE", "Samples", "Zero Actuals Excluded", "Winner"}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	rowNum := 2
	for _, id := range sortedResultIDs(report) {
		result := report.Results[id]

		names := make([]string, 0, len(result.Summaries))
		for name := range result.Summaries {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			s := result.Summaries[name]
			winner := ""
			if name == result.Winner.Strategy {
				winner = "yes"
			}
			row := []interface{}{string(id), s.Strategy, cellFloat(s.MSE), cellFloat(s.MAPE), s.Samples, s.ZeroActualExcluded, winner}
			cell := fmt.Sprintf("A%d", rowNum)
			if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
				return fmt.Errorf("write summary row for %s/%s: %w", id, name, err)
			}
			rowNum++
		}
	}

	path := e.csvWriter.resolvePath("comparison.xlsx")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save comparison workbook: %w", err)
	}
	return nil
}

// cellFloat maps NaN to an empty cell so the workbook stays readable
func cellFloat(f float64) interface{} {
	if math.IsNaN(f) {
		return ""
	}
	return f
}
