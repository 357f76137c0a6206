// Package exporter writes batch run output to disk.
//
// This package contains two main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility.
//
// ReportExporter: Turns a batch report into per-series forecast files,
// a backtest record dump, a selection summary, and an Excel comparison
// workbook.
//
// Example usage:
//
//	exp := exporter.NewReportExporter("reports")
//
//	if err := exp.ExportAll(report); err != nil {
//		return err
//	}
package exporter
