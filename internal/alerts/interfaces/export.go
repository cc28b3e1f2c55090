package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alerts "agrowatch/internal/alerts/domain"
)

var exportHeader = []string{"ID", "Sensor", "Kind", "Message", "Value", "Raised At", "Read", "Resolved By", "Resolved At", "Section", "Asset"}

func exportRow(a alerts.Alert) []string {
	resolvedAt := ""
	if !a.ResolvedAt.IsZero() {
		resolvedAt = a.ResolvedAt.Format(time.RFC3339)
	}
	return []string{
		a.ID,
		a.SensorID,
		a.AlertType,
		a.Message,
		strconv.FormatFloat(a.Value, 'f', -1, 64),
		a.Timestamp.Format(time.RFC3339),
		strconv.FormatBool(a.IsRead),
		a.ResolvedBy,
		resolvedAt,
		a.WSection,
		a.Asset,
	}
}

// BuildAlertsCSV renders the alert history as CSV.
func BuildAlertsCSV(items []alerts.Alert) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, a := range items {
		if err := writer.Write(exportRow(a)); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsXLSX renders the alert history as a workbook with a
// summary sheet and one row per alert.
func BuildAlertsXLSX(items []alerts.Alert) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	alertsSheet := "alerts"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(alertsSheet)

	active := 0
	unread := 0
	for _, a := range items {
		if a.Active() {
			active++
			if !a.IsRead {
				unread++
			}
		}
	}
	_ = f.SetCellValue(summarySheet, "A1", "Alert Export")
	_ = f.SetCellValue(summarySheet, "A3", "Total")
	_ = f.SetCellValue(summarySheet, "B3", len(items))
	_ = f.SetCellValue(summarySheet, "A4", "Active")
	_ = f.SetCellValue(summarySheet, "B4", active)
	_ = f.SetCellValue(summarySheet, "A5", "Unread")
	_ = f.SetCellValue(summarySheet, "B5", unread)
	_ = f.SetCellValue(summarySheet, "A6", "Generated")
	_ = f.SetCellValue(summarySheet, "B6", time.Now().UTC().Format(time.RFC3339))

	for col, name := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(alertsSheet, cell, name)
	}
	for i, a := range items {
		for col, value := range exportRow(a) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(alertsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsPDF renders a compact alert table.
func BuildAlertsPDF(items []alerts.Alert) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alert Export")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts: %d", len(items)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(35, 6, "Sensor", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Kind", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Raised At", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Resolved By", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Section", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Asset", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, a := range items {
		pdf.CellFormat(35, 6, a.SensorID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(32, 6, a.AlertType, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, strconv.FormatFloat(a.Value, 'f', -1, 64), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, a.Timestamp.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, a.ResolvedBy, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, a.WSection, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, a.Asset, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
