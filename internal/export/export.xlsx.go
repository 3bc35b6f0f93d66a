// FilePath: internal/export/export.xlsx.go
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/itsatony/lumen/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	// ContentType of the generated workbook
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	bucketsSheet = "Buckets"
	summarySheet = "Summary"
)

var bucketHeader = []string{
	"Key",
	"Date",
	"Starts At (UTC)",
	"Ends At (UTC)",
	"Avg Melanopic EDI",
	"Avg Lux",
	"Avg Illuminance",
	"Avg Exposure Score",
	"Action Required",
	"High Light",
	"Low Light",
	"Total",
}

var bucketColumnWidths = []float64{8, 12, 22, 22, 18, 12, 16, 18, 16, 12, 12, 10}

// Filename suggests an attachment name for an aggregate export
func Filename(result *models.AggregateResult) string {
	return fmt.Sprintf("lightdata-%s-%s-%s.xlsx", result.PatientID, result.Granularity, result.From.Format("20060102"))
}

// AggregateWorkbook renders an aggregate grid as an XLSX workbook with one
// row per bucket and a summary sheet describing the window.
func AggregateWorkbook(result *models.AggregateResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("aggregate result is required")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", bucketsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF4D6"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range bucketHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(bucketsSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(bucketsSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(bucketsSheet, name, name, bucketColumnWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, b := range result.Buckets {
		row := []interface{}{
			b.Key,
			b.Date,
			b.StartsAt.UTC().Format(time.RFC3339),
			b.EndsAt.UTC().Format(time.RFC3339),
			b.AverageMelanopicEDI,
			b.AverageLux,
			b.AverageIlluminance,
			b.AverageExposureScore,
			b.ActionRequiredCount,
			b.CountHighLight,
			b.CountLowLight,
			b.TotalMeasurements,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(bucketsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write bucket row %d: %w", i, err)
		}
	}

	if err := f.SetPanes(bucketsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	summary := [][]interface{}{
		{"Patient", result.PatientID},
		{"Granularity", string(result.Granularity)},
		{"From (UTC)", result.From.UTC().Format(time.RFC3339)},
		{"To (UTC)", result.To.UTC().Format(time.RFC3339)},
		{"Buckets", len(result.Buckets)},
		{"No Data", result.NoData},
		{"High Light Threshold (lux)", models.HighLightThreshold},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row %d: %w", i, err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 28); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
