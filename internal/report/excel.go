package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

// sheetNameSanitizer strips characters Excel forbids in sheet names.
var sheetNameSanitizer = strings.NewReplacer(
	"/", " ", "\\", " ", "?", " ", "*", " ", "[", " ", "]", " ", ":", " ",
)

// excelChartTypes maps report chart kinds to excelize chart types.
var excelChartTypes = map[ChartKind]excelize.ChartType{
	ChartBar:  excelize.Col,
	ChartLine: excelize.Line,
	ChartPie:  excelize.Pie,
}

// exportExcel writes the report as a workbook: one sheet per section,
// chart sections carry a native chart next to their data columns.
func exportExcel(ctx context.Context, rep *Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return pipeerrors.ExportError("report", "create header style", err)
	}

	for i, section := range rep.Sections {
		sheet := sheetName(section.Title, i)
		if _, err := f.NewSheet(sheet); err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("create sheet %q", sheet), err)
		}

		switch section.Type {
		case SectionKPIs:
			err = writeKPISheet(f, sheet, header, section)
		case SectionChart:
			err = writeChartSheet(f, sheet, header, section)
		case SectionTable:
			err = writeTableSheet(f, sheet, header, section)
		}
		if err != nil {
			return err
		}
	}

	// Drop the default sheet so the report sections come first.
	if len(rep.Sections) > 0 {
		f.DeleteSheet("Sheet1")
	}

	return stagedWrite(path, func(tmp string) error {
		if err := f.SaveAs(tmp); err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("save workbook %s", path), err)
		}
		return nil
	})
}

func writeKPISheet(f *excelize.File, sheet string, header int, section Section) error {
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Metric", "Value"}); err != nil {
		return pipeerrors.ExportError("report", "write KPI header", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", header); err != nil {
		return pipeerrors.ExportError("report", "style KPI header", err)
	}
	for i, kpi := range section.KPIs {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &[]any{kpi.Name, kpi.Value}); err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("write KPI %q", kpi.Name), err)
		}
	}
	return nil
}

func writeChartSheet(f *excelize.File, sheet string, header int, section Section) error {
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Category", "Value"}); err != nil {
		return pipeerrors.ExportError("report", "write chart data header", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", header); err != nil {
		return pipeerrors.ExportError("report", "style chart data header", err)
	}
	for i, cat := range section.Categories {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &[]any{cat, section.Values[i]}); err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("write chart row %q", cat), err)
		}
	}

	chartType, ok := excelChartTypes[section.Chart]
	if !ok {
		return pipeerrors.ExportError("report", fmt.Sprintf("unsupported chart kind %q", section.Chart), nil)
	}
	n := len(section.Categories)
	chart := &excelize.Chart{
		Type: chartType,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("'%s'!$B$1", sheet),
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", sheet, n+1),
			Values:     fmt.Sprintf("'%s'!$B$2:$B$%d", sheet, n+1),
		}},
		Title: []excelize.RichTextRun{{Text: section.Title}},
	}
	if err := f.AddChart(sheet, "D2", chart); err != nil {
		return pipeerrors.ExportError("report", fmt.Sprintf("add chart to %q", sheet), err)
	}
	return nil
}

func writeTableSheet(f *excelize.File, sheet string, header int, section Section) error {
	names := section.Table.ColumnNames()
	headerRow := make([]any, len(names))
	for i, name := range names {
		headerRow[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return pipeerrors.ExportError("report", "write table header", err)
	}
	endCell, err := excelize.CoordinatesToCellName(len(names), 1)
	if err != nil {
		return pipeerrors.ExportError("report", "resolve header range", err)
	}
	if err := f.SetCellStyle(sheet, "A1", endCell, header); err != nil {
		return pipeerrors.ExportError("report", "style table header", err)
	}

	limit := section.tableRowLimit()
	for i := 0; i < limit; i++ {
		row := make([]any, len(names))
		for j, v := range section.Table.Row(i).Values() {
			row[j] = excelCell(v)
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("write table row %d", i), err)
		}
	}
	return nil
}

func excelCell(v any) any {
	switch n := v.(type) {
	case nil:
		return ""
	case time.Time:
		return n.Format("2006-01-02 15:04:05")
	default:
		return n
	}
}

// sheetName derives a legal, unique sheet name from a section title.
// Excel caps sheet names at 31 characters.
func sheetName(title string, index int) string {
	name := title
	if name == "" {
		name = "Section"
	}
	name = sheetNameSanitizer.Replace(name)
	if len(name) > 28 {
		name = name[:28]
	}
	return fmt.Sprintf("%s %d", name, index+1)
}

// TableToCSVRows flattens a table into string rows for CSV export,
// formatting floats with two decimals.
func TableToCSVRows(t *table.Table) (headers []string, rows [][]string) {
	headers = t.ColumnNames()
	rows = make([][]string, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		row := make([]string, len(headers))
		for j, v := range t.Row(i).Values() {
			row[j] = csvCell(v)
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func csvCell(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return formatValue(n)
	case time.Time:
		return n.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", n)
	}
}
