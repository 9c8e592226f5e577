package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

// exportCSV writes the report as a single CSV: section title rows
// followed by the section's data. A UTF-8 BOM is prepended so Excel
// opens the file as UTF-8.
func exportCSV(ctx context.Context, rep *Report, path string) error {
	return stagedWrite(path, func(tmp string) error {
		file, err := os.Create(tmp)
		if err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("create %s", path), err)
		}
		defer file.Close()

		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return pipeerrors.ExportError("report", "write BOM", err)
		}

		w := csv.NewWriter(file)
		for _, section := range rep.Sections {
			if err := writeCSVSection(w, section); err != nil {
				return err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("write %s", path), err)
		}
		return nil
	})
}

func writeCSVSection(w *csv.Writer, section Section) error {
	if err := w.Write([]string{fmt.Sprintf("# %s", section.Title)}); err != nil {
		return pipeerrors.ExportError("report", "write section title", err)
	}

	switch section.Type {
	case SectionKPIs:
		if err := w.Write([]string{"metric", "value"}); err != nil {
			return pipeerrors.ExportError("report", "write KPI header", err)
		}
		for _, kpi := range section.KPIs {
			if err := w.Write([]string{kpi.Name, formatValue(kpi.Value)}); err != nil {
				return pipeerrors.ExportError("report", "write KPI row", err)
			}
		}
	case SectionChart:
		if err := w.Write([]string{"category", "value"}); err != nil {
			return pipeerrors.ExportError("report", "write chart header", err)
		}
		for i, cat := range section.Categories {
			if err := w.Write([]string{cat, formatValue(section.Values[i])}); err != nil {
				return pipeerrors.ExportError("report", "write chart row", err)
			}
		}
	case SectionTable:
		headers, rows := TableToCSVRows(section.Table)
		if err := w.Write(headers); err != nil {
			return pipeerrors.ExportError("report", "write table header", err)
		}
		limit := section.tableRowLimit()
		for i := 0; i < limit; i++ {
			if err := w.Write(rows[i]); err != nil {
				return pipeerrors.ExportError("report", "write table row", err)
			}
		}
	}

	return w.Write(nil)
}

// WriteTableCSV writes one table to a standalone CSV file, used for
// exporting cleaned data alongside the report.
func WriteTableCSV(ctx context.Context, t *table.Table, path string) error {
	headers, rows := TableToCSVRows(t)
	return stagedWrite(path, func(tmp string) error {
		file, err := os.Create(tmp)
		if err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("create %s", path), err)
		}
		defer file.Close()

		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return pipeerrors.ExportError("report", "write BOM", err)
		}
		w := csv.NewWriter(file)
		if err := w.Write(headers); err != nil {
			return pipeerrors.ExportError("report", "write header", err)
		}
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return pipeerrors.ExportError("report", "write row", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("write %s", path), err)
		}
		return nil
	})
}
