package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	pipeerrors "reportcli/internal/errors"
)

// Format is a supported export format.
type Format string

const (
	FormatExcel Format = "excel"
	FormatPDF   Format = "pdf"
	FormatCSV   Format = "csv"
)

// Export writes the report to path in the given format, overwriting
// any existing file at that path. The write goes through a temp file
// in the target directory followed by a rename, so a failed export
// never leaves a partial file behind.
func Export(ctx context.Context, rep *Report, path string, format Format) error {
	switch format {
	case FormatExcel:
		return exportExcel(ctx, rep, path)
	case FormatPDF:
		return exportPDF(ctx, rep, path)
	case FormatCSV:
		return exportCSV(ctx, rep, path)
	default:
		return pipeerrors.ExportError("report", fmt.Sprintf("unsupported export format %q", format), nil)
	}
}

// FormatForPath infers the export format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatExcel, nil
	case ".pdf":
		return FormatPDF, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", pipeerrors.ExportError("report",
			fmt.Sprintf("cannot infer export format from path %q", path), nil)
	}
}

// stagedWrite calls write with a temp path in path's directory and
// renames the result over path on success. On failure the temp file is
// removed and the destination is untouched.
func stagedWrite(path string, write func(tmp string) error) error {
	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return pipeerrors.ExportError("report", fmt.Sprintf("rename %s into place", tmp), err)
	}
	return nil
}

// formatValue renders a numeric cell for report output with two
// decimal places, matching the exported document convention.
func formatValue(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
