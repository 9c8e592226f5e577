// Package loader reads tabular sources (CSV and Excel) into typed
// in-memory tables. Column headers are normalized at load time and the
// declared schema is validated before any downstream component sees
// the data.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

// Format identifies a supported source format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
)

// Source describes one tabular input.
type Source struct {
	Path   string       `yaml:"path" validate:"required"`
	Format Format       `yaml:"format"` // inferred from the extension when empty
	Sheet  string       `yaml:"sheet"`  // Excel only; first sheet when empty
	Schema table.Schema `yaml:"schema"`
}

// Loader reads sources into tables.
type Loader struct {
	logger *slog.Logger
}

// New creates a loader. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads the source into a new table. It returns a format error
// for unreadable or malformed input and a schema error when required
// columns are absent. Loading has no side effects.
func (l *Loader) Load(ctx context.Context, src Source) (*table.Table, error) {
	format := src.Format
	if format == "" {
		format = inferFormat(src.Path)
	}

	l.logger.InfoContext(ctx, "loading source",
		slog.String("path", src.Path),
		slog.String("format", string(format)))

	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(src.Path)
	case FormatExcel:
		rows, err = readExcel(src.Path, src.Sheet)
	default:
		return nil, pipeerrors.FormatError("loader",
			fmt.Sprintf("unsupported source format %q, only csv and xlsx are supported", format), nil)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pipeerrors.FormatError("loader", fmt.Sprintf("source %s has no header row", src.Path), nil)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = table.NormalizeName(h)
	}

	if missing := src.Schema.MissingRequired(headers); len(missing) > 0 {
		return nil, pipeerrors.SchemaError("loader",
			fmt.Sprintf("required columns missing from %s: %s", src.Path, strings.Join(missing, ", ")))
	}

	t, err := buildTable(headers, rows[1:], src.Schema)
	if err != nil {
		return nil, pipeerrors.FormatError("loader", fmt.Sprintf("build table from %s", src.Path), err)
	}

	l.logger.InfoContext(ctx, "source loaded",
		slog.String("path", src.Path),
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", t.NumColumns()))

	return t, nil
}

func inferFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".xlsx", ".xls":
		return FormatExcel
	default:
		return Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	}
}

// buildTable converts raw string rows into a typed table. Columns
// declared in the schema get their declared kind; cells that fail to
// parse become nulls so the cleaner can decide what to do with them.
// Undeclared columns are kept as strings.
func buildTable(headers []string, rows [][]string, schema table.Schema) (*table.Table, error) {
	cols := make([]*table.Column, len(headers))
	kinds := make([]table.Kind, len(headers))
	for i, h := range headers {
		kind := table.KindString
		if spec, ok := schema.Spec(h); ok && spec.Kind != "" {
			kind = spec.Kind
		}
		kinds[i] = kind
		cols[i] = table.NewColumn(h, kind)
	}

	t := table.New(cols...)
	values := make([]any, len(headers))
	for _, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		for i := range headers {
			var raw string
			if i < len(row) {
				raw = strings.TrimSpace(row[i])
			}
			values[i] = parseCell(raw, kinds[i])
		}
		if err := t.AppendRow(values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// timeLayouts are tried in order when parsing time cells. Layouts
// without an offset are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"01-02-06", // excelize default date cell format
}

func parseCell(raw string, kind table.Kind) any {
	if raw == "" {
		return nil
	}
	switch kind {
	case table.KindFloat:
		if f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64); err == nil {
			return f
		}
		return nil
	case table.KindInt:
		if n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64); err == nil {
			return n
		}
		// Excel often renders integers as floats ("3.0").
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
		return nil
	case table.KindTime:
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
				return ts
			}
		}
		return nil
	case table.KindBool:
		if b, err := strconv.ParseBool(strings.ToLower(raw)); err == nil {
			return b
		}
		return nil
	default:
		return raw
	}
}
