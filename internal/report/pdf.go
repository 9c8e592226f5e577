package report

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	pipeerrors "reportcli/internal/errors"
)

// pdfTimeout bounds one headless-Chrome print job.
const pdfTimeout = 2 * time.Minute

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"fmtval": formatValue,
	"fmtcell": func(v any) string {
		return csvCell(v)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 40px; color: #222; }
h1 { border-bottom: 2px solid #444; padding-bottom: 8px; }
h2 { margin-top: 32px; color: #333; }
table { border-collapse: collapse; margin-top: 8px; width: 100%; }
th, td { border: 1px solid #bbb; padding: 6px 10px; text-align: left; font-size: 13px; }
th { background: #eee; }
.meta { color: #777; font-size: 12px; }
.bar-row { display: flex; align-items: center; margin: 2px 0; font-size: 13px; }
.bar-label { width: 220px; }
.bar { background: #4a78b0; height: 14px; margin-right: 6px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Run {{.RunID}}, generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>
{{range .Sections}}
<h2>{{.Title}}</h2>
{{if eq .Type "kpis"}}
<table>
<tr><th>Metric</th><th>Value</th></tr>
{{range .KPIs}}<tr><td>{{.Name}}</td><td>{{fmtval .Value}}</td></tr>
{{end}}
</table>
{{else if eq .Type "chart"}}
{{range .Bars}}
<div class="bar-row"><span class="bar-label">{{.Label}}</span><span class="bar" style="width: {{.Width}}px"></span>{{fmtval .Value}}</div>
{{end}}
{{else}}
<table>
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{fmtcell .}}</td>{{end}}</tr>
{{end}}
</table>
{{end}}
{{end}}
</body>
</html>`))

type htmlBar struct {
	Label string
	Value float64
	Width int
}

type htmlSection struct {
	Title    string
	Type     SectionType
	KPIs     []KPI
	Bars     []htmlBar
	MaxValue float64
	Headers  []string
	Rows     [][]any
}

type htmlReport struct {
	Title       string
	RunID       string
	GeneratedAt time.Time
	Sections    []htmlSection
}

// RenderHTML renders the report as a standalone HTML document, the
// intermediate form printed to PDF.
func RenderHTML(rep *Report) (string, error) {
	doc := htmlReport{
		Title:       rep.Title,
		RunID:       rep.RunID,
		GeneratedAt: rep.GeneratedAt,
	}
	for _, s := range rep.Sections {
		hs := htmlSection{Title: s.Title, Type: s.Type, KPIs: s.KPIs}
		switch s.Type {
		case SectionChart:
			var max float64
			for _, v := range s.Values {
				if v > max {
					max = v
				}
			}
			hs.MaxValue = max
			for i, cat := range s.Categories {
				width := 0
				if max > 0 {
					width = int(s.Values[i] / max * 300)
				}
				hs.Bars = append(hs.Bars, htmlBar{Label: cat, Value: s.Values[i], Width: width})
			}
		case SectionTable:
			hs.Headers = s.Table.ColumnNames()
			limit := s.tableRowLimit()
			for i := 0; i < limit; i++ {
				hs.Rows = append(hs.Rows, s.Table.Row(i).Values())
			}
		}
		doc.Sections = append(doc.Sections, hs)
	}

	var b strings.Builder
	if err := reportTemplate.Execute(&b, doc); err != nil {
		return "", pipeerrors.ExportError("report", "render report HTML", err)
	}
	return b.String(), nil
}

// exportPDF prints the rendered HTML to PDF through headless Chrome.
// The HTML goes to a temp file first so Chrome can navigate a file URL.
func exportPDF(ctx context.Context, rep *Report, path string) error {
	html, err := RenderHTML(rep)
	if err != nil {
		return err
	}

	htmlFile, err := os.CreateTemp("", "reportcli-*.html")
	if err != nil {
		return pipeerrors.ExportError("report", "create temp HTML file", err)
	}
	defer os.Remove(htmlFile.Name())
	if _, err := htmlFile.WriteString(html); err != nil {
		htmlFile.Close()
		return pipeerrors.ExportError("report", "write temp HTML file", err)
	}
	if err := htmlFile.Close(); err != nil {
		return pipeerrors.ExportError("report", "close temp HTML file", err)
	}

	pdf, err := printToPDF(ctx, htmlFile.Name())
	if err != nil {
		return pipeerrors.ExportError("report", fmt.Sprintf("print %s to PDF", path), err)
	}

	return stagedWrite(path, func(tmp string) error {
		if err := os.WriteFile(tmp, pdf, 0644); err != nil {
			return pipeerrors.ExportError("report", fmt.Sprintf("write PDF %s", path), err)
		}
		return nil
	})
}

func printToPDF(parent context.Context, htmlPath string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(parent, pdfTimeout)
	defer cancel()

	chromeCtx, cancelChrome := chromedp.NewContext(ctx)
	defer cancelChrome()

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	err = chromedp.Run(chromeCtx,
		chromedp.Navigate("file://"+abs),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27). // A4
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}
