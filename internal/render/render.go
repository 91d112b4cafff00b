// Package render turns a period summary into a self-contained HTML
// document, suitable for sending as a chat attachment.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer executes the embedded summary template with a configurable date
// layout so the document matches the sheet's date format.
type Renderer struct {
	tmpl       *template.Template
	dateLayout string
}

func New(dateLayout string) (*Renderer, error) {
	tmpl := template.New("summary").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"join":  func(names []string) string { return strings.Join(names, " + ") },
		"date":  func(d core.Date) string { return d.Format(dateLayout) },
	})
	tmpl, err := tmpl.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse summary templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, dateLayout: dateLayout}, nil
}

type page struct {
	Title string
	core.Summary
}

// Summary renders the document for one period. The title is the period name.
func (r *Renderer) Summary(title string, s core.Summary) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "summary.html", page{Title: title, Summary: s}); err != nil {
		return nil, fmt.Errorf("render summary %s: %w", title, err)
	}
	return buf.Bytes(), nil
}
