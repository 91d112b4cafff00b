package render

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func TestSummaryDocument(t *testing.T) {
	r, err := New("02.01.2006")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	records := []core.Record{
		{
			Date:          core.NewDate(2026, 3, 5),
			Description:   "pizza <night>",
			Payer:         "alice",
			Beneficiaries: []string{"alice", "bob"},
			Amount:        decimal.RequireFromString("24.50"),
		},
	}
	doc, err := r.Summary("March 2026", core.Summarize(records))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	html := string(doc)
	for _, want := range []string{
		"<title>March 2026</title>",
		"05.03.2026",
		"pizza &lt;night&gt;",
		"alice + bob",
		"24.50",
		"12.25",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(html, "<night>") {
		t.Errorf("description was not escaped")
	}
}

func TestSummaryEmptyPeriod(t *testing.T) {
	r, err := New("02.01.2006")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	doc, err := r.Summary("April 2026", core.Summarize(nil))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(doc), "No records in this period.") {
		t.Errorf("missing empty-period note")
	}
	if !strings.Contains(string(doc), "All settled.") {
		t.Errorf("missing settled note")
	}
}
