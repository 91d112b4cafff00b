package core

import (
	"errors"
	"reflect"
	"testing"
)

var testToday = NewDate(2026, 3, 15)

func mustParse(t *testing.T, raw, sender string, cfg ParseConfig) Record {
	t.Helper()
	r, err := Parse(raw, sender, testToday, cfg)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", raw, err)
	}
	return r
}

func TestParseBasic(t *testing.T) {
	r := mustParse(t, "alice bob 30 dinner", "Carol", ParseConfig{})
	if r.Payer != "Carol" {
		t.Fatalf("payer = %q, want Carol", r.Payer)
	}
	if !reflect.DeepEqual(r.Beneficiaries, []string{"alice", "bob"}) {
		t.Fatalf("beneficiaries = %v", r.Beneficiaries)
	}
	if r.Amount.String() != "30" {
		t.Fatalf("amount = %s, want 30", r.Amount)
	}
	if r.Description != "dinner" {
		t.Fatalf("description = %q", r.Description)
	}
	if !r.Date.Equal(testToday.Time) {
		t.Fatalf("date = %v, want today", r.Date)
	}
}

func TestParseBeneficiarySeparators(t *testing.T) {
	cases := []string{
		"alice,bob 12.50",
		"alice+bob 12,50",
		"alice , bob 12.50",
		"alice + bob 12.50",
		"alice bob 12.50",
	}
	for _, raw := range cases {
		r := mustParse(t, raw, "Carol", ParseConfig{})
		if !reflect.DeepEqual(r.Beneficiaries, []string{"alice", "bob"}) {
			t.Fatalf("%q: beneficiaries = %v", raw, r.Beneficiaries)
		}
		if r.Amount.String() != "12.5" {
			t.Fatalf("%q: amount = %s", raw, r.Amount)
		}
	}
}

func TestParseDuplicateBeneficiaries(t *testing.T) {
	r := mustParse(t, "alice Alice bob 9", "Carol", ParseConfig{})
	if !reflect.DeepEqual(r.Beneficiaries, []string{"alice", "bob"}) {
		t.Fatalf("beneficiaries = %v", r.Beneficiaries)
	}
}

func TestParseDefaultBeneficiaries(t *testing.T) {
	cfg := ParseConfig{Defaults: map[string]string{"carol": "alice+bob"}}
	r := mustParse(t, "10 groceries", "Carol", cfg)
	if !reflect.DeepEqual(r.Beneficiaries, []string{"alice", "bob"}) {
		t.Fatalf("beneficiaries = %v", r.Beneficiaries)
	}
}

func TestParseMissingBeneficiaries(t *testing.T) {
	_, err := Parse("10 groceries", "Dave", testToday, ParseConfig{})
	if !errors.Is(err, ErrMissingBeneficiaries) {
		t.Fatalf("err = %v, want ErrMissingBeneficiaries", err)
	}
}

func TestParseInvalidAmount(t *testing.T) {
	for _, raw := range []string{"alice", "alice zero lunch", "", "alice 0", "alice 0.00 lunch"} {
		if _, err := Parse(raw, "Carol", testToday, ParseConfig{}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q: err = %v, want ErrInvalidAmount", raw, err)
		}
	}
}

func TestParseAlias(t *testing.T) {
	cfg := ParseConfig{Aliases: map[string]string{"carol": "Caroline"}}
	r := mustParse(t, "alice 5", "Carol", cfg)
	if r.Payer != "Caroline" {
		t.Fatalf("payer = %q, want Caroline", r.Payer)
	}
}

func TestParseEmbeddedDate(t *testing.T) {
	r := mustParse(t, "alice 5 coffee 24.12.2025 downtown", "Carol", ParseConfig{})
	if !r.Date.Equal(NewDate(2025, 12, 24).Time) {
		t.Fatalf("date = %v", r.Date)
	}
	if r.Description != "coffee downtown" {
		t.Fatalf("description = %q", r.Description)
	}
}

func TestParseEmbeddedDateCustomDelimiter(t *testing.T) {
	cfg := ParseConfig{DateDelimiter: "/"}
	r := mustParse(t, "alice 5 rent 01/02/2026", "Carol", cfg)
	if !r.Date.Equal(NewDate(2026, 2, 1).Time) {
		t.Fatalf("date = %v", r.Date)
	}
	if r.Description != "rent" {
		t.Fatalf("description = %q", r.Description)
	}
}

func TestParseBogusDateTokenKept(t *testing.T) {
	// Digits in date shape but not a calendar date: keep it in the text.
	r := mustParse(t, "alice 5 ref 99.99.2025", "Carol", ParseConfig{})
	if r.Description != "ref 99.99.2025" {
		t.Fatalf("description = %q", r.Description)
	}
	if !r.Date.Equal(testToday.Time) {
		t.Fatalf("date = %v, want today", r.Date)
	}
}

func TestParseNegativeSwap(t *testing.T) {
	r := mustParse(t, "alice -10 coffee", "bob", ParseConfig{})
	if r.Payer != "alice" {
		t.Fatalf("payer = %q, want alice", r.Payer)
	}
	if !reflect.DeepEqual(r.Beneficiaries, []string{"bob"}) {
		t.Fatalf("beneficiaries = %v", r.Beneficiaries)
	}
	if r.Amount.String() != "10" {
		t.Fatalf("amount = %s, want 10", r.Amount)
	}
}

func TestParseNegativeSwapAmbiguous(t *testing.T) {
	_, err := Parse("alice bob -10", "Carol", testToday, ParseConfig{})
	if !errors.Is(err, ErrAmbiguousSwap) {
		t.Fatalf("err = %v, want ErrAmbiguousSwap", err)
	}
}

func TestParseEmptyDescription(t *testing.T) {
	r := mustParse(t, "alice 7.5", "Carol", ParseConfig{})
	if r.Description != "" {
		t.Fatalf("description = %q, want empty", r.Description)
	}
}
