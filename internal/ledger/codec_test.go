package ledger

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func TestCodecRoundTrip(t *testing.T) {
	c := Codec{DateLayout: "02.01.2006"}
	records := []core.Record{
		{
			Date:          core.NewDate(2026, 3, 15),
			Description:   "dinner",
			Payer:         "Carol",
			Beneficiaries: []string{"alice", "bob"},
			Amount:        decimal.RequireFromString("12.5"),
		},
		{
			// Description containing a date substring survives unchanged.
			Date:          core.NewDate(2025, 12, 24),
			Description:   "tickets for 24.12.2025 show",
			Payer:         "bob",
			Beneficiaries: []string{"Carol"},
			Amount:        decimal.RequireFromString("100"),
		},
		{
			Date:          core.NewDate(2026, 1, 1),
			Description:   "",
			Payer:         "alice",
			Beneficiaries: []string{"alice"},
			Amount:        decimal.RequireFromString("0.01"),
		},
	}
	for i, r := range records {
		row := c.Encode(r)
		got, err := c.Decode(row)
		if err != nil {
			t.Fatalf("record %d: decode: %v", i, err)
		}
		if !got.Date.Equal(r.Date.Time) || got.Description != r.Description ||
			got.Payer != r.Payer || !reflect.DeepEqual(got.Beneficiaries, r.Beneficiaries) ||
			!got.Amount.Equal(r.Amount) {
			t.Fatalf("record %d: round trip mismatch:\n got %+v\nwant %+v", i, got, r)
		}
	}
}

func TestCodecDecodeErrors(t *testing.T) {
	c := Codec{}
	cases := [][]string{
		{"01.01.2026", "x", "alice"},                     // short row
		{"bogus", "x", "alice", "bob", "1"},              // bad date
		{"01.01.2026", "x", "alice", "bob", "not-money"}, // bad amount
	}
	for i, row := range cases {
		if _, err := c.Decode(row); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
