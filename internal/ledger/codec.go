package ledger

import (
	"fmt"
	"strings"
	"time"

	"tally/internal/core"
)

// Codec converts records to and from period-table rows
// [date, description, payer, beneficiaries, amount]. Beneficiaries are
// joined with " + "; the amount is serialized as a plain decimal string.
type Codec struct {
	// DateLayout is the Go time layout for the date column,
	// e.g. "02.01.2006".
	DateLayout string
}

const beneficiarySep = " + "

func (c Codec) layout() string {
	if c.DateLayout == "" {
		return "02.01.2006"
	}
	return c.DateLayout
}

func (c Codec) Encode(r core.Record) []string {
	return []string{
		r.Date.Format(c.layout()),
		r.Description,
		r.Payer,
		strings.Join(r.Beneficiaries, beneficiarySep),
		r.Amount.String(),
	}
}

func (c Codec) Decode(row []string) (core.Record, error) {
	if len(row) < len(Columns) {
		return core.Record{}, fmt.Errorf("row has %d columns, want %d", len(row), len(Columns))
	}
	t, err := time.Parse(c.layout(), strings.TrimSpace(row[0]))
	if err != nil {
		return core.Record{}, fmt.Errorf("parse date %q: %w", row[0], err)
	}
	amount, err := core.ParseAmount(row[4])
	if err != nil {
		return core.Record{}, fmt.Errorf("parse amount %q: %w", row[4], err)
	}
	var beneficiaries []string
	for _, b := range strings.Split(row[3], "+") {
		if b = strings.TrimSpace(b); b != "" {
			beneficiaries = append(beneficiaries, b)
		}
	}
	return core.Record{
		Date:          core.DateOf(t),
		Description:   strings.TrimSpace(row[1]),
		Payer:         strings.TrimSpace(row[2]),
		Beneficiaries: beneficiaries,
		Amount:        amount,
	}, nil
}
