package period

import (
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Template is one configured recurring entry, validated at config load.
type Template struct {
	Description   string
	Payer         string
	Beneficiaries []string
	Amount        decimal.Decimal
}

// Seeder materializes the configured templates into a newly opened period,
// after the carryover rows and before any organic record. Templates are
// re-evaluated on every period open; repeating them across periods is the
// operator's configuration decision, no dedup happens here.
type Seeder struct {
	templates []Template
}

func NewSeeder(templates []Template) *Seeder {
	return &Seeder{templates: templates}
}

// Records returns one record per template, dated with the new period's
// opening date.
func (s *Seeder) Records(date core.Date) []core.Record {
	out := make([]core.Record, 0, len(s.templates))
	for _, t := range s.templates {
		beneficiaries := make([]string, len(t.Beneficiaries))
		copy(beneficiaries, t.Beneficiaries)
		out = append(out, core.Record{
			Date:          date,
			Description:   t.Description,
			Payer:         t.Payer,
			Beneficiaries: beneficiaries,
			Amount:        t.Amount,
		})
	}
	return out
}
