package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrMissingBeneficiaries = errors.New("missing beneficiaries")
	ErrAmbiguousSwap        = errors.New("a negative amount must refer to a single beneficiary")
)

// ParseConfig carries the per-deployment parsing tables, validated at load
// time by the config package.
type ParseConfig struct {
	// Aliases maps a lowercased sender first name to the canonical
	// participant name used in the ledger.
	Aliases map[string]string
	// Defaults maps a lowercased sender first name to a beneficiaries
	// string ("alice+bob") substituted when the command names none.
	Defaults map[string]string
	// DateDelimiter separates day, month and year in an embedded date
	// token (default ".": 24.12.2026).
	DateDelimiter string
}

func (c ParseConfig) delimiter() string {
	if c.DateDelimiter == "" {
		return "."
	}
	return c.DateDelimiter
}

// commandRe captures <beneficiaries> <amount> <description>. The
// beneficiaries group is optional; the amount is the first signed decimal
// token.
var commandRe = regexp.MustCompile(`^\s*((?:[^\s,+0-9][^\s,+]*[\s,+]*)*)([+-]?[0-9]+(?:[.,][0-9]+)?)\s*(.*)$`)

var nameRe = regexp.MustCompile(`[^\s,+]+`)

// Parse turns the argument text of a /new command into a Record.
//
// today is the wall-clock date used when the description embeds no explicit
// date token. On success the returned record is fully populated and its
// amount is positive.
func Parse(rawText, sender string, today Date, cfg ParseConfig) (Record, error) {
	m := commandRe.FindStringSubmatch(strings.TrimSpace(rawText))
	if m == nil {
		return Record{}, ErrInvalidAmount
	}

	beneficiaries := splitNames(m[1])
	if len(beneficiaries) == 0 {
		def, ok := cfg.Defaults[strings.ToLower(sender)]
		if !ok {
			return Record{}, ErrMissingBeneficiaries
		}
		beneficiaries = splitNames(def)
		if len(beneficiaries) == 0 {
			return Record{}, ErrMissingBeneficiaries
		}
	}

	amount, err := ParseAmount(m[2])
	if err != nil {
		return Record{}, err
	}

	description, date := extractDate(strings.TrimSpace(m[3]), cfg.delimiter())
	if date.IsZero() {
		date = today
	}

	payer := sender
	if alias, ok := cfg.Aliases[strings.ToLower(sender)]; ok {
		payer = alias
	}

	if amount.IsNegative() {
		// "X -10" shorthand: X paid the sender back.
		if len(beneficiaries) != 1 {
			return Record{}, ErrAmbiguousSwap
		}
		payer, beneficiaries = beneficiaries[0], []string{payer}
		amount = amount.Abs()
	}

	return Record{
		Date:          date,
		Description:   description,
		Payer:         payer,
		Beneficiaries: beneficiaries,
		Amount:        amount,
	}, nil
}

// splitNames splits a beneficiaries token on ",", "+" or whitespace into an
// ordered set, deduplicated case-insensitively with the first spelling kept.
func splitNames(s string) []string {
	parts := nameRe.FindAllString(s, -1)
	seen := map[string]struct{}{}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		key := strings.ToLower(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// extractDate pulls a dd<sep>mm<sep>yyyy token out of the description. The
// token is removed from the returned description. A zero Date means no token
// was found.
func extractDate(description, delim string) (string, Date) {
	q := regexp.QuoteMeta(delim)
	re := regexp.MustCompile(`\d{2}` + q + `\d{2}` + q + `\d{4}`)
	token := re.FindString(description)
	if token == "" {
		return description, Date{}
	}
	layout := "02" + delim + "01" + delim + "2006"
	t, err := time.Parse(layout, token)
	if err != nil {
		// Digits matched but not a real calendar date; leave it in place.
		return description, Date{}
	}
	description = strings.TrimSpace(strings.Join(strings.Fields(strings.Replace(description, token, " ", 1)), " "))
	return description, DateOf(t)
}
