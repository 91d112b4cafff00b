// Package period maps calendar dates to accounting periods and drives the
// period lifecycle: boundary detection, rollover, carryover and seeding.
package period

import (
	"tally/internal/core"
)

// Resolver derives period names from dates via a Go time layout
// (e.g. "January 2006" for monthly periods). The name uniquely identifies
// the backing table.
type Resolver struct {
	Format string
}

func (r Resolver) Name(d core.Date) string {
	return d.Format(r.Format)
}

// IsLastDay reports whether d is the final day of its period, i.e. the next
// day resolves to a different name. A format that never varies with the date
// never reports a last day, so such a period can only be closed manually;
// config validation warns about it.
func (r Resolver) IsLastDay(d core.Date) bool {
	return r.Name(d) != r.Name(d.Next())
}
