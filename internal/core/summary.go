package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type (
	// Balance is a participant's net position: total paid minus total owed.
	Balance struct {
		Participant string
		Net         decimal.Decimal
	}

	// Transfer is one clearing payment: From owes To the given amount.
	Transfer struct {
		From   string
		To     string
		Amount decimal.Decimal
	}

	// Summary aggregates a period's records. Balances are sorted by
	// participant name; Transfers is the greedy minimal clearing list.
	Summary struct {
		Records   []Record
		Balances  []Balance
		Transfers []Transfer
	}
)

// Summarize computes net balances and clearing transfers for an ordered
// record sequence. The amount of each record is split evenly across its
// beneficiaries; the payer is credited the full amount. All arithmetic is
// exact decimal addition, so the balances sum to exactly zero and the result
// is identical for identical input.
func Summarize(records []Record) Summary {
	net := map[string]decimal.Decimal{}
	for _, r := range records {
		net[r.Payer] = net[r.Payer].Add(r.Amount)
		for i, share := range SplitEven(r.Amount, len(r.Beneficiaries)) {
			b := r.Beneficiaries[i]
			net[b] = net[b].Sub(share)
		}
	}

	balances := make([]Balance, 0, len(net))
	for p, n := range net {
		balances = append(balances, Balance{Participant: p, Net: n})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Participant < balances[j].Participant })

	return Summary{
		Records:   records,
		Balances:  balances,
		Transfers: clearingTransfers(balances),
	}
}

// SplitEven divides amount into n shares that sum exactly to amount. Shares
// are equal at the amount's own scale (at least cents); the indivisible
// remainder is distributed one unit at a time to the earliest shares.
func SplitEven(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	scale := int32(2)
	if -amount.Exponent() > scale {
		scale = -amount.Exponent()
	}
	q, rem := amount.QuoRem(decimal.NewFromInt(int64(n)), scale)
	unit := decimal.New(1, -scale)
	if amount.IsNegative() {
		unit = unit.Neg()
	}
	units := rem.Abs().Shift(scale).IntPart()

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = q
		if int64(i) < units {
			shares[i] = shares[i].Add(unit)
		}
	}
	return shares
}

// clearingTransfers computes the greedy transfer list that settles the given
// balances: repeatedly match the largest creditor with the largest debtor.
// Ties break alphabetically so the output is deterministic.
func clearingTransfers(balances []Balance) []Transfer {
	open := make([]Balance, 0, len(balances))
	for _, b := range balances {
		if !b.Net.IsZero() {
			open = append(open, b)
		}
	}

	var transfers []Transfer
	for len(open) > 1 {
		ci, di := 0, 0
		for i, b := range open {
			if b.Net.GreaterThan(open[ci].Net) {
				ci = i
			}
			if b.Net.LessThan(open[di].Net) {
				di = i
			}
		}
		creditor, debtor := open[ci], open[di]
		paid := creditor.Net
		owed := debtor.Net.Neg()

		amount := paid
		if owed.LessThan(paid) {
			amount = owed
		}
		transfers = append(transfers, Transfer{From: debtor.Participant, To: creditor.Participant, Amount: amount})

		if paid.GreaterThanOrEqual(owed) {
			open[ci].Net = paid.Sub(owed)
			open = remove(open, di)
		} else {
			open[di].Net = debtor.Net.Add(paid)
			open = remove(open, ci)
		}
		open = compact(open)
	}

	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].From != transfers[j].From {
			return transfers[i].From < transfers[j].From
		}
		return transfers[i].To < transfers[j].To
	})
	return transfers
}

func remove(bs []Balance, i int) []Balance {
	out := make([]Balance, 0, len(bs)-1)
	out = append(out, bs[:i]...)
	return append(out, bs[i+1:]...)
}

func compact(bs []Balance) []Balance {
	out := bs[:0]
	for _, b := range bs {
		if !b.Net.IsZero() {
			out = append(out, b)
		}
	}
	return out
}

// CarryoverRecords materializes the closing period's clearing transfers as
// the opening records of the next period: one record per debtor/creditor
// pair, payer = creditor, sole beneficiary = debtor. Re-summarizing just
// these records reproduces the closing balances.
func CarryoverRecords(transfers []Transfer, date Date, closedPeriod string) []Record {
	records := make([]Record, 0, len(transfers))
	for _, t := range transfers {
		records = append(records, Record{
			Date:          date,
			Description:   fmt.Sprintf("carryover %s", closedPeriod),
			Payer:         t.To,
			Beneficiaries: []string{t.From},
			Amount:        t.Amount,
		})
	}
	return records
}
