package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Date is a calendar date without a time component.
	Date struct {
		time.Time
	}

	// Record is one ledger line: the payer paid the amount, split evenly
	// across the beneficiaries. Amount is always stored positive; the sign
	// of the raw input is consumed during parsing.
	Record struct {
		Date          Date
		Description   string
		Payer         string
		Beneficiaries []string
		Amount        decimal.Decimal
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyPayer         = errors.New("empty payer")
	ErrNoBeneficiaries    = errors.New("no beneficiaries")
	ErrNonPositiveAmount  = errors.New("amount must be positive")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return Date{Time: d.AddDate(0, 0, 1)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Payer) == "" {
		return ErrEmptyPayer
	}
	if len(r.Beneficiaries) == 0 {
		return ErrNoBeneficiaries
	}
	for _, b := range r.Beneficiaries {
		if strings.TrimSpace(b) == "" {
			return ErrNoBeneficiaries
		}
	}
	if !r.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if len(r.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}
