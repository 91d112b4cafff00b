// Package google implements the ledger store on a Google spreadsheet with
// one worksheet per accounting period.
package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
	"tally/internal/ledger"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	codec         ledger.Codec
	retry         retryOptions
}

var _ ledger.Store = (*Client)(nil)

// Config carries the spreadsheet coordinates and credentials. Exactly one of
// the credential sources must be set; see Credentials.
type Config struct {
	SpreadsheetID string
	DateLayout    string
	Credentials   Credentials
}

// New creates a sheets-backed store. The retry policy for transient API
// failures lives here, at the collaborator boundary; callers never retry.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	opts, err := cfg.Credentials.clientOptions(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		codec:         ledger.Codec{DateLayout: cfg.DateLayout},
		retry:         defaultRetryOptions,
	}, nil
}

func (c *Client) Append(ctx context.Context, period string, r core.Record) (ledger.Ref, error) {
	if err := r.Validate(); err != nil {
		return ledger.Ref{}, err
	}
	row := toAny(c.codec.Encode(r))

	var resp *gsheet.AppendValuesResponse
	err := withRetry(ctx, c.retry, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.
			Append(c.spreadsheetID, period, &gsheet.ValueRange{Values: [][]any{row}}).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		return err
	})
	if err != nil {
		return ledger.Ref{}, c.mapErr(fmt.Errorf("append to %s: %w", period, err))
	}

	rowNum, err := rowOfRange(resp.Updates.UpdatedRange)
	if err != nil {
		return ledger.Ref{}, fmt.Errorf("append to %s: %w", period, err)
	}
	return ledger.Ref{Period: period, Row: rowNum}, nil
}

func (c *Client) DeleteLast(ctx context.Context, period string) (core.Record, error) {
	rows, err := c.readRows(ctx, period)
	if err != nil {
		return core.Record{}, err
	}
	last := len(rows)
	for last > 1 && emptyRow(rows[last-1]) {
		last--
	}
	if last <= 1 {
		return core.Record{}, ledger.ErrNoRecords
	}
	record, err := c.codec.Decode(rows[last-1])
	if err != nil {
		return core.Record{}, fmt.Errorf("decode row %d of %s: %w", last, period, err)
	}

	rng := fmt.Sprintf("%s!A%d:E%d", period, last, last)
	err = withRetry(ctx, c.retry, func() error {
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return core.Record{}, c.mapErr(fmt.Errorf("clear %s: %w", rng, err))
	}
	return record, nil
}

func (c *Client) ReadAll(ctx context.Context, period string) ([]core.Record, error) {
	rows, err := c.readRows(ctx, period)
	if err != nil {
		return nil, err
	}
	var out []core.Record
	for i, row := range rows {
		if i == 0 || emptyRow(row) {
			// Header or a row cleared by an undo.
			continue
		}
		r, err := c.codec.Decode(row)
		if err != nil {
			return nil, fmt.Errorf("decode row %d of %s: %w", i+1, period, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *Client) CreatePeriod(ctx context.Context, period string, columns []string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: period},
			},
		}},
	}
	err := withRetry(ctx, c.retry, func() error {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ledger.ErrPeriodExists
		}
		return fmt.Errorf("add sheet %s: %w", period, err)
	}

	rng := fmt.Sprintf("%s!A1:E1", period)
	vr := &gsheet.ValueRange{Range: rng, Values: [][]any{toAny(columns)}}
	err = withRetry(ctx, c.retry, func() error {
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("write header of %s: %w", period, err)
	}
	return nil
}

func (c *Client) PeriodExists(ctx context.Context, period string) (bool, error) {
	var meta *gsheet.Spreadsheet
	err := withRetry(ctx, c.retry, func() error {
		var err error
		meta, err = c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == period {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) readRows(ctx context.Context, period string) ([][]string, error) {
	var resp *gsheet.ValueRange
	err := withRetry(ctx, c.retry, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(c.spreadsheetID, period).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, c.mapErr(fmt.Errorf("read %s: %w", period, err))
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cols := make([]string, len(row))
		for j, v := range row {
			cols[j] = strings.TrimSpace(fmt.Sprint(v))
		}
		rows[i] = cols
	}
	return rows, nil
}

// mapErr translates "no such sheet" API failures to the port sentinel.
func (c *Client) mapErr(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "Unable to parse range") || strings.Contains(msg, "not found") {
		return fmt.Errorf("%w: %v", ledger.ErrPeriodNotFound, err)
	}
	return err
}

// rowOfRange extracts the first row number from an A1 range like
// "March 2026!A5:E5".
func rowOfRange(a1 string) (int, error) {
	parts := strings.SplitN(a1, "!", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("unexpected updated range %q", a1)
	}
	cell := strings.SplitN(parts[1], ":", 2)[0]
	digits := strings.TrimLeft(cell, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("unexpected updated range %q", a1)
	}
	return n, nil
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
