// Package storage maintains a local SQLite copy of every spreadsheet
// mutation, fed by the archive worker. The spreadsheet stays the source of
// truth; the archive is for queries and disaster recovery.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// ArchivedRecord is one row of the archive, identified by its spreadsheet
// position.
type ArchivedRecord struct {
	Period     string
	Row        int
	Record     core.Record
	Deleted    bool
	ArchivedAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Archive stores a record at its spreadsheet position. Redelivered events
// hit the (period, row) unique key and overwrite, so applying the same
// event twice is harmless.
func (r *SQLiteRepository) Archive(ctx context.Context, period string, row int, rec core.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (period, sheet_row, date, description, payer, beneficiaries, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (period, sheet_row) DO UPDATE SET
			date = excluded.date,
			description = excluded.description,
			payer = excluded.payer,
			beneficiaries = excluded.beneficiaries,
			amount = excluded.amount,
			deleted = 0`,
		period, row,
		rec.Date.Format(dateLayout),
		rec.Description,
		rec.Payer,
		strings.Join(rec.Beneficiaries, " + "),
		rec.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("archive record %s row %d: %w", period, row, err)
	}

	slog.InfoContext(ctx, "Record archived",
		"period", period,
		"row", row,
		"record_description", rec.Description,
		"amount", rec.Amount.String())
	return nil
}

// MarkRemoved flags an undone insertion. The row is kept for audit; it no
// longer counts as part of the period.
func (r *SQLiteRepository) MarkRemoved(ctx context.Context, period string, row int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET deleted = 1 WHERE period = ? AND sheet_row = ?`,
		period, row)
	if err != nil {
		return fmt.Errorf("mark removed %s row %d: %w", period, row, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark removed %s row %d: %w", period, row, err)
	}
	if n == 0 {
		// The removal can outrun the insertion when events are redelivered
		// out of order; nothing to flag yet.
		slog.WarnContext(ctx, "Removal for unknown archive row",
			"period", period, "row", row)
	}
	return nil
}

// RecordClosure notes a completed rollover. Duplicate closure events are
// ignored.
func (r *SQLiteRepository) RecordClosure(ctx context.Context, closed, opened string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO period_closures (closed_period, opened_period)
		VALUES (?, ?)
		ON CONFLICT (closed_period, opened_period) DO NOTHING`,
		closed, opened)
	if err != nil {
		return fmt.Errorf("record closure %s -> %s: %w", closed, opened, err)
	}
	return nil
}

// Records returns the live (non-deleted) archive rows of a period in
// spreadsheet order.
func (r *SQLiteRepository) Records(ctx context.Context, period string) ([]ArchivedRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT period, sheet_row, date, description, payer, beneficiaries, amount, deleted, archived_at
		FROM records
		WHERE period = ? AND deleted = 0
		ORDER BY sheet_row`,
		period)
	if err != nil {
		return nil, fmt.Errorf("query records for %s: %w", period, err)
	}
	defer rows.Close()

	var out []ArchivedRecord
	for rows.Next() {
		var (
			a             ArchivedRecord
			date          string
			beneficiaries string
			amount        string
			deleted       int
			archivedAt    string
		)
		if err := rows.Scan(&a.Period, &a.Row, &date, &a.Record.Description, &a.Record.Payer,
			&beneficiaries, &amount, &deleted, &archivedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse archived date %q: %w", date, err)
		}
		a.Record.Date = core.DateOf(d)

		a.Record.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse archived amount %q: %w", amount, err)
		}

		for _, name := range strings.Split(beneficiaries, "+") {
			if name = strings.TrimSpace(name); name != "" {
				a.Record.Beneficiaries = append(a.Record.Beneficiaries, name)
			}
		}
		a.Deleted = deleted != 0
		if t, err := time.Parse("2006-01-02 15:04:05", archivedAt); err == nil {
			a.ArchivedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Closures returns the recorded rollovers, oldest first.
func (r *SQLiteRepository) Closures(ctx context.Context) ([][2]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT closed_period, opened_period FROM period_closures ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query closures: %w", err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var closed, opened string
		if err := rows.Scan(&closed, &opened); err != nil {
			return nil, fmt.Errorf("scan closure: %w", err)
		}
		out = append(out, [2]string{closed, opened})
	}
	return out, rows.Err()
}
