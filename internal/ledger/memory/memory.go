// Package memory provides an in-process ledger store for the memory backend
// and for tests.
package memory

import (
	"context"
	"sync"

	"tally/internal/core"
	"tally/internal/ledger"
)

type table struct {
	columns []string
	records []core.Record
}

type Store struct {
	mu     sync.Mutex
	tables map[string]*table
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) Append(_ context.Context, period string, r core.Record) (ledger.Ref, error) {
	if err := r.Validate(); err != nil {
		return ledger.Ref{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[period]
	if !ok {
		return ledger.Ref{}, ledger.ErrPeriodNotFound
	}
	t.records = append(t.records, r)
	// Row 1 is the header.
	return ledger.Ref{Period: period, Row: len(t.records) + 1}, nil
}

func (s *Store) DeleteLast(_ context.Context, period string) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[period]
	if !ok {
		return core.Record{}, ledger.ErrPeriodNotFound
	}
	if len(t.records) == 0 {
		return core.Record{}, ledger.ErrNoRecords
	}
	last := t.records[len(t.records)-1]
	t.records = t.records[:len(t.records)-1]
	return last, nil
}

func (s *Store) ReadAll(_ context.Context, period string) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[period]
	if !ok {
		return nil, ledger.ErrPeriodNotFound
	}
	out := make([]core.Record, len(t.records))
	copy(out, t.records)
	return out, nil
}

func (s *Store) CreatePeriod(_ context.Context, period string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[period]; ok {
		return ledger.ErrPeriodExists
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	s.tables[period] = &table{columns: cols}
	return nil
}

func (s *Store) PeriodExists(_ context.Context, period string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[period]
	return ok, nil
}

// Columns returns the header of a period table, for tests and diagnostics.
func (s *Store) Columns(period string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[period]; ok {
		out := make([]string, len(t.columns))
		copy(out, t.columns)
		return out
	}
	return nil
}
