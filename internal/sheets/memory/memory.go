package memory

import (
	"context"
	"sync"

	"fintrack/internal/sheets"
)

var _ sheets.Mirror = (*Store)(nil)

// Store is an in-process mirror used when no spreadsheet is configured.
type Store struct {
	mu       sync.Mutex
	rows     [][]string
	replaces int
}

func New() *Store {
	return &Store{}
}

// ReplaceRows keeps a deep copy of rows.
func (s *Store) ReplaceRows(_ context.Context, rows [][]string) error {
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = cp
	s.replaces++
	return nil
}

// Rows returns a copy of the mirrored rows.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Replaces reports how many times the mirror was rewritten.
func (s *Store) Replaces() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaces
}
