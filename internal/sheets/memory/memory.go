// Package memory is an in-process ExpenseMirror for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"sync"

	"spendlog/internal/core"
	"spendlog/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	rows [][]string
}

var _ sheets.ExpenseMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Mirror(_ context.Context, ownerID int64, e core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, sheets.Row(ownerID, e))
	return nil
}

// Rows returns a copy of every mirrored row in append order.
func (m *Mirror) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
