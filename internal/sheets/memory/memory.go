// Package memory is an in-process mirror for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kasbuku/internal/core"
)

type Mirror struct {
	mu           sync.Mutex
	transactions map[int64]core.Transaction
	expenses     []core.Expense
}

func New() *Mirror {
	return &Mirror{transactions: make(map[int64]core.Transaction)}
}

// AppendTransaction stores the row and returns a synthetic reference.
func (m *Mirror) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := t.RecordingTime.UnixNano()
	m.transactions[key] = t
	return fmt.Sprintf("mem:tx:%d", key), nil
}

// AppendExpense stores the row and returns a synthetic reference.
func (m *Mirror) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = append(m.expenses, e)
	return fmt.Sprintf("mem:exp:%d", len(m.expenses)), nil
}

// RemoveTransaction drops the row; a key that was never mirrored is fine.
func (m *Mirror) RemoveTransaction(_ context.Context, recordingTimeNs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, recordingTimeNs)
	return nil
}

// Transactions returns the mirrored transactions, keyed by recording time.
func (m *Mirror) Transactions() map[int64]core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]core.Transaction, len(m.transactions))
	for k, v := range m.transactions {
		out[k] = v
	}
	return out
}

// Expenses returns the mirrored expenses in append order.
func (m *Mirror) Expenses() []core.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Expense(nil), m.expenses...)
}
