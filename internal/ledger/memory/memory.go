// Package memory provides the in-memory ledger store used for local
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"kasbuku/internal/core"
	"kasbuku/internal/ledger"
)

// Ensure interface conformance
var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu            sync.RWMutex
	transactions  []core.Transaction // recording order
	expenses      []core.Expense     // recording order
	byRecording   map[int64]int      // recording-time ns -> index into transactions
	profiles      map[core.CallerID]core.UserProfile
	roles         map[core.CallerID]core.Role
	lastRecording time.Time
}

func New() *Store {
	return &Store{
		byRecording: make(map[int64]int),
		profiles:    make(map[core.CallerID]core.UserProfile),
		roles:       make(map[core.CallerID]core.Role),
	}
}

// nextRecordingTime returns a fresh, strictly increasing recording time.
// Callers must hold mu.
func (s *Store) nextRecordingTime() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastRecording) {
		now = s.lastRecording.Add(time.Nanosecond)
	}
	s.lastRecording = now
	return now
}

func (s *Store) InsertTransaction(_ context.Context, t *core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.RecordingTime = s.nextRecordingTime()
	s.byRecording[t.RecordingTime.UnixNano()] = len(s.transactions)
	s.transactions = append(s.transactions, *t)
	return nil
}

func (s *Store) InsertExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.RecordingTime = s.nextRecordingTime()
	s.expenses = append(s.expenses, *e)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, recordingTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordingTime.UnixNano()
	idx, ok := s.byRecording[key]
	if !ok {
		return core.ErrTransactionMissing
	}

	s.transactions = append(s.transactions[:idx], s.transactions[idx+1:]...)
	delete(s.byRecording, key)
	for k, i := range s.byRecording {
		if i > idx {
			s.byRecording[k] = i - 1
		}
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, recordingTime time.Time) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byRecording[recordingTime.UnixNano()]
	if !ok {
		return core.Transaction{}, core.ErrTransactionMissing
	}
	return s.transactions[idx], nil
}

// Snapshot copies both record lists under one lock acquisition, so readers
// never observe a half-applied mutation.
func (s *Store) Snapshot(_ context.Context) (core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := core.Snapshot{
		Transactions: make([]core.Transaction, len(s.transactions)),
		Expenses:     make([]core.Expense, len(s.expenses)),
	}
	copy(snap.Transactions, s.transactions)
	copy(snap.Expenses, s.expenses)
	return snap, nil
}

func (s *Store) GetProfile(_ context.Context, caller core.CallerID) (*core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[caller]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) SaveProfile(_ context.Context, caller core.CallerID, profile core.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[caller] = profile
	return nil
}

func (s *Store) GetRoleAssignment(_ context.Context, caller core.CallerID) (core.Role, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[caller]
	return role, ok, nil
}

func (s *Store) AssignRole(_ context.Context, caller core.CallerID, role core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[caller] = role
	return nil
}

func (s *Store) Close() error { return nil }
