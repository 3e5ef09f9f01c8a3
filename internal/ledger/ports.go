// Package ledger defines the port for durable ledger storage.
package ledger

import (
	"context"
	"time"

	"kasbuku/internal/core"
)

// Store is the ownership point for all ledger mutations. Implementations
// serialize inserts so recording times stay strictly increasing, and
// Snapshot returns a consistent read taken at call start.
//
// Two implementations exist: the in-memory store (dev and tests) and the
// SQLite repository (production).
type Store interface {
	// InsertTransaction assigns a fresh recording time to t and stores it.
	InsertTransaction(ctx context.Context, t *core.Transaction) error

	// InsertExpense assigns a fresh recording time to e and stores it.
	InsertExpense(ctx context.Context, e *core.Expense) error

	// DeleteTransaction permanently removes the transaction keyed by
	// recordingTime. Returns core.ErrNotFound if no such record exists.
	DeleteTransaction(ctx context.Context, recordingTime time.Time) error

	// GetTransaction fetches one transaction by its recording-time key.
	// Returns core.ErrNotFound if absent.
	GetTransaction(ctx context.Context, recordingTime time.Time) (core.Transaction, error)

	// Snapshot returns all transactions and expenses in recording order,
	// read consistently at call start.
	Snapshot(ctx context.Context) (core.Snapshot, error)

	// GetProfile returns the caller's profile, or nil if none is saved.
	GetProfile(ctx context.Context, caller core.CallerID) (*core.UserProfile, error)

	// SaveProfile stores or replaces the caller's profile.
	SaveProfile(ctx context.Context, caller core.CallerID, profile core.UserProfile) error

	// GetRoleAssignment returns the explicitly assigned role for a caller,
	// with ok=false when no assignment exists.
	GetRoleAssignment(ctx context.Context, caller core.CallerID) (role core.Role, ok bool, err error)

	// AssignRole stores or replaces a caller's explicit role assignment.
	AssignRole(ctx context.Context, caller core.CallerID, role core.Role) error

	// Close releases any resources held by the store.
	Close() error
}
