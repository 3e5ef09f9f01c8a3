// Package services orchestrates ledger operations across the store, the
// access controller and the AMQP event stream.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kasbuku/internal/access"
	"kasbuku/internal/amqp"
	"kasbuku/internal/core"
	"kasbuku/internal/ledger"
)

// timeNow is the server clock, overridable in tests.
var timeNow = time.Now

// EventPublisher publishes ledger events for the mirror worker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// LedgerService is the operation surface of the system. Every method takes
// the caller identity and applies the visibility scope before touching
// records; mutations publish an event after the local write succeeds, and
// a failed publish never fails the request.
type LedgerService struct {
	store  ledger.Store
	access *access.Controller
	events EventPublisher
}

func NewLedgerService(store ledger.Store, accessCtrl *access.Controller, events EventPublisher) *LedgerService {
	return &LedgerService{
		store:  store,
		access: accessCtrl,
		events: events,
	}
}

// TransactionInput is the caller-supplied part of a new transaction.
type TransactionInput struct {
	Items           []core.LineItem
	TransactionTime time.Time
	PaymentAmount   *int64
	ChangeAmount    *int64
}

// ExpenseInput is the caller-supplied part of a new expense.
type ExpenseInput struct {
	Category    string
	Description string
	Amount      int64
	ExpenseDate time.Time
	Note        *string
}

// OwnerDashboard pairs a record owner with that owner's dashboard summary.
type OwnerDashboard struct {
	Owner   core.CallerID
	Summary core.DashboardSummary
}

func ownerOf(caller core.CallerID) *core.CallerID {
	if caller == "" {
		return nil
	}
	return &caller
}

// AddTransaction validates, stores and announces a new sale.
func (s *LedgerService) AddTransaction(ctx context.Context, caller core.CallerID, in TransactionInput) (core.Transaction, error) {
	tx, err := core.NewTransaction(ownerOf(caller), in.Items, in.TransactionTime, in.PaymentAmount, in.ChangeAmount, timeNow())
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.InsertTransaction(ctx, &tx); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	s.publish(ctx, amqp.NewTransactionRecordedEvent(tx.RecordingTime))
	return tx, nil
}

// AddExpense validates, stores and announces a new expense.
func (s *LedgerService) AddExpense(ctx context.Context, caller core.CallerID, in ExpenseInput) (core.Expense, error) {
	e, err := core.NewExpense(ownerOf(caller), in.Category, in.Description, in.Amount, in.ExpenseDate, in.Note)
	if err != nil {
		return core.Expense{}, err
	}

	if err := s.store.InsertExpense(ctx, &e); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	s.publish(ctx, amqp.NewExpenseRecordedEvent(e))
	return e, nil
}

// DeleteTransaction permanently removes a transaction. Only the record's
// owner or an admin may delete it; the removal retroactively changes every
// report whose window covered the record.
func (s *LedgerService) DeleteTransaction(ctx context.Context, caller core.CallerID, recordingTime time.Time) error {
	tx, err := s.store.GetTransaction(ctx, recordingTime)
	if err != nil {
		return err
	}

	role, err := s.access.RoleOf(ctx, caller)
	if err != nil {
		return err
	}
	if !role.IsAdmin() && !core.ScopeOwner(caller).Allows(tx.Owner) {
		return fmt.Errorf("%w: only the owner or an admin may delete a transaction", core.ErrUnauthorized)
	}

	if err := s.store.DeleteTransaction(ctx, recordingTime); err != nil {
		return err
	}

	s.publish(ctx, amqp.NewTransactionDeletedEvent(recordingTime))
	return nil
}

// GetTransaction fetches one transaction by recording time. A record the
// caller is not allowed to see reads as not found, so existence does not
// leak across owners.
func (s *LedgerService) GetTransaction(ctx context.Context, caller core.CallerID, recordingTime time.Time) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, recordingTime)
	if err != nil {
		return core.Transaction{}, err
	}
	scope, err := s.access.ScopeFor(ctx, caller)
	if err != nil {
		return core.Transaction{}, err
	}
	if !scope.Allows(tx.Owner) {
		return core.Transaction{}, core.ErrTransactionMissing
	}
	return tx, nil
}

// ListTransactions returns the caller's visible transactions in recording order.
func (s *LedgerService) ListTransactions(ctx context.Context, caller core.CallerID) ([]core.Transaction, error) {
	snap, err := s.visibleSnapshot(ctx, caller)
	if err != nil {
		return nil, err
	}
	if snap.Transactions == nil {
		return []core.Transaction{}, nil
	}
	return snap.Transactions, nil
}

// ListExpenses returns the caller's visible expenses in recording order.
func (s *LedgerService) ListExpenses(ctx context.Context, caller core.CallerID) ([]core.Expense, error) {
	snap, err := s.visibleSnapshot(ctx, caller)
	if err != nil {
		return nil, err
	}
	if snap.Expenses == nil {
		return []core.Expense{}, nil
	}
	return snap.Expenses, nil
}

// TransactionHistory returns the caller's visible transactions whose
// business time falls within the UTC day containing day.
func (s *LedgerService) TransactionHistory(ctx context.Context, caller core.CallerID, day time.Time) ([]core.Transaction, error) {
	snap, err := s.visibleSnapshot(ctx, caller)
	if err != nil {
		return nil, err
	}
	return core.BuildDailyReport(snap, day).Transactions, nil
}

// DailyReport aggregates one UTC day. A non-nil owner requests another
// caller's report, which only admins may do.
func (s *LedgerService) DailyReport(ctx context.Context, caller core.CallerID, date time.Time, owner *core.CallerID) (core.DailyReport, error) {
	snap, err := s.ownerSnapshot(ctx, caller, owner)
	if err != nil {
		return core.DailyReport{}, err
	}
	return core.BuildDailyReport(snap, date), nil
}

// MonthlyReport aggregates one UTC month, including the per-category
// expense breakdown in first-seen order.
func (s *LedgerService) MonthlyReport(ctx context.Context, caller core.CallerID, month time.Time, owner *core.CallerID) (core.MonthlyReport, error) {
	snap, err := s.ownerSnapshot(ctx, caller, owner)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	return core.BuildMonthlyReport(snap, month), nil
}

// DashboardSummary combines today's and this month's aggregates over the
// caller's own records. Admins get no cross-caller view here, keeping each
// entry consistent with MultiDeviceDashboard; the admin-wide picture is
// that method's job.
func (s *LedgerService) DashboardSummary(ctx context.Context, caller core.CallerID) (core.DashboardSummary, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("snapshot: %w", err)
	}
	return core.BuildDashboard(snap.Filter(core.ScopeOwner(caller)), timeNow()), nil
}

// MultiDeviceDashboard computes one dashboard per distinct record owner,
// in first-seen order over the ledger. Admin only.
func (s *LedgerService) MultiDeviceDashboard(ctx context.Context, caller core.CallerID) ([]OwnerDashboard, error) {
	role, err := s.access.RoleOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !role.IsAdmin() {
		return nil, fmt.Errorf("%w: cross-caller dashboard is admin only", core.ErrUnauthorized)
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	now := timeNow()
	out := []OwnerDashboard{}
	for _, owner := range core.DistinctOwners(snap) {
		out = append(out, OwnerDashboard{
			Owner:   owner,
			Summary: core.BuildDashboard(snap.Filter(core.ScopeOwner(owner)), now),
		})
	}
	return out, nil
}

// ExpensesByCategory sums expenses per category across all owners for the
// UTC month containing month. Guests are refused; the totals are global.
func (s *LedgerService) ExpensesByCategory(ctx context.Context, caller core.CallerID, month time.Time) ([]core.CategoryAmount, error) {
	role, err := s.access.RoleOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	if role == core.RoleGuest {
		return nil, fmt.Errorf("%w: category totals need a registered caller", core.ErrUnauthorized)
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return core.BuildMonthlyReport(snap, month).ByCategory, nil
}

// AssignRole stores an explicit role for target. Admin only.
func (s *LedgerService) AssignRole(ctx context.Context, caller, target core.CallerID, role core.Role) error {
	return s.access.AssignRole(ctx, caller, target, role)
}

// RoleOf resolves the caller's effective role.
func (s *LedgerService) RoleOf(ctx context.Context, caller core.CallerID) (core.Role, error) {
	return s.access.RoleOf(ctx, caller)
}

// GetProfile returns the caller's own profile, nil if none is saved.
func (s *LedgerService) GetProfile(ctx context.Context, caller core.CallerID) (*core.UserProfile, error) {
	if caller == "" {
		return nil, nil
	}
	return s.store.GetProfile(ctx, caller)
}

// SaveProfile stores or replaces the caller's profile, which also promotes
// a guest to a user on the next role resolution.
func (s *LedgerService) SaveProfile(ctx context.Context, caller core.CallerID, profile core.UserProfile) error {
	if caller == "" {
		return fmt.Errorf("%w: anonymous callers cannot save a profile", core.ErrUnauthorized)
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	return s.store.SaveProfile(ctx, caller, profile)
}

// GetProfileOf returns another caller's profile. Reading someone else's
// profile requires the admin role.
func (s *LedgerService) GetProfileOf(ctx context.Context, caller, target core.CallerID) (*core.UserProfile, error) {
	if target != caller {
		role, err := s.access.RoleOf(ctx, caller)
		if err != nil {
			return nil, err
		}
		if !role.IsAdmin() {
			return nil, fmt.Errorf("%w: cannot read another caller's profile", core.ErrUnauthorized)
		}
	}
	return s.store.GetProfile(ctx, target)
}

// visibleSnapshot reads one consistent snapshot and filters it to the
// caller's own scope.
func (s *LedgerService) visibleSnapshot(ctx context.Context, caller core.CallerID) (core.Snapshot, error) {
	scope, err := s.access.ScopeFor(ctx, caller)
	if err != nil {
		return core.Snapshot{}, err
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return snap.Filter(scope), nil
}

// ownerSnapshot is visibleSnapshot for report requests that may name a
// different owner (admin-on-behalf-of-user).
func (s *LedgerService) ownerSnapshot(ctx context.Context, caller core.CallerID, owner *core.CallerID) (core.Snapshot, error) {
	scope, err := s.access.ScopeForOwner(ctx, caller, owner)
	if err != nil {
		return core.Snapshot{}, err
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return snap.Filter(scope), nil
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping ledger event", "type", event.Type)
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		// The local write already succeeded; the mirror catches up later.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", event.Type,
			"recording_time_ns", event.RecordingTimeNs,
			"error", err)
	}
}

// Close releases the store and the event publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if closer, ok := s.events.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
