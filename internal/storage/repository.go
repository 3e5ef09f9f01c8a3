// Package storage provides the SQLite-backed ledger store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kasbuku/internal/core"
	"kasbuku/internal/ledger"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Ensure interface conformance
var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB

	// Inserts serialize through mu so recording times stay strictly
	// increasing even when the wall clock does not advance between calls.
	mu            sync.Mutex
	lastRecording time.Time
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

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.loadRecordingClock(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load recording clock: %w", err)
	}

	return repo, nil
}

// loadRecordingClock resumes the monotonic recording clock from the
// highest recording time already persisted, across both record kinds.
func (r *SQLiteRepository) loadRecordingClock() error {
	var maxNs sql.NullInt64
	err := r.db.QueryRow(`
		SELECT MAX(ns) FROM (
			SELECT MAX(recording_time_ns) AS ns FROM transactions
			UNION ALL
			SELECT MAX(recording_time_ns) AS ns FROM expenses
		)`).Scan(&maxNs)
	if err != nil {
		return err
	}
	if maxNs.Valid {
		r.lastRecording = time.Unix(0, maxNs.Int64).UTC()
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// nextRecordingTime returns a fresh, strictly increasing recording time.
// Callers must hold mu.
func (r *SQLiteRepository) nextRecordingTime() time.Time {
	now := time.Now().UTC()
	if !now.After(r.lastRecording) {
		now = r.lastRecording.Add(time.Nanosecond)
	}
	r.lastRecording = now
	return now
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t *core.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.RecordingTime = r.nextRecordingTime()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (recording_time_ns, transaction_time_ns, total, payment_amount, change_amount, owner)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.RecordingTime.UnixNano(), t.TransactionTime.UnixNano(), t.Total,
		nullableInt(t.PaymentAmount), nullableInt(t.ChangeAmount), nullableOwner(t.Owner),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	for i, li := range t.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transaction_items (recording_time_ns, position, product_name, unit_price, quantity, subtotal)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.RecordingTime.UnixNano(), i, li.ProductName, li.UnitPrice, li.Quantity, li.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("insert line item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"recording_time_ns", t.RecordingTime.UnixNano(),
		"items", len(t.Items),
		"total", t.Total)

	return nil
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e *core.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.RecordingTime = r.nextRecordingTime()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (recording_time_ns, category, description, amount, expense_date_ns, note, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RecordingTime.UnixNano(), e.Category, e.Description, e.Amount,
		e.ExpenseDate.UnixNano(), nullableString(e.Note), nullableOwner(e.Owner),
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"recording_time_ns", e.RecordingTime.UnixNano(),
		"category", e.Category,
		"amount", e.Amount)

	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, recordingTime time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE recording_time_ns = ?",
		recordingTime.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrTransactionMissing
	}

	slog.InfoContext(ctx, "Transaction deleted from SQLite",
		"recording_time_ns", recordingTime.UnixNano())

	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, recordingTime time.Time) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT recording_time_ns, transaction_time_ns, total, payment_amount, change_amount, owner
		FROM transactions WHERE recording_time_ns = ?`,
		recordingTime.UnixNano(),
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionMissing
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	items, err := r.itemsFor(ctx, r.db, []int64{t.RecordingTime.UnixNano()})
	if err != nil {
		return core.Transaction{}, err
	}
	t.Items = items[t.RecordingTime.UnixNano()]
	return t, nil
}

// Snapshot reads both record lists inside a single read transaction so the
// result is one consistent view of the ledger.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (core.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := core.Snapshot{Transactions: []core.Transaction{}, Expenses: []core.Expense{}}

	rows, err := tx.QueryContext(ctx, `
		SELECT recording_time_ns, transaction_time_ns, total, payment_amount, change_amount, owner
		FROM transactions ORDER BY recording_time_ns`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var keys []int64
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("scan transaction: %w", err)
		}
		snap.Transactions = append(snap.Transactions, t)
		keys = append(keys, t.RecordingTime.UnixNano())
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("iterate transactions: %w", err)
	}

	items, err := r.itemsFor(ctx, tx, keys)
	if err != nil {
		return core.Snapshot{}, err
	}
	for i := range snap.Transactions {
		snap.Transactions[i].Items = items[snap.Transactions[i].RecordingTime.UnixNano()]
	}

	expRows, err := tx.QueryContext(ctx, `
		SELECT recording_time_ns, category, description, amount, expense_date_ns, note, owner
		FROM expenses ORDER BY recording_time_ns`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("query expenses: %w", err)
	}
	defer expRows.Close()

	for expRows.Next() {
		var (
			recNs, dateNs int64
			e             core.Expense
			note, owner   sql.NullString
		)
		if err := expRows.Scan(&recNs, &e.Category, &e.Description, &e.Amount, &dateNs, &note, &owner); err != nil {
			return core.Snapshot{}, fmt.Errorf("scan expense: %w", err)
		}
		e.RecordingTime = time.Unix(0, recNs).UTC()
		e.ExpenseDate = time.Unix(0, dateNs).UTC()
		if note.Valid {
			e.Note = &note.String
		}
		if owner.Valid {
			id := core.CallerID(owner.String)
			e.Owner = &id
		}
		snap.Expenses = append(snap.Expenses, e)
	}
	if err := expRows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("iterate expenses: %w", err)
	}

	return snap, nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, caller core.CallerID) (*core.UserProfile, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		"SELECT name FROM user_profiles WHERE caller = ?", string(caller),
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &core.UserProfile{Name: name}, nil
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, caller core.CallerID, profile core.UserProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_profiles (caller, name, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(caller) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP`,
		string(caller), profile.Name,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetRoleAssignment(ctx context.Context, caller core.CallerID) (core.Role, bool, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		"SELECT role FROM role_assignments WHERE caller = ?", string(caller),
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get role assignment: %w", err)
	}
	return core.Role(role), true, nil
}

func (r *SQLiteRepository) AssignRole(ctx context.Context, caller core.CallerID, role core.Role) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO role_assignments (caller, role, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(caller) DO UPDATE SET role = excluded.role, updated_at = CURRENT_TIMESTAMP`,
		string(caller), string(role),
	)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// itemsFor loads line items for the given transaction keys, grouped by key.
func (r *SQLiteRepository) itemsFor(ctx context.Context, q querier, keys []int64) (map[int64][]core.LineItem, error) {
	out := make(map[int64][]core.LineItem, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT recording_time_ns, product_name, unit_price, quantity, subtotal
		FROM transaction_items ORDER BY recording_time_ns, position`)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	wanted := make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}

	for rows.Next() {
		var (
			key int64
			li  core.LineItem
		)
		if err := rows.Scan(&key, &li.ProductName, &li.UnitPrice, &li.Quantity, &li.Subtotal); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		if _, ok := wanted[key]; !ok {
			continue
		}
		out[key] = append(out[key], li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}

	return out, nil
}

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		recNs, txNs     int64
		t               core.Transaction
		payment, change sql.NullInt64
		owner           sql.NullString
	)
	if err := row.Scan(&recNs, &txNs, &t.Total, &payment, &change, &owner); err != nil {
		return core.Transaction{}, err
	}
	t.RecordingTime = time.Unix(0, recNs).UTC()
	t.TransactionTime = time.Unix(0, txNs).UTC()
	if payment.Valid {
		t.PaymentAmount = &payment.Int64
	}
	if change.Valid {
		t.ChangeAmount = &change.Int64
	}
	if owner.Valid {
		id := core.CallerID(owner.String)
		t.Owner = &id
	}
	return t, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableOwner(v *core.CallerID) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
