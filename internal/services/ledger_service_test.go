package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kasbuku/internal/access"
	"kasbuku/internal/amqp"
	"kasbuku/internal/core"
	"kasbuku/internal/ledger/memory"
)

type capturingPublisher struct {
	events []*amqp.LedgerEvent
	err    error
}

func (p *capturingPublisher) PublishEvent(_ context.Context, event *amqp.LedgerEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func newFixture(t *testing.T, admins ...core.CallerID) (*LedgerService, *capturingPublisher) {
	t.Helper()
	store := memory.New()
	publisher := &capturingPublisher{}
	svc := NewLedgerService(store, access.NewController(store, admins), publisher)
	return svc, publisher
}

func fixClock(t *testing.T, now time.Time) {
	t.Helper()
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = time.Now })
}

func int64p(v int64) *int64 { return &v }

func callerp(id core.CallerID) *core.CallerID { return &id }

func coffeeInput(when time.Time) TransactionInput {
	return TransactionInput{
		Items:           []core.LineItem{{ProductName: "Coffee", UnitPrice: 15000, Quantity: 2}},
		TransactionTime: when,
	}
}

func TestAddTransactionStoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, publisher := newFixture(t)

	tx, err := svc.AddTransaction(ctx, "alice", TransactionInput{
		Items: []core.LineItem{
			{ProductName: "Coffee", UnitPrice: 15000, Quantity: 2},
			{ProductName: "Roll", UnitPrice: 8000, Quantity: 1},
		},
		TransactionTime: now.Add(-time.Hour),
		PaymentAmount:   int64p(50000),
		ChangeAmount:    int64p(12000),
	})
	if err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if tx.Total != 38000 {
		t.Errorf("Total = %d, want 38000", tx.Total)
	}
	if tx.RecordingTime.IsZero() {
		t.Error("RecordingTime was not assigned")
	}
	if tx.Owner == nil || *tx.Owner != "alice" {
		t.Errorf("Owner = %v, want alice", tx.Owner)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Type != amqp.EventTransactionRecorded {
		t.Errorf("event type = %q, want %q", event.Type, amqp.EventTransactionRecorded)
	}
	if event.RecordingTimeNs != tx.RecordingTime.UnixNano() {
		t.Errorf("event recording time = %d, want %d", event.RecordingTimeNs, tx.RecordingTime.UnixNano())
	}
}

func TestAddTransactionRejectsFutureDating(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, publisher := newFixture(t)

	_, err := svc.AddTransaction(ctx, "alice", coffeeInput(now.Add(time.Nanosecond)))
	if !errors.Is(err, core.ErrFutureTransaction) {
		t.Errorf("future transaction error = %v, want ErrFutureTransaction", err)
	}
	if len(publisher.events) != 0 {
		t.Errorf("published %d events for a rejected insert, want 0", len(publisher.events))
	}
}

func TestAddTransactionAnonymousIsOwnerless(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t)

	tx, err := svc.AddTransaction(ctx, "", coffeeInput(now))
	if err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if tx.Owner != nil {
		t.Errorf("Owner = %v, want nil for anonymous caller", tx.Owner)
	}
}

func TestAddTransactionPublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, publisher := newFixture(t)
	publisher.err = errors.New("broker down")

	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Errorf("AddTransaction() error = %v, want nil despite publish failure", err)
	}
}

func TestAddExpensePublishesFullPayload(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, publisher := newFixture(t)

	note := "monthly"
	e, err := svc.AddExpense(ctx, "alice", ExpenseInput{
		Category:    "Rent",
		Description: "Stall rent",
		Amount:      500000,
		ExpenseDate: now,
		Note:        &note,
	})
	if err != nil {
		t.Fatalf("AddExpense() error: %v", err)
	}
	if e.RecordingTime.IsZero() {
		t.Error("RecordingTime was not assigned")
	}

	if len(publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Type != amqp.EventExpenseRecorded {
		t.Errorf("event type = %q, want %q", event.Type, amqp.EventExpenseRecorded)
	}
	if event.Expense == nil || event.Expense.Category != "Rent" || event.Expense.Amount != 500000 {
		t.Errorf("event payload = %+v, want Rent/500000", event.Expense)
	}
	if event.Expense.Owner == nil || *event.Expense.Owner != "alice" {
		t.Errorf("event owner = %v, want alice", event.Expense.Owner)
	}
}

func TestDeleteTransactionPermissions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, publisher := newFixture(t, "boss")

	tx, err := svc.AddTransaction(ctx, "alice", coffeeInput(now))
	if err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	// A different non-admin caller may not delete it.
	if err := svc.DeleteTransaction(ctx, "bob", tx.RecordingTime); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("foreign delete = %v, want ErrUnauthorized", err)
	}

	// The owner may.
	if err := svc.DeleteTransaction(ctx, "alice", tx.RecordingTime); err != nil {
		t.Errorf("owner delete error: %v", err)
	}

	// Deleting again is not found.
	if err := svc.DeleteTransaction(ctx, "alice", tx.RecordingTime); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}

	// Admins may delete records they do not own.
	tx2, err := svc.AddTransaction(ctx, "alice", coffeeInput(now))
	if err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if err := svc.DeleteTransaction(ctx, "boss", tx2.RecordingTime); err != nil {
		t.Errorf("admin delete error: %v", err)
	}

	deleted := 0
	for _, event := range publisher.events {
		if event.Type == amqp.EventTransactionDeleted {
			deleted++
		}
	}
	if deleted != 2 {
		t.Errorf("published %d delete events, want 2", deleted)
	}
}

func TestDeleteTransactionRetroactivelyChangesReports(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t)

	tx, err := svc.AddTransaction(ctx, "alice", coffeeInput(now))
	if err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	report, err := svc.DailyReport(ctx, "alice", now, nil)
	if err != nil {
		t.Fatalf("DailyReport() error: %v", err)
	}
	if report.TotalIncome != 30000 {
		t.Fatalf("TotalIncome = %d, want 30000", report.TotalIncome)
	}

	if err := svc.DeleteTransaction(ctx, "alice", tx.RecordingTime); err != nil {
		t.Fatalf("DeleteTransaction() error: %v", err)
	}

	report, err = svc.DailyReport(ctx, "alice", now, nil)
	if err != nil {
		t.Fatalf("DailyReport() error: %v", err)
	}
	if report.TotalIncome != 0 || len(report.Transactions) != 0 {
		t.Errorf("post-delete report = income %d, %d transactions; want empty",
			report.TotalIncome, len(report.Transactions))
	}
}

func TestGetTransactionHidesForeignRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t, "boss")

	tx, err := svc.AddTransaction(ctx, "alice", coffeeInput(now))
	if err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	if _, err := svc.GetTransaction(ctx, "alice", tx.RecordingTime); err != nil {
		t.Errorf("owner GetTransaction error: %v", err)
	}
	if _, err := svc.GetTransaction(ctx, "boss", tx.RecordingTime); err != nil {
		t.Errorf("admin GetTransaction error: %v", err)
	}
	if _, err := svc.GetTransaction(ctx, "bob", tx.RecordingTime); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign GetTransaction = %v, want ErrNotFound", err)
	}
}

func TestListsAreVisibilityScoped(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t, "boss")

	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, "bob", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if _, err := svc.AddExpense(ctx, "alice", ExpenseInput{
		Category: "Supplies", Description: "Cups", Amount: 5000, ExpenseDate: now,
	}); err != nil {
		t.Fatalf("AddExpense() error: %v", err)
	}

	txs, err := svc.ListTransactions(ctx, "alice")
	if err != nil || len(txs) != 1 {
		t.Errorf("alice sees %d transactions (%v), want 1", len(txs), err)
	}
	txs, err = svc.ListTransactions(ctx, "boss")
	if err != nil || len(txs) != 2 {
		t.Errorf("admin sees %d transactions (%v), want 2", len(txs), err)
	}
	exps, err := svc.ListExpenses(ctx, "bob")
	if err != nil || len(exps) != 0 {
		t.Errorf("bob sees %d expenses (%v), want 0", len(exps), err)
	}
}

func TestTransactionHistoryWindowsByDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t)

	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now.AddDate(0, 0, -1))); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	history, err := svc.TransactionHistory(ctx, "alice", now)
	if err != nil {
		t.Fatalf("TransactionHistory() error: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history for today has %d transactions, want 1", len(history))
	}
}

func TestDailyReportNetIncome(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t)

	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if _, err := svc.AddExpense(ctx, "alice", ExpenseInput{
		Category: "Supplies", Description: "Cups", Amount: 5000, ExpenseDate: now,
	}); err != nil {
		t.Fatalf("AddExpense() error: %v", err)
	}

	report, err := svc.DailyReport(ctx, "alice", now, nil)
	if err != nil {
		t.Fatalf("DailyReport() error: %v", err)
	}
	if report.TotalIncome != 30000 || report.TotalExpense != 5000 || report.NetIncome != 25000 {
		t.Errorf("report = %d/%d/%d, want 30000/5000/25000",
			report.TotalIncome, report.TotalExpense, report.NetIncome)
	}
}

func TestDailyReportOnBehalfOfOwner(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t, "boss")

	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	report, err := svc.DailyReport(ctx, "boss", now, callerp("alice"))
	if err != nil {
		t.Fatalf("admin on-behalf DailyReport() error: %v", err)
	}
	if report.TotalIncome != 30000 {
		t.Errorf("on-behalf income = %d, want 30000", report.TotalIncome)
	}

	if _, err := svc.DailyReport(ctx, "bob", now, callerp("alice")); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("non-admin on-behalf = %v, want ErrUnauthorized", err)
	}
}

func TestMonthlyReportBreakdownSumsToTotal(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t)

	for _, e := range []ExpenseInput{
		{Category: "Supplies", Description: "Cups", Amount: 5000, ExpenseDate: now},
		{Category: "Rent", Description: "Stall", Amount: 500000, ExpenseDate: now.AddDate(0, 0, 5)},
		{Category: "Supplies", Description: "Beans", Amount: 80000, ExpenseDate: now.AddDate(0, 0, 10)},
	} {
		if _, err := svc.AddExpense(ctx, "alice", e); err != nil {
			t.Fatalf("AddExpense() error: %v", err)
		}
	}

	report, err := svc.MonthlyReport(ctx, "alice", now, nil)
	if err != nil {
		t.Fatalf("MonthlyReport() error: %v", err)
	}
	var sum int64
	for _, c := range report.ByCategory {
		sum += c.Amount
	}
	if sum != report.TotalExpense {
		t.Errorf("breakdown sum = %d, TotalExpense = %d", sum, report.TotalExpense)
	}
	if len(report.ByCategory) != 2 || report.ByCategory[0].Category != "Supplies" {
		t.Errorf("ByCategory = %+v, want Supplies first", report.ByCategory)
	}
}

func TestDashboardSummaryCounts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t)

	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now.AddDate(0, 0, -3))); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	summary, err := svc.DashboardSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("DashboardSummary() error: %v", err)
	}
	if summary.DailyTransactionCount != 1 || summary.MonthlyTransactionCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2",
			summary.DailyTransactionCount, summary.MonthlyTransactionCount)
	}
	if summary.DailyIncome != 30000 || summary.MonthlyIncome != 60000 {
		t.Errorf("income = %d/%d, want 30000/60000", summary.DailyIncome, summary.MonthlyIncome)
	}
}

func TestDashboardSummaryIsOwnCallerOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t, "boss")

	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	// An admin with no records of their own has an empty dashboard; other
	// callers' records never leak into it.
	summary, err := svc.DashboardSummary(ctx, "boss")
	if err != nil {
		t.Fatalf("DashboardSummary() error: %v", err)
	}
	if summary.DailyIncome != 0 || summary.MonthlyIncome != 0 || summary.DailyTransactionCount != 0 {
		t.Errorf("admin dashboard = income %d/%d, count %d; want all zero",
			summary.DailyIncome, summary.MonthlyIncome, summary.DailyTransactionCount)
	}

	// Once the admin records a sale of their own it shows up, and the
	// numbers agree with the admin's entry in the multi-device list.
	if _, err := svc.AddTransaction(ctx, "boss", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	summary, err = svc.DashboardSummary(ctx, "boss")
	if err != nil {
		t.Fatalf("DashboardSummary() error: %v", err)
	}
	if summary.DailyIncome != 30000 {
		t.Errorf("admin own dashboard income = %d, want 30000", summary.DailyIncome)
	}

	boards, err := svc.MultiDeviceDashboard(ctx, "boss")
	if err != nil {
		t.Fatalf("MultiDeviceDashboard() error: %v", err)
	}
	for _, b := range boards {
		if b.Owner == "boss" && b.Summary.DailyIncome != summary.DailyIncome {
			t.Errorf("multi-device entry income = %d, own dashboard = %d; want equal",
				b.Summary.DailyIncome, summary.DailyIncome)
		}
	}
}

func TestMultiDeviceDashboard(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t, "boss")

	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, "bob", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if _, err := svc.AddTransaction(ctx, "alice", coffeeInput(now)); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	boards, err := svc.MultiDeviceDashboard(ctx, "boss")
	if err != nil {
		t.Fatalf("MultiDeviceDashboard() error: %v", err)
	}
	if len(boards) != 2 || boards[0].Owner != "alice" || boards[1].Owner != "bob" {
		t.Fatalf("boards = %+v, want alice then bob", boards)
	}
	if boards[0].Summary.DailyIncome != 60000 || boards[1].Summary.DailyIncome != 30000 {
		t.Errorf("daily incomes = %d/%d, want 60000/30000",
			boards[0].Summary.DailyIncome, boards[1].Summary.DailyIncome)
	}

	if _, err := svc.MultiDeviceDashboard(ctx, "alice"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("non-admin MultiDeviceDashboard = %v, want ErrUnauthorized", err)
	}
}

func TestExpensesByCategoryIsGlobalButGuestGated(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t, "boss")

	if _, err := svc.AddExpense(ctx, "alice", ExpenseInput{
		Category: "Supplies", Description: "Cups", Amount: 5000, ExpenseDate: now,
	}); err != nil {
		t.Fatalf("AddExpense() error: %v", err)
	}
	if _, err := svc.AddExpense(ctx, "bob", ExpenseInput{
		Category: "Supplies", Description: "Lids", Amount: 3000, ExpenseDate: now,
	}); err != nil {
		t.Fatalf("AddExpense() error: %v", err)
	}

	// Guests are refused.
	if _, err := svc.ExpensesByCategory(ctx, "stranger", now); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("guest ExpensesByCategory = %v, want ErrUnauthorized", err)
	}

	// A registered user sees totals across all owners.
	if err := svc.SaveProfile(ctx, "alice", core.UserProfile{Name: "Alice"}); err != nil {
		t.Fatalf("SaveProfile() error: %v", err)
	}
	totals, err := svc.ExpensesByCategory(ctx, "alice", now)
	if err != nil {
		t.Fatalf("ExpensesByCategory() error: %v", err)
	}
	if len(totals) != 1 || totals[0].Amount != 8000 {
		t.Errorf("totals = %+v, want Supplies 8000", totals)
	}
}

func TestProfileOperations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)
	svc, _ := newFixture(t, "boss")

	// Absent profile is nil, not an error.
	profile, err := svc.GetProfile(ctx, "alice")
	if err != nil || profile != nil {
		t.Errorf("GetProfile() = %v, %v; want nil, nil", profile, err)
	}

	if err := svc.SaveProfile(ctx, "alice", core.UserProfile{Name: ""}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("empty name SaveProfile = %v, want ErrValidation", err)
	}
	if err := svc.SaveProfile(ctx, "", core.UserProfile{Name: "Nobody"}); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("anonymous SaveProfile = %v, want ErrUnauthorized", err)
	}
	if err := svc.SaveProfile(ctx, "alice", core.UserProfile{Name: "Alice"}); err != nil {
		t.Fatalf("SaveProfile() error: %v", err)
	}

	profile, err = svc.GetProfile(ctx, "alice")
	if err != nil || profile == nil || profile.Name != "Alice" {
		t.Errorf("GetProfile() = %+v, %v; want Alice", profile, err)
	}

	// Saving a profile promotes to user.
	if role, _ := svc.RoleOf(ctx, "alice"); role != core.RoleUser {
		t.Errorf("role after profile save = %v, want user", role)
	}

	// Reading someone else's profile needs admin.
	if _, err := svc.GetProfileOf(ctx, "bob", "alice"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("foreign GetProfileOf = %v, want ErrUnauthorized", err)
	}
	profile, err = svc.GetProfileOf(ctx, "boss", "alice")
	if err != nil || profile == nil || profile.Name != "Alice" {
		t.Errorf("admin GetProfileOf = %+v, %v; want Alice", profile, err)
	}
}
