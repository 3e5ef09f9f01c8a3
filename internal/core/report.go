package core

import "time"

// Reports are computed views over a ledger snapshot. They are derived
// fresh on every query and never persisted; a deleted record disappears
// from every report whose window covered it.

type (
	// Snapshot is a consistent read of the ledger taken at call start,
	// both lists in recording order.
	Snapshot struct {
		Transactions []Transaction
		Expenses     []Expense
	}

	CategoryAmount struct {
		Category string
		Amount   int64
	}

	// DailyReport aggregates one UTC calendar day.
	DailyReport struct {
		Transactions []Transaction
		Expenses     []Expense
		TotalIncome  int64
		TotalExpense int64
		NetIncome    int64 // may be negative
	}

	// MonthlyReport aggregates one UTC calendar month.
	MonthlyReport struct {
		Year         int
		Month        time.Month
		Transactions []Transaction
		Expenses     []Expense
		TotalIncome  int64
		TotalExpense int64
		NetIncome    int64
		ByCategory   []CategoryAmount
	}

	// DashboardSummary combines today's and this month's aggregates for
	// a single caller. It is a plain idempotent read, safe to poll.
	DashboardSummary struct {
		DailyTransactionCount   int
		MonthlyTransactionCount int
		DailyIncome             int64
		MonthlyIncome           int64
		DailyExpense            int64
		MonthlyExpense          int64
		DailyNet                int64
		MonthlyNet              int64
		DailyByCategory         []CategoryAmount
		MonthlyByCategory       []CategoryAmount
	}
)

// DayWindow returns the [start, end) UTC calendar-day boundary containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// MonthWindow returns the [start, end) UTC calendar-month boundary containing t.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// Filter returns the subset of the snapshot visible under scope,
// preserving recording order.
func (s Snapshot) Filter(scope Scope) Snapshot {
	if scope.All {
		return s
	}
	out := Snapshot{}
	for _, tx := range s.Transactions {
		if scope.Allows(tx.Owner) {
			out.Transactions = append(out.Transactions, tx)
		}
	}
	for _, e := range s.Expenses {
		if scope.Allows(e.Owner) {
			out.Expenses = append(out.Expenses, e)
		}
	}
	return out
}

// window returns the records whose business time falls inside [start, end).
func (s Snapshot) window(start, end time.Time) (txs []Transaction, exps []Expense) {
	txs = []Transaction{}
	exps = []Expense{}
	for _, tx := range s.Transactions {
		if within(tx.TransactionTime, start, end) {
			txs = append(txs, tx)
		}
	}
	for _, e := range s.Expenses {
		if within(e.ExpenseDate, start, end) {
			exps = append(exps, e)
		}
	}
	return txs, exps
}

func sumTotals(txs []Transaction) int64 {
	var sum int64
	for _, tx := range txs {
		sum += tx.Total
	}
	return sum
}

func sumAmounts(exps []Expense) int64 {
	var sum int64
	for _, e := range exps {
		sum += e.Amount
	}
	return sum
}

// GroupByCategory sums expense amounts per category. Entries appear in
// first-seen order over the input, which callers feed in recording order;
// the ordering is externally observable and must stay deterministic.
func GroupByCategory(exps []Expense) []CategoryAmount {
	index := make(map[string]int)
	out := []CategoryAmount{}
	for _, e := range exps {
		if i, ok := index[e.Category]; ok {
			out[i].Amount += e.Amount
			continue
		}
		index[e.Category] = len(out)
		out = append(out, CategoryAmount{Category: e.Category, Amount: e.Amount})
	}
	return out
}

// BuildDailyReport aggregates the snapshot over the UTC day containing date.
// An empty window yields zero totals and empty lists, not an error.
func BuildDailyReport(s Snapshot, date time.Time) DailyReport {
	start, end := DayWindow(date)
	txs, exps := s.window(start, end)
	income := sumTotals(txs)
	expense := sumAmounts(exps)
	return DailyReport{
		Transactions: txs,
		Expenses:     exps,
		TotalIncome:  income,
		TotalExpense: expense,
		NetIncome:    income - expense,
	}
}

// BuildMonthlyReport aggregates the snapshot over the UTC month containing month.
func BuildMonthlyReport(s Snapshot, month time.Time) MonthlyReport {
	start, end := MonthWindow(month)
	txs, exps := s.window(start, end)
	income := sumTotals(txs)
	expense := sumAmounts(exps)
	return MonthlyReport{
		Year:         start.Year(),
		Month:        start.Month(),
		Transactions: txs,
		Expenses:     exps,
		TotalIncome:  income,
		TotalExpense: expense,
		NetIncome:    income - expense,
		ByCategory:   GroupByCategory(exps),
	}
}

// BuildDashboard combines the daily and monthly aggregates for now's day
// and month into the polling-friendly summary shape.
func BuildDashboard(s Snapshot, now time.Time) DashboardSummary {
	daily := BuildDailyReport(s, now)
	monthly := BuildMonthlyReport(s, now)
	return DashboardSummary{
		DailyTransactionCount:   len(daily.Transactions),
		MonthlyTransactionCount: len(monthly.Transactions),
		DailyIncome:             daily.TotalIncome,
		MonthlyIncome:           monthly.TotalIncome,
		DailyExpense:            daily.TotalExpense,
		MonthlyExpense:          monthly.TotalExpense,
		DailyNet:                daily.NetIncome,
		MonthlyNet:              monthly.NetIncome,
		DailyByCategory:         GroupByCategory(daily.Expenses),
		MonthlyByCategory:       monthly.ByCategory,
	}
}

// DistinctOwners lists every owner present in the snapshot, transactions
// first then expenses, each in recording order, deduplicated on first
// appearance. Ownerless records contribute nothing.
func DistinctOwners(s Snapshot) []CallerID {
	seen := make(map[CallerID]struct{})
	out := []CallerID{}
	add := func(owner *CallerID) {
		if owner == nil {
			return
		}
		if _, ok := seen[*owner]; ok {
			return
		}
		seen[*owner] = struct{}{}
		out = append(out, *owner)
	}
	for _, tx := range s.Transactions {
		add(tx.Owner)
	}
	for _, e := range s.Expenses {
		add(e.Owner)
	}
	return out
}
