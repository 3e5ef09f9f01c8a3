// Package http provides HTTP server and handler implementations.
//
// This file implements JSON response encoding and the mapping from the
// core error taxonomy to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kasbuku/internal/core"
	"kasbuku/internal/services"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// writeError maps a service error onto the HTTP status taxonomy:
// validation 400, not found 404, authorization 403.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		writeErrorMessage(w, http.StatusForbidden, "unauthorized", err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err,
			"method", r.Method,
			"url", r.URL.Path)
		writeErrorMessage(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type lineItemResponse struct {
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

type transactionResponse struct {
	RecordingTimeNs   int64              `json:"recording_time_ns"`
	TransactionTimeNs int64              `json:"transaction_time_ns"`
	Items             []lineItemResponse `json:"items"`
	Total             int64              `json:"total"`
	PaymentAmount     *int64             `json:"payment_amount,omitempty"`
	ChangeAmount      *int64             `json:"change_amount,omitempty"`
	Owner             *string            `json:"owner,omitempty"`
}

type expenseResponse struct {
	RecordingTimeNs int64   `json:"recording_time_ns"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	Amount          int64   `json:"amount"`
	ExpenseDateNs   int64   `json:"expense_date_ns"`
	Note            *string `json:"note,omitempty"`
	Owner           *string `json:"owner,omitempty"`
}

type categoryAmountResponse struct {
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
}

type dailyReportResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Expenses     []expenseResponse     `json:"expenses"`
	TotalIncome  int64                 `json:"total_income"`
	TotalExpense int64                 `json:"total_expense"`
	NetIncome    int64                 `json:"net_income"`
}

type monthlyReportResponse struct {
	Year         int                      `json:"year"`
	Month        int                      `json:"month"`
	Transactions []transactionResponse    `json:"transactions"`
	Expenses     []expenseResponse        `json:"expenses"`
	TotalIncome  int64                    `json:"total_income"`
	TotalExpense int64                    `json:"total_expense"`
	NetIncome    int64                    `json:"net_income"`
	ByCategory   []categoryAmountResponse `json:"by_category"`
}

type dashboardResponse struct {
	DailyTransactionCount   int                      `json:"daily_transaction_count"`
	MonthlyTransactionCount int                      `json:"monthly_transaction_count"`
	DailyIncome             int64                    `json:"daily_income"`
	MonthlyIncome           int64                    `json:"monthly_income"`
	DailyExpense            int64                    `json:"daily_expense"`
	MonthlyExpense          int64                    `json:"monthly_expense"`
	DailyNet                int64                    `json:"daily_net"`
	MonthlyNet              int64                    `json:"monthly_net"`
	DailyByCategory         []categoryAmountResponse `json:"daily_by_category"`
	MonthlyByCategory       []categoryAmountResponse `json:"monthly_by_category"`
}

type ownerDashboardResponse struct {
	Owner     string            `json:"owner"`
	Dashboard dashboardResponse `json:"dashboard"`
}

type profileResponse struct {
	Name string `json:"name"`
}

type meResponse struct {
	Caller  string           `json:"caller,omitempty"`
	Role    string           `json:"role"`
	Profile *profileResponse `json:"profile,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	items := make([]lineItemResponse, len(t.Items))
	for i, li := range t.Items {
		items[i] = lineItemResponse{
			ProductName: li.ProductName,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
			Subtotal:    li.Subtotal,
		}
	}
	resp := transactionResponse{
		RecordingTimeNs:   t.RecordingTime.UnixNano(),
		TransactionTimeNs: t.TransactionTime.UnixNano(),
		Items:             items,
		Total:             t.Total,
		PaymentAmount:     t.PaymentAmount,
		ChangeAmount:      t.ChangeAmount,
	}
	if t.Owner != nil {
		owner := string(*t.Owner)
		resp.Owner = &owner
	}
	return resp
}

func toTransactionResponses(ts []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(ts))
	for i, t := range ts {
		out[i] = toTransactionResponse(t)
	}
	return out
}

func toExpenseResponse(e core.Expense) expenseResponse {
	resp := expenseResponse{
		RecordingTimeNs: e.RecordingTime.UnixNano(),
		Category:        e.Category,
		Description:     e.Description,
		Amount:          e.Amount,
		ExpenseDateNs:   e.ExpenseDate.UnixNano(),
		Note:            e.Note,
	}
	if e.Owner != nil {
		owner := string(*e.Owner)
		resp.Owner = &owner
	}
	return resp
}

func toExpenseResponses(es []core.Expense) []expenseResponse {
	out := make([]expenseResponse, len(es))
	for i, e := range es {
		out[i] = toExpenseResponse(e)
	}
	return out
}

func toCategoryAmountResponses(cs []core.CategoryAmount) []categoryAmountResponse {
	out := make([]categoryAmountResponse, len(cs))
	for i, c := range cs {
		out[i] = categoryAmountResponse{Category: c.Category, Amount: c.Amount}
	}
	return out
}

func toDailyReportResponse(report core.DailyReport) dailyReportResponse {
	return dailyReportResponse{
		Transactions: toTransactionResponses(report.Transactions),
		Expenses:     toExpenseResponses(report.Expenses),
		TotalIncome:  report.TotalIncome,
		TotalExpense: report.TotalExpense,
		NetIncome:    report.NetIncome,
	}
}

func toMonthlyReportResponse(report core.MonthlyReport) monthlyReportResponse {
	return monthlyReportResponse{
		Year:         report.Year,
		Month:        int(report.Month),
		Transactions: toTransactionResponses(report.Transactions),
		Expenses:     toExpenseResponses(report.Expenses),
		TotalIncome:  report.TotalIncome,
		TotalExpense: report.TotalExpense,
		NetIncome:    report.NetIncome,
		ByCategory:   toCategoryAmountResponses(report.ByCategory),
	}
}

func toDashboardResponse(summary core.DashboardSummary) dashboardResponse {
	return dashboardResponse{
		DailyTransactionCount:   summary.DailyTransactionCount,
		MonthlyTransactionCount: summary.MonthlyTransactionCount,
		DailyIncome:             summary.DailyIncome,
		MonthlyIncome:           summary.MonthlyIncome,
		DailyExpense:            summary.DailyExpense,
		MonthlyExpense:          summary.MonthlyExpense,
		DailyNet:                summary.DailyNet,
		MonthlyNet:              summary.MonthlyNet,
		DailyByCategory:         toCategoryAmountResponses(summary.DailyByCategory),
		MonthlyByCategory:       toCategoryAmountResponses(summary.MonthlyByCategory),
	}
}

func toOwnerDashboardResponses(boards []services.OwnerDashboard) []ownerDashboardResponse {
	out := make([]ownerDashboardResponse, len(boards))
	for i, b := range boards {
		out[i] = ownerDashboardResponse{
			Owner:     string(b.Owner),
			Dashboard: toDashboardResponse(b.Summary),
		}
	}
	return out
}
