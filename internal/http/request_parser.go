// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of JSON request bodies and
// query parameters shared across handlers.

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kasbuku/internal/core"
	"kasbuku/internal/services"
)

const maxBodyBytes = 1 << 20 // 1 MiB

var errBadTimestamp = fmt.Errorf("%w: timestamp must be int64 nanoseconds or a calendar date", core.ErrValidation)

type lineItemRequest struct {
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
}

type transactionRequest struct {
	Items             []lineItemRequest `json:"items"`
	TransactionTimeNs int64             `json:"transaction_time_ns"`
	PaymentAmount     *int64            `json:"payment_amount"`
	ChangeAmount      *int64            `json:"change_amount"`
}

type expenseRequest struct {
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	Amount        int64   `json:"amount"`
	ExpenseDateNs int64   `json:"expense_date_ns"`
	Note          *string `json:"note"`
}

type profileRequest struct {
	Name string `json:"name"`
}

type roleRequest struct {
	Target string `json:"target"`
	Role   string `json:"role"`
}

// decodeJSON reads a limited JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", core.ErrValidation, err)
	}
	return nil
}

func (req transactionRequest) toInput() services.TransactionInput {
	items := make([]core.LineItem, len(req.Items))
	for i, li := range req.Items {
		items[i] = core.LineItem{
			ProductName: strings.TrimSpace(li.ProductName),
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
		}
	}
	return services.TransactionInput{
		Items:           items,
		TransactionTime: time.Unix(0, req.TransactionTimeNs).UTC(),
		PaymentAmount:   req.PaymentAmount,
		ChangeAmount:    req.ChangeAmount,
	}
}

func (req expenseRequest) toInput() services.ExpenseInput {
	return services.ExpenseInput{
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		ExpenseDate: time.Unix(0, req.ExpenseDateNs).UTC(),
		Note:        req.Note,
	}
}

// parseRecordingTime reads the {id} path segment as int64 nanoseconds.
func parseRecordingTime(r *http.Request) (time.Time, error) {
	raw := r.PathValue("id")
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid transaction id %q", core.ErrValidation, raw)
	}
	return time.Unix(0, ns).UTC(), nil
}

// parseTimeParam reads a query parameter as either int64 nanoseconds, a
// "2006-01-02" date, or a "2006-01" month. Absent means now.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if ns, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(0, ns).UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadTimestamp, raw)
}

// parseOwnerParam reads the optional owner query parameter used by the
// admin on-behalf-of report variants.
func parseOwnerParam(r *http.Request) *core.CallerID {
	raw := strings.TrimSpace(r.URL.Query().Get("owner"))
	if raw == "" {
		return nil
	}
	owner := core.CallerID(raw)
	return &owner
}
