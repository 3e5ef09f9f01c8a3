package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CallerID is the opaque caller identity supplied by the identity provider.
type CallerID string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

type (
	Role string

	// LineItem is one sold product line inside a transaction.
	LineItem struct {
		ProductName string
		UnitPrice   int64 // smallest currency unit
		Quantity    int64
		Subtotal    int64 // UnitPrice * Quantity
	}

	// Transaction is an immutable point-of-sale record. RecordingTime is
	// server-assigned, strictly increasing across inserts, and serves as
	// the record's identity and deletion key.
	Transaction struct {
		Items           []LineItem
		Total           int64
		TransactionTime time.Time // caller-supplied business time
		RecordingTime   time.Time
		PaymentAmount   *int64
		ChangeAmount    *int64
		Owner           *CallerID
	}

	// Expense is an immutable business expense record. RecordingTime is
	// used for ordering only, not identity.
	Expense struct {
		Category      string
		Description   string
		Amount        int64
		ExpenseDate   time.Time
		RecordingTime time.Time
		Note          *string
		Owner         *CallerID
	}

	UserProfile struct {
		Name string
	}
)

// Base error kinds. Specific sentinels wrap one of these so callers can
// classify with errors.Is without matching message text.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrEmptyCart          = fmt.Errorf("%w: transaction needs at least one item", ErrValidation)
	ErrNegativePrice      = fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	ErrNegativeQuantity   = fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	ErrEmptyProductName   = fmt.Errorf("%w: product name is empty", ErrValidation)
	ErrFutureTransaction  = fmt.Errorf("%w: transaction time is in the future", ErrValidation)
	ErrPaymentMismatch    = fmt.Errorf("%w: payment and change must be given together", ErrValidation)
	ErrNegativePayment    = fmt.Errorf("%w: payment and change must not be negative", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrEmptyCategory      = fmt.Errorf("%w: category is empty", ErrValidation)
	ErrEmptyDescription   = fmt.Errorf("%w: description is empty", ErrValidation)
	ErrEmptyProfileName   = fmt.Errorf("%w: profile name is empty", ErrValidation)
	ErrUnknownRole        = fmt.Errorf("%w: unknown role", ErrValidation)
	ErrTransactionMissing = fmt.Errorf("%w: transaction", ErrNotFound)
)

// ParseRole validates a role label from the wire.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	case RoleGuest:
		return RoleGuest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

func (li LineItem) Validate() error {
	if strings.TrimSpace(li.ProductName) == "" {
		return ErrEmptyProductName
	}
	if li.UnitPrice < 0 {
		return ErrNegativePrice
	}
	if li.Quantity < 0 {
		return ErrNegativeQuantity
	}
	return nil
}

// NewTransaction builds a validated transaction from caller input.
// Subtotals and the total are computed here; RecordingTime is left zero
// and assigned by the store on insert. now is the server clock reading
// used for the future-dating check.
func NewTransaction(owner *CallerID, items []LineItem, transactionTime time.Time, payment, change *int64, now time.Time) (Transaction, error) {
	if len(items) == 0 {
		return Transaction{}, ErrEmptyCart
	}
	if transactionTime.After(now) {
		return Transaction{}, ErrFutureTransaction
	}
	if (payment == nil) != (change == nil) {
		return Transaction{}, ErrPaymentMismatch
	}
	if payment != nil && (*payment < 0 || *change < 0) {
		return Transaction{}, ErrNegativePayment
	}

	out := make([]LineItem, len(items))
	var total int64
	for i, li := range items {
		if err := li.Validate(); err != nil {
			return Transaction{}, fmt.Errorf("item %d: %w", i, err)
		}
		li.Subtotal = li.UnitPrice * li.Quantity
		out[i] = li
		total += li.Subtotal
	}

	return Transaction{
		Items:           out,
		Total:           total,
		TransactionTime: transactionTime.UTC(),
		PaymentAmount:   payment,
		ChangeAmount:    change,
		Owner:           owner,
	}, nil
}

// NewExpense builds a validated expense record. RecordingTime is assigned
// by the store on insert.
func NewExpense(owner *CallerID, category, description string, amount int64, expenseDate time.Time, note *string) (Expense, error) {
	if strings.TrimSpace(category) == "" {
		return Expense{}, ErrEmptyCategory
	}
	if strings.TrimSpace(description) == "" {
		return Expense{}, ErrEmptyDescription
	}
	if amount <= 0 {
		return Expense{}, ErrInvalidAmount
	}
	return Expense{
		Category:    category,
		Description: description,
		Amount:      amount,
		ExpenseDate: expenseDate.UTC(),
		Note:        note,
		Owner:       owner,
	}, nil
}

func (p UserProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyProfileName
	}
	return nil
}

// Scope is the visibility filter computed once per call from the caller's
// role. Admins see everything; other callers see only their own records.
type Scope struct {
	All   bool
	Owner CallerID
}

func ScopeAll() Scope                 { return Scope{All: true} }
func ScopeOwner(owner CallerID) Scope { return Scope{Owner: owner} }

// Allows reports whether a record with the given owner is visible.
// Ownerless records are visible to admins only.
func (s Scope) Allows(owner *CallerID) bool {
	if s.All {
		return true
	}
	return owner != nil && *owner == s.Owner
}
