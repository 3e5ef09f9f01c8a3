package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kasbuku/internal/core"
)

// Event types carried on the ledger event stream.
const (
	EventTransactionRecorded = "transaction_recorded"
	EventTransactionDeleted  = "transaction_deleted"
	EventExpenseRecorded     = "expense_recorded"
)

// LedgerEvent is published after every successful ledger mutation and
// consumed by the mirror worker. Transaction events carry only the
// recording-time key; the worker re-reads the authoritative record from
// the repository. Expense events carry the full payload since expenses
// are not individually addressable through the store port.
type LedgerEvent struct {
	EventID         string          `json:"event_id"`
	Type            string          `json:"type"`
	RecordingTimeNs int64           `json:"recording_time_ns"`
	Expense         *ExpensePayload `json:"expense,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// ExpensePayload is the wire form of an expense record inside an event.
type ExpensePayload struct {
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	Amount        int64   `json:"amount"`
	ExpenseDateNs int64   `json:"expense_date_ns"`
	Note          *string `json:"note,omitempty"`
	Owner         *string `json:"owner,omitempty"`
}

func NewTransactionRecordedEvent(recordingTime time.Time) *LedgerEvent {
	return &LedgerEvent{
		EventID:         uuid.New().String(),
		Type:            EventTransactionRecorded,
		RecordingTimeNs: recordingTime.UnixNano(),
		Timestamp:       time.Now(),
	}
}

func NewTransactionDeletedEvent(recordingTime time.Time) *LedgerEvent {
	return &LedgerEvent{
		EventID:         uuid.New().String(),
		Type:            EventTransactionDeleted,
		RecordingTimeNs: recordingTime.UnixNano(),
		Timestamp:       time.Now(),
	}
}

func NewExpenseRecordedEvent(e core.Expense) *LedgerEvent {
	payload := &ExpensePayload{
		Category:      e.Category,
		Description:   e.Description,
		Amount:        e.Amount,
		ExpenseDateNs: e.ExpenseDate.UnixNano(),
		Note:          e.Note,
	}
	if e.Owner != nil {
		owner := string(*e.Owner)
		payload.Owner = &owner
	}
	return &LedgerEvent{
		EventID:         uuid.New().String(),
		Type:            EventExpenseRecorded,
		RecordingTimeNs: e.RecordingTime.UnixNano(),
		Expense:         payload,
		Timestamp:       time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var event LedgerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	switch event.Type {
	case EventTransactionRecorded, EventTransactionDeleted:
	case EventExpenseRecorded:
		if event.Expense == nil {
			return nil, fmt.Errorf("expense event %s has no payload", event.EventID)
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	return &event, nil
}
