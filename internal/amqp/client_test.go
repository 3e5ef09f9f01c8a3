package amqp

import (
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{63, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := exponentialBackoff(tt.attempt); got != tt.want {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"closed connection", errors.New("Exception (504) Reason: \"channel/connection is not open\""), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write tcp: broken pipe"), true},
		{"dial refused", errors.New("dial tcp 127.0.0.1:5672: connection refused"), true},
		{"handler failure", errors.New("append row: quota exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestLedgerEventRoundTrip(t *testing.T) {
	when := time.Date(2026, 3, 14, 9, 30, 0, 42, time.UTC)
	event := NewTransactionRecordedEvent(when)

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}
	got, err := LedgerEventFromJSON(data)
	if err != nil {
		t.Fatalf("LedgerEventFromJSON() error: %v", err)
	}
	if got.Type != EventTransactionRecorded {
		t.Errorf("Type = %q, want %q", got.Type, EventTransactionRecorded)
	}
	if got.RecordingTimeNs != when.UnixNano() {
		t.Errorf("RecordingTimeNs = %d, want %d", got.RecordingTimeNs, when.UnixNano())
	}
	if got.EventID == "" {
		t.Error("EventID is empty")
	}
}

func TestLedgerEventFromJSONRejectsBadEvents(t *testing.T) {
	if _, err := LedgerEventFromJSON([]byte(`{"type":"price_changed"}`)); err == nil {
		t.Error("unknown event type accepted")
	}
	if _, err := LedgerEventFromJSON([]byte(`{"type":"expense_recorded","event_id":"x"}`)); err == nil {
		t.Error("expense event without payload accepted")
	}
	if _, err := LedgerEventFromJSON([]byte(`not json`)); err == nil {
		t.Error("malformed JSON accepted")
	}
}
