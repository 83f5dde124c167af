package emulator

import (
	"fmt"
	"strings"
	"time"
)

// TransactionStatus is the lifecycle stage of a transaction.
type TransactionStatus int

const (
	StatusUnknown TransactionStatus = iota
	StatusPending
	StatusExecuted
	StatusSealed
	StatusExpired
)

var statusNames = map[TransactionStatus]string{
	StatusUnknown:  "UNKNOWN",
	StatusPending:  "PENDING",
	StatusExecuted: "EXECUTED",
	StatusSealed:   "SEALED",
	StatusExpired:  "EXPIRED",
}

func (s TransactionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

func (s TransactionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TransactionStatus) UnmarshalText(text []byte) error {
	want := strings.ToUpper(string(text))
	for status, name := range statusNames {
		if name == want {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown transaction status %q", text)
}

// Event is emitted by a transaction handler.
type Event struct {
	Type          string         `json:"type"`
	TransactionID string         `json:"transactionId"`
	Index         int            `json:"index"`
	Payload       map[string]any `json:"payload"`
}

// TransactionResult is the immutable record of a sealed transaction.
type TransactionResult struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	Status       TransactionStatus `json:"status"`
	StatusCode   int               `json:"statusCode"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Events       []Event           `json:"events"`
	BlockHeight  uint64            `json:"blockHeight"`
	Timestamp    time.Time         `json:"timestamp"`
	ComputeUsed  uint64            `json:"computeUsed"`
}

// Failed reports whether the transaction was sealed with an error.
func (r *TransactionResult) Failed() bool {
	return r.StatusCode != 0 || r.ErrorMessage != ""
}

// Sealed reports whether the transaction is final.
func (r *TransactionResult) Sealed() bool {
	return r.Status == StatusSealed
}

// EventsOfType returns the events whose type equals typ.
func (r *TransactionResult) EventsOfType(typ string) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
