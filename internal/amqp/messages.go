package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LedgerEventMessage signals that a ledger entry changed state. It is
// intentionally lightweight: consumers fetch the full entry from the
// database, so a stale message never carries stale data.
type LedgerEventMessage struct {
	EventID      string    `json:"event_id"`
	EntryID      int64     `json:"entry_id"`
	ObligationID int64     `json:"obligation_id"`
	DueDate      string    `json:"due_date"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates a new ledger event message
func NewLedgerEventMessage(entryID, obligationID int64, dueDate, status string) *LedgerEventMessage {
	return &LedgerEventMessage{
		EventID:      uuid.NewString(),
		EntryID:      entryID,
		ObligationID: obligationID,
		DueDate:      dueDate,
		Status:       status,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
