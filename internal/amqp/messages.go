package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the expense event queue.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseDeleted = "expense.deleted"
)

// ExpenseEvent is the message published when an expense changes. Created
// events carry only the ID; the consumer fetches the full record from the
// database so the queue never holds stale data. Deleted events carry a
// snapshot instead, because the row is already gone by the time the
// consumer sees them.
type ExpenseEvent struct {
	Kind      string           `json:"kind"`
	ExpenseID int64            `json:"expense_id"`
	Timestamp time.Time        `json:"timestamp"`
	Snapshot  *ExpenseSnapshot `json:"snapshot,omitempty"`
}

// ExpenseSnapshot is the subset of expense fields the mirror needs to
// locate a row after the database record is deleted.
type ExpenseSnapshot struct {
	Title       string `json:"title"`
	AmountCents int64  `json:"amount_cents"`
	Date        string `json:"date"` // YYYY-MM-DD
	Category    string `json:"category"`
}

// NewExpenseEvent creates an event for the given kind and expense ID.
func NewExpenseEvent(kind string, expenseID int64) *ExpenseEvent {
	return &ExpenseEvent{
		Kind:      kind,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes an event from JSON bytes.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var e ExpenseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
