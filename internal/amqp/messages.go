package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action names what happened to the transaction collection.
type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionDeleted  Action = "deleted"
	ActionCleared  Action = "cleared"
	ActionImported Action = "imported"
)

// TransactionEvent is a lightweight notification that the collection changed.
// Consumers reload the collection from the store; the event carries no record data.
type TransactionEvent struct {
	Action    Action    `json:"action"`
	ID        string    `json:"id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(action Action, id string, count int) *TransactionEvent {
	return &TransactionEvent{
		Action:    action,
		ID:        id,
		Count:     count,
		Timestamp: time.Now(),
	}
}

func (a Action) valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionCleared, ActionImported:
		return true
	}
	return false
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event and rejects unknown actions.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Action.valid() {
		return nil, fmt.Errorf("unknown action %q", e.Action)
	}
	return &e, nil
}
