package amqp

import (
	"encoding/json"
	"time"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// IncomeEventMessage announces a change to an income record. It carries only
// the id and action; the export worker fetches the current row from the
// database, so stale or replayed messages are harmless.
type IncomeEventMessage struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewIncomeEventMessage(id int64, action string) *IncomeEventMessage {
	return &IncomeEventMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *IncomeEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func IncomeEventMessageFromJSON(data []byte) (*IncomeEventMessage, error) {
	var msg IncomeEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
