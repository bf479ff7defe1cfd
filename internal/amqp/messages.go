package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"tally/internal/store"
)

// RecordSyncMessage asks the worker to mirror one stored record. It carries
// only the kind and id; the worker reads the record from the database.
type RecordSyncMessage struct {
	Kind      store.RecordKind `json:"kind"`
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewRecordSyncMessage(kind store.RecordKind, id string) *RecordSyncMessage {
	return &RecordSyncMessage{
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON decodes and validates a message.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown record kind %q", msg.Kind)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("missing record id")
	}
	return &msg, nil
}
