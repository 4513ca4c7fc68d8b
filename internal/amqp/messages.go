package amqp

import (
	"encoding/json"
	"time"
)

// RecordChangeMessage notifies the reconcile worker that a record was
// created, edited, or deleted. It carries the full record payload so the
// worker can reconcile without a database round trip; Deleted marks a
// removal.
type RecordChangeMessage struct {
	UserID    string    `json:"user_id"`
	RecordID  string    `json:"record_id"`
	Title     string    `json:"title,omitempty"`
	Category  string    `json:"category,omitempty"`
	Deleted   bool      `json:"deleted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordChangeMessage builds an upsert notification.
func NewRecordChangeMessage(userID, recordID, title, category string) *RecordChangeMessage {
	return &RecordChangeMessage{
		UserID:    userID,
		RecordID:  recordID,
		Title:     title,
		Category:  category,
		Timestamp: time.Now(),
	}
}

// NewRecordDeleteMessage builds a removal notification.
func NewRecordDeleteMessage(userID, recordID string) *RecordChangeMessage {
	return &RecordChangeMessage{
		UserID:    userID,
		RecordID:  recordID,
		Deleted:   true,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
