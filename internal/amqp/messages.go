package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Refresh reasons carried by request messages.
const (
	ReasonManual    = "manual"
	ReasonScheduled = "scheduled"
	ReasonStartup   = "startup"
)

// RefreshRequestMessage asks the worker to rebuild the dataset from the
// source. It carries no payload beyond its identity; the worker reads the
// spreadsheet itself.
type RefreshRequestMessage struct {
	RequestID string    `json:"request_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRefreshRequestMessage creates a request with a fresh id.
func NewRefreshRequestMessage(reason string) *RefreshRequestMessage {
	return &RefreshRequestMessage{
		RequestID: uuid.NewString(),
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshRequestMessageFromJSON decodes a message and checks its id.
func RefreshRequestMessageFromJSON(data []byte) (*RefreshRequestMessage, error) {
	var msg RefreshRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RequestID == "" {
		return nil, errors.New("missing request_id")
	}
	if _, err := uuid.Parse(msg.RequestID); err != nil {
		return nil, errors.New("malformed request_id")
	}
	return &msg, nil
}
