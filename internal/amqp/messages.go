package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"household/internal/core"
)

// ReadingRecordedMessage announces a stored reading to the export worker.
// It carries only the id; the worker loads the reading from the database.
type ReadingRecordedMessage struct {
	MessageID string         `json:"messageId"`
	ReadingID int64          `json:"readingId"`
	MeterType core.MeterType `json:"meterType"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewReadingRecordedMessage(readingID int64, meterType core.MeterType) *ReadingRecordedMessage {
	return &ReadingRecordedMessage{
		MessageID: uuid.NewString(),
		ReadingID: readingID,
		MeterType: meterType,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ReadingRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReadingRecordedMessageFromJSON(data []byte) (*ReadingRecordedMessage, error) {
	var msg ReadingRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ReadingID <= 0 {
		return nil, fmt.Errorf("message %q: missing reading id", msg.MessageID)
	}
	return &msg, nil
}
