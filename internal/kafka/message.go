package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"winsentry/internal/model"
)

const headerMessageID = "message-id"

// SnapshotMessage is the envelope written to the snapshot topic.
type SnapshotMessage struct {
	ID         string          `json:"id"`
	Host       string          `json:"host"`
	Channel    string          `json:"channel"`
	ProducedAt time.Time       `json:"produced_at"`
	Snapshot   *model.Snapshot `json:"snapshot"`
}

func decodeSnapshotMessage(value []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return nil, err
	}
	if msg.Snapshot == nil {
		return nil, errors.New("message carries no snapshot")
	}
	return &msg, nil
}
