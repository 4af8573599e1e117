package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"winsentry/internal/model"
	"winsentry/internal/util"

	"github.com/rs/zerolog/log"
)

var ErrEmptyLine = errors.New("empty event line")

// eventLine is the JSON-lines export format of a security event.
type eventLine struct {
	ID        *int64 `json:"id"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Message   string `json:"message"`
}

// PeekEventID reads only the event id, so callers can filter before a full parse.
func PeekEventID(line []byte) (int64, bool) {
	var head struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(line, &head); err != nil || head.ID == nil {
		return 0, false
	}
	return *head.ID, true
}

func ParseEventLine(line []byte) (model.RawEvent, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return model.RawEvent{}, ErrEmptyLine
	}

	var raw eventLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.RawEvent{}, fmt.Errorf("line is not a json event: %w", err)
	}
	if raw.ID == nil {
		return model.RawEvent{}, errors.New("event has no id")
	}

	ts, err := util.ParseTimeFlexible(raw.Timestamp)
	if err != nil {
		log.Debug().Int64("event_id", *raw.ID).Str("timestamp", raw.Timestamp).Msg("Event timestamp did not parse")
		return model.RawEvent{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	msg := strings.TrimSpace(raw.Message)
	if msg == "" {
		msg = "No Message Content"
	}

	return model.RawEvent{
		ID:        *raw.ID,
		Timestamp: ts,
		Source:    raw.Source,
		Message:   msg,
	}, nil
}

func EncodeEventLine(ev model.RawEvent) ([]byte, error) {
	id := ev.ID
	return json.Marshal(eventLine{
		ID:        &id,
		Timestamp: ev.Timestamp.Format(time.RFC3339Nano),
		Source:    ev.Source,
		Message:   ev.Message,
	})
}
