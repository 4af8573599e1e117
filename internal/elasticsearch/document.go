package elasticsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"winsentry/internal/model"
	"winsentry/internal/util"
)

// eventDocument is the subset of a Winlogbeat style document the monitor reads.
type eventDocument struct {
	Timestamp string        `json:"@timestamp"`
	Message   string        `json:"message"`
	Event     eventSection  `json:"event"`
	Winlog    winlogSection `json:"winlog"`
}

type eventSection struct {
	Code     string `json:"code,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type winlogSection struct {
	EventID      json.Number `json:"event_id,omitempty"`
	ProviderName string      `json:"provider_name,omitempty"`
	Channel      string      `json:"channel,omitempty"`
	ComputerName string      `json:"computer_name,omitempty"`
}

func newEventDocument(ev model.RawEvent, channel, computer string) eventDocument {
	code := strconv.FormatInt(ev.ID, 10)
	return eventDocument{
		Timestamp: ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Message:   ev.Message,
		Event:     eventSection{Code: code, Provider: ev.Source},
		Winlog: winlogSection{
			EventID:      json.Number(code),
			ProviderName: ev.Source,
			Channel:      channel,
			ComputerName: computer,
		},
	}
}

// decodeEvent returns the event id alongside any error so the caller can still filter on it.
func decodeEvent(source json.RawMessage) (model.RawEvent, error) {
	var doc eventDocument
	if err := json.Unmarshal(source, &doc); err != nil {
		return model.RawEvent{}, fmt.Errorf("invalid event document: %w", err)
	}

	var ev model.RawEvent
	idText := doc.Event.Code
	if idText == "" {
		idText = doc.Winlog.EventID.String()
	}
	if idText == "" {
		return ev, errors.New("event document has no event code")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
	if err != nil {
		return ev, fmt.Errorf("invalid event code %q: %w", idText, err)
	}
	ev.ID = id

	ts, err := util.ParseTimeFlexible(doc.Timestamp)
	if err != nil {
		return ev, fmt.Errorf("invalid @timestamp %q: %w", doc.Timestamp, err)
	}
	ev.Timestamp = ts

	ev.Source = doc.Winlog.ProviderName
	if ev.Source == "" {
		ev.Source = doc.Event.Provider
	}
	ev.Message = strings.TrimSpace(doc.Message)
	if ev.Message == "" {
		ev.Message = "No Message Content"
	}
	return ev, nil
}
