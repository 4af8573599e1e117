package eventlog

import (
	"context"
	"errors"
	"fmt"

	"winsentry/internal/model"
)

var (
	ErrAccessDenied         = errors.New("access denied")
	ErrTransientRead        = errors.New("transient read error")
	ErrMalformedEvent       = errors.New("malformed event")
	ErrUnsupportedDirection = errors.New("unsupported read direction")
	ErrUnsupportedPlatform  = errors.New("channel not supported on this platform")
	ErrUnknownHandle        = errors.New("unknown channel handle")
)

// Channel is the minimal capability needed to read a protected event channel.
// Implementations exist for the Windows event log, exported files, Elasticsearch
// and Postgres; tests use in-memory doubles.
type Channel interface {
	Open(ctx context.Context, server, name string) (Handle, error)
	ReadBatch(ctx context.Context, h Handle, dir Direction) ([]Record, error)
	Close(h Handle) error
}

type Handle uint64

type Direction int

const (
	// Backward reads newest first.
	Backward Direction = iota
	Forward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Record is one event as read from a channel. Err is set when the channel
// returned the event but could not render it; Event then carries the id when it
// could be read and zero otherwise.
type Record struct {
	Event model.RawEvent
	Err   error
}

const accessDeniedRemediation = "Reading the Security event log requires elevated privileges. " +
	"Close this terminal, right-click it and select 'Run as Administrator' (or run as root), then start again."

type AccessDeniedError struct {
	Channel string
	Err     error
}

func (e *AccessDeniedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("access denied to channel %q: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("access denied to channel %q", e.Channel)
}

func (e *AccessDeniedError) Unwrap() error { return e.Err }

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }

func (e *AccessDeniedError) Remediation() string { return accessDeniedRemediation }

// Remediation returns the user guidance attached to an access-denied error.
func Remediation(err error) string {
	var ade *AccessDeniedError
	if errors.As(err, &ade) {
		return ade.Remediation()
	}
	if errors.Is(err, ErrAccessDenied) {
		return accessDeniedRemediation
	}
	return ""
}
