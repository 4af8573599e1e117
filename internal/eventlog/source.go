package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"winsentry/internal/model"

	"github.com/rs/zerolog/log"
)

// Observer receives fetch-level counters, typically a metrics collector.
type Observer interface {
	BatchRead(n int)
	MalformedEvent(id int64)
	ReadError()
}

type noopObserver struct{}

func (noopObserver) BatchRead(int)        {}
func (noopObserver) MalformedEvent(int64) {}
func (noopObserver) ReadError()           {}

type Source struct {
	channel  Channel
	server   string
	name     string
	elevated func() bool
	observer Observer
}

type Option func(*Source)

func WithObserver(o Observer) Option {
	return func(s *Source) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithPrivilegeCheck installs the elevation predicate consulted before every open.
func WithPrivilegeCheck(elevated func() bool) Option {
	return func(s *Source) { s.elevated = elevated }
}

func NewSource(channel Channel, server, name string, opts ...Option) *Source {
	s := &Source{
		channel:  channel,
		server:   server,
		name:     name,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string { return s.name }

// Fetch reads the channel newest first until maxCount events matching filter
// have been collected or the channel is exhausted. An empty filter matches every event.
//
// The returned slice is never nil. On access denial it is empty and the error
// is an *AccessDeniedError. On a read failure it holds what was collected before
// the failure and the error wraps ErrTransientRead. Malformed events are skipped.
// The channel handle is closed on every path, including cancellation.
func (s *Source) Fetch(ctx context.Context, filter model.EventFilter, maxCount int) ([]model.RawEvent, error) {
	events := []model.RawEvent{}
	if maxCount <= 0 {
		return events, nil
	}
	if s.elevated != nil && !s.elevated() {
		log.Error().Str("channel", s.name).Msg("Refusing to open channel without elevated privileges")
		return events, &AccessDeniedError{Channel: s.name}
	}

	log.Debug().Str("channel", s.name).Str("server", s.server).Int("max_events", maxCount).Msg("Starting event ingestion")
	startTime := time.Now()

	h, err := s.channel.Open(ctx, s.server, s.name)
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			log.Error().Err(err).Str("channel", s.name).Msg("Failed to open event channel. Do you have Admin privileges?")
			var ade *AccessDeniedError
			if !errors.As(err, &ade) {
				err = &AccessDeniedError{Channel: s.name, Err: err}
			}
			return events, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return events, ctxErr
		}
		s.observer.ReadError()
		log.Error().Err(err).Str("channel", s.name).Msg("Failed to open event channel")
		return events, fmt.Errorf("%w: open %s: %v", ErrTransientRead, s.name, err)
	}
	defer func() {
		if cerr := s.channel.Close(h); cerr != nil {
			log.Warn().Err(cerr).Str("channel", s.name).Msg("Failed to close event channel")
		}
		log.Debug().Str("channel", s.name).Int("events", len(events)).Dur("duration", time.Since(startTime)).Msg("Ingestion complete")
	}()

	for len(events) < maxCount {
		if err := ctx.Err(); err != nil {
			return events, err
		}

		batch, err := s.channel.ReadBatch(ctx, h, Backward)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return events, ctxErr
			}
			s.observer.ReadError()
			log.Error().Err(err).Str("channel", s.name).Int("collected", len(events)).Msg("Error during event read loop")
			return events, fmt.Errorf("%w: %v", ErrTransientRead, err)
		}
		if len(batch) == 0 {
			break
		}
		s.observer.BatchRead(len(batch))

		for _, rec := range batch {
			// an unrendered event with no id cannot be filtered, so it is reported
			if len(filter) > 0 && !filter.Contains(rec.Event.ID) && (rec.Err == nil || rec.Event.ID != 0) {
				continue
			}
			if rec.Err != nil {
				s.observer.MalformedEvent(rec.Event.ID)
				log.Error().Err(rec.Err).Int64("event_id", rec.Event.ID).Msg("Error parsing specific event, skipping")
				continue
			}
			events = append(events, rec.Event)
			if len(events) >= maxCount {
				break
			}
		}
	}

	return events, nil
}
