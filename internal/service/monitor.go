package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"winsentry/config"
	"winsentry/internal/aggregator"
	"winsentry/internal/dto"
	"winsentry/internal/eventlog"
	"winsentry/internal/forensic"
	"winsentry/internal/model"
	"winsentry/internal/store"

	"github.com/rs/zerolog/log"
)

var ErrCycleInProgress = errors.New("refresh cycle already in progress")

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateComputing
	StatePublished
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateComputing:
		return "computing"
	case StatePublished:
		return "published"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Cycle results reported to a CycleObserver.
const (
	ResultPublished    = "published"
	ResultPartial      = "partial"
	ResultTransient    = "transient"
	ResultAccessDenied = "access_denied"
	ResultCancelled    = "cancelled"
	ResultSkipped      = "skipped"
)

// Fetcher is the event source the monitor polls.
type Fetcher interface {
	Fetch(ctx context.Context, filter model.EventFilter, maxCount int) ([]model.RawEvent, error)
}

// SnapshotSink is notified after each snapshot is published.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snap *model.Snapshot) error
}

type CycleObserver interface {
	CycleCompleted(result string, duration time.Duration, snap *model.Snapshot)
}

type MonitorOption func(*Monitor)

func WithSinks(sinks ...SnapshotSink) MonitorOption {
	return func(m *Monitor) {
		for _, s := range sinks {
			if s != nil {
				m.sinks = append(m.sinks, s)
			}
		}
	}
}

func WithCycleObserver(o CycleObserver) MonitorOption {
	return func(m *Monitor) { m.observer = o }
}

// WithAccessDeniedHandler registers the callback that receives the access
// denial. It is called at most once per monitor.
func WithAccessDeniedHandler(fn func(err error, remediation string)) MonitorOption {
	return func(m *Monitor) { m.onAccessDenied = fn }
}

func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// Monitor polls the event source, extracts forensic records, aggregates them and
// publishes the resulting snapshot. Cycles never overlap.
type Monitor struct {
	cfg       config.MonitorConfig
	channel   string
	filter    model.EventFilter
	source    Fetcher
	extractor forensic.Extractor
	snapshots store.SnapshotStore
	sinks     []SnapshotSink
	observer  CycleObserver
	now       func() time.Time

	onAccessDenied func(err error, remediation string)
	deniedOnce     sync.Once
	deniedErr      error
	halted         atomic.Bool

	cycleLock sync.Mutex
	state     atomic.Int32

	done     chan struct{}
	stopOnce sync.Once

	statusMu     sync.RWMutex
	cycles       uint64
	lastCycleAt  time.Time
	lastDuration time.Duration
	lastErr      error
}

func NewMonitor(
	cfg *config.Config,
	source Fetcher,
	extractor forensic.Extractor,
	snapshots store.SnapshotStore,
	opts ...MonitorOption,
) *Monitor {
	m := &Monitor{
		cfg:       cfg.Monitor,
		channel:   cfg.Channel.Name,
		filter:    cfg.Monitor.Filter(),
		source:    source,
		extractor: extractor,
		snapshots: snapshots,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run polls until ctx is cancelled, Cancel is called or access is denied.
// Only access denial is returned as an error; every other failure is logged and
// the loop waits for the next interval.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := m.bind(ctx)
	defer cancel()
	defer m.setState(StateStopped)

	log.Info().
		Str("channel", m.channel).
		Dur("interval", m.cfg.PollInterval).
		Int("max_events", m.cfg.MaxEvents).
		Msg("Starting monitor loop")

	for {
		err := m.Cycle(ctx)
		switch {
		case errors.Is(err, eventlog.ErrAccessDenied):
			return err
		case ctx.Err() != nil:
			log.Info().Msg("Monitor loop cancelled")
			return nil
		case err != nil:
			log.Warn().Err(err).Msg("Refresh cycle failed, retrying at next interval")
		}

		m.setState(StateSleeping)
		timer := time.NewTimer(m.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Monitor loop cancelled")
			return nil
		case <-timer.C:
		}
	}
}

// Cycle runs one Polling to Published pass synchronously. A call made while
// another cycle is running returns ErrCycleInProgress without fetching. After an
// access denial every call returns that denial.
func (m *Monitor) Cycle(ctx context.Context) error {
	if m.halted.Load() {
		return m.deniedErr
	}
	if !m.cycleLock.TryLock() {
		log.Warn().Msg("Refresh cycle already in progress, skipping tick.")
		m.observe(ResultSkipped, 0, nil)
		return ErrCycleInProgress
	}
	defer m.cycleLock.Unlock()

	ctx, cancel := m.bind(ctx)
	defer cancel()

	startTime := time.Now()
	m.setState(StatePolling)
	events, err := m.source.Fetch(ctx, m.filter, m.cfg.MaxEvents)

	if ctxErr := ctx.Err(); ctxErr != nil {
		m.finish(startTime, ctxErr)
		m.observe(ResultCancelled, time.Since(startTime), nil)
		return ctxErr
	}
	if errors.Is(err, eventlog.ErrAccessDenied) {
		m.reportAccessDenied(err)
		m.finish(startTime, err)
		m.setState(StateStopped)
		m.observe(ResultAccessDenied, time.Since(startTime), nil)
		return err
	}

	partial := false
	if err != nil {
		if len(events) == 0 {
			log.Warn().Err(err).Msg("No events this cycle, keeping previous snapshot")
			m.finish(startTime, err)
			m.setState(StateIdle)
			m.observe(ResultTransient, time.Since(startTime), nil)
			return err
		}
		log.Warn().Err(err).Int("events", len(events)).Msg("Read failed mid-batch, publishing partial snapshot")
		partial = true
	}

	m.setState(StateComputing)
	records := m.extractor.Process(events)
	snap := aggregator.Compute(records, aggregator.Options{
		Granularity: m.cfg.Granularity,
		RecordLimit: m.cfg.RecordLimit,
		Now:         m.now(),
	})
	snap.Partial = partial

	published := m.snapshots.Publish(snap)
	m.setState(StatePublished)

	for _, sink := range m.sinks {
		if sinkErr := sink.PublishSnapshot(ctx, published); sinkErr != nil {
			log.Error().Err(sinkErr).Uint64("sequence", published.Sequence).Msg("Failed to forward snapshot")
		}
	}

	duration := time.Since(startTime)
	m.finish(startTime, err)
	result := ResultPublished
	if partial {
		result = ResultPartial
	}
	m.observe(result, duration, published)

	log.Info().
		Uint64("sequence", published.Sequence).
		Int("failures", published.TotalCount).
		Str("top_offender", published.TopOffenderIP).
		Bool("partial", partial).
		Dur("duration", duration).
		Msg("Published snapshot")
	return err
}

// Cancel stops Run and any cycle in flight. It is safe to call more than once.
func (m *Monitor) Cancel() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) Halted() bool {
	return m.halted.Load()
}

func (m *Monitor) Status() dto.MonitorStatusResponse {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	status := dto.MonitorStatusResponse{
		State:          m.State().String(),
		Channel:        m.channel,
		Cycles:         m.cycles,
		LastCycleAt:    m.lastCycleAt,
		LastDurationMs: m.lastDuration.Milliseconds(),
		PollIntervalMs: m.cfg.PollInterval.Milliseconds(),
		AccessDenied:   m.halted.Load(),
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	if status.AccessDenied {
		status.Remediation = eventlog.Remediation(m.deniedErr)
	}
	if snap := m.snapshots.Latest(); snap != nil {
		status.Sequence = snap.Sequence
	}
	return status
}

func (m *Monitor) reportAccessDenied(err error) {
	m.deniedOnce.Do(func() {
		m.deniedErr = err
		m.halted.Store(true)

		remediation := eventlog.Remediation(err)
		log.Error().Err(err).Str("channel", m.channel).Str("remediation", remediation).Msg("Access denied, monitoring halted")
		if m.onAccessDenied != nil {
			m.onAccessDenied(err, remediation)
		}
	})
}

// bind derives a context that is also cancelled by Cancel.
func (m *Monitor) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	select {
	case <-m.done:
		cancel()
		return ctx, cancel
	default:
	}
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Monitor) finish(start time.Time, err error) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.cycles++
	m.lastCycleAt = start
	m.lastDuration = time.Since(start)
	m.lastErr = err
}

func (m *Monitor) observe(result string, d time.Duration, snap *model.Snapshot) {
	if m.observer != nil {
		m.observer.CycleCompleted(result, d, snap)
	}
}
