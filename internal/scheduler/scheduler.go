package scheduler

import (
	"context"
	"errors"
	"sync"

	"winsentry/config"
	"winsentry/internal/eventlog"
	"winsentry/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

// Cycler runs one synchronous refresh cycle.
type Cycler interface {
	Cycle(ctx context.Context) error
}

// Scheduler drives refresh cycles from cron ticks. A tick that fires while the
// previous cycle still runs is skipped.
type Scheduler struct {
	cron   *cron.Cron
	cycler Cycler

	mu    sync.Mutex
	entry cron.EntryID
	job   cron.Job

	ctx    context.Context
	cancel context.CancelFunc
}

func New(schedule string, cycler Cycler) (*Scheduler, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional | cron.Descriptor)
	logger := cronLogger{}
	c := cron.New(cron.WithParser(parser), cron.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, cycler: cycler, ctx: ctx, cancel: cancel}
	s.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(s.tick))

	id, err := c.AddJob(schedule, s.job)
	if err != nil {
		cancel()
		return nil, err
	}
	s.entry = id
	log.Info().Str("schedule", schedule).Msg("Scheduled refresh cycle job")
	return s, nil
}

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, monitor *service.Monitor) (*Scheduler, error) {
	s, err := New(cfg.Dashboard.Schedule, monitor)
	if err != nil {
		log.Error().Err(err).Str("schedule", cfg.Dashboard.Schedule).Msg("Failed to add cron job")
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msg("Starting cron scheduler")
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Stopping cron scheduler...")
			monitor.Cancel()
			return s.Stop(ctx)
		},
	})
	return s, nil
}

// Start begins ticking and runs a first cycle right away so the dashboard has data.
func (s *Scheduler) Start() {
	s.cron.Start()
	go s.RunNow()
}

// RunNow runs the job outside the schedule, subject to the same overlap rule.
func (s *Scheduler) RunNow() {
	s.job.Run()
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		log.Info().Msg("Cron scheduler stopped gracefully.")
		return nil
	case <-ctx.Done():
		log.Error().Msg("Context cancelled while waiting for cron scheduler to stop.")
		return ctx.Err()
	}
}

// Active reports whether refresh ticks are still scheduled.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry != 0
}

func (s *Scheduler) tick() {
	err := s.cycler.Cycle(s.ctx)
	switch {
	case err == nil:
	case errors.Is(err, eventlog.ErrAccessDenied):
		s.mu.Lock()
		if s.entry != 0 {
			s.cron.Remove(s.entry)
			s.entry = 0
			log.Error().Msg("Access denied, refresh ticks removed")
		}
		s.mu.Unlock()
	case errors.Is(err, service.ErrCycleInProgress), errors.Is(err, context.Canceled):
	default:
		log.Error().Err(err).Msg("Error during scheduled refresh cycle")
	}
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
