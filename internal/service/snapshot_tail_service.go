package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"winsentry/internal/kafka"

	"github.com/rs/zerolog/log"
)

// SnapshotView displays snapshots received from a remote monitor.
type SnapshotView interface {
	ShowSnapshot(msg *kafka.SnapshotMessage) error
}

type SnapshotTailService interface {
	Run(ctx context.Context, wg *sync.WaitGroup)
}

type snapshotTailService struct {
	consumer kafka.SnapshotConsumer
	view     SnapshotView
	retry    time.Duration
}

func NewSnapshotTailService(consumer kafka.SnapshotConsumer, view SnapshotView) SnapshotTailService {
	return &snapshotTailService{
		consumer: consumer,
		view:     view,
		retry:    time.Second,
	}
}

func (s *snapshotTailService) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	log.Info().Msg("Starting snapshot tail loop...")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Snapshot tail loop stopping due to context cancellation.")
			return
		default:
		}

		err := s.processOne(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					log.Info().Msg("Context cancelled while waiting for snapshots.")
					return
				}
				continue
			}
			log.Error().Err(err).Msg("Error processing snapshot message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retry):
			}
		}
	}
}

func (s *snapshotTailService) processOne(ctx context.Context) error {
	msg, raw, err := s.consumer.FetchSnapshot(ctx)
	if err != nil {
		// undecodable messages are committed so they are not redelivered forever
		if raw.Topic != "" {
			log.Warn().Int64("offset", raw.Offset).Msg("Skipping undecodable snapshot message")
			return s.consumer.CommitMessages(ctx, raw)
		}
		return err
	}

	// only the newest snapshot matters, so a failed render is not retried
	if err := s.view.ShowSnapshot(msg); err != nil {
		log.Warn().Err(err).Uint64("sequence", msg.Snapshot.Sequence).Msg("Failed to render snapshot")
	}
	return s.consumer.CommitMessages(ctx, raw)
}
