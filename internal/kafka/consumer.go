package kafka

import (
	"context"
	"errors"
	"time"

	"winsentry/config"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type SnapshotConsumer interface {
	FetchSnapshot(ctx context.Context) (*SnapshotMessage, kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaSnapshotConsumer struct {
	reader messageReader
}

func NewKafkaSnapshotConsumer(cfg *config.KafkaConfig) (SnapshotConsumer, error) {
	if len(cfg.Brokers) == 0 || cfg.SnapshotTopic == "" {
		return nil, errors.New("kafka configuration missing")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.ConsumerGroup,
		Topic:          cfg.SnapshotTopic,
		MinBytes:       1,
		MaxBytes:       10e6,        // 10MB
		MaxWait:        time.Second, // snapshots are small and latency matters
		CommitInterval: 0,
		StartOffset:    kafka.LastOffset,
	})
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.SnapshotTopic).
		Str("group", cfg.ConsumerGroup).
		Msg("Kafka consumer initialized")
	return &kafkaSnapshotConsumer{reader: reader}, nil
}

// FetchSnapshot returns the raw message even when decoding fails so it can still be committed.
func (c *kafkaSnapshotConsumer) FetchSnapshot(ctx context.Context) (*SnapshotMessage, kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, kafka.Message{}, err
	}
	log.Debug().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("Fetched message from Kafka")
	snap, err := decodeSnapshotMessage(msg.Value)
	if err != nil {
		log.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to unmarshal Kafka message value")
		return nil, msg, err
	}
	return snap, msg, nil
}

func (c *kafkaSnapshotConsumer) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		log.Error().Err(err).Int("count", len(msgs)).Msg("Failed to commit Kafka messages")
		return err
	}
	log.Debug().Int("count", len(msgs)).Int64("last_offset", msgs[len(msgs)-1].Offset).Msg("Committed Kafka messages")
	return nil
}

func (c *kafkaSnapshotConsumer) Close() error {
	return c.reader.Close()
}
