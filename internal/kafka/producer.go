package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"winsentry/config"
	"winsentry/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
)

type SnapshotProducer interface {
	PublishSnapshot(ctx context.Context, snap *model.Snapshot) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaSnapshotProducer struct {
	writer  messageWriter
	topic   string
	host    string
	channel string
}

// NewKafkaSnapshotProducer returns nil when Kafka is disabled so callers can skip the sink.
func NewKafkaSnapshotProducer(lc fx.Lifecycle, cfg *config.Config) (SnapshotProducer, error) {
	if !cfg.Kafka.Enabled {
		log.Info().Msg("Kafka disabled, snapshots will not be forwarded")
		return nil, nil
	}
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.SnapshotTopic == "" {
		log.Error().Msg("Kafka brokers or snapshot topic is not configured.")
		return nil, errors.New("kafka configuration missing")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Topic:                  cfg.Kafka.SnapshotTopic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("message_count", len(messages)).Msg("Failed to deliver snapshot messages")
			}
		},
	}
	p := newSnapshotProducer(writer, cfg.Kafka.SnapshotTopic, cfg.Channel.Name)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing Kafka producer")
			return p.Close()
		},
	})
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.SnapshotTopic).Msg("Kafka producer initialized")
	return p, nil
}

func newSnapshotProducer(w messageWriter, topic, channel string) *kafkaSnapshotProducer {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return &kafkaSnapshotProducer{writer: w, topic: topic, host: host, channel: channel}
}

// PublishSnapshot writes one message keyed by host, so a host's snapshots stay
// ordered within a partition.
func (p *kafkaSnapshotProducer) PublishSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	id := uuid.NewString()
	value, err := json.Marshal(SnapshotMessage{
		ID:         id,
		Host:       p.host,
		Channel:    p.channel,
		ProducedAt: time.Now().UTC(),
		Snapshot:   snap,
	})
	if err != nil {
		log.Error().Err(err).Uint64("sequence", snap.Sequence).Msg("Failed to marshal snapshot for Kafka")
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(p.host),
		Value:   value,
		Headers: []kafka.Header{{Key: headerMessageID, Value: []byte(id)}},
	})
	if err != nil {
		log.Error().Err(err).Uint64("sequence", snap.Sequence).Msg("Failed to write snapshot to Kafka")
		return err
	}

	log.Debug().Uint64("sequence", snap.Sequence).Str("topic", p.topic).Msg("Produced snapshot to Kafka")
	return nil
}

func (p *kafkaSnapshotProducer) Close() error {
	return p.writer.Close()
}
