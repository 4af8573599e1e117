package main

import (
	"context"
	"fmt"

	"winsentry/config"
	"winsentry/internal/elasticsearch"
	"winsentry/internal/eventlog"
	"winsentry/internal/timescaledb"

	"github.com/rs/zerolog/log"
)

// openChannel builds the configured event channel. The returned release func
// frees any connection pool behind it.
func openChannel(ctx context.Context, cfg *config.Config) (eventlog.Channel, func(), error) {
	noop := func() {}
	switch cfg.Channel.Kind {
	case eventlog.KindSystem:
		ch, err := eventlog.NewSystemChannel(cfg.Channel.BatchSize)
		if err != nil {
			return nil, noop, err
		}
		return ch, noop, nil
	case eventlog.KindFile:
		log.Info().Str("path", cfg.Channel.FilePath).Msg("Reading events from exported file")
		return eventlog.NewFileChannel(cfg.Channel.FilePath, cfg.Channel.BatchSize), noop, nil
	case eventlog.KindElasticsearch:
		client, err := elasticsearch.NewTypedClient(ctx, cfg.Elasticsearch)
		if err != nil {
			return nil, noop, err
		}
		return elasticsearch.NewChannel(client, cfg.Elasticsearch.EventIndex, cfg.Channel.BatchSize), noop, nil
	case eventlog.KindPostgres:
		pool, err := timescaledb.NewPool(ctx, cfg.TimescaleDB)
		if err != nil {
			return nil, noop, err
		}
		return timescaledb.NewChannel(pool, cfg.TimescaleDB.EventTable, cfg.Channel.BatchSize), pool.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown CHANNEL_KIND %q", cfg.Channel.Kind)
}

func newSource(channel eventlog.Channel, cfg *config.Config, opts ...eventlog.Option) *eventlog.Source {
	opts = append(opts, eventlog.WithPrivilegeCheck(eventlog.PrivilegeCheck(cfg.Channel.Kind)))
	return eventlog.NewSource(channel, cfg.Channel.Server, cfg.Channel.Name, opts...)
}
