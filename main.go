package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"winsentry/config"
	"winsentry/internal/elasticsearch"
	"winsentry/internal/eventlog"
	"winsentry/internal/seed"
	"winsentry/internal/timescaledb"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// seeder writes synthetic failed logons into one of the event sources the
// monitor reads, for demos and local testing.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	var (
		csvPath string
		count   int
		sink    string
		step    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "winsentry-seed",
		Short: "Seed synthetic failed-logon events (event 4625)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, csvPath, count, sink, step)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file of ip,user,status rows (default: generate)")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of events to generate when no CSV is given")
	cmd.Flags().StringVar(&sink, "sink", eventlog.KindFile, "target: file, elasticsearch or postgres")
	cmd.Flags().DurationVar(&step, "step", 500*time.Millisecond, "time between consecutive events")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, csvPath string, count int, sink string, step time.Duration) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	var attempts []seed.Attempt
	if csvPath != "" {
		file, err := os.Open(csvPath)
		if err != nil {
			return fmt.Errorf("error opening CSV file: %w", err)
		}
		defer file.Close()
		if attempts, err = seed.ReadCSV(file); err != nil {
			return err
		}
	} else {
		attempts = seed.Generate(count, rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	events := seed.Events(attempts, time.Now(), step)

	writer, closeWriter, err := newWriter(ctx, cfg, sink)
	if err != nil {
		return err
	}
	if err := writer.Write(ctx, events); err != nil {
		closeWriter()
		return err
	}
	closeWriter()
	log.Info().Int("events", len(events)).Str("sink", sink).Msg("Seeded failed logon events")
	return nil
}

func newWriter(ctx context.Context, cfg *config.Config, sink string) (seed.Writer, func(), error) {
	switch sink {
	case eventlog.KindFile:
		return seed.NewFileWriter(cfg.Channel.FilePath), func() {}, nil
	case eventlog.KindElasticsearch:
		client, err := elasticsearch.NewClient(ctx, cfg.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		indexer, err := elasticsearch.NewEventIndexer(client, cfg.Elasticsearch, cfg.Channel.Name)
		if err != nil {
			return nil, nil, err
		}
		if err := indexer.EnsureIndex(ctx); err != nil {
			return nil, nil, err
		}
		return indexer, func() {
			if err := indexer.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to flush bulk indexer")
			}
		}, nil
	case eventlog.KindPostgres:
		pool, err := timescaledb.NewPool(ctx, cfg.TimescaleDB)
		if err != nil {
			return nil, nil, err
		}
		if err := timescaledb.EnsureEventTable(ctx, pool, cfg.TimescaleDB.EventTable); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return timescaledb.NewEventWriter(pool, cfg.TimescaleDB.EventTable), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown sink %q", sink)
}
