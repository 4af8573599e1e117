package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"winsentry/config"
	"winsentry/internal/kafka"
	"winsentry/internal/logging"
	"winsentry/internal/service"
	"winsentry/internal/terminal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Render snapshots published to Kafka by other hosts",
	RunE:  runTail,
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	closer, err := logging.Setup(cfg.Log, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	consumer, err := kafka.NewKafkaSnapshotConsumer(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Kafka consumer")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := terminal.NewRenderer(cmd.OutOrStdout(), cfg.Monitor.PollInterval, cfg.Monitor.EventIDs)
	var wg sync.WaitGroup
	wg.Add(1)
	go service.NewSnapshotTailService(consumer, renderer).Run(ctx, &wg)
	wg.Wait()
	return nil
}
