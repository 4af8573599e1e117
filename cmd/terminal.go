package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"winsentry/config"
	"winsentry/internal/eventlog"
	"winsentry/internal/forensic"
	"winsentry/internal/logging"
	"winsentry/internal/service"
	"winsentry/internal/store"
	"winsentry/internal/terminal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Run the live monitor in this terminal (default)",
	RunE:  runTerminal,
}

func runTerminal(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	// the screen belongs to the renderer, so logs only go to the file
	closer, err := logging.Setup(cfg.Log, false)
	if err != nil {
		return err
	}
	defer closer.Close()
	log.Info().Msg("Terminal mode started.")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel, release, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	out := cmd.OutOrStdout()
	renderer := terminal.NewRenderer(out, cfg.Monitor.PollInterval, cfg.Monitor.EventIDs)
	monitor := service.NewMonitor(
		cfg,
		newSource(channel, cfg),
		forensic.NewFailedLogonExtractor(),
		store.NewInMemorySnapshotStore(),
		service.WithSinks(renderer),
		service.WithAccessDeniedHandler(func(err error, remediation string) {
			if rerr := renderer.RenderAccessDenied(err, remediation); rerr != nil {
				log.Error().Err(rerr).Msg("Failed to render access denied banner")
			}
		}),
	)

	fmt.Fprintln(out, "Starting Live Monitor... (Press Ctrl+C to stop)")
	err = monitor.Run(ctx)
	if errors.Is(err, eventlog.ErrAccessDenied) {
		return err
	}
	fmt.Fprintln(out, "\n>> Stopping Live Monitor...")
	log.Info().Msg("Live Monitor stopped by user.")
	return err
}
