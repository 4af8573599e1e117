package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"winsentry/config"
	_ "winsentry/docs"
	"winsentry/internal/controller"
	"winsentry/internal/eventlog"
	"winsentry/internal/forensic"
	"winsentry/internal/kafka"
	"winsentry/internal/logging"
	"winsentry/internal/metrics"
	"winsentry/internal/scheduler"
	"winsentry/internal/service"
	"winsentry/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the HTTP dashboard API",
	RunE:  runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	app := fx.New(
		// Core Dependencies
		fx.Provide(
			NewConfig,
			NewLogging,
		),
		// Infrastructure Dependencies
		fx.Provide(
			NewGinEngine,
			NewEventChannel,
			NewEventSource,
			metrics.NewCollector,
			store.NewInMemorySnapshotStore,
			forensic.NewFailedLogonExtractor,
			kafka.NewKafkaSnapshotProducer,
			NewMonitor,
			NewSnapshotQueryService,
			NewDiagnosticsService,
			NewSnapshotController,
			controller.NewStreamController,
		),
		fx.Invoke(
			RegisterAPIRoutes,
			RegisterScheduler,
		),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		log.Error().Err(err).Msg("Failed to start application")
		return err
	}
	<-app.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	log.Info().Msg("Shutting down application...")
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown due to error or timeout")
		return err
	}
	log.Info().Msg("All background processes finished. Exiting.")
	return nil
}

func NewConfig() (*config.Config, error) {
	return config.NewConfig()
}

// NewLogging configures the global logger before any other component logs.
func NewLogging(lc fx.Lifecycle, cfg *config.Config) (io.Closer, error) {
	closer, err := logging.Setup(cfg.Log, true)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closer.Close()
		},
	})
	log.Info().Msg("Dashboard mode starting.")
	return closer, nil
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// NewEventChannel depends on the logging closer only so the logger is set up first.
func NewEventChannel(lc fx.Lifecycle, cfg *config.Config, _ io.Closer) (eventlog.Channel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	channel, release, err := openChannel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			release()
			return nil
		},
	})
	return channel, nil
}

func NewEventSource(channel eventlog.Channel, cfg *config.Config, collector *metrics.Collector) service.Fetcher {
	return newSource(channel, cfg, eventlog.WithObserver(collector))
}

func NewMonitor(
	cfg *config.Config,
	source service.Fetcher,
	extractor forensic.Extractor,
	snapshots store.SnapshotStore,
	collector *metrics.Collector,
	producer kafka.SnapshotProducer,
) *service.Monitor {
	return service.NewMonitor(cfg, source, extractor, snapshots,
		service.WithSinks(producer),
		service.WithCycleObserver(collector),
	)
}

func NewSnapshotQueryService(cfg *config.Config, snapshots store.SnapshotStore) service.SnapshotQueryService {
	return service.NewSnapshotQueryService(snapshots, cfg.Monitor.RecordLimit)
}

func NewDiagnosticsService(cfg *config.Config) service.DiagnosticsService {
	return service.NewDiagnosticsService(cfg.Log.File)
}

func NewSnapshotController(
	snapshotQueryService service.SnapshotQueryService,
	diagnosticsService service.DiagnosticsService,
	monitor *service.Monitor,
) *controller.SnapshotController {
	return controller.NewSnapshotController(snapshotQueryService, diagnosticsService, monitor)
}

func RegisterAPIRoutes(
	lifecycle fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	snapshotController *controller.SnapshotController,
	streamController *controller.StreamController,
	collector *metrics.Collector,
) {
	controller.RegisterSnapshotRoutes(router, snapshotController)
	controller.RegisterStreamRoutes(router, streamController)
	controller.RegisterMetricsRoutes(router, collector.Handler())

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Starting HTTP server on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("HTTP server ListenAndServe error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Shutting down HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}

func RegisterScheduler(lc fx.Lifecycle, cfg *config.Config, monitor *service.Monitor) error {
	_, err := scheduler.NewScheduler(lc, cfg, monitor)
	return err
}
