package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/crop-yield-analytics/internal/api/http"
	"github.com/i474232898/crop-yield-analytics/internal/config"
	"github.com/i474232898/crop-yield-analytics/internal/crop"
	"github.com/i474232898/crop-yield-analytics/internal/crop/geo"
	"github.com/i474232898/crop-yield-analytics/internal/crop/mlservice"
	"github.com/i474232898/crop-yield-analytics/internal/events"
	"github.com/i474232898/crop-yield-analytics/internal/logging"
	"github.com/i474232898/crop-yield-analytics/internal/metrics"
	"github.com/i474232898/crop-yield-analytics/internal/scheduler"
	"github.com/i474232898/crop-yield-analytics/internal/seed"
)

const serviceName = "crop-yield-analytics"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m := metrics.New()

	recordStore, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}()

	// Shared HTTP client for outbound prediction service calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	predictor := mlservice.New(httpClient, cfg.MLServiceURL,
		mlservice.WithLogger(log),
		mlservice.WithStateObserver(m.BreakerStateChanged),
	)

	var publisher interface {
		crop.Publisher
		Close() error
	} = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.Info("publishing prediction events",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	}
	defer func() { _ = publisher.Close() }()

	var fallback geo.Geocoder
	if cfg.GeocoderAPIKey != "" {
		fallback = geo.GoogleGeocoder(cfg.GeocoderAPIKey)
	}

	service := crop.NewService(recordStore, predictor,
		crop.WithPublisher(publisher),
		crop.WithLocator(geo.NewLocator(fallback, log)),
		crop.WithLogger(log),
		crop.WithAccuracyRate(cfg.ModelAccuracyRate),
		crop.WithHistoryLimit(cfg.HistoryLimit),
	)

	if cfg.SeedOnStart {
		if err := importSample(cmd.Context(), service, log); err != nil {
			return err
		}
	}

	// Scheduler that keeps the reference catalog fresh and enforces retention.
	sched := scheduler.New(scheduler.Config{
		CatalogInterval: cfg.CatalogRefreshInterval,
		PruneInterval:   cfg.PruneInterval,
		MaxAge:          cfg.StoreMaxAge,
		JobTimeout:      cfg.HTTPTimeout * 3,
	}, service, log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logging.Middleware(log))
	app.Use(m.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	app.Get("/metrics", m.Handler())

	httpapi.RegisterRoutes(app, service, m)

	go func() {
		log.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	return nil
}

func importSample(ctx context.Context, service *crop.Service, log *zap.Logger) error {
	records, err := seed.Sample()
	if err != nil {
		return err
	}
	n, err := service.Import(ctx, records)
	if err != nil {
		return err
	}
	log.Info("imported sample predictions", zap.Int("records", n))
	return nil
}
