package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/be-green/grab-cafe/internal/config"
	"github.com/be-green/grab-cafe/internal/infrastructure/discord"
	"github.com/be-green/grab-cafe/internal/infrastructure/parser"
	"github.com/be-green/grab-cafe/internal/infrastructure/scheduler"
	"github.com/be-green/grab-cafe/internal/infrastructure/storage"
	"github.com/be-green/grab-cafe/internal/logging"
	"github.com/be-green/grab-cafe/internal/ports"
	"github.com/be-green/grab-cafe/internal/scanner"
	"github.com/be-green/grab-cafe/internal/usecase"
)

const sourceStrategy = "gradcafe"

// Application wires config to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	repository *storage.SQLiteRepository
	scheduler  *usecase.Scheduler
}

// New opens storage and assembles the ingestion pipeline. All shared
// resources are explicit dependencies; nothing hides behind a
// process-wide singleton.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	repository, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	pipeline := BuildPipeline(cfg, repository, baseLogger)

	driver := scheduler.NewCronScheduler(cfg.Scheduler.Interval())
	sched := usecase.NewScheduler(driver, pipeline, logging.Component(baseLogger, "scheduler"))

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		repository: repository,
		scheduler:  sched,
	}, nil
}

// BuildPipeline assembles the fetch-parse-store-deliver pipeline on
// top of an already opened repository. The backfill CLI reuses it
// without the scheduler.
func BuildPipeline(cfg config.Config, repository *storage.SQLiteRepository, baseLogger *slog.Logger) *usecase.Pipeline {
	registry := scanner.NewRegistry()
	registry.Register(parser.NewGradCafeScanner(
		&http.Client{Timeout: cfg.Scraper.Timeout()},
		cfg.Scraper.ListingURL,
		cfg.Scraper.UserAgent,
		logging.Component(baseLogger, "scanner.gradcafe"),
	))

	source := parser.NewStrategySource(registry, sourceStrategy, logging.Component(baseLogger, "source"))

	var notifier ports.Notifier
	if cfg.Notifications.Discord.WebhookURL != "" {
		notifier = discord.NewNotifier(cfg.Notifications.Discord.WebhookURL)
	}

	return usecase.NewPipeline(usecase.PipelineDeps{
		Source:           source,
		Repository:       repository,
		Notifier:         notifier,
		Logger:           logging.Component(baseLogger, "pipeline"),
		RecentWindowDays: cfg.Scheduler.RecentWindowDays,
		LookbackDays:     cfg.Delivery.LookbackDays,
		CutoffYear:       cfg.Aggregation.CutoffYear,
	})
}

// Run starts the recurring ingestion cycles and blocks until the
// context is cancelled. The scheduler only starts once storage is
// open and the pipeline is fully wired.
func (a *Application) Run(ctx context.Context) error {
	defer a.repository.Close()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("ingestion scheduled",
		"interval", a.cfg.Scheduler.Interval().String(),
		"lookback_days", a.cfg.Delivery.LookbackDays)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}
