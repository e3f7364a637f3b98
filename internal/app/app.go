package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tariff-optimizer/internal/alerting"
	"tariff-optimizer/internal/config"
	"tariff-optimizer/internal/fetcher"
	"tariff-optimizer/internal/scheduler"
	"tariff-optimizer/internal/service"
	"tariff-optimizer/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.LoadFetcher {
	return fetcher.NewEntsoe(fetcher.EntsoeOptions{
		BaseURL:   a.Config.Entsoe.BaseURL,
		APIKey:    a.Config.Entsoe.APIKey,
		Timeout:   a.Config.Entsoe.RequestTimeout,
		UserAgent: a.Config.Entsoe.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running repricing service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; the repricing service requires persistence")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, store, store, a.newNotifier(), a.Logger)

	a.Logger.Info().Msg("starting repricing service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("repricing service stopped")
	return nil
}

// OptimizeOptions hold CLI overrides for one optimization run. Zero or
// negative values fall back to configuration defaults.
type OptimizeOptions struct {
	From           *time.Time
	To             *time.Time
	Target         float64
	FairnessWeight float64
	ProfitWeight   float64
	MinPrice       float64
	MaxPrice       float64
	Timeout        time.Duration
	Mode           string
	MinRecoveryPct float64
	MaxRecoveryPct float64
}

// StrategyOptions configure a closed-form strategy run.
type StrategyOptions struct {
	Strategy string
	From     *time.Time
	To       *time.Time
	Target   float64
	Save     bool

	PeakHours         []int
	PeakMultiplier    float64
	OffPeakMultiplier float64
	MinMultiplier     float64
	MaxMultiplier     float64
}

// ScoreOptions configure re-scoring of a stored run.
type ScoreOptions struct {
	RunID    string
	Outliers int
}

// IngestOptions configure the acquisition job.
type IngestOptions struct {
	Country    string
	Days       int
	Households int
	Replace    bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting a run's price curve.
type ExportOptions struct {
	RunID     string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
