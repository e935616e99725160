package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"oi-surge-alerts/internal/alerting"
	"oi-surge-alerts/internal/config"
	"oi-surge-alerts/internal/exchange"
	"oi-surge-alerts/internal/guard"
	"oi-surge-alerts/internal/instrument"
	"oi-surge-alerts/internal/scheduler"
	"oi-surge-alerts/internal/service"
	"oi-surge-alerts/internal/storage"
	"oi-surge-alerts/internal/version"
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

func (a *App) newExchange() *exchange.Binance {
	cfg := a.Config.Binance
	return exchange.NewBinance(exchange.BinanceOptions{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Timeout:   cfg.RequestTimeout,
	}, a.Logger)
}

func (a *App) newGuard() *guard.Guard {
	cfg := a.Config.Guard
	return guard.New(guard.Options{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		DefaultBan:  cfg.DefaultBan,
	}, a.Logger)
}

func (a *App) newRegistry(source exchange.InstrumentSource, g *guard.Guard) *instrument.Registry {
	return instrument.NewRegistry(source, g, instrument.Options{
		SettlementAsset: a.Config.Binance.SettlementAsset,
		Retention:       a.Config.Monitor.Retention,
		MaxRepeats:      a.Config.Monitor.MaxRepeatHistory,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	tg := a.Config.Alerting.Telegram
	if a.Config.Alerting.Enabled && tg.Enabled {
		return alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, tg.RequestTimeout, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) newEvaluator(notifier alerting.Notifier, recorder alerting.Recorder) *alerting.Evaluator {
	return alerting.NewEvaluator(alerting.EvaluatorOptions{
		Horizons: a.Config.Monitor.Horizons,
		Cooldown: a.Config.Monitor.Cooldown,
	}, notifier, recorder, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// RunOptions tune the run command.
type RunOptions struct {
	// DryRun logs alerts instead of sending them to Telegram.
	DryRun bool
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	var recorder alerting.Recorder
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; alert audit log disabled")
	} else {
		recorder = store
	}
	if closeStore != nil {
		defer closeStore()
	}

	var heartbeat *scheduler.Heartbeat
	if a.Config.Heartbeat.Enabled {
		heartbeat, err = scheduler.NewHeartbeat(a.Config.Heartbeat.Cron, a.Logger)
		if err != nil {
			return err
		}
		heartbeat.Start()
		defer heartbeat.Stop()
	}

	monitor := a.Config.Monitor
	sched := scheduler.New(scheduler.Options{
		Fallback:     monitor.InitBackoff,
		StartupDelay: a.Config.App.StartupDelay,
	}, a.Logger)

	ex := a.newExchange()
	g := a.newGuard()
	var notifier alerting.Notifier = a.newNotifier()
	if opts.DryRun {
		notifier = alerting.NewLogNotifier(a.Logger)
	}

	svc := service.New(service.Deps{
		Market:    ex,
		Registry:  a.newRegistry(ex, g),
		Guard:     g,
		Evaluator: a.newEvaluator(notifier, recorder),
		Notifier:  notifier,
		Heartbeat: heartbeat,
		Scheduler: sched,
	}, service.Options{
		Name:          a.Config.App.Name,
		FetchPause:    monitor.FetchPause,
		MinCycle:      monitor.MinCycle,
		PerInstrument: monitor.PerInstrument,
		CycleOverhead: monitor.CycleOverhead,
		InitBackoff:   monitor.InitBackoff,
		BanMargin:     a.Config.Guard.BanMargin,
	}, a.Logger)

	a.Logger.Info().
		Str("version", version.String()).
		Str("environment", a.Config.App.Environment).
		Bool("dry_run", opts.DryRun).
		Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions describe a synthetic move for simulate-alert.
type SimulateOptions struct {
	Symbol          string
	PriceChangePct  float64
	OpenInterestPct float64
}
