package runner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/entry"
	"scalp_bot/internal/exchange"
	"scalp_bot/internal/marketdata"
	"scalp_bot/internal/modules/config"
	"scalp_bot/internal/notify"
	"scalp_bot/internal/orders"
	"scalp_bot/internal/pnl"
	"scalp_bot/internal/position"
	"scalp_bot/internal/protection"
	"scalp_bot/internal/risk"
	"scalp_bot/internal/strategy"
	"scalp_bot/pkg/tracing"
)

func newExchangeClient(cfg *config.Config, log *zap.Logger) (*exchange.Client, error) {
	return exchange.NewClient(exchange.Config{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Testnet:   cfg.Testnet,
		Timeout:   cfg.RequestTimeout,
	}, log)
}

func newMarketData(client *exchange.Client, cfg *config.Config, log *zap.Logger) *marketdata.Service {
	return marketdata.NewService(client, cfg.SafetyMargin, log)
}

func newStrategy(cfg *config.Config, log *zap.Logger) (strategy.Strategy, error) {
	return strategy.New(strategy.Config{
		Name:      cfg.Strategy.Name,
		FastEMA:   cfg.Strategy.FastEMA,
		SlowEMA:   cfg.Strategy.SlowEMA,
		VolumeSMA: cfg.Strategy.VolumeSMA,
	}, log)
}

func newGateway(client *exchange.Client, log *zap.Logger) *orders.Gateway {
	return orders.NewGateway(client, log)
}

func newTracker(client *exchange.Client, cfg *config.Config, log *zap.Logger) *position.Tracker {
	return position.NewTracker(client, cfg.Symbol, log)
}

func newProtection(gw *orders.Gateway, client *exchange.Client, tracker *position.Tracker, cfg *config.Config, log *zap.Logger) *protection.Manager {
	return protection.NewManager(gw, client, tracker, cfg.Symbol, protection.Config{
		TakeProfitPct: cfg.Risk.TPPct,
		StopLossPct:   cfg.Risk.SLPct,
	}, log)
}

func newExecutor(stg strategy.Strategy, gw *orders.Gateway, tracker *position.Tracker, client *exchange.Client, cfg *config.Config, log *zap.Logger) *entry.Executor {
	return entry.NewExecutor(stg, gw, tracker, client, entry.Config{
		Symbol:  cfg.Symbol,
		Asset:   cfg.Asset,
		RiskPct: cfg.Risk.RiskPct,
		SLPct:   cfg.Risk.SLPct,
	}, log)
}

func newTradeLimits(cfg *config.Config, log *zap.Logger) *risk.TradeLimits {
	return risk.NewTradeLimits(risk.LimitsConfig{
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		MaxTradesPerDay:  cfg.Risk.MaxTradesPerDay,
		MaxTradesPerHour: cfg.Risk.MaxTradesPerHour,
	}, time.Now(), log)
}

func newAccountant(client *exchange.Client, log *zap.Logger) *pnl.Accountant {
	return pnl.NewAccountant(client, log)
}

func newNotifier(cfg *config.Config, log *zap.Logger) (notify.Notifier, error) {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		log.Info("telegram not configured, notifications go to the log")
		return notify.NewLog(log), nil
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	if err != nil {
		return nil, errors.Wrap(err, "init telegram notifier")
	}
	return tg, nil
}

func setupTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	if !cfg.Tracing.Enabled {
		return nil
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName: "scalp_bot",
		Host:        cfg.Tracing.Host,
		Port:        cfg.Tracing.Port,
	})
	if err != nil {
		return errors.Wrap(err, "init tracer")
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return closeTracer() },
	})
	log.Info("tracing enabled",
		zap.String("agent", cfg.Tracing.Host),
		zap.Int("port", cfg.Tracing.Port))
	return nil
}

// startLoop verifies exchange connectivity once, then runs the trading
// loop for the lifetime of the app.
func startLoop(lc fx.Lifecycle, r *Runner, client *exchange.Client, log *zap.Logger) {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx); err != nil {
				cancel()
				return errors.Wrap(err, "exchange connectivity check")
			}
			go func() {
				defer close(done)
				r.Run(loopCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				log.Warn("trading loop did not stop before shutdown deadline")
				return ctx.Err()
			}
		},
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newExchangeClient,
			newMarketData,
			newStrategy,
			newGateway,
			newTracker,
			newProtection,
			newExecutor,
			newTradeLimits,
			risk.NewKillSwitch,
			newAccountant,
			newNotifier,
			New,
		),
		fx.Invoke(setupTracing),
		fx.Invoke(startLoop),
	)
}
