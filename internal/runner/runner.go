package runner

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/entry"
	"scalp_bot/internal/journal"
	"scalp_bot/internal/marketdata"
	"scalp_bot/internal/models"
	"scalp_bot/internal/modules/config"
	healthsvc "scalp_bot/internal/modules/health/service"
	"scalp_bot/internal/notify"
	"scalp_bot/internal/pnl"
	"scalp_bot/internal/position"
	"scalp_bot/internal/protection"
	"scalp_bot/internal/risk"
)

// Runner drives the minute cycle. All trading components are serialized
// behind it; nothing else submits orders.
type Runner struct {
	cfg        *config.Config
	market     *marketdata.Service
	executor   *entry.Executor
	protection *protection.Manager
	tracker    *position.Tracker
	limits     *risk.TradeLimits
	kill       *risk.KillSwitch
	accountant *pnl.Accountant
	journal    journal.Store
	notifier   notify.Notifier
	state      *healthsvc.State
	log        *zap.Logger

	day            time.Time // UTC midnight of the current trading day
	lastOpen       bool
	lastPos        *models.Position
	settlePending  bool
	lastPnlCheckMs int64
}

type Deps struct {
	fx.In

	Cfg        *config.Config
	Market     *marketdata.Service
	Executor   *entry.Executor
	Protection *protection.Manager
	Tracker    *position.Tracker
	Limits     *risk.TradeLimits
	Kill       *risk.KillSwitch
	Accountant *pnl.Accountant
	Journal    journal.Store
	Notifier   notify.Notifier
	State      *healthsvc.State
	Log        *zap.Logger
}

func New(d Deps) (*Runner, error) {
	cp, err := pnl.LoadCheckpoint(d.Cfg.Checkpoint)
	if err != nil {
		return nil, err
	}
	if cp.LastPnlCheckMs == 0 {
		// First run: start attributing from now. A zero watermark would
		// pull the account's entire fill and funding history into the
		// first close.
		cp.LastPnlCheckMs = time.Now().UnixMilli()
	}
	return &Runner{
		cfg:            d.Cfg,
		market:         d.Market,
		executor:       d.Executor,
		protection:     d.Protection,
		tracker:        d.Tracker,
		limits:         d.Limits,
		kill:           d.Kill,
		accountant:     d.Accountant,
		journal:        d.Journal,
		notifier:       d.Notifier,
		state:          d.State,
		log:            d.Log.Named("Runner"),
		day:            time.Now().UTC().Truncate(24 * time.Hour),
		lastPnlCheckMs: cp.LastPnlCheckMs,
	}, nil
}

// Run blocks until ctx is cancelled, executing one cycle per minute.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("trading loop started",
		zap.String("symbol", r.cfg.Symbol),
		zap.Bool("testnet", r.cfg.Testnet),
		zap.Int64("pnl_watermark_ms", r.lastPnlCheckMs))
	r.notifier.Sendf("bot started: %s (testnet=%v)", r.cfg.Symbol, r.cfg.Testnet)
	r.state.SetReady(true)
	defer r.state.SetReady(false)

	for {
		r.cycle(ctx)
		r.state.ObserveCycle()

		if !r.sleepUntilNextMinute(ctx) {
			r.log.Info("trading loop stopped")
			r.notifier.Send("bot stopped")
			return
		}
	}
}

// cycle runs one full pass. Any failure inside aborts the rest of the
// pass; the next minute starts from a fresh exchange snapshot, so a
// skipped cycle is always safe.
func (r *Runner) cycle(ctx context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "cycle")
	defer span.Finish()

	now := time.Now()
	r.rolloverDay(now)
	r.limits.ResetIfNeeded(now)

	if err := r.tracker.SyncFromExchange(ctx); err != nil {
		r.log.Error("position sync failed, skipping cycle", zap.Error(err))
		r.notifier.Sendf("position sync failed: %v", err)
		return
	}

	data, err := r.fetchMarketData(ctx)
	if err != nil {
		r.log.Warn("market data unavailable, skipping trading actions", zap.Error(err))
		return
	}

	if r.kill.TradingAllowed() {
		if err := r.executor.Process(ctx, data); err != nil {
			r.log.Error("entry processing failed", zap.Error(err))
		}
	} else {
		r.log.Info("trading halted by kill switch, managing existing position only")
	}

	if err := r.protection.Sync(ctx); err != nil {
		r.log.Error("protection sync failed", zap.Error(err))
		if r.tracker.HasOpenPosition() && !r.protection.Protected() {
			r.notifier.Sendf("position is unprotected, placement will retry next cycle: %v", err)
		}
	}

	open := r.tracker.HasOpenPosition()
	if r.lastOpen && !open {
		// The transition stays pending until a settlement succeeds, so a
		// transient history failure cannot drop the trade from the limits.
		r.settlePending = true
	}
	if r.settlePending {
		r.settle(ctx)
	}

	if open {
		if pos := r.tracker.Position(); pos != nil {
			snapshot := *pos
			r.lastPos = &snapshot
		}
	}
	r.lastOpen = open
}

func (r *Runner) fetchMarketData(ctx context.Context) (models.MarketData, error) {
	m1, err := r.market.FetchClosedKlines(ctx, r.cfg.Symbol, models.Interval1m, r.cfg.KlinesLimit)
	if err != nil {
		return nil, err
	}
	m5, err := r.market.FetchClosedKlines(ctx, r.cfg.Symbol, models.Interval5m, r.cfg.KlinesLimit)
	if err != nil {
		return nil, err
	}
	return models.MarketData{
		models.Interval1m: m1,
		models.Interval5m: m5,
	}, nil
}

// settle attributes the pending closed trade: realized PnL plus funding
// since the watermark, then advances the watermark. Neither the pending
// flag nor the watermark moves on failure, so attribution is retried
// next cycle.
func (r *Runner) settle(ctx context.Context) {
	now := time.Now()
	res, err := r.accountant.Settle(ctx, r.cfg.Symbol, r.lastPnlCheckMs)
	if err != nil {
		r.log.Error("pnl attribution failed, will retry next cycle", zap.Error(err))
		return
	}
	net := res.Net()

	rec := journal.TradeRecord{
		Symbol:   r.cfg.Symbol,
		Realized: res.Realized,
		Funding:  res.Funding,
		Net:      net,
		ClosedAt: now,
	}
	if r.lastPos != nil {
		rec.Side = r.lastPos.Side
		rec.Quantity = r.lastPos.Quantity
		rec.EntryPrice = r.lastPos.EntryPrice
	}
	if err := r.journal.RecordTrade(ctx, rec); err != nil {
		r.log.Error("journal write failed", zap.Error(err))
	}

	r.limits.RecordTrade(net, now)
	r.notifier.Sendf("trade closed: %s net %.4f (realized %.4f, funding %.4f)",
		r.cfg.Symbol, net, res.Realized, res.Funding)

	if r.limits.Exceeded() {
		r.kill.Evaluate(r.limits)
		r.notifier.Sendf("risk limits exceeded, trading halted until next UTC day (daily loss %.4f, trades %d)",
			r.limits.DailyLoss(), r.limits.DailyTrades())
	}

	r.lastPnlCheckMs = now.UnixMilli()
	if err := pnl.SaveCheckpoint(r.cfg.Checkpoint, pnl.Checkpoint{LastPnlCheckMs: r.lastPnlCheckMs}); err != nil {
		r.log.Error("checkpoint save failed", zap.Error(err))
	}
	r.settlePending = false
	r.lastPos = nil
}

// rolloverDay re-enables trading at the UTC day boundary. The kill
// switch trips one way during a day; this is its only reset path.
func (r *Runner) rolloverDay(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if day.Equal(r.day) {
		return
	}
	r.day = day
	r.kill.ResetDaily()
}

// sleepUntilNextMinute blocks until shortly after the next minute
// boundary so the just-closed candle is available. Returns false when
// ctx was cancelled.
func (r *Runner) sleepUntilNextMinute(ctx context.Context) bool {
	now := time.Now()
	wake := now.Truncate(time.Minute).Add(time.Minute + r.cfg.WakeOffset)

	timer := time.NewTimer(wake.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
