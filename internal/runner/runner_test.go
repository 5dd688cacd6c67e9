package runner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/entry"
	"scalp_bot/internal/exchange"
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

type fakeAccount struct {
	info *exchange.AccountInfo
}

func (f *fakeAccount) GetAccountInfo(context.Context) (*exchange.AccountInfo, error) {
	return f.info, nil
}

func openAccount(amt string) *exchange.AccountInfo {
	return &exchange.AccountInfo{
		Positions: []exchange.AccountPosition{
			{Symbol: "BTCUSDT", PositionAmt: amt, EntryPrice: "50000"},
		},
	}
}

type fakeBalances struct{}

func (fakeBalances) GetAvailableBalance(context.Context, string) (float64, error) {
	return 10_000, nil
}

// fakeOrders serves both the entry and the protection gateways.
type fakeOrders struct {
	nextID int64
}

func (g *fakeOrders) place() (*exchange.Order, error) {
	g.nextID++
	return &exchange.Order{OrderID: g.nextID}, nil
}

func (g *fakeOrders) PlaceMarketOrder(context.Context, string, string, float64) (*exchange.Order, error) {
	return g.place()
}

func (g *fakeOrders) PlaceTakeProfit(context.Context, string, string, float64, float64) (*exchange.Order, error) {
	return g.place()
}

func (g *fakeOrders) PlaceStopLoss(context.Context, string, string, float64, float64) (*exchange.Order, error) {
	return g.place()
}

func (g *fakeOrders) CancelOrder(context.Context, string, int64) error { return nil }

func (g *fakeOrders) FetchFills(context.Context, string, int64) ([]exchange.Fill, error) {
	return nil, nil
}

type fakeHistory struct {
	fills []exchange.Fill
	err   error
}

func (f *fakeHistory) GetUserTradesHistory(_ context.Context, _ string, _ int64) ([]exchange.Fill, error) {
	return f.fills, f.err
}

func (f *fakeHistory) GetIncomeHistory(context.Context, string, string, int64) ([]exchange.Income, error) {
	return nil, f.err
}

// fakeKlines serves fully closed, contiguous candles ending in the past.
type fakeKlines struct{}

func (fakeKlines) GetKlines(_ context.Context, _, interval string, limit int) ([]exchange.Kline, error) {
	step := models.Interval(interval).Duration()
	start := time.Now().Add(-time.Duration(limit+10) * 5 * time.Minute).Truncate(time.Minute)
	out := make([]exchange.Kline, 0, limit)
	for i := 0; i < limit; i++ {
		open := start.Add(time.Duration(i) * step)
		out = append(out, exchange.Kline{
			OpenTime:  open.UnixMilli(),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1,
			CloseTime: open.Add(step).UnixMilli() - 1,
		})
	}
	return out, nil
}

type idleStrategy struct{}

func (idleStrategy) Name() string { return "idle" }

func (idleStrategy) GenerateSignal(models.MarketData) models.Signal { return models.SignalNone }

func newTestRunner(t *testing.T, acc *fakeAccount, hist *fakeHistory, checkpoint string) *Runner {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{
		Symbol:       "BTCUSDT",
		Asset:        "USDT",
		KlinesLimit:  5,
		SafetyMargin: 1500 * time.Millisecond,
		WakeOffset:   time.Second,
		Checkpoint:   checkpoint,
	}
	cfg.Risk.RiskPct = 0.001
	cfg.Risk.SLPct = 0.01
	cfg.Risk.TPPct = 0.01

	gw := &fakeOrders{}
	tracker := position.NewTracker(acc, cfg.Symbol, log)
	prot := protection.NewManager(gw, acc, tracker, cfg.Symbol,
		protection.Config{TakeProfitPct: cfg.Risk.TPPct, StopLossPct: cfg.Risk.SLPct}, log)
	exec := entry.NewExecutor(idleStrategy{}, gw, tracker, fakeBalances{},
		entry.Config{Symbol: cfg.Symbol, Asset: cfg.Asset, RiskPct: cfg.Risk.RiskPct, SLPct: cfg.Risk.SLPct}, log)

	r, err := New(Deps{
		Cfg:        cfg,
		Market:     marketdata.NewService(fakeKlines{}, cfg.SafetyMargin, log),
		Executor:   exec,
		Protection: prot,
		Tracker:    tracker,
		Limits:     risk.NewTradeLimits(risk.LimitsConfig{}, time.Now(), log),
		Kill:       risk.NewKillSwitch(log),
		Accountant: pnl.NewAccountant(hist, log),
		Journal:    journal.NewNoopStore(log),
		Notifier:   notify.NewLog(log),
		State:      healthsvc.NewState(),
		Log:        log,
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestCycleRetriesSettlementAfterHistoryFailure(t *testing.T) {
	acc := &fakeAccount{info: openAccount("0.5")}
	hist := &fakeHistory{err: errors.New("503 from history endpoint")}
	r := newTestRunner(t, acc, hist, filepath.Join(t.TempDir(), "checkpoint.json"))
	ctx := context.Background()

	r.cycle(ctx)
	if !r.lastOpen {
		t.Fatal("open exchange position not adopted")
	}

	// Position closes on the exchange; the first attribution attempt fails.
	acc.info = &exchange.AccountInfo{}
	r.cycle(ctx)
	if r.limits.DailyTrades() != 0 {
		t.Fatalf("daily trades = %d after failed settlement, want 0", r.limits.DailyTrades())
	}
	if !r.settlePending {
		t.Fatal("close transition dropped, failed settlement must stay pending")
	}

	// History recovers; the next cycle must settle the same trade.
	hist.err = nil
	hist.fills = []exchange.Fill{{Price: "49800", Qty: "0.5", RealizedPnl: "-10"}}
	r.cycle(ctx)
	if r.settlePending {
		t.Fatal("settlement still pending after recovery")
	}
	if got := r.limits.DailyTrades(); got != 1 {
		t.Fatalf("daily trades = %d, want 1", got)
	}
	if got := r.limits.DailyLoss(); got != -10 {
		t.Fatalf("daily loss = %v, want -10", got)
	}
}

func TestNewSeedsWatermarkAtStartup(t *testing.T) {
	before := time.Now().UnixMilli()
	r := newTestRunner(t, &fakeAccount{info: &exchange.AccountInfo{}}, &fakeHistory{},
		filepath.Join(t.TempDir(), "checkpoint.json"))

	// No checkpoint on disk: attribution must start from now, not from
	// the beginning of the account's history.
	if r.lastPnlCheckMs < before {
		t.Fatalf("watermark = %d, want >= startup time %d", r.lastPnlCheckMs, before)
	}
}

func TestNewKeepsPersistedWatermark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := pnl.SaveCheckpoint(path, pnl.Checkpoint{LastPnlCheckMs: 1_700_000_000_000}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	r := newTestRunner(t, &fakeAccount{info: &exchange.AccountInfo{}}, &fakeHistory{}, path)
	if r.lastPnlCheckMs != 1_700_000_000_000 {
		t.Fatalf("watermark = %d, want the persisted 1700000000000", r.lastPnlCheckMs)
	}
}
