package entry

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/exchange"
	"scalp_bot/internal/models"
	"scalp_bot/internal/orders"
	"scalp_bot/internal/risk"
	"scalp_bot/internal/strategy"
)

type Gateway interface {
	PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*exchange.Order, error)
	FetchFills(ctx context.Context, symbol string, orderID int64) ([]exchange.Fill, error)
}

type Tracker interface {
	SyncFromExchange(ctx context.Context) error
	HasOpenPosition() bool
	SetPosition(pos models.Position)
}

type BalanceFetcher interface {
	GetAvailableBalance(ctx context.Context, asset string) (float64, error)
}

type Config struct {
	Symbol  string
	Asset   string // quote asset used as equity, e.g. USDT
	RiskPct float64
	SLPct   float64
}

// Executor turns a signal into a sized, submitted, confirmed entry.
// Every abort path is a no-op for this cycle; nothing retries, so at
// most one market order is submitted per cycle per symbol.
type Executor struct {
	strategy strategy.Strategy
	gw       Gateway
	tracker  Tracker
	balances BalanceFetcher
	cfg      Config
	log      *zap.Logger

	inFlight bool // re-entrancy guard; the loop is serial, this is defense in depth
}

func NewExecutor(stg strategy.Strategy, gw Gateway, tracker Tracker, balances BalanceFetcher, cfg Config, log *zap.Logger) *Executor {
	return &Executor{
		strategy: stg,
		gw:       gw,
		tracker:  tracker,
		balances: balances,
		cfg:      cfg,
		log:      log.Named("EntryExecutor"),
	}
}

// Process runs one entry attempt against the cycle's market data.
// Returned errors are cycle-level: the caller logs them and the next
// minute re-evaluates from scratch.
func (e *Executor) Process(ctx context.Context, data models.MarketData) error {
	if e.inFlight {
		e.log.Warn("entry processing already running, skipping duplicate call")
		return nil
	}
	e.inFlight = true
	defer func() { e.inFlight = false }()

	if err := e.tracker.SyncFromExchange(ctx); err != nil {
		return errors.Wrap(err, "position sync before entry")
	}
	if e.tracker.HasOpenPosition() {
		e.log.Debug("open position detected, skipping entry")
		return nil
	}

	signal := e.strategy.GenerateSignal(data)
	if signal == models.SignalNone {
		return nil
	}
	e.log.Info("signal detected", zap.String("signal", string(signal)))

	entryPrice, ok := data[models.Interval1m].LastClose()
	if !ok {
		e.log.Info("no price data available for entry")
		return nil
	}

	equity, err := e.balances.GetAvailableBalance(ctx, e.cfg.Asset)
	if err != nil {
		return errors.Wrap(err, "fetch available balance")
	}
	if equity <= 0 {
		e.log.Info("equity unavailable or zero, skipping entry")
		return nil
	}

	qty, ok := risk.PositionSize(equity, e.cfg.RiskPct, entryPrice, e.cfg.SLPct)
	if !ok {
		e.log.Info("computed quantity invalid, skipping entry",
			zap.Float64("equity", equity),
			zap.Float64("entry_price", entryPrice))
		return nil
	}

	side := signal.Side()
	order, err := e.gw.PlaceMarketOrder(ctx, e.cfg.Symbol, side.OrderSide(), qty)
	if err != nil {
		return errors.Wrap(err, "place entry order")
	}
	if order.OrderID == 0 {
		// Do not retry blindly: a retry here could double-enter.
		return errors.New("order response missing orderId, aborting entry")
	}

	fills, err := e.gw.FetchFills(ctx, e.cfg.Symbol, order.OrderID)
	if err != nil {
		return errors.Wrapf(err, "fetch fills for order %d", order.OrderID)
	}
	summary := orders.AvgFill(fills)
	if summary == nil {
		// Rejected or still pending; do not fabricate a position.
		return errors.Errorf("no fills received for order %d, aborting entry", order.OrderID)
	}

	pos := models.Position{
		Symbol:     e.cfg.Symbol,
		Side:       side,
		Quantity:   summary.Qty,
		EntryPrice: summary.Price,
		EntryTime:  order.UpdateTime,
	}
	e.tracker.SetPosition(pos)
	e.log.Info("entry confirmed",
		zap.String("symbol", e.cfg.Symbol),
		zap.String("side", string(side)),
		zap.Float64("qty", pos.Quantity),
		zap.Float64("avg_price", pos.EntryPrice))
	return nil
}
