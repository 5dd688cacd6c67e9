package protection

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/exchange"
	"scalp_bot/internal/models"
	"scalp_bot/internal/position"
)

type Gateway interface {
	PlaceTakeProfit(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*exchange.Order, error)
	PlaceStopLoss(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*exchange.Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
}

type TrackerSink interface {
	SetPosition(pos models.Position)
	ClearPosition()
}

type Config struct {
	TakeProfitPct float64 // e.g. 0.01 => 1% above entry for LONG
	StopLossPct   float64
}

// Manager keeps exactly one take-profit and one stop-loss order attached
// to the open position. States: unprotected, protected. Protection is
// placed once per position lifetime and not re-validated afterwards: an
// order cancelled out of band on the exchange is not detected until the
// position closes. Known limitation, kept deliberately.
type Manager struct {
	gw      Gateway
	client  position.AccountFetcher
	tracker TrackerSink
	symbol  string
	cfg     Config
	log     *zap.Logger

	tpOrderID *int64
	slOrderID *int64
	protected bool
}

func NewManager(gw Gateway, client position.AccountFetcher, tracker TrackerSink, symbol string, cfg Config, log *zap.Logger) *Manager {
	return &Manager{
		gw:      gw,
		client:  client,
		tracker: tracker,
		symbol:  symbol,
		cfg:     cfg,
		log:     log.Named("Protection"),
	}
}

// Protected reports whether both legs are confirmed outstanding.
func (m *Manager) Protected() bool { return m.protected }

// Sync drives the protection state machine against a fresh remote
// snapshot:
//   - remote flat: cancel any leftover legs, clear the tracker, reset.
//   - remote position, unprotected: cancel stale legs defensively, then
//     place both legs; either leg failing cancels both and the position
//     stays unprotected until the next cycle.
//   - remote position, protected: no-op.
func (m *Manager) Sync(ctx context.Context) error {
	remote, err := m.fetchRemote(ctx)
	if err != nil {
		// Remote state unknown; fall back to the last placement outcome
		// rather than churning orders on a transient failure.
		m.log.Error("failed to fetch position for protection sync", zap.Error(err))
		return err
	}

	if remote == nil {
		m.cancelOutstanding(ctx, "position closed on exchange")
		m.tracker.ClearPosition()
		m.protected = false
		return nil
	}

	// Keep the tracker aligned with the snapshot just fetched.
	m.tracker.SetPosition(*remote)

	if m.protected {
		return nil
	}

	// A previous partial placement may have left one leg outstanding.
	m.cancelOutstanding(ctx, "placing initial protection")
	return m.placeProtection(ctx, remote)
}

func (m *Manager) placeProtection(ctx context.Context, pos *models.Position) error {
	tpPrice, slPrice := m.prices(pos.EntryPrice, pos.Side)
	closeSide := pos.Side.CloseOrderSide()

	tpOrder, err := m.gw.PlaceTakeProfit(ctx, pos.Symbol, closeSide, pos.Quantity, tpPrice)
	if err == nil && tpOrder.OrderID == 0 {
		err = errors.New("take profit response missing orderId")
	}
	if err != nil {
		m.log.Error("take profit placement failed", zap.Error(err))
		m.cancelOutstanding(ctx, "protection placement failed")
		return errors.Wrap(err, "place take profit")
	}
	m.tpOrderID = &tpOrder.OrderID

	slOrder, err := m.gw.PlaceStopLoss(ctx, pos.Symbol, closeSide, pos.Quantity, slPrice)
	if err == nil && slOrder.OrderID == 0 {
		err = errors.New("stop loss response missing orderId")
	}
	if err != nil {
		// No partial protection: one confirmed leg without the other is
		// torn down and retried whole next cycle.
		m.log.Error("stop loss placement failed", zap.Error(err))
		m.cancelOutstanding(ctx, "protection placement failed")
		return errors.Wrap(err, "place stop loss")
	}
	m.slOrderID = &slOrder.OrderID

	m.protected = true
	m.log.Info("protection placed",
		zap.String("symbol", pos.Symbol),
		zap.Float64("tp", tpPrice),
		zap.Float64("sl", slPrice),
		zap.Int64("tp_order_id", tpOrder.OrderID),
		zap.Int64("sl_order_id", slOrder.OrderID))
	return nil
}

// cancelOutstanding cancels both legs best-effort. One leg's cancel
// failure must not block the other's.
func (m *Manager) cancelOutstanding(ctx context.Context, reason string) {
	if m.tpOrderID != nil {
		if err := m.gw.CancelOrder(ctx, m.symbol, *m.tpOrderID); err != nil {
			m.log.Error("failed to cancel take profit",
				zap.Int64("order_id", *m.tpOrderID),
				zap.String("reason", reason),
				zap.Error(err))
		} else {
			m.log.Info("cancelled take profit",
				zap.Int64("order_id", *m.tpOrderID),
				zap.String("reason", reason))
		}
	}
	if m.slOrderID != nil {
		if err := m.gw.CancelOrder(ctx, m.symbol, *m.slOrderID); err != nil {
			m.log.Error("failed to cancel stop loss",
				zap.Int64("order_id", *m.slOrderID),
				zap.String("reason", reason),
				zap.Error(err))
		} else {
			m.log.Info("cancelled stop loss",
				zap.Int64("order_id", *m.slOrderID),
				zap.String("reason", reason))
		}
	}
	m.tpOrderID = nil
	m.slOrderID = nil
	m.protected = false
}

func (m *Manager) prices(entry float64, side models.Side) (tp, sl float64) {
	if side == models.SideLong {
		return entry * (1 + m.cfg.TakeProfitPct), entry * (1 - m.cfg.StopLossPct)
	}
	return entry * (1 - m.cfg.TakeProfitPct), entry * (1 + m.cfg.StopLossPct)
}

func (m *Manager) fetchRemote(ctx context.Context) (*models.Position, error) {
	info, err := m.client.GetAccountInfo(ctx)
	if err != nil {
		return nil, err
	}
	return position.FromAccount(info, m.symbol), nil
}
