package position

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/exchange"
	"scalp_bot/internal/models"
)

// Tolerance for quantity/entry-price comparison during reconciliation.
const reconcileTolerance = 1e-8

type AccountFetcher interface {
	GetAccountInfo(ctx context.Context) (*exchange.AccountInfo, error)
}

// Tracker owns the authoritative local view of the single open position
// and reconciles it against the exchange. Mutations are confined to the
// control-loop goroutine.
type Tracker struct {
	client AccountFetcher
	symbol string
	pos    *models.Position
	log    *zap.Logger
}

func NewTracker(client AccountFetcher, symbol string, log *zap.Logger) *Tracker {
	return &Tracker{
		client: client,
		symbol: symbol,
		log:    log.Named("PositionTracker"),
	}
}

func (t *Tracker) Symbol() string { return t.symbol }

// Position returns the tracked position, nil when flat.
func (t *Tracker) Position() *models.Position { return t.pos }

func (t *Tracker) HasOpenPosition() bool {
	return t.pos != nil && t.pos.Quantity > 0
}

// SetPosition installs a confirmed position. Owner-only mutator, used by
// the entry executor on confirmed fill and by the protection manager's
// reconciliation.
func (t *Tracker) SetPosition(pos models.Position) {
	t.pos = &pos
	t.log.Info("position set",
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("qty", pos.Quantity),
		zap.Float64("entry", pos.EntryPrice))
}

// ClearPosition drops the local position after a confirmed remote flat.
func (t *Tracker) ClearPosition() {
	if t.pos != nil {
		t.log.Info("clearing local position", zap.String("symbol", t.pos.Symbol))
	}
	t.pos = nil
}

// SyncFromExchange reconciles local state against the remote account:
//   - remote position, no local: adopt.
//   - both present but differing in side, quantity or entry price beyond
//     tolerance: overwrite local, remote is authoritative.
//   - remote flat, local present: keep local. A missing remote position
//     may be a transient API gap; adopting spuriously is harmless while
//     clearing spuriously could leave a real position unprotected.
//   - query failure: leave local untouched, surface the error.
func (t *Tracker) SyncFromExchange(ctx context.Context) error {
	info, err := t.client.GetAccountInfo(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch account info for position sync")
	}

	remote := FromAccount(info, t.symbol)

	switch {
	case remote != nil && t.pos == nil:
		t.log.Info("adopting existing exchange position",
			zap.String("side", string(remote.Side)),
			zap.Float64("qty", remote.Quantity))
		t.pos = remote

	case remote != nil && t.pos != nil:
		if t.pos.Side != remote.Side ||
			math.Abs(t.pos.Quantity-remote.Quantity) > reconcileTolerance ||
			math.Abs(t.pos.EntryPrice-remote.EntryPrice) > reconcileTolerance {
			t.log.Warn("local position mismatch, overwriting from exchange",
				zap.Float64("local_qty", t.pos.Quantity),
				zap.Float64("remote_qty", remote.Quantity))
			t.pos = remote
		}

	case remote == nil && t.pos != nil:
		t.log.Warn("exchange reports no position, keeping local state for now",
			zap.String("symbol", t.symbol))
	}
	return nil
}

// FromAccount extracts the open position for symbol from an account
// snapshot, nil when flat.
func FromAccount(info *exchange.AccountInfo, symbol string) *models.Position {
	for _, p := range info.Positions {
		if p.Symbol != symbol {
			continue
		}
		amt := p.Amt()
		if amt == 0 {
			continue
		}
		side := models.SideLong
		if amt < 0 {
			side = models.SideShort
		}
		return &models.Position{
			Symbol:     symbol,
			Side:       side,
			Quantity:   math.Abs(amt),
			EntryPrice: p.Entry(),
			EntryTime:  p.UpdateTime,
		}
	}
	return nil
}
