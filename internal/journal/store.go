package journal

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/models"
	"scalp_bot/pkg/db"
)

// TradeRecord is one closed trade as attributed by the accountant.
type TradeRecord struct {
	Symbol     string
	Side       models.Side
	Quantity   float64
	EntryPrice float64
	Realized   float64
	Funding    float64
	Net        float64
	ClosedAt   time.Time
}

// Store persists closed trades. The journal is informational: a write
// failure is logged by the caller and never blocks the trading loop.
type Store interface {
	RecordTrade(ctx context.Context, rec TradeRecord) error
}

const schema = `
CREATE TABLE IF NOT EXISTS trade_journal (
    id          BIGSERIAL PRIMARY KEY,
    symbol      TEXT             NOT NULL,
    side        TEXT             NOT NULL,
    quantity    DOUBLE PRECISION NOT NULL,
    entry_price DOUBLE PRECISION NOT NULL,
    realized    DOUBLE PRECISION NOT NULL,
    funding     DOUBLE PRECISION NOT NULL,
    net         DOUBLE PRECISION NOT NULL,
    closed_at   TIMESTAMPTZ      NOT NULL
)`

const insertTrade = `
INSERT INTO trade_journal (symbol, side, quantity, entry_price, realized, funding, net, closed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// PgStore writes trade records through the transaction manager.
type PgStore struct {
	txm db.TxManager
	log *zap.Logger
}

func NewPgStore(ctx context.Context, txm db.TxManager, log *zap.Logger) (*PgStore, error) {
	if _, err := txm.Conn().Exec(ctx, schema); err != nil {
		return nil, errors.Wrap(err, "ensure trade_journal schema")
	}
	return &PgStore{txm: txm, log: log.Named("Journal")}, nil
}

func (s *PgStore) RecordTrade(ctx context.Context, rec TradeRecord) error {
	err := s.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, insertTrade,
			rec.Symbol, string(rec.Side), rec.Quantity, rec.EntryPrice,
			rec.Realized, rec.Funding, rec.Net, rec.ClosedAt)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "insert trade record")
	}
	s.log.Info("trade recorded",
		zap.String("symbol", rec.Symbol),
		zap.Float64("net", rec.Net))
	return nil
}

// NoopStore is used when no database is configured.
type NoopStore struct {
	log *zap.Logger
}

func NewNoopStore(log *zap.Logger) *NoopStore {
	return &NoopStore{log: log.Named("Journal")}
}

func (s *NoopStore) RecordTrade(_ context.Context, rec TradeRecord) error {
	s.log.Debug("journal disabled, dropping trade record",
		zap.String("symbol", rec.Symbol),
		zap.Float64("net", rec.Net))
	return nil
}
