package postgres

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/journal"
	"scalp_bot/internal/modules/config"
	"scalp_bot/pkg/db"
)

// Module provides the trade journal. Without a DATABASE_DSN the journal
// degrades to a no-op store; the trading loop does not depend on
// Postgres being around.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (journal.Store, error) {
				if cfg.DB == "" {
					log.Info("no database DSN configured, trade journal disabled")
					return journal.NewNoopStore(log), nil
				}

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
				if err != nil {
					return nil, errors.Wrap(err, "failed to create poolMaster")
				}
				if err := poolMaster.Ping(ctx); err != nil {
					return nil, errors.Wrap(err, "ping postgres")
				}

				txm := db.NewPgTxManager(poolMaster)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						txm.Close()
						return nil
					},
				})
				return journal.NewPgStore(ctx, txm, log)
			},
		),
	)
}
