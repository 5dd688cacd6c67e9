package pnl

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/exchange"
)

const incomeTypeFunding = "FUNDING_FEE"

type HistoryClient interface {
	GetUserTradesHistory(ctx context.Context, symbol string, startTimeMs int64) ([]exchange.Fill, error)
	GetIncomeHistory(ctx context.Context, symbol, incomeType string, startTimeMs int64) ([]exchange.Income, error)
}

// Result is the attribution of one closed trade since a watermark.
type Result struct {
	Realized float64
	Funding  float64
}

func (r Result) Net() float64 { return r.Realized + r.Funding }

// Accountant computes realized PnL and funding fees accrued since a
// checkpoint watermark. It runs only on position-close transitions; PnL
// is never computed speculatively mid-position.
type Accountant struct {
	client HistoryClient
	log    *zap.Logger
}

func NewAccountant(client HistoryClient, log *zap.Logger) *Accountant {
	return &Accountant{
		client: client,
		log:    log.Named("PnlAccountant"),
	}
}

// Settle sums realized PnL over fills and funding-fee income since
// sinceMs. Binance reports realizedPnl net of fees, so commissions are
// logged but not subtracted again.
func (a *Accountant) Settle(ctx context.Context, symbol string, sinceMs int64) (Result, error) {
	fills, err := a.client.GetUserTradesHistory(ctx, symbol, sinceMs)
	if err != nil {
		return Result{}, errors.Wrap(err, "fetch trade history")
	}
	realized := 0.0
	commission := 0.0
	for _, f := range fills {
		realized += f.RealizedPnlF()
		commission += f.CommissionF()
	}

	income, err := a.client.GetIncomeHistory(ctx, symbol, incomeTypeFunding, sinceMs)
	if err != nil {
		return Result{}, errors.Wrap(err, "fetch funding income")
	}
	funding := 0.0
	for _, entry := range income {
		funding += entry.IncomeF()
	}

	a.log.Info("settled closed trade",
		zap.String("symbol", symbol),
		zap.Int64("since_ms", sinceMs),
		zap.Float64("realized", realized),
		zap.Float64("funding", funding),
		zap.Float64("commission_reported", commission))
	return Result{Realized: realized, Funding: funding}, nil
}
