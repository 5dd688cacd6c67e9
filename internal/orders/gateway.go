package orders

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/exchange"
)

type Client interface {
	PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*exchange.Order, error)
	PlaceTakeProfit(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*exchange.Order, error)
	PlaceStopLoss(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*exchange.Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	GetUserTrades(ctx context.Context, symbol string, orderID int64) ([]exchange.Fill, error)
	GetSymbolInfo(ctx context.Context, symbol string) (*exchange.SymbolInfo, error)
}

// FillSummary is the volume-weighted aggregate of an order's fills.
type FillSummary struct {
	Price float64
	Qty   float64
}

// Gateway places orders with exchange-precision rounding. Per-symbol
// filters are fetched once and cached; all rounding floors to the step,
// never to nearest, so a submitted value can never exceed the precision
// the exchange validated.
type Gateway struct {
	client  Client
	log     *zap.Logger
	filters map[string]symbolFilters
}

type symbolFilters struct {
	tick      float64
	step      float64
	priceDecs int
	qtyDecs   int
}

func NewGateway(client Client, log *zap.Logger) *Gateway {
	return &Gateway{
		client:  client,
		log:     log.Named("OrderGateway"),
		filters: make(map[string]symbolFilters),
	}
}

// PlaceMarketOrder rounds the quantity and submits a market order.
// A quantity that rounds to zero is an error, not a silent no-op.
func (g *Gateway) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*exchange.Order, error) {
	qty, err := g.roundQty(ctx, symbol, quantity)
	if err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, errors.Errorf("rounded quantity is zero for %s (raw %.10f)", symbol, quantity)
	}
	order, err := g.client.PlaceMarketOrder(ctx, symbol, side, qty)
	if err != nil {
		return nil, err
	}
	g.log.Info("submitted market order",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("qty", qty))
	return order, nil
}

// PlaceTakeProfit submits a reduce-only close-position take profit.
func (g *Gateway) PlaceTakeProfit(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*exchange.Order, error) {
	qty, price, err := g.roundLeg(ctx, symbol, quantity, stopPrice)
	if err != nil {
		return nil, errors.Wrap(err, "take profit")
	}
	return g.client.PlaceTakeProfit(ctx, symbol, side, qty, price)
}

// PlaceStopLoss submits a reduce-only close-position stop loss.
func (g *Gateway) PlaceStopLoss(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*exchange.Order, error) {
	qty, price, err := g.roundLeg(ctx, symbol, quantity, stopPrice)
	if err != nil {
		return nil, errors.Wrap(err, "stop loss")
	}
	return g.client.PlaceStopLoss(ctx, symbol, side, qty, price)
}

func (g *Gateway) roundLeg(ctx context.Context, symbol string, quantity, stopPrice float64) (float64, float64, error) {
	qty, err := g.roundQty(ctx, symbol, quantity)
	if err != nil {
		return 0, 0, err
	}
	if qty <= 0 {
		return 0, 0, errors.Errorf("rounded quantity is zero for %s", symbol)
	}
	price, err := g.roundPrice(ctx, symbol, stopPrice)
	if err != nil {
		return 0, 0, err
	}
	return qty, price, nil
}

// CancelOrder cancels best-effort: an order the exchange no longer knows
// about (already filled or cancelled) counts as success.
func (g *Gateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	err := g.client.CancelOrder(ctx, symbol, orderID)
	if err == nil {
		return nil
	}
	if exchange.IsOrderNotFound(err) {
		g.log.Info("cancel target already gone",
			zap.String("symbol", symbol),
			zap.Int64("order_id", orderID))
		return nil
	}
	return err
}

// FetchFills returns the fills recorded for an order.
func (g *Gateway) FetchFills(ctx context.Context, symbol string, orderID int64) ([]exchange.Fill, error) {
	return g.client.GetUserTrades(ctx, symbol, orderID)
}

// AvgFill computes the volume-weighted average fill price and total
// quantity. Returns nil when nothing was filled.
func AvgFill(fills []exchange.Fill) *FillSummary {
	if len(fills) == 0 {
		return nil
	}
	totalQty := 0.0
	totalQuote := 0.0
	for _, f := range fills {
		qty := f.QtyF()
		totalQty += qty
		totalQuote += qty * f.PriceF()
	}
	if totalQty == 0 {
		return nil
	}
	return &FillSummary{Price: totalQuote / totalQty, Qty: totalQty}
}

func (g *Gateway) loadFilters(ctx context.Context, symbol string) (symbolFilters, error) {
	if f, ok := g.filters[symbol]; ok {
		return f, nil
	}
	info, err := g.client.GetSymbolInfo(ctx, symbol)
	if err != nil {
		return symbolFilters{}, errors.Wrapf(err, "load filters for %s", symbol)
	}
	f := symbolFilters{tick: 0.01, step: 0.001, priceDecs: 2, qtyDecs: 3}
	for _, filt := range info.Filters {
		switch filt.FilterType {
		case "PRICE_FILTER":
			if v, err := strconv.ParseFloat(filt.TickSize, 64); err == nil && v > 0 {
				f.tick = v
				f.priceDecs = decimalsOf(filt.TickSize)
			}
		case "LOT_SIZE":
			if v, err := strconv.ParseFloat(filt.StepSize, 64); err == nil && v > 0 {
				f.step = v
				f.qtyDecs = decimalsOf(filt.StepSize)
			}
		}
	}
	g.filters[symbol] = f
	g.log.Info("cached symbol filters",
		zap.String("symbol", symbol),
		zap.Float64("tick_size", f.tick),
		zap.Float64("step_size", f.step))
	return f, nil
}

func (g *Gateway) roundQty(ctx context.Context, symbol string, qty float64) (float64, error) {
	f, err := g.loadFilters(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return floorToStep(qty, f.step, f.qtyDecs), nil
}

func (g *Gateway) roundPrice(ctx context.Context, symbol string, price float64) (float64, error) {
	f, err := g.loadFilters(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return floorToStep(price, f.tick, f.priceDecs), nil
}

// floorToStep floors v to a multiple of step, then snaps off the binary
// float residue using the step's decimal precision. The result never
// exceeds v: the epsilon can tip a value sitting just under a step
// boundary over it, and submitting more than was asked for is the one
// direction the exchange filters don't forgive.
func floorToStep(v, step float64, decimals int) float64 {
	if step <= 0 || v <= 0 {
		return 0
	}
	steps := math.Floor(v/step + 1e-9)
	rounded := steps * step
	scale := math.Pow10(decimals)
	out := math.Round(rounded*scale) / scale
	if out > v {
		out = math.Round((rounded-step)*scale) / scale
	}
	if out < 0 {
		return 0
	}
	return out
}

// decimalsOf counts the significant decimal places of a filter value
// such as "0.00100000".
func decimalsOf(s string) int {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	frac := strings.TrimRight(s[i+1:], "0")
	return len(frac)
}
