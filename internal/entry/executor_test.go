package entry

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/exchange"
	"scalp_bot/internal/models"
)

type fakeGateway struct {
	orders   int
	order    *exchange.Order
	orderErr error

	fills   []exchange.Fill
	fillErr error

	gotSide string
	gotQty  float64
}

func (g *fakeGateway) PlaceMarketOrder(_ context.Context, _, side string, quantity float64) (*exchange.Order, error) {
	g.orders++
	g.gotSide = side
	g.gotQty = quantity
	return g.order, g.orderErr
}

func (g *fakeGateway) FetchFills(context.Context, string, int64) ([]exchange.Fill, error) {
	return g.fills, g.fillErr
}

type fakeTracker struct {
	open    bool
	syncErr error
	pos     *models.Position
}

func (t *fakeTracker) SyncFromExchange(context.Context) error { return t.syncErr }
func (t *fakeTracker) HasOpenPosition() bool                  { return t.open }
func (t *fakeTracker) SetPosition(pos models.Position)        { t.pos = &pos }

type fakeBalances struct {
	equity float64
	err    error
}

func (b *fakeBalances) GetAvailableBalance(context.Context, string) (float64, error) {
	return b.equity, b.err
}

type fixedStrategy struct {
	signal models.Signal
}

func (s fixedStrategy) Name() string { return "fixed" }

func (s fixedStrategy) GenerateSignal(models.MarketData) models.Signal { return s.signal }

func marketData(lastClose float64) models.MarketData {
	return models.MarketData{
		models.Interval1m: &models.Series{Close: []float64{lastClose - 1, lastClose}},
	}
}

func testConfig() Config {
	return Config{Symbol: "BTCUSDT", Asset: "USDT", RiskPct: 0.001, SLPct: 0.01}
}

func TestProcessOpensSizedPosition(t *testing.T) {
	gw := &fakeGateway{
		order: &exchange.Order{OrderID: 7, UpdateTime: 1700000000000},
		fills: []exchange.Fill{{Price: "50010", Qty: "0.02"}},
	}
	tracker := &fakeTracker{}
	e := NewExecutor(fixedStrategy{models.SignalLong}, gw, tracker, &fakeBalances{equity: 10_000}, testConfig(), zap.NewNop())

	if err := e.Process(context.Background(), marketData(50_000)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if gw.gotSide != "BUY" {
		t.Fatalf("side = %s, want BUY", gw.gotSide)
	}
	// 10000 * 0.001 / (50000 * 0.01) = 0.02
	if math.Abs(gw.gotQty-0.02) > 1e-12 {
		t.Fatalf("qty = %v, want 0.02", gw.gotQty)
	}
	if tracker.pos == nil {
		t.Fatal("confirmed entry not recorded")
	}
	if tracker.pos.EntryPrice != 50_010 || tracker.pos.Quantity != 0.02 {
		t.Fatalf("position from fills = %+v", tracker.pos)
	}
	if tracker.pos.EntryTime != 1700000000000 {
		t.Fatalf("entry time = %d", tracker.pos.EntryTime)
	}
}

func TestProcessSkipsWithoutSignal(t *testing.T) {
	gw := &fakeGateway{}
	e := NewExecutor(fixedStrategy{models.SignalNone}, gw, &fakeTracker{}, &fakeBalances{equity: 10_000}, testConfig(), zap.NewNop())

	if err := e.Process(context.Background(), marketData(50_000)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if gw.orders != 0 {
		t.Fatal("order placed without a signal")
	}
}

func TestProcessSkipsWhileInPosition(t *testing.T) {
	gw := &fakeGateway{}
	e := NewExecutor(fixedStrategy{models.SignalLong}, gw, &fakeTracker{open: true}, &fakeBalances{equity: 10_000}, testConfig(), zap.NewNop())

	if err := e.Process(context.Background(), marketData(50_000)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if gw.orders != 0 {
		t.Fatal("order placed while a position is open")
	}
}

func TestProcessAbortsWhenSyncFails(t *testing.T) {
	gw := &fakeGateway{}
	tracker := &fakeTracker{syncErr: errors.New("timeout")}
	e := NewExecutor(fixedStrategy{models.SignalLong}, gw, tracker, &fakeBalances{equity: 10_000}, testConfig(), zap.NewNop())

	if err := e.Process(context.Background(), marketData(50_000)); err == nil {
		t.Fatal("sync failure swallowed")
	}
	if gw.orders != 0 {
		t.Fatal("order placed on unverified position state")
	}
}

func TestProcessSkipsOnZeroEquity(t *testing.T) {
	gw := &fakeGateway{}
	e := NewExecutor(fixedStrategy{models.SignalShort}, gw, &fakeTracker{}, &fakeBalances{equity: 0}, testConfig(), zap.NewNop())

	if err := e.Process(context.Background(), marketData(50_000)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if gw.orders != 0 {
		t.Fatal("order placed with zero equity")
	}
}

func TestProcessMissingOrderIDIsFatalNotRetried(t *testing.T) {
	gw := &fakeGateway{order: &exchange.Order{OrderID: 0}}
	tracker := &fakeTracker{}
	e := NewExecutor(fixedStrategy{models.SignalLong}, gw, tracker, &fakeBalances{equity: 10_000}, testConfig(), zap.NewNop())

	if err := e.Process(context.Background(), marketData(50_000)); err == nil {
		t.Fatal("missing orderId must abort the entry")
	}
	if gw.orders != 1 {
		t.Fatalf("orders = %d, a retry here could double-enter", gw.orders)
	}
	if tracker.pos != nil {
		t.Fatal("position recorded without a confirmed order")
	}
}

func TestProcessNoFillsNoPosition(t *testing.T) {
	gw := &fakeGateway{order: &exchange.Order{OrderID: 7}}
	tracker := &fakeTracker{}
	e := NewExecutor(fixedStrategy{models.SignalLong}, gw, tracker, &fakeBalances{equity: 10_000}, testConfig(), zap.NewNop())

	if err := e.Process(context.Background(), marketData(50_000)); err == nil {
		t.Fatal("zero fills must abort, the position cannot be sized")
	}
	if tracker.pos != nil {
		t.Fatal("position fabricated without fills")
	}
}

func TestProcessShortUsesSellSide(t *testing.T) {
	gw := &fakeGateway{
		order: &exchange.Order{OrderID: 8},
		fills: []exchange.Fill{{Price: "49990", Qty: "0.02"}},
	}
	tracker := &fakeTracker{}
	e := NewExecutor(fixedStrategy{models.SignalShort}, gw, tracker, &fakeBalances{equity: 10_000}, testConfig(), zap.NewNop())

	if err := e.Process(context.Background(), marketData(50_000)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if gw.gotSide != "SELL" {
		t.Fatalf("side = %s, want SELL", gw.gotSide)
	}
	if tracker.pos == nil || tracker.pos.Side != models.SideShort {
		t.Fatalf("position = %+v", tracker.pos)
	}
}
