package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/exchange"
	"scalp_bot/internal/models"
)

type fakeKlines struct {
	klines []exchange.Kline
	err    error
}

func (f *fakeKlines) GetKlines(context.Context, string, string, int) ([]exchange.Kline, error) {
	return f.klines, f.err
}

func minuteKlines(start time.Time, n int) []exchange.Kline {
	out := make([]exchange.Kline, 0, n)
	for i := 0; i < n; i++ {
		open := start.Add(time.Duration(i) * time.Minute)
		out = append(out, exchange.Kline{
			OpenTime:  open.UnixMilli(),
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 10,
			CloseTime: open.Add(time.Minute).UnixMilli() - 1,
		})
	}
	return out
}

func newTestService(client *fakeKlines, now time.Time) *Service {
	s := NewService(client, 1500*time.Millisecond, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestFetchClosedKlinesDropsFormingCandle(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	klines := minuteKlines(start, 5)
	// "now" is one second into the fifth candle: four closed, one forming.
	now := start.Add(4*time.Minute + time.Second)

	s := newTestService(&fakeKlines{klines: klines}, now)
	series, err := s.FetchClosedKlines(context.Background(), "BTCUSDT", models.Interval1m, 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if series.Len() != 4 {
		t.Fatalf("len = %d, want 4 with the forming candle dropped", series.Len())
	}
}

func TestFetchClosedKlinesKeepsJustClosedCandle(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	klines := minuteKlines(start, 5)
	// Last candle closed 10s ago, well past the safety margin.
	now := start.Add(5*time.Minute + 10*time.Second)

	s := newTestService(&fakeKlines{klines: klines}, now)
	series, err := s.FetchClosedKlines(context.Background(), "BTCUSDT", models.Interval1m, 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if series.Len() != 5 {
		t.Fatalf("len = %d, want all 5 candles", series.Len())
	}
}

func TestFetchClosedKlinesRejectsGaps(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	klines := minuteKlines(start, 5)
	klines = append(klines[:2], klines[3:]...) // drop one candle in the middle

	s := newTestService(&fakeKlines{klines: klines}, start.Add(10*time.Minute))
	_, err := s.FetchClosedKlines(context.Background(), "BTCUSDT", models.Interval1m, 5)
	if !errors.Is(err, ErrNotContiguous) {
		t.Fatalf("err = %v, want ErrNotContiguous", err)
	}
}

func TestFetchClosedKlinesRejectsAllFormingBatch(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	klines := minuteKlines(start, 1)
	// Only candle in the batch is still forming.
	now := start.Add(30 * time.Second)

	s := newTestService(&fakeKlines{klines: klines}, now)
	_, err := s.FetchClosedKlines(context.Background(), "BTCUSDT", models.Interval1m, 1)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse when nothing has closed", err)
	}
}

func TestFetchClosedKlinesRejectsEmpty(t *testing.T) {
	s := newTestService(&fakeKlines{}, time.Now())
	_, err := s.FetchClosedKlines(context.Background(), "BTCUSDT", models.Interval1m, 5)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestFetchClosedKlinesSurfacesClientError(t *testing.T) {
	s := newTestService(&fakeKlines{err: errors.New("502")}, time.Now())
	if _, err := s.FetchClosedKlines(context.Background(), "BTCUSDT", models.Interval1m, 5); err == nil {
		t.Fatal("client error swallowed")
	}
}
