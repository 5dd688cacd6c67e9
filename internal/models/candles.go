package models

import "time"

// Interval is a candle timeframe supported by the bot.
type Interval string

const (
	Interval1m Interval = "1m"
	Interval5m Interval = "5m"
)

// Duration returns the wall-clock length of one candle.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval5m:
		return 5 * time.Minute
	default:
		return time.Minute
	}
}

// Series holds closed OHLCV candles for one interval, oldest first.
// All slices have equal length; Timestamp carries candle close times (ms).
type Series struct {
	Open      []float64
	High      []float64
	Low       []float64
	Close     []float64
	Volume    []float64
	Timestamp []int64
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Close)
}

// LastClose returns the most recent closed price.
func (s *Series) LastClose() (float64, bool) {
	if s.Len() == 0 {
		return 0, false
	}
	return s.Close[len(s.Close)-1], true
}

// MarketData is the per-cycle snapshot of candle series keyed by interval.
type MarketData map[Interval]*Series
