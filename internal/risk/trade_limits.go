package risk

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// LimitsConfig holds the configured caps. A zero value means the limit
// is unset and never checked.
type LimitsConfig struct {
	MaxDailyLoss     float64
	MaxTradesPerDay  int
	MaxTradesPerHour int
}

// TradeLimits tracks rolling daily/hourly trade counts and accumulated
// losses. Day and hour buckets are derived from the UTC wall clock of the
// event timestamp and compared independently; resets happen on boundary
// crossings, never on timers.
type TradeLimits struct {
	cfg LimitsConfig
	log *zap.Logger

	dailyTrades  int
	hourlyTrades int
	dailyLoss    float64 // accumulated negative PnL only, <= 0

	day  dayBucket
	hour int
}

type dayBucket struct {
	year int
	yday int
}

func NewTradeLimits(cfg LimitsConfig, now time.Time, log *zap.Logger) *TradeLimits {
	return &TradeLimits{
		cfg:  cfg,
		log:  log.Named("TradeLimits"),
		day:  dayOf(now),
		hour: hourKey(now),
	}
}

// ResetIfNeeded compares the buckets of now against the stored buckets
// and resets on mismatch. A day crossing resets daily counters; an hour
// crossing resets the hourly counter; the two are independent.
func (l *TradeLimits) ResetIfNeeded(now time.Time) {
	if d := dayOf(now); d != l.day {
		l.log.Info("new UTC day, resetting daily counters",
			zap.Int("daily_trades", l.dailyTrades),
			zap.Float64("daily_loss", l.dailyLoss))
		l.dailyTrades = 0
		l.dailyLoss = 0
		l.day = d
	}
	if h := hourKey(now); h != l.hour {
		l.hourlyTrades = 0
		l.hour = h
	}
}

// RecordTrade registers a completed trade. Only losing trades accumulate
// into dailyLoss; wins never reduce it.
func (l *TradeLimits) RecordTrade(pnl float64, now time.Time) {
	l.ResetIfNeeded(now)
	l.dailyTrades++
	l.hourlyTrades++
	if pnl < 0 {
		l.dailyLoss += pnl
	}
}

// Exceeded reports whether any configured limit is breached. Unset
// limits are not limits.
func (l *TradeLimits) Exceeded() bool {
	if l.cfg.MaxDailyLoss != 0 && l.dailyLoss <= -math.Abs(l.cfg.MaxDailyLoss) {
		return true
	}
	if l.cfg.MaxTradesPerDay != 0 && l.dailyTrades > l.cfg.MaxTradesPerDay {
		return true
	}
	if l.cfg.MaxTradesPerHour != 0 && l.hourlyTrades > l.cfg.MaxTradesPerHour {
		return true
	}
	return false
}

func (l *TradeLimits) DailyTrades() int   { return l.dailyTrades }
func (l *TradeLimits) HourlyTrades() int  { return l.hourlyTrades }
func (l *TradeLimits) DailyLoss() float64 { return l.dailyLoss }

func dayOf(t time.Time) dayBucket {
	u := t.UTC()
	return dayBucket{year: u.Year(), yday: u.YearDay()}
}

func hourKey(t time.Time) int {
	u := t.UTC()
	return u.Year()*10_000 + u.YearDay()*24 + u.Hour()
}
