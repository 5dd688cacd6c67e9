package strategy

import (
	"go.uber.org/zap"

	"scalp_bot/internal/models"
)

type EmaPullbackConfig struct {
	FastEMA   int // trend-following EMA the price pulls back to
	SlowEMA   int // trend-filter EMA
	VolumeSMA int
}

// EmaPullback signals when price pulls back to the fast EMA inside a
// trend confirmed by the slow EMA, on above-average volume. Evaluated on
// the 1m series.
type EmaPullback struct {
	cfg EmaPullbackConfig
	log *zap.Logger
}

func NewEmaPullback(cfg EmaPullbackConfig, log *zap.Logger) *EmaPullback {
	if cfg.FastEMA <= 0 {
		cfg.FastEMA = 20
	}
	if cfg.SlowEMA <= 0 {
		cfg.SlowEMA = 50
	}
	if cfg.VolumeSMA <= 0 {
		cfg.VolumeSMA = 20
	}
	return &EmaPullback{cfg: cfg, log: log.Named("EmaPullback")}
}

func (s *EmaPullback) Name() string { return "ema_pullback" }

func (s *EmaPullback) GenerateSignal(data models.MarketData) models.Signal {
	series := data[models.Interval1m]
	if series.Len() < 2 {
		return models.SignalNone
	}

	closes := series.Close
	volumes := series.Volume

	emaFast, okFast := EMA(closes, s.cfg.FastEMA)
	emaSlow, okSlow := EMA(closes, s.cfg.SlowEMA)
	volMA, okVol := SMA(volumes, s.cfg.VolumeSMA)
	if !okFast || !okSlow || !okVol {
		s.log.Debug("insufficient data for indicators")
		return models.SignalNone
	}

	latestClose := closes[len(closes)-1]
	prevClose := closes[len(closes)-2]
	latestVolume := volumes[len(volumes)-1]

	long := latestClose > emaSlow &&
		emaFast > emaSlow &&
		prevClose > emaFast &&
		latestClose <= emaFast &&
		latestVolume > volMA
	if long {
		s.log.Info("pullback confirmed",
			zap.String("signal", "LONG"),
			zap.Float64("close", latestClose),
			zap.Float64("ema_fast", emaFast),
			zap.Float64("ema_slow", emaSlow))
		return models.SignalLong
	}

	short := latestClose < emaSlow &&
		emaFast < emaSlow &&
		prevClose < emaFast &&
		latestClose >= emaFast &&
		latestVolume > volMA
	if short {
		s.log.Info("pullback confirmed",
			zap.String("signal", "SHORT"),
			zap.Float64("close", latestClose),
			zap.Float64("ema_fast", emaFast),
			zap.Float64("ema_slow", emaSlow))
		return models.SignalShort
	}

	return models.SignalNone
}
