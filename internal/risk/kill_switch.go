package risk

import "go.uber.org/zap"

// KillSwitch blocks new entries once limits are breached. It trips one
// way: Evaluate never re-enables trading, only ResetDaily does. Existing
// positions and their protection are unaffected.
type KillSwitch struct {
	allowed bool
	log     *zap.Logger
}

func NewKillSwitch(log *zap.Logger) *KillSwitch {
	return &KillSwitch{
		allowed: true,
		log:     log.Named("KillSwitch"),
	}
}

func (k *KillSwitch) TradingAllowed() bool { return k.allowed }

// Evaluate trips the switch when limits are exceeded.
func (k *KillSwitch) Evaluate(limits *TradeLimits) {
	if !limits.Exceeded() {
		return
	}
	if k.allowed {
		k.log.Warn("kill switch activated: risk limits exceeded",
			zap.Int("daily_trades", limits.DailyTrades()),
			zap.Int("hourly_trades", limits.HourlyTrades()),
			zap.Float64("daily_loss", limits.DailyLoss()))
	}
	k.allowed = false
}

// ResetDaily re-enables trading at a new trading-day boundary.
func (k *KillSwitch) ResetDaily() {
	if !k.allowed {
		k.log.Info("kill switch reset for new day")
	}
	k.allowed = true
}
