package strategy

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Name      string
	FastEMA   int
	SlowEMA   int
	VolumeSMA int
}

// New builds the configured strategy. Unknown names are a startup fault.
func New(cfg Config, log *zap.Logger) (Strategy, error) {
	switch cfg.Name {
	case "ema_pullback", "":
		return NewEmaPullback(EmaPullbackConfig{
			FastEMA:   cfg.FastEMA,
			SlowEMA:   cfg.SlowEMA,
			VolumeSMA: cfg.VolumeSMA,
		}, log), nil
	default:
		return nil, errors.Errorf("unknown strategy %q", cfg.Name)
	}
}
