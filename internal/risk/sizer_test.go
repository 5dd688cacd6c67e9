package risk

import (
	"math"
	"testing"
)

func TestPositionSize(t *testing.T) {
	tests := []struct {
		name       string
		equity     float64
		riskPct    float64
		entryPrice float64
		slPct      float64
		want       float64
		ok         bool
	}{
		{"reference sizing", 10_000, 0.001, 50_000, 0.01, 0.02, true},
		{"small account", 100, 0.001, 50_000, 0.01, 0.0000002, true},
		{"zero equity", 0, 0.001, 50_000, 0.01, 0, false},
		{"negative equity", -10, 0.001, 50_000, 0.01, 0, false},
		{"zero risk pct", 10_000, 0, 50_000, 0.01, 0, false},
		{"zero entry price", 10_000, 0.001, 0, 0.01, 0, false},
		{"zero sl pct", 10_000, 0.001, 50_000, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PositionSize(tt.equity, tt.riskPct, tt.entryPrice, tt.slPct)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("qty = %v, want %v", got, tt.want)
			}
		})
	}
}
