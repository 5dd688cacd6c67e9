package strategy

import (
	"math"
	"testing"
)

func TestEMA(t *testing.T) {
	// With exactly period values the EMA equals the seed SMA.
	got, ok := EMA([]float64{1, 2, 3, 4, 5}, 5)
	if !ok || got != 3 {
		t.Fatalf("EMA seed = %v ok=%v, want 3", got, ok)
	}

	// One more value: k = 2/(5+1), ema = 9*k + 3*(1-k).
	got, ok = EMA([]float64{1, 2, 3, 4, 5, 9}, 5)
	k := 2.0 / 6.0
	want := 9*k + 3*(1-k)
	if !ok || math.Abs(got-want) > 1e-12 {
		t.Fatalf("EMA = %v, want %v", got, want)
	}

	if _, ok := EMA([]float64{1, 2}, 5); ok {
		t.Fatal("EMA ok with insufficient data")
	}
	if _, ok := EMA(nil, 0); ok {
		t.Fatal("EMA ok with zero period")
	}
}

func TestSMA(t *testing.T) {
	// Only the last period values count.
	got, ok := SMA([]float64{100, 100, 3, 5}, 2)
	if !ok || got != 4 {
		t.Fatalf("SMA = %v ok=%v, want 4", got, ok)
	}
	if _, ok := SMA([]float64{1}, 2); ok {
		t.Fatal("SMA ok with insufficient data")
	}
}
