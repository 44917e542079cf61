package app

import (
	"math"
	"testing"
)

func TestTradeSize(t *testing.T) {
	tests := []struct {
		name        string
		notionalUSD float64
		price       float64
		leverage    float64
		want        float64
	}{
		{"unit leverage", 10_000, 3000, 1, 3.333},
		{"leveraged", 10_000, 3000, 5, 16.667},
		{"rounds down to lot size", 10_000, 60_000, 5, 0.833},
		{"exact lot", 10_000, 2000, 2, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tradeSize(tt.notionalUSD, tt.price, tt.leverage)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("tradeSize(%v, %v, %v) = %v, want %v",
					tt.notionalUSD, tt.price, tt.leverage, got, tt.want)
			}
		})
	}
}
