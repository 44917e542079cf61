package funding

import (
	"math"
	"testing"
)

func TestProjectOnChainFunding_InvertedRangeIsZero(t *testing.T) {
	tests := []struct {
		name       string
		startBlock int64
		endBlock   int64
	}{
		{"end-one-below-start", 1000, 999},
		{"end-far-below-start", 50000, 10},
		{"negative-end", 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectOnChainFunding(0.0004, 0.00001, 2.5, tt.startBlock, tt.endBlock, BlocksPerDayBase)
			if got != 0 {
				t.Errorf("ProjectOnChainFunding() = %v, want 0", got)
			}
		})
	}
}

func TestProjectOnChainFunding_ZeroVelocityReducesToFlatRate(t *testing.T) {
	const (
		rate       = 0.0004
		size       = 3.2
		startBlock = 100
		endBlock   = 100 + 4*BlocksPerHourBase
	)

	got := ProjectOnChainFunding(rate, 0, size, startBlock, endBlock, BlocksPerDayBase)

	blockCount := float64(endBlock - startBlock + 1)
	want := rate * size * (blockCount / BlocksPerDayBase)

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ProjectOnChainFunding() = %v, want %v", got, want)
	}
}

func TestProjectOnChainFunding_VelocityShiftsTotal(t *testing.T) {
	flat := ProjectOnChainFunding(0.0002, 0, 1.0, 0, BlocksPerHourBase, BlocksPerDayBase)
	drifting := ProjectOnChainFunding(0.0002, 1e-9, 1.0, 0, BlocksPerHourBase, BlocksPerDayBase)

	if drifting <= flat {
		t.Errorf("positive velocity should increase projected funding: flat=%v drifting=%v", flat, drifting)
	}
}

func TestProjectOnChainFunding_SignFollowsSize(t *testing.T) {
	long := ProjectOnChainFunding(0.0003, 0, 2.0, 0, 1000, BlocksPerDayBase)
	short := ProjectOnChainFunding(0.0003, 0, -2.0, 0, 1000, BlocksPerDayBase)

	if long <= 0 {
		t.Errorf("long projection = %v, want positive", long)
	}
	if short >= 0 {
		t.Errorf("short projection = %v, want negative", short)
	}
	if math.Abs(long+short) > 1e-12 {
		t.Errorf("long and short projections should be symmetric: %v vs %v", long, short)
	}
}

func TestProjectScheduledFunding(t *testing.T) {
	events := []int64{1000, 15400, 29800}

	tests := []struct {
		name        string
		rate        float64
		size        float64
		windowStart int64
		windowEnd   int64
		want        float64
	}{
		{"all-events-in-window", 0.0001, 10, 0, 30000, 3 * 0.0001 * 10},
		{"one-event-in-window", 0.0001, 10, 0, 1000, 0.0001 * 10},
		{"no-events-in-window", 0.0001, 10, 30001, 60000, 0},
		{"window-boundaries-inclusive", 0.0001, 10, 1000, 15400, 2 * 0.0001 * 10},
		{"negative-rate-short-size", -0.0003, -5, 0, 30000, 3 * -0.0003 * -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectScheduledFunding(tt.rate, tt.size, events, tt.windowStart, tt.windowEnd)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ProjectScheduledFunding() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProjectScheduledFunding_EmptySchedule(t *testing.T) {
	got := ProjectScheduledFunding(0.0004, 100, nil, 0, 1<<40)
	if got != 0 {
		t.Errorf("ProjectScheduledFunding(empty) = %v, want 0", got)
	}
}
