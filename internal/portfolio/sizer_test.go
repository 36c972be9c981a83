package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizerFixedAmount(t *testing.T) {
	cfg := freeConfig()
	cfg.SizingValue = 10_000
	s := NewSizer(cfg)

	assert.Equal(t, 100, s.Size(100_000, 0, 100_000, 100))
	assert.Equal(t, 66, s.Size(100_000, 0, 100_000, 150))
	assert.Equal(t, 0, s.Size(100_000, 0, 100_000, 10_001), "target below one share")
}

func TestSizerEqualWeightSplitsRemainingSlots(t *testing.T) {
	cfg := freeConfig()
	cfg.SizingMethod = EqualWeight
	cfg.MaxPositions = 4
	s := NewSizer(cfg)

	// Four free slots over 100k cash: 25k per position.
	assert.Equal(t, 250, s.Size(100_000, 0, 100_000, 100))
	// One slot left: the whole remaining cash.
	assert.Equal(t, 300, s.Size(30_000, 3, 100_000, 100))
	assert.Equal(t, 0, s.Size(30_000, 4, 100_000, 100), "no free slots")
}

func TestSizerPercentageOfEquity(t *testing.T) {
	cfg := freeConfig()
	cfg.SizingMethod = Percentage
	cfg.SizingValue = 10
	s := NewSizer(cfg)

	// 10% of 200k equity even though cash is lower.
	assert.Equal(t, 200, s.Size(50_000, 2, 200_000, 100))
}

func TestSizerMaxPositionPctCap(t *testing.T) {
	cfg := freeConfig()
	cfg.SizingValue = 50_000
	cfg.MaxPositionPct = 0.10
	s := NewSizer(cfg)

	// Capped at 10% of 100k equity.
	assert.Equal(t, 100, s.Size(100_000, 0, 100_000, 100))
}

func TestSizerReserveFloor(t *testing.T) {
	cfg := freeConfig()
	cfg.SizingValue = 100_000
	cfg.ReserveCashPct = 0.10
	s := NewSizer(cfg)

	// 10k of the initial capital is untouchable.
	assert.Equal(t, 900, s.Size(100_000, 0, 100_000, 100))
	// Reserve floor is absolute, not proportional to current cash.
	assert.Equal(t, 50, s.Size(15_000, 0, 100_000, 100))
	assert.Equal(t, 0, s.Size(9_000, 0, 100_000, 100), "cash already inside the reserve")
}

func TestSizerNeverExceedsCash(t *testing.T) {
	cfg := freeConfig()
	cfg.SizingMethod = Percentage
	cfg.SizingValue = 50
	s := NewSizer(cfg)

	// 50% of 400k equity is 200k, but only 30k cash remains.
	assert.Equal(t, 300, s.Size(30_000, 3, 400_000, 100))
}

func TestSizerZeroPrice(t *testing.T) {
	s := NewSizer(freeConfig())
	assert.Equal(t, 0, s.Size(100_000, 0, 100_000, 0))
	assert.Equal(t, 0, s.Size(100_000, 0, 100_000, -5))
}
