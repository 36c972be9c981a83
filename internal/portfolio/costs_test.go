package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func costConfig() Config {
	cfg := freeConfig()
	cfg.BrokeragePct = 0.0003
	cfg.TxnChargesPct = 0.0003
	cfg.STTPct = 0.001
	cfg.SlippagePct = 0.001
	return cfg
}

func TestBuyCost(t *testing.T) {
	m := NewCostModel(costConfig())
	// 100000 * (0.0003 + 0.0003 + 0.001) = 160.00
	assert.InDelta(t, 160.00, m.BuyCost(100_000), 1e-9)
}

func TestSellCostIncludesSTT(t *testing.T) {
	m := NewCostModel(costConfig())
	// 100000 * (0.0003 + 0.0003 + 0.001 + 0.001) = 260.00
	assert.InDelta(t, 260.00, m.SellCost(100_000), 1e-9)
}

func TestCostsRoundToPaise(t *testing.T) {
	m := NewCostModel(costConfig())
	// 33333 * 0.0016 = 53.3328 -> 53.33
	assert.InDelta(t, 53.33, m.BuyCost(33_333), 1e-9)
}

func TestZeroNotionalCostsNothing(t *testing.T) {
	m := NewCostModel(costConfig())
	assert.Zero(t, m.BuyCost(0))
	assert.Zero(t, m.SellCost(-10))
}

func TestZeroRatesCostNothing(t *testing.T) {
	m := NewCostModel(freeConfig())
	assert.Zero(t, m.BuyCost(1_000_000))
	assert.Zero(t, m.SellCost(1_000_000))
}
