package portfolio

import "github.com/shopspring/decimal"

// CostModel prices the frictions of a trade as pure functions of notional
// value. Buy side pays brokerage + transaction charges + slippage; sell side
// additionally pays STT. Charges are computed in decimal and rounded to the
// paise, the way a contract note states them.
type CostModel struct {
	brokerage decimal.Decimal
	txn       decimal.Decimal
	stt       decimal.Decimal
	slippage  decimal.Decimal
}

func NewCostModel(cfg Config) CostModel {
	return CostModel{
		brokerage: decimal.NewFromFloat(cfg.BrokeragePct),
		txn:       decimal.NewFromFloat(cfg.TxnChargesPct),
		stt:       decimal.NewFromFloat(cfg.STTPct),
		slippage:  decimal.NewFromFloat(cfg.SlippagePct),
	}
}

// BuyCost returns the total charge on a purchase of the given notional.
func (m CostModel) BuyCost(notional float64) float64 {
	rate := m.brokerage.Add(m.txn).Add(m.slippage)
	return charge(notional, rate)
}

// SellCost returns the total charge on a sale of the given notional.
func (m CostModel) SellCost(notional float64) float64 {
	rate := m.brokerage.Add(m.txn).Add(m.stt).Add(m.slippage)
	return charge(notional, rate)
}

func charge(notional float64, rate decimal.Decimal) float64 {
	if notional <= 0 {
		return 0
	}
	v, _ := decimal.NewFromFloat(notional).Mul(rate).Round(2).Float64()
	return v
}
