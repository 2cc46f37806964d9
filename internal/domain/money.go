package domain

import "github.com/shopspring/decimal"

// Round2 rounds a currency amount to cents, half away from zero.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Money accumulates currency amounts without float drift.
type Money struct {
	d decimal.Decimal
}

func (m Money) Add(v float64) Money {
	return Money{d: m.d.Add(decimal.NewFromFloat(v))}
}

func (m Money) AddLine(unitPrice float64, quantity int) Money {
	line := decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity)))
	return Money{d: m.d.Add(line)}
}

func (m Money) Float() float64 {
	f, _ := m.d.Round(2).Float64()
	return f
}
