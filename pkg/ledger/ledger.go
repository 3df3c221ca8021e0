// Package ledger computes balance and summary values from a list of movements.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

type Summary struct {
	Balance  decimal.Decimal `json:"balance"`
	Inflow   decimal.Decimal `json:"inflow"`
	Outflow  decimal.Decimal `json:"outflow"`
	Interest decimal.Decimal `json:"interest"`
}

// Balance is the sum of all movements.
func Balance(movements []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, movements...)
}

// Interest sums movement*rate/100 over deposits whose individual
// contribution is at least 1. The result is not rounded.
func Interest(movements []decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		if !m.IsPositive() {
			continue
		}
		interest := m.Mul(rate).Div(hundred)
		if interest.GreaterThanOrEqual(one) {
			total = total.Add(interest)
		}
	}
	return total
}

// Summarize aggregates movements. Zero amounts fall into the outflow
// bucket and Outflow is reported as a positive magnitude.
func Summarize(movements []decimal.Decimal, rate decimal.Decimal) Summary {
	s := Summary{
		Balance:  decimal.Zero,
		Inflow:   decimal.Zero,
		Outflow:  decimal.Zero,
		Interest: Interest(movements, rate),
	}
	for _, m := range movements {
		s.Balance = s.Balance.Add(m)
		if m.IsPositive() {
			s.Inflow = s.Inflow.Add(m)
		} else {
			s.Outflow = s.Outflow.Add(m)
		}
	}
	s.Outflow = s.Outflow.Abs()
	return s
}

// RoundedInterest is the display value of the interest.
func (s Summary) RoundedInterest() decimal.Decimal {
	return s.Interest.Round(2)
}

// Qualifies reports whether any movement is at least 10% of amount.
func Qualifies(movements []decimal.Decimal, amount decimal.Decimal) bool {
	threshold := amount.Mul(decimal.RequireFromString("0.1"))
	for _, m := range movements {
		if m.GreaterThanOrEqual(threshold) {
			return true
		}
	}
	return false
}

// SortedIndices returns the indices of movements ordered ascending by
// amount. Equal amounts keep their stored order. movements is not modified.
func SortedIndices(movements []decimal.Decimal) []int {
	idx := make([]int, len(movements))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return movements[idx[a]].LessThan(movements[idx[b]])
	})
	return idx
}
