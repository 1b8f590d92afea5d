// Package core holds the value types shared by the store, the aggregation
// engine and its consumers.
//
// This file contains the decimal helpers used for every monetary amount.
// Amounts are never floats: sums and differences are exact so that
// profit = revenue - expenses holds under repeated computation.
package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Sum adds amounts exactly.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Margin returns profit as a percentage of revenue, rounded to two places.
// Zero revenue yields zero rather than a division error.
func Margin(profit, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return profit.Div(revenue).Mul(hundred).Round(2)
}
