package utils

import (
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/shopspring/decimal"
)

// CalculateMaxQuantity calculates the maximum quantity that can be bought with the given balance, fees included.
func CalculateMaxQuantity(balance float64, price float64, commissionFee commission_fee.CommissionFee) float64 {
	// Handle edge cases
	if price <= 0 || balance <= 0 {
		return 0
	}

	// Initial rough estimate (ignoring fees)
	maxQty := balance / price

	// Iteratively refine by accounting for fees
	for i := 0; i < 10; i++ { // Usually converges quickly, limit iterations
		totalCost := maxQty*price + commissionFee.Calculate(maxQty, price)
		if totalCost <= balance {
			break
		}

		// Adjust quantity down proportionally
		adjustment := balance / totalCost
		maxQty = maxQty * adjustment
	}

	return maxQty
}

// RoundToDecimalPrecision floors the quantity to the specified number of decimal places.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	rounded, _ := decimal.NewFromFloat(quantity).RoundFloor(int32(decimalPrecision)).Float64()

	return rounded
}

// CalculateOrderQuantityByPercentage sizes an opening order at percentage of equity,
// never spending more than the available cash, fees included.
func CalculateOrderQuantityByPercentage(equity float64, cash float64, price float64, commissionFee commission_fee.CommissionFee, percentage float64) float64 {
	budget := min(equity*percentage, cash)

	return CalculateMaxQuantity(budget, price, commissionFee)
}
