package commission_fee

// PercentageCommissionFee charges a fixed fraction of the fill notional, the
// usual model for crypto spot venues.
type PercentageCommissionFee struct {
	rate float64
}

func NewPercentageCommissionFee(rate float64) CommissionFee {
	if rate <= 0 {
		rate = DefaultPercentageRate
	}

	return &PercentageCommissionFee{rate: rate}
}

func (c *PercentageCommissionFee) Calculate(quantity, price float64) float64 {
	return absQuantity(quantity) * price * c.rate
}
