package commission_fee

// InteractiveBrokerCommissionFee charges 0.005 per unit with a 1.0 minimum per fill.
type InteractiveBrokerCommissionFee struct {
}

func NewInteractiveBrokerCommissionFee() CommissionFee {
	return &InteractiveBrokerCommissionFee{}
}

func (c *InteractiveBrokerCommissionFee) Calculate(quantity, _ float64) float64 {
	fee := 0.005 * absQuantity(quantity)
	if fee < 1.0 {
		return 1.0
	}

	return fee
}
