package commission_fee

import "math"

type CommissionFee interface {
	// Calculate the commission fee for a fill of quantity units at price, in quote currency
	Calculate(quantity, price float64) float64
}

type Broker string

const (
	BrokerInteractiveBroker Broker = "interactive_broker"
	BrokerZero              Broker = "zero_commission"
	BrokerPercentage        Broker = "percentage"
)

// DefaultPercentageRate is charged on notional by the percentage broker when no rate is configured.
const DefaultPercentageRate = 0.001

var AllBrokers = []any{
	BrokerInteractiveBroker,
	BrokerZero,
	BrokerPercentage,
}

// GetCommissionFeeHandler resolves a broker to its fee model. rate only applies
// to the percentage broker; a non-positive rate uses DefaultPercentageRate.
func GetCommissionFeeHandler(broker Broker, rate float64) CommissionFee {
	switch broker {
	case BrokerInteractiveBroker:
		return NewInteractiveBrokerCommissionFee()
	case BrokerPercentage:
		return NewPercentageCommissionFee(rate)
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}

func absQuantity(quantity float64) float64 {
	return math.Abs(quantity)
}
