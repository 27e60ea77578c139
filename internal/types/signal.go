package types

type SignalType string

const (
	// SignalTypeHold tells the engine to take no action
	SignalTypeHold SignalType = "HOLD"
	// SignalTypeBuy opens or adds to a long, or covers a short
	SignalTypeBuy SignalType = "BUY"
	// SignalTypeSell closes a long, or opens a short when shorting is allowed
	SignalTypeSell SignalType = "SELL"
)

// Signal is a strategy's decision for one bar.
type Signal struct {
	Type SignalType `json:"type"`
	// Quantity is an explicit order size. Zero lets the engine size the order
	// from the strategy's position size.
	Quantity float64 `json:"quantity,omitempty"`
	// Reason is recorded on resulting trades
	Reason string `json:"reason,omitempty"`
}

func Hold() Signal {
	return Signal{Type: SignalTypeHold}
}

func Buy(reason string) Signal {
	return Signal{Type: SignalTypeBuy, Reason: reason}
}

func Sell(reason string) Signal {
	return Signal{Type: SignalTypeSell, Reason: reason}
}

// IsHold reports whether the signal requires no action.
func (s Signal) IsHold() bool {
	return s.Type == SignalTypeHold || s.Type == ""
}
