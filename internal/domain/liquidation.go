package domain

// Liquidation is a forced-order (liquidation) event. Append-only; there is
// no natural key beyond the insert itself.
type Liquidation struct {
	Symbol      string
	EventTimeMs int64
	Side        string // BUY or SELL
	Price       float64
	Qty         float64
	Status      string
}
