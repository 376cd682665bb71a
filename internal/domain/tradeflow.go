package domain

// TradeFlow is the per-minute taker-flow aggregate produced from the trade
// stream. Corresponds to the trade_flow_1m table; keyed by (symbol, minute_ms).
type TradeFlow struct {
	Symbol       string
	MinuteMs     int64 // minute start, epoch ms
	TakerBuyQty  float64
	TakerSellQty float64
	TradeCount   int
	VWAP         *float64 // nil when the minute had zero volume
}
