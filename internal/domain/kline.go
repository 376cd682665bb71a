package domain

// Kline is a closed 1-minute OHLCV candle.
// Corresponds to the kline_1m table; keyed by (symbol, open_time_ms).
type Kline struct {
	Symbol     string
	OpenTimeMs int64 // candle minute start, epoch ms
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	TradeCount int

	// Optional exchange extras; nil when absent from the stream payload.
	QuoteVolume         *float64
	TakerBuyVolume      *float64
	TakerBuyQuoteVolume *float64
}
