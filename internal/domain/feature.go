package domain

// FeatureRow is the fixed-width per-minute feature vector consumed by the
// downstream prediction process. One row per (symbol, minute_ms). Every
// float field is finite by construction: NaN/Inf are coerced to 0 before a
// row is persisted.
type FeatureRow struct {
	Symbol   string
	MinuteMs int64 // minute start, epoch ms

	// Price/OHLCV passthrough.
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	TradeCount int

	// Returns.
	Ret1mLog   float64
	Ret5mLog   float64
	Ret15mLog  float64
	RangeBps1m float64

	// Realized volatility.
	RV15m float64
	RV60m float64

	// Volume.
	VolZ60m        float64
	AvgTradeSize1m float64
	VWAPGapBps     float64

	// Order flow.
	TakerBuyQty1m  float64
	TakerSellQty1m float64
	BuyRatio1m     float64
	CVD1m          float64
	CVD15m         float64

	// Order book (last snapshot before minute end; zeros when none exists).
	MidPrice1s       float64
	SpreadBps1s      float64
	DepthBidNotional float64
	DepthAskNotional float64
	Imbalance        float64
	MicropriceGapBps float64

	// Derivatives.
	MarkSpotBps float64
	OIDelta1m   float64 // fixed 0.0: no open-interest series is wired up
	LiqCount1m  int
}
