package domain

// DepthLevel is one order-book level as it appears on the wire: decimal
// strings, so no precision is lost before the raw arrays are archived.
type DepthLevel struct {
	Price string
	Qty   string
}

// DepthUpdate is the latest raw order-book state for a symbol. It is held in
// a single overwrite slot between snapshot ticks and never queued.
type DepthUpdate struct {
	Symbol      string
	EventTimeMs int64
	Bids        []DepthLevel // best first
	Asks        []DepthLevel // best first
}

// DepthSnapshot is a persisted once-per-second order-book snapshot with
// derived microstructure metrics. Keyed by (symbol, ts_ms) where ts_ms is
// the source event time floored to the second.
type DepthSnapshot struct {
	Symbol string
	TsMs   int64 // second start, epoch ms

	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	SpreadBps float64

	// Notional sums over the configured top-N levels.
	BidNotional float64
	AskNotional float64
	Imbalance   float64

	Microprice       *float64
	MicropriceGapBps *float64

	// Raw level arrays, JSON-encoded and gzip-compressed. High frequency,
	// rarely queried, so they are stored as blobs.
	BidsGzip []byte
	AsksGzip []byte
}
