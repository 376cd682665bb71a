package domain

// MarkPrice is a per-second mark price sample.
// Corresponds to the mark_1s table; keyed by (symbol, ts_ms) where ts_ms is
// the event time floored to the second.
type MarkPrice struct {
	Symbol    string
	TsMs      int64 // second start, epoch ms
	MarkPrice float64

	IndexPrice    *float64
	FundingRate   *float64
	NextFundingMs *int64 // nil when the stream reports 0/absent
}
