package feed

// Wire payload types for the combined stream. The single-letter JSON tags
// are part of the exchange contract and must be matched exactly. Decimal
// price/quantity fields arrive as strings and stay strings until a handler
// chooses a numeric representation. Unknown fields are ignored.

// Event type discriminators carried in the "e" field.
const (
	EventTypeKline      = "kline"
	EventTypeMarkPrice  = "markPriceUpdate"
	EventTypeForceOrder = "forceOrder"
	EventTypeAggTrade   = "aggTrade"
	EventTypeDepth      = "depthUpdate"
)

// KlineEvent is a kline/candlestick stream payload.
type KlineEvent struct {
	EventType   string       `json:"e"`
	EventTimeMs int64        `json:"E"`
	Symbol      string       `json:"s"`
	Kline       KlinePayload `json:"k"`
}

// KlinePayload is the candle body nested in a KlineEvent.
type KlinePayload struct {
	StartTimeMs         int64  `json:"t"` // candle minute start
	CloseTimeMs         int64  `json:"T"`
	Symbol              string `json:"s"`
	Interval            string `json:"i"`
	Open                string `json:"o"`
	Close               string `json:"c"`
	High                string `json:"h"`
	Low                 string `json:"l"`
	Volume              string `json:"v"`
	TradeCount          int64  `json:"n"`
	IsFinal             bool   `json:"x"`
	QuoteVolume         string `json:"q"`
	TakerBuyVolume      string `json:"V"`
	TakerBuyQuoteVolume string `json:"Q"`
}

// MarkPriceEvent is a mark price stream payload.
type MarkPriceEvent struct {
	EventType       string `json:"e"`
	EventTimeMs     int64  `json:"E"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	IndexPrice      string `json:"i"`
	SettlePrice     string `json:"P"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"` // 0/absent means no next funding scheduled
}

// ForceOrderEvent is a liquidation order stream payload.
type ForceOrderEvent struct {
	EventType   string     `json:"e"`
	EventTimeMs int64      `json:"E"`
	Order       ForceOrder `json:"o"`
}

// ForceOrder is the order body nested in a ForceOrderEvent.
type ForceOrder struct {
	Symbol       string `json:"s"`
	Side         string `json:"S"`
	OrderType    string `json:"o"`
	TimeInForce  string `json:"f"`
	OrigQty      string `json:"q"`
	Price        string `json:"p"`
	AvgPrice     string `json:"ap"`
	OrderStatus  string `json:"X"`
	LastFillQty  string `json:"l"`
	FilledQty    string `json:"z"`
	TradeTimeMs  int64  `json:"T"`
}

// AggTradeEvent is an aggregate trade stream payload.
type AggTradeEvent struct {
	EventType    string `json:"e"`
	EventTimeMs  int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	FirstTradeID int64  `json:"f"`
	LastTradeID  int64  `json:"l"`
	TradeTimeMs  int64  `json:"T"` // basis for minute bucketing, not E
	BuyerIsMaker bool   `json:"m"` // true: taker side SELL, false: taker side BUY
}
