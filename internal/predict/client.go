// Package predict forwards completed feature rows to the downstream
// prediction process over HTTP. The forwarder is optional: without an
// endpoint URL nothing runs and rows stay in storage only.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"perp-feature-lab/internal/domain"
)

// Predictor scores one feature row.
type Predictor interface {
	Predict(ctx context.Context, row *domain.FeatureRow) (*Prediction, error)
}

// Prediction is the downstream response for one minute.
type Prediction struct {
	Symbol   string  `json:"symbol"`
	MinuteMs int64   `json:"minute_ms"`
	Signal   string  `json:"signal"`
	Score    float64 `json:"score"`
}

// Client posts feature rows as JSON to a prediction endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a predictor client for url.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Compile-time interface check.
var _ Predictor = (*Client)(nil)

// featureRequest is the wire shape of one feature row.
type featureRequest struct {
	Symbol           string  `json:"symbol"`
	MinuteMs         int64   `json:"minute_ms"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Close            float64 `json:"close"`
	Volume           float64 `json:"volume"`
	TradeCount       int     `json:"trade_count"`
	Ret1mLog         float64 `json:"ret_1m_log"`
	Ret5mLog         float64 `json:"ret_5m_log"`
	Ret15mLog        float64 `json:"ret_15m_log"`
	RangeBps1m       float64 `json:"range_bps_1m"`
	RV15m            float64 `json:"rv_15m"`
	RV60m            float64 `json:"rv_60m"`
	VolZ60m          float64 `json:"vol_z_60m"`
	AvgTradeSize1m   float64 `json:"avg_trade_size_1m"`
	VWAPGapBps       float64 `json:"vwap_gap_bps"`
	TakerBuyQty1m    float64 `json:"taker_buy_qty_1m"`
	TakerSellQty1m   float64 `json:"taker_sell_qty_1m"`
	BuyRatio1m       float64 `json:"buy_ratio_1m"`
	CVD1m            float64 `json:"cvd_1m"`
	CVD15m           float64 `json:"cvd_15m"`
	MidPrice1s       float64 `json:"mid_price_1s"`
	SpreadBps1s      float64 `json:"spread_bps_1s"`
	DepthBidNotional float64 `json:"depth_bid_notional"`
	DepthAskNotional float64 `json:"depth_ask_notional"`
	Imbalance        float64 `json:"imbalance"`
	MicropriceGapBps float64 `json:"microprice_gap_bps"`
	MarkSpotBps      float64 `json:"mark_spot_bps"`
	OIDelta1m        float64 `json:"oi_delta_1m"`
	LiqCount1m       int     `json:"liq_count_1m"`
}

func toRequest(r *domain.FeatureRow) *featureRequest {
	return &featureRequest{
		Symbol:           r.Symbol,
		MinuteMs:         r.MinuteMs,
		Open:             r.Open,
		High:             r.High,
		Low:              r.Low,
		Close:            r.Close,
		Volume:           r.Volume,
		TradeCount:       r.TradeCount,
		Ret1mLog:         r.Ret1mLog,
		Ret5mLog:         r.Ret5mLog,
		Ret15mLog:        r.Ret15mLog,
		RangeBps1m:       r.RangeBps1m,
		RV15m:            r.RV15m,
		RV60m:            r.RV60m,
		VolZ60m:          r.VolZ60m,
		AvgTradeSize1m:   r.AvgTradeSize1m,
		VWAPGapBps:       r.VWAPGapBps,
		TakerBuyQty1m:    r.TakerBuyQty1m,
		TakerSellQty1m:   r.TakerSellQty1m,
		BuyRatio1m:       r.BuyRatio1m,
		CVD1m:            r.CVD1m,
		CVD15m:           r.CVD15m,
		MidPrice1s:       r.MidPrice1s,
		SpreadBps1s:      r.SpreadBps1s,
		DepthBidNotional: r.DepthBidNotional,
		DepthAskNotional: r.DepthAskNotional,
		Imbalance:        r.Imbalance,
		MicropriceGapBps: r.MicropriceGapBps,
		MarkSpotBps:      r.MarkSpotBps,
		OIDelta1m:        r.OIDelta1m,
		LiqCount1m:       r.LiqCount1m,
	}
}

// Predict posts row and decodes the prediction. A non-2xx status is an error.
func (c *Client) Predict(ctx context.Context, row *domain.FeatureRow) (*Prediction, error) {
	body, err := json.Marshal(toRequest(row))
	if err != nil {
		return nil, fmt.Errorf("encode feature row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post feature row: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("prediction endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	return &p, nil
}
