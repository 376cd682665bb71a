package feature

import (
	"math"

	"perp-feature-lab/internal/domain"
)

// logReturn is ln(now/past), or 0 when either close is missing/non-positive.
func logReturn(now, past float64) float64 {
	if now > 0 && past > 0 {
		return math.Log(now / past)
	}
	return 0
}

// closeAt returns the close at ts, or 0 when the candle is missing.
func closeAt(klines map[int64]*domain.Kline, ts int64) float64 {
	k, ok := klines[ts]
	if !ok {
		return 0
	}
	return k.Close
}

// realizedVol is the population standard deviation of the n one-minute log
// returns ending at minuteMs, scaled by sqrt(n). The window is strict: all
// n+1 consecutive closes must exist and be positive, otherwise the result is
// exactly 0.0. Partial windows are not tolerated.
func realizedVol(klines map[int64]*domain.Kline, minuteMs int64, n int) float64 {
	rets := make([]float64, n)

	for i := 0; i < n; i++ {
		tPrev := minuteMs - int64(n-i)*domain.MinuteMs
		tNow := minuteMs - int64(n-i-1)*domain.MinuteMs

		kPrev, okPrev := klines[tPrev]
		kNow, okNow := klines[tNow]
		if !okPrev || !okNow {
			return 0
		}
		if kPrev.Close <= 0 || kNow.Close <= 0 {
			return 0
		}

		rets[i] = math.Log(kNow.Close / kPrev.Close)
	}

	return stdPopulation(rets) * math.Sqrt(float64(n))
}

// volumeZ60 is the z-score of currentVol against the 60 prior-minute volumes
// (current minute excluded). Strict window: any missing minute, or a
// population standard deviation of zero, yields 0.0.
func volumeZ60(klines map[int64]*domain.Kline, minuteMs int64, currentVol float64) float64 {
	vols := make([]float64, 60)

	for i := 0; i < 60; i++ {
		t := minuteMs - int64(60-i)*domain.MinuteMs // -60 .. -1
		k, ok := klines[t]
		if !ok {
			return 0
		}
		vols[i] = k.Volume
	}

	std := stdPopulation(vols)
	if std <= 0 {
		return 0
	}
	return (currentVol - mean(vols)) / std
}

func mean(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

func stdPopulation(x []float64) float64 {
	if len(x) <= 1 {
		return 0
	}
	m := mean(x)
	s2 := 0.0
	for _, v := range x {
		d := v - m
		s2 += d * d
	}
	return math.Sqrt(s2 / float64(len(x)))
}

// safeFinite coerces NaN/Inf to 0.0 so every persisted field is finite.
func safeFinite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// sanitize applies safeFinite to every float field of a feature row.
func sanitize(r *domain.FeatureRow) {
	r.Open = safeFinite(r.Open)
	r.High = safeFinite(r.High)
	r.Low = safeFinite(r.Low)
	r.Close = safeFinite(r.Close)
	r.Volume = safeFinite(r.Volume)
	r.Ret1mLog = safeFinite(r.Ret1mLog)
	r.Ret5mLog = safeFinite(r.Ret5mLog)
	r.Ret15mLog = safeFinite(r.Ret15mLog)
	r.RangeBps1m = safeFinite(r.RangeBps1m)
	r.RV15m = safeFinite(r.RV15m)
	r.RV60m = safeFinite(r.RV60m)
	r.VolZ60m = safeFinite(r.VolZ60m)
	r.AvgTradeSize1m = safeFinite(r.AvgTradeSize1m)
	r.VWAPGapBps = safeFinite(r.VWAPGapBps)
	r.TakerBuyQty1m = safeFinite(r.TakerBuyQty1m)
	r.TakerSellQty1m = safeFinite(r.TakerSellQty1m)
	r.BuyRatio1m = safeFinite(r.BuyRatio1m)
	r.CVD1m = safeFinite(r.CVD1m)
	r.CVD15m = safeFinite(r.CVD15m)
	r.MidPrice1s = safeFinite(r.MidPrice1s)
	r.SpreadBps1s = safeFinite(r.SpreadBps1s)
	r.DepthBidNotional = safeFinite(r.DepthBidNotional)
	r.DepthAskNotional = safeFinite(r.DepthAskNotional)
	r.Imbalance = safeFinite(r.Imbalance)
	r.MicropriceGapBps = safeFinite(r.MicropriceGapBps)
	r.MarkSpotBps = safeFinite(r.MarkSpotBps)
	r.OIDelta1m = safeFinite(r.OIDelta1m)
}
