package feature

import (
	"math"
	"testing"

	"perp-feature-lab/internal/domain"
)

func klineAt(minuteMs int64, close, volume float64) *domain.Kline {
	return &domain.Kline{Symbol: "BTCUSDT", OpenTimeMs: minuteMs, Close: close, Volume: volume}
}

func TestLogReturn_Basic(t *testing.T) {
	// closes 101 → 102: ln(102/101) ≈ 0.00985
	got := logReturn(102, 101)
	want := math.Log(102.0 / 101.0)

	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}
	if math.Abs(got-0.00985) > 1e-4 {
		t.Errorf("expected ≈0.00985, got %v", got)
	}
}

func TestLogReturn_MissingOrNonPositive(t *testing.T) {
	if got := logReturn(102, 0); got != 0 {
		t.Errorf("expected 0 for missing past close, got %v", got)
	}
	if got := logReturn(0, 101); got != 0 {
		t.Errorf("expected 0 for missing current close, got %v", got)
	}
	if got := logReturn(102, -5); got != 0 {
		t.Errorf("expected 0 for negative past close, got %v", got)
	}
}

func TestRealizedVol_FullWindow(t *testing.T) {
	const minute = int64(1_700_000_040_000)

	// 16 consecutive closes alternating 100/101 → non-trivial returns.
	klines := make(map[int64]*domain.Kline)
	for i := 0; i <= 15; i++ {
		ts := minute - int64(15-i)*domain.MinuteMs
		close := 100.0
		if i%2 == 1 {
			close = 101.0
		}
		klines[ts] = klineAt(ts, close, 10)
	}

	got := realizedVol(klines, minute, 15)
	if got <= 0 {
		t.Errorf("expected positive realized vol, got %v", got)
	}

	// Population std of the 15 log returns, scaled by √15.
	rets := make([]float64, 15)
	for i := 0; i < 15; i++ {
		prev := klines[minute-int64(15-i)*domain.MinuteMs].Close
		now := klines[minute-int64(14-i)*domain.MinuteMs].Close
		rets[i] = math.Log(now / prev)
	}
	want := stdPopulation(rets) * math.Sqrt(15)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRealizedVol_OneMissingCloseZeroesResult(t *testing.T) {
	const minute = int64(1_700_000_040_000)

	klines := make(map[int64]*domain.Kline)
	for i := 0; i <= 15; i++ {
		ts := minute - int64(15-i)*domain.MinuteMs
		klines[ts] = klineAt(ts, 100+float64(i), 10)
	}
	// Remove one close in the middle of the window.
	delete(klines, minute-7*domain.MinuteMs)

	if got := realizedVol(klines, minute, 15); got != 0 {
		t.Errorf("expected exactly 0.0 with a missing close, got %v", got)
	}
}

func TestRealizedVol_NonPositiveCloseZeroesResult(t *testing.T) {
	const minute = int64(1_700_000_040_000)

	klines := make(map[int64]*domain.Kline)
	for i := 0; i <= 15; i++ {
		ts := minute - int64(15-i)*domain.MinuteMs
		klines[ts] = klineAt(ts, 100, 10)
	}
	klines[minute-3*domain.MinuteMs].Close = 0

	if got := realizedVol(klines, minute, 15); got != 0 {
		t.Errorf("expected exactly 0.0 with a non-positive close, got %v", got)
	}
}

func TestVolumeZ60_FullWindow(t *testing.T) {
	const minute = int64(1_700_003_600_000)

	klines := make(map[int64]*domain.Kline)
	for i := 1; i <= 60; i++ {
		ts := minute - int64(i)*domain.MinuteMs
		vol := 10.0
		if i%2 == 0 {
			vol = 20.0
		}
		klines[ts] = klineAt(ts, 100, vol)
	}

	// mean=15, population std=5, current=25 → z=2.
	got := volumeZ60(klines, minute, 25)
	if math.Abs(got-2) > 1e-12 {
		t.Errorf("expected z-score 2, got %v", got)
	}
}

func TestVolumeZ60_MissingMinuteZeroesResult(t *testing.T) {
	const minute = int64(1_700_003_600_000)

	klines := make(map[int64]*domain.Kline)
	for i := 1; i <= 60; i++ {
		ts := minute - int64(i)*domain.MinuteMs
		klines[ts] = klineAt(ts, 100, 10)
	}
	delete(klines, minute-30*domain.MinuteMs)

	if got := volumeZ60(klines, minute, 50); got != 0 {
		t.Errorf("expected 0 with a missing prior minute, got %v", got)
	}
}

func TestVolumeZ60_ZeroStdZeroesResult(t *testing.T) {
	const minute = int64(1_700_003_600_000)

	// Constant volumes → std 0 → z must be 0, not Inf.
	klines := make(map[int64]*domain.Kline)
	for i := 1; i <= 60; i++ {
		ts := minute - int64(i)*domain.MinuteMs
		klines[ts] = klineAt(ts, 100, 10)
	}

	if got := volumeZ60(klines, minute, 50); got != 0 {
		t.Errorf("expected 0 with zero std, got %v", got)
	}
}

func TestSafeFinite(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
		{1.5, 1.5},
		{-2.25, -2.25},
		{0, 0},
	}
	for _, c := range cases {
		if got := safeFinite(c.in); got != c.want {
			t.Errorf("safeFinite(%v): expected %v, got %v", c.in, c.want, got)
		}
	}
}

func TestSanitize_CoercesNonFiniteFields(t *testing.T) {
	row := &domain.FeatureRow{
		Ret1mLog:   math.NaN(),
		VolZ60m:    math.Inf(1),
		VWAPGapBps: math.Inf(-1),
		Close:      102,
	}

	sanitize(row)

	if row.Ret1mLog != 0 || row.VolZ60m != 0 || row.VWAPGapBps != 0 {
		t.Errorf("expected non-finite fields coerced to 0: %+v", row)
	}
	if row.Close != 102 {
		t.Errorf("expected finite field untouched, got %v", row.Close)
	}
}
