package feed

import (
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","s":"BTCUSDT"}}`)

	stream, data, err := decodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stream != "btcusdt@aggTrade" {
		t.Errorf("expected stream btcusdt@aggTrade, got %q", stream)
	}
	if len(data) == 0 {
		t.Error("expected raw payload")
	}
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	if _, _, err := decodeEnvelope([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed envelope")
	}
	if _, _, err := decodeEnvelope([]byte(`{"stream":"x"}`)); err == nil {
		t.Error("expected error for envelope without data")
	}
}

func TestDecodeDepth_FullPayload(t *testing.T) {
	raw := []byte(`{
		"e":"depthUpdate","E":1700000040500,"T":1700000040450,"s":"BTCUSDT",
		"b":[["100.0","5"],["99.9","10"]],
		"a":[["100.2","3"]]
	}`)

	d, err := decodeDepth(raw, "FALLBACK", 1_700_000_099_000)
	if err != nil {
		t.Fatalf("decode depth: %v", err)
	}
	if d.Symbol != "BTCUSDT" {
		t.Errorf("expected payload symbol, got %q", d.Symbol)
	}
	// Transaction time preferred over event time.
	if d.EventTimeMs != 1_700_000_040_450 {
		t.Errorf("expected T timestamp, got %d", d.EventTimeMs)
	}
	if len(d.Bids) != 2 || len(d.Asks) != 1 {
		t.Fatalf("expected 2 bids / 1 ask, got %d/%d", len(d.Bids), len(d.Asks))
	}
	if d.Bids[0].Price != "100.0" || d.Bids[0].Qty != "5" {
		t.Errorf("unexpected top bid: %+v", d.Bids[0])
	}
}

func TestDecodeDepth_MinimalPartialPayload(t *testing.T) {
	// Partial-depth variants may carry only the level arrays.
	raw := []byte(`{"b":[["100.0","5"]],"a":[["100.2","3"]]}`)

	d, err := decodeDepth(raw, "BTCUSDT", 1_700_000_040_000)
	if err != nil {
		t.Fatalf("decode depth: %v", err)
	}
	if d.Symbol != "BTCUSDT" {
		t.Errorf("expected fallback symbol, got %q", d.Symbol)
	}
	if d.EventTimeMs != 1_700_000_040_000 {
		t.Errorf("expected now fallback timestamp, got %d", d.EventTimeMs)
	}
}

func TestDecodeDepth_ToleratesNumbersAndShortEntries(t *testing.T) {
	raw := []byte(`{"s":"BTCUSDT","E":1,"b":[[100.0,5],["99.9"],["99.8","2","extra"]],"a":[["100.2","3"]]}`)

	d, err := decodeDepth(raw, "", 0)
	if err != nil {
		t.Fatalf("decode depth: %v", err)
	}
	// The one-element entry is skipped; the numeric and 3-element entries kept.
	if len(d.Bids) != 2 {
		t.Fatalf("expected 2 bids, got %d: %+v", len(d.Bids), d.Bids)
	}
	if d.Bids[0].Price != "100.0" && d.Bids[0].Price != "100" {
		t.Errorf("unexpected numeric price decode: %q", d.Bids[0].Price)
	}
	if d.Bids[1].Price != "99.8" {
		t.Errorf("expected 3-element entry kept, got %+v", d.Bids[1])
	}
}

func TestParseFloat(t *testing.T) {
	if got := ParseFloat("102.5"); got != 102.5 {
		t.Errorf("expected 102.5, got %v", got)
	}
	if got := ParseFloat(""); got != 0 {
		t.Errorf("expected 0 for empty, got %v", got)
	}
	if got := ParseFloat("abc"); got != 0 {
		t.Errorf("expected 0 for malformed, got %v", got)
	}
}

func TestParseFloatPtr(t *testing.T) {
	if got := ParseFloatPtr("0.0001"); got == nil || *got != 0.0001 {
		t.Errorf("expected 0.0001, got %v", got)
	}
	if got := ParseFloatPtr(""); got != nil {
		t.Errorf("expected nil for empty, got %v", *got)
	}
}
