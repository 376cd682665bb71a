package feed

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHealth_CountersAndLastMessage(t *testing.T) {
	h := NewHealth()

	if h.LastMessageMs() != 0 {
		t.Errorf("expected 0 before any message, got %d", h.LastMessageMs())
	}

	now := time.UnixMilli(1_700_000_040_000)
	h.RecordMessage(EventTypeKline, now)
	h.RecordMessage(EventTypeAggTrade, now.Add(time.Second))
	h.RecordMessage(EventTypeAggTrade, now.Add(2*time.Second))
	h.RecordReconnect()
	h.RecordRestart()
	h.SetError("read: connection reset")

	snap := h.Snapshot()
	if snap.Total != 3 || snap.Kline != 1 || snap.Trade != 2 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.Reconnects != 1 || snap.Restarts != 1 {
		t.Errorf("unexpected reconnect/restart counters: %+v", snap)
	}
	if snap.LastMsgMs != now.Add(2*time.Second).UnixMilli() {
		t.Errorf("expected last message ts advanced, got %d", snap.LastMsgMs)
	}
	if snap.LastError != "read: connection reset" {
		t.Errorf("unexpected last error: %q", snap.LastError)
	}
}

func TestHealthSnapshot_RendersAsJSON(t *testing.T) {
	h := NewHealth()
	h.RecordMessage(EventTypeDepth, time.UnixMilli(1_700_000_040_000))

	raw, err := json.Marshal(h.Snapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if decoded["depth"] != float64(1) {
		t.Errorf("expected depth counter 1, got %v", decoded["depth"])
	}
	if _, ok := decoded["last_error"]; ok {
		t.Error("expected empty last_error omitted")
	}
}
