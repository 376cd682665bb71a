package feed

import (
	"sync/atomic"
	"time"
)

// Health is the process-wide ingest health state: per-type message counters,
// last-message timestamp and last error string. Initialized at process start,
// bumped by every feed callback and by the supervisor, reset only by process
// restart. All fields are safe for concurrent update from the read loop and
// concurrent reads from diagnostics.
type Health struct {
	total      atomic.Int64
	kline      atomic.Int64
	mark       atomic.Int64
	forceOrder atomic.Int64
	trade      atomic.Int64
	depth      atomic.Int64

	reconnects atomic.Int64
	restarts   atomic.Int64

	lastMsgMs atomic.Int64
	lastError atomic.Value // string
}

// NewHealth creates an empty health state.
func NewHealth() *Health {
	return &Health{}
}

// RecordMessage counts one successfully decoded message of the given event
// type and stamps the last-message time.
func (h *Health) RecordMessage(eventType string, now time.Time) {
	h.total.Add(1)
	switch eventType {
	case EventTypeKline:
		h.kline.Add(1)
	case EventTypeMarkPrice:
		h.mark.Add(1)
	case EventTypeForceOrder:
		h.forceOrder.Add(1)
	case EventTypeAggTrade:
		h.trade.Add(1)
	case EventTypeDepth:
		h.depth.Add(1)
	}
	h.lastMsgMs.Store(now.UnixMilli())
}

// RecordReconnect counts one scheduled reconnect.
func (h *Health) RecordReconnect() { h.reconnects.Add(1) }

// RecordRestart counts one supervisor-forced restart.
func (h *Health) RecordRestart() { h.restarts.Add(1) }

// SetError records the most recent error string.
func (h *Health) SetError(msg string) { h.lastError.Store(msg) }

// LastMessageMs returns the epoch-ms timestamp of the last decoded message,
// or 0 if none has been seen yet.
func (h *Health) LastMessageMs() int64 { return h.lastMsgMs.Load() }

// Snapshot is a point-in-time copy of the health state for diagnostics.
type Snapshot struct {
	Total      int64  `json:"total"`
	Kline      int64  `json:"kline"`
	MarkPrice  int64  `json:"mark_price"`
	ForceOrder int64  `json:"force_order"`
	Trade      int64  `json:"trade"`
	Depth      int64  `json:"depth"`
	Reconnects int64  `json:"reconnects"`
	Restarts   int64  `json:"restarts"`
	LastMsgMs  int64  `json:"last_message_ms"`
	LastError  string `json:"last_error,omitempty"`
}

// Snapshot returns a consistent-enough copy for rendering.
func (h *Health) Snapshot() Snapshot {
	s := Snapshot{
		Total:      h.total.Load(),
		Kline:      h.kline.Load(),
		MarkPrice:  h.mark.Load(),
		ForceOrder: h.forceOrder.Load(),
		Trade:      h.trade.Load(),
		Depth:      h.depth.Load(),
		Reconnects: h.reconnects.Load(),
		Restarts:   h.restarts.Load(),
		LastMsgMs:  h.lastMsgMs.Load(),
	}
	if v := h.lastError.Load(); v != nil {
		s.LastError = v.(string)
	}
	return s
}
