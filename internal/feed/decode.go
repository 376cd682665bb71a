package feed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"perp-feature-lab/internal/domain"
)

// envelope is the combined-stream wrapper: {"stream": <id>, "data": <payload>}.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// eventProbe extracts the event-type discriminator from a payload. The
// event-time field must be declared too: with only a tag for "e", Go's
// case-insensitive fallback would bind the numeric "E" to the string field
// and fail the whole unmarshal.
type eventProbe struct {
	EventType   string `json:"e"`
	EventTimeMs int64  `json:"E"`
}

// decodeEnvelope unwraps a combined-stream message. Returns the stream
// identifier and the raw payload.
func decodeEnvelope(raw []byte) (string, json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Data == nil {
		return "", nil, fmt.Errorf("envelope without data")
	}
	return env.Stream, env.Data, nil
}

// depthPayload tolerates the schema variation seen across partial-depth
// protocol versions: E/T/lastUpdateId/s may be absent, and only the bid/ask
// arrays are required.
type depthPayload struct {
	EventType   string            `json:"e"`
	EventTimeMs int64             `json:"E"`
	TxTimeMs    int64             `json:"T"`
	Symbol      string            `json:"s"`
	Bids        []json.RawMessage `json:"b"`
	Asks        []json.RawMessage `json:"a"`
}

// decodeDepth parses a depth payload into a domain.DepthUpdate using a
// schema-tolerant generic tree. fallbackSymbol and nowMs fill fields the
// payload may omit.
func decodeDepth(data []byte, fallbackSymbol string, nowMs int64) (*domain.DepthUpdate, error) {
	var p depthPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode depth: %w", err)
	}

	symbol := p.Symbol
	if symbol == "" {
		symbol = fallbackSymbol
	}

	// Timestamp preference: transaction time, then event time, then now.
	ts := p.TxTimeMs
	if ts == 0 {
		ts = p.EventTimeMs
	}
	if ts == 0 {
		ts = nowMs
	}

	return &domain.DepthUpdate{
		Symbol:      symbol,
		EventTimeMs: ts,
		Bids:        parseLevels(p.Bids),
		Asks:        parseLevels(p.Asks),
	}, nil
}

// parseLevels converts raw [price, qty] pairs into levels, skipping entries
// that do not have at least two elements. Numbers are tolerated alongside
// the usual decimal strings.
func parseLevels(raw []json.RawMessage) []domain.DepthLevel {
	levels := make([]domain.DepthLevel, 0, len(raw))
	for _, r := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(r, &pair); err != nil || len(pair) < 2 {
			continue
		}
		price, ok1 := decimalString(pair[0])
		qty, ok2 := decimalString(pair[1])
		if !ok1 || !ok2 {
			continue
		}
		levels = append(levels, domain.DepthLevel{Price: price, Qty: qty})
	}
	return levels
}

// decimalString extracts a decimal value as a string from either a JSON
// string or a JSON number.
func decimalString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// ParseFloat converts a wire decimal string into a float64, returning 0 for
// empty or malformed values. Handlers use it where the original precision is
// no longer needed.
func ParseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseFloatPtr converts a wire decimal string into *float64, returning nil
// for empty or malformed values.
func ParseFloatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
