package ingest

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"perp-feature-lab/internal/domain"
)

// gzipLevels JSON-encodes raw [price, qty] level pairs and gzips the result.
// The blobs are high-frequency and rarely queried, so they are archived
// compressed.
func gzipLevels(levels []domain.DepthLevel) ([]byte, error) {
	pairs := make([][2]string, len(levels))
	for i, lv := range levels {
		pairs[i] = [2]string{lv.Price, lv.Qty}
	}

	raw, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("encode levels: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip levels: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// GunzipLevels decodes a blob produced by gzipLevels. Used by diagnostics
// and tests; the hot path never reads the blobs back.
func GunzipLevels(blob []byte) ([]domain.DepthLevel, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}

	var pairs [][2]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("decode levels: %w", err)
	}

	levels := make([]domain.DepthLevel, len(pairs))
	for i, p := range pairs {
		levels[i] = domain.DepthLevel{Price: p[0], Qty: p[1]}
	}
	return levels, nil
}
