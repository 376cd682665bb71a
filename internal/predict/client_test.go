package predict

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-feature-lab/internal/domain"
	"perp-feature-lab/internal/storage/memory"
)

func TestClientPredict_PostsRowAndDecodesResponse(t *testing.T) {
	var got featureRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(Prediction{
			Symbol:   got.Symbol,
			MinuteMs: got.MinuteMs,
			Signal:   "LONG",
			Score:    0.73,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)

	row := &domain.FeatureRow{
		Symbol:   "BTCUSDT",
		MinuteMs: 1_700_000_040_000,
		Close:    102,
		Ret1mLog: 0.0098,
	}

	p, err := client.Predict(context.Background(), row)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, int64(1_700_000_040_000), got.MinuteMs)
	assert.Equal(t, 102.0, got.Close)
	assert.Equal(t, "LONG", p.Signal)
	assert.Equal(t, 0.73, p.Score)
}

func TestClientPredict_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)

	_, err := client.Predict(context.Background(), &domain.FeatureRow{Symbol: "BTCUSDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRunnerRunOnce_SkipsMissingRowAndForwardsPresent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Prediction{Signal: "FLAT"})
	}))
	defer srv.Close()

	features := memory.NewFeatureStore()
	require.NoError(t, features.Upsert(context.Background(), &domain.FeatureRow{
		Symbol:   "BTCUSDT",
		MinuteMs: 1_700_000_040_000,
	}))

	runner := NewRunner(NewClient(srv.URL, time.Second), features, []string{"BTCUSDT", "ETHUSDT"}, nil)
	runner.RunOnce(context.Background(), 1_700_000_040_000)

	// ETHUSDT has no row; only BTCUSDT is forwarded.
	assert.Equal(t, 1, calls)
}
