package taxonomy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
)

func bulkHandler(t *testing.T, threshold float64, score func(string) float64) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Items []string `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		results := make([]model.ClassificationResult, len(req.Items))
		for i, text := range req.Items {
			results[i] = model.ClassificationResult{
				Text:     text,
				Category: model.CategoryRef{Name: "Misc", ID: 1},
				Score:    score(text),
			}
		}
		high, low := Partition(results, threshold)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"high_confidence": high,
			"low_confidence":  low,
		})
	}
}

func TestClientMatchBulkRestoresInputOrder(t *testing.T) {
	// Alternating confidence forces the client to interleave the two
	// partitions when rebuilding the original sequence.
	scores := map[string]float64{"a": 0.9, "b": 0.2, "c": 0.8, "d": 0.3}
	srv := httptest.NewServer(bulkHandler(t, 0.6, func(text string) float64 {
		return scores[text]
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	results, err := client.MatchBulk(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, want := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, want, results[i].Text)
	}
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.InDelta(t, 0.2, results[1].Score, 1e-9)
}

func TestClientMatchBulkCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"high_confidence": [], "low_confidence": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.MatchBulk(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, common.ErrClassificationFailed)
}

func TestClientMatchBulkEmptyInput(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second)
	_, err := client.MatchBulk(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestClientMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/match", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.ClassificationResult{
			Text:     "coffee",
			Category: model.CategoryRef{Name: "Food & Drink", ID: 1},
			Score:    0.92,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	result, err := client.Match(context.Background(), "coffee")
	require.NoError(t, err)
	assert.Equal(t, "Food & Drink", result.Category.Name)
}

func TestClientUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/taxonomy/update", r.URL.Path)

		var req struct {
			Category string `json:"category"`
			Example  string `json:"example"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Transport", req.Category)
		assert.Equal(t, "tram", req.Example)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "updated", "count": 5}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	count, err := client.Update(context.Background(), "Transport", "tram")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Match(context.Background(), "coffee")
	assert.ErrorIs(t, err, common.ErrClassificationFailed)
}
