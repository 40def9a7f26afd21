package proposal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govlens/govlens/proposal"
)

func fastRetry(attempts int) proposal.RetryConfig {
	return proposal.RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        time.Millisecond,
	}
}

func TestClient_GetJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"height": 12345})
	}))
	defer server.Close()

	client := proposal.NewClient(proposal.WithRetryConfig(fastRetry(1)))

	var out struct {
		Height int `json:"height"`
	}
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, 12345, out.Height)
}

func TestClient_PostGraphQL_SendsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Query, "proposals")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"proposals": []}}`))
	}))
	defer server.Close()

	client := proposal.NewClient(proposal.WithRetryConfig(fastRetry(1)))

	var out struct {
		Data struct {
			Proposals []any `json:"proposals"`
		} `json:"data"`
	}
	err := client.PostGraphQL(context.Background(), server.URL, "{ proposals { id } }", &out)
	require.NoError(t, err)
	assert.NotNil(t, out.Data.Proposals)
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int32

	// Server that fails first 2 times, then succeeds
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service temporarily unavailable"))
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := proposal.NewClient(proposal.WithRetryConfig(fastRetry(3)))

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_DoesNotRetryFatalErrors(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("malformed query"))
	}))
	defer server.Close()

	client := proposal.NewClient(proposal.WithRetryConfig(fastRetry(3)))

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.True(t, proposal.IsFatal(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_ExhaustedRetriesReturnTransient(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := proposal.NewClient(proposal.WithRetryConfig(fastRetry(2)))

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.True(t, proposal.IsTransient(err))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_UnparseableBodyIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer server.Close()

	client := proposal.NewClient(proposal.WithRetryConfig(fastRetry(3)))

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.True(t, proposal.IsFatal(err))
}
