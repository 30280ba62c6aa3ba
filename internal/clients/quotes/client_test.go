package quotes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewClient tests client creation.
func TestNewClient(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "test-key", client.apiKey)
	assert.Equal(t, 25, client.GetRemainingRequests())
}

// TestRateLimiting tests the daily budget.
func TestRateLimiting(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	for i := 0; i < 25; i++ {
		remaining := client.GetRemainingRequests()
		assert.Equal(t, 25-i, remaining)
		err := client.checkRateLimit()
		require.NoError(t, err)
	}

	// 26th request should fail
	err := client.checkRateLimit()
	assert.Error(t, err)
	assert.IsType(t, ErrRateLimitExceeded{}, err)
}

// TestResetDailyCounter tests counter reset.
func TestResetDailyCounter(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	for i := 0; i < 10; i++ {
		_ = client.checkRateLimit()
	}
	assert.Equal(t, 15, client.GetRemainingRequests())

	client.ResetDailyCounter()
	assert.Equal(t, 25, client.GetRemainingRequests())
}

// TestCaching tests the cache functionality.
func TestCaching(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	client.setCache("test-key", "test data", time.Hour)

	cached, ok := client.getFromCache("test-key")
	assert.True(t, ok)
	assert.Equal(t, "test data", cached)

	_, ok = client.getFromCache("non-existent")
	assert.False(t, ok)
}

// TestCacheExpiration tests cache expiration.
func TestCacheExpiration(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	client.setCache("test-key", "test data", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := client.getFromCache("test-key")
	assert.False(t, ok)
}

// TestClearCache tests cache clearing.
func TestClearCache(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	client.setCache("key1", "data1", time.Hour)
	client.setCache("key2", "data2", time.Hour)

	client.ClearCache()

	_, ok1 := client.getFromCache("key1")
	_, ok2 := client.getFromCache("key2")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

// TestGetQuote exercises the provider round-trip and the quote cache.
func TestGetQuote(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"Global Quote": {"01. symbol": "AAPL", "05. price": "231.5500", "06. volume": "51234567", "10. change percent": "-2.1000%"}}`)
	}))
	defer srv.Close()

	client := NewClient("test-key", zerolog.Nop())
	client.SetBaseURL(srv.URL)

	quote, err := client.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.InDelta(t, 231.55, quote.Price, 1e-9)
	assert.InDelta(t, -2.1, quote.ChangePercent, 1e-9)
	assert.Equal(t, int64(51234567), quote.Volume)

	// Second call within the TTL serves from cache.
	_, err = client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

// TestGetQuoteThrottleNote maps the provider's in-band throttle signal to
// the rate-limit error.
func TestGetQuoteThrottleNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note": "Thank you for using our API, please slow down."}`)
	}))
	defer srv.Close()

	client := NewClient("test-key", zerolog.Nop())
	client.SetBaseURL(srv.URL)

	_, err := client.GetQuote(context.Background(), "AAPL")
	assert.IsType(t, ErrRateLimitExceeded{}, err)
}

// TestGetQuoteRequiresKey rejects unconfigured clients.
func TestGetQuoteRequiresKey(t *testing.T) {
	client := NewClient("", zerolog.Nop())
	assert.False(t, client.Configured())

	_, err := client.GetQuote(context.Background(), "AAPL")
	assert.Error(t, err)
}
