// Package quotes provides the rate-limited quote provider client used by the
// price monitor.
//
// The provider enforces two budgets: a hard daily request cap and a pacing
// rule of no more than one request per 12 seconds. Both are enforced here so
// callers never have to think about provider limits.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// dailyRequestLimit is the provider's free-tier daily cap.
	dailyRequestLimit = 25
	// requestInterval is the provider pacing rule.
	requestInterval = 12 * time.Second
	// quoteCacheTTL keeps a quote warm across overlapping monitor interests.
	quoteCacheTTL = 5 * time.Minute
)

// ErrRateLimitExceeded is returned when the daily request budget is spent.
type ErrRateLimitExceeded struct{}

func (ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("quote provider daily limit of %d requests exceeded", dailyRequestLimit)
}

// Quote is one price observation.
type Quote struct {
	Symbol        string
	Price         float64
	ChangePercent float64
	Volume        int64
	Timestamp     time.Time
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// Client is a quote provider client with daily budgeting, pacing and a small
// TTL cache.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger

	mu           sync.Mutex
	requestCount int
	countDay     string // YYYY-MM-DD the counter belongs to
	cache        map[string]cacheEntry
}

// NewClient creates a new quote client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    "https://www.alphavantage.co/query",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
		log:        log.With().Str("client", "quotes").Logger(),
		cache:      make(map[string]cacheEntry),
	}
}

// SetBaseURL overrides the provider endpoint (tests, alternate providers).
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GetRemainingRequests returns how many requests are left in today's budget.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollCounterLocked(time.Now())
	return dailyRequestLimit - c.requestCount
}

// ResetDailyCounter resets the daily budget immediately. The counter also
// rolls over on its own when the UTC day changes.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
	c.countDay = time.Now().UTC().Format("2006-01-02")
}

// checkRateLimit consumes one unit of the daily budget.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollCounterLocked(time.Now())
	if c.requestCount >= dailyRequestLimit {
		return ErrRateLimitExceeded{}
	}
	c.requestCount++
	return nil
}

// rollCounterLocked resets the counter when the UTC day changes.
func (c *Client) rollCounterLocked(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day != c.countDay {
		c.countDay = day
		c.requestCount = 0
	}
}

// GetQuote fetches the current quote for a symbol, serving from cache when a
// fresh observation exists.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("quote provider API key not configured")
	}

	cacheKey := "quote:" + symbol
	if cached, ok := c.getFromCache(cacheKey); ok {
		q := cached.(Quote)
		return &q, nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	// Provider pacing: no more than one request per 12s.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("quote pacing wait cancelled: %w", err)
	}

	q, err := c.fetchGlobalQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.setCache(cacheKey, *q, quoteCacheTTL)
	return q, nil
}

// globalQuoteResponse mirrors the provider's GLOBAL_QUOTE payload.
type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

func (c *Client) fetchGlobalQuote(ctx context.Context, symbol string) (*Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote provider returned status %d for %s", resp.StatusCode, symbol)
	}

	var payload globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode quote response for %s: %w", symbol, err)
	}

	// The provider signals throttling inside a 200 body.
	if payload.Note != "" || payload.Information != "" {
		return nil, ErrRateLimitExceeded{}
	}
	if payload.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("quote provider returned empty quote for %s", symbol)
	}

	price, err := strconv.ParseFloat(payload.GlobalQuote.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price %q for %s: %w", payload.GlobalQuote.Price, symbol, err)
	}

	volume, _ := strconv.ParseInt(payload.GlobalQuote.Volume, 10, 64)

	changePercent := 0.0
	if cp := strings.TrimSuffix(payload.GlobalQuote.ChangePercent, "%"); cp != "" {
		changePercent, _ = strconv.ParseFloat(cp, 64)
	}

	return &Quote{
		Symbol:        symbol,
		Price:         price,
		ChangePercent: changePercent,
		Volume:        volume,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// ==========================================
// Cache
// ==========================================

func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.cache, key)
		return nil, false
	}
	return entry.value, true
}

func (c *Client) setCache(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

// ClearCache drops every cached entry.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}
