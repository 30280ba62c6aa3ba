package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SocialClient counts recent keyword mentions of a symbol on a public forum.
type SocialClient struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewSocialClient creates a social client.
func NewSocialClient(log zerolog.Logger) *SocialClient {
	return &SocialClient{
		baseURL:    "https://www.reddit.com",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("client", "social").Logger(),
	}
}

// SetBaseURL overrides the forum endpoint (tests).
func (c *SocialClient) SetBaseURL(u string) {
	c.baseURL = u
}

// searchResponse mirrors the forum's search listing shape.
type searchResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// CountMentions counts posts in the forum's last hour that mention the
// symbol.
func (c *SocialClient) CountMentions(ctx context.Context, symbol, forum string) (int, error) {
	endpoint := fmt.Sprintf("%s/r/%s/search.json?q=%s&restrict_sr=1&sort=new&limit=100&t=hour",
		c.baseURL, url.PathEscape(forum), url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build social search request: %w", err)
	}
	req.Header.Set("User-Agent", "wealthyrabbit-monitor/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("social search failed for %s/%s: %w", forum, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, fmt.Errorf("forum %s throttled the search (429): slow the monitor schedule", forum)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("forum %s returned status %d", forum, resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode social search for %s: %w", forum, err)
	}

	needle := strings.ToUpper(symbol)
	count := 0
	for _, child := range payload.Data.Children {
		text := strings.ToUpper(child.Data.Title + " " + child.Data.Selftext)
		if strings.Contains(text, needle) || strings.Contains(text, "$"+needle) {
			count++
		}
	}

	return count, nil
}
