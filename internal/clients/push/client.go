// Package push delivers notifications through the Expo push service.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

const expoPushURL = "https://exp.host/--/api/v2/push/send"

// productionTokenPattern matches real device tokens: an opaque 64-char hex
// string. Anything else is treated as a simulator token and short-circuits
// to a logged simulated send.
var productionTokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Message is one push payload.
type Message struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Client sends push notifications. With mock mode enabled every send is
// logged instead of delivered.
type Client struct {
	httpClient *http.Client
	mock       bool
	log        zerolog.Logger
}

// NewClient creates a push client.
func NewClient(mock bool, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		mock:       mock,
		log:        log.With().Str("client", "push").Logger(),
	}
}

// IsProductionToken reports whether the token is a deliverable device token.
func IsProductionToken(token string) bool {
	return productionTokenPattern.MatchString(token)
}

// Send delivers one message to a device token.
//
// Simulator tokens (anything that is not 64-char hex) and mock mode both
// short-circuit to a logged simulated send and report success.
func (c *Client) Send(ctx context.Context, token string, msg Message) error {
	if token == "" {
		return fmt.Errorf("push token is required")
	}

	if c.mock || !IsProductionToken(token) {
		c.log.Info().
			Str("token_prefix", tokenPrefix(token)).
			Str("title", msg.Title).
			Bool("mock", c.mock).
			Msg("Simulated push send")
		return nil
	}

	payload := struct {
		To string `json:"to"`
		Message
	}{To: token, Message: msg}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, expoPushURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}

	return nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
