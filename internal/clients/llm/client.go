// Package llm wraps the Anthropic API behind the small capability set the
// pipeline and monitor need: event-type classification, same-event checks,
// impact labeling, theme grouping and text rendering.
//
// Every capability has a deterministic fallback at its call site; the system
// must never require the LLM to function. A nil *Client is a valid "no LLM
// configured" value: Available() reports false and callers fall back.
//
// All calls share one token bucket so that the provider pacing budget
// (one call per 100ms) holds across call sites, not per caller.
package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// callTimeout bounds a single completion round-trip.
const callTimeout = 30 * time.Second

// Client is the Anthropic-backed LLM collaborator.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// NewClient creates an LLM client, or returns nil when no API key is
// configured (the nil client is the documented "LLM unavailable" value).
func NewClient(apiKey, model string, log zerolog.Logger) *Client {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	return &Client{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 1024,
		// One call per 100ms, shared by every call site.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		log:     log.With().Str("client", "llm").Logger(),
	}
}

// Available reports whether an LLM collaborator is configured.
func (c *Client) Available() bool {
	return c != nil
}

// complete runs a single paced completion and returns the trimmed text.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("llm client not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm pacing wait cancelled: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(callCtx, params)
	if err != nil {
		// One retry covers transient 429/5xx/timeouts; persistent failure
		// falls through to the caller's deterministic fallback.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
		retryCtx, retryCancel := context.WithTimeout(ctx, callTimeout)
		defer retryCancel()
		resp, err = c.client.Messages.New(retryCtx, params)
		if err != nil {
			return "", fmt.Errorf("llm call failed: %w", err)
		}
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("llm returned no text content")
	}

	return strings.TrimSpace(out.String()), nil
}

// ClassifyEventType asks for exactly one event-type token for an article.
// The returned token is lowercased but otherwise unvalidated; the detector
// owns the known-value check and its rule fallback.
func (c *Client) ClassifyEventType(ctx context.Context, title, description string, known []string) (string, error) {
	system := "You classify financial news articles. Respond with exactly one word from the allowed list. No punctuation, no explanation."
	user := fmt.Sprintf("Allowed types: %s\n\nTitle: %s\nDescription: %s\n\nType:",
		strings.Join(known, ", "), title, description)

	out, err := c.complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(strings.Trim(out, ".\"' "))), nil
}

// LabelImpacts asks for a comma-separated subset of the allowed impact labels.
func (c *Client) LabelImpacts(ctx context.Context, title, description string, known []string) ([]string, error) {
	system := "You tag financial news with market-impact labels. Respond with a comma-separated subset of the allowed labels, or the word none. No explanation."
	user := fmt.Sprintf("Allowed labels: %s\n\nTitle: %s\nDescription: %s\n\nLabels:",
		strings.Join(known, ", "), title, description)

	out, err := c.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(out), "none") {
		return nil, nil
	}

	var labels []string
	for _, part := range strings.Split(out, ",") {
		if part = strings.TrimSpace(part); part != "" {
			labels = append(labels, part)
		}
	}
	return labels, nil
}

// SameEvent asks whether two headlines describe the same underlying event.
func (c *Client) SameEvent(ctx context.Context, titleA, titleB string) (bool, error) {
	system := "You compare two financial news headlines. Answer YES if they describe the SAME underlying real-world event, otherwise NO. Answer with one word."
	user := fmt.Sprintf("Headline A: %s\nHeadline B: %s\n\nSame event?", titleA, titleB)

	out, err := c.complete(ctx, system, user)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(out), "YES"), nil
}

// GroupThemes asks the model to group cluster headlines into at most
// maxThemes named themes. The result maps theme name to member indices into
// the input slice. Indices out of range are dropped by the caller.
func (c *Client) GroupThemes(ctx context.Context, headlines []string, maxThemes int) (map[string][]int, error) {
	system := fmt.Sprintf("You group financial news stories into themes for a briefing. Produce between 1 and %d themes. Reply with one theme per line in the form: theme name | comma-separated story numbers. Every story number must appear in exactly one theme. No other text.", maxThemes)

	var b strings.Builder
	for i, h := range headlines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}

	out, err := c.complete(ctx, system, b.String())
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]int)
	for _, line := range strings.Split(out, "\n") {
		name, nums, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		for _, tok := range strings.Split(nums, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				continue
			}
			groups[name] = append(groups[name], n-1)
		}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("llm theme grouping produced no parseable groups")
	}
	return groups, nil
}

// ThemeTexts is the rendered briefing copy for one theme.
type ThemeTexts struct {
	Hook         string
	Context      string
	WhyItMatters string
}

// WriteThemeTexts renders hook / context / why-it-matters for a theme.
// The system prompt forbids panic language and invented numbers; the caller
// additionally enforces the number rule with NumbersGrounded and falls back
// to templates on violation.
func (c *Client) WriteThemeTexts(ctx context.Context, themeName string, headlines []string, ownedSymbols []string) (ThemeTexts, error) {
	system := "You write calm, friendly briefing copy about financial news. " +
		"Never use panic language (crash, collapse, bloodbath, disaster). " +
		"Never state any number, percentage or price that is not present in the input. " +
		"The hook is at most 3 sentences. " +
		"Reply in exactly three lines:\nHOOK: ...\nCONTEXT: ...\nWHY: ..."

	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %s\n", themeName)
	if len(ownedSymbols) > 0 {
		fmt.Fprintf(&b, "The reader owns: %s\n", strings.Join(ownedSymbols, ", "))
	}
	b.WriteString("Stories:\n")
	for _, h := range headlines {
		fmt.Fprintf(&b, "- %s\n", h)
	}

	out, err := c.complete(ctx, system, b.String())
	if err != nil {
		return ThemeTexts{}, err
	}

	texts := ThemeTexts{}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "HOOK:"):
			texts.Hook = strings.TrimSpace(strings.TrimPrefix(line, "HOOK:"))
		case strings.HasPrefix(line, "CONTEXT:"):
			texts.Context = strings.TrimSpace(strings.TrimPrefix(line, "CONTEXT:"))
		case strings.HasPrefix(line, "WHY:"):
			texts.WhyItMatters = strings.TrimSpace(strings.TrimPrefix(line, "WHY:"))
		}
	}
	if texts.Hook == "" {
		return ThemeTexts{}, fmt.Errorf("llm theme texts missing hook")
	}
	return texts, nil
}

// WriteAlertText renders a calm one-or-two sentence push message. The facts
// string is the only permitted source of numbers.
func (c *Client) WriteAlertText(ctx context.Context, kind, symbol, facts string) (string, error) {
	system := "You write one calm, short push notification about a user's stock. " +
		"One or two sentences. Never use panic language. " +
		"Never emit any number that is not in the user message."
	user := fmt.Sprintf("Alert kind: %s\nSymbol: %s\nFacts: %s", kind, symbol, facts)

	return c.complete(ctx, system, user)
}

// NumbersGrounded reports whether every digit sequence in output also occurs
// in at least one of the inputs. This is the enforcement half of the
// "the LLM must never invent numbers" contract.
func NumbersGrounded(output string, inputs ...string) bool {
	joined := strings.Join(inputs, "\n")
	for _, seq := range digitSequences(output) {
		if !strings.Contains(joined, seq) {
			return false
		}
	}
	return true
}

func digitSequences(s string) []string {
	var seqs []string
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			seqs = append(seqs, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		seqs = append(seqs, s[start:])
	}
	return seqs
}
