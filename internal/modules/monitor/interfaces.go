package monitor

import (
	"context"

	"github.com/peterbitar/wealthyrabbit/internal/clients/quotes"
	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/alerts"
	"github.com/peterbitar/wealthyrabbit/internal/modules/fetching"
)

// QuoteProvider supplies current quotes. Implemented by the quotes client.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*quotes.Quote, error)
	Configured() bool
}

// UserDirectory reads user settings. Implemented by the users repository.
type UserDirectory interface {
	Get(userID string) (*domain.UserSettings, error)
	GetAll() ([]domain.UserSettings, error)
}

// HoldingsDirectory reads holdings. Implemented by the holding repository.
type HoldingsDirectory interface {
	AllSymbols() ([]string, error)
	HolderIDs(symbol string) ([]string, error)
}

// AlertSink accepts thresholded candidates. Implemented by the dispatcher.
type AlertSink interface {
	Dispatch(ctx context.Context, c alerts.Candidate) (alerts.Outcome, error)
}

// HeadlineFetcher runs a per-symbol news search. Implemented by the fetcher.
type HeadlineFetcher interface {
	FetchSymbolNews(ctx context.Context, symbol string) []fetching.RawArticle
}

// MentionCounter counts recent forum mentions of a symbol. Implemented by
// the social client.
type MentionCounter interface {
	CountMentions(ctx context.Context, symbol, forum string) (int, error)
}
