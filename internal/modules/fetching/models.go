package fetching

import "time"

// RawArticle is an immutable snapshot of one fetched item. Created by the
// fetcher, never mutated downstream.
type RawArticle struct {
	ID             string
	Source         string
	SourceLayer    int
	Title          string
	RawBody        string
	Description    string
	PublishedAt    string // raw string as the source gave it
	URL            string
	InitialTickers []string
	FetchTime      time.Time
	IsHoldingsNews bool // produced by a holdings-targeted query
	SourceTag      string
}
