// Package pipeline orchestrates the personalization run: fetch -> clean ->
// detect -> cluster -> score -> feed. Stages are bulk-synchronous: each one
// observes the previous stage's full output. Every stage behaves correctly
// on empty input, so a run with zero reachable sources yields zero themes
// and no error.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/cleaning"
	"github.com/peterbitar/wealthyrabbit/internal/modules/clustering"
	"github.com/peterbitar/wealthyrabbit/internal/modules/detection"
	"github.com/peterbitar/wealthyrabbit/internal/modules/feed"
	"github.com/peterbitar/wealthyrabbit/internal/modules/fetching"
	"github.com/peterbitar/wealthyrabbit/internal/modules/scoring"
)

// Diagnostics is the per-run counters sidecar.
type Diagnostics struct {
	Fetched           int           `json:"fetched"`
	Cleaned           int           `json:"cleaned"`
	DroppedNonEnglish int           `json:"droppedNonEnglish"`
	Clusters          int           `json:"clusters"`
	Scored            int           `json:"scored"`
	FilteredOut       int           `json:"filteredOut"`
	Themes            int           `json:"themes"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Result is one pipeline run's output.
type Result struct {
	Themes      []feed.Theme
	Diagnostics Diagnostics
}

// Pipeline wires the stage engines. Engines are plain values passed by
// handle; two pipelines over different collaborators coexist freely (tests
// inject stubs).
type Pipeline struct {
	fetcher    *fetching.Fetcher
	cleaner    *cleaning.Cleaner
	detector   *detection.Detector
	clusterer  *clustering.Engine
	scorer     *scoring.Engine
	builder    *feed.Builder
	fetchLimit int
	log        zerolog.Logger
}

// New creates a pipeline.
func New(
	fetcher *fetching.Fetcher,
	cleaner *cleaning.Cleaner,
	detector *detection.Detector,
	clusterer *clustering.Engine,
	scorer *scoring.Engine,
	builder *feed.Builder,
	fetchLimit int,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		cleaner:    cleaner,
		detector:   detector,
		clusterer:  clusterer,
		scorer:     scorer,
		builder:    builder,
		fetchLimit: fetchLimit,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one full run for a user. Cancelling ctx aborts outstanding
// fetches and returns the cancellation error.
func (p *Pipeline) Run(ctx context.Context, settings domain.UserSettings, holdings []domain.Holding) (*Result, error) {
	start := time.Now()
	diag := Diagnostics{}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, domain.NormalizeSymbol(h.Symbol))
	}

	raw, err := p.fetcher.FetchAll(ctx, symbols, p.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch stage cancelled: %w", err)
	}
	diag.Fetched = len(raw)

	cleaned, droppedNonEnglish := p.cleaner.CleanAll(raw)
	diag.Cleaned = len(cleaned)
	diag.DroppedNonEnglish = droppedNonEnglish

	events := make(map[string]detection.DetectedEvent, len(cleaned))
	for _, ev := range p.detector.DetectBatch(ctx, cleaned) {
		events[ev.ArticleID] = ev
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clusters := p.clusterer.Cluster(ctx, cleaned, events, domain.SymbolSet(holdings))
	diag.Clusters = len(clusters)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var scored []feed.ScoredCluster
	for _, cluster := range clusters {
		score := p.scorer.Score(cluster, events, settings, holdings)
		if score == nil {
			diag.FilteredOut++
			continue
		}
		scored = append(scored, feed.ScoredCluster{Cluster: cluster, Score: *score})
	}
	diag.Scored = len(scored)

	themes := p.builder.Build(ctx, scored, settings, holdings)
	diag.Themes = len(themes)
	diag.Elapsed = time.Since(start)

	p.log.Info().
		Str("user_id", settings.UserID).
		Int("fetched", diag.Fetched).
		Int("clusters", diag.Clusters).
		Int("scored", diag.Scored).
		Int("themes", diag.Themes).
		Dur("elapsed", diag.Elapsed).
		Msg("Pipeline run completed")

	return &Result{Themes: themes, Diagnostics: diag}, nil
}
