package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/devpulse-hq/devpulse-bot/internal/logger"
	"github.com/devpulse-hq/devpulse-bot/internal/memory"
	"github.com/devpulse-hq/devpulse-bot/pkg/sources"
)

// sourcePriority is the deterministic final tie-break: discussions beat
// repositories beat syndication feeds.
var sourcePriority = map[string]int{
	domain.SourceTypeHackerNews: 3,
	domain.SourceTypeGitHub:     2,
	domain.SourceTypeRSS:        1,
}

// Aggregator merges candidates from all configured sources, deduplicates
// them against each other and against the recent-post memory, normalizes
// scores cross-source, and ranks the result deterministically.
type Aggregator struct {
	registry     sources.FetcherRegistry
	fetchTimeout time.Duration
	log          logger.Logger
}

func NewAggregator(registry sources.FetcherRegistry, fetchTimeout time.Duration, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Aggregator{
		registry:     registry,
		fetchTimeout: fetchTimeout,
		log:          log,
	}
}

type fetchResult struct {
	source sources.Source
	items  []domain.CandidateItem
	err    error
}

// Collect fetches every source, drops duplicates and already-posted items,
// normalizes scores per source, and returns candidates best-first. A failing
// source contributes zero items; zero sources succeeding yields an empty
// slice, which the orchestrator treats as the run's failure condition.
func (a *Aggregator) Collect(ctx context.Context, cfgs []sources.Source, mem memory.Store) []domain.RankedCandidate {
	results := a.fetchAll(ctx, cfgs)

	var all []domain.CandidateItem
	for _, res := range results {
		if res.err != nil {
			a.log.WarnObj("source fetch failed", "fetch_error", map[string]any{
				"source_id": res.source.ID,
				"error":     res.err.Error(),
			})
			continue
		}
		a.log.InfoObj("source fetch completed", "fetch_result", map[string]any{
			"source_id":  res.source.ID,
			"item_count": len(res.items),
		})
		all = append(all, res.items...)
	}
	if len(all) == 0 {
		return nil
	}

	deduped := a.dedupe(all, mem)
	ranked := normalizeScores(deduped)
	sortCandidates(ranked)
	return ranked
}

// fetchAll issues every source fetch concurrently and joins before
// returning; results keep the input order so logging stays deterministic.
func (a *Aggregator) fetchAll(ctx context.Context, cfgs []sources.Source) []fetchResult {
	results := make([]fetchResult, len(cfgs))

	var wg sync.WaitGroup
	for i, cfg := range cfgs {
		wg.Add(1)
		go func(i int, cfg sources.Source) {
			defer wg.Done()
			results[i] = fetchResult{source: cfg}

			fetcher, err := a.registry.FetcherFor(cfg)
			if err != nil {
				results[i].err = err
				return
			}

			fetchCtx := ctx
			if a.fetchTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, a.fetchTimeout)
				defer cancel()
			}

			items, err := fetcher.Fetch(fetchCtx, cfg)
			results[i].items, results[i].err = items, err
		}(i, cfg)
	}
	wg.Wait()

	return results
}

// dedupe drops items already posted (memory) and collapses same-key items in
// the batch, keeping the highest raw score per key.
func (a *Aggregator) dedupe(items []domain.CandidateItem, mem memory.Store) []domain.RankedCandidate {
	byKey := make(map[string]domain.RankedCandidate, len(items))
	order := make([]string, 0, len(items))

	for _, item := range items {
		key := DedupKey(item)

		if mem != nil {
			seen, err := mem.Seen(key)
			if err != nil {
				a.log.WarnObj("recent-post memory read failed", "memory_error", map[string]any{
					"dedup_key": key,
					"error":     err.Error(),
				})
			} else if seen {
				continue
			}
		}

		existing, ok := byKey[key]
		if !ok {
			byKey[key] = domain.RankedCandidate{CandidateItem: item, DedupKey: key}
			order = append(order, key)
			continue
		}
		if item.Score > existing.Score {
			byKey[key] = domain.RankedCandidate{CandidateItem: item, DedupKey: key}
		}
	}

	out := make([]domain.RankedCandidate, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

// normalizeScores min-max scales raw scores to [0,1] independently per
// source, so one source's larger raw range cannot dominate selection. A
// source whose batch collapses to a single value normalizes to 1.0.
func normalizeScores(items []domain.RankedCandidate) []domain.RankedCandidate {
	type bounds struct{ min, max float64 }
	perSource := make(map[string]bounds)

	for _, item := range items {
		b, ok := perSource[item.SourceID]
		if !ok {
			perSource[item.SourceID] = bounds{min: item.Score, max: item.Score}
			continue
		}
		if item.Score < b.min {
			b.min = item.Score
		}
		if item.Score > b.max {
			b.max = item.Score
		}
		perSource[item.SourceID] = b
	}

	out := make([]domain.RankedCandidate, len(items))
	for i, item := range items {
		b := perSource[item.SourceID]
		if b.max > b.min {
			item.NormalizedScore = (item.Score - b.min) / (b.max - b.min)
		} else {
			item.NormalizedScore = 1.0
		}
		out[i] = item
	}
	return out
}

// sortCandidates orders candidates deterministically: normalized score desc,
// most recent fetch first, source priority, then dedup key.
func sortCandidates(items []domain.RankedCandidate) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.NormalizedScore != b.NormalizedScore {
			return a.NormalizedScore > b.NormalizedScore
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.After(b.FetchedAt)
		}
		if sourcePriority[a.SourceType] != sourcePriority[b.SourceType] {
			return sourcePriority[a.SourceType] > sourcePriority[b.SourceType]
		}
		return a.DedupKey < b.DedupKey
	})
}
