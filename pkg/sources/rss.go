package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/mmcdole/gofeed"
)

const defaultMaxAgeHours = 24

// rssFetcher reads syndication feeds through gofeed. The raw score is the
// item's remaining freshness in hours so newer entries rank higher within
// the source.
type rssFetcher struct {
	parser *gofeed.Parser
}

func NewRSSFetcher(timeout time.Duration) Fetcher {
	parser := gofeed.NewParser()
	if timeout > 0 {
		parser.Client = &http.Client{Timeout: timeout}
	}
	return &rssFetcher{parser: parser}
}

func (f *rssFetcher) ID() string {
	return domain.SourceTypeRSS
}

func (f *rssFetcher) Fetch(ctx context.Context, cfg Source) ([]domain.CandidateItem, error) {
	feedURL := ConfigString(cfg, ConfigFeedURLKey, "")
	if feedURL == "" {
		return nil, fmt.Errorf("rss source %q has no feed_url configured", cfg.ID)
	}
	maxAge := time.Duration(ConfigInt(cfg, ConfigMaxAgeHrsKey, defaultMaxAgeHours)) * time.Hour

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %q: %w", cfg.ID, err)
	}

	now := time.Now().UTC()
	cutoff := now.Add(-maxAge)

	items := make([]domain.CandidateItem, 0, cfg.Limit)
	for _, entry := range feed.Items {
		if len(items) >= cfg.Limit {
			break
		}

		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		published := entryTime(entry)
		if published != nil && published.Before(cutoff) {
			continue
		}

		// Freshness in hours; undated entries count as just published.
		score := maxAge.Hours()
		if published != nil {
			score = maxAge.Hours() - now.Sub(*published).Hours()
			if score < 0 {
				score = 0
			}
		}

		items = append(items, domain.CandidateItem{
			SourceID:   cfg.ID,
			SourceType: domain.SourceTypeRSS,
			Title:      title,
			URL:        link,
			Score:      score,
			Category:   cfg.Category,
			FetchedAt:  now,
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("rss source %q returned no recent entries", cfg.ID)
	}
	return items, nil
}

func entryTime(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	return entry.UpdatedParsed
}
