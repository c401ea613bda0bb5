package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
)

const (
	defaultAlgoliaBaseURL = "https://hn.algolia.com/api/v1/search"
	defaultMinPoints      = 30
	hitsPerQuery          = 5
)

var defaultHNQueries = []string{"AI", "LLM", "programming", "developer", "coding"}

// hackerNewsFetcher pulls trending stories from the Hacker News Algolia
// search API, one request per configured query term.
type hackerNewsFetcher struct {
	client HTTPClient
}

func NewHackerNewsFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient(0)
	}
	return &hackerNewsFetcher{client: client}
}

func (f *hackerNewsFetcher) ID() string {
	return domain.SourceTypeHackerNews
}

type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

type algoliaHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	Author      string `json:"author"`
}

func (f *hackerNewsFetcher) Fetch(ctx context.Context, cfg Source) ([]domain.CandidateItem, error) {
	baseURL := ConfigString(cfg, ConfigBaseURLKey, defaultAlgoliaBaseURL)
	minPoints := ConfigInt(cfg, ConfigMinPointsKey, defaultMinPoints)
	queries := ConfigStringSlice(cfg, ConfigQueriesKey, defaultHNQueries)
	headers := Headers(cfg)

	now := time.Now().UTC()
	seen := make(map[string]bool)
	var items []domain.CandidateItem
	var lastErr error

	for _, query := range queries {
		params := map[string]string{
			"query":          query,
			"tags":           "story",
			"numericFilters": fmt.Sprintf("points>%d", minPoints),
			"hitsPerPage":    fmt.Sprintf("%d", hitsPerQuery),
		}

		resp, err := f.client.Get(ctx, baseURL, params, headers)
		if err != nil {
			lastErr = fmt.Errorf("fetch hn query %q: %w", query, err)
			continue
		}
		if resp.StatusCode() != http.StatusOK {
			lastErr = fmt.Errorf("hn query %q returned status %d body: %s", query, resp.StatusCode(), responseSnippet(resp.Body()))
			continue
		}

		var decoded algoliaResponse
		if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
			lastErr = fmt.Errorf("decode hn response for query %q: %w", query, err)
			continue
		}

		for _, hit := range decoded.Hits {
			if hit.ObjectID == "" || seen[hit.ObjectID] {
				continue
			}
			seen[hit.ObjectID] = true

			url := strings.TrimSpace(hit.URL)
			if url == "" {
				url = fmt.Sprintf("https://news.ycombinator.com/item?id=%s", hit.ObjectID)
			}

			items = append(items, domain.CandidateItem{
				SourceID:   cfg.ID,
				SourceType: domain.SourceTypeHackerNews,
				Title:      strings.TrimSpace(hit.Title),
				URL:        url,
				Score:      float64(hit.Points),
				Category:   cfg.Category,
				FetchedAt:  now,
			})
		}
	}

	if len(items) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("hn source %q returned no stories above %d points", cfg.ID, minPoints)
	}

	// Most upvoted first, then cap at the configured limit.
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > cfg.Limit {
		items = items[:cfg.Limit]
	}
	return items, nil
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
