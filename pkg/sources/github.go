package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
)

const (
	defaultGitHubBaseURL  = "https://api.github.com/search/repositories"
	defaultGitHubQuery    = "AI OR machine-learning OR LLM"
	defaultGitHubDaysBack = 7
	maxDescriptionLen     = 100
)

// gitHubFetcher pulls recently created repositories with the most stars from
// the GitHub search API. No auth is required for basic search.
type gitHubFetcher struct {
	client HTTPClient
}

func NewGitHubFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient(0)
	}
	return &gitHubFetcher{client: client}
}

func (f *gitHubFetcher) ID() string {
	return domain.SourceTypeGitHub
}

type gitHubSearchResponse struct {
	Items []gitHubRepo `json:"items"`
}

type gitHubRepo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Stars       int    `json:"stargazers_count"`
	Language    string `json:"language"`
}

func (f *gitHubFetcher) Fetch(ctx context.Context, cfg Source) ([]domain.CandidateItem, error) {
	baseURL := ConfigString(cfg, ConfigBaseURLKey, defaultGitHubBaseURL)
	query := ConfigString(cfg, ConfigQueryKey, defaultGitHubQuery)
	daysBack := ConfigInt(cfg, ConfigDaysBackKey, defaultGitHubDaysBack)
	headers := Headers(cfg)

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -daysBack).Format("2006-01-02")

	params := map[string]string{
		"q":        fmt.Sprintf("%s created:>%s", query, since),
		"sort":     "stars",
		"order":    "desc",
		"per_page": fmt.Sprintf("%d", cfg.Limit),
	}

	resp, err := f.client.Get(ctx, baseURL, params, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch github search: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("github search returned status %d body: %s", resp.StatusCode(), responseSnippet(resp.Body()))
	}

	var decoded gitHubSearchResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("decode github response: %w", err)
	}

	items := make([]domain.CandidateItem, 0, len(decoded.Items))
	for _, repo := range decoded.Items {
		name := strings.TrimSpace(repo.Name)
		if name == "" || repo.HTMLURL == "" {
			continue
		}

		desc := strings.TrimSpace(repo.Description)
		if desc == "" {
			desc = "No description"
		}
		if len(desc) > maxDescriptionLen {
			desc = desc[:maxDescriptionLen]
		}

		items = append(items, domain.CandidateItem{
			SourceID:   cfg.ID,
			SourceType: domain.SourceTypeGitHub,
			Title:      fmt.Sprintf("%s - %s", name, desc),
			URL:        repo.HTMLURL,
			Score:      float64(repo.Stars),
			Category:   cfg.Category,
			FetchedAt:  now,
		})
		if len(items) >= cfg.Limit {
			break
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("github source %q returned no repositories", cfg.ID)
	}
	return items, nil
}
