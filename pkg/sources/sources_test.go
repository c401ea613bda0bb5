package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSourcesFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return path
}

func TestLoadRegistryFromYAML(t *testing.T) {
	path := writeSourcesFile(t, "sources.yaml", `
sources:
  - id: hn-top
    name: Hacker News
    type: hackernews
    category: tech
    config:
      min_points: 100
      queries:
        - AI
        - LLM
  - id: gh-trending
    name: GitHub Trending
    type: github
    limit: 3
  - id: dev-to
    name: DEV Community
    type: rss
    config:
      feed_url: https://dev.to/feed
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if got := len(reg.All()); got != 3 {
		t.Fatalf("expected 3 sources, got %d", got)
	}

	hn, ok := reg.ByID("hn-top")
	if !ok {
		t.Fatalf("hn-top not found")
	}
	if hn.Limit != defaultFetchLimit {
		t.Fatalf("expected default limit %d, got %d", defaultFetchLimit, hn.Limit)
	}
	if got := ConfigInt(hn, ConfigMinPointsKey, 0); got != 100 {
		t.Fatalf("min_points = %d", got)
	}
	if got := ConfigStringSlice(hn, ConfigQueriesKey, nil); len(got) != 2 || got[0] != "AI" {
		t.Fatalf("queries = %v", got)
	}

	gh, _ := reg.ByID("gh-trending")
	if gh.Limit != 3 {
		t.Fatalf("expected explicit limit 3, got %d", gh.Limit)
	}
}

func TestLoadRegistryRejectsDuplicateIDs(t *testing.T) {
	path := writeSourcesFile(t, "sources.yaml", `
sources:
  - id: hn
    name: A
    type: hackernews
  - id: hn
    name: B
    type: hackernews
`)

	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestLoadRegistryRejectsRSSWithoutFeedURL(t *testing.T) {
	path := writeSourcesFile(t, "sources.yaml", `
sources:
  - id: blog
    name: Some Blog
    type: rss
`)

	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected error for rss source without feed_url")
	}
}

func TestLoadRegistryRejectsUnknownType(t *testing.T) {
	path := writeSourcesFile(t, "sources.yaml", `
sources:
  - id: x
    name: X
    type: usenet
`)

	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected error for unknown source type")
	}
}

func TestFetcherRegistryResolvesByTypeAndID(t *testing.T) {
	client := &fakeHTTPClient{}
	reg := DefaultFetcherRegistry(client, 0)

	f, err := reg.FetcherFor(Source{ID: "hn-top", Type: "hackernews"})
	if err != nil {
		t.Fatalf("FetcherFor hackernews: %v", err)
	}
	if f.ID() != "hackernews" {
		t.Fatalf("unexpected fetcher id %q", f.ID())
	}

	if _, err := reg.FetcherFor(Source{ID: "x", Type: "usenet"}); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}
