package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func rssFeedBody(fresh, stale time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://feed.example</link>
    <item>
      <title>Fresh Post</title>
      <link>https://feed.example/fresh</link>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title>Stale Post</title>
      <link>https://feed.example/stale</link>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title>Undated Post</title>
      <link>https://feed.example/undated</link>
    </item>
  </channel>
</rss>`, fresh.Format(time.RFC1123Z), stale.Format(time.RFC1123Z))
}

func TestRSSFetcherFiltersStaleEntries(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeedBody(now.Add(-2*time.Hour), now.Add(-48*time.Hour)))
	}))
	defer srv.Close()

	fetcher := NewRSSFetcher(5 * time.Second)
	items, err := fetcher.Fetch(context.Background(), Source{
		ID:    "test-feed",
		Type:  "rss",
		Limit: 5,
		Config: map[string]any{
			ConfigFeedURLKey:   srv.URL,
			ConfigMaxAgeHrsKey: 24,
		},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected fresh and undated entries only, got %d", len(items))
	}
	for _, item := range items {
		if item.Title == "Stale Post" {
			t.Fatalf("stale entry passed the cutoff: %+v", item)
		}
	}

	// Fresher entries carry a higher remaining-freshness score.
	var fresh, undated float64
	for _, item := range items {
		switch item.Title {
		case "Fresh Post":
			fresh = item.Score
		case "Undated Post":
			undated = item.Score
		}
	}
	if fresh <= 0 || undated != 24 {
		t.Fatalf("unexpected scores fresh=%v undated=%v", fresh, undated)
	}
	if undated < fresh {
		t.Fatalf("undated entries should score as just published")
	}
}

func TestRSSFetcherErrorWhenAllStale(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
<item><title>Old</title><link>https://x.example/old</link><pubDate>%s</pubDate></item>
</channel></rss>`, now.Add(-72*time.Hour).Format(time.RFC1123Z))
	}))
	defer srv.Close()

	fetcher := NewRSSFetcher(5 * time.Second)
	if _, err := fetcher.Fetch(context.Background(), Source{
		ID:     "test-feed",
		Type:   "rss",
		Limit:  5,
		Config: map[string]any{ConfigFeedURLKey: srv.URL},
	}); err == nil {
		t.Fatalf("expected error when every entry is stale")
	}
}
