package sources

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/devpulse-hq/devpulse-bot/pkg/httpclient"
)

type fakeResponse struct {
	body   []byte
	status int
}

func (f *fakeResponse) Body() []byte    { return f.body }
func (f *fakeResponse) StatusCode() int { return f.status }

// fakeHTTPClient replays canned responses and records the queries it saw.
type fakeHTTPClient struct {
	respond func(url string, query map[string]string) (httpclient.Response, error)
	queries []map[string]string
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, query map[string]string, _ map[string]string) (httpclient.Response, error) {
	f.queries = append(f.queries, query)
	if f.respond == nil {
		return &fakeResponse{body: []byte(`{}`), status: http.StatusOK}, nil
	}
	return f.respond(url, query)
}

func TestHackerNewsFetcherDedupesAndSorts(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ string, query map[string]string) (httpclient.Response, error) {
			// Both queries return story 1; the second also returns 2 and 3.
			body := `{"hits":[
				{"objectID":"1","title":"First","url":"https://a.example","points":150}
			]}`
			if query["query"] == "LLM" {
				body = `{"hits":[
					{"objectID":"1","title":"First","url":"https://a.example","points":150},
					{"objectID":"2","title":"Second","url":"","points":400},
					{"objectID":"3","title":"Third","url":"https://c.example","points":90}
				]}`
			}
			return &fakeResponse{body: []byte(body), status: http.StatusOK}, nil
		},
	}

	fetcher := NewHackerNewsFetcher(client)
	items, err := fetcher.Fetch(context.Background(), Source{
		ID:    "hn-top",
		Type:  "hackernews",
		Limit: 5,
		Config: map[string]any{
			ConfigQueriesKey:   []any{"AI", "LLM"},
			ConfigMinPointsKey: 100,
		},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 deduped items, got %d", len(items))
	}
	if items[0].Score != 400 {
		t.Fatalf("expected highest points first, got %+v", items[0])
	}
	// Stories without an external URL point at the discussion page.
	if items[0].URL != "https://news.ycombinator.com/item?id=2" {
		t.Fatalf("expected item page fallback URL, got %q", items[0].URL)
	}

	if len(client.queries) != 2 {
		t.Fatalf("expected one request per query, got %d", len(client.queries))
	}
	if got := client.queries[0]["numericFilters"]; got != "points>100" {
		t.Fatalf("numericFilters = %q", got)
	}
	if got := client.queries[0]["tags"]; got != "story" {
		t.Fatalf("tags = %q", got)
	}
}

func TestHackerNewsFetcherCapsAtLimit(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ string, _ map[string]string) (httpclient.Response, error) {
			body := `{"hits":[`
			for i := 0; i < 5; i++ {
				if i > 0 {
					body += ","
				}
				body += fmt.Sprintf(`{"objectID":"%d","title":"Story %d","url":"https://s%d.example","points":%d}`, i, i, i, 100+i)
			}
			body += `]}`
			return &fakeResponse{body: []byte(body), status: http.StatusOK}, nil
		},
	}

	fetcher := NewHackerNewsFetcher(client)
	items, err := fetcher.Fetch(context.Background(), Source{
		ID:     "hn-top",
		Type:   "hackernews",
		Limit:  2,
		Config: map[string]any{ConfigQueriesKey: []any{"AI"}},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(items))
	}
}

func TestHackerNewsFetcherErrorOnAllQueriesFailing(t *testing.T) {
	client := &fakeHTTPClient{
		respond: func(_ string, _ map[string]string) (httpclient.Response, error) {
			return &fakeResponse{body: []byte("rate limited"), status: http.StatusTooManyRequests}, nil
		},
	}

	fetcher := NewHackerNewsFetcher(client)
	if _, err := fetcher.Fetch(context.Background(), Source{
		ID:     "hn-top",
		Type:   "hackernews",
		Limit:  5,
		Config: map[string]any{ConfigQueriesKey: []any{"AI"}},
	}); err == nil {
		t.Fatalf("expected error when every query fails")
	}
}
