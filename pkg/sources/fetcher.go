package sources

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/devpulse-hq/devpulse-bot/pkg/httpclient"
)

// fetcherRegistry implements FetcherRegistry with id-specific overrides on
// top of type-based defaults.
type fetcherRegistry struct {
	fetchersByID   map[string]Fetcher
	fetchersByType map[string]Fetcher
	mu             sync.RWMutex
}

// NewFetcherRegistry builds a registry from type-based fetchers plus optional
// source-specific overrides keyed by source id.
func NewFetcherRegistry(typeFetchers map[string]Fetcher, overrides ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchersByID:   make(map[string]Fetcher),
		fetchersByType: make(map[string]Fetcher),
	}

	for typ, f := range typeFetchers {
		reg.register(reg.fetchersByType, typ, f)
	}
	for _, f := range overrides {
		if f != nil {
			reg.register(reg.fetchersByID, f.ID(), f)
		}
	}

	return reg
}

func (r *fetcherRegistry) register(m map[string]Fetcher, key string, f Fetcher) {
	if f == nil {
		return
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return
	}

	r.mu.Lock()
	m[key] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the given source based on its id or type.
func (r *fetcherRegistry) FetcherFor(cfg Source) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("fetcher registry is nil")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("source id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.fetchersByID[strings.ToLower(strings.TrimSpace(cfg.ID))]; ok {
		return f, nil
	}
	if f, ok := r.fetchersByType[strings.ToLower(strings.TrimSpace(cfg.Type))]; ok {
		return f, nil
	}

	return nil, fmt.Errorf("no fetcher registered for source %q (type %q)", cfg.ID, cfg.Type)
}

// DefaultHTTPClient returns a tuned HTTP client for source fetchers.
func DefaultHTTPClient(timeout time.Duration) HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return httpclient.NewRestyClient(timeout)
}

// DefaultFetcherRegistry wires up the known source fetchers.
func DefaultFetcherRegistry(client HTTPClient, timeout time.Duration) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient(timeout)
	}

	typeFetchers := map[string]Fetcher{
		domain.SourceTypeHackerNews: NewHackerNewsFetcher(client),
		domain.SourceTypeGitHub:     NewGitHubFetcher(client),
		domain.SourceTypeRSS:        NewRSSFetcher(timeout),
	}

	return NewFetcherRegistry(typeFetchers)
}
