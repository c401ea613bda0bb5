package memory

import (
	"fmt"
	"strings"
	"time"
)

// Package memory provides the recent-post store: dedup keys of items already
// posted, with the posted text retained for the generator's anti-repetition
// context. Read at the start of a run, appended only after a successful post.

// Store tracks recently posted dedup keys and texts.
type Store interface {
	Close() error
	Seen(key string) (bool, error)
	MarkPosted(key, text string) error
	RecentTexts(limit int) ([]string, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	EntryTTL        time.Duration
	CleanupInterval time.Duration
	MaxEntries      int
}

const (
	defaultEntryTTL        = 5 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
	defaultMaxEntries      = 100
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.EntryTTL <= 0 {
		opts.EntryTTL = defaultEntryTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                        { return nil }
func (noopStore) Seen(string) (bool, error)           { return false, nil }
func (noopStore) MarkPosted(string, string) error     { return nil }
func (noopStore) RecentTexts(int) ([]string, error)   { return nil, nil }
