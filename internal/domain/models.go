package domain

import "time"

// Domain contains the core models flowing through the pipeline.

// Known source adapter types. Ranking uses this order (hackernews highest)
// as the final deterministic tie-break.
const (
	SourceTypeHackerNews = "hackernews"
	SourceTypeGitHub     = "github"
	SourceTypeRSS        = "rss"
)

// CandidateItem is a single trending item fetched from one source.
// Immutable once produced by a source adapter. Score is on the source's
// own scale (upvotes, stars, recency) and is not comparable across sources.
type CandidateItem struct {
	SourceID   string    `json:"source_id"`
	SourceType string    `json:"source_type"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Score      float64   `json:"score"`
	Category   string    `json:"category"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// RankedCandidate is a CandidateItem with a cross-source comparable score
// in [0,1] and a stable dedup key identifying the same underlying item
// across sources and runs.
type RankedCandidate struct {
	CandidateItem
	NormalizedScore float64 `json:"normalized_score"`
	DedupKey        string  `json:"dedup_key"`
}

// GenerationMethod records how a draft's text was produced.
type GenerationMethod string

const (
	GenerationAI       GenerationMethod = "ai"
	GenerationFallback GenerationMethod = "fallback_template"
)

// PostDraft is finished post text ready for publishing. LengthOK is true
// when the text satisfies the platform character limit; the generator
// guarantees this before a draft reaches the poster.
type PostDraft struct {
	Candidate RankedCandidate  `json:"candidate"`
	Text      string           `json:"text"`
	Method    GenerationMethod `json:"generation_method"`
	LengthOK  bool             `json:"length_ok"`
}

// PublishStatus is the terminal outcome of a publish attempt.
type PublishStatus string

const (
	StatusPosted PublishStatus = "posted"
	StatusDryRun PublishStatus = "dry_run"
	StatusFailed PublishStatus = "failed"
)

// PublishResult describes one publish attempt. PostID is set only when
// Status is posted; Error only when Status is failed.
type PublishResult struct {
	Status    PublishStatus `json:"status"`
	PostID    string        `json:"post_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
