package notify

import (
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
)

// Event is the run-outcome payload delivered to notification sinks.
type Event struct {
	App        string               `json:"app"`
	Status     domain.PublishStatus `json:"status"`
	PostID     string               `json:"post_id,omitempty"`
	Error      string               `json:"error,omitempty"`
	Title      string               `json:"title,omitempty"`
	URL        string               `json:"url,omitempty"`
	SourceID   string               `json:"source_id,omitempty"`
	Method     string               `json:"generation_method,omitempty"`
	Text       string               `json:"text,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// NewEvent builds an Event from a run's result and the draft it published
// (draft may be zero when the run failed before generating one).
func NewEvent(app string, result domain.PublishResult, draft domain.PostDraft) Event {
	return Event{
		App:        app,
		Status:     result.Status,
		PostID:     result.PostID,
		Error:      result.Error,
		Title:      draft.Candidate.Title,
		URL:        draft.Candidate.URL,
		SourceID:   draft.Candidate.SourceID,
		Method:     string(draft.Method),
		Text:       draft.Text,
		OccurredAt: time.Now().UTC(),
	}
}
