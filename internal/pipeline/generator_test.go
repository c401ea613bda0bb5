package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// stubBackend replays canned completions.
type stubBackend struct {
	texts []string
	err   error
	calls int
}

func (s *stubBackend) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	text := ""
	if len(s.texts) > 0 {
		text = s.texts[0]
		if len(s.texts) > 1 {
			s.texts = s.texts[1:]
		}
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
	}, nil
}

func rankedCandidate(title, url string) domain.RankedCandidate {
	return domain.RankedCandidate{
		CandidateItem: domain.CandidateItem{
			SourceID:   "hn",
			SourceType: domain.SourceTypeHackerNews,
			Title:      title,
			URL:        url,
			Score:      150,
		},
		NormalizedScore: 1.0,
		DedupKey:        "key-" + title,
	}
}

func TestGenerateUsesBackendText(t *testing.T) {
	backend := &stubBackend{texts: []string{`"huh, this one actually looks useful"`}}
	gen := NewGenerator(backend, GeneratorOptions{Model: "test", CharLimit: 280}, nil)

	draft := gen.Generate(context.Background(), rankedCandidate("X", "http://y"), "", nil)
	if draft.Method != domain.GenerationAI {
		t.Fatalf("expected ai method, got %s", draft.Method)
	}
	if draft.Text != "huh, this one actually looks useful" {
		t.Fatalf("expected quotes stripped, got %q", draft.Text)
	}
	if !draft.LengthOK {
		t.Fatalf("expected valid length flag")
	}
}

func TestGenerateFallsBackOnBackendError(t *testing.T) {
	backend := &stubBackend{err: errors.New("timeout")}
	gen := NewGenerator(backend, GeneratorOptions{Model: "test", CharLimit: 280}, nil)

	draft := gen.Generate(context.Background(), rankedCandidate("X", "http://y"), "", nil)
	if draft.Method != domain.GenerationFallback {
		t.Fatalf("expected fallback method, got %s", draft.Method)
	}
	if draft.Text != "X — http://y" {
		t.Fatalf("fallback text = %q", draft.Text)
	}
	if !draft.LengthOK {
		t.Fatalf("fallback drafts are always within the limit")
	}
	if backend.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", backend.calls)
	}
}

func TestGenerateFallsBackWithoutBackend(t *testing.T) {
	gen := NewGenerator(nil, GeneratorOptions{CharLimit: 280}, nil)

	draft := gen.Generate(context.Background(), rankedCandidate("X", "http://y"), "", nil)
	if draft.Method != domain.GenerationFallback || draft.Text != "X — http://y" {
		t.Fatalf("expected template fallback, got %+v", draft)
	}
}

func TestGenerateRejectsOverlongBackendText(t *testing.T) {
	backend := &stubBackend{texts: []string{strings.Repeat("a", 300)}}
	gen := NewGenerator(backend, GeneratorOptions{CharLimit: 280}, nil)

	draft := gen.Generate(context.Background(), rankedCandidate("X", "http://y"), "", nil)
	if draft.Method != domain.GenerationFallback {
		t.Fatalf("overlong text should fall back, got %s", draft.Method)
	}
	if got := len([]rune(draft.Text)); got > 280 {
		t.Fatalf("fallback exceeded limit: %d chars", got)
	}
}

func TestGenerateRejectsVerbatimRepeat(t *testing.T) {
	backend := &stubBackend{texts: []string{"same post again"}}
	gen := NewGenerator(backend, GeneratorOptions{CharLimit: 280}, nil)

	draft := gen.Generate(context.Background(), rankedCandidate("X", "http://y"), "", []string{"same post again"})
	if draft.Method != domain.GenerationFallback {
		t.Fatalf("verbatim repeat should fall back, got %s", draft.Method)
	}
}

func TestTruncateBacksUpToWordBoundary(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	got := Truncate(text, 20)
	if got != "the quick brown..." {
		t.Fatalf("expected cut at word boundary with ellipsis, got %q", got)
	}

	if Truncate("short", 280) != "short" {
		t.Fatalf("text within the limit must be untouched")
	}
}

func TestFallbackTextTruncatesLongTitles(t *testing.T) {
	title := strings.Repeat("word ", 100)
	text := FallbackText(title, "https://example.com", 280)
	if got := len([]rune(text)); got > 280 {
		t.Fatalf("fallback text exceeds limit: %d", got)
	}
	if !strings.HasSuffix(text, "...") {
		t.Fatalf("expected ellipsis on truncated fallback, got %q", text)
	}
}
