package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/devpulse-hq/devpulse-bot/internal/logger"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a tech-savvy developer who shares interesting finds on X. " +
	"You sound authentic, not corporate. Short, punchy tweets."

const postPromptTemplate = `You are a senior developer who has seen it all. You are tired of the hype cycle.
You are posting on X (Twitter).

CONTEXT (What's trending):
%s

%sTASK:
Write ONE tweet about something from the context.

PERSONA RULES:
1. Speak in lowercase. It's more authentic.
2. Be skeptical but open-minded. Prefer "huh, interesting" over "wow amazing".
3. NO corporate buzzwords (unleash, revolutionize, game-changer).
4. NO "Exciting news!" start.
5. Max 1 emoji (or 0). 💀 and 😭 are okay. 🚀 is BANNED.
6. Don't frame it as a news update. Frame it as "i just saw this and..."
7. Allow fragments. Imperfect grammar is real.

BAD EXAMPLES (Bot behavior):
- "Check out this amazing new AI tool! #AI #Tech" (Too eager)
- "The future of coding is here with GPT-5." (Too formal)
- "Exciting development in the world of Python!" (Marketing bot)

GOOD EXAMPLES (Human behavior):
- "wait, did openai just actually fix the reasoning bug? big if true"
- "everyone arguing about monorepos again. nature is healing."
- "tried the new cursor update. honestly? not bad."
- "i give this new framework 6 months before google kills it"

Output ONLY the tweet text. No quotes.`

// ChatBackend is the slice of the OpenAI-compatible client the generator
// needs; *openai.Client satisfies it.
type ChatBackend interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewGroqBackend builds an OpenAI-compatible client pointed at the Groq API
// with a bounded per-request timeout.
func NewGroqBackend(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// GeneratorOptions tunes the generation request and validation.
type GeneratorOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	CharLimit   int
}

// Generator turns one ranked candidate into post text via the generative
// backend, falling back to a deterministic template when the backend is
// unavailable or the text fails validation. The fallback path is pure string
// formatting, so Generate always returns a valid draft.
type Generator struct {
	backend ChatBackend
	opts    GeneratorOptions
	log     logger.Logger
}

func NewGenerator(backend ChatBackend, opts GeneratorOptions, log logger.Logger) *Generator {
	if log == nil {
		log = logger.NopLogger{}
	}
	if opts.CharLimit <= 0 {
		opts.CharLimit = 280
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 100
	}
	return &Generator{backend: backend, opts: opts, log: log}
}

// Generate produces a draft for the candidate. enrichment is optional page
// context (OG description); recentTexts are the last posted texts, used both
// in the prompt and for the verbatim anti-repetition check.
func (g *Generator) Generate(ctx context.Context, candidate domain.RankedCandidate, enrichment string, recentTexts []string) domain.PostDraft {
	text, err := g.generateAI(ctx, candidate, enrichment, recentTexts)
	if err == nil {
		if reason := g.validate(text, recentTexts); reason == "" {
			return domain.PostDraft{
				Candidate: candidate,
				Text:      text,
				Method:    domain.GenerationAI,
				LengthOK:  true,
			}
		} else {
			g.log.WarnObj("generated text rejected, using fallback", "generation_reject", map[string]any{
				"dedup_key": candidate.DedupKey,
				"reason":    reason,
			})
		}
	} else {
		g.log.WarnObj("generation failed, using fallback", "generation_error", map[string]any{
			"dedup_key": candidate.DedupKey,
			"error":     err.Error(),
		})
	}

	return g.fallback(candidate)
}

// generateAI calls the backend with at most one retry on failure.
func (g *Generator) generateAI(ctx context.Context, candidate domain.RankedCandidate, enrichment string, recentTexts []string) (string, error) {
	if g.backend == nil {
		return "", fmt.Errorf("no generation backend configured")
	}

	prompt := buildPrompt(candidate, enrichment, recentTexts)
	req := openai.ChatCompletionRequest{
		Model:       g.opts.Model,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: float32(g.opts.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := g.backend.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("backend returned no choices")
			continue
		}

		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		text = strings.Trim(text, `"'`)
		return strings.TrimSpace(text), nil
	}
	return "", fmt.Errorf("generation failed after retry: %w", lastErr)
}

// validate returns a rejection reason, or "" when the text is acceptable.
func (g *Generator) validate(text string, recentTexts []string) string {
	if text == "" {
		return "empty text"
	}
	if len([]rune(text)) > g.opts.CharLimit {
		return fmt.Sprintf("exceeds %d characters", g.opts.CharLimit)
	}
	for _, recent := range recentTexts {
		if text == recent {
			return "verbatim repeat of a recent post"
		}
	}
	return ""
}

// fallback builds the deterministic "{title} — {url}" draft, truncated with
// an ellipsis marker when a very long title would overflow the limit.
func (g *Generator) fallback(candidate domain.RankedCandidate) domain.PostDraft {
	text := FallbackText(candidate.Title, candidate.URL, g.opts.CharLimit)
	return domain.PostDraft{
		Candidate: candidate,
		Text:      text,
		Method:    domain.GenerationFallback,
		LengthOK:  true,
	}
}

// FallbackText formats the template fallback and enforces the character limit.
func FallbackText(title, url string, limit int) string {
	text := fmt.Sprintf("%s — %s", strings.TrimSpace(title), strings.TrimSpace(url))
	return Truncate(text, limit)
}

// Truncate cuts text to limit runes, backing up to the previous word
// boundary and appending "..." as the overflow marker.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}

	cut := string(runes[:limit-3])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func buildPrompt(candidate domain.RankedCandidate, enrichment string, recentTexts []string) string {
	var ctxParts []string
	ctxParts = append(ctxParts, fmt.Sprintf("TRENDING (%s / %s):", candidate.SourceID, candidate.Category))
	ctxParts = append(ctxParts, fmt.Sprintf("  • %q (%s)", candidate.Title, scoreSignal(candidate)))
	if enrichment != "" {
		ctxParts = append(ctxParts, fmt.Sprintf("  about: %s", enrichment))
	}

	recent := ""
	if len(recentTexts) > 0 {
		var b strings.Builder
		b.WriteString("YOUR RECENT POSTS (avoid repeating these topics/angles):\n")
		for i, post := range recentTexts {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, post)
		}
		b.WriteString("\n")
		recent = b.String()
	}

	return fmt.Sprintf(postPromptTemplate, strings.Join(ctxParts, "\n"), recent)
}

func scoreSignal(candidate domain.RankedCandidate) string {
	switch candidate.SourceType {
	case domain.SourceTypeHackerNews:
		return fmt.Sprintf("%.0f upvotes", candidate.Score)
	case domain.SourceTypeGitHub:
		return fmt.Sprintf("%.0f stars", candidate.Score)
	default:
		return "trending now"
	}
}
