package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/devpulse-hq/devpulse-bot/internal/logger"
	"github.com/devpulse-hq/devpulse-bot/internal/memory"
	"github.com/devpulse-hq/devpulse-bot/pkg/sources"
)

// ErrNoCandidates means aggregation produced nothing to post. Fatal for the
// run, but never for the scheduler.
var ErrNoCandidates = errors.New("no candidates available")

// ErrNoValidDraft means every attempted candidate produced an invalid draft.
// Defensive: the generator's fallback should make this unreachable.
var ErrNoValidDraft = errors.New("no valid draft produced")

// State names the orchestrator's run phases. Transitions are one-way; the
// only loop is the bounded candidate retry inside Generating.
type State string

const (
	StateIdle        State = "idle"
	StateAggregating State = "aggregating"
	StateGenerating  State = "generating"
	StatePublishing  State = "publishing"
	StateDone        State = "done"
)

// Poster submits a finished draft to the platform. The returned result is
// terminal: status failed carries the error detail.
type Poster interface {
	Publish(ctx context.Context, draft domain.PostDraft, dryRun bool) domain.PublishResult
}

// Options bounds a single run.
type Options struct {
	DryRun            bool
	CandidateAttempts int
	RecentTextsLimit  int
}

// Orchestrator sequences Aggregating → Generating → Publishing → Done for a
// single run. Aggregation and generation have no external side effects; the
// recent-post memory is written only after a successful post.
type Orchestrator struct {
	aggregator *Aggregator
	generator  *Generator
	enricher   *Enricher
	poster     Poster
	mem        memory.Store
	srcs       []sources.Source
	opts       Options
	log        logger.Logger
}

func NewOrchestrator(agg *Aggregator, gen *Generator, enricher *Enricher, poster Poster, mem memory.Store, srcs []sources.Source, opts Options, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NopLogger{}
	}
	if opts.CandidateAttempts <= 0 {
		opts.CandidateAttempts = 3
	}
	if opts.RecentTextsLimit <= 0 {
		opts.RecentTextsLimit = 10
	}
	return &Orchestrator{
		aggregator: agg,
		generator:  gen,
		enricher:   enricher,
		poster:     poster,
		mem:        mem,
		srcs:       srcs,
		opts:       opts,
		log:        log,
	}
}

// Run executes one pipeline pass. A cancelled run records no result unless
// publishing had already returned. The returned draft is the one handed to
// the poster, zero when the run failed before generating one. The returned
// error is the run's failure reason; a posted result with a non-nil error
// means the post went out but the memory write failed, which risks a future
// duplicate and must reach the operator.
func (o *Orchestrator) Run(ctx context.Context) (domain.PublishResult, domain.PostDraft, error) {
	state := StateAggregating
	o.logState(state)

	candidates := o.aggregator.Collect(ctx, o.srcs, o.mem)
	if err := ctx.Err(); err != nil {
		return domain.PublishResult{}, domain.PostDraft{}, err
	}
	if len(candidates) == 0 {
		result, err := o.done(domain.PublishResult{
			Status:    domain.StatusFailed,
			Error:     ErrNoCandidates.Error(),
			Timestamp: time.Now().UTC(),
		}, ErrNoCandidates)
		return result, domain.PostDraft{}, err
	}

	state = StateGenerating
	o.logState(state)

	recentTexts, err := o.mem.RecentTexts(o.opts.RecentTextsLimit)
	if err != nil {
		o.log.WarnObj("recent texts unavailable for prompt", "memory_error", map[string]any{
			"error": err.Error(),
		})
	}

	draft, err := o.draftFromCandidates(ctx, candidates, recentTexts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.PublishResult{}, domain.PostDraft{}, err
		}
		result, doneErr := o.done(domain.PublishResult{
			Status:    domain.StatusFailed,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		}, err)
		return result, domain.PostDraft{}, doneErr
	}
	if err := ctx.Err(); err != nil {
		return domain.PublishResult{}, domain.PostDraft{}, err
	}

	state = StatePublishing
	o.logState(state)

	result := o.poster.Publish(ctx, draft, o.opts.DryRun)

	if result.Status == domain.StatusPosted {
		if err := o.mem.MarkPosted(draft.Candidate.DedupKey, draft.Text); err != nil {
			// The post is live but the dedup key was not persisted; the next
			// run may repost the same item. Surface it, never swallow it.
			persistErr := fmt.Errorf("post %s published but memory write failed: %w", result.PostID, err)
			o.log.ErrorObj("recent-post memory write failed after posting", "memory_error", map[string]any{
				"post_id":   result.PostID,
				"dedup_key": draft.Candidate.DedupKey,
				"error":     err.Error(),
			})
			result, doneErr := o.done(result, persistErr)
			return result, draft, doneErr
		}
	}

	var runErr error
	if result.Status == domain.StatusFailed {
		runErr = errors.New(result.Error)
	}
	result, doneErr := o.done(result, runErr)
	return result, draft, doneErr
}

// draftFromCandidates walks ranked candidates until one yields a valid
// draft, bounded by the configured attempt count.
func (o *Orchestrator) draftFromCandidates(ctx context.Context, candidates []domain.RankedCandidate, recentTexts []string) (domain.PostDraft, error) {
	attempts := o.opts.CandidateAttempts
	if attempts > len(candidates) {
		attempts = len(candidates)
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return domain.PostDraft{}, err
		}

		candidate := candidates[i]
		enrichment := ""
		if o.enricher != nil {
			enrichment = o.enricher.Describe(ctx, candidate)
		}

		draft := o.generator.Generate(ctx, candidate, enrichment, recentTexts)
		if draft.LengthOK && draft.Text != "" {
			return draft, nil
		}

		o.log.WarnObj("candidate produced invalid draft, advancing", "draft_reject", map[string]any{
			"attempt":   i + 1,
			"dedup_key": candidate.DedupKey,
		})
	}
	return domain.PostDraft{}, ErrNoValidDraft
}

func (o *Orchestrator) done(result domain.PublishResult, err error) (domain.PublishResult, error) {
	o.logState(StateDone)
	o.log.InfoObj("run finished", "run_result", map[string]any{
		"status":  string(result.Status),
		"post_id": result.PostID,
		"error":   result.Error,
	})
	return result, err
}

func (o *Orchestrator) logState(state State) {
	o.log.DebugObj("pipeline state", "state", string(state))
}
