package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/devpulse-hq/devpulse-bot/internal/config"
	"github.com/devpulse-hq/devpulse-bot/internal/domain"
	"github.com/devpulse-hq/devpulse-bot/internal/logger"
	"github.com/devpulse-hq/devpulse-bot/internal/memory"
	"github.com/devpulse-hq/devpulse-bot/internal/pipeline"
	"github.com/devpulse-hq/devpulse-bot/pkg/httpclient"
	"github.com/devpulse-hq/devpulse-bot/pkg/notify"
	"github.com/devpulse-hq/devpulse-bot/pkg/poster"
	"github.com/devpulse-hq/devpulse-bot/pkg/sources"
)

// ErrRunInProgress means a run was requested while the previous one was
// still executing. The scheduler skips the tick instead of queuing it.
var ErrRunInProgress = errors.New("run already in progress")

// Bot represents the posting bot runtime. It wires sources, the pipeline,
// the poster, recent-post memory, and notification sinks, and drives either
// a single run or the daily schedule loop.
type Bot struct {
	cfg          *config.Config
	sourceReg    *sources.Registry
	orchestrator *pipeline.Orchestrator
	poster       *poster.Poster
	fanout       *notify.Fanout
	store        memory.Store
	loc          *time.Location
	log          logger.Logger

	runMu sync.Mutex
}

// NewBot builds a bot runtime from config files.
func NewBot(ctx context.Context, cfg *config.Config, log logger.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	sourceList := sourceReg.All()
	sourceIDs := make([]string, 0, len(sourceList))
	for _, s := range sourceList {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	fetchClient := sources.DefaultHTTPClient(cfg.FetchTimeout)
	fetcherReg := sources.DefaultFetcherRegistry(fetchClient, cfg.FetchTimeout)
	aggregator := pipeline.NewAggregator(fetcherReg, cfg.FetchTimeout, log)

	var backend pipeline.ChatBackend
	if cfg.GroqAPIKey != "" {
		backend = pipeline.NewGroqBackend(cfg.GroqAPIKey, cfg.GenerateBaseURL, cfg.GenerateTimeout)
	} else {
		log.WarnObj("generation backend not configured, template fallback only", "generate_config", map[string]any{
			"base_url": cfg.GenerateBaseURL,
		})
	}
	generator := pipeline.NewGenerator(backend, pipeline.GeneratorOptions{
		Model:       cfg.GenerateModel,
		MaxTokens:   cfg.GenerateMaxTokens,
		Temperature: cfg.GenerateTemperature,
		CharLimit:   cfg.CharLimit,
	}, log)

	enricher := pipeline.NewEnricher(httpclient.NewRestyClient(cfg.FetchTimeout), log)

	post, err := buildPoster(cfg, log)
	if err != nil {
		return nil, err
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := memory.NewStore(cfg.StorageType, cfg.BBoltPath, memory.Options{
		EntryTTL:        cfg.MemoryTTL,
		CleanupInterval: cfg.MemoryCleanupInterval,
		MaxEntries:      cfg.MemoryMaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("init recent-post memory: %w", err)
	}
	log.InfoObj("recent-post memory initialized", "memory_config", map[string]any{
		"type":        cfg.StorageType,
		"path":        cfg.BBoltPath,
		"ttl_seconds": int(cfg.MemoryTTL.Seconds()),
		"max_entries": cfg.MemoryMaxEntries,
	})

	orchestrator := pipeline.NewOrchestrator(aggregator, generator, enricher, post, store, sourceList, pipeline.Options{
		DryRun:            cfg.DryRun,
		CandidateAttempts: cfg.CandidateAttempts,
		RecentTextsLimit:  cfg.RecentTextsForPrompt,
	}, log)

	return &Bot{
		cfg:          cfg,
		sourceReg:    sourceReg,
		orchestrator: orchestrator,
		poster:       post,
		fanout:       fanout,
		store:        store,
		loc:          loc,
		log:          log,
	}, nil
}

// buildPoster constructs the platform client. Dry-run mode tolerates missing
// credentials since it never touches the network.
func buildPoster(cfg *config.Config, log logger.Logger) (*poster.Poster, error) {
	opts := poster.Options{
		Retries: cfg.PublishRetries,
		Backoff: cfg.PublishBackoff,
		Timeout: cfg.FetchTimeout,
	}

	creds := poster.Credentials{
		APIKey:            cfg.XAPIKey,
		APISecret:         cfg.XAPISecret,
		AccessToken:       cfg.XAccessToken,
		AccessTokenSecret: cfg.XAccessTokenSecret,
	}

	post, err := poster.New(creds, opts, log)
	if err != nil {
		if !cfg.DryRun {
			return nil, fmt.Errorf("init poster: %w", err)
		}
		log.WarnObj("platform credentials incomplete, dry-run continues without them", "poster_config", map[string]any{
			"missing": cfg.ValidateCredentials(),
		})
		return poster.NewWithClient(httpclient.NewRestyHTTPClient(cfg.FetchTimeout), opts, log), nil
	}
	return post, nil
}

// buildFanout loads notifier configs and constructs the sinks. A missing
// notifiers file disables notifications rather than failing startup.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*notify.Fanout, error) {
	if cfg.NotifiersFile == "" {
		return notify.NewFanout(nil), nil
	}
	if _, err := os.Stat(cfg.NotifiersFile); os.IsNotExist(err) {
		log.InfoObj("notifiers file absent, notifications disabled", "notifiers_file", cfg.NotifiersFile)
		return notify.NewFanout(nil), nil
	}

	notifierReg, err := notify.LoadRegistry(cfg.NotifiersFile)
	if err != nil {
		return nil, fmt.Errorf("load notifiers registry: %w", err)
	}

	enabled := notifierReg.Enabled()
	clients, err := notify.BuildAll(ctx, notify.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build notifiers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, nc := range enabled {
		summaries = append(summaries, map[string]string{"id": nc.ID, "type": nc.Type})
	}
	log.InfoObj("notifiers registry loaded", "notifiers_meta", map[string]any{
		"count":     len(summaries),
		"notifiers": summaries,
	})

	return notify.NewFanout(clients), nil
}

// RunOnce executes a single pipeline pass. Overlapping invocations are
// rejected with ErrRunInProgress; the current run is never interrupted.
func (b *Bot) RunOnce(ctx context.Context) error {
	if !b.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer b.runMu.Unlock()

	start := time.Now()
	b.log.InfoObj("run started", "run_meta", map[string]any{
		"dry_run":       b.cfg.DryRun,
		"sources_count": len(b.sourceReg.All()),
		"started_at":    start.UTC(),
	})

	result, draft, err := b.orchestrator.Run(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	b.emit(ctx, result, draft)

	b.log.InfoObj("run completed", "run_meta", map[string]any{
		"status":     string(result.Status),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return err
}

// emit fans the run outcome out to the notification sinks. Sink failures are
// logged and never affect the run result.
func (b *Bot) emit(ctx context.Context, result domain.PublishResult, draft domain.PostDraft) {
	if b.fanout.Size() == 0 {
		return
	}
	evt := notify.NewEvent(b.cfg.AppName, result, draft)
	delivered, err := b.fanout.Send(ctx, evt)
	if err != nil {
		b.log.WarnObj("some notification sinks failed", "notify_error", map[string]any{
			"delivered": delivered,
			"total":     b.fanout.Size(),
			"error":     err.Error(),
		})
		return
	}
	b.log.DebugObj("run outcome delivered to sinks", "notify_meta", map[string]any{
		"delivered": delivered,
	})
}

// Run drives the daily schedule until the context is cancelled. Each fire
// triggers one pipeline pass at the configured local wall-clock time.
func (b *Bot) Run(ctx context.Context) error {
	next := nextFireTime(time.Now().In(b.loc), b.cfg.PostHour, b.cfg.PostMin, b.loc)
	b.log.InfoObj("schedule loop starting", "schedule_state", map[string]any{
		"post_time": fmt.Sprintf("%02d:%02d", b.cfg.PostHour, b.cfg.PostMin),
		"timezone":  b.cfg.Timezone,
		"next_fire": next,
	})

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.InfoObj("schedule loop exiting", "reason", ctx.Err())
			return nil
		case <-timer.C:
			if err := b.RunOnce(ctx); err != nil {
				if errors.Is(err, ErrRunInProgress) {
					b.log.WarnObj("scheduled run skipped, previous run still active", "schedule_state", nil)
				} else if ctx.Err() != nil {
					b.log.InfoObj("schedule loop exiting", "reason", ctx.Err())
					return nil
				} else {
					b.log.ErrorObj("scheduled run failed", "error", err)
				}
			}
			next = nextFireTime(time.Now().In(b.loc), b.cfg.PostHour, b.cfg.PostMin, b.loc)
			b.log.InfoObj("next run scheduled", "schedule_state", map[string]any{
				"next_fire": next,
			})
			timer.Reset(time.Until(next))
		}
	}
}

// VerifyCredentials checks the configured platform keys against the API.
func (b *Bot) VerifyCredentials(ctx context.Context) (poster.User, error) {
	return b.poster.VerifyCredentials(ctx)
}

// Close releases the recent-post memory backend.
func (b *Bot) Close() {
	if b == nil || b.store == nil {
		return
	}
	if err := b.store.Close(); err != nil {
		b.log.ErrorObj("memory close failed", "error", err)
	}
}
