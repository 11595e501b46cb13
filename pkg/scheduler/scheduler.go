// Package scheduler drives one Crawl: it pulls target batches from a
// Resource Allocator, injects each target into the Crawl's stage
// blueprint, creates an ExecutionToken per target, submits the Crawl
// Task through a Dispatcher, and paces itself against step_period.
// Grounded on original_source/kraken/core/scheduler.py and
// schedulers/abstract_scheduler.py.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kluhan/kraken/pkg/allocator"
	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/types"
)

// Store is the subset of the Metadata Store the Scheduler needs to
// persist what it creates: an ExecutionToken per dispatched target,
// the per-series queued-timestamp push the Static allocator's staleness
// filter reads (the Uniform and Proportional allocators read the
// per-crawl QueuedByCrawl times instead), and the Crawl's own
// submitted/expectations counters.
type Store interface {
	CreateExecutionToken(ctx context.Context, token *types.ExecutionToken) error
	MarkTargetQueued(ctx context.Context, seriesID, targetID string, at time.Time) error
	IncrementCrawlCounters(ctx context.Context, crawlID string, submittedDelta int64, expectations map[string]any) error
}

// Config paces the Scheduler's steps. StepSize only matters to the
// allocators themselves (it's passed to them at construction); the
// Scheduler cares about StepPeriod, the minimum wall-clock time
// between successive allocator pulls. RateLimit, when positive, caps
// the crawl-task submission rate to RateLimit tasks/second - the same
// golang.org/x/time/rate use as the teacher's pkg/crawler.Config.RateLimit,
// applied here to task dispatch rather than HTTP requests.
type Config struct {
	StepPeriod time.Duration
	RateLimit  float64
}

// Scheduler ties a Resource Allocator to a Dispatcher for one Crawl.
type Scheduler struct {
	alloc      allocator.Allocator
	dispatcher dispatch.Dispatcher
	store      Store
	crawl      types.Crawl
	seriesID   string
	crawlTask  types.Signature
	stepPeriod time.Duration
	lastStep   time.Time
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New constructs a Scheduler. crawlTask is the Signature cloned with
// crawl_id/stages/execution_token_id kwargs and submitted per target,
// mirroring AbstractScheduler.__submit's task.clone(...).apply_async().
func New(alloc allocator.Allocator, dispatcher dispatch.Dispatcher, store Store, crawl types.Crawl, seriesID string, crawlTask types.Signature, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		alloc:      alloc,
		dispatcher: dispatcher,
		store:      store,
		crawl:      crawl,
		seriesID:   seriesID,
		crawlTask:  crawlTask,
		stepPeriod: cfg.StepPeriod,
		logger:     logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return s
}

// Run pulls batches until the allocator reports exhaustion (Static,
// once its backlog drains) or ctx is cancelled (the only way the
// unbounded Uniform/Proportional allocators ever stop).
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, ok, err := s.alloc.Next(ctx)
		if err != nil {
			return fmt.Errorf("scheduler: allocate: %w", err)
		}
		if !ok {
			s.logger.Info("allocator exhausted, scheduler exiting", zap.String("crawl", s.crawl.Name))
			return nil
		}

		if len(batch) > 0 {
			if err := s.submit(ctx, batch); err != nil {
				return fmt.Errorf("scheduler: submit: %w", err)
			}
		}

		s.wait(ctx)
	}
}

// submit injects each target into a clone of the crawl's stages, sums
// per-stage expectations from the target's own last-known statistics,
// creates an ExecutionToken, and dispatches the crawl task. Mirrors
// AbstractScheduler.__submit.
func (s *Scheduler) submit(ctx context.Context, targets []types.Target) error {
	expectations := make(map[string]map[string]any, len(s.crawl.Stages))
	for _, stage := range s.crawl.Stages {
		expectations[stage.Name] = map[string]any{}
	}

	now := time.Now().UTC()
	var submitted int64

	for _, target := range targets {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		stages := make([]types.Stage, len(s.crawl.Stages))
		for i, stage := range s.crawl.Stages {
			clone := stage.Clone()
			clone.Target = target.Slim()
			stages[i] = clone

			if latest, ok := target.LatestStatistics(s.seriesID, stage.Name); ok {
				expectations[stage.Name] = types.CombineByAddition(expectations[stage.Name], statisticToMap(latest))
			}
		}

		token := types.NewExecutionToken(uuid.NewString(), s.crawl.ID, target.ID, "")
		if err := s.store.CreateExecutionToken(ctx, token); err != nil {
			return fmt.Errorf("create execution token: %w", err)
		}

		task := s.crawlTask.Clone(map[string]any{
			"crawl_id":           s.crawl.ID,
			"stages":             stages,
			"execution_token_id": token.ID,
		})
		if _, err := s.dispatcher.Submit(ctx, task); err != nil {
			return fmt.Errorf("submit crawl task: %w", err)
		}

		if err := s.store.MarkTargetQueued(ctx, s.seriesID, target.ID, now); err != nil {
			return fmt.Errorf("mark target queued: %w", err)
		}
		submitted++
	}

	flatExpectations := make(map[string]any, len(expectations))
	for name, stats := range expectations {
		flatExpectations[name] = stats
	}
	if err := s.store.IncrementCrawlCounters(ctx, s.crawl.ID, submitted, flatExpectations); err != nil {
		return fmt.Errorf("increment crawl counters: %w", err)
	}

	s.logger.Debug("submitted tasks to queue", zap.Int64("count", submitted))
	return nil
}

// wait blocks until step_period has elapsed since the last step,
// warning (rather than blocking indefinitely) if a step already took
// longer than that. Mirrors AbstractScheduler._wait, but uses a timer
// selected against ctx so cancellation during the pacing sleep is
// immediate rather than waiting out the remainder.
func (s *Scheduler) wait(ctx context.Context) {
	now := time.Now()
	if s.lastStep.IsZero() {
		s.lastStep = now
		return
	}

	next := s.lastStep.Add(s.stepPeriod)
	if !now.Before(next) {
		s.logger.Warn("scheduler is running slower than specified")
		s.lastStep = now
		return
	}

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	s.lastStep = time.Now()
}

func statisticToMap(s types.Statistic) map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
