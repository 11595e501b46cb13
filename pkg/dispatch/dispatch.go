// Package dispatch abstracts the external task-execution runtime this
// engine hands work off to: the Scheduler submits Crawl Tasks, the
// Stage Processor submits Request/Pipeline/Terminator/Callback Tasks,
// and neither knows or cares whether the runtime backing Dispatcher is
// an in-process worker pool or a message broker.
package dispatch

import (
	"context"
	"strings"

	"github.com/kluhan/kraken/pkg/types"
)

// Task name prefixes used to route a Signature to its handler, mirroring
// the original's Celery task module layout (kraken.core.tasks.<kind>).
const (
	PrefixCrawler    = "crawler."
	PrefixPipeline   = "pipeline."
	PrefixCallback   = "callback."
	PrefixTerminator = "terminator."
	PrefixRequest    = "request."
)

// Kind returns the routing prefix of a dotted task name, or "" if the
// name carries no recognised prefix.
func Kind(taskName string) string {
	for _, p := range []string{PrefixCrawler, PrefixPipeline, PrefixCallback, PrefixTerminator, PrefixRequest} {
		if strings.HasPrefix(taskName, p) {
			return p
		}
	}
	return ""
}

// Handler executes one Signature and returns its result as a generic
// map, matching the shape every Task in this engine communicates in
// (RequestResult, PipelineResult, bool, etc. all round-trip through
// map[string]any at the dispatch boundary).
type Handler func(ctx context.Context, sig types.Signature) (map[string]any, error)

// Handle is a submitted task's join handle. Get blocks until the task
// completes, mirroring allow_join_result(): AsyncResult.get() in the
// original's Spider.
type Handle interface {
	Get(ctx context.Context) (map[string]any, error)
}

// Dispatcher is the external task-execution runtime contract. Submit
// never blocks on task completion; only Handle.Get does.
type Dispatcher interface {
	Submit(ctx context.Context, sig types.Signature) (Handle, error)
	Close() error
}

// Middleware observes a task's lifecycle transitions. Scheduler and
// Stage Processor register a Middleware that drives ExecutionToken
// state transitions (CREATED -> STARTED -> RETRY* -> FINISHED|FAILED)
// so the engine can detect and recover stuck tasks without coupling the
// Dispatcher implementation to ExecutionToken bookkeeping.
type Middleware interface {
	BeforeStart(ctx context.Context, sig types.Signature)
	OnRetry(ctx context.Context, sig types.Signature, err error)
	OnFailure(ctx context.Context, sig types.Signature, err error)
	OnSuccess(ctx context.Context, sig types.Signature, result map[string]any)
}

// NoopMiddleware implements Middleware with no-ops, for dispatchers used
// outside the ExecutionToken-tracked path (tests, one-off scripts).
type NoopMiddleware struct{}

func (NoopMiddleware) BeforeStart(context.Context, types.Signature)                    {}
func (NoopMiddleware) OnRetry(context.Context, types.Signature, error)                 {}
func (NoopMiddleware) OnFailure(context.Context, types.Signature, error)               {}
func (NoopMiddleware) OnSuccess(context.Context, types.Signature, map[string]any)       {}
