package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kluhan/kraken/internal/kerrors"
	"github.com/kluhan/kraken/pkg/types"
)

// PoolConfig parameterises an in-process Pool dispatcher.
type PoolConfig struct {
	// Workers is the number of goroutines pulling from the submission
	// channel, mirroring tarsy's WorkerPool.config.WorkerCount.
	Workers int

	// QueueDepth bounds the submission channel's buffer; Submit blocks
	// once it fills, providing natural backpressure on the caller.
	QueueDepth int

	// MaxRetries is how many times a task is retried after a
	// TransientError before being treated as terminal.
	MaxRetries int

	// BaseBackoff and MaxBackoff bound the jittered exponential backoff
	// applied between retries.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultPoolConfig mirrors the defaults gonimbus's bounded crawler
// pipeline and tarsy's worker pool both land on: a handful of workers,
// a modestly buffered queue, three retries with capped backoff.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:     8,
		QueueDepth:  256,
		MaxRetries:  3,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
	}
}

type job struct {
	ctx    context.Context
	sig    types.Signature
	handle *poolHandle
}

type poolHandle struct {
	done   chan struct{}
	result map[string]any
	err    error
}

func (h *poolHandle) Get(ctx context.Context) (map[string]any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *poolHandle) finish(result map[string]any, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// Pool is an in-process Dispatcher: a bounded job channel drained by a
// fixed number of worker goroutines, each invoking the Handler
// registered for the job's task-name prefix. Grounded on tarsy's
// WorkerPool.Start/Stop lifecycle and gonimbus's bounded-channel
// crawler pipeline.
type Pool struct {
	cfg        PoolConfig
	handlers   map[string]Handler
	middleware Middleware

	jobs     chan job
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool constructs a Pool. handlers maps a routing prefix (PrefixCrawler,
// PrefixPipeline, ...) to the Handler responsible for it; Submit returns
// an error for a Signature whose prefix has no registered Handler.
func NewPool(cfg PoolConfig, handlers map[string]Handler, middleware Middleware) *Pool {
	if middleware == nil {
		middleware = NoopMiddleware{}
	}
	p := &Pool{
		cfg:        cfg,
		handlers:   handlers,
		middleware: middleware,
		jobs:       make(chan job, cfg.QueueDepth),
		stopCh:     make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
	return p
}

// Submit enqueues sig for execution and returns a Handle that blocks
// until it completes. Submit itself only blocks if the queue is full.
func (p *Pool) Submit(ctx context.Context, sig types.Signature) (Handle, error) {
	kind := Kind(sig.Name)
	if _, ok := p.handlers[kind]; !ok {
		return nil, fmt.Errorf("dispatch: no handler registered for task %q", sig.Name)
	}
	h := &poolHandle{done: make(chan struct{})}
	select {
	case p.jobs <- job{ctx: ctx, sig: sig, handle: h}:
		return h, nil
	case <-p.stopCh:
		return nil, fmt.Errorf("dispatch: pool is closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close signals all workers to stop accepting new jobs and waits for
// in-flight jobs to finish.
func (p *Pool) Close() error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	return nil
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.jobs:
			p.execute(j)
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) execute(j job) {
	handler := p.handlers[Kind(j.sig.Name)]
	p.middleware.BeforeStart(j.ctx, j.sig)

	var result map[string]any
	var err error
	for attempt := 0; ; attempt++ {
		result, err = handler(j.ctx, j.sig)
		if err == nil {
			break
		}
		if !kerrors.IsRetryable(err) || attempt >= p.cfg.MaxRetries {
			break
		}
		p.middleware.OnRetry(j.ctx, j.sig, err)
		select {
		case <-time.After(p.backoff(attempt)):
		case <-j.ctx.Done():
			err = j.ctx.Err()
			goto done
		}
	}
done:
	if err != nil {
		p.middleware.OnFailure(j.ctx, j.sig, err)
	} else {
		p.middleware.OnSuccess(j.ctx, j.sig, result)
	}
	j.handle.finish(result, err)
}

// backoff returns a jittered exponential delay for the given zero-based
// retry attempt, capped at cfg.MaxBackoff.
func (p *Pool) backoff(attempt int) time.Duration {
	base := p.cfg.BaseBackoff
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	max := p.cfg.MaxBackoff
	if max <= 0 {
		max = 30 * time.Second
	}
	delay := base * time.Duration(1<<uint(attempt))
	if delay > max || delay <= 0 {
		delay = max
	}
	jitter := time.Duration(rand.Int63n(int64(delay) + 1))
	return delay/2 + jitter/2
}
