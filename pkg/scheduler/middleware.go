package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/kluhan/kraken/pkg/types"
)

// TokenStore is the subset of the Metadata Store TokenMiddleware needs:
// load/save/delete one ExecutionToken by ID, and bump one of a Crawl's
// retried/failed/finished counters. Mirrors the ExecutionToken.objects.get
// / Crawl.objects(id=...).update(inc__targets_*) calls in
// tasks/base.py's CrawlTask hooks.
type TokenStore interface {
	LoadExecutionToken(ctx context.Context, id string) (*types.ExecutionToken, error)
	SaveExecutionToken(ctx context.Context, token *types.ExecutionToken) error
	DeleteExecutionToken(ctx context.Context, id string) error
	IncrementCrawlCounter(ctx context.Context, crawlID, field string, delta int64) error
}

// Crawl counter field names TokenMiddleware increments, matching the
// original's inc__targets_retried/targets_failed/targets_finished.
const (
	CounterRetried  = "targets_retried"
	CounterFailed   = "targets_failed"
	CounterFinished = "targets_finished"
)

// TokenMiddleware drives an ExecutionToken through CREATED -> STARTED ->
// (RETRY)* -> FINISHED|FAILED as a dispatch.Middleware, and increments
// the owning Crawl's retried/failed/finished counters alongside each
// transition. Grounded on CrawlTask's before_start/on_retry/on_failure/
// on_success hooks in original_source/kraken/core/tasks/base.py.
//
// A Signature with no execution_token_id kwarg (a Pipeline/Terminator/
// Callback/Request task, none of which carry one) is left untouched -
// only Crawl Tasks carry the token.
type TokenMiddleware struct {
	store  TokenStore
	logger *zap.Logger
}

// NewTokenMiddleware constructs a TokenMiddleware.
func NewTokenMiddleware(store TokenStore, logger *zap.Logger) *TokenMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenMiddleware{store: store, logger: logger}
}

func tokenID(sig types.Signature) (string, bool) {
	v, ok := sig.Kwargs["execution_token_id"]
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func crawlID(sig types.Signature) (string, bool) {
	v, ok := sig.Kwargs["crawl_id"]
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func (m *TokenMiddleware) BeforeStart(ctx context.Context, sig types.Signature) {
	id, ok := tokenID(sig)
	if !ok {
		return
	}
	token, err := m.store.LoadExecutionToken(ctx, id)
	if err != nil {
		m.logger.Warn("failed to load execution token before start", zap.String("token_id", id), zap.Error(err))
		return
	}
	token.Start()
	if err := m.store.SaveExecutionToken(ctx, token); err != nil {
		m.logger.Warn("failed to save execution token before start", zap.String("token_id", id), zap.Error(err))
	}
}

func (m *TokenMiddleware) OnRetry(ctx context.Context, sig types.Signature, _ error) {
	if id, ok := tokenID(sig); ok {
		if token, err := m.store.LoadExecutionToken(ctx, id); err == nil {
			token.Retry()
			if err := m.store.SaveExecutionToken(ctx, token); err != nil {
				m.logger.Warn("failed to save execution token on retry", zap.String("token_id", id), zap.Error(err))
			}
		} else {
			m.logger.Warn("failed to load execution token on retry", zap.String("token_id", id), zap.Error(err))
		}
	}
	if cid, ok := crawlID(sig); ok {
		if err := m.store.IncrementCrawlCounter(ctx, cid, CounterRetried, 1); err != nil {
			m.logger.Warn("failed to increment crawl retried counter", zap.String("crawl_id", cid), zap.Error(err))
		}
	}
}

func (m *TokenMiddleware) OnFailure(ctx context.Context, sig types.Signature, _ error) {
	if id, ok := tokenID(sig); ok {
		if token, err := m.store.LoadExecutionToken(ctx, id); err == nil {
			token.Fail()
			if err := m.store.SaveExecutionToken(ctx, token); err != nil {
				m.logger.Warn("failed to save execution token on failure", zap.String("token_id", id), zap.Error(err))
			}
		} else {
			m.logger.Warn("failed to load execution token on failure", zap.String("token_id", id), zap.Error(err))
		}
	}
	if cid, ok := crawlID(sig); ok {
		if err := m.store.IncrementCrawlCounter(ctx, cid, CounterFailed, 1); err != nil {
			m.logger.Warn("failed to increment crawl failed counter", zap.String("crawl_id", cid), zap.Error(err))
		}
	}
}

func (m *TokenMiddleware) OnSuccess(ctx context.Context, sig types.Signature, _ map[string]any) {
	if id, ok := tokenID(sig); ok {
		if err := m.store.DeleteExecutionToken(ctx, id); err != nil {
			m.logger.Warn("failed to delete execution token on success", zap.String("token_id", id), zap.Error(err))
		}
	}
	if cid, ok := crawlID(sig); ok {
		if err := m.store.IncrementCrawlCounter(ctx, cid, CounterFinished, 1); err != nil {
			m.logger.Warn("failed to increment crawl finished counter", zap.String("crawl_id", cid), zap.Error(err))
		}
	}
}
