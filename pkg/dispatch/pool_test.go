package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kluhan/kraken/internal/kerrors"
	"github.com/kluhan/kraken/pkg/types"
)

func TestPool_SubmitAndGet(t *testing.T) {
	handlers := map[string]Handler{
		PrefixCrawler: func(_ context.Context, sig types.Signature) (map[string]any, error) {
			return map[string]any{"echo": sig.Kwargs["x"]}, nil
		},
	}
	pool := NewPool(PoolConfig{Workers: 2, QueueDepth: 4, MaxRetries: 1, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, handlers, nil)
	defer pool.Close()

	h, err := pool.Submit(context.Background(), types.Signature{Name: "crawler.run", Kwargs: map[string]any{"x": 42}})
	require.NoError(t, err)

	result, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, result["echo"])
}

func TestPool_UnknownTaskPrefix(t *testing.T) {
	pool := NewPool(DefaultPoolConfig(), map[string]Handler{}, nil)
	defer pool.Close()

	_, err := pool.Submit(context.Background(), types.Signature{Name: "crawler.run"})
	assert.Error(t, err)
}

func TestPool_RetriesTransientThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	handlers := map[string]Handler{
		PrefixPipeline: func(_ context.Context, _ types.Signature) (map[string]any, error) {
			if attempts.Add(1) < 3 {
				return nil, kerrors.NewTransientError(assertAnError())
			}
			return map[string]any{"ok": true}, nil
		},
	}
	pool := NewPool(PoolConfig{Workers: 1, QueueDepth: 1, MaxRetries: 5, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, handlers, nil)
	defer pool.Close()

	h, err := pool.Submit(context.Background(), types.Signature{Name: "pipeline.store"})
	require.NoError(t, err)

	result, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
	assert.Equal(t, int32(3), attempts.Load())
}

func TestPool_NonRetryableFailsImmediately(t *testing.T) {
	var attempts atomic.Int32
	handlers := map[string]Handler{
		PrefixTerminator: func(_ context.Context, _ types.Signature) (map[string]any, error) {
			attempts.Add(1)
			return nil, kerrors.NewTerminalError(assertAnError())
		},
	}
	pool := NewPool(PoolConfig{Workers: 1, QueueDepth: 1, MaxRetries: 5, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, handlers, nil)
	defer pool.Close()

	h, err := pool.Submit(context.Background(), types.Signature{Name: "terminator.static"})
	require.NoError(t, err)

	_, err = h.Get(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

type recordingMiddleware struct {
	successes atomic.Int32
	failures  atomic.Int32
	retries   atomic.Int32
}

func (m *recordingMiddleware) BeforeStart(context.Context, types.Signature) {}
func (m *recordingMiddleware) OnRetry(context.Context, types.Signature, error) {
	m.retries.Add(1)
}
func (m *recordingMiddleware) OnFailure(context.Context, types.Signature, error) {
	m.failures.Add(1)
}
func (m *recordingMiddleware) OnSuccess(context.Context, types.Signature, map[string]any) {
	m.successes.Add(1)
}

func TestPool_MiddlewareObservesOutcome(t *testing.T) {
	mw := &recordingMiddleware{}
	handlers := map[string]Handler{
		PrefixCallback: func(_ context.Context, _ types.Signature) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}
	pool := NewPool(PoolConfig{Workers: 1, QueueDepth: 1, MaxRetries: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, handlers, mw)
	defer pool.Close()

	h, err := pool.Submit(context.Background(), types.Signature{Name: "callback.notify"})
	require.NoError(t, err)
	_, err = h.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), mw.successes.Load())
	assert.Equal(t, int32(0), mw.failures.Load())
}

func assertAnError() error {
	return errTest
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
