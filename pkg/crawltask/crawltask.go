// Package crawltask is the Crawl Task: the dispatch.Handler a Scheduler
// submits once per target, driving that target through every Stage of
// its Crawl in sequence and keeping the target's ExecutionToken
// current. Grounded on
// original_source/kraken/core/tasks/multi_stage_crawler.py's
// multi_stage_crawler and CrawlTask's before_start/on_retry/on_failure/
// on_success lifecycle hooks, which here are pkg/scheduler's
// TokenMiddleware instead of celery.Task overrides.
package crawltask

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/stageproc"
	"github.com/kluhan/kraken/pkg/types"
)

// Store is the subset of the Metadata Store the Crawl Task needs to
// keep an ExecutionToken's stage_name/progress current as it advances.
type Store interface {
	LoadExecutionToken(ctx context.Context, id string) (*types.ExecutionToken, error)
	SaveExecutionToken(ctx context.Context, token *types.ExecutionToken) error
}

// Handler drives one target's stage sequence to completion.
type Handler struct {
	dispatcher dispatch.Dispatcher
	store      Store
	logger     *zap.Logger
}

// New constructs a Handler.
func New(dispatcher dispatch.Dispatcher, store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dispatcher: dispatcher, store: store, logger: logger}
}

// Handle implements dispatch.Handler, matching the kwargs the
// Scheduler's crawlTask signature carries: stages, execution_token_id,
// crawl_id. It processes each Stage's Processor to completion before
// moving to the next - mirroring multi_stage_crawler's for loop - and
// returns the final stage's progress.
func (h *Handler) Handle(ctx context.Context, sig types.Signature) (map[string]any, error) {
	stages, err := decodeStages(sig.Kwargs["stages"])
	if err != nil {
		return nil, fmt.Errorf("crawltask: decode stages: %w", err)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("crawltask: no stages to process")
	}

	crawlID, _ := sig.Kwargs["crawl_id"].(string)
	tokenID, _ := sig.Kwargs["execution_token_id"].(string)

	var lastResult types.StageResult
	for i, stage := range stages {
		finalStage := i == len(stages)-1

		if tokenID != "" {
			if err := h.advanceToken(ctx, tokenID, stage.Name); err != nil {
				h.logger.Warn("execution token update failed", zap.String("token_id", tokenID), zap.Error(err))
			}
		}

		processor := stageproc.New(stage, crawlID, finalStage, h.dispatcher, h.logger)
		for {
			result, ok, err := processor.Next(ctx)
			if err != nil {
				return nil, fmt.Errorf("crawltask: stage %q: %w", stage.Name, err)
			}
			lastResult = result
			if !ok {
				break
			}
		}
	}

	encoded, err := json.Marshal(lastResult)
	if err != nil {
		return nil, fmt.Errorf("crawltask: marshal final progress: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("crawltask: unmarshal final progress: %w", err)
	}
	return out, nil
}

func (h *Handler) advanceToken(ctx context.Context, tokenID, stageName string) error {
	token, err := h.store.LoadExecutionToken(ctx, tokenID)
	if err != nil {
		return err
	}
	token.StageName = stageName
	token.State = types.ExecutionTokenStarted
	return h.store.SaveExecutionToken(ctx, token)
}

func decodeStages(v any) ([]types.Stage, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var stages []types.Stage
	if err := json.Unmarshal(encoded, &stages); err != nil {
		return nil, err
	}
	return stages, nil
}
