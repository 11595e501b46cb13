// Package stageproc implements the Stage Processor: it drives a Spider
// across one target's Stage, fanning each RequestResult out to the
// Stage's pipelines, checking terminators, and firing callbacks once
// the stage ends. Grounded on
// original_source/kraken/core/stage_processor.py.
package stageproc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/spider"
	"github.com/kluhan/kraken/pkg/types"
)

// Processor drives one Stage's spider loop to completion, aggregating
// progress into stage.Progress and reporting it after every step.
type Processor struct {
	stage      types.Stage
	crawlID    string
	finalStage bool
	dispatcher dispatch.Dispatcher
	spider     *spider.Spider
	logger     *zap.Logger
	finished   bool
}

// New constructs a Processor for one target's Stage. finalStage is
// passed through to callbacks, mirroring StageProcessor's own
// constructor parameter of the same name.
func New(stage types.Stage, crawlID string, finalStage bool, dispatcher dispatch.Dispatcher, logger *zap.Logger) *Processor {
	if stage.Progress.PipelineResults == nil || stage.Progress.TerminatedBy == nil {
		stage.Progress = types.NewStageResult()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		stage:      stage,
		crawlID:    crawlID,
		finalStage: finalStage,
		dispatcher: dispatcher,
		spider:     spider.New(dispatcher, stage.Request, stage.Target),
		logger:     logger,
	}
}

// Next drives one more spider step and returns the stage's current
// progress. It reports ok=false once the stage has ended - the
// spider exhausted, the target wasn't found, or a terminator fired -
// at which point callbacks have already been fired exactly once.
func (p *Processor) Next(ctx context.Context) (types.StageResult, bool, error) {
	if p.finished {
		return p.stage.Progress, false, nil
	}

	result, err := p.spider.Next(ctx)
	if err != nil {
		if errors.Is(err, spider.ErrExhausted) {
			p.finish(ctx)
			return p.stage.Progress, false, nil
		}
		return types.StageResult{}, false, fmt.Errorf("stageproc: spider: %w", err)
	}

	p.stage.Progress.Cost += int64(result.Cost)
	p.stage.Progress.Gain += int64(result.Gain)

	if !result.TargetNotFound {
		pipelineResults, err := p.executePipelines(ctx, result)
		if err != nil {
			return types.StageResult{}, false, fmt.Errorf("stageproc: pipelines: %w", err)
		}
		for name, pr := range pipelineResults {
			p.stage.Progress.PipelineResults[name] = types.AddPipelineResults(p.stage.Progress.PipelineResults[name], pr)
		}
	}

	if err := p.executeTerminators(ctx); err != nil {
		return types.StageResult{}, false, fmt.Errorf("stageproc: terminators: %w", err)
	}
	if result.TargetNotFound {
		p.stage.Progress.TerminatedBy[types.TerminatorKeyTargetNotFound] = true
	}
	if result.TargetExhausted != nil && *result.TargetExhausted {
		p.stage.Progress.TerminatedBy[types.TerminatorKeyTargetExhausted] = true
	}

	if p.stage.Progress.Terminated() {
		p.finish(ctx)
	}
	return p.stage.Progress, true, nil
}

func (p *Processor) finish(ctx context.Context) {
	p.finished = true
	p.executeCallbacks(ctx)
}

// executePipelines fans every pipeline Signature out concurrently
// (mirroring celery.canvas.group) and joins on all of them, mapping
// results back to their pipeline's name.
func (p *Processor) executePipelines(ctx context.Context, result types.RequestResult) (map[string]types.PipelineResult, error) {
	if len(p.stage.Pipelines) == 0 {
		return nil, nil
	}

	type outcome struct {
		name string
		pr   types.PipelineResult
		err  error
	}
	out := make(chan outcome, len(p.stage.Pipelines))
	var wg sync.WaitGroup

	for _, sig := range p.stage.Pipelines {
		sig := sig
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := sig.Clone(map[string]any{
				"request_result": result,
				"crawl_id":       p.crawlID,
			})
			handle, err := p.dispatcher.Submit(ctx, task)
			if err != nil {
				out <- outcome{sig.Name, types.PipelineResult{}, err}
				return
			}
			raw, err := handle.Get(ctx)
			if err != nil {
				out <- outcome{sig.Name, types.PipelineResult{}, err}
				return
			}
			pr, err := decodePipelineResult(raw)
			out <- outcome{sig.Name, pr, err}
		}()
	}

	wg.Wait()
	close(out)

	results := make(map[string]types.PipelineResult, len(p.stage.Pipelines))
	var firstErr error
	for o := range out {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		results[o.name] = o.pr
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// executeTerminators submits each terminator Signature and blocks for
// its answer, mirroring terminator_sig.apply().get() - synchronous,
// not fire-and-forget, since the Stage Processor needs the verdict
// before deciding whether to keep driving the spider.
func (p *Processor) executeTerminators(ctx context.Context) error {
	for _, sig := range p.stage.Terminators {
		task := sig.Clone(map[string]any{"stage": p.stage})
		handle, err := p.dispatcher.Submit(ctx, task)
		if err != nil {
			return err
		}
		raw, err := handle.Get(ctx)
		if err != nil {
			return err
		}
		if terminated, _ := raw["terminated"].(bool); terminated {
			p.stage.Progress.TerminatedBy[sig.Name] = true
		}
	}
	return nil
}

// executeCallbacks fires every callback Signature and discards the
// result, mirroring callback_group.apply_async() with its promise
// never joined. Submission failures are logged, not propagated - a
// callback is observability, not stage correctness.
func (p *Processor) executeCallbacks(ctx context.Context) {
	for _, sig := range p.stage.Callbacks {
		task := sig.Clone(map[string]any{
			"stage":       p.stage,
			"crawl_id":    p.crawlID,
			"final_stage": p.finalStage,
		})
		if _, err := p.dispatcher.Submit(ctx, task); err != nil {
			p.logger.Warn("callback submission failed", zap.String("callback", sig.Name), zap.Error(err))
		}
	}
}

func decodePipelineResult(raw map[string]any) (types.PipelineResult, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return types.PipelineResult{}, err
	}
	var pr types.PipelineResult
	if err := json.Unmarshal(encoded, &pr); err != nil {
		return types.PipelineResult{}, err
	}
	return pr, nil
}
