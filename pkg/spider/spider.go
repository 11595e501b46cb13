// Package spider implements the lazy, finite RequestResult iterator
// driven per target: each call to Next submits the stage's request
// Signature (merged with whatever continuation kwargs the previous
// result produced), blocks for the Dispatcher's result, and stops once
// the target is exhausted or not found. Grounded on
// original_source/kraken/core/spider.py's Spider.__next__.
package spider

import (
	"context"
	"errors"
	"fmt"

	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/types"
)

// ErrExhausted is returned by Next once the spider has no more results
// to yield for its target, mirroring Python's StopIteration.
var ErrExhausted = errors.New("spider: target exhausted")

// Spider iterates RequestResults for a single target, re-submitting
// the stage's request Signature with updated kwargs after each result
// until the target signals it is exhausted or not found.
type Spider struct {
	dispatcher dispatch.Dispatcher
	request    types.Signature
	target     types.SlimTarget

	exhausted  bool
	notFound   bool
	nextKwargs map[string]any
}

// New constructs a Spider over target, seeding the first request's
// kwargs from the target's own kwargs.
func New(dispatcher dispatch.Dispatcher, request types.Signature, target types.SlimTarget) *Spider {
	kwargs := make(map[string]any, len(target.Kwargs))
	for k, v := range target.Kwargs {
		kwargs[k] = v
	}
	return &Spider{
		dispatcher: dispatcher,
		request:    request,
		target:     target,
		nextKwargs: kwargs,
	}
}

// Done reports whether the spider has nothing further to yield.
func (s *Spider) Done() bool {
	return s.exhausted || s.notFound
}

// Next submits the next request and blocks for its RequestResult. It
// returns ErrExhausted once Done() would report true, instead of
// submitting a request that could never be answered.
func (s *Spider) Next(ctx context.Context) (types.RequestResult, error) {
	if s.Done() {
		return types.RequestResult{}, ErrExhausted
	}

	sig := s.request.Clone(s.nextKwargs)
	handle, err := s.dispatcher.Submit(ctx, sig)
	if err != nil {
		return types.RequestResult{}, fmt.Errorf("spider: submit request: %w", err)
	}

	raw, err := handle.Get(ctx)
	if err != nil {
		return types.RequestResult{}, fmt.Errorf("spider: await request: %w", err)
	}

	result, err := decodeRequestResult(raw)
	if err != nil {
		return types.RequestResult{}, fmt.Errorf("spider: decode request result: %w", err)
	}

	if result.TargetNotFound {
		s.notFound = true
	}
	if result.SubsequentKwargs == nil {
		s.exhausted = true
	} else if !s.notFound {
		for k, v := range result.SubsequentKwargs {
			s.nextKwargs[k] = v
		}
	}

	return result, nil
}

// decodeRequestResult adapts the generic map[string]any a Dispatcher
// Handle yields into a typed RequestResult. Request Tasks are expected
// to return exactly the RequestResult field set (see pkg/types); this
// keeps the Dispatcher boundary untyped (map[string]any, matching every
// other Task kind) while giving Spider a typed result to work with.
func decodeRequestResult(raw map[string]any) (types.RequestResult, error) {
	result := types.RequestResult{
		Result: raw["result"],
		Batch:  asBool(raw["batch"]),
		Gain:   asInt(raw["gain"], 1),
		Cost:   asInt(raw["cost"], 1),
	}
	result.TargetNotFound = asBool(raw["target_not_found"])

	if v, ok := raw["target_exhausted"]; ok && v != nil {
		b := asBool(v)
		result.TargetExhausted = &b
	}
	if v, ok := raw["subsequent_kwargs"]; ok && v != nil {
		if m, ok := v.(map[string]any); ok {
			result.SubsequentKwargs = m
		}
	}
	if v, ok := raw["adjacent_targets"]; ok && v != nil {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if st, ok := decodeSlimTarget(item); ok {
					result.AdjacentTargets = append(result.AdjacentTargets, st)
				}
			}
		}
	}
	return result, nil
}

func decodeSlimTarget(v any) (types.SlimTarget, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return types.SlimTarget{}, false
	}
	st := types.SlimTarget{}
	if id, ok := m["id"].(string); ok {
		st.ID = &id
	}
	if tags, ok := m["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				st.Tags = append(st.Tags, s)
			}
		}
	}
	if kwargs, ok := m["kwargs"].(map[string]any); ok {
		st.Kwargs = kwargs
	}
	return st, true
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}
