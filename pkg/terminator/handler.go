package terminator

import (
	"context"
	"encoding/json"

	"github.com/kluhan/kraken/pkg/dispatch"
	"github.com/kluhan/kraken/pkg/types"
)

// Handler adapts a Terminator predicate into a dispatch.Handler, so it
// can be registered under a terminator.* task name and invoked by the
// Stage Processor the same way every other task kind is: submit a
// Signature, block for the answer. Mirrors terminator_sig.apply().get()
// in stage_processor.py - the original calls its terminator task
// synchronously too, just through Celery's local-apply path rather than
// a Dispatcher abstraction.
func Handler(term Terminator) dispatch.Handler {
	return func(_ context.Context, sig types.Signature) (map[string]any, error) {
		stage, err := decodeStage(sig.Kwargs["stage"])
		if err != nil {
			return nil, err
		}
		return map[string]any{"terminated": term(stage.Progress)}, nil
	}
}

func decodeStage(v any) (types.Stage, error) {
	if stage, ok := v.(types.Stage); ok {
		return stage, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return types.Stage{}, err
	}
	var stage types.Stage
	if err := json.Unmarshal(raw, &stage); err != nil {
		return types.Stage{}, err
	}
	return stage, nil
}
