package requests

import (
	"encoding/json"
	"fmt"

	"github.com/kluhan/kraken/pkg/types"
)

// encodeRequestResult turns a typed RequestResult into the
// map[string]any shape dispatch.Handler must return - the inverse of
// pkg/spider's decodeRequestResult. types.RequestResult's JSON tags
// already match the field names the Spider expects, so a plain
// marshal/unmarshal round trip is sufficient; no field-by-field mapping
// is needed on this side of the wire.
func encodeRequestResult(result types.RequestResult) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("requests: marshal request result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("requests: unmarshal request result: %w", err)
	}
	return out, nil
}
