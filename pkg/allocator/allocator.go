// Package allocator implements the Resource Allocator strategies a
// Series picks from to decide which targets its Scheduler queues on
// each step: Static (drain the backlog once, in queued-order), and the
// bucketed pair Uniform/Proportional (partition targets by a weight
// field into exponential-size buckets and draw from each bucket in
// proportion to its importance). Grounded on
// original_source/kraken/core/allocators/*.py.
package allocator

import (
	"context"

	"github.com/kluhan/kraken/pkg/types"
)

// Allocator yields successive batches of targets to queue. Next
// reports ok=false once the allocator has nothing further to offer -
// Static does this once its backlog is drained; the bucketed
// allocators never do, mirroring the original's itertools.count(0)
// loop, which runs until the caller stops pulling.
type Allocator interface {
	Next(ctx context.Context) (targets []types.Target, ok bool, err error)
}
