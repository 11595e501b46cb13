package sqlitestore

import (
	"github.com/kluhan/kraken/pkg/allocator"
	"github.com/kluhan/kraken/pkg/callback"
	"github.com/kluhan/kraken/pkg/crawltask"
	"github.com/kluhan/kraken/pkg/historic"
	"github.com/kluhan/kraken/pkg/pipeline"
	"github.com/kluhan/kraken/pkg/scheduler"
)

var (
	_ historic.Store         = (*Store)(nil)
	_ pipeline.TargetStore   = (*Store)(nil)
	_ allocator.StaticSource = (*Store)(nil)
	_ allocator.BucketSource = (*UniformSource)(nil)
	_ allocator.BucketSource = (*ProportionalSource)(nil)
	_ scheduler.Store        = (*Store)(nil)
	_ scheduler.TokenStore   = (*Store)(nil)
	_ crawltask.Store        = (*Store)(nil)
	_ callback.Store         = (*Store)(nil)
)
