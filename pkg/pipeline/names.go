package pipeline

// Pipeline names, used both as the Signature.Name suffix Stage
// definitions reference and as the key under which a Stage's
// aggregated PipelineResult is stored in StageResult.PipelineResults.
const (
	DataStoragePipelineName    = "data_storage"
	TargetDiscoveryPipelineName = "target_discovery"
)
