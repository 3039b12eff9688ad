// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The pipeline services (BoundarySegmenter, BlockSegmenter, OpinionFilter,
// ExportAssembler) are composed by Processor, which runs them in order for
// one video at a time. Every engine call goes through Retry.
package services
