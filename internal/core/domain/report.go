package domain

import (
	"fmt"
	"time"
)

// Stage names a pipeline stage in failure reports.
type Stage string

// Pipeline stages in execution order.
const (
	StageBoundaries Stage = "boundaries"
	StageBlocks     Stage = "blocks"
	StageMentions   Stage = "mentions"
	StageOpinions   Stage = "opinions"
	StageExport     Stage = "export"
)

// FailureKind classifies a per-unit failure.
type FailureKind string

// Failure kinds, following the error taxonomy.
const (
	// FailureInvariant is an input invariant violation; the unit was dropped.
	FailureInvariant FailureKind = "invariant"

	// FailureCapability is an external capability failure after retries.
	FailureCapability FailureKind = "capability"

	// FailureRepaired is a schema or verbatim violation corrected in place.
	FailureRepaired FailureKind = "repaired"
)

// UnitFailure reports one unit that did not make it through a stage.
type UnitFailure struct {
	UnitID string      `json:"unit_id"`
	Stage  Stage       `json:"stage"`
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// String formats the failure for logs and CLI output.
func (f UnitFailure) String() string {
	return fmt.Sprintf("%s [%s/%s]: %s", f.UnitID, f.Stage, f.Kind, f.Reason)
}

// RunReport summarises one pipeline run for a video. A run can succeed
// partially; every unit that was dropped is named in Failures.
type RunReport struct {
	RunID              string        `json:"run_id"`
	VideoID            string        `json:"video_id"`
	Segments           int           `json:"segments"`
	Blocks             int           `json:"blocks"`
	MentionNegative    int           `json:"mention_negative"`
	CacheHits          int           `json:"cache_hits"`
	OpinionsWritten    int           `json:"opinions_written"`
	OpinionCalls       int           `json:"opinion_calls"`
	SegmentationReused bool          `json:"segmentation_reused"`
	Exported           bool          `json:"exported"`
	Failures           []UnitFailure `json:"failures"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
}

// AddFailure appends a failure to the report.
func (r *RunReport) AddFailure(f UnitFailure) {
	r.Failures = append(r.Failures, f)
}

// FailedUnits returns the IDs of units that failed hard (repaired units are
// still exported and are not listed).
func (r *RunReport) FailedUnits() []string {
	var ids []string
	for _, f := range r.Failures {
		if f.Kind == FailureRepaired {
			continue
		}
		ids = append(ids, f.UnitID)
	}
	return ids
}

// ProcessOptions controls one pipeline run.
type ProcessOptions struct {
	// Force bypasses every cache and overwrites stored records.
	Force bool

	// SkipOpinions stops after segmentation and export.
	SkipOpinions bool

	// SkipExport leaves the stored export snapshot untouched.
	SkipExport bool
}

// RunStatus describes a pipeline run that is still in progress.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	VideoID   string    `json:"video_id"`
	Stage     Stage     `json:"stage"`
	StartedAt time.Time `json:"started_at"`
}
