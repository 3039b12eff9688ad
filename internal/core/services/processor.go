package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/core/ports/driving"
	"github.com/custodia-labs/mentions/internal/logger"
)

// Ensure Processor implements the interface.
var _ driving.Processor = (*Processor)(nil)

// Processor sequences the pipeline stages for one video at a time.
type Processor struct {
	boundaries *BoundarySegmenter
	blocks     *BlockSegmenter
	filter     *OpinionFilter
	exporter   *ExportAssembler
	segments   driven.SegmentLedger
	opinions   driven.OpinionLedger

	// Status tracking
	mu     sync.RWMutex
	active map[string]*domain.RunStatus
}

// NewProcessor creates a pipeline processor.
func NewProcessor(
	boundaries *BoundarySegmenter,
	blocks *BlockSegmenter,
	filter *OpinionFilter,
	exporter *ExportAssembler,
	segments driven.SegmentLedger,
	opinions driven.OpinionLedger,
) *Processor {
	return &Processor{
		boundaries: boundaries,
		blocks:     blocks,
		filter:     filter,
		exporter:   exporter,
		segments:   segments,
		opinions:   opinions,
		active:     make(map[string]*domain.RunStatus),
	}
}

// Segment runs the boundary and block passes only.
func (p *Processor) Segment(ctx context.Context, t *domain.Transcript, force bool) (*domain.RunReport, error) {
	return p.Process(ctx, t, domain.ProcessOptions{Force: force, SkipOpinions: true, SkipExport: true})
}

// Process runs every stage for the transcript.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (p *Processor) Process(ctx context.Context, t *domain.Transcript, opts domain.ProcessOptions) (*domain.RunReport, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: transcript is required", domain.ErrInvalidInput)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		VideoID:   t.VideoID,
		StartedAt: time.Now(),
	}
	if err := p.claim(t.VideoID, report.RunID); err != nil {
		return nil, err
	}
	defer p.release(t.VideoID)
	defer func() { report.FinishedAt = time.Now() }()

	log := logger.WithFields(map[string]any{"video_id": t.VideoID, "run_id": report.RunID})

	// 1. Boundaries
	p.setStage(t.VideoID, domain.StageBoundaries)
	logger.Section("Boundaries")
	segments, reused, err := p.runBoundaries(ctx, t, opts.Force)
	if err != nil {
		return report, err
	}
	report.Segments = len(segments)
	report.SegmentationReused = reused
	if err := checkpoint(ctx); err != nil {
		return report, err
	}

	// 2. Blocks
	p.setStage(t.VideoID, domain.StageBlocks)
	logger.Section("Blocks")
	for _, seg := range domain.QASegments(segments) {
		if err := checkpoint(ctx); err != nil {
			return report, err
		}
		if err := p.runBlocks(ctx, t, seg, opts.Force, report); err != nil {
			return report, err
		}
	}
	blocks, err := p.segments.GetBlocks(ctx, t.VideoID)
	if err != nil {
		return report, fmt.Errorf("get blocks: %w", err)
	}
	report.Blocks = len(blocks)
	if err := checkpoint(ctx); err != nil {
		return report, err
	}

	// 3. Mentions and opinions
	if !opts.SkipOpinions {
		p.setStage(t.VideoID, domain.StageOpinions)
		logger.Section("Opinions")
		res, err := p.filter.Run(ctx, t.VideoID, blocks, opts.Force)
		if res != nil {
			report.CacheHits = res.CacheHits
			report.MentionNegative = res.MentionNegative
			report.OpinionsWritten = res.Written
			report.OpinionCalls = res.OpinionCalls
			for _, f := range res.Failures {
				report.AddFailure(f)
			}
		}
		if err != nil {
			return report, fmt.Errorf("filter opinions: %w", err)
		}
		if err := checkpoint(ctx); err != nil {
			return report, err
		}
	}

	// 4. Export
	if !opts.SkipExport {
		p.setStage(t.VideoID, domain.StageExport)
		logger.Section("Export")
		if _, err := p.exporter.Export(ctx, t.VideoID); err != nil {
			if !errors.Is(err, domain.ErrExportIncomplete) {
				return report, err
			}
			log.Warn(err.Error())
			report.AddFailure(domain.UnitFailure{
				UnitID: t.VideoID, Stage: domain.StageExport, Kind: domain.FailureInvariant, Reason: err.Error(),
			})
		} else {
			report.Exported = true
		}
	}

	log.Infof("run finished: %d segments, %d blocks, %d cached, %d written, %d failures",
		report.Segments, report.Blocks, report.CacheHits, report.OpinionsWritten, len(report.FailedUnits()))
	return report, nil
}

// runBoundaries reuses stored boundaries for an unchanged transcript and
// otherwise segments it afresh. A changed transcript invalidates the
// video's opinion records, since chunk IDs would no longer match content.
func (p *Processor) runBoundaries(ctx context.Context, t *domain.Transcript, force bool) ([]domain.BoundarySegment, bool, error) {
	state := domain.StateOf(t)

	stored, err := p.segments.GetVideo(ctx, t.VideoID)
	switch {
	case err == nil && !force && stored.Fingerprint == state.Fingerprint:
		segments, err := p.segments.GetBoundaries(ctx, t.VideoID)
		if err != nil {
			return nil, false, fmt.Errorf("get boundaries: %w", err)
		}
		if len(segments) > 0 {
			logger.Info("boundaries: %s unchanged, reusing %d segments", t.VideoID, len(segments))
			return segments, true, nil
		}
	case err == nil && stored.Fingerprint != state.Fingerprint:
		n, err := p.opinions.InvalidateOpinions(ctx, t.VideoID)
		if err != nil {
			return nil, false, fmt.Errorf("invalidate opinions: %w", err)
		}
		logger.Info("boundaries: %s transcript changed, %d opinion records invalidated", t.VideoID, n)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, false, fmt.Errorf("get video: %w", err)
	}

	segments, err := p.boundaries.Segment(context.WithoutCancel(ctx), t)
	if err != nil {
		return nil, false, err
	}
	segments, err = p.segments.PutBoundaries(ctx, state, segments, force)
	if err != nil {
		return nil, false, fmt.Errorf("store boundaries: %w", err)
	}
	return segments, false, nil
}

// runBlocks segments one qa region unless the ledger already holds it.
// Capability failures are reported and leave the region without blocks.
func (p *Processor) runBlocks(ctx context.Context, t *domain.Transcript, seg domain.BoundarySegment, force bool, report *domain.RunReport) error {
	region := domain.Range{Start: seg.StartIndex, End: seg.EndIndex}
	if !force {
		_, ok, err := p.segments.GetRegionBlocks(ctx, t.VideoID, region)
		if err != nil {
			return fmt.Errorf("get region blocks: %w", err)
		}
		if ok {
			logger.Debug("blocks: %s region %s already segmented", t.VideoID, region)
			return nil
		}
	}

	res, err := p.blocks.Segment(context.WithoutCancel(ctx), t, seg)
	if err != nil {
		logger.Warn("blocks: %v", err)
		report.AddFailure(domain.UnitFailure{
			UnitID: seg.SegmentID(), Stage: domain.StageBlocks, Kind: domain.FailureCapability, Reason: err.Error(),
		})
		return nil
	}
	for _, f := range res.Failures {
		report.AddFailure(f)
	}
	if _, err := p.segments.PutBlocks(ctx, t.VideoID, region, res.Blocks, force); err != nil {
		return fmt.Errorf("store blocks: %w", err)
	}
	return nil
}

// Status returns the in-progress run for a video, if any.
func (p *Processor) Status(videoID string) (*domain.RunStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.active[videoID]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// Active returns every in-progress run ordered by start time.
func (p *Processor) Active() []domain.RunStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.RunStatus, 0, len(p.active))
	for _, s := range p.active {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (p *Processor) claim(videoID, runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.active[videoID]; busy {
		return fmt.Errorf("%w: %s", domain.ErrRunInProgress, videoID)
	}
	p.active[videoID] = &domain.RunStatus{RunID: runID, VideoID: videoID, StartedAt: time.Now()}
	return nil
}

func (p *Processor) setStage(videoID string, stage domain.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.active[videoID]; ok {
		s.Stage = stage
	}
}

func (p *Processor) release(videoID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, videoID)
}

// checkpoint is a stage boundary: a cancelled run stops here.
func checkpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
	}
	return nil
}
