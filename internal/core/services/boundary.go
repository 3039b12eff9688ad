package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/logger"
)

// BoundaryConfig tunes boundary windowing and the qa tie-break.
type BoundaryConfig struct {
	WindowChars         int
	MinWindowUtterances int
	QAConfidenceFloor   float64
}

// BoundarySegmenter splits a transcript into narrative and Q&A regions.
type BoundarySegmenter struct {
	classifier driven.Classifier
	cues       *CueDetector
	vocab      domain.Vocabulary
	prompts    promptSet
	policy     RetryPolicy
	cfg        BoundaryConfig
}

// NewBoundarySegmenter creates a boundary segmenter. prompts may be nil.
func NewBoundarySegmenter(
	classifier driven.Classifier,
	vocab domain.Vocabulary,
	prompts driven.PromptStore,
	policy RetryPolicy,
	cfg BoundaryConfig,
) *BoundarySegmenter {
	defaults := domain.DefaultPipelineSettings()
	if cfg.WindowChars <= 0 {
		cfg.WindowChars = defaults.WindowChars
	}
	if cfg.MinWindowUtterances <= 0 {
		cfg.MinWindowUtterances = defaults.MinWindowUtterances
	}
	if cfg.QAConfidenceFloor <= 0 {
		cfg.QAConfidenceFloor = defaults.QAConfidenceFloor
	}
	return &BoundarySegmenter{
		classifier: classifier,
		cues:       NewCueDetector(vocab),
		vocab:      vocab,
		prompts:    promptSet{store: prompts},
		policy:     policy,
		cfg:        cfg,
	}
}

// Segment returns boundary segments partitioning the whole transcript.
// It fails closed: any window that cannot be judged after retries fails the
// video and no segments are returned.
func (s *BoundarySegmenter) Segment(ctx context.Context, t *domain.Transcript) ([]domain.BoundarySegment, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	windows := s.windows(t.Utterances)
	logger.Debug("boundaries: %s split into %d windows", t.VideoID, len(windows))

	system := s.prompts.system(driven.PromptBoundarySystem)
	var all []domain.BoundarySegment
	var hint *boundaryHint
	for i, w := range windows {
		window := domain.Range{Start: w[0].Index, End: w[len(w)-1].Index}
		prompt := buildBoundaryPrompt(w, hint, s.vocab)

		op := fmt.Sprintf("boundaries %s window %s", t.VideoID, window)
		segments, err := Retry(ctx, s.policy, op, func(ctx context.Context) ([]domain.BoundarySegment, error) {
			resp, err := s.classifier.Classify(ctx, driven.ClassifyRequest{
				System:   system,
				Prompt:   prompt,
				Strength: domain.StrengthStandard,
			})
			if err != nil {
				return nil, err
			}
			j, err := ParseBoundaryJudgment(resp.Content)
			if err != nil {
				return nil, err
			}
			return j.Validate(t, window)
		})
		if err != nil {
			return nil, fmt.Errorf("segment boundaries of %s (window %d/%d): %w", t.VideoID, i+1, len(windows), err)
		}

		segments = s.applyTieBreak(t, segments)
		all = append(all, segments...)
		last := segments[len(segments)-1]
		hint = &boundaryHint{Type: last.Type, StartIndex: last.StartIndex}
	}

	now := time.Now()
	merged := domain.MergeAdjacent(t.CloseGaps(all, t.FirstIndex(), t.LastIndex()))
	for i := range merged {
		merged[i].Start, merged[i].End = t.Span(merged[i].StartIndex, merged[i].EndIndex)
		merged[i].CreatedAt = now
	}
	if err := domain.ValidatePartition(merged, t.FirstIndex(), t.LastIndex()); err != nil {
		return nil, fmt.Errorf("segment boundaries of %s: %w", t.VideoID, err)
	}
	return merged, nil
}

// windows batches utterances so each window's prompt lines stay under
// WindowChars, never holding fewer than MinWindowUtterances (unless the
// transcript runs out).
func (s *BoundarySegmenter) windows(utts []domain.Utterance) [][]domain.Utterance {
	var out [][]domain.Utterance
	start, size := 0, 0
	for i, u := range utts {
		lineLen := len([]rune(utteranceLine(u))) + 1
		count := i - start
		if count >= s.cfg.MinWindowUtterances && size+lineLen > s.cfg.WindowChars {
			out = append(out, utts[start:i])
			start, size = i, 0
		}
		size += lineLen
	}
	if start < len(utts) {
		tail := utts[start:]
		// A short tail is folded into the previous window.
		if len(out) > 0 && len(tail) < s.cfg.MinWindowUtterances {
			prev := out[len(out)-1]
			out[len(out)-1] = utts[len(utts)-len(prev)-len(tail):]
		} else {
			out = append(out, tail)
		}
	}
	return out
}

// applyTieBreak downgrades weak qa segments to narrative unless the span
// carries a transition or viewer cue: ambiguous evidence means narrative.
func (s *BoundarySegmenter) applyTieBreak(t *domain.Transcript, segments []domain.BoundarySegment) []domain.BoundarySegment {
	for i := range segments {
		seg := &segments[i]
		if seg.Type != domain.SegmentQA || seg.Confidence >= s.cfg.QAConfidenceFloor {
			continue
		}
		if s.cues.RangeHasCue(t.Slice(seg.StartIndex, seg.EndIndex)) {
			continue
		}
		logger.Debug("boundaries: %s qa at %.2f without cues, treated as narrative", seg.SegmentID(), seg.Confidence)
		seg.Type = domain.SegmentNarrative
	}
	return segments
}
