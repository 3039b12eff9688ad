package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/logger"
)

// BlockConfig tunes block segmentation.
type BlockConfig struct {
	// WindowChars caps the prompt lines per call; longer regions are windowed.
	WindowChars int
}

// BlockResult is the outcome of segmenting one Q&A region.
type BlockResult struct {
	Region   domain.Range
	Blocks   []domain.QABlock
	Failures []domain.UnitFailure

	// Fallback is set when no valid block survived and the whole region was
	// kept as a single block.
	Fallback bool
}

// BlockSegmenter splits Q&A regions into question/answer blocks.
type BlockSegmenter struct {
	classifier driven.Classifier
	cues       *CueDetector
	vocab      domain.Vocabulary
	prompts    promptSet
	policy     RetryPolicy
	cfg        BlockConfig
}

// NewBlockSegmenter creates a block segmenter. prompts may be nil.
func NewBlockSegmenter(
	classifier driven.Classifier,
	vocab domain.Vocabulary,
	prompts driven.PromptStore,
	policy RetryPolicy,
	cfg BlockConfig,
) *BlockSegmenter {
	if cfg.WindowChars <= 0 {
		cfg.WindowChars = domain.DefaultPipelineSettings().BlockWindowChars
	}
	return &BlockSegmenter{
		classifier: classifier,
		cues:       NewCueDetector(vocab),
		vocab:      vocab,
		prompts:    promptSet{store: prompts},
		policy:     policy,
		cfg:        cfg,
	}
}

// Segment splits one qa segment into blocks. Invalid blocks are dropped and
// reported in the result; an error means the capability failed and the
// region has no blocks at all.
func (s *BlockSegmenter) Segment(ctx context.Context, t *domain.Transcript, seg domain.BoundarySegment) (*BlockResult, error) {
	if seg.Type != domain.SegmentQA {
		return nil, fmt.Errorf("%w: segment %s is %s, not qa", domain.ErrInvalidInput, seg.SegmentID(), seg.Type)
	}
	region := domain.Range{Start: seg.StartIndex, End: seg.EndIndex}
	utts := t.Slice(region.Start, region.End)
	if len(utts) == 0 {
		return nil, fmt.Errorf("%w: region %s covers no utterances", domain.ErrInvariantViolation, region)
	}

	result := &BlockResult{Region: region}
	system := s.prompts.system(driven.PromptBlockSystem)

	var blocks []domain.QABlock
	pos := 0
	for pos < len(utts) {
		end := s.windowEnd(utts, pos)
		window := domain.Range{Start: utts[pos].Index, End: utts[end-1].Index}
		prompt := buildBlockPrompt(utts[pos:end], region, s.vocab)

		op := fmt.Sprintf("blocks %s region %s window %s", t.VideoID, region, window)
		j, err := Retry(ctx, s.policy, op, func(ctx context.Context) (*BlockJudgment, error) {
			resp, err := s.classifier.Classify(ctx, driven.ClassifyRequest{
				System:   system,
				Prompt:   prompt,
				Strength: domain.StrengthStrong,
			})
			if err != nil {
				return nil, err
			}
			return ParseBlockJudgment(resp.Content)
		})
		if err != nil {
			return nil, fmt.Errorf("segment blocks of %s region %s: %w", t.VideoID, region, err)
		}

		windowBlocks, failures := j.Validate(t, window)
		result.Failures = append(result.Failures, failures...)

		if end == len(utts) {
			blocks = append(blocks, windowBlocks...)
			break
		}

		// The window's last block may continue past the cut; re-judge it
		// with the next window unless that would not advance.
		next := end
		if n := len(windowBlocks); n > 0 {
			open := windowBlocks[n-1]
			if open.StartIndex > window.Start {
				windowBlocks = windowBlocks[:n-1]
				next = indexOf(utts, open.StartIndex)
			}
		}
		blocks = append(blocks, windowBlocks...)
		pos = next
	}

	blocks = s.mergeUncued(t, blocks)
	if len(blocks) == 0 {
		logger.Warn("blocks: no valid block in %s region %s, keeping region as one block", t.VideoID, region)
		blocks = []domain.QABlock{wholeRegionBlock(t, region)}
		result.Fallback = true
	}

	now := time.Now()
	for i := range blocks {
		blocks[i].CreatedAt = now
	}
	if err := domain.ValidateBlocks(blocks, region); err != nil {
		return nil, fmt.Errorf("segment blocks of %s: %w", t.VideoID, err)
	}
	result.Blocks = blocks
	return result, nil
}

// windowEnd returns the exclusive end position of the window starting at pos.
func (s *BlockSegmenter) windowEnd(utts []domain.Utterance, pos int) int {
	size := 0
	for i := pos; i < len(utts); i++ {
		size += len([]rune(utteranceLine(utts[i]))) + 1
		if size > s.cfg.WindowChars && i > pos {
			return i
		}
	}
	return len(utts)
}

// mergeUncued folds a block into its predecessor when its first utterance
// opens with a continuation, or when it has no questions and no viewer cue.
// A continuation never starts a block, even one the engine gave questions;
// those questions move to the predecessor.
func (s *BlockSegmenter) mergeUncued(t *domain.Transcript, blocks []domain.QABlock) []domain.QABlock {
	if len(blocks) < 2 {
		return blocks
	}
	merged := []domain.QABlock{blocks[0]}
	for _, b := range blocks[1:] {
		first, _ := t.Lookup(b.StartIndex)
		continues := s.cues.IsContinuation(first.Text)
		if !continues && (len(b.Questions) > 0 || s.cues.IsViewerCue(first.Text)) {
			merged = append(merged, b)
			continue
		}
		prev := &merged[len(merged)-1]
		logger.Debug("blocks: merging %s into %s", b.BlockID, prev.BlockID)
		prev.EndIndex = b.EndIndex
		prev.End = b.End
		prev.BlockID = domain.BlockID(prev.StartIndex, prev.EndIndex)
		prev.Text = t.Text(prev.StartIndex, prev.EndIndex)
		prev.Confidence = min(prev.Confidence, b.Confidence)
		prev.AnswerSummary = joinSummary(prev.AnswerSummary, b.AnswerSummary)
		questions := append(append([]string{}, prev.Questions...), b.Questions...)
		prev.Questions, _ = domain.KeepVerbatim(questions, prev.Text)
	}
	return merged
}

func wholeRegionBlock(t *domain.Transcript, region domain.Range) domain.QABlock {
	start, end := t.Span(region.Start, region.End)
	return domain.QABlock{
		BlockID:    domain.BlockID(region.Start, region.End),
		StartIndex: region.Start,
		EndIndex:   region.End,
		Start:      start,
		End:        end,
		Questions:  []string{},
		Confidence: defaultConfidence,
		Text:       t.Text(region.Start, region.End),
	}
}

func joinSummary(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return strings.TrimSpace(a) + " " + strings.TrimSpace(b)
	}
}

func indexOf(utts []domain.Utterance, index int) int {
	for i, u := range utts {
		if u.Index == index {
			return i
		}
	}
	return len(utts)
}
