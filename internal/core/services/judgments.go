package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// Engine output arrives as JSON of varying quality. Each stage decodes it
// into its own judgment type, then validates or repairs it before anything
// reaches the ledger.

const defaultConfidence = 0.5

// errBatchMismatch marks a batch judgment whose result count differs from
// its input. It is not retried; callers fall back to per-item calls.
var errBatchMismatch = errors.New("batch result count mismatch")

func decodeJudgment(content string, v any) error {
	content = strings.TrimSpace(content)
	// Some local models wrap JSON in a markdown fence despite JSON mode.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

func confidenceOr(c *float64) float64 {
	if c == nil {
		return defaultConfidence
	}
	return domain.ClampConfidence(*c)
}

// ==================== Boundary Judgment ====================

type boundaryItem struct {
	Type       string   `json:"type"`
	StartIndex *int     `json:"start_u"`
	EndIndex   *int     `json:"end_u"`
	Confidence *float64 `json:"confidence"`
	Notes      string   `json:"notes"`
}

// BoundaryJudgment is the engine's segmentation of one utterance window.
type BoundaryJudgment struct {
	Segments []boundaryItem `json:"segments"`
}

// ParseBoundaryJudgment decodes a boundary judgment.
func ParseBoundaryJudgment(content string) (*BoundaryJudgment, error) {
	var j BoundaryJudgment
	if err := decodeJudgment(content, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate converts the judgment into segments that exactly cover window.
// Unknown types become narrative and confidences are clamped. Ordinal gaps
// with no utterance in t are closed; anything else that breaks coverage
// makes the whole judgment malformed.
func (j *BoundaryJudgment) Validate(t *domain.Transcript, window domain.Range) ([]domain.BoundarySegment, error) {
	if len(j.Segments) == 0 {
		return nil, fmt.Errorf("%w: no segments for window %s", domain.ErrMalformedResponse, window)
	}

	segments := make([]domain.BoundarySegment, 0, len(j.Segments))
	for i, item := range j.Segments {
		if item.StartIndex == nil || item.EndIndex == nil {
			return nil, fmt.Errorf("%w: segment %d lacks start_u/end_u", domain.ErrMalformedResponse, i)
		}
		segType := domain.SegmentType(strings.ToLower(strings.TrimSpace(item.Type)))
		if !segType.IsValid() {
			segType = domain.SegmentNarrative
		}
		segments = append(segments, domain.BoundarySegment{
			Type:       segType,
			StartIndex: *item.StartIndex,
			EndIndex:   *item.EndIndex,
			Confidence: confidenceOr(item.Confidence),
			Notes:      strings.TrimSpace(item.Notes),
		})
	}

	segments = t.CloseGaps(segments, window.Start, window.End)
	if err := domain.ValidatePartition(segments, window.Start, window.End); err != nil {
		return nil, fmt.Errorf("%w: window %s: %v", domain.ErrMalformedResponse, window, err)
	}
	return segments, nil
}

// ==================== Block Judgment ====================

type blockItem struct {
	StartIndex    *int     `json:"start_u"`
	EndIndex      *int     `json:"end_u"`
	Questions     []string `json:"questions"`
	AnswerSummary string   `json:"answer_summary"`
	Confidence    *float64 `json:"confidence"`
}

// BlockJudgment is the engine's split of a Q&A window into answer blocks.
type BlockJudgment struct {
	Blocks []blockItem `json:"qa_blocks"`
}

// ParseBlockJudgment decodes a block judgment.
func ParseBlockJudgment(content string) (*BlockJudgment, error) {
	var j BlockJudgment
	if err := decodeJudgment(content, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate turns the judgment into blocks inside window. Malformed,
// out-of-range and overlapping blocks are dropped and reported; questions
// that are not verbatim substrings of the block text are emptied and
// reported as repaired.
func (j *BlockJudgment) Validate(t *domain.Transcript, window domain.Range) ([]domain.QABlock, []domain.UnitFailure) {
	var failures []domain.UnitFailure
	candidates := make([]blockItem, 0, len(j.Blocks))
	for i, item := range j.Blocks {
		if item.StartIndex == nil || item.EndIndex == nil {
			failures = append(failures, domain.UnitFailure{
				UnitID: fmt.Sprintf("%s#%d", window, i),
				Stage:  domain.StageBlocks,
				Kind:   domain.FailureInvariant,
				Reason: "block lacks start_u/end_u",
			})
			continue
		}
		candidates = append(candidates, item)
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return *candidates[a].StartIndex < *candidates[b].StartIndex
	})

	blocks := make([]domain.QABlock, 0, len(candidates))
	prevEnd := window.Start - 1
	for _, item := range candidates {
		start, end := *item.StartIndex, *item.EndIndex
		id := domain.BlockID(start, end)
		r := domain.Range{Start: start, End: end}

		var reason string
		switch {
		case end < start:
			reason = "block ends before it starts"
		case !window.Contains(r):
			reason = fmt.Sprintf("block %s lies outside region %s", r, window)
		case start <= prevEnd:
			reason = fmt.Sprintf("block %s overlaps its predecessor", r)
		case len(t.Slice(start, end)) == 0:
			reason = fmt.Sprintf("block %s covers no utterances", r)
		}
		if reason != "" {
			failures = append(failures, domain.UnitFailure{
				UnitID: id, Stage: domain.StageBlocks, Kind: domain.FailureInvariant, Reason: reason,
			})
			continue
		}

		text := t.Text(start, end)
		questions, ok := domain.KeepVerbatim(item.Questions, text)
		if !ok {
			failures = append(failures, domain.UnitFailure{
				UnitID: id, Stage: domain.StageBlocks, Kind: domain.FailureRepaired,
				Reason: "non-verbatim question removed",
			})
		}
		startSec, endSec := t.Span(start, end)
		blocks = append(blocks, domain.QABlock{
			BlockID:       id,
			StartIndex:    start,
			EndIndex:      end,
			Start:         startSec,
			End:           endSec,
			Questions:     questions,
			AnswerSummary: strings.TrimSpace(item.AnswerSummary),
			Confidence:    confidenceOr(item.Confidence),
			Text:          text,
		})
		prevEnd = end
	}
	return blocks, failures
}

// ==================== Opinion Judgment ====================

// OpinionJudgment is the engine's decision for one block.
type OpinionJudgment struct {
	ID           string   `json:"id,omitempty"`
	HasOpinion   *bool    `json:"has_opinion"`
	Targets      []string `json:"targets"`
	OpinionSpans []string `json:"opinion_spans"`
	Polarity     string   `json:"polarity"`
	Confidence   *float64 `json:"confidence"`
}

// ParseOpinionJudgment decodes a single opinion judgment.
func ParseOpinionJudgment(content string) (*OpinionJudgment, error) {
	var j OpinionJudgment
	if err := decodeJudgment(content, &j); err != nil {
		return nil, err
	}
	if j.HasOpinion == nil {
		return nil, fmt.Errorf("%w: has_opinion is required", domain.ErrMalformedResponse)
	}
	return &j, nil
}

// OpinionBatchJudgment holds one judgment per submitted block.
type OpinionBatchJudgment struct {
	Results []OpinionJudgment `json:"results"`
}

// ParseOpinionBatch decodes a batch judgment and checks it has exactly n
// well-formed results.
func ParseOpinionBatch(content string, n int) (*OpinionBatchJudgment, error) {
	var j OpinionBatchJudgment
	if err := decodeJudgment(content, &j); err != nil {
		return nil, err
	}
	if len(j.Results) != n {
		return nil, fmt.Errorf("%w: got %d results for %d items", errBatchMismatch, len(j.Results), n)
	}
	for i := range j.Results {
		if j.Results[i].HasOpinion == nil {
			return nil, fmt.Errorf("%w: result %d lacks has_opinion", errBatchMismatch, i)
		}
	}
	return &j, nil
}

// Apply validates the judgment against the block's persons and text and
// fills the decision fields of rec. Targets outside persons are dropped; if
// any span is not verbatim the spans are emptied. It reports whether a
// repair was needed.
func (j *OpinionJudgment) Apply(rec *domain.OpinionRecord, text string) bool {
	repaired := false
	rec.HasOpinion = j.HasOpinion != nil && *j.HasOpinion
	rec.Polarity = domain.ParsePolarity(j.Polarity)
	rec.Confidence = confidenceOr(j.Confidence)
	rec.Targets = []string{}
	rec.OpinionSpans = []string{}

	if !rec.HasOpinion {
		if len(j.Targets) > 0 || len(j.OpinionSpans) > 0 {
			repaired = true
		}
		rec.Polarity = domain.PolarityNeutral
		return repaired
	}

	persons := make(map[string]struct{}, len(rec.Persons))
	for _, p := range rec.Persons {
		persons[p] = struct{}{}
	}
	seen := make(map[string]struct{})
	for _, target := range j.Targets {
		target = strings.TrimSpace(target)
		if _, ok := persons[target]; !ok {
			repaired = true
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		rec.Targets = append(rec.Targets, target)
	}

	spans, ok := domain.KeepVerbatim(j.OpinionSpans, text)
	if !ok {
		repaired = true
	}
	rec.OpinionSpans = spans
	return repaired
}
