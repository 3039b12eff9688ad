package domain

import (
	"fmt"
	"strings"
	"time"
)

// QABlock is one viewer question plus the host's complete answer, as a
// contiguous utterance range inside a single Q&A segment.
type QABlock struct {
	BlockID       string    `json:"block_id"`
	StartIndex    int       `json:"start_index"`
	EndIndex      int       `json:"end_index"`
	Start         float64   `json:"start"`
	End           float64   `json:"end"`
	Questions     []string  `json:"questions"`
	AnswerSummary string    `json:"answer_summary"`
	Confidence    float64   `json:"confidence"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// BlockID derives the identifier for a block covering [start, end]. Equal
// ranges always map to the same ID, so re-segmentation that reproduces a
// block also reproduces its cache key.
func BlockID(start, end int) string {
	return fmt.Sprintf("qa_%05d_%05d", start, end)
}

// ChunkID derives the globally unique opinion cache key for a block.
func ChunkID(videoID, blockID string) string {
	return videoID + ":" + blockID
}

// Range is an inclusive span of utterance ordinals.
type Range struct {
	Start int `json:"start_index"`
	End   int `json:"end_index"`
}

// String formats the range as "[start-end]".
func (r Range) String() string {
	return fmt.Sprintf("[%d-%d]", r.Start, r.End)
}

// Contains reports whether other lies inside r.
func (r Range) Contains(other Range) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// KeepVerbatim keeps quotes (questions, opinion spans) only when every one is a literal
// substring of text. A single fabricated entry empties the list.
func KeepVerbatim(quotes []string, text string) ([]string, bool) {
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if !strings.Contains(text, q) {
			return []string{}, false
		}
		out = append(out, q)
	}
	return out, true
}

// ValidateBlocks checks that blocks are ordered, non-overlapping, well formed
// and contained in region.
func ValidateBlocks(blocks []QABlock, region Range) error {
	prevEnd := region.Start - 1
	for _, b := range blocks {
		if b.EndIndex < b.StartIndex {
			return fmt.Errorf("%w: block %s ends before it starts", ErrInvariantViolation, b.BlockID)
		}
		if !region.Contains(Range{Start: b.StartIndex, End: b.EndIndex}) {
			return fmt.Errorf("%w: block %s lies outside region %s", ErrInvariantViolation, b.BlockID, region)
		}
		if b.StartIndex <= prevEnd {
			return fmt.Errorf("%w: block %s overlaps its predecessor", ErrInvariantViolation, b.BlockID)
		}
		prevEnd = b.EndIndex
	}
	return nil
}
