package domain

import (
	"fmt"
	"sort"
	"time"
)

// SegmentType classifies a boundary segment.
type SegmentType string

// Available segment types.
const (
	// SegmentNarrative is monologue content: news, analysis, commentary.
	SegmentNarrative SegmentType = "narrative"

	// SegmentQA is the host answering viewer questions.
	SegmentQA SegmentType = "qa"
)

// IsValid returns true if the segment type is recognised.
func (t SegmentType) IsValid() bool {
	return t == SegmentNarrative || t == SegmentQA
}

// String returns the string representation.
func (t SegmentType) String() string {
	return string(t)
}

// BoundarySegment is a maximal contiguous run of utterances classified as
// narrative or Q&A. StartIndex and EndIndex are inclusive utterance ordinals.
type BoundarySegment struct {
	Type       SegmentType `json:"type"`
	StartIndex int         `json:"start_index"`
	EndIndex   int         `json:"end_index"`
	Start      float64     `json:"start"`
	End        float64     `json:"end"`
	Confidence float64     `json:"confidence"`
	Notes      string      `json:"notes,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SegmentID returns the ledger identifier of the segment within its video.
func (s BoundarySegment) SegmentID() string {
	return fmt.Sprintf("seg_%05d_%05d", s.StartIndex, s.EndIndex)
}

// Contains reports whether [start, end] lies inside the segment.
func (s BoundarySegment) Contains(start, end int) bool {
	return s.StartIndex <= start && end <= s.EndIndex
}

// ValidatePartition checks that segments cover [first, last] exactly, in
// order, with no gaps and no overlaps.
func ValidatePartition(segments []BoundarySegment, first, last int) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: no boundary segments", ErrInvariantViolation)
	}
	next := first
	for i, s := range segments {
		if !s.Type.IsValid() {
			return fmt.Errorf("%w: segment %d has unknown type %q", ErrInvariantViolation, i, s.Type)
		}
		if s.EndIndex < s.StartIndex {
			return fmt.Errorf("%w: segment %d ends (%d) before it starts (%d)",
				ErrInvariantViolation, i, s.EndIndex, s.StartIndex)
		}
		if s.StartIndex != next {
			return fmt.Errorf("%w: segment %d starts at %d, expected %d",
				ErrInvariantViolation, i, s.StartIndex, next)
		}
		next = s.EndIndex + 1
	}
	if next-1 != last {
		return fmt.Errorf("%w: segments end at %d, expected %d", ErrInvariantViolation, next-1, last)
	}
	return nil
}

// MergeAdjacent collapses neighbouring segments of the same type. The merged
// segment keeps the lower confidence and joins the notes.
func MergeAdjacent(segments []BoundarySegment) []BoundarySegment {
	if len(segments) == 0 {
		return nil
	}
	sorted := make([]BoundarySegment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartIndex < sorted[j].StartIndex
	})

	merged := []BoundarySegment{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Type == last.Type && s.StartIndex == last.EndIndex+1 {
			last.EndIndex = s.EndIndex
			last.End = s.End
			if s.Confidence < last.Confidence {
				last.Confidence = s.Confidence
			}
			if s.Notes != "" && s.Notes != last.Notes {
				if last.Notes == "" {
					last.Notes = s.Notes
				} else {
					last.Notes += " " + s.Notes
				}
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// QASegments filters segments down to Q&A regions.
func QASegments(segments []BoundarySegment) []BoundarySegment {
	var qa []BoundarySegment
	for _, s := range segments {
		if s.Type == SegmentQA {
			qa = append(qa, s)
		}
	}
	return qa
}

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
