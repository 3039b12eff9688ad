package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentType_IsValid(t *testing.T) {
	assert.True(t, SegmentNarrative.IsValid())
	assert.True(t, SegmentQA.IsValid())
	assert.False(t, SegmentType("intro").IsValid())
	assert.False(t, SegmentType("").IsValid())
}

func TestValidatePartition(t *testing.T) {
	tests := []struct {
		name     string
		segments []BoundarySegment
		wantErr  bool
	}{
		{
			name: "exact cover",
			segments: []BoundarySegment{
				{Type: SegmentNarrative, StartIndex: 0, EndIndex: 4},
				{Type: SegmentQA, StartIndex: 5, EndIndex: 9},
			},
		},
		{
			name:     "empty",
			segments: nil,
			wantErr:  true,
		},
		{
			name: "gap",
			segments: []BoundarySegment{
				{Type: SegmentNarrative, StartIndex: 0, EndIndex: 3},
				{Type: SegmentQA, StartIndex: 5, EndIndex: 9},
			},
			wantErr: true,
		},
		{
			name: "overlap",
			segments: []BoundarySegment{
				{Type: SegmentNarrative, StartIndex: 0, EndIndex: 5},
				{Type: SegmentQA, StartIndex: 5, EndIndex: 9},
			},
			wantErr: true,
		},
		{
			name: "short of the end",
			segments: []BoundarySegment{
				{Type: SegmentNarrative, StartIndex: 0, EndIndex: 8},
			},
			wantErr: true,
		},
		{
			name: "inverted range",
			segments: []BoundarySegment{
				{Type: SegmentNarrative, StartIndex: 0, EndIndex: 4},
				{Type: SegmentQA, StartIndex: 9, EndIndex: 5},
			},
			wantErr: true,
		},
		{
			name: "unknown type",
			segments: []BoundarySegment{
				{Type: "ad", StartIndex: 0, EndIndex: 9},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePartition(tt.segments, 0, 9)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvariantViolation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMergeAdjacent(t *testing.T) {
	in := []BoundarySegment{
		{Type: SegmentQA, StartIndex: 5, EndIndex: 7, End: 70, Confidence: 0.6, Notes: "вопросы"},
		{Type: SegmentNarrative, StartIndex: 0, EndIndex: 4, End: 40, Confidence: 0.9},
		{Type: SegmentQA, StartIndex: 8, EndIndex: 9, End: 90, Confidence: 0.8, Notes: "ещё вопрос"},
	}

	merged := MergeAdjacent(in)
	require.Len(t, merged, 2)
	assert.Equal(t, SegmentNarrative, merged[0].Type)
	assert.Equal(t, 5, merged[1].StartIndex)
	assert.Equal(t, 9, merged[1].EndIndex)
	assert.Equal(t, 90.0, merged[1].End)
	assert.Equal(t, 0.6, merged[1].Confidence)
	assert.Equal(t, "вопросы ещё вопрос", merged[1].Notes)
	require.NoError(t, ValidatePartition(merged, 0, 9))

	// input untouched
	assert.Equal(t, 7, in[0].EndIndex)
	assert.Nil(t, MergeAdjacent(nil))
}

func TestQASegments(t *testing.T) {
	segs := []BoundarySegment{
		{Type: SegmentNarrative, StartIndex: 0, EndIndex: 1},
		{Type: SegmentQA, StartIndex: 2, EndIndex: 3},
	}
	qa := QASegments(segs)
	require.Len(t, qa, 1)
	assert.Equal(t, "seg_00002_00003", qa[0].SegmentID())
	assert.True(t, qa[0].Contains(2, 3))
	assert.False(t, qa[0].Contains(1, 3))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.2))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
	assert.Equal(t, 0.4, ClampConfidence(0.4))
}
