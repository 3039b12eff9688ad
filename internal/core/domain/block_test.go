package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockID(t *testing.T) {
	assert.Equal(t, "qa_00001_00002", BlockID(1, 2))
	assert.Equal(t, BlockID(10, 42), BlockID(10, 42))
	assert.Equal(t, "vid1:qa_00001_00002", ChunkID("vid1", BlockID(1, 2)))
}

func TestRange(t *testing.T) {
	r := Range{Start: 5, End: 10}
	assert.Equal(t, "[5-10]", r.String())
	assert.True(t, r.Contains(Range{Start: 5, End: 10}))
	assert.True(t, r.Contains(Range{Start: 6, End: 7}))
	assert.False(t, r.Contains(Range{Start: 4, End: 7}))
	assert.False(t, r.Contains(Range{Start: 9, End: 11}))
}

func TestKeepVerbatim(t *testing.T) {
	text := "Иванов, вопрос от Петра: как дела? Всё отлично, Пётр, спасибо"

	tests := []struct {
		name      string
		questions []string
		want      []string
		ok        bool
	}{
		{"verbatim", []string{"как дела?"}, []string{"как дела?"}, true},
		{"trimmed", []string{"  как дела? "}, []string{"как дела?"}, true},
		{"blank entries skipped", []string{"", "как дела?"}, []string{"как дела?"}, true},
		{"fabricated", []string{"как ваши дела?"}, []string{}, false},
		{"one fabricated empties all", []string{"как дела?", "что нового?"}, []string{}, false},
		{"none", nil, []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := KeepVerbatim(tt.questions, text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateBlocks(t *testing.T) {
	region := Range{Start: 10, End: 20}

	tests := []struct {
		name    string
		blocks  []QABlock
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", []QABlock{{StartIndex: 10, EndIndex: 12}, {StartIndex: 15, EndIndex: 20}}, false},
		{"outside", []QABlock{{StartIndex: 9, EndIndex: 12}}, true},
		{"overlap", []QABlock{{StartIndex: 10, EndIndex: 12}, {StartIndex: 12, EndIndex: 14}}, true},
		{"inverted", []QABlock{{StartIndex: 14, EndIndex: 12}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBlocks(tt.blocks, region)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvariantViolation)
				return
			}
			assert.NoError(t, err)
		})
	}
}
