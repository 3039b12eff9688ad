package srt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

func TestFormat_Parse(t *testing.T) {
	data := "\xef\xbb\xbf1\r\n01:00:00.250 --> 01:00:01.5\r\nпервый\r\n\r\n2\r\n01:00:02,000 --> 01:00:03,000\r\n\r\n3\r\n01:00:04,000 --> 01:00:05,000\r\nтретий\r\n"

	utts, err := New().Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, utts, 2)

	assert.Equal(t, domain.Utterance{Index: 0, Start: 3600.25, End: 3601.5, Text: "первый"}, utts[0])
	assert.Equal(t, 1, utts[1].Index)
	assert.Equal(t, "третий", utts[1].Text)
}

func TestFormat_Parse_TextOutsideCue(t *testing.T) {
	_, err := New().Parse([]byte("hello\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFormat_Detect(t *testing.T) {
	assert.True(t, New().Detect([]byte("1\n00:00:00,000 --> 00:00:01,000\nx\n")))
	assert.False(t, New().Detect([]byte("just text")))
}
