package transcripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Deepgram(t *testing.T) {
	path := writeFile(t, "abc123.deepgram.json", `{
		"metadata": {"duration": 12.0},
		"results": {"utterances": [
			{"start": 0.0, "end": 3.0, "transcript": "Здравствуйте"},
			{"start": 3.0, "end": 6.0, "transcript": "Иванов, вопрос от Петра: как дела?"},
			{"start": 6.0, "end": 12.0, "transcript": "Всё отлично, Пётр, спасибо"}
		]}
	}`)

	tr, err := NewDefaultLoader().Load(context.Background(), path, "")
	require.NoError(t, err)

	assert.Equal(t, "abc123", tr.VideoID)
	require.Len(t, tr.Utterances, 3)
	assert.Equal(t, domain.Utterance{Index: 1, Start: 3, End: 6, Text: "Иванов, вопрос от Петра: как дела?"}, tr.Utterances[1])
}

func TestLoader_PlainUtterances(t *testing.T) {
	path := writeFile(t, "video.json", `[
		{"u": 4, "start": 1.5, "end": 2.0, "text": " один "},
		{"u": 7, "start": 2.0, "end": 3.0, "text": "два"}
	]`)

	tr, err := NewDefaultLoader().Load(context.Background(), path, "explicit")
	require.NoError(t, err)

	assert.Equal(t, "explicit", tr.VideoID)
	assert.Equal(t, 4, tr.FirstIndex())
	assert.Equal(t, 7, tr.LastIndex())
	assert.Equal(t, "один", tr.Utterances[0].Text)
}

func TestLoader_SRT(t *testing.T) {
	path := writeFile(t, "stream.srt", "1\n00:00:00,000 --> 00:00:03,500\nЗдравствуйте\n\n"+
		"2\n00:00:03,500 --> 00:01:02,000\nпервая строка\nвторая строка\n")

	tr, err := NewDefaultLoader().Load(context.Background(), path, "")
	require.NoError(t, err)

	assert.Equal(t, "stream", tr.VideoID)
	require.Len(t, tr.Utterances, 2)
	assert.Equal(t, 3.5, tr.Utterances[1].Start)
	assert.Equal(t, 62.0, tr.Utterances[1].End)
	assert.Equal(t, "первая строка вторая строка", tr.Utterances[1].Text)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown extension", "notes.txt", "hello"},
		{"json without utterances", "x.json", `{"foo": 1}`},
		{"empty transcript", "x.json", `[]`},
		{"decreasing indices", "x.json", `[{"u":2,"start":0,"end":1,"text":"a"},{"u":1,"start":1,"end":2,"text":"b"}]`},
		{"end before start", "x.json", `[{"u":0,"start":5,"end":1,"text":"a"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefaultLoader().Load(context.Background(), writeFile(t, tt.file, tt.content), "")
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLoader_Supports(t *testing.T) {
	l := NewDefaultLoader()
	assert.True(t, l.Supports("a/b.JSON"))
	assert.True(t, l.Supports("a.srt"))
	assert.False(t, l.Supports("a.mp4"))
}

func TestVideoIDFromPath(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", VideoIDFromPath("/data/dQw4w9WgXcQ.deepgram.json"))
	assert.Equal(t, "talk", VideoIDFromPath("talk.srt"))
}
