package utterances

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_Parse_Object(t *testing.T) {
	utts, err := New().Parse([]byte(`{"video_id":"v","utterances":[
		{"index":3,"start":0,"end":1,"text":"a"},
		{"start":1,"end":2,"text":"b"}
	]}`))

	require.NoError(t, err)
	require.Len(t, utts, 2)
	assert.Equal(t, 3, utts[0].Index)
	// Without an ordinal the position is used.
	assert.Equal(t, 1, utts[1].Index)
}

func TestFormat_Detect(t *testing.T) {
	f := New()
	assert.True(t, f.Detect([]byte(` [] `)))
	assert.True(t, f.Detect([]byte(`{"utterances":[]}`)))
	assert.False(t, f.Detect([]byte(`{"results":{}}`)))
	assert.False(t, f.Detect([]byte(``)))
}
