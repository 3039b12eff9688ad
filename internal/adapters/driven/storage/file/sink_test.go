package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

func TestExportSink_WriteAndRemove(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "exports")
	sink := NewExportSink(dir)

	path, err := sink.Write(ctx, &domain.ExportSnapshot{ExportID: "e1", VideoID: "vid1"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "vid1.json"), path)

	_, err = sink.Write(ctx, &domain.ExportSnapshot{ExportID: "e2", VideoID: "vid1"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got domain.ExportSnapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "e2", got.ExportID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, sink.Remove(ctx, "vid1"))
	require.NoError(t, sink.Remove(ctx, "vid1"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestExportSink_RejectsPathLikeIDs(t *testing.T) {
	sink := NewExportSink(t.TempDir())
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := sink.Write(context.Background(), &domain.ExportSnapshot{VideoID: id})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, id)
	}
}

func TestNewExportSink_DefaultDir(t *testing.T) {
	assert.Equal(t, DefaultDir, NewExportSink("").Dir())
}
