package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mentions/internal/core/domain"
)

// seedLedger stores qaTranscript's segmentation and one opinion record.
func seedLedger(t *testing.T, segments *memory.SegmentLedger, opinions *memory.OpinionLedger, withBlocks bool) {
	t.Helper()
	ctx := context.Background()
	tr := qaTranscript()

	bj, err := ParseBoundaryJudgment(qaBoundaryJSON)
	require.NoError(t, err)
	segs, err := bj.Validate(tr, domain.Range{Start: 0, End: 6})
	require.NoError(t, err)
	_, err = segments.PutBoundaries(ctx, domain.StateOf(tr), segs, false)
	require.NoError(t, err)

	if !withBlocks {
		return
	}
	kj, err := ParseBlockJudgment(qaBlockJSON)
	require.NoError(t, err)
	region := domain.Range{Start: 2, End: 6}
	blocks, _ := kj.Validate(tr, region)
	_, err = segments.PutBlocks(ctx, "vid1", region, blocks, false)
	require.NoError(t, err)

	rec := domain.NoOpinion("vid1", blocks[0], []string{"Петров"})
	_, _, err = opinions.PutOpinion(ctx, rec, false)
	require.NoError(t, err)
}

func TestExportAssembler_Export(t *testing.T) {
	ctx := context.Background()
	segments, opinions, exports, sink := memory.NewSegmentLedger(), memory.NewOpinionLedger(), memory.NewExportStore(), &fakeSink{}
	seedLedger(t, segments, opinions, true)

	stale := domain.OpinionRecord{ChunkID: "vid1:qa_00002_00004", VideoID: "vid1", BlockID: "qa_00002_00004"}
	_, _, err := opinions.PutOpinion(ctx, stale, false)
	require.NoError(t, err)

	e := NewExportAssembler(segments, opinions, exports, sink)
	snap, err := e.Export(ctx, "vid1")

	require.NoError(t, err)
	assert.NotEmpty(t, snap.ExportID)
	assert.Len(t, snap.BoundarySegments, 2)
	assert.Len(t, snap.QABlocks, 2)
	require.Len(t, snap.Opinions, 1, "records for blocks that no longer exist are left out")
	assert.Equal(t, "vid1:qa_00003_00004", snap.Opinions[0].ChunkID)
	assert.Equal(t, []string{"vid1"}, sink.written)

	got, err := e.Get(ctx, "vid1")
	require.NoError(t, err)
	assert.Equal(t, snap.ExportID, got.ExportID)
}

func TestExportAssembler_Incomplete(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown video", func(t *testing.T) {
		e := NewExportAssembler(memory.NewSegmentLedger(), memory.NewOpinionLedger(), memory.NewExportStore(), nil)

		_, err := e.Export(ctx, "nope")

		assert.ErrorIs(t, err, domain.ErrExportIncomplete)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("qa segment without blocks", func(t *testing.T) {
		segments, opinions, exports := memory.NewSegmentLedger(), memory.NewOpinionLedger(), memory.NewExportStore()
		seedLedger(t, segments, opinions, false)
		e := NewExportAssembler(segments, opinions, exports, nil)

		_, err := e.Export(ctx, "vid1")

		assert.ErrorIs(t, err, domain.ErrExportIncomplete)
		_, err = exports.GetExport(ctx, "vid1")
		assert.ErrorIs(t, err, domain.ErrNotFound, "nothing is written")
	})
}

func TestExportAssembler_SinkFailure(t *testing.T) {
	segments, opinions := memory.NewSegmentLedger(), memory.NewOpinionLedger()
	seedLedger(t, segments, opinions, true)
	sinkErr := errors.New("disk full")
	e := NewExportAssembler(segments, opinions, memory.NewExportStore(), &fakeSink{err: sinkErr})

	_, err := e.Export(context.Background(), "vid1")

	assert.ErrorIs(t, err, sinkErr)
}
