package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// testPipeline wires a processor over in-memory ledgers.
type testPipeline struct {
	processor  *Processor
	classifier *scriptedClassifier
	detector   *fakeDetector
	segments   *memory.SegmentLedger
	opinions   *memory.OpinionLedger
	exports    *memory.ExportStore
	sink       *fakeSink
}

// stageErrors makes the named stages fail; the classifier routes each
// call to its stage by system prompt.
type stageErrors struct {
	boundary, block, opinion error
}

func newTestPipeline(t *testing.T, errs stageErrors) *testPipeline {
	t.Helper()
	opinions := opinionResponder()
	classifier := &scriptedClassifier{respond: func(call int, req driven.ClassifyRequest) (string, error) {
		switch req.System {
		case DefaultSystemPrompt(driven.PromptBoundarySystem):
			return qaBoundaryJSON, errs.boundary
		case DefaultSystemPrompt(driven.PromptBlockSystem):
			return qaBlockJSON, errs.block
		default:
			if errs.opinion != nil {
				return "", errs.opinion
			}
			return opinions(call, req)
		}
	}}

	p := &testPipeline{
		classifier: classifier,
		detector:   &fakeDetector{names: []string{"Иванов", "Петра", "Петров"}},
		segments:   memory.NewSegmentLedger(),
		opinions:   memory.NewOpinionLedger(),
		exports:    memory.NewExportStore(),
		sink:       &fakeSink{},
	}
	vocab := domain.DefaultVocabulary()
	p.processor = NewProcessor(
		NewBoundarySegmenter(classifier, vocab, nil, testPolicy(), BoundaryConfig{}),
		NewBlockSegmenter(classifier, vocab, nil, testPolicy(), BlockConfig{}),
		NewOpinionFilter(p.detector, classifier, p.opinions, nil, testPolicy(), FilterConfig{}),
		NewExportAssembler(p.segments, p.opinions, p.exports, p.sink),
		p.segments,
		p.opinions,
	)
	return p
}

func TestProcessor_Process(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, stageErrors{})

	report, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})

	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Segments)
	assert.Equal(t, 2, report.Blocks)
	assert.Equal(t, 1, report.MentionNegative, "Ольга's block names no known person")
	assert.Equal(t, 1, report.OpinionsWritten)
	assert.True(t, report.Exported)
	assert.Empty(t, report.FailedUnits())
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	snap, err := p.exports.GetExport(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, snap.QABlocks, 2)
	assert.Equal(t, []string{"как дела?"}, snap.QABlocks[0].Questions)
	require.Len(t, snap.Opinions, 1)
	assert.Equal(t, "vid1:qa_00003_00004", snap.Opinions[0].ChunkID)
	assert.True(t, snap.Opinions[0].HasOpinion)
	assert.Equal(t, []string{"vid1"}, p.sink.written)

	_, active := p.processor.Status("vid1")
	assert.False(t, active)
}

func TestProcessor_SecondRunReusesEverything(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, stageErrors{})

	_, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})
	require.NoError(t, err)
	calls := p.classifier.calls()
	first, err := p.exports.GetExport(ctx, "vid1")
	require.NoError(t, err)

	report, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})

	require.NoError(t, err)
	assert.Equal(t, calls, p.classifier.calls(), "no classifier calls on an unchanged transcript")
	assert.True(t, report.SegmentationReused)
	assert.Equal(t, 1, report.CacheHits)
	assert.Equal(t, 0, report.OpinionsWritten)

	second, err := p.exports.GetExport(ctx, "vid1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ExportID, second.ExportID, "export is regenerated")
	assert.Equal(t, first.Opinions, second.Opinions)
	assert.Equal(t, first.QABlocks, second.QABlocks)
}

func TestProcessor_ForceRecomputes(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, stageErrors{})

	_, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})
	require.NoError(t, err)
	calls := p.classifier.calls()

	report, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{Force: true})

	require.NoError(t, err)
	assert.Equal(t, 2*calls, p.classifier.calls())
	assert.False(t, report.SegmentationReused)
	assert.Equal(t, 0, report.CacheHits)
	assert.Equal(t, 1, report.OpinionsWritten)
	assert.Equal(t, 2, p.opinions.Writes())
}

func TestProcessor_ChangedTranscriptInvalidatesOpinions(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, stageErrors{})

	_, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})
	require.NoError(t, err)

	changed := qaTranscript()
	changed.Utterances[0].Text = "Добрый вечер, сегодня говорим о ценах на хлеб."
	report, err := p.processor.Process(ctx, changed, domain.ProcessOptions{})

	require.NoError(t, err)
	assert.False(t, report.SegmentationReused)
	assert.Equal(t, 0, report.CacheHits, "old records were invalidated")
	assert.Equal(t, 1, report.OpinionsWritten)

	state, err := p.segments.GetVideo(ctx, "vid1")
	require.NoError(t, err)
	assert.Equal(t, changed.Fingerprint(), state.Fingerprint)
}

func TestProcessor_OpinionTimeoutIsReported(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, stageErrors{opinion: context.DeadlineExceeded})

	report, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"vid1:qa_00003_00004"}, report.FailedUnits())
	assert.True(t, report.Exported)

	snap, err := p.exports.GetExport(ctx, "vid1")
	require.NoError(t, err)
	assert.Empty(t, snap.Opinions, "failed chunk is absent from the export")
	assert.Len(t, snap.QABlocks, 2)

	// A later run retries only the failed chunk.
	p.classifier.respond = newTestPipeline(t, stageErrors{}).classifier.respond
	report, err = p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.OpinionsWritten)
	assert.Empty(t, report.FailedUnits())
}

func TestProcessor_BlockFailureLeavesExportIncomplete(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, stageErrors{block: domain.ErrTransient})

	report, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})

	require.NoError(t, err, "a failed region is a unit failure, not a run failure")
	assert.False(t, report.Exported)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, domain.StageBlocks, report.Failures[0].Stage)
	assert.Equal(t, "seg_00002_00006", report.Failures[0].UnitID)
	assert.Equal(t, domain.StageExport, report.Failures[1].Stage)

	_, err = p.exports.GetExport(ctx, "vid1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "no partial snapshot is written")
}

func TestProcessor_BoundaryFailureFailsTheRun(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, stageErrors{boundary: domain.ErrTransient})

	report, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})

	assert.ErrorIs(t, err, domain.ErrTransient)
	require.NotNil(t, report)
	_, err = p.segments.GetVideo(ctx, "vid1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessor_Segment(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, stageErrors{})

	report, err := p.processor.Segment(ctx, qaTranscript(), false)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Blocks)
	assert.False(t, report.Exported)
	assert.Equal(t, 0, p.detector.calls)
	_, err = p.exports.GetExport(ctx, "vid1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessor_CancelledStopsAtStageBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newTestPipeline(t, stageErrors{})

	_, err := p.processor.Process(ctx, qaTranscript(), domain.ProcessOptions{})

	assert.ErrorIs(t, err, domain.ErrCancelled)
	segs, err := p.segments.GetBoundaries(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Len(t, segs, 2, "the boundary pass in flight is persisted")
	blocks, err := p.segments.GetBlocks(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestProcessor_RejectsConcurrentRunForSameVideo(t *testing.T) {
	p := newTestPipeline(t, stageErrors{})
	require.NoError(t, p.processor.claim("vid1", "run-1"))
	p.processor.setStage("vid1", domain.StageBlocks)

	_, err := p.processor.Process(context.Background(), qaTranscript(), domain.ProcessOptions{})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	status, ok := p.processor.Status("vid1")
	require.True(t, ok)
	assert.Equal(t, domain.StageBlocks, status.Stage)
	assert.Len(t, p.processor.Active(), 1)

	p.processor.release("vid1")
	assert.Empty(t, p.processor.Active())
}

func TestProcessor_InvalidTranscript(t *testing.T) {
	p := newTestPipeline(t, stageErrors{})

	_, err := p.processor.Process(context.Background(), nil, domain.ProcessOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	bad := transcriptOf("vid1", "a", "b")
	bad.Utterances[1].Index = 0
	_, err = p.processor.Process(context.Background(), bad, domain.ProcessOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
