package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// opinionResponder judges "обманул" as a negative opinion about the first
// listed person and anything else as no opinion. It answers both batch and
// single prompts.
func opinionResponder() func(int, driven.ClassifyRequest) (string, error) {
	return func(_ int, req driven.ClassifyRequest) (string, error) {
		var p struct {
			Input *opinionItem  `json:"input"`
			Items []opinionItem `json:"items"`
		}
		if err := json.Unmarshal([]byte(req.Prompt), &p); err != nil {
			return "", err
		}

		judge := func(item opinionItem) map[string]any {
			if strings.Contains(item.Text, "обманул") {
				return map[string]any{
					"id": item.ID, "has_opinion": true, "targets": item.Persons[:1],
					"opinion_spans": []string{"опять всех обманул"}, "polarity": "negative", "confidence": 0.9,
				}
			}
			return map[string]any{"id": item.ID, "has_opinion": false, "targets": []string{}, "opinion_spans": []string{}}
		}

		if p.Input != nil {
			return mustJSON(judge(*p.Input)), nil
		}
		results := make([]map[string]any, len(p.Items))
		for i, item := range p.Items {
			results[i] = judge(item)
		}
		return mustJSON(map[string]any{"results": results}), nil
	}
}

func filterBlocks() []domain.QABlock {
	tr := qaTranscript()
	return []domain.QABlock{
		{BlockID: "qa_00002_00002", StartIndex: 2, EndIndex: 2, Start: 4, End: 5, Text: tr.Text(2, 2)},
		{BlockID: "qa_00003_00004", StartIndex: 3, EndIndex: 4, Start: 6, End: 9, Text: tr.Text(3, 4)},
		{BlockID: "qa_00005_00006", StartIndex: 5, EndIndex: 6, Start: 10, End: 13, Text: tr.Text(5, 6)},
	}
}

func newTestFilter(detector driven.MentionDetector, classifier driven.Classifier, ledger driven.OpinionLedger) *OpinionFilter {
	return NewOpinionFilter(detector, classifier, ledger, nil, testPolicy(), FilterConfig{BatchSize: 8, Concurrency: 2})
}

func TestOpinionFilter_Run(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewOpinionLedger()
	detector := &fakeDetector{names: []string{"Иванов", "Петра", "Петров", "Ольга"}}
	classifier := &scriptedClassifier{respond: opinionResponder()}
	f := newTestFilter(detector, classifier, ledger)

	res, err := f.Run(ctx, "vid1", filterBlocks(), false)

	require.NoError(t, err)
	assert.Equal(t, 1, res.MentionNegative, "the transition block names nobody")
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 1, res.OpinionCalls, "both blocks fit one batch")
	assert.Empty(t, res.Failures)
	require.Len(t, res.Records, 2)

	rec := res.Records[0]
	assert.Equal(t, "vid1:qa_00003_00004", rec.ChunkID)
	assert.Equal(t, []string{"Иванов", "Петра", "Петров"}, rec.Persons)
	assert.True(t, rec.HasOpinion)
	assert.Equal(t, []string{"Иванов"}, rec.Targets)
	assert.Equal(t, domain.PolarityNegative, rec.Polarity)
	assert.Equal(t, "test-model", rec.Model)

	assert.False(t, res.Records[1].HasOpinion)

	_, err = ledger.GetOpinion(ctx, "vid1:qa_00002_00002")
	assert.ErrorIs(t, err, domain.ErrNotFound, "no persons means no record")
}

func TestOpinionFilter_CachedRecordsSkipCalls(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewOpinionLedger()
	detector := &fakeDetector{names: []string{"Петров", "Ольга"}}
	classifier := &scriptedClassifier{respond: opinionResponder()}
	f := newTestFilter(detector, classifier, ledger)

	_, err := f.Run(ctx, "vid1", filterBlocks(), false)
	require.NoError(t, err)
	calls, detections := classifier.calls(), detector.calls

	res, err := f.Run(ctx, "vid1", filterBlocks(), false)

	require.NoError(t, err)
	assert.Equal(t, 2, res.CacheHits)
	assert.Equal(t, 0, res.Written)
	assert.Equal(t, calls, classifier.calls(), "no classifier calls for cached blocks")
	assert.Equal(t, detections+1, detector.calls, "only the uncached block is re-filtered")
	assert.Len(t, res.Records, 2)
}

func TestOpinionFilter_ForceRewrites(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewOpinionLedger()
	detector := &fakeDetector{names: []string{"Петров", "Ольга"}}
	classifier := &scriptedClassifier{respond: opinionResponder()}
	f := newTestFilter(detector, classifier, ledger)

	_, err := f.Run(ctx, "vid1", filterBlocks(), false)
	require.NoError(t, err)

	res, err := f.Run(ctx, "vid1", filterBlocks(), true)

	require.NoError(t, err)
	assert.Equal(t, 0, res.CacheHits)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 4, ledger.Writes())
}

func TestOpinionFilter_BatchTimeoutFailsItsBlocks(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewOpinionLedger()
	detector := &fakeDetector{names: []string{"Петров", "Ольга"}}
	classifier := failingClassifier(context.DeadlineExceeded)
	f := newTestFilter(detector, classifier, ledger)

	res, err := f.Run(ctx, "vid1", filterBlocks(), false)

	require.NoError(t, err)
	assert.Equal(t, 3, classifier.calls(), "one batch, three attempts")
	assert.Empty(t, res.Records)
	require.Len(t, res.Failures, 2)
	for _, fail := range res.Failures {
		assert.Equal(t, domain.StageOpinions, fail.Stage)
		assert.Equal(t, domain.FailureCapability, fail.Kind)
	}
	assert.Equal(t, "vid1:qa_00003_00004", res.Failures[0].UnitID)

	list, err := ledger.ListOpinions(ctx, "vid1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpinionFilter_BatchMismatchFallsBackPerItem(t *testing.T) {
	detector := &fakeDetector{names: []string{"Петров", "Ольга"}}
	single := opinionResponder()
	classifier := &scriptedClassifier{respond: func(call int, req driven.ClassifyRequest) (string, error) {
		if strings.Contains(req.Prompt, `"items"`) {
			return `{"results":[{"id":"x","has_opinion":false}]}`, nil
		}
		return single(call, req)
	}}
	f := newTestFilter(detector, classifier, memory.NewOpinionLedger())

	res, err := f.Run(context.Background(), "vid1", filterBlocks(), false)

	require.NoError(t, err)
	assert.Equal(t, 3, res.OpinionCalls, "one batch then one call per block")
	assert.Equal(t, 2, res.Written)
	assert.Empty(t, res.Failures)
}

func TestOpinionFilter_MentionMismatchFallsBackPerItem(t *testing.T) {
	detector := &fakeDetector{names: []string{"Петров", "Ольга"}, short: true}
	classifier := &scriptedClassifier{respond: opinionResponder()}
	f := newTestFilter(detector, classifier, memory.NewOpinionLedger())

	res, err := f.Run(context.Background(), "vid1", filterBlocks(), false)

	require.NoError(t, err)
	assert.Equal(t, 4, detector.calls, "one short batch then three single calls")
	assert.Equal(t, 2, res.Written)
}

func TestOpinionFilter_MentionFailureReported(t *testing.T) {
	detector := &fakeDetector{err: domain.ErrTransient}
	classifier := &scriptedClassifier{respond: opinionResponder()}
	f := newTestFilter(detector, classifier, memory.NewOpinionLedger())

	res, err := f.Run(context.Background(), "vid1", filterBlocks(), false)

	require.NoError(t, err)
	assert.Len(t, res.Failures, 3)
	assert.Equal(t, domain.StageMentions, res.Failures[0].Stage)
	assert.Equal(t, 0, classifier.calls())
}

func TestOpinionFilter_ConcurrentBatches(t *testing.T) {
	ctx := context.Background()
	var blocks []domain.QABlock
	for i := 0; i < 20; i++ {
		blocks = append(blocks, domain.QABlock{
			BlockID: domain.BlockID(i, i), StartIndex: i, EndIndex: i,
			Text: "Петров опять всех обманул.",
		})
	}
	ledger := memory.NewOpinionLedger()
	classifier := &scriptedClassifier{respond: opinionResponder()}
	f := NewOpinionFilter(&fakeDetector{names: []string{"Петров"}}, classifier, ledger, nil, testPolicy(),
		FilterConfig{BatchSize: 3, Concurrency: 4})

	res, err := f.Run(ctx, "vid9", blocks, false)

	require.NoError(t, err)
	assert.Equal(t, 20, res.Written)
	assert.Equal(t, 7, res.OpinionCalls)
	require.Len(t, res.Records, 20)
	for i, rec := range res.Records {
		assert.Equal(t, domain.ChunkID("vid9", domain.BlockID(i, i)), rec.ChunkID, "records keep block order")
	}
}

func TestOpinionFilter_CancelledBeforeDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	classifier := &scriptedClassifier{respond: opinionResponder()}
	f := newTestFilter(&fakeDetector{names: []string{"Петров"}}, classifier, memory.NewOpinionLedger())

	_, err := f.Run(ctx, "vid1", filterBlocks(), false)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, 0, classifier.calls())
}

// cancellingDetector cancels the run while its first call is in flight and
// fails any call whose own context is done.
type cancellingDetector struct {
	fakeDetector
	cancel context.CancelFunc
}

func (d *cancellingDetector) DetectPersons(ctx context.Context, texts []string) ([]domain.MentionResult, error) {
	d.cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.fakeDetector.DetectPersons(ctx, texts)
}

func TestOpinionFilter_CancelledDuringMentions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	detector := &cancellingDetector{fakeDetector: fakeDetector{names: []string{"Петров"}}, cancel: cancel}
	classifier := &scriptedClassifier{respond: opinionResponder()}
	f := NewOpinionFilter(detector, classifier, memory.NewOpinionLedger(), nil, testPolicy(),
		FilterConfig{MentionBatchSize: 2, BatchSize: 8, Concurrency: 2})

	res, err := f.Run(ctx, "vid1", filterBlocks(), false)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, res.Failures, "the in-flight batch completes")
	assert.Equal(t, 1, detector.calls, "no batch is dispatched after cancellation")
	assert.Equal(t, 0, classifier.calls())
}

func TestOpinionFilter_CancelledBeforeMentions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ledger := memory.NewOpinionLedger()
	cached := domain.OpinionRecord{ChunkID: "vid1:qa_00002_00002", VideoID: "vid1", BlockID: "qa_00002_00002"}
	_, _, err := ledger.PutOpinion(context.Background(), cached, false)
	require.NoError(t, err)
	detector := &cancellingDetector{cancel: func() {}}
	f := newTestFilter(detector, &scriptedClassifier{respond: opinionResponder()}, ledger)

	res, err := f.Run(ctx, "vid1", filterBlocks(), false)

	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 0, detector.calls)
	require.Len(t, res.Records, 1)
	assert.Equal(t, cached.ChunkID, res.Records[0].ChunkID)
}
