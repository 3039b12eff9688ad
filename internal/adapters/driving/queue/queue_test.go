package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

type fakeLoader struct {
	transcript *domain.Transcript
	err        error
	paths      []string
}

func (l *fakeLoader) Load(_ context.Context, path, videoID string) (*domain.Transcript, error) {
	l.paths = append(l.paths, path)
	if l.err != nil {
		return nil, l.err
	}
	t := *l.transcript
	if videoID != "" {
		t.VideoID = videoID
	}
	return &t, nil
}

type fakeProcessor struct {
	opts []domain.ProcessOptions
	err  error
}

func (p *fakeProcessor) Process(_ context.Context, t *domain.Transcript, opts domain.ProcessOptions) (*domain.RunReport, error) {
	p.opts = append(p.opts, opts)
	return &domain.RunReport{VideoID: t.VideoID, RunID: "run-1"}, p.err
}

func (p *fakeProcessor) Segment(ctx context.Context, t *domain.Transcript, force bool) (*domain.RunReport, error) {
	return p.Process(ctx, t, domain.ProcessOptions{Force: force, SkipOpinions: true, SkipExport: true})
}

func (p *fakeProcessor) Status(string) (*domain.RunStatus, bool) { return nil, false }

func (p *fakeProcessor) Active() []domain.RunStatus { return nil }

func testTranscript() *domain.Transcript {
	return &domain.Transcript{
		VideoID:    "vid1",
		Utterances: []domain.Utterance{{Index: 0, Start: 0, End: 1, Text: "Привет."}},
	}
}

func processTask(t *testing.T, p ProcessPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(TaskProcess, data)
}

func TestTaskID(t *testing.T) {
	assert.Equal(t, "process:vid1", TaskID("vid1"))
}

func TestIsTaskConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"task id conflict", asynq.ErrTaskIDConflict, true},
		{"duplicate task", fmt.Errorf("enqueue: %w", asynq.ErrDuplicateTask), true},
		{"message only", errors.New("task ID conflicts with another task"), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTaskConflict(tt.err))
		})
	}
}

func TestEnqueueProcess_RequiresPathAndVideo(t *testing.T) {
	q := NewQueue(Config{})
	defer q.Close()

	_, err := q.EnqueueProcess(context.Background(), ProcessPayload{Path: "a.json"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = q.EnqueueProcess(context.Background(), ProcessPayload{VideoID: "vid1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProcessHandler_ProcessTask(t *testing.T) {
	loader := &fakeLoader{transcript: testTranscript()}
	processor := &fakeProcessor{}
	h := NewProcessHandler(loader, processor)

	err := h.ProcessTask(context.Background(), processTask(t, ProcessPayload{
		Path: "/data/vid1.json", VideoID: "vid1", Force: true, SkipOpinions: true,
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"/data/vid1.json"}, loader.paths)
	require.Len(t, processor.opts, 1)
	assert.True(t, processor.opts[0].Force)
	assert.True(t, processor.opts[0].SkipOpinions)
}

func TestProcessHandler_SkipsRetry(t *testing.T) {
	tests := []struct {
		name      string
		task      *asynq.Task
		loader    *fakeLoader
		processor *fakeProcessor
		skip      bool
	}{
		{
			name:      "malformed payload",
			task:      asynq.NewTask(TaskProcess, []byte("{")),
			loader:    &fakeLoader{transcript: testTranscript()},
			processor: &fakeProcessor{},
			skip:      true,
		},
		{
			name:      "invalid transcript",
			loader:    &fakeLoader{err: fmt.Errorf("%w: no utterances", domain.ErrInvalidInput)},
			processor: &fakeProcessor{},
			skip:      true,
		},
		{
			name:      "run in progress is retried",
			loader:    &fakeLoader{transcript: testTranscript()},
			processor: &fakeProcessor{err: domain.ErrRunInProgress},
			skip:      false,
		},
		{
			name:      "capability failure is retried",
			loader:    &fakeLoader{transcript: testTranscript()},
			processor: &fakeProcessor{err: domain.ErrLLMUnavailable},
			skip:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := tt.task
			if task == nil {
				task = processTask(t, ProcessPayload{Path: "vid1.json", VideoID: "vid1"})
			}
			h := NewProcessHandler(tt.loader, tt.processor)

			err := h.ProcessTask(context.Background(), task)

			require.Error(t, err)
			assert.Equal(t, tt.skip, errors.Is(err, asynq.SkipRetry))
		})
	}
}
