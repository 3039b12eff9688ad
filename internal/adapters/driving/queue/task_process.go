package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/core/ports/driving"
	"github.com/custodia-labs/mentions/internal/logger"
)

// TaskProcess runs the full pipeline for one transcript file.
const TaskProcess = "mentions:process"

// processTimeout bounds a single pipeline run inside the worker.
const processTimeout = 2 * time.Hour

// ProcessPayload is the task payload of TaskProcess.
type ProcessPayload struct {
	Path         string `json:"path"`
	VideoID      string `json:"video_id"`
	Force        bool   `json:"force,omitempty"`
	SkipOpinions bool   `json:"skip_opinions,omitempty"`
}

// TaskID returns the deterministic task ID for a video.
func TaskID(videoID string) string {
	return "process:" + videoID
}

// EnqueueProcess queues a pipeline run for the transcript at payload.Path.
// The video ID must be known up front so duplicate runs collapse.
func (q *Queue) EnqueueProcess(ctx context.Context, payload ProcessPayload) (string, error) {
	if payload.Path == "" || payload.VideoID == "" {
		return "", fmt.Errorf("%w: path and video id are required", domain.ErrInvalidInput)
	}
	return q.EnqueueUnique(ctx, TaskProcess, payload, TaskID(payload.VideoID),
		asynq.Queue(QueueDefault),
		asynq.Timeout(processTimeout),
		asynq.Retention(time.Hour),
	)
}

// ProcessHandler runs TaskProcess tasks.
type ProcessHandler struct {
	loader    driven.TranscriptLoader
	processor driving.Processor
}

// NewProcessHandler creates a handler for TaskProcess.
func NewProcessHandler(loader driven.TranscriptLoader, processor driving.Processor) *ProcessHandler {
	return &ProcessHandler{loader: loader, processor: processor}
}

// ProcessTask implements asynq.Handler. Bad payloads and invalid
// transcripts are not retried; a run already in progress for the same
// video is retried later by asynq.
func (h *ProcessHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ProcessPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w: %w", err, asynq.SkipRetry)
	}

	transcript, err := h.loader.Load(ctx, p.Path, p.VideoID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("load %s: %w: %w", p.Path, err, asynq.SkipRetry)
		}
		return fmt.Errorf("load %s: %w", p.Path, err)
	}

	report, err := h.processor.Process(ctx, transcript, domain.ProcessOptions{
		Force:        p.Force,
		SkipOpinions: p.SkipOpinions,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return fmt.Errorf("process %s: %w: %w", transcript.VideoID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("process %s: %w", transcript.VideoID, err)
	}

	logger.WithFields(map[string]any{
		"video_id": report.VideoID,
		"run_id":   report.RunID,
		"blocks":   report.Blocks,
		"written":  report.OpinionsWritten,
		"failed":   len(report.FailedUnits()),
	}).Info("queue: run finished")
	return nil
}
