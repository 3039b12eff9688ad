// Package queue runs pipeline jobs through an asynq task queue backed by
// Redis. Enqueueing is idempotent per video: the task ID is derived from
// the video ID, so a video that is already pending or running is not
// queued twice.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/custodia-labs/mentions/internal/logger"
)

// Queue names in priority order.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultConcurrency is the number of videos a worker processes at once.
const DefaultConcurrency = 2

// Config holds queue configuration.
type Config struct {
	// RedisAddr is the Redis address (default: localhost:6379).
	RedisAddr string

	// Concurrency is the number of tasks processed in parallel (default: 2).
	Concurrency int
}

// Queue enqueues and serves pipeline tasks.
type Queue struct {
	redisOpt    asynq.RedisClientOpt
	concurrency int
	client      *asynq.Client
	mux         *asynq.ServeMux
	inspector   *asynq.Inspector
}

// NewQueue creates a queue. No connection is made until the first call.
func NewQueue(cfg Config) *Queue {
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	return &Queue{
		redisOpt:    redisOpt,
		concurrency: cfg.Concurrency,
		client:      asynq.NewClient(redisOpt),
		mux:         asynq.NewServeMux(),
		inspector:   asynq.NewInspector(redisOpt),
	}
}

// isTaskConflict checks whether the error indicates a task ID conflict.
func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "task ID conflicts") || strings.Contains(msg, "duplicate task")
}

// EnqueueUnique enqueues a task under a deterministic ID. A task with the
// same ID that is pending or active is left alone and its ID returned; a
// completed or archived one is deleted first so the new task can run.
func (q *Queue) EnqueueUnique(
	ctx context.Context,
	taskType string,
	payload any,
	uniqueID string,
	opts ...asynq.Option,
) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	opts = append(opts, asynq.TaskID(uniqueID))
	task := asynq.NewTask(taskType, data, opts...)
	info, err := q.client.EnqueueContext(ctx, task)
	if err == nil {
		return info.ID, nil
	}
	if !isTaskConflict(err) {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	for _, queueName := range []string{QueueDefault, QueueCritical, QueueLow} {
		if delErr := q.inspector.DeleteTask(queueName, uniqueID); delErr == nil {
			logger.Debug("queue: cleared finished task %s from %s", uniqueID, queueName)
			info, err = q.client.EnqueueContext(ctx, task)
			if err == nil {
				return info.ID, nil
			}
			break
		}
	}

	if isTaskConflict(err) {
		logger.Info("queue: %s (%s) is already queued or running, skipping", taskType, uniqueID)
		return uniqueID, nil
	}
	return "", fmt.Errorf("enqueue: %w", err)
}

// RegisterHandler routes a task type to a handler.
func (q *Queue) RegisterHandler(taskType string, handler asynq.Handler) {
	q.mux.Handle(taskType, handler)
}

// Run serves tasks until ctx is cancelled, then shuts the worker down.
func (q *Queue) Run(ctx context.Context) error {
	server := asynq.NewServer(
		q.redisOpt,
		asynq.Config{
			Concurrency: q.concurrency,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger: asynqLogger{},
		},
	)
	logger.Info("queue: worker starting (concurrency %d)", q.concurrency)
	if err := server.Start(q.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	logger.Info("queue: worker stopping")
	server.Shutdown()
	return nil
}

// Close releases the client connections.
func (q *Queue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}

// asynqLogger routes asynq's internal logging through the application logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { logger.Debug("asynq: %s", fmt.Sprint(args...)) }

func (asynqLogger) Info(args ...any) { logger.Debug("asynq: %s", fmt.Sprint(args...)) }

func (asynqLogger) Warn(args ...any) { logger.Warn("asynq: %s", fmt.Sprint(args...)) }

func (asynqLogger) Error(args ...any) { logger.Error("asynq: %s", fmt.Sprint(args...)) }

func (asynqLogger) Fatal(args ...any) { logger.Error("asynq: %s", fmt.Sprint(args...)) }
