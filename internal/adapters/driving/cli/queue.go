package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mentions/internal/adapters/driving/queue"
	"github.com/custodia-labs/mentions/internal/transcripts"
)

var (
	enqueueVideoID      string
	enqueueForce        bool
	enqueueSkipOpinions bool
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [transcript]...",
	Short: "Queue transcripts for a worker",
	Long: `Queues a pipeline run per transcript in Redis. A video that is already
queued or running is not queued again.

Start one or more workers with 'mentions worker' to process the queue.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnqueue,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued transcripts",
	Long: `Runs a queue worker until interrupted. Each task loads a transcript and
runs the full pipeline. Invalid transcripts are dropped; other failures are
retried with backoff.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueVideoID, "video", "", "video ID (only with a single transcript)")
	enqueueCmd.Flags().BoolVarP(&enqueueForce, "force", "f", false, "recompute cached results")
	enqueueCmd.Flags().BoolVar(&enqueueSkipOpinions, "skip-opinions", false, "stop after segmentation")
	rootCmd.AddCommand(enqueueCmd)

	workerCmd.Flags().Int("concurrency", queue.DefaultConcurrency, "videos processed in parallel")
	_ = cfg.BindPFlag("worker_concurrency", workerCmd.Flags().Lookup("concurrency")) //nolint:errcheck // static flag
	rootCmd.AddCommand(workerCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	if jobQueue == nil {
		return errors.New("job queue not configured")
	}
	if enqueueVideoID != "" && len(args) > 1 {
		return errors.New("--video can only be used with a single transcript")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, path := range args {
		abs, err := filepath.Abs(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve %s: %w", path, err))
			continue
		}
		videoID := enqueueVideoID
		if videoID == "" {
			videoID = transcripts.VideoIDFromPath(abs)
		}
		id, err := jobQueue.EnqueueProcess(ctx, queue.ProcessPayload{
			Path:         abs,
			VideoID:      videoID,
			Force:        enqueueForce,
			SkipOpinions: enqueueSkipOpinions,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", path, err))
			continue
		}
		cmd.Printf("%s %s %s\n", okStyle.Render("queued"), videoID, dimStyle.Render(id))
	}
	return errors.Join(errs...)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if jobQueue == nil {
		return errors.New("job queue not configured")
	}
	p, err := requirePipeline()
	if err != nil {
		return err
	}
	if loader == nil {
		return errors.New("transcript loader not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	jobQueue.RegisterHandler(queue.TaskProcess, queue.NewProcessHandler(loader, p))
	cmd.Println("Worker started, press Ctrl+C to stop")
	return jobQueue.Run(ctx)
}
