package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mentions/internal/adapters/driving/queue"
	"github.com/custodia-labs/mentions/internal/adapters/driving/watcher"
	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/logger"
	"github.com/custodia-labs/mentions/internal/transcripts"
)

// watchExtensions are the transcript files the watcher reacts to.
var watchExtensions = []string{".json", ".srt"}

var (
	watchForce        bool
	watchSkipOpinions bool
	watchEnqueue      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]...",
	Short: "Process transcripts as they appear in directories",
	Long: `Watches directories (recursively) for new or changed transcript files
and processes each one once it has stopped changing for a second.

With --enqueue the files are queued for a worker instead of being processed
in this process. The video ID is the file name without its extension.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchForce, "force", "f", false, "recompute cached results")
	watchCmd.Flags().BoolVar(&watchSkipOpinions, "skip-opinions", false, "stop after segmentation")
	watchCmd.Flags().BoolVar(&watchEnqueue, "enqueue", false, "queue files for a worker instead of processing them")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	handle, err := watchHandler(cmd)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Config{Extensions: watchExtensions}, handle)
	if err != nil {
		return err
	}
	for _, dir := range args {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.Printf("Watching %d director%s, press Ctrl+C to stop\n", len(args), plural(len(args), "y", "ies"))
	return w.Run(ctx)
}

// watchHandler returns the callback for settled transcript files.
func watchHandler(cmd *cobra.Command) (watcher.OnTranscript, error) {
	var mu sync.Mutex

	if watchEnqueue {
		if jobQueue == nil {
			return nil, errors.New("job queue not configured")
		}
		return func(ctx context.Context, path string) {
			videoID := transcripts.VideoIDFromPath(path)
			id, err := jobQueue.EnqueueProcess(ctx, queue.ProcessPayload{
				Path:         path,
				VideoID:      videoID,
				Force:        watchForce,
				SkipOpinions: watchSkipOpinions,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				cmd.PrintErrln(failStyle.Render(fmt.Sprintf("enqueue %s: %v", path, err)))
				return
			}
			cmd.Printf("Queued %s as %s\n", videoID, id)
		}, nil
	}

	if _, err := requirePipeline(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, errors.New("transcript loader not configured")
	}
	opts := domain.ProcessOptions{Force: watchForce, SkipOpinions: watchSkipOpinions}
	return func(ctx context.Context, path string) {
		t, err := loader.Load(ctx, path, "")
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return
		}
		report, err := processor.Process(ctx, t, opts)

		mu.Lock()
		defer mu.Unlock()
		if report != nil {
			printReport(cmd, report)
		}
		if err != nil {
			cmd.PrintErrln(failStyle.Render(fmt.Sprintf("%s: %v", t.VideoID, err)))
		}
	}, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
