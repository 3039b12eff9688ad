package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

var (
	processVideoID      string
	processForce        bool
	processSkipOpinions bool
	processSkipExport   bool
	processJSON         bool
)

var processCmd = &cobra.Command{
	Use:   "process [transcript]...",
	Short: "Run the full pipeline for transcripts",
	Long: `Segments each transcript, splits its Q&A regions into blocks, detects
opinions about mentioned people and writes the export.

Transcripts may be Deepgram JSON, an utterance JSON array or SRT. The video
ID defaults to the file name without its extension.

Work already in the ledger is reused; --force recomputes everything.
A run that fails for some units still exports the rest and exits non-zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

var segmentCmd = &cobra.Command{
	Use:   "segment [transcript]",
	Short: "Run boundary and block segmentation only",
	Long: `Runs the boundary and block passes for a transcript without calling
the opinion classifier and without exporting.`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	processCmd.Flags().StringVar(&processVideoID, "video", "", "video ID (only with a single transcript)")
	processCmd.Flags().BoolVarP(&processForce, "force", "f", false, "recompute cached results")
	processCmd.Flags().BoolVar(&processSkipOpinions, "skip-opinions", false, "stop after segmentation")
	processCmd.Flags().BoolVar(&processSkipExport, "skip-export", false, "do not write the export")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "output run reports as JSON")
	rootCmd.AddCommand(processCmd)

	segmentCmd.Flags().StringVar(&processVideoID, "video", "", "video ID")
	segmentCmd.Flags().BoolVarP(&processForce, "force", "f", false, "recompute cached results")
	segmentCmd.Flags().BoolVar(&processJSON, "json", false, "output the run report as JSON")
	rootCmd.AddCommand(segmentCmd)
}

// errUnitsFailed marks a run that finished with failed units.
var errUnitsFailed = errors.New("some units failed")

func runProcess(cmd *cobra.Command, args []string) error {
	if processVideoID != "" && len(args) > 1 {
		return errors.New("--video can only be used with a single transcript")
	}
	opts := domain.ProcessOptions{
		Force:        processForce,
		SkipOpinions: processSkipOpinions,
		SkipExport:   processSkipExport,
	}
	return runEach(cmd, args, func(ctx context.Context, t *domain.Transcript) (*domain.RunReport, error) {
		return processor.Process(ctx, t, opts)
	})
}

func runSegment(cmd *cobra.Command, args []string) error {
	return runEach(cmd, args, func(ctx context.Context, t *domain.Transcript) (*domain.RunReport, error) {
		return processor.Segment(ctx, t, processForce)
	})
}

// runEach loads and runs every transcript, continuing past failures.
func runEach(
	cmd *cobra.Command,
	paths []string,
	run func(context.Context, *domain.Transcript) (*domain.RunReport, error),
) error {
	if _, err := requirePipeline(); err != nil {
		return err
	}
	if loader == nil {
		return errors.New("transcript loader not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	var reports []*domain.RunReport
	for _, path := range paths {
		t, err := loader.Load(ctx, path, processVideoID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", path, err))
			continue
		}
		report, err := run(ctx, t)
		if report != nil {
			reports = append(reports, report)
			if !processJSON {
				printReport(cmd, report)
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.VideoID, err))
			if errors.Is(err, domain.ErrCancelled) || errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		if len(report.FailedUnits()) > 0 {
			errs = append(errs, fmt.Errorf("%s: %w", t.VideoID, errUnitsFailed))
		}
	}

	if processJSON {
		if err := printJSON(cmd, reports); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}
