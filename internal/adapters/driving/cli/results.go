package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

var resultsJSON bool

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "List segmented videos",
	Args:  cobra.NoArgs,
	RunE:  runVideos,
}

var segmentsCmd = &cobra.Command{
	Use:   "segments [video]",
	Short: "Show the boundary segments and blocks of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegments,
}

var opinionCmd = &cobra.Command{
	Use:   "opinion [chunk-id]",
	Short: "Show the opinion record of a block",
	Long: `Shows the opinion record for an exact chunk ID of the form
<video>:qa_<start>_<end>, as listed by 'mentions opinions'.`,
	Args: cobra.ExactArgs(1),
	RunE: runOpinion,
}

var opinionsCmd = &cobra.Command{
	Use:   "opinions [video]",
	Short: "List the opinion records of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpinions,
}

var purgeCmd = &cobra.Command{
	Use:   "purge [video]",
	Short: "Delete everything stored for a video",
	Long: `Deletes the segmentation, opinion records, export snapshot, export file
and search index entries of a video.`,
	Args: cobra.ExactArgs(1),
	RunE: runPurge,
}

func init() {
	for _, c := range []*cobra.Command{videosCmd, segmentsCmd, opinionCmd, opinionsCmd} {
		c.Flags().BoolVar(&resultsJSON, "json", false, "output as JSON")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(purgeCmd)
}

func runVideos(cmd *cobra.Command, _ []string) error {
	if resultsService == nil {
		return errors.New("results service not configured")
	}
	videos, err := resultsService.Videos(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list videos: %w", err)
	}
	if resultsJSON {
		return printJSON(cmd, videos)
	}
	if len(videos) == 0 {
		cmd.Println("No videos processed yet.")
		return nil
	}
	for _, v := range videos {
		cmd.Printf("  %-24s %5d utterances  %s\n",
			v.VideoID, v.UtteranceCount, dimStyle.Render(v.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return nil
}

func runSegments(cmd *cobra.Command, args []string) error {
	if resultsService == nil {
		return errors.New("results service not configured")
	}
	boundaries, blocks, err := resultsService.Segments(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("video %s has not been segmented", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get segments: %w", err)
	}
	if resultsJSON {
		return printJSON(cmd, map[string]any{
			"video_id":          args[0],
			"boundary_segments": boundaries,
			"qa_blocks":         blocks,
		})
	}

	width := terminalWidth()
	for _, s := range boundaries {
		cmd.Printf("%s %s  %s-%s  %.2f\n", headerStyle.Render(s.SegmentID()), s.Type,
			formatSeconds(s.Start), formatSeconds(s.End), s.Confidence)
		for _, b := range blocks {
			if !s.Contains(b.StartIndex, b.EndIndex) {
				continue
			}
			cmd.Printf("  %s  %s\n", b.BlockID, truncate(b.AnswerSummary, width-20))
			if len(b.Questions) > 0 {
				cmd.Printf("      %s\n", dimStyle.Render(truncate(strings.Join(b.Questions, " | "), width-8)))
			}
		}
	}
	return nil
}

func runOpinion(cmd *cobra.Command, args []string) error {
	if resultsService == nil {
		return errors.New("results service not configured")
	}
	rec, err := resultsService.Opinion(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no opinion record for %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get opinion: %w", err)
	}
	if resultsJSON {
		return printJSON(cmd, rec)
	}
	printOpinion(cmd, *rec)
	return nil
}

func runOpinions(cmd *cobra.Command, args []string) error {
	if resultsService == nil {
		return errors.New("results service not configured")
	}
	records, err := resultsService.Opinions(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list opinions: %w", err)
	}
	if resultsJSON {
		return printJSON(cmd, records)
	}
	if len(records) == 0 {
		cmd.Println("No opinion records.")
		return nil
	}
	for _, r := range records {
		printOpinion(cmd, r)
	}
	return nil
}

func printOpinion(cmd *cobra.Command, r domain.OpinionRecord) {
	verdict := dimStyle.Render("no opinion")
	if r.HasOpinion {
		verdict = okStyle.Render(fmt.Sprintf("%s opinion", r.Polarity))
	}
	cmd.Printf("%s  %s-%s  %s  %.2f\n", headerStyle.Render(r.ChunkID),
		formatSeconds(r.Start), formatSeconds(r.End), verdict, r.Confidence)
	if len(r.Persons) > 0 {
		cmd.Printf("  Persons: %s\n", strings.Join(r.Persons, ", "))
	}
	if len(r.Targets) > 0 {
		cmd.Printf("  Targets: %s\n", strings.Join(r.Targets, ", "))
	}
	for _, span := range r.OpinionSpans {
		cmd.Printf("  %q\n", truncate(span, terminalWidth()-6))
	}
}

func runPurge(cmd *cobra.Command, args []string) error {
	if resultsService == nil {
		return errors.New("results service not configured")
	}
	if err := resultsService.Purge(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	cmd.Printf("Purged %s\n", args[0])
	return nil
}
