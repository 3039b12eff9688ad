package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

var (
	exportShow bool
	exportJSON bool
)

var exportCmd = &cobra.Command{
	Use:   "export [video]",
	Short: "Assemble the export snapshot of a video",
	Long: `Assembles boundary segments, Q&A blocks and opinion records of a video
into a new export snapshot, replacing the previous one.

The export fails without writing anything if any Q&A segment has no blocks.
Use --show to print the stored snapshot instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportShow, "show", false, "print the stored snapshot without re-assembling")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "output the snapshot as JSON")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportService == nil {
		return errors.New("export service not configured")
	}
	ctx := cmd.Context()
	videoID := args[0]

	var snap *domain.ExportSnapshot
	var err error
	if exportShow {
		snap, err = exportService.Get(ctx, videoID)
	} else {
		snap, err = exportService.Export(ctx, videoID)
	}
	if errors.Is(err, domain.ErrNotFound) && exportShow {
		return fmt.Errorf("no export for %s", videoID)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if exportJSON {
		return printJSON(cmd, snap)
	}

	opinions := 0
	for _, r := range snap.Opinions {
		if r.HasOpinion {
			opinions++
		}
	}
	cmd.Printf("%s %s\n", headerStyle.Render(snap.VideoID), dimStyle.Render(snap.ExportID))
	cmd.Printf("  Segments: %d\n", len(snap.BoundarySegments))
	cmd.Printf("  Blocks:   %d\n", len(snap.QABlocks))
	cmd.Printf("  Records:  %d (%d with an opinion)\n", len(snap.Opinions), opinions)
	cmd.Printf("  Created:  %s\n", snap.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
