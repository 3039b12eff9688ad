package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

var (
	searchLimit        int
	searchJSON         bool
	searchVideo        string
	searchPerson       string
	searchOpinionsOnly bool
	searchMode         string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search question/answer blocks",
	Long: `Searches the text of question/answer blocks and returns their opinion
records.

Text mode matches query words against block text and mentioned names.
Semantic mode ranks blocks by embedding similarity and needs an embedding
provider and a prior 'mentions index'.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var indexCmd = &cobra.Command{
	Use:   "index [video]...",
	Short: "Embed the blocks of videos for semantic search",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndex,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchVideo, "video", "", "restrict to one video")
	searchCmd.Flags().StringVar(&searchPerson, "person", "", "restrict to blocks mentioning this person")
	searchCmd.Flags().BoolVar(&searchOpinionsOnly, "opinions-only", false, "only blocks with an opinion")
	searchCmd.Flags().StringVar(&searchMode, "mode", "", "text or semantic (default: configured mode)")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(indexCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	mode := domain.SearchMode(searchMode)
	if searchMode != "" && !mode.IsValid() {
		return fmt.Errorf("unknown search mode %q", searchMode)
	}
	opts := domain.SearchOptions{
		Limit:        searchLimit,
		VideoID:      searchVideo,
		Person:       searchPerson,
		OpinionsOnly: searchOpinionsOnly,
		Mode:         mode,
	}

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	width := terminalWidth()
	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] chunk at h:mm:ss (Score)
		rec := results[i].Opinion
		cmd.Printf("  [%d] %s at %s (%.2f)\n", i+1, headerStyle.Render(rec.ChunkID), formatSeconds(rec.Start), results[i].Score)
		if len(rec.Persons) > 0 {
			line := "      Persons: " + strings.Join(rec.Persons, ", ")
			if rec.HasOpinion {
				line += okStyle.Render(fmt.Sprintf("  [%s opinion]", rec.Polarity))
			}
			cmd.Println(line)
		}
		if results[i].Text != "" {
			cmd.Printf("      %s\n", dimStyle.Render(truncate(results[i].Text, width-6)))
		}
		cmd.Println()
	}

	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	var errs []error
	for _, videoID := range args {
		n, err := searchService.Index(cmd.Context(), videoID)
		if err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", videoID, err))
			if errors.Is(err, domain.ErrEmbeddingUnavailable) {
				cmd.Println("Semantic search needs an embedding provider. Run 'mentions settings embedding' to configure.")
				break
			}
			continue
		}
		cmd.Printf("Indexed %d blocks of %s\n", n, videoID)
	}
	return errors.Join(errs...)
}
