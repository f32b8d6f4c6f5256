package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rdalcega/docdex/internal/search"
)

var (
	limitFlag      int
	categoryFlag   string
	fileTypeFlag   string
	pathPrefixFlag string
	minScoreFlag   float64
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed documents semantically",
	Long: `Search embeds the query and returns the most similar chunks from the
index, with their source files and similarity scores.

Examples:
  # Basic search
  docdex search "quarterly revenue targets"

  # Only chunks from strategy documents, top 5
  docdex search "hiring plan" --category strategy --limit 5

  # Drop weak matches
  docdex search "onboarding checklist" --min-score 0.3
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&limitFlag, "limit", "n", 10, "Maximum number of results")
	searchCmd.Flags().StringVar(&categoryFlag, "category", "", "Restrict to a category (strategy, content, reference, planning, general)")
	searchCmd.Flags().StringVar(&fileTypeFlag, "file-type", "", "Restrict to a file extension, e.g. md")
	searchCmd.Flags().StringVar(&pathPrefixFlag, "path", "", "Restrict to sources under a directory, e.g. strategy/2026")
	searchCmd.Flags().Float64Var(&minScoreFlag, "min-score", 0, "Minimum similarity score (0-1)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")

	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	searcher, err := search.NewSearcher(ctx, a.store, a.provider)
	if err != nil {
		return err
	}
	defer searcher.Close()

	fileType := fileTypeFlag
	if fileType != "" && !strings.HasPrefix(fileType, ".") {
		fileType = "." + fileType
	}

	results, err := searcher.Query(ctx, query, &search.Options{
		Limit:      limitFlag,
		Category:   categoryFlag,
		FileType:   fileType,
		PathPrefix: pathPrefixFlag,
		MinScore:   minScoreFlag,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. %s (chunk %s, score %.3f", i+1, r.Source, r.Ordinal, r.Score)
		if r.Category != "" {
			fmt.Printf(", %s", r.Category)
		}
		fmt.Println(")")
		fmt.Printf("   %s\n\n", snippet(r.Content, 200))
	}
	return nil
}

// snippet trims content to a single display line of at most n runes.
func snippet(content string, n int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n]) + "..."
}
