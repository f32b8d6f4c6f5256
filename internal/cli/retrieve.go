package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rdalcega/docdex/internal/store"
)

// retrieveCmd represents the retrieve command
var retrieveCmd = &cobra.Command{
	Use:   "retrieve <source>",
	Short: "Print the stored chunks of one document in order",
	Long: `Retrieve prints every chunk stored for a source file, in chunk order.
The source is the file's path relative to the indexed directory, e.g.
"notes/roadmap.md".`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	source := args[0]

	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.store.GetBySource(ctx, source)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no chunks stored for %s", source)
	}

	fmt.Printf("%s: %d chunks\n\n", source, len(docs))
	for _, doc := range docs {
		fmt.Printf("--- chunk %s ---\n%s\n\n", doc.Metadata[store.MetaOrdinal], doc.Content)
	}
	return nil
}
