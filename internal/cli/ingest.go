package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rdalcega/docdex/internal/config"
	"github.com/rdalcega/docdex/internal/watcher"
)

var (
	forceFlag   bool
	rebuildFlag bool
	watchFlag   bool
	quietFlag   bool
	verboseFlag bool
	debugFlag   bool
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the documents in a directory",
	Long: `Ingest walks the target directory, extracts text from each eligible
document, splits it into overlapping chunks, generates embeddings, and
stores the chunks for semantic search.

Files whose size, modification time, and content hash are unchanged since
the last run are skipped. Chunks for files that no longer exist are
removed.

Examples:
  # Index the current directory
  docdex ingest

  # Re-read every file regardless of the fingerprint cache
  docdex ingest --force

  # Drop the existing index and start over
  docdex ingest --rebuild

  # Keep running and reindex as files change
  docdex ingest --watch
`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&forceFlag, "force", false, "Reprocess every file, ignoring the fingerprint cache")
	ingestCmd.Flags().BoolVar(&rebuildFlag, "rebuild", false, "Delete the existing index and cache before ingesting")
	ingestCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and keep the index in sync")
	ingestCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	ingestCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log each file as the watcher reindexes it")
	ingestCmd.Flags().BoolVar(&debugFlag, "debug", false, "Log raw filesystem events")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if rebuildFlag {
		if err := removeIndex(); err != nil {
			return err
		}
	}

	a, err := newApp(newCLIProgress(quietFlag))
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.ingester.IngestDirectory(ctx, forceFlag || rebuildFlag); err != nil {
		return err
	}

	if !watchFlag {
		return nil
	}

	watchCfg := a.cfg.Watch
	watchCfg.Verbose = watchCfg.Verbose || verboseFlag
	watchCfg.Debug = watchCfg.Debug || debugFlag

	w, err := watcher.New(a.root, watchCfg, a.ingester)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	w.Start(ctx)
	if !quietFlag {
		log.Printf("Watching %s for changes (Ctrl+C to stop)...", a.root)
	}

	<-ctx.Done()
	if !quietFlag {
		fmt.Println("\nStopping watcher...")
	}
	w.Stop()
	return nil
}

// removeIndex deletes the chunk database and fingerprint cache before a
// rebuild. The config file in the same directory is left alone.
func removeIndex() error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return err
	}
	for _, rel := range []string{cfg.Store.DBPath, cfg.Store.CachePath} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
