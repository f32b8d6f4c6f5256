package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/rdalcega/docdex/internal/ingest"
)

// cliProgress implements progress reporting with a progress bar.
type cliProgress struct {
	quiet bool
	bar   *progressbar.ProgressBar
}

func newCLIProgress(quiet bool) *cliProgress {
	return &cliProgress{quiet: quiet}
}

func (c *cliProgress) OnDiscoveryStart() {
	if c.quiet {
		return
	}
	log.Println("Discovering files...")
}

func (c *cliProgress) OnDiscoveryComplete(files int) {
	if c.quiet {
		return
	}
	log.Printf("Found %d files to consider\n", files)
}

func (c *cliProgress) OnIngestStart(totalFiles int) {
	if c.quiet || totalFiles == 0 {
		return
	}
	c.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription("Indexing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (c *cliProgress) OnFileProcessed(name string) {
	if c.quiet || c.bar == nil {
		return
	}
	c.bar.Add(1)
}

func (c *cliProgress) OnComplete(stats *ingest.Stats) {
	if c.quiet {
		return
	}
	if c.bar != nil {
		c.bar.Finish()
		c.bar = nil
	}

	fmt.Println()
	fmt.Printf("✓ Ingestion complete: %d chunks in %.1fs\n",
		stats.TotalChunks, stats.Duration.Seconds())
	fmt.Printf("  Processed:   %d\n", stats.Processed)
	fmt.Printf("  Unchanged:   %d\n", stats.Skipped)
	if stats.Unsupported > 0 {
		fmt.Printf("  Unsupported: %d\n", stats.Unsupported)
	}
	if stats.Failed > 0 {
		fmt.Printf("  Failed:      %d\n", stats.Failed)
	}
	if stats.Removed > 0 {
		fmt.Printf("  Cleaned up:  %d deleted files\n", stats.Removed)
	}
}
