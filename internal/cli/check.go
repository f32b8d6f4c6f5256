package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	repairFlag bool
	dryRunFlag bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the index is consistent with the filesystem",
	Long: `Check compares the chunk store and fingerprint cache against the files
on disk and reports discrepancies: chunks for deleted files, duplicate
chunk positions, and stale cache entries.

With --repair, the problems are fixed: orphaned chunks and stale cache
entries are removed, and files with duplicate chunks are re-ingested.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&repairFlag, "repair", false, "Fix the problems found")
	checkCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "With --repair, only report what would be fixed")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if repairFlag {
		fixed, err := a.ingester.Repair(ctx, dryRunFlag)
		if err != nil {
			return err
		}
		if dryRunFlag {
			fmt.Printf("%d issue(s) would be fixed\n", fixed)
		} else {
			fmt.Printf("✓ Fixed %d issue(s)\n", fixed)
		}
		return nil
	}

	issues, err := a.ingester.CheckConsistency(ctx)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Println("✓ Index is consistent")
		return nil
	}

	for _, issue := range issues {
		fmt.Printf("%-18s %s: %s\n", issue.Kind, issue.Source, issue.Detail)
	}
	return fmt.Errorf("%d consistency issue(s) found", len(issues))
}
