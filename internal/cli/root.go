package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dirFlag string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docdex",
	Short: "Docdex - semantic search over your documents",
	Long: `Docdex indexes the documents in a directory into semantically
searchable chunks with vector embeddings, keeps the index in sync as files
change, and answers natural-language queries against it.

Configuration lives in .docdex/config.yml under the indexed directory;
environment variables prefixed with DOCDEX_ override it.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "directory to operate on (default is the working directory)")
}

// resolveRoot returns the absolute directory a command operates on.
func resolveRoot() (string, error) {
	dir := dirFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := absPath(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
