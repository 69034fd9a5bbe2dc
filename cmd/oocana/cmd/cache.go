package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oocana-go/oocana/internal/infrastructure/cache"
)

var cacheDir string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the local run-from-node cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached snapshot and cache-meta entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cache.NewFileBackend(cacheDir)
		if err != nil {
			return fmt.Errorf("opening cache at %s: %w", cacheDir, err)
		}
		if err := backend.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Println("cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", defaultCacheDir(), "directory holding cached run snapshots")
	cacheCmd.AddCommand(cacheClearCmd)
}
