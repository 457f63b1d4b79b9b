package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaiakodi/gaiasource/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached response, page and pack",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := cache.Open(cmd.Context(), cfg.CacheOptions())
		if err != nil {
			return err
		}
		defer store.Close()

		clearer, ok := store.(cache.Clearer)
		if !ok {
			return fmt.Errorf("the %s cache cannot be cleared", cfg.Cache.Backend)
		}
		if err := clearer.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s cache.\n", cfg.Cache.Backend)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
