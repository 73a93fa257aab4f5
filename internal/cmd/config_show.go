package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jayminwest/kota-gateway/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the attention policy document",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active attention policy as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store := config.NewStore(cfg.AttentionConfigPath())
		if err := store.Load(); err != nil {
			return fmt.Errorf("loading attention config: %w", err)
		}

		out, err := json.MarshalIndent(store.Current(), "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling attention config: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default attention policy if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		store := config.NewStore(cfg.AttentionConfigPath())
		if err := store.EnsureDefaults(); err != nil {
			return fmt.Errorf("writing defaults: %w", err)
		}
		fmt.Printf("attention policy at %s\n", store.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
