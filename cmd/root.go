package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "alkatera",
	Short: "Environmental impact resolution and aggregation engine",
	Long:  "Resolves emission factors through a tiered source cascade, allocates facility impacts to products by volumetric share, and aggregates annual Scope 3 inventories.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
