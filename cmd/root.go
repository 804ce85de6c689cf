package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-harvester/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "poi-harvester",
	Short: "Grid-based POI harvesting for the AMap place-search API",
	Long:  "Tiles a search region into overlapping polygons, exhausts each tile's paginated results, dedups across tiles, and writes CSV/JSON/XLSX outputs.",
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
