package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-harvester/internal/tiling"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Inspect tiling grids without hitting the API",
}

var gridPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Generate a grid and print it as GeoJSON or boundary strings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		gridCfg, err := gridConfigFromFlags(cmd)
		if err != nil {
			return err
		}

		cells, err := gridCfg.Spec().Generate()
		if err != nil {
			return err
		}
		zap.L().Info("grid generated", zap.Int("tiles", len(cells)))

		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")

		var data []byte
		switch format {
		case "geojson":
			data, err = tiling.FeatureCollection(cells)
			if err != nil {
				return err
			}
		case "boundaries":
			for _, c := range cells {
				data = append(data, c.Boundary()...)
				data = append(data, '\n')
			}
		default:
			return eris.Errorf("grid: unsupported format %q (geojson, boundaries)", format)
		}

		if outPath == "" || outPath == "-" {
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return eris.Wrapf(err, "grid: write %s", outPath)
		}
		zap.L().Info("grid written", zap.String("path", outPath))
		return nil
	},
}

func init() {
	addGridFlags(gridPreviewCmd)
	gridPreviewCmd.Flags().String("format", "geojson", "output format (geojson, boundaries)")
	gridPreviewCmd.Flags().StringP("output", "o", "-", "output file (- for stdout)")

	gridCmd.AddCommand(gridPreviewCmd)
	rootCmd.AddCommand(gridCmd)
}
