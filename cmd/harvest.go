package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/poi-harvester/internal/sink"
	"github.com/sells-group/poi-harvester/internal/store"
	"github.com/sells-group/poi-harvester/internal/task"
	"github.com/sells-group/poi-harvester/pkg/amap"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run POI harvesting tasks",
}

// -- harvest run --

var harvestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the task groups of a task file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("harvest"); err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		groups, _ := cmd.Flags().GetStringSlice("group")

		f, err := task.Load(file)
		if err != nil {
			return err
		}

		runner, st, err := initRunner(ctx, f.Global)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		results, err := runner.RunFile(ctx, f, groups)
		printGroupResults(results)
		if err != nil {
			return err
		}

		for _, g := range results {
			if g.Succeeded < g.Total {
				return eris.Errorf("harvest: %d task(s) failed", totalFailed(results))
			}
		}
		return nil
	},
}

// -- harvest grid --

var harvestGridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Run a one-off grid harvest from flags",
	Long:  "Builds a single polygon-grid task from command-line flags, without a task file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("harvest"); err != nil {
			return err
		}

		gridCfg, err := gridConfigFromFlags(cmd)
		if err != nil {
			return err
		}
		keywords, _ := cmd.Flags().GetString("keywords")
		types, _ := cmd.Flags().GetString("types")
		showFields, _ := cmd.Flags().GetString("show-fields")
		prefix, _ := cmd.Flags().GetString("output-prefix")
		formats, _ := cmd.Flags().GetStringSlice("formats")

		t := task.Task{
			Name: "grid",
			Params: task.Params{
				Keywords:    keywords,
				Types:       types,
				ShowFields:  showFields,
				PolygonGrid: gridCfg,
			},
			Output: sink.OutputSpec{Prefix: prefix, Formats: formats},
		}

		runner, st, err := initRunner(ctx, task.GlobalSettings{})
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		res := runner.RunGroup(ctx, "grid", task.Group{
			API:          task.APIAmap,
			SearchMethod: "polygon",
			Tasks:        []task.Task{t},
		})
		printGroupResults([]task.GroupResult{res})

		if res.Succeeded < res.Total {
			return eris.New("harvest: grid run failed")
		}
		return nil
	},
}

// initRunner builds the shared runner: API client, sink, store, and the
// collector config with task-file globals folded in.
func initRunner(ctx context.Context, g task.GlobalSettings) (*task.Runner, store.Store, error) {
	client := amap.NewClient(cfg.Amap.Key,
		amap.WithBaseURL(cfg.Amap.BaseURL),
		amap.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Harvest.TimeoutSecs) * time.Second}),
	)

	outDir := cfg.Output.Dir
	if g.OutputDir != "" {
		outDir = g.OutputDir
	}
	addTS := cfg.Output.AddTimestamp
	if g.AddTimestamp != nil {
		addTS = *g.AddTimestamp
	}
	timeFormat := cfg.Output.TimeFormat
	if g.TimeFormat != "" {
		timeFormat = g.TimeFormat
	}
	out := sink.NewFileSink(outDir, addTS, timeFormat)

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	collCfg := task.ApplyGlobals(cfg.Harvest.CollectorConfig(), g)
	return task.NewRunner(client, collCfg, out, st), st, nil
}

func printGroupResults(results []task.GroupResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, g := range results {
		if err := enc.Encode(g); err != nil {
			zap.L().Warn("could not render group result", zap.Error(err))
		}
	}
}

func totalFailed(results []task.GroupResult) int {
	n := 0
	for _, g := range results {
		n += g.Total - g.Succeeded
	}
	return n
}

func gridConfigFromFlags(cmd *cobra.Command) (*task.GridConfig, error) {
	centerLng, _ := cmd.Flags().GetFloat64("center-lng")
	centerLat, _ := cmd.Flags().GetFloat64("center-lat")
	regionRadius, _ := cmd.Flags().GetFloat64("region-radius")
	edgeLength, _ := cmd.Flags().GetFloat64("edge-length")
	sides, _ := cmd.Flags().GetInt("sides")

	if regionRadius <= 0 || edgeLength <= 0 {
		return nil, eris.New("harvest: --region-radius and --edge-length must be > 0")
	}
	return &task.GridConfig{
		CenterLng:    centerLng,
		CenterLat:    centerLat,
		RegionRadius: regionRadius,
		EdgeLength:   edgeLength,
		NumSides:     sides,
	}, nil
}

func addGridFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("center-lng", 0, "region center longitude")
	cmd.Flags().Float64("center-lat", 0, "region center latitude")
	cmd.Flags().Float64("region-radius", 0, "region radius in meters")
	cmd.Flags().Float64("edge-length", 0, "tile edge length in meters")
	cmd.Flags().Int("sides", 6, "tile polygon sides (3, 4, or 6+)")
}

func init() {
	harvestRunCmd.Flags().StringP("file", "f", "tasks.yaml", "task file path")
	harvestRunCmd.Flags().StringSliceP("group", "g", nil, "task group(s) to run (default: all)")

	addGridFlags(harvestGridCmd)
	harvestGridCmd.Flags().String("keywords", "", "search keywords")
	harvestGridCmd.Flags().String("types", "", "POI type codes")
	harvestGridCmd.Flags().String("show-fields", "", "extra response field groups")
	harvestGridCmd.Flags().String("output-prefix", "grid", "output filename prefix")
	harvestGridCmd.Flags().StringSlice("formats", []string{"csv"}, "output formats (csv, json, xlsx)")

	harvestCmd.AddCommand(harvestRunCmd)
	harvestCmd.AddCommand(harvestGridCmd)
	rootCmd.AddCommand(harvestCmd)
}
