// Package harvest composes the tiling generator and the collection engine:
// one collection per tile, merged across tiles by POI id.
package harvest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-harvester/internal/collector"
	"github.com/sells-group/poi-harvester/internal/model"
	"github.com/sells-group/poi-harvester/internal/resilience"
	"github.com/sells-group/poi-harvester/internal/tiling"
)

// Result is the merged outcome of a grid run. Items holds the deduplicated
// union in first-occurrence order; Failures is the manifest of tiles that
// produced no (complete) data and why.
type Result struct {
	Items         []model.Item
	Failures      []model.TileFailure
	TilesSearched int
	Duplicates    int
	Dropped       int // items discarded for missing an identity key
}

// Summary condenses the result for run bookkeeping.
func (r *Result) Summary(outputs map[string]string) *model.RunSummary {
	return &model.RunSummary{
		Items:         len(r.Items),
		Duplicates:    r.Duplicates,
		Dropped:       r.Dropped,
		TilesSearched: r.TilesSearched,
		TilesFailed:   len(r.Failures),
		Outputs:       outputs,
	}
}

// Orchestrator runs the per-tile collections sequentially and owns the
// dedup set. Single-threaded by design: the upstream rate limit is global,
// so there is nothing to gain from fanning out.
type Orchestrator struct {
	collector *collector.Collector
}

// NewOrchestrator creates an orchestrator over the given collector.
func NewOrchestrator(c *collector.Collector) *Orchestrator {
	return &Orchestrator{collector: c}
}

// Run collects every tile in emission order, folding items into an id-keyed
// set where the first occurrence wins. A retryable failure abandons only its
// tile; a fatal service error (quota gone, credentials dead) also stops the
// remaining tiles, since every further request would fail the same way. The
// partial result is always returned; err is non-nil only for the fatal case.
func (o *Orchestrator) Run(ctx context.Context, cells []tiling.Cell, base model.Query) (*Result, error) {
	log := zap.L().With(zap.String("component", "harvest"))
	log.Info("starting grid run", zap.Int("tiles", len(cells)))

	res := &Result{}
	seen := make(map[string]struct{})

	var fatalErr error
	for i, cell := range cells {
		boundary := cell.Boundary()
		items, err := o.collector.CollectAll(ctx, base.WithPolygon(boundary))

		// Items gathered before a mid-tile failure are still merged; the
		// failure manifest records that the tile is incomplete.
		res.merge(items, seen, log)

		if err != nil {
			fatal := resilience.IsFatal(err)
			res.Failures = append(res.Failures, model.TileFailure{
				Index:    i,
				Boundary: boundary,
				Fatal:    fatal,
				Reason:   err.Error(),
			})
			if fatal {
				log.Error("fatal service error, abandoning remaining tiles",
					zap.Int("tile", i), zap.Int("remaining", len(cells)-i-1), zap.Error(err))
				fatalErr = err
				break
			}
			log.Warn("tile collection failed", zap.Int("tile", i), zap.Error(err))
			continue
		}

		res.TilesSearched++
		log.Info("tile collected",
			zap.Int("tile", i),
			zap.Int("tile_items", len(items)),
			zap.Int("unique_total", len(res.Items)),
		)
	}

	log.Info("grid run complete",
		zap.Int("tiles_searched", res.TilesSearched),
		zap.Int("unique_items", len(res.Items)),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("dropped_no_id", res.Dropped),
		zap.Int("failed_tiles", len(res.Failures)),
	)

	if fatalErr != nil {
		return res, eris.Wrap(fatalErr, "harvest: grid run aborted")
	}
	return res, nil
}

// merge folds items into the result, first id occurrence wins. Items without
// an id are dropped and counted; tiles overlap by design, so collisions here
// are expected rather than suspicious.
func (r *Result) merge(items []model.Item, seen map[string]struct{}, log *zap.Logger) {
	for _, item := range items {
		id := item.ID()
		if id == "" {
			r.Dropped++
			log.Debug("dropping item without identity key")
			continue
		}
		if _, dup := seen[id]; dup {
			r.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		r.Items = append(r.Items, item)
	}
}
