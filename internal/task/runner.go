package task

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-harvester/internal/collector"
	"github.com/sells-group/poi-harvester/internal/harvest"
	"github.com/sells-group/poi-harvester/internal/model"
	"github.com/sells-group/poi-harvester/internal/resilience"
	"github.com/sells-group/poi-harvester/internal/sink"
	"github.com/sells-group/poi-harvester/internal/store"
	"github.com/sells-group/poi-harvester/pkg/amap"
)

// APIAmap is the only place-search API currently wired into the registry.
const APIAmap = "amap"

// TaskResult summarizes one task's execution.
type TaskResult struct {
	Name    string            `json:"task_name"`
	RunID   string            `json:"run_id,omitempty"`
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Summary *model.RunSummary `json:"summary,omitempty"`
}

// GroupResult aggregates the task results of one group.
type GroupResult struct {
	Group        string       `json:"group_name"`
	API          string       `json:"api"`
	SearchMethod string       `json:"search_method"`
	Total        int          `json:"total_tasks"`
	Succeeded    int          `json:"successful_tasks"`
	Results      []TaskResult `json:"task_results"`
}

// Runner executes task groups against a place-search client, writing outputs
// through the sink and recording run history in the store when one is set.
type Runner struct {
	collector *collector.Collector
	sink      sink.Sink
	store     store.Store
	registry  *Registry
}

// NewRunner wires a runner over the shared collector. The store may be nil,
// in which case run bookkeeping is skipped.
func NewRunner(client amap.Client, cfg collector.Config, s sink.Sink, st store.Store) *Runner {
	r := &Runner{
		collector: collector.New(harvest.NewRoutingFetcher(client), cfg),
		sink:      s,
		store:     st,
		registry:  NewRegistry(),
	}
	r.registry.Register(APIAmap, "keywords", r.handleKeywords)
	r.registry.Register(APIAmap, "around", r.handleAround)
	r.registry.Register(APIAmap, "polygon", r.handlePolygon)
	r.registry.Register(APIAmap, "id", r.handleID)
	return r
}

// ApplyGlobals folds task-file global settings into a collector config.
func ApplyGlobals(cfg collector.Config, g GlobalSettings) collector.Config {
	if g.PageSize != nil {
		cfg.PageSize = *g.PageSize
	}
	if g.MaxPages != nil {
		cfg.MaxPages = *g.MaxPages
	}
	if g.QPS != nil {
		cfg.RPS = float64(*g.QPS)
	}
	if g.MaxRetries != nil {
		cfg.Retry.MaxRetries = *g.MaxRetries
	}
	if g.RetryDelayMS != nil {
		cfg.Retry.Delay = time.Duration(*g.RetryDelayMS) * time.Millisecond
	}
	return cfg
}

// RunFile executes the named groups of a task file, or every group in sorted
// order when names is empty. Group failures are reported per group; one bad
// group does not stop the rest.
func (r *Runner) RunFile(ctx context.Context, f *File, names []string) ([]GroupResult, error) {
	if len(names) == 0 {
		names = f.GroupNames()
	}

	var results []GroupResult
	for _, name := range names {
		g, ok := f.Groups[name]
		if !ok {
			return results, eris.Errorf("task: unknown group %q", name)
		}
		results = append(results, r.RunGroup(ctx, name, g))
	}
	return results, nil
}

// RunGroup executes every task in a group sequentially. A failing task is
// recorded and the remaining tasks still run; a cancelled context stops the
// group.
func (r *Runner) RunGroup(ctx context.Context, name string, g Group) GroupResult {
	log := zap.L().With(zap.String("group", name))
	log.Info("processing task group",
		zap.String("api", g.API),
		zap.String("search_method", g.SearchMethod),
		zap.Int("tasks", len(g.Tasks)),
	)

	res := GroupResult{
		Group:        name,
		API:          g.API,
		SearchMethod: g.SearchMethod,
		Total:        len(g.Tasks),
	}

	handler, err := r.registry.Get(g.API, g.SearchMethod)
	if err != nil {
		for _, t := range g.Tasks {
			res.Results = append(res.Results, TaskResult{
				Name: t.Name, Status: "error", Message: err.Error(),
			})
		}
		return res
	}

	for i, t := range g.Tasks {
		if ctx.Err() != nil {
			break
		}
		if t.Name == "" {
			t.Name = "task_" + strconv.Itoa(i+1)
		}
		tr := r.runTask(ctx, name, t, handler)
		if tr.Status == "success" {
			res.Succeeded++
		}
		res.Results = append(res.Results, tr)
	}
	return res
}

func (r *Runner) runTask(ctx context.Context, group string, t Task, handler Handler) TaskResult {
	log := zap.L().With(zap.String("group", group), zap.String("task", t.Name))
	log.Info("running task")

	tr := TaskResult{Name: t.Name, Status: "success"}

	var runID string
	if r.store != nil {
		run, err := r.store.CreateRun(ctx, group, t.Name)
		if err != nil {
			// Bookkeeping trouble should not block the harvest itself.
			log.Warn("could not record run", zap.Error(err))
		} else {
			runID = run.ID
			tr.RunID = runID
		}
	}

	res, herr := handler(ctx, t)
	if res == nil {
		res = &harvest.Result{}
	}

	var outputs map[string]string
	if len(res.Items) > 0 {
		var werr error
		outputs, werr = r.sink.Write(ctx, res.Items, t.Output)
		if werr != nil && herr == nil {
			herr = werr
		}
	}

	summary := res.Summary(outputs)
	tr.Summary = summary

	if r.store != nil && runID != "" {
		if err := r.store.RecordTileFailures(ctx, runID, res.Failures); err != nil {
			log.Warn("could not record tile failures", zap.Error(err))
		}
	}

	if herr != nil {
		tr.Status = "error"
		tr.Message = herr.Error()
		log.Error("task failed", zap.Error(herr), zap.Int("partial_items", summary.Items))
		if r.store != nil && runID != "" {
			if err := r.store.FailRun(ctx, runID, herr.Error()); err != nil {
				log.Warn("could not record run failure", zap.Error(err))
			}
		}
		return tr
	}

	log.Info("task complete",
		zap.Int("items", summary.Items),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("tiles_failed", summary.TilesFailed),
	)
	if r.store != nil && runID != "" {
		if err := r.store.CompleteRun(ctx, runID, summary); err != nil {
			log.Warn("could not record run completion", zap.Error(err))
		}
	}
	return tr
}

// handlers

func (r *Runner) handleKeywords(ctx context.Context, t Task) (*harvest.Result, error) {
	if t.Params.Keywords == "" {
		return nil, eris.New("task: keywords search requires params.keywords")
	}
	return r.collectOne(ctx, t.Params.baseQuery())
}

func (r *Runner) handleAround(ctx context.Context, t Task) (*harvest.Result, error) {
	if t.Params.Location == "" {
		return nil, eris.New("task: around search requires params.location")
	}
	return r.collectOne(ctx, t.Params.baseQuery())
}

func (r *Runner) handlePolygon(ctx context.Context, t Task) (*harvest.Result, error) {
	if t.Params.PolygonGrid != nil {
		cells, err := t.Params.PolygonGrid.Spec().Generate()
		if err != nil {
			return nil, err
		}
		base := t.Params.baseQuery()
		return harvest.NewOrchestrator(r.collector).Run(ctx, cells, base)
	}

	if t.Params.Polygon.IsZero() {
		return nil, eris.New("task: polygon search requires params.polygon or params.polygon_grid")
	}
	q := t.Params.baseQuery()
	q.Polygon = t.Params.Polygon.Param(t.Params.RawPolygon)
	return r.collectOne(ctx, q)
}

func (r *Runner) handleID(ctx context.Context, t Task) (*harvest.Result, error) {
	if len(t.Params.IDs) == 0 {
		return nil, eris.New("task: id search requires params.ids")
	}

	res := &harvest.Result{}
	ids := t.Params.IDs
	for len(ids) > 0 {
		n := amap.MaxDetailIDs
		if len(ids) < n {
			n = len(ids)
		}
		batch, rest := ids[:n], ids[n:]

		q := t.Params.baseQuery()
		q.IDs = strings.Join(batch, "|")
		items, err := r.collector.CollectAll(ctx, q)
		res.Items = append(res.Items, items...)
		if err != nil {
			return res, err
		}
		ids = rest
	}
	return res, nil
}

// collectOne runs a single (non-grid) collection and folds it into a result.
func (r *Runner) collectOne(ctx context.Context, q model.Query) (*harvest.Result, error) {
	items, err := r.collector.CollectAll(ctx, q)
	res := &harvest.Result{Items: items}
	if err != nil && resilience.IsFatal(err) {
		err = eris.Wrap(err, "task: service unavailable for further requests")
	}
	return res, err
}

func (p Params) baseQuery() model.Query {
	return model.Query{
		Keywords:   p.Keywords,
		Types:      p.Types,
		Region:     p.Region,
		CityLimit:  p.CityLimit,
		ShowFields: p.ShowFields,
		Children:   p.Children,
		Location:   p.Location,
		Radius:     p.Radius,
		SortRule:   p.SortRule,
	}
}
