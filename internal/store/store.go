// Package store persists harvest run history: one row per run plus the
// manifest of tiles that failed during it.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-harvester/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Group  string          `json:"group,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run bookkeeping.
type Store interface {
	CreateRun(ctx context.Context, group, task string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	RecordTileFailures(ctx context.Context, runID string, failures []model.TileFailure) error
	ListTileFailures(ctx context.Context, runID string) ([]model.TileFailure, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ErrRunNotFound is returned when a run id matches nothing.
var ErrRunNotFound = eris.New("run not found")

// Open selects a backend by driver name. SQLite takes a file path, postgres
// a connection string.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
