package model

import "time"

// RunStatus tracks a harvest run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded execution of a harvest task.
type Run struct {
	ID        string      `json:"id"`
	Group     string      `json:"group"`
	Task      string      `json:"task"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary condenses a finished run: what was collected, what was
// discarded, and where the outputs landed.
type RunSummary struct {
	Items         int               `json:"items"`
	Duplicates    int               `json:"duplicates"`
	Dropped       int               `json:"dropped"`
	TilesSearched int               `json:"tiles_searched"`
	TilesFailed   int               `json:"tiles_failed"`
	Outputs       map[string]string `json:"outputs,omitempty"`
}

// TileFailure records why one tile's collection was abandoned.
type TileFailure struct {
	Index    int    `json:"index"`
	Boundary string `json:"boundary"`
	Fatal    bool   `json:"fatal"`
	Reason   string `json:"reason"`
}
