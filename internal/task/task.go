// Package task loads harvest task files and dispatches each task to the
// search handler its group names.
package task

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/poi-harvester/internal/sink"
	"github.com/sells-group/poi-harvester/internal/tiling"
)

// File is a parsed task configuration document.
type File struct {
	Global GlobalSettings   `yaml:"global_settings"`
	Groups map[string]Group `yaml:"task_groups"`
}

// GlobalSettings override harvester defaults for every task in the file.
// Pointer fields distinguish "absent" from zero.
type GlobalSettings struct {
	OutputDir    string `yaml:"output_dir"`
	AddTimestamp *bool  `yaml:"add_timestamp"`
	TimeFormat   string `yaml:"time_format"`
	MaxRetries   *int   `yaml:"max_retries"`
	RetryDelayMS *int   `yaml:"retry_delay_ms"`
	QPS          *int   `yaml:"qps"`
	PageSize     *int   `yaml:"page_size"`
	MaxPages     *int   `yaml:"max_pages"`
}

// Group is a named set of tasks sharing an API and search method.
type Group struct {
	API          string `yaml:"api"`
	SearchMethod string `yaml:"search_method"`
	Tasks        []Task `yaml:"tasks"`
}

// Task is one search to run and where to put its results.
type Task struct {
	Name   string          `yaml:"name"`
	Params Params          `yaml:"params"`
	Output sink.OutputSpec `yaml:"output"`
}

// Params holds both the fields forwarded to the search API and the control
// fields consumed here (grid spec, raw-polygon flag).
type Params struct {
	Keywords   string `yaml:"keywords"`
	Types      string `yaml:"types"`
	Region     string `yaml:"region"`
	CityLimit  bool   `yaml:"city_limit"`
	ShowFields string `yaml:"show_fields"`
	Children   int    `yaml:"children"`

	Location string `yaml:"location"`
	Radius   int    `yaml:"radius"`
	SortRule string `yaml:"sortrule"`

	Polygon     Polygon     `yaml:"polygon"`
	RawPolygon  bool        `yaml:"raw_polygon"`
	PolygonGrid *GridConfig `yaml:"polygon_grid"`

	IDs []string `yaml:"ids"`
}

// GridConfig describes a tiling grid in task-file form.
type GridConfig struct {
	CenterLng    float64 `yaml:"center_lng"`
	CenterLat    float64 `yaml:"center_lat"`
	RegionRadius float64 `yaml:"region_radius"`
	EdgeLength   float64 `yaml:"edge_length"`
	NumSides     int     `yaml:"num_sides"`
}

// Spec converts the grid config into a generator spec, defaulting to hexagons.
func (g *GridConfig) Spec() tiling.GridSpec {
	sides := g.NumSides
	if sides == 0 {
		sides = 6
	}
	return tiling.GridSpec{
		Center:       tiling.Point{Lng: g.CenterLng, Lat: g.CenterLat},
		RegionRadius: g.RegionRadius,
		EdgeLength:   g.EdgeLength,
		Sides:        sides,
	}
}

// Polygon accepts either a pre-formatted boundary string or a list of
// [lng, lat] coordinate pairs.
type Polygon struct {
	Raw    string
	Coords [][2]float64
}

// UnmarshalYAML decodes a scalar as a wire-format boundary and a sequence as
// coordinate pairs.
func (p *Polygon) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&p.Raw)
	case yaml.SequenceNode:
		return node.Decode(&p.Coords)
	default:
		return eris.New("task: polygon must be a string or a list of [lng, lat] pairs")
	}
}

// IsZero reports whether no polygon was configured.
func (p Polygon) IsZero() bool {
	return p.Raw == "" && len(p.Coords) == 0
}

// Param renders the polygon in wire format. Unless raw is set, the ring is
// closed so the first and last vertex match.
func (p Polygon) Param(raw bool) string {
	s := p.Raw
	if len(p.Coords) > 0 {
		parts := make([]string, len(p.Coords))
		for i, c := range p.Coords {
			parts[i] = strconv.FormatFloat(c[0], 'f', -1, 64) + "," + strconv.FormatFloat(c[1], 'f', -1, 64)
		}
		s = strings.Join(parts, "|")
	}
	if raw || s == "" {
		return s
	}
	return tiling.CloseBoundary(s)
}

// Load reads and validates a task file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "task: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a task document from YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "task: parse yaml")
	}
	if len(f.Groups) == 0 {
		return nil, eris.New("task: no task_groups defined")
	}
	for name, g := range f.Groups {
		if g.API == "" {
			return nil, eris.Errorf("task: group %q missing api", name)
		}
		if g.SearchMethod == "" {
			return nil, eris.Errorf("task: group %q missing search_method", name)
		}
		if len(g.Tasks) == 0 {
			return nil, eris.Errorf("task: group %q has no tasks", name)
		}
	}
	return &f, nil
}

// GroupNames returns the configured group names sorted for stable iteration.
func (f *File) GroupNames() []string {
	names := make([]string, 0, len(f.Groups))
	for name := range f.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
