// Package tiling covers a circular region with a grid of regular polygons so
// that a polygon-bounded search endpoint can be driven across areas larger
// than its single-query limit. Cells overlap on purpose; downstream item
// dedup absorbs the duplicate detections.
package tiling

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrInvalidGeometry is returned for malformed grid parameters.
var ErrInvalidGeometry = eris.New("tiling: invalid geometry")

// metersPerDegree is the approximate length of one degree of latitude.
// Longitude degrees shrink by cos(latitude). Good enough at city scale,
// which is the only scale single-query limits force us to tile.
const metersPerDegree = 111320.0

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lng float64
	Lat float64
}

// Cell is one tile: a closed regular-polygon ring and its center.
// Vertices always repeats the first vertex as the last.
type Cell struct {
	Center   Point
	Vertices []Point
}

// GridSpec describes a tiling request. Generate is a pure function of these
// inputs; no state is retained.
type GridSpec struct {
	Center       Point
	RegionRadius float64 // meters
	EdgeLength   float64 // meters
	Sides        int
}

// Circumradius returns the radius of the circle through all vertices of a
// regular polygon with the given edge length and side count.
func Circumradius(edgeLength float64, sides int) float64 {
	return edgeLength / (2 * math.Sin(math.Pi/float64(sides)))
}

// spacing returns the center-to-center grid distances for the tiling and the
// horizontal stagger applied to odd rows.
func (s GridSpec) spacing() (width, height, stagger float64) {
	sin60 := math.Sin(math.Pi / 3)
	switch s.Sides {
	case 3:
		// Triangles interlock tip-to-tip: one edge across, sin60 rows.
		return s.EdgeLength, s.EdgeLength * sin60, s.EdgeLength / 2
	case 4:
		return s.EdgeLength, s.EdgeLength, 0
	default:
		// Honeycomb layout for hexagons and hex-like polygons.
		width = s.EdgeLength * (1 + math.Cos(math.Pi/3))
		return width, 2 * s.EdgeLength * sin60, width / 2
	}
}

// Generate produces the grid cells whose centers fall within RegionRadius of
// the spec center, in row-major order. A valid spec that covers no candidate
// centers yields an empty slice, not an error.
func (s GridSpec) Generate() ([]Cell, error) {
	if s.Sides < 3 {
		return nil, eris.Wrapf(ErrInvalidGeometry, "side count %d < 3", s.Sides)
	}
	if s.EdgeLength <= 0 {
		return nil, eris.Wrapf(ErrInvalidGeometry, "edge length %v must be positive", s.EdgeLength)
	}
	if s.RegionRadius <= 0 {
		return nil, eris.Wrapf(ErrInvalidGeometry, "region radius %v must be positive", s.RegionRadius)
	}

	circum := Circumradius(s.EdgeLength, s.Sides)
	width, height, stagger := s.spacing()

	// Local tangent-plane conversion factors at the region center.
	latMeters := metersPerDegree
	lngMeters := metersPerDegree * math.Cos(s.Center.Lat*math.Pi/180)

	span := int(math.Ceil(s.RegionRadius/math.Min(width, height))) + 1

	var cells []Cell
	for row := -span; row <= span; row++ {
		for col := -span; col <= span; col++ {
			offset := 0.0
			if stagger != 0 && row%2 != 0 {
				offset = stagger
			}

			x := float64(col)*width + offset
			y := float64(row) * height
			if math.Hypot(x, y) > s.RegionRadius {
				continue
			}

			center := Point{
				Lng: s.Center.Lng + x/lngMeters,
				Lat: s.Center.Lat + y/latMeters,
			}
			cells = append(cells, s.buildCell(center, circum, lngMeters, latMeters))
		}
	}

	return cells, nil
}

// buildCell places the polygon vertices around a cell center and closes the
// ring by repeating the first vertex.
func (s GridSpec) buildCell(center Point, circum, lngMeters, latMeters float64) Cell {
	step := 2 * math.Pi / float64(s.Sides)
	vertices := make([]Point, 0, s.Sides+1)
	for i := 0; i < s.Sides; i++ {
		angle := float64(i) * step
		vertices = append(vertices, Point{
			Lng: center.Lng + circum*math.Cos(angle)/lngMeters,
			Lat: center.Lat + circum*math.Sin(angle)/latMeters,
		})
	}
	vertices = append(vertices, vertices[0])
	return Cell{Center: center, Vertices: vertices}
}

// Boundary renders the cell in the polygon-search wire format:
// "lng,lat|lng,lat|...|lng,lat" with the first pair repeated last.
func (c Cell) Boundary() string {
	var b strings.Builder
	for i, v := range c.Vertices {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatFloat(v.Lng, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v.Lat, 'f', -1, 64))
	}
	return b.String()
}

// Geom returns the cell ring as a go-geom polygon in EPSG:4326.
func (c Cell) Geom() *geom.Polygon {
	flat := make([]float64, 0, len(c.Vertices)*2)
	for _, v := range c.Vertices {
		flat = append(flat, v.Lng, v.Lat)
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
}

// CloseBoundary normalizes an externally supplied boundary string, appending
// the first coordinate pair when the ring is not already closed.
func CloseBoundary(boundary string) string {
	points := strings.Split(boundary, "|")
	if len(points) > 1 && points[0] != points[len(points)-1] {
		points = append(points, points[0])
		return strings.Join(points, "|")
	}
	return boundary
}
