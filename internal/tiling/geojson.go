package tiling

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection renders cells as a GeoJSON FeatureCollection for preview
// tooling. Each feature carries the cell index and its wire-format boundary.
func FeatureCollection(cells []Cell) ([]byte, error) {
	fc := &geojson.FeatureCollection{}
	for i, c := range cells {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: c.Geom(),
			Properties: map[string]any{
				"index":      i,
				"center_lng": c.Center.Lng,
				"center_lat": c.Center.Lat,
				"boundary":   c.Boundary(),
			},
		})
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "tiling: marshal feature collection")
	}
	return data, nil
}
