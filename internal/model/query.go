package model

import (
	"net/url"
	"strconv"
)

// Query holds the search parameters forwarded to the place-search API for
// one request. Paging cursor fields (PageNum, PageSize) are owned by the
// collection engine; Polygon is rewritten per tile during grid harvests.
// Control fields that never reach the API (grid spec, raw-polygon flag) live
// on the task layer instead.
type Query struct {
	Keywords   string
	Types      string
	Region     string
	CityLimit  bool
	ShowFields string
	Children   int

	// Around search.
	Location string
	Radius   int
	SortRule string

	// Polygon search.
	Polygon string

	// Detail search.
	IDs string

	// Paging cursor.
	PageNum  int
	PageSize int
}

// WithPolygon returns a copy of the query bounded by the given ring.
func (q Query) WithPolygon(boundary string) Query {
	q.Polygon = boundary
	return q
}

// WithPage returns a copy of the query with the paging cursor set.
func (q Query) WithPage(num, size int) Query {
	q.PageNum = num
	q.PageSize = size
	return q
}

// Values encodes the query as URL parameters, omitting unset fields.
func (q Query) Values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}

	set("keywords", q.Keywords)
	set("types", q.Types)
	set("region", q.Region)
	if q.CityLimit {
		v.Set("city_limit", "true")
	}
	set("show_fields", q.ShowFields)
	if q.Children != 0 {
		v.Set("children", strconv.Itoa(q.Children))
	}
	set("location", q.Location)
	if q.Radius > 0 {
		v.Set("radius", strconv.Itoa(q.Radius))
	}
	set("sort_rule", q.SortRule)
	set("polygon", q.Polygon)
	set("id", q.IDs)
	if q.PageNum > 0 {
		v.Set("page_num", strconv.Itoa(q.PageNum))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}
