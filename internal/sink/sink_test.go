package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/poi-harvester/internal/model"
)

func sampleItems() []model.Item {
	return []model.Item{
		{
			"id":       "B001",
			"name":     "Charging Station One",
			"location": "121.123,31.456",
			"business": map[string]any{"open_time": "09:00-22:00", "rating": 4.8},
			"photos": []any{
				map[string]any{"url": "http://example.com/1.jpg", "title": "front"},
				map[string]any{"url": "http://example.com/2.jpg", "title": "inside"},
			},
		},
		{
			"id":       "B002",
			"name":     "Charging Station Two",
			"location": "121.234,31.567",
			"tags":     []any{"fast", "24h"},
		},
	}
}

func TestFlatten(t *testing.T) {
	flat := Flatten(sampleItems()[0])

	assert.Equal(t, "B001", flat["id"])
	assert.Equal(t, "09:00-22:00", flat["business.open_time"])
	assert.Equal(t, "4.8", flat["business.rating"])
	assert.Equal(t, "2", flat["photos_count"])
	assert.Equal(t, "front", flat["photos_0.title"])
	assert.NotContains(t, flat, "photos")
}

func TestFlatten_ScalarList(t *testing.T) {
	flat := Flatten(sampleItems()[1])
	assert.Equal(t, "fast;24h", flat["tags"])
}

func TestFlatten_IntegerishNumbers(t *testing.T) {
	flat := Flatten(map[string]any{"count": float64(12), "ratio": 0.5})
	assert.Equal(t, "12", flat["count"])
	assert.Equal(t, "0.5", flat["ratio"])
}

func TestColumns_UnionSorted(t *testing.T) {
	cols := Columns([]map[string]string{
		{"b": "1", "a": "2"},
		{"c": "3", "a": "4"},
	})
	assert.Equal(t, []string{"a", "b", "c"}, cols)
}

func TestWrite_AllFormats(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir, false, "")

	written, err := s.Write(context.Background(), sampleItems(), OutputSpec{
		Prefix:  "stations",
		Formats: []string{"csv", "json", "xlsx"},
	})
	require.NoError(t, err)
	require.Len(t, written, 3)

	// CSV: header is the column union, rows align with it.
	f, err := os.Open(written["csv"])
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows
	assert.Contains(t, records[0], "business.open_time")
	assert.Contains(t, records[0], "tags")

	// JSON: round-trips to the same item count with nesting intact.
	data, err := os.ReadFile(written["json"])
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "B001", decoded[0]["id"])

	// XLSX: sheet present with header plus data rows.
	wb, err := xlsx.OpenFile(written["xlsx"])
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "POIs", wb.Sheets[0].Name)
	assert.Equal(t, 3, len(wb.Sheets[0].Rows))
}

func TestWrite_EmptyItemsWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir, false, "")

	written, err := s.Write(context.Background(), nil, OutputSpec{Prefix: "empty", Formats: []string{"csv"}})
	require.NoError(t, err)
	assert.Empty(t, written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	s := NewFileSink(t.TempDir(), false, "")
	_, err := s.Write(context.Background(), sampleItems(), OutputSpec{Prefix: "x", Formats: []string{"parquet"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestWrite_DefaultsPrefixAndFormat(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir, false, "")

	written, err := s.Write(context.Background(), sampleItems(), OutputSpec{})
	require.NoError(t, err)
	require.Contains(t, written, "csv")
	assert.Equal(t, filepath.Join(dir, "poi_data.csv"), written["csv"])
}

func TestNewFileSink_TimestampedDir(t *testing.T) {
	base := t.TempDir()
	s := NewFileSink(base, true, "20060102")
	assert.NotEqual(t, base, s.Dir())
	assert.Equal(t, base, filepath.Dir(s.Dir()))
}
