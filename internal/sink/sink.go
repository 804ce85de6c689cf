// Package sink serializes harvested items to output files. The harvester
// treats it as fire-and-forget beyond logging the outcome.
package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/poi-harvester/internal/model"
)

// OutputSpec names the artifacts one task wants written.
type OutputSpec struct {
	Prefix  string   `yaml:"filename_prefix"`
	Formats []string `yaml:"formats"`
}

// Sink writes a harvested item set. Returns format→path for everything written.
type Sink interface {
	Write(ctx context.Context, items []model.Item, spec OutputSpec) (map[string]string, error)
}

// FileSink writes CSV, JSON, and XLSX files under a per-run timestamped
// directory.
type FileSink struct {
	dir          string
	addTimestamp bool

	once    sync.Once
	onceErr error
}

// NewFileSink creates a sink rooted at baseDir. When addTimestamp is set,
// outputs land in a subdirectory named for the run start time and filenames
// carry a write timestamp.
func NewFileSink(baseDir string, addTimestamp bool, timeFormat string) *FileSink {
	dir := baseDir
	if addTimestamp {
		if timeFormat == "" {
			timeFormat = "20060102_1504"
		}
		dir = filepath.Join(baseDir, time.Now().Format(timeFormat))
	}
	return &FileSink{dir: dir, addTimestamp: addTimestamp}
}

// Dir returns the resolved output directory.
func (s *FileSink) Dir() string { return s.dir }

// Write renders items in every requested format. Formats are independent, so
// they are written concurrently; the item set itself is read-only here.
func (s *FileSink) Write(ctx context.Context, items []model.Item, spec OutputSpec) (map[string]string, error) {
	if len(items) == 0 {
		zap.L().Warn("nothing to write", zap.String("prefix", spec.Prefix))
		return map[string]string{}, nil
	}

	s.once.Do(func() {
		s.onceErr = os.MkdirAll(s.dir, 0o755)
	})
	if s.onceErr != nil {
		return nil, eris.Wrapf(s.onceErr, "sink: create output dir %s", s.dir)
	}

	prefix := spec.Prefix
	if prefix == "" {
		prefix = "poi_data"
	}
	if s.addTimestamp {
		prefix += "_" + time.Now().Format("20060102_150405")
	}

	formats := spec.Formats
	if len(formats) == 0 {
		formats = []string{"csv"}
	}

	var mu sync.Mutex
	written := make(map[string]string)

	g, _ := errgroup.WithContext(ctx)
	for _, format := range formats {
		path := filepath.Join(s.dir, prefix+"."+format)
		g.Go(func() error {
			var err error
			switch format {
			case "csv":
				err = writeCSV(items, path)
			case "json":
				err = writeJSON(items, path)
			case "xlsx":
				err = writeXLSX(items, path)
			default:
				return eris.Errorf("sink: unsupported format %q", format)
			}
			if err != nil {
				return err
			}

			mu.Lock()
			written[format] = path
			mu.Unlock()
			zap.L().Info("output written", zap.String("format", format), zap.String("path", path))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return written, err
	}
	return written, nil
}

func flattenAll(items []model.Item) ([]map[string]string, []string) {
	flat := make([]map[string]string, len(items))
	for i, item := range items {
		flat[i] = Flatten(item)
	}
	return flat, Columns(flat)
}

func writeCSV(items []model.Item, path string) error {
	flat, cols := flattenAll(items)

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "sink: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return eris.Wrap(err, "sink: write csv header")
	}
	row := make([]string, len(cols))
	for _, rec := range flat {
		for i, col := range cols {
			row[i] = rec[col]
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "sink: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "sink: flush csv")
}

func writeJSON(items []model.Item, path string) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return eris.Wrap(err, "sink: marshal json")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "sink: write %s", path)
}

func writeXLSX(items []model.Item, path string) error {
	flat, cols := flattenAll(items)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("POIs")
	if err != nil {
		return eris.Wrap(err, "sink: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range cols {
		header.AddCell().Value = col
	}
	for _, rec := range flat {
		row := sheet.AddRow()
		for _, col := range cols {
			row.AddCell().Value = rec[col]
		}
	}

	return eris.Wrapf(file.Save(path), "sink: write %s", path)
}
