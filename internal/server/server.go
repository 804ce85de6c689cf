// Package server exposes the harvester's read-side API: grid previews and
// run history.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-harvester/internal/model"
	"github.com/sells-group/poi-harvester/internal/store"
	"github.com/sells-group/poi-harvester/internal/tiling"
)

// Server serves grid previews and recorded run history.
type Server struct {
	store store.Store
}

// New creates a server over the given run store.
func New(st store.Store) *Server {
	return &Server{store: st}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/grid", s.handleGrid)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGrid renders a tiling grid as GeoJSON so it can be dropped straight
// onto a map for inspection.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	spec := tiling.GridSpec{Sides: 6}
	var err error
	parse := func(name string, dst *float64) {
		if err != nil {
			return
		}
		*dst, err = strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			err = eris.Wrapf(err, "parameter %s", name)
		}
	}
	parse("center_lng", &spec.Center.Lng)
	parse("center_lat", &spec.Center.Lat)
	parse("region_radius", &spec.RegionRadius)
	parse("edge_length", &spec.EdgeLength)
	if err == nil && q.Get("num_sides") != "" {
		spec.Sides, err = strconv.Atoi(q.Get("num_sides"))
		if err != nil {
			err = eris.Wrap(err, "parameter num_sides")
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cells, err := spec.Generate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	data, err := tiling.FeatureCollection(cells)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Group:  q.Get("group"),
	}
	if lim := q.Get("limit"); lim != "" {
		n, err := strconv.Atoi(lim)
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrap(err, "parameter limit"))
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if eris.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	failures, err := s.store.ListTileFailures(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if failures == nil {
		failures = []model.TileFailure{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":           run,
		"tile_failures": failures,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
