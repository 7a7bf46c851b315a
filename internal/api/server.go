// Package api serves the reporting surface over HTTP: boundary statistics,
// the validation report, and category distributions. It is read-only; all
// mutation happens through the CLI.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/meridian-civic/districtwatch/internal/geometry"
	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/store"
	"github.com/meridian-civic/districtwatch/internal/validate"
)

// Server exposes the reporting endpoints.
type Server struct {
	store     store.Store
	validator *validate.Validator
	router    chi.Router
	log       *zap.Logger
}

// NewServer builds the router with CORS and request logging.
func NewServer(s store.Store, v *validate.Validator) *Server {
	srv := &Server{
		store:     s,
		validator: v,
		log:       zap.L().With(zap.String("component", "api")),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", srv.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/boundaries/stats", srv.handleBoundaryStats)
		r.Get("/report", srv.handleReport)
		r.Get("/categories", srv.handleCategories)
		r.Get("/sample", srv.handleSample)
	})

	srv.router = r
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBoundaryStats returns every active boundary with its planar area.
func (s *Server) handleBoundaryStats(w http.ResponseWriter, r *http.Request) {
	boundaries, err := s.store.ListBoundaries(r.Context(), "")
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]model.BoundaryStats, 0, len(boundaries))
	for _, b := range boundaries {
		area, err := geometry.AreaSquareMeters(b.Geometry)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out = append(out, model.BoundaryStats{
			Name:         b.Name,
			Category:     b.Category,
			AreaSqMeters: area,
			CreatedAt:    b.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.validator.Report(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":         stats.TotalIncidents,
		"categories":    stats.Categories,
		"uncategorized": stats.Uncategorized,
	})
}

// handleSample returns up to n random incidents from one category.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	category := model.GeoCategory(r.URL.Query().Get("category"))
	if !category.Valid() {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "category must be one of inside, bordering, outside",
		})
		return
	}

	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "n must be an integer between 1 and 1000",
			})
			return
		}
		n = parsed
	}

	incidents, err := s.store.SampleByCategory(r.Context(), category, n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if incidents == nil {
		incidents = []model.Incident{}
	}
	s.writeJSON(w, http.StatusOK, incidents)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", zap.Error(err))
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal error",
	})
}
