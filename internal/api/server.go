// Package api exposes the resolver, allocator, and aggregator over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/AvallenSolutions/alkatera-sub012/internal/aggregator"
	"github.com/AvallenSolutions/alkatera-sub012/internal/allocator"
	"github.com/AvallenSolutions/alkatera-sub012/internal/model"
	"github.com/AvallenSolutions/alkatera-sub012/internal/resolver"
	"github.com/AvallenSolutions/alkatera-sub012/internal/store"
)

// Server holds the wired engine components behind the HTTP handlers.
type Server struct {
	store      store.Store
	resolver   *resolver.Resolver
	allocator  *allocator.Allocator
	aggregator *aggregator.Aggregator
}

// NewServer creates an API server over the given store and resolver.
func NewServer(st store.Store, r *resolver.Resolver) *Server {
	return &Server{
		store:      st,
		resolver:   r,
		allocator:  allocator.New(),
		aggregator: aggregator.New(st),
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Post("/resolve/batch", s.handleResolveBatch)
		r.Post("/allocate", s.handleAllocate)
		r.Get("/reports/{org}/{year}", s.handleReport)
		r.Post("/factors", s.handleInsertFactor)
		r.Delete("/cache/expired", s.handlePruneCache)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resolveRequest struct {
	Name           string `json:"name"`
	Category       string `json:"category,omitempty"`
	OrganisationID string `json:"organisation_id,omitempty"`
}

func (r resolveRequest) toQuery() (model.FactorQuery, error) {
	q := model.FactorQuery{Name: r.Name, OrganisationID: r.OrganisationID}
	if r.Name == "" {
		return q, errors.New("name is required")
	}
	if r.Category != "" {
		category, err := model.ParseFactorCategory(r.Category)
		if err != nil {
			return q, err
		}
		q.Category = category
	}
	return q, nil
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := req.toQuery()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resolved, err := s.resolver.Resolve(r.Context(), q)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no emission factor found")
			return
		}
		internalError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (s *Server) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queries []resolveRequest `json:"queries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "queries is required")
		return
	}

	queries := make([]model.FactorQuery, len(req.Queries))
	for i, rq := range req.Queries {
		q, err := rq.toQuery()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		queries[i] = q
	}

	results, summary, err := s.resolver.ResolveAll(r.Context(), queries)
	if err != nil {
		internalError(w, "resolve batch", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"summary": summary,
	})
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FacilityID    string  `json:"facility_id"`
		Year          int     `json:"year"`
		ProductVolume float64 `json:"product_volume_litres"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	impacts, err := s.store.GetFacilityImpacts(r.Context(), req.FacilityID, req.Year)
	if err != nil {
		internalError(w, "load facility impacts", err)
		return
	}
	if impacts == nil {
		writeError(w, http.StatusNotFound, "no impacts recorded for facility and year")
		return
	}

	allocated, err := s.allocator.Allocate(*impacts, req.ProductVolume)
	if err != nil {
		// Every allocator error is an input rejection, not a system fault.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, allocated)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	org := chi.URLParam(r, "org")
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}

	report, err := s.aggregator.Aggregate(r.Context(), org, year)
	if err != nil {
		internalError(w, "aggregate", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleInsertFactor(w http.ResponseWriter, r *http.Request) {
	var factor model.ImpactFactor
	if err := json.NewDecoder(r.Body).Decode(&factor); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := factor.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	inserted, err := s.store.InsertFactor(r.Context(), factor)
	if err != nil {
		internalError(w, "insert factor", err)
		return
	}
	writeJSON(w, http.StatusCreated, inserted)
}

func (s *Server) handlePruneCache(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.DeleteExpiredFactors(r.Context())
	if err != nil {
		internalError(w, "prune cache", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("api: "+action+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
