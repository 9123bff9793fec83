package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/netpulsehq/netpulse/internal/config"
	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/store"
	"github.com/netpulsehq/netpulse/internal/utils"
)

// Server exposes read-only JSON projections over the append-only tables.
// It never writes; external history/graph/export tooling consumes these
// endpoints while the engine remains the sole writer.
type Server struct {
	logger *slog.Logger
	store  store.Store
	http   *http.Server
}

func New(conf config.ServerConfig, logger *slog.Logger, st store.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger: logger.With("component", "query-server"),
		store:  st,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/states", s.handleStates)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/networks", s.handleNetworks)
	mux.HandleFunc("GET /api/v1/networks/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:         conf.Address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Handler exposes the route table; used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() error {
	s.logger.Info("query server listening", slog.String("address", s.http.Addr))
	err := s.http.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseRange(w, r)
	if !ok {
		return
	}
	runs, err := s.store.Runs(r.Context(), models.RunFilter{
		NetworkID: models.NetworkID(r.URL.Query().Get("network_id")),
		Range:     rng,
		Limit:     parseLimit(r),
	})
	if err != nil {
		s.fail(w, "query runs", err)
		return
	}
	s.respond(w, map[string]any{"runs": emptyIfNil(runs)})
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	networkID := models.NetworkID(r.URL.Query().Get("network_id"))
	if networkID == "" {
		http.Error(w, "network_id is required", http.StatusBadRequest)
		return
	}
	rng, ok := parseRange(w, r)
	if !ok {
		return
	}
	records, err := s.store.StateHistory(r.Context(), networkID, rng)
	if err != nil {
		s.fail(w, "query state history", err)
		return
	}

	resp := map[string]any{"states": emptyIfNil(records)}
	if current, err := s.store.CurrentState(r.Context(), networkID); err == nil {
		resp["current"] = current
	} else if !errors.Is(err, utils.ErrNotFound) {
		s.fail(w, "query current state", err)
		return
	}
	s.respond(w, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseRange(w, r)
	if !ok {
		return
	}
	events, err := s.store.Events(r.Context(), models.EventFilter{
		NetworkID: models.NetworkID(r.URL.Query().Get("network_id")),
		Type:      models.EventType(r.URL.Query().Get("type")),
		Range:     rng,
		Limit:     parseLimit(r),
	})
	if err != nil {
		s.fail(w, "query events", err)
		return
	}
	s.respond(w, map[string]any{"events": emptyIfNil(events)})
}

func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.Profiles(r.Context())
	if err != nil {
		s.fail(w, "query networks", err)
		return
	}
	s.respond(w, map[string]any{"networks": emptyIfNil(profiles)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rng, ok := parseRange(w, r)
	if !ok {
		return
	}
	stats, err := s.store.NetworkStats(r.Context(), models.NetworkID(r.PathValue("id")), rng)
	if err != nil {
		s.fail(w, "query stats", err)
		return
	}
	s.respond(w, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, map[string]string{"status": "ok"})
}

func (s *Server) respond(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("encode response", slog.Any("error", err))
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, slog.Any("error", err))
	http.Error(w, msg, http.StatusInternalServerError)
}

func parseRange(w http.ResponseWriter, r *http.Request) (models.TimeRange, bool) {
	var rng models.TimeRange
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := utils.ParseRFC3339(since)
		if err != nil {
			http.Error(w, "invalid since: "+err.Error(), http.StatusBadRequest)
			return rng, false
		}
		rng.Start = t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := utils.ParseRFC3339(until)
		if err != nil {
			http.Error(w, "invalid until: "+err.Error(), http.StatusBadRequest)
			return rng, false
		}
		rng.End = t
	}
	return rng, true
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
