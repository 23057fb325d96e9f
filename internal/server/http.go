package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"NavLedger/internal/ingestion"
	"NavLedger/internal/observability"
	"NavLedger/internal/query"
)

// Server is the HTTP surface: read queries against projections, direct
// event submission, health checks, and Prometheus metrics.
type Server struct {
	queries *query.Service
	ingest  *ingestion.DirectIngest
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(queries *query.Service, ingest *ingestion.DirectIngest, health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		queries: queries,
		ingest:  ingest,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pools/{pool}/nav", s.handlePoolNav)
		r.Get("/pools/{pool}/nav/history", s.handleNavHistory)
		r.Get("/pools/{pool}/balances/wallet", s.handleWalletBalances)
		r.Get("/pools/{pool}/balances/virtual", s.handleVirtualBalances)
		r.Get("/pools/{pool}/sessions/{token}", s.handleSessionStatus)
		r.Get("/watermark", s.handleWatermark)
		r.Post("/events/{eventType}", s.handleIngest)
	})

	return r
}

func (s *Server) handlePoolNav(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pool := chi.URLParam(r, "pool")

	nav, err := s.queries.GetPoolNav(r.Context(), pool)
	if err != nil {
		s.writeQueryError(w, "pool_nav", err)
		return
	}
	s.writeJSON(w, "pool_nav", start, nav)
}

func (s *Server) handleNavHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pool := chi.URLParam(r, "pool")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := s.queries.GetNavHistory(r.Context(), pool, limit)
	if err != nil {
		s.writeQueryError(w, "nav_history", err)
		return
	}
	s.writeJSON(w, "nav_history", start, history)
}

func (s *Server) handleWalletBalances(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pool := chi.URLParam(r, "pool")

	balances, err := s.queries.GetBalances(r.Context(), pool, "wallet")
	if err != nil {
		s.writeQueryError(w, "wallet_balances", err)
		return
	}
	s.writeJSON(w, "wallet_balances", start, balances)
}

func (s *Server) handleVirtualBalances(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pool := chi.URLParam(r, "pool")

	balances, err := s.queries.GetBalances(r.Context(), pool, "virtual_balance")
	if err != nil {
		s.writeQueryError(w, "virtual_balances", err)
		return
	}
	s.writeJSON(w, "virtual_balances", start, balances)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pool := chi.URLParam(r, "pool")
	token := chi.URLParam(r, "token")

	st, err := s.queries.GetSessionStatus(r.Context(), pool, token)
	if errors.Is(err, sql.ErrNoRows) {
		// No row means no session was ever opened for the pair.
		st = &query.SessionStatus{Pool: pool, Token: token, Locked: false}
		err = nil
	}
	if err != nil {
		s.writeQueryError(w, "session_status", err)
		return
	}
	s.writeJSON(w, "session_status", start, st)
}

func (s *Server) handleWatermark(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	seq, err := s.queries.Watermark(r.Context())
	if err != nil {
		s.writeQueryError(w, "watermark", err)
		return
	}
	s.writeJSON(w, "watermark", start, map[string]int64{"last_sequence": seq})
}

// handleIngest accepts one raw event, validated only enough to route it.
// Full parsing happens in the ingest loop, same as NATS deliveries.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "body must be JSON", http.StatusBadRequest)
		return
	}

	if err := s.ingest.Submit(eventType, body); err != nil {
		if errors.Is(err, ingestion.ErrIngestBackpressure) {
			http.Error(w, "ingest backlog full, retry later", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

func (s *Server) writeJSON(w http.ResponseWriter, endpoint string, start time.Time, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Str("endpoint", endpoint).Err(err).Msg("encode response")
	}
	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(endpoint, "ok").Inc()
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) writeQueryError(w http.ResponseWriter, endpoint string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, sql.ErrNoRows) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
}
