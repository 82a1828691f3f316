// Package server exposes breaker, health and risk gate state over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradeguard/breaker"
	"github.com/rustyeddy/tradeguard/health"
	"github.com/rustyeddy/tradeguard/pkg/id"
	"github.com/rustyeddy/tradeguard/risk"
)

// RiskGate is the part of *risk.Gate the server reads.
type RiskGate interface {
	Date() string
	Today(ctx context.Context) (risk.Snapshot, bool, error)
	Admit(ctx context.Context) (risk.Decision, error)
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

type Server struct {
	cfg      Config
	router   *mux.Router
	breakers *breaker.Registry
	health   *health.Reporter
	gate     RiskGate
	gatherer prometheus.Gatherer
	log      zerolog.Logger
}

// New wires the routes. gate and gatherer may be nil; their routes then
// answer 503 and 404.
func New(cfg Config, reg *breaker.Registry, gate RiskGate, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		breakers: reg,
		health:   health.NewReporter(reg, log),
		gate:     gate,
		gatherer: gatherer,
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Use(s.requestID, s.logRequests)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/breakers", s.handleBreakers).Methods(http.MethodGet)
	s.router.HandleFunc("/breakers/reset", s.handleResetAll).Methods(http.MethodPost)
	s.router.HandleFunc("/breakers/{name}", s.handleBreaker).Methods(http.MethodGet)
	s.router.HandleFunc("/breakers/{name}/{action:open|close}", s.handleForce).Methods(http.MethodPost)
	s.router.HandleFunc("/risk/today", s.handleToday).Methods(http.MethodGet)
	s.router.HandleFunc("/risk/check", s.handleCheck).Methods(http.MethodPost)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info().Msg("status server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rep := s.health.Report()
	code := http.StatusOK
	if rep.Overall == health.Critical {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, rep)
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.breakers.Statuses())
}

func (s *Server) handleBreaker(w http.ResponseWriter, r *http.Request) {
	b, ok := s.breakers.Lookup(mux.Vars(r)["name"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown breaker")
		return
	}
	s.writeJSON(w, http.StatusOK, b.Status())
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b, ok := s.breakers.Lookup(vars["name"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown breaker")
		return
	}
	if vars["action"] == "open" {
		b.ForceOpen()
	} else {
		b.ForceClose()
	}
	s.writeJSON(w, http.StatusOK, b.Status())
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	s.breakers.ResetAll()
	s.writeJSON(w, http.StatusOK, s.breakers.Statuses())
}

type todayResponse struct {
	Date     string         `json:"date"`
	Snapshot *risk.Snapshot `json:"snapshot,omitempty"`
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil {
		s.writeError(w, http.StatusServiceUnavailable, "risk gate not configured")
		return
	}
	snap, ok, err := s.gate.Today(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("read today's snapshot")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusNotFound, todayResponse{Date: s.gate.Date()})
		return
	}
	s.writeJSON(w, http.StatusOK, todayResponse{Date: s.gate.Date(), Snapshot: &snap})
}

// handleCheck runs the admission check. A denial is still 200; only a
// failed computation is 503.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil {
		s.writeError(w, http.StatusServiceUnavailable, "risk gate not configured")
		return
	}
	d, err := s.gate.Admit(r.Context())
	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, d)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

type ctxKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := id.New()
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, rid)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		rid, _ := r.Context().Value(ctxKey{}).(string)
		s.log.Debug().
			Str("request_id", rid).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
