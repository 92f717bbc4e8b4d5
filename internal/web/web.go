package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"riftcal/internal/config"
	appLog "riftcal/internal/log"
	"riftcal/internal/metrics"
	"riftcal/internal/planner"
	"riftcal/internal/store"
)

// Deps holds what the HTTP API needs.
type Deps struct {
	Config   *config.Config
	Store    store.SessionStore
	Planner  *planner.Planner
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer

	// Now is the clock for upcoming practices; nil means time.Now.
	Now func() time.Time
}

// Server provides the session and occurrence HTTP API.
type Server struct {
	cfg      *config.Config
	store    store.SessionStore
	planner  *planner.Planner
	metrics  metrics.Recorder
	gatherer prometheus.Gatherer
	now      func() time.Time
	limiter  *RateLimiter
	router   chi.Router
}

// NewServer constructs a Server and its routes.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:      d.Config,
		store:    d.Store,
		planner:  d.Planner,
		metrics:  d.Metrics,
		gatherer: d.Gatherer,
		now:      d.Now,
	}
	if s.cfg == nil {
		s.cfg = config.DefaultConfig()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.planner == nil {
		s.planner = planner.New(nil, s.expandConfig(), s.metrics)
	}
	s.limiter = NewRateLimiter(s.cfg.RateLimit.PerMinute, s.cfg.RateLimit.Burst)
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled")
			r.Use(s.basicAuth)
		}
		if s.gatherer != nil {
			r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
		}

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)

			r.Route("/api/sessions", func(r chi.Router) {
				r.Get("/", s.handleListSessions)
				r.Post("/", s.handleCreateSession)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSession)
					r.Put("/", s.handleUpdateSession)
					r.Delete("/", s.handleDeleteSession)

					r.Get("/occurrences", s.handleOccurrences)
					r.Get("/upcoming", s.handleUpcoming)
					r.Get("/calendar.ics", s.handleSessionCalendar)

					r.Post("/cancellations", s.handleAddCancellation)
					r.Delete("/cancellations/{date}", s.handleRemoveCancellation)
				})
			})
			r.Post("/api/days/validate", s.handleValidateDays)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="riftcal", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves the API on s.cfg.Listen until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
