// Package server exposes scores over a JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"powerscore/internal/metrics"
	"powerscore/internal/service"
	"powerscore/internal/store"
)

// Option configures a Server
type Option func(*Server)

// WithMetrics serves the manager's registry at /metrics
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOAuth enables the /auth/login and /auth/callback routes
func WithOAuth(cfg *oauth2.Config, state string) Option {
	return func(s *Server) {
		s.oauth = cfg
		s.state = state
	}
}

// WithTimeout bounds the time spent on each request
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithMaxBodyBytes limits the size of request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// Server is the HTTP rendering layer
type Server struct {
	router  *mux.Router
	store   *store.Store
	query   *service.QueryService
	scorer  *service.ScoreService
	metrics *metrics.Manager
	oauth   *oauth2.Config
	state   string
	timeout time.Duration
	maxBody int64
}

// New creates a server and registers its routes
func New(st *store.Store, query *service.QueryService, scorer *service.ScoreService, opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		store:   st,
		query:   query,
		scorer:  scorer,
		timeout: 30 * time.Second,
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.timeoutMiddleware)

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.oauth != nil {
		s.router.Handle("/auth/login", s.authLogin()).Methods(http.MethodGet)
		s.router.Handle("/auth/callback", s.authCallback()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/dashboard", s.dashboard).Methods(http.MethodGet)
	api.HandleFunc("/activities", s.listActivities).Methods(http.MethodGet)
	api.HandleFunc("/activities/{id:-?[0-9]+}", s.activityDetail).Methods(http.MethodGet)
	api.HandleFunc("/activities/{id:-?[0-9]+}/score", s.latestScore).Methods(http.MethodGet)
	api.HandleFunc("/activities/{id:-?[0-9]+}/score", s.rescore).Methods(http.MethodPost)
	api.HandleFunc("/history", s.history).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.putProfile).Methods(http.MethodPut)
	api.HandleFunc("/score", s.scoreStream).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
}

// Handler returns the root handler with access logging and panic recovery
func (s *Server) Handler() http.Handler {
	logger := log.Logger.With().Str("component", "http").Logger()
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(
		handlers.LoggingHandler(logger, s.router),
	)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", requestID)
		ctx := log.With().Str("request_id", requestID).Logger().WithContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...any) {
	log.Error().Interface("panic", v).Msg("recovered from panic")
}
