package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/MikeSquared-Agency/credence/internal/metrics"
	"github.com/MikeSquared-Agency/credence/internal/processor"
)

type Server struct {
	router   *chi.Mux
	port     int
	proc     *processor.Processor
	metrics  *metrics.Recorder
	validate *validator.Validate
	http     *http.Server
}

func NewServer(port int, apiToken string, proc *processor.Processor, m *metrics.Recorder) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(requestMetrics(m))

	s := &Server{
		router:   router,
		port:     port,
		proc:     proc,
		metrics:  m,
		validate: validator.New(),
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", m.Handler())

	router.Route("/api/v1/credibility/{userID}", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/", s.getStatus)
		r.Get("/history", s.getHistory)
		r.Get("/convert", s.convert)
		r.Post("/approvals", s.postApproval)
		r.Post("/rejections", s.postRejection)
		r.Post("/rejections/undo", s.postUndo)
		r.Post("/decay", s.postDecay)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server starting", "addr", addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestMetrics records request latency labelled by chi route pattern.
func requestMetrics(m *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.HTTPRequest(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}
