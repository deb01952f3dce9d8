package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/voyagen/plutotv/api"
	"github.com/voyagen/plutotv/internal/cache"
	"github.com/voyagen/plutotv/internal/config"
	"github.com/voyagen/plutotv/internal/fetcher"
	"github.com/voyagen/plutotv/internal/pluto"
	"github.com/voyagen/plutotv/internal/service"
	"github.com/voyagen/plutotv/internal/source"
	"github.com/voyagen/plutotv/internal/store"
	"golang.org/x/time/rate"
)

// Server holds dependencies for the HTTP API.
type Server struct {
	store   store.Store
	sources *source.Registry
	syncer  *service.Syncer
	cfg     *config.Config
	limiter *IPRateLimiter // nil when rate limiting is disabled
	mux     *http.ServeMux
}

// New creates a Server and registers routes.
func New(s store.Store, sources *source.Registry, syncer *service.Syncer, cfg *config.Config) *Server {
	srv := &Server{store: s, sources: sources, syncer: syncer, cfg: cfg, mux: http.NewServeMux()}
	if cfg.RateLimit > 0 {
		srv.limiter = NewIPRateLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Providers (live)
	s.mux.HandleFunc("GET /api/providers", s.handleListProviders)
	s.mux.HandleFunc("GET /api/providers/{provider}/channels", s.handleProviderChannels)
	s.mux.HandleFunc("GET /api/providers/{provider}/guide", s.handleProviderGuide)
	s.mux.HandleFunc("GET /api/providers/{provider}/playlist.m3u", s.handleProviderPlaylist)
	s.mux.HandleFunc("POST /api/providers/{provider}/sync", s.handleSync)

	// Stored data
	s.mux.HandleFunc("GET /api/channels", s.handleListChannels)
	s.mux.HandleFunc("GET /api/channels/{provider}/{id}", s.handleGetChannel)
	s.mux.HandleFunc("GET /api/categories", s.handleListCategories)
	s.mux.HandleFunc("GET /api/airings", s.handleListAirings)

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the server wrapped in its middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s
	if s.limiter != nil {
		h = RateLimitHandler(s.limiter, h)
	}
	return withCORS(withLogging(h))
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var se *fetcher.StatusError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, source.ErrUnknown):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnknownKind), errors.Is(err, service.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, cache.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &se), errors.Is(err, pluto.ErrMalformed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// queryInt parses an optional integer query parameter into dst.
func queryInt(q url.Values, name string, dst *int) error {
	v := q.Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %s", name, v)
	}
	*dst = n
	return nil
}

// queryUnix parses an optional unix-seconds query parameter.
func queryUnix(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %s (unix seconds)", name, v)
	}
	t := time.Unix(n, 0).UTC()
	return &t, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 50
	case n > 200:
		return 200
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.Printf("ERROR %d: %v", status, err)
	}
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPISpec)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, swaggerUIHTML)
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>PlutoTV Source API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box;overflow-y:scroll}*,*:before,*:after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/docs/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
    });
  </script>
</body>
</html>`
