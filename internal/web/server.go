// Package web provides the HTTP server and JSON API for the CSV
// ingestion service.
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bcshine/midcamstone-data-app-25120702/internal/analysis"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/config"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/core"
	"github.com/bcshine/midcamstone-data-app-25120702/internal/web/middleware"
)

// Server is the HTTP front of the ingestion service.
type Server struct {
	service  *core.Service
	analysis *analysis.Client
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires routes and middleware over the service.
func NewServer(service *core.Service, analysisClient *analysis.Client, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		analysis: analysisClient,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
	s.router.Use(httpMetrics)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	var uploadMW []func(http.Handler) http.Handler
	if s.cfg.Rate.Enabled {
		uploadRL := newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute)
		uploadMW = append(uploadMW, uploadRL.middleware)
	}

	s.router.Route("/api", func(r chi.Router) {
		// Ingestion is throttled harder than the rest of the API
		r.With(uploadMW...).Post("/upload", s.handleUpload)
		r.With(uploadMW...).Post("/preview", s.handlePreview)

		// Reads
		r.Get("/table/{table}", s.handleTablePage)
		r.Get("/uploads", s.handleUploads)
		r.Get("/tenants", s.handleTenants)

		// Lifecycle
		r.Delete("/table/{table}", s.handleSoftDelete)
		r.Get("/trash", s.handleTrashList)
		r.Post("/trash/{id}/restore", s.handleRestore)
		r.Delete("/trash/{id}", s.handlePurge)

		// External analysis
		r.Post("/analysis", s.handleAnalysis)
	})
}

// Start begins listening for HTTP requests and blocks until the server
// stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds hardening headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow consumes a token for ip if one is available.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1,
			lastReset: time.Now(),
		}
		return true
	}

	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RemoteAddr is already resolved by chi's RealIP
		if !rl.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", "60")
			respondErrorJSON(w, core.UserMessage{
				Message: "Too many requests",
				Action:  "Please slow down and try again in a minute",
				Code:    "RATE001",
			}, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
