package http

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"salesdash/internal/cache"
	"salesdash/internal/core"
	"salesdash/internal/dataset"
	applog "salesdash/internal/log"
	"salesdash/internal/middleware/trace"
	appweb "salesdash/web"
)

// EventPublisher notifies other processes that a new dataset was imported.
// The AMQP client satisfies it; a nil publisher disables notifications.
type EventPublisher interface {
	PublishDatasetImported(ctx context.Context, datasetID, name string, records int) error
}

type Server struct {
	http.Server
	templates  *templateSet
	store      dataset.Reader
	writer     dataset.Writer
	publisher  EventPublisher
	structured *applog.StructuredLogger

	uploadMaxBytes int64
	rateLimiter    *rateLimiter

	// Rendered PNGs and computed overviews keyed by dataset ID plus the
	// filter query, dropped wholesale when a new dataset arrives.
	chartCache    *cache.LRUCache[[]byte]
	overviewCache *cache.LRUCache[core.Overview]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, store dataset.Reader, writer dataset.Writer, publisher EventPublisher, uploadMaxBytes int64) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:          store,
		writer:         writer,
		publisher:      publisher,
		uploadMaxBytes: uploadMaxBytes,
		rateLimiter:    newRateLimiter(),
		chartCache:     cache.NewLRUCache[[]byte](200, 5*time.Minute),
		overviewCache:  cache.NewLRUCache[core.Overview](100, 5*time.Minute),
		cacheManager:   cache.NewManager(),
	}

	s.cacheManager.Register(s.chartCache)
	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	s.structured = applog.NewStructuredLogger(logger)

	s.templates = parseTemplates()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	tracer := trace.NewMiddleware(extractClientIP)
	withLogger := applog.Middleware(logger)

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, withLogger(tracer.Middleware(s.withSecurityHeaders(h))))
	}

	handle("/", s.handleIndex)
	handle("/upload", s.handleUpload)
	handle("/ui/overview", s.handleOverview)
	handle("/ui/hierarchy", s.handleHierarchy)
	handle("/ui/top-products", s.handleTopProducts)
	handle("/charts/", s.handleChart)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// extractClientIP resolves the client address, honoring proxy headers.
func extractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// withSecurityHeaders adds security headers and rate limiting to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)

		// Rate limit uploads only, reads are cheap and cached
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Ready once the store answers, with or without a dataset loaded.
	if _, err := s.store.ActiveDataset(r.Context()); err != nil && !errors.Is(err, dataset.ErrNoDataset) {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// invalidateCaches drops every cached chart and overview. Called after an
// upload replaces the active dataset.
func (s *Server) invalidateCaches() {
	s.chartCache.Clear()
	s.overviewCache.Clear()
}
