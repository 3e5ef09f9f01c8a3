// Package http exposes the ledger operations as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kasbuku/internal/auth"
	"kasbuku/internal/middleware/trace"
	"kasbuku/internal/services"
)

type Server struct {
	http.Server
	service     *services.LedgerService
	verifier    *auth.Verifier
	rateLimiter *rateLimiter
	proxies     *proxyList
	trace       *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, service *services.LedgerService, verifier *auth.Verifier, rateLimitPerMinute int, extraTrustedProxies []string) *Server {
	mux := http.NewServeMux()
	proxies := newProxyList(extraTrustedProxies)
	traced := trace.NewMiddleware(proxies.extractClientIP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           traced.Middleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		service:     service,
		verifier:    verifier,
		rateLimiter: newRateLimiter(rateLimitPerMinute),
		proxies:     proxies,
		trace:       traced,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/transactions", s.with(s.handleAddTransaction))
	mux.HandleFunc("GET /api/transactions", s.with(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/history", s.with(s.handleTransactionHistory))
	mux.HandleFunc("GET /api/transactions/{id}", s.with(s.handleGetTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.with(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/expenses", s.with(s.handleAddExpense))
	mux.HandleFunc("GET /api/expenses", s.with(s.handleListExpenses))
	mux.HandleFunc("GET /api/expenses/by-category", s.with(s.handleExpensesByCategory))

	mux.HandleFunc("GET /api/reports/daily", s.with(s.handleDailyReport))
	mux.HandleFunc("GET /api/reports/monthly", s.with(s.handleMonthlyReport))
	mux.HandleFunc("GET /api/dashboard", s.with(s.handleDashboard))
	mux.HandleFunc("GET /api/dashboard/all", s.with(s.handleMultiDeviceDashboard))

	mux.HandleFunc("GET /api/profile", s.with(s.handleGetProfile))
	mux.HandleFunc("PUT /api/profile", s.with(s.handleSaveProfile))
	mux.HandleFunc("GET /api/users/{id}/profile", s.with(s.handleGetProfileOf))
	mux.HandleFunc("POST /api/roles", s.with(s.handleAssignRole))
	mux.HandleFunc("GET /api/me", s.with(s.handleMe))

	return s
}

// with applies rate limiting, security headers and identity resolution to a
// handler. Request IDs and request logging come from the trace middleware
// wrapping the whole mux.
func (s *Server) with(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := s.proxies.extractClientIP(r)

		// Mutations are rate limited per client IP.
		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"request_id", trace.GetRequestID(ctx),
				"client_ip", clientIP,
				"method", r.Method,
				"url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeErrorMessage(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		caller, err := s.verifier.CallerFromRequest(r)
		if err != nil {
			slog.WarnContext(ctx, "Identity token rejected",
				"request_id", trace.GetRequestID(ctx),
				"error", err,
				"client_ip", clientIP)
			writeErrorMessage(w, http.StatusUnauthorized, "invalid_token", "invalid or expired identity token")
			return
		}

		next(w, r.WithContext(auth.WithCaller(ctx, caller)))
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := s.trace.GetMetrics()
	writeJSON(w, http.StatusOK, map[string]int64{
		"total_requests":           m.TotalRequests,
		"average_response_time_us": m.AverageResponseTime,
	})
}
