/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend
  5. RateLimit:  Token bucket per client IP (x/time/rate)

ADMIN GUARD:
  Every mutating call except a loan request needs a bearer JWT (HS256)
  signed with Options.JWTSecret and carrying "role": "admin". An empty
  secret disables the guard; only use that in development.

ROUTE GROUPS:
  /api/health          Liveness
  /api/loans/*         Loan lifecycle, repayments, settlement
  /api/members/*       Members, plans, bulk create
  /api/contributions/* Payments, month setup, overdue sweep
  /api/catch-up        Late joiner catch-up
  /api/scenarios/*     Demo data (resets the store)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// Options configures the router's middleware.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if opts.RateLimitRPS > 0 {
		r.Use(newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware)
	}

	admin := RequireAdmin(opts.JWTSecret)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Loan routes
		r.Route("/loans", func(r chi.Router) {
			r.Get("/", h.ListLoans)
			r.Post("/", h.RequestLoan)
			r.Get("/{id}", h.GetLoan)
			r.Get("/{id}/summary", h.GetLoanSummary)
			r.Get("/{id}/settlement", h.QuoteSettlement)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/{id}/approve", h.ApproveLoan)
				r.Post("/{id}/reject", h.RejectLoan)
				r.Post("/{id}/disburse", h.DisburseLoan)
				r.Post("/{id}/complete", h.CompleteLoan)
				r.Post("/{id}/approval-date", h.CorrectApprovalDate)
				r.Post("/{id}/interest-paid", h.MarkInterestPaid)
				r.Post("/{id}/repayments", h.RecordRepayment)
				r.Post("/{id}/settle/interest", h.SettleInterestOnly)
				r.Post("/{id}/settle/full", h.SettleFull)
			})
		})

		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Get("/{id}", h.GetMember)
			r.Get("/{id}/plan", h.GetPlan)
			r.Get("/{id}/contributions", h.ListMemberContributions)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.SaveMember)
				r.Post("/{id}/contributions/missing", h.CreateMissing)
			})
		})

		// Contribution routes
		r.Route("/contributions", func(r chi.Router) {
			r.Get("/", h.ListContributions)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/{id}/payment", h.RecordContributionPayment)
				r.Post("/setup", h.SetupMonth)
				r.Post("/sweep-overdue", h.SweepOverdue)
			})
		})

		r.Get("/catch-up", h.GetCatchUp)

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.With(admin).Post("/load", h.LoadScenario)
		})
	})

	return r
}

// =============================================================================
// ADMIN GUARD
// =============================================================================

// RequireAdmin rejects requests without a valid admin bearer token.
// An empty secret lets every request through.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		key := []byte(secret)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header", nil)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid claims", nil)
				return
			}
			if role, _ := claims["role"].(string); role != "admin" {
				writeError(w, http.StatusForbidden, "Admin role required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// RATE LIMITING
// =============================================================================

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *ipRateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

func (l *ipRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.limiter(ip).Allow() {
			log.Printf("[RateLimit] exceeded for %s: %s %s", ip, r.Method, r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
