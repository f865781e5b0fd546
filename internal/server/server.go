package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"findit/internal/app"
	"findit/internal/ratelimit"
	"findit/internal/security"
	"findit/internal/util"
	"findit/pkg/storage"
)

const maxJSONBody = 1 << 20

var errInvalidJSON = fmt.Errorf("%w: invalid JSON body", app.ErrInvalidInput)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App    *app.App
	Images storage.ImageStore
	// Redis backs rate limits and security alerts. Nil disables both.
	Redis                    *redis.Client
	SignupRateLimitPerMinute int
	SigninRateLimitPerMinute int
	ClaimRateLimitPerMinute  int
	MaxUploadBytes           int64
	PresignExpiry            time.Duration
	TrustedProxyCIDRs        []string
	CORSAllowedOrigins       []string
}

// Server exposes the findIT HTTP API.
type Server struct {
	app            *app.App
	images         storage.ImageStore
	mux            *http.ServeMux
	trustedProxies *util.TrustedProxies
	corsOrigins    []string
	maxUploadBytes int64
	presignExpiry  time.Duration
	signupLimiter  *ratelimit.FixedWindowLimiter
	signinLimiter  *ratelimit.FixedWindowLimiter
	claimLimiter   *ratelimit.FixedWindowLimiter
	alerter        *security.AuditAlerter
	patterns       []string
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.Images == nil {
		return nil, errors.New("image store is required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		images:         cfg.Images,
		mux:            http.NewServeMux(),
		trustedProxies: trusted,
		corsOrigins:    cfg.CORSAllowedOrigins,
		maxUploadBytes: cfg.MaxUploadBytes,
		presignExpiry:  cfg.PresignExpiry,
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = 5 << 20
	}
	if s.presignExpiry <= 0 {
		s.presignExpiry = 15 * time.Minute
	}

	if cfg.Redis != nil {
		newLimiter := func(name string, limit, def int) (*ratelimit.FixedWindowLimiter, error) {
			if limit <= 0 {
				limit = def
			}
			limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "findit:ratelimit:"+name, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		if s.signupLimiter, err = newLimiter("signup", cfg.SignupRateLimitPerMinute, 5); err != nil {
			return nil, err
		}
		if s.signinLimiter, err = newLimiter("signin", cfg.SigninRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
		if s.claimLimiter, err = newLimiter("claim", cfg.ClaimRateLimitPerMinute, 20); err != nil {
			return nil, err
		}
		s.alerter = security.NewAuditAlerter(cfg.Redis, "findit:alerts")
	}

	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.corsOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.handle("GET /healthz", s.handleHealth)

	// users
	s.handle("POST /api/signup", s.handleSignup)
	s.handle("POST /api/signin", s.handleSignin)

	// concerns
	s.handle("POST /api/raise-concern", s.handleRaiseConcern)
	s.handle("GET /api/my-items", s.handleMyItems)
	s.handle("GET /api/all-items", s.handleAllItems)
	s.handle("GET /api/lost-items", s.handleLostItems)
	s.handle("GET /api/found-items", s.handleFoundItems)
	s.handle("PUT /api/update-item/{id}", s.handleUpdateItem)
	s.handle("DELETE /api/delete-item/{id}", s.handleDeleteItem)

	// claims
	s.handle("POST /api/claim-item", s.handleClaimItem)
	s.handle("GET /api/claimed-items", s.handleClaimedItems)
	s.handle("GET /api/helpers", s.handleHelpers)
	s.handle("GET /api/claimers", s.handleClaimers)

	// admin
	s.handle("PUT /api/admin/concerns/{id}/status", s.adminOnly(s.handleDecideConcern))
	s.handle("PUT /api/admin/claims/{id}/status", s.adminOnly(s.handleDecideClaim))
	s.handle("GET /api/admin/dashboard-stats", s.adminOnly(s.handleDashboardStats))
	s.handle("GET /api/admin/concerns", s.adminOnly(s.handleAdminConcerns))
	s.handle("GET /api/admin/concerns/pending", s.adminOnly(s.handleAdminPendingConcerns))
	s.handle("GET /api/admin/items", s.adminOnly(s.handleAdminItems))
	s.handle("PUT /api/admin/items/{id}", s.adminOnly(s.handleAdminEditItem))
	s.handle("DELETE /api/admin/items/{id}", s.adminOnly(s.handleAdminDeleteItem))
	s.handle("GET /api/admin/claims", s.adminOnly(s.handleAdminClaims))

	// images
	s.handle("GET "+storage.PathPrefix+"{name}", s.handleImage)
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
	s.patterns = append(s.patterns, pattern)
}

// Routes lists the registered "METHOD /path" patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.patterns...)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeAppError maps core errors onto HTTP statuses. Persistence and other
// unexpected errors are logged and reported with a generic message.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

// audit logs a security event. Failed and rate limited outcomes are also
// counted by the alerter, which logs once its threshold is reached.
func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := s.clientIP(r)
	logger := util.LoggerFromContext(r.Context())
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert evaluation failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}

// allowRate applies limiter to the caller's IP on this route. A nil limiter
// allows everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + s.clientIP(r)
	decision, err := limiter.Allow(r.Context(), key)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("rate limiter unavailable", "path", r.URL.Path, "err", err)
	}
	if decision.Allowed {
		return true
	}
	retry := int(decision.RetryAfter.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
