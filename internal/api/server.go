package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"starpets/internal/config"
	"starpets/internal/game"
	"starpets/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type contextKey string

const userContextKey contextKey = "user"

// UserHeader carries the caller id resolved by the authenticating gateway in front
// of this service.
const UserHeader = "X-User-ID"

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	game *game.Service
	mux  *chi.Mux

	limitMu  sync.Mutex
	limiters map[string]*userLimiter
	now      func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiters idle this long are dropped by the janitor.
const limiterIdleTTL = 10 * time.Minute

func New(cfg config.APIConfig, logger *slog.Logger, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 10
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		game:     gameSvc,
		mux:      chi.NewRouter(),
		limiters: make(map[string]*userLimiter),
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/levels", s.handleExpTable)
		r.Get("/fusion/rules", s.handleFusionRules)
		r.Get("/mine/spots", s.handleMineSpots)

		r.Group(func(r chi.Router) {
			r.Use(s.identityMiddleware)

			r.Get("/wallet", s.handleWallet)
			r.Get("/wallet/transactions", s.handleTransactions)
			r.Get("/energy/history", s.handleEnergyHistory)
			r.Get("/energy/purchase", s.handleEnergyQuota)
			r.Get("/creatures", s.handleCreatures)
			r.Get("/production/status", s.handleProductionStatus)
			r.Get("/production/offline", s.handleOfflinePreview)
			r.Get("/fusion/history", s.handleFusionHistory)
			r.Get("/mine/status", s.handleMineStatus)
			r.Get("/mine/history", s.handleMineHistory)
			r.Get("/achievements", s.handleAchievements)

			r.Group(func(r chi.Router) {
				r.Use(s.rateLimitMiddleware)
				r.Post("/creatures/newbie", s.handleNewbieGrant)
				r.Post("/energy/purchase", s.handleEnergyPurchase)
				r.Post("/production/start", s.handleStartSession)
				r.Post("/production/claim", s.handleClaim)
				r.Post("/fusion", s.handleFusion)
				r.Post("/mine/enter", s.handleEnterMine)
				r.Post("/mine/{id}/claim", s.handleClaimMine)
				r.Post("/achievements/{id}/claim", s.handleClaimAchievement)
			})
		})
	})
}

func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userContextKey).(string)
	if !ok || userID == "" {
		return "", errors.New("missing user context")
	}
	return userID, nil
}

func (s *Server) limiter(userID string) *rate.Limiter {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()
	l, ok := s.limiters[userID]
	if !ok {
		l = &userLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)}
		s.limiters[userID] = l
	}
	l.lastSeen = s.now()
	return l.limiter
}

// PruneLimiters drops the limiters of users not seen for idle and returns how many
// were removed.
func (s *Server) PruneLimiters(idle time.Duration) int {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()
	cutoff := s.now().Add(-idle)
	removed := 0
	for userID, l := range s.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(s.limiters, userID)
			removed++
		}
	}
	return removed
}

// RunLimiterJanitor prunes idle limiters every interval until ctx is done.
func (s *Server) RunLimiterJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PruneLimiters(limiterIdleTTL); n > 0 {
				s.log.Debug("pruned idle rate limiters", "count", n)
			}
		}
	}
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !s.limiter(userID).Allow() {
			metrics.RateLimited.WithLabelValues(r.URL.Path).Inc()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrInsufficientResource):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, game.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrInvalidState), errors.Is(err, game.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
