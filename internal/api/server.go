// Package api provides the HTTP server for Distri.
// Reads are public. Every mutating route requires a signed request; the
// signer is the acting identity for the marketplace operation.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/distri-network/distri/internal/app/ledger"
	"github.com/distri-network/distri/internal/app/market"
	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/health"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxClockSkew = 5 * time.Minute
	DefaultRateLimit    = 20
	DefaultRateBurst    = 40
	maxBodyBytes        = 1 << 20
)

// Options configures a Server.
type Options struct {
	Engine *market.Engine
	Ledger *ledger.Ledger
	Store  domain.Store
	Health *health.Checker // optional
	Clock  domain.Clock
	Logger *zap.Logger

	// RateLimit is requests per second per client address; negative
	// disables limiting.
	RateLimit    float64
	RateBurst    int
	MaxClockSkew time.Duration
}

// Server is the Distri HTTP API server.
type Server struct {
	engine *market.Engine
	ledger *ledger.Ledger
	store  domain.Store
	health *health.Checker
	clock  domain.Clock
	log    *zap.Logger

	rateLimit    float64
	rateBurst    int
	maxClockSkew time.Duration

	metricsEnabled bool

	// periods memoizes PeriodInfo by period number.
	periods *cache.Cache

	limiterMu sync.Mutex
	limiters  *cache.Cache

	// replays holds accepted signatures until their timestamp falls out
	// of the skew window.
	replays *cache.Cache
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	s := &Server{
		engine:       opts.Engine,
		ledger:       opts.Ledger,
		store:        opts.Store,
		health:       opts.Health,
		clock:        opts.Clock,
		log:          opts.Logger,
		rateLimit:    opts.RateLimit,
		rateBurst:    opts.RateBurst,
		maxClockSkew: opts.MaxClockSkew,
		periods:      cache.New(10*time.Minute, 20*time.Minute),
		limiters:     cache.New(10*time.Minute, 20*time.Minute),
	}
	if s.clock == nil {
		s.clock = domain.SystemClock{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("api")
	if s.rateLimit == 0 {
		s.rateLimit = DefaultRateLimit
	}
	if s.rateBurst <= 0 {
		s.rateBurst = DefaultRateBurst
	}
	if s.maxClockSkew <= 0 {
		s.maxClockSkew = DefaultMaxClockSkew
	}
	s.replays = cache.New(2*s.maxClockSkew, s.maxClockSkew)
	return s
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.countRequests)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimited)

		// ─── Reads ──────────────────────────────────────────────────────
		r.Get("/info", s.handleInfo)
		r.Get("/period", s.handleCurrentPeriod)
		r.Get("/periods/{period}", s.handlePeriod)

		r.Get("/machines", s.handleListMachines)
		r.Get("/machines/{owner}/{uuid}", s.handleGetMachine)
		r.Get("/orders/{buyer}", s.handleListOrders)
		r.Get("/orders/{buyer}/{id}", s.handleGetOrder)
		r.Get("/tasks/{owner}/{id}", s.handleGetTask)
		r.Get("/rewards/{period}", s.handleGetReward)
		r.Get("/rewards/{period}/{owner}/{uuid}", s.handleGetRewardMachine)
		r.Get("/statistics/{owner}", s.handleGetStatistics)
		r.Get("/ai-models", s.handleListAiModels)
		r.Get("/ai-models/{owner}/{name}", s.handleGetAiModel)
		r.Get("/datasets", s.handleListDatasets)
		r.Get("/datasets/{owner}/{name}", s.handleGetDataset)
		r.Get("/balances/{owner}", s.handleBalance)
		r.Get("/ledger/{owner}", s.handleLedgerHistory)

		// ─── Signed Operations ──────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(s.requireSignature)

			r.Post("/machines", s.handleAddMachine)
			r.Delete("/machines/{owner}/{uuid}", s.handleRemoveMachine)
			r.Post("/machines/{owner}/{uuid}/offer", s.handleMakeOffer)
			r.Post("/machines/{owner}/{uuid}/cancel", s.handleCancelOffer)

			r.Post("/orders", s.handlePlaceOrder)
			r.Delete("/orders/{buyer}/{id}", s.handleRemoveOrder)
			r.Post("/orders/{buyer}/{id}/start", s.handleStartOrder)
			r.Post("/orders/{buyer}/{id}/renew", s.handleRenewOrder)
			r.Post("/orders/{buyer}/{id}/refund", s.handleRefundOrder)
			r.Post("/orders/{buyer}/{id}/complete", s.handleOrderCompleted)
			r.Post("/orders/{buyer}/{id}/fail", s.handleOrderFailed)

			r.Post("/tasks", s.handleSubmitTask)
			r.Post("/rewards/{period}/claim", s.handleClaim)
			r.Post("/reward-pool/deposit", s.handleDeposit)

			r.Post("/ai-models", s.handleCreateAiModel)
			r.Delete("/ai-models/{owner}/{name}", s.handleRemoveAiModel)
			r.Post("/datasets", s.handleCreateDataset)
			r.Delete("/datasets/{owner}/{name}", s.handleRemoveDataset)

			r.Post("/statistics/{owner}/report", s.handleReportReward)
			r.Post("/statistics/{owner}/claim", s.handleClaimAiModelDatasetReward)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    kind,
		},
	})
}

// writeEngineError maps an engine error to its HTTP status.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	kind := market.ErrorKind(err)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeError(w, status, kind, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrStringTooLong),
		errors.Is(err, domain.ErrDurationTooMuch),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrArithmeticOverflow),
		errors.Is(err, domain.ErrInvalidPubkey),
		errors.Is(err, domain.ErrDecimalsMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIncorrectStatus),
		errors.Is(err, domain.ErrRepeatClaim),
		errors.Is(err, domain.ErrExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrMintNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, X-Distri-Pubkey, X-Distri-Signature, X-Distri-Timestamp")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
