// Package api provides the HTTP server for the treasury pool.
// Callers identify themselves with the X-Account header; every mutating
// route acts on behalf of that account.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/treasury-pool/treasury/internal/app/fees"
	"github.com/treasury-pool/treasury/internal/app/pool"
	"github.com/treasury-pool/treasury/internal/app/referral"
	"github.com/treasury-pool/treasury/internal/app/sweeper"
	"github.com/treasury-pool/treasury/internal/domain"
	"github.com/treasury-pool/treasury/internal/infra/observability"
	"github.com/treasury-pool/treasury/internal/infra/token"
)

// Version is reported by /api/version and the CLI.
const Version = "0.1.0"

// CallerHeader names the request header carrying the acting account.
const CallerHeader = "X-Account"

// Server is the treasury HTTP API server.
type Server struct {
	ledger         *pool.Ledger
	tree           *referral.Tree
	router         *fees.Router
	vault          *token.Vault // nil hides balance and mint routes
	faucet         bool         // owner may mint test balances
	sweeper        *sweeper.Sweeper
	tracer         *observability.Tracer
	log            *zap.Logger
	timeout        time.Duration
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(ledger *pool.Ledger, tree *referral.Tree, router *fees.Router, log *zap.Logger) *Server {
	return &Server{
		ledger:  ledger,
		tree:    tree,
		router:  router,
		log:     log.Named("api"),
		timeout: 30 * time.Second,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetVault exposes balances, and minting when faucet is set.
func (s *Server) SetVault(v *token.Vault, faucet bool) {
	s.vault = v
	s.faucet = faucet
}

// SetSweeper exposes the unlock schedule and last sweep stats.
func (s *Server) SetSweeper(sw *sweeper.Sweeper) { s.sweeper = sw }

// SetTracer exposes recent operation spans.
func (s *Server) SetTracer(t *observability.Tracer) { s.tracer = t }

// SetTimeout sets the per-request timeout.
func (s *Server) SetTimeout(d time.Duration) { s.timeout = d }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"version": Version,
			})
		})
		r.Get("/plans", s.handlePlans)
		r.Get("/tvl", s.handleTotalValueLocked)

		// Referral tree
		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{account}", s.handleUser)
		r.Get("/users/{account}/upline", s.handleUpline)
		r.Get("/users/{account}/referrals", s.handleDirectReferrals)

		// Contributions act on the caller's own records
		r.Post("/contributions", s.handleContribute)
		r.Post("/contributions/{index}/claim", s.handleClaim)
		r.Post("/contributions/{index}/cancel", s.handleCancel)
		r.Post("/earnings/withdraw", s.handleWithdrawEarnings)

		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Get("/contributions", s.handleActiveContributions)
			r.Get("/contributions/all", s.handleAllContributions)
			r.Get("/contributions/{index}", s.handleContribution)
			r.Get("/contributions/{index}/elapsed", s.handleDaysElapsed)
			r.Get("/contributions/{index}/next-withdrawal", s.handleNextWithdrawal)
			r.Get("/value", s.handleValueInPool)
			r.Get("/earnings", s.handleEarnings)
			r.Get("/history", s.handleHistory)
			r.Get("/balance", s.handleBalance)
		})

		// Fee tokens
		r.Get("/tokens", s.handleTokens)
		r.Post("/tokens", s.handleAddToken)

		// Privileged wiring
		r.Route("/admin", func(r chi.Router) {
			r.Post("/direct-members", s.handleIncreaseDirectMember)
			r.Post("/treasury-pool", s.handleSetTreasuryPool)
			r.Post("/manager", s.handleSetManager)
			r.Post("/mint", s.handleMint)
		})

		r.Get("/unlocks", s.handleUnlocks)
		r.Get("/spans", s.handleSpans)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Request Helpers ────────────────────────────────────────────────────────

// caller returns the acting account or writes 401.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	acct := strings.TrimSpace(r.Header.Get(CallerHeader))
	if acct == "" {
		writeError(w, http.StatusUnauthorized, CallerHeader+" header is required")
		return "", false
	}
	return acct, true
}

// indexParam parses the {index} path parameter or writes 400.
func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return 0, false
	}
	return idx, true
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// decode reads a JSON body into v or writes 400.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeTypedError(w, status, msg, "error")
}

func writeTypedError(w http.ResponseWriter, status int, msg, typ string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    typ,
		},
	})
}

// writeDomainError maps err's kind to an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeTypedError(w, status, err.Error(), string(kind))
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindState:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindTransfer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// amountJSON renders micro-units both raw and as a token string.
type amountJSON struct {
	Units  int64  `json:"units"`
	Amount string `json:"amount"`
}

func units(n int64) amountJSON {
	return amountJSON{Units: n, Amount: domain.FormatUnits(n)}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+CallerHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isNotRegistered reports lookups of unknown accounts, which read as 404
// rather than the 403 the same error means on a mutating route.
func isNotRegistered(err error) bool {
	return errors.Is(err, domain.ErrNotRegistered)
}
