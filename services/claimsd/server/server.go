package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"lockdrop/core/state"
	"lockdrop/crypto"
	"lockdrop/gateway/middleware"
	"lockdrop/native/claims"
	"lockdrop/native/credit"
	"lockdrop/native/params"
	"lockdrop/native/randomness"
	"lockdrop/native/whitelist"
	"lockdrop/observability"
)

// Node bundles the native modules served by the daemon. Every component
// shares State, which is not safe for concurrent use.
type Node struct {
	State      *state.Manager
	Credit     *credit.Engine
	Claims     *claims.Module
	Whitelist  *whitelist.Engine
	Randomness *randomness.Coordinator
	Params     *params.Store
	Heights    claims.HeightSource
}

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	Auth          middleware.AuthConfig
	RateLimit     middleware.RateLimit
	LogRequests   bool
}

// Server exposes the lockdrop modules over HTTP.
type Server struct {
	cfg     Config
	node    Node
	logger  *slog.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	metrics *observability.ClaimsMetrics

	// mu serialises every state access, reads included.
	mu     sync.Mutex
	router http.Handler
}

// New constructs a server around node.
func New(cfg Config, node Node, tracer trace.Tracer, logger *slog.Logger) (*Server, error) {
	if node.State == nil {
		return nil, fmt.Errorf("server: state required")
	}
	if node.Credit == nil || node.Claims == nil || node.Whitelist == nil || node.Randomness == nil || node.Params == nil {
		return nil, fmt.Errorf("server: modules required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	limits := map[string]middleware.RateLimit{
		routeRead:  cfg.RateLimit,
		routeWrite: cfg.RateLimit,
	}
	srv := &Server{
		cfg:     cfg,
		node:    node,
		logger:  logger,
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: middleware.NewRateLimiter(limits, logger),
		obs:     middleware.NewObservability(tracer, logger, cfg.LogRequests),
		metrics: observability.Claims(),
	}
	srv.limiter.OnThrottle = func(key string) {
		observability.ModuleMetrics().RecordThrottle(key, "rate_limit")
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

const (
	routeRead  = "read"
	routeWrite = "write"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(api chi.Router) {
		// Public views.
		api.Group(func(pub chi.Router) {
			pub.Use(s.limiter.Middleware(routeRead))
			pub.With(s.obs.Middleware("credit", "ceiling")).Get("/credit/ceiling", s.handleGetCeiling)
			pub.With(s.obs.Middleware("credit", "value")).Get("/credit/{address}", s.handleCredit)
			pub.With(s.obs.Middleware("claims", "campaigns")).Get("/campaigns", s.handleListCampaigns)
			pub.With(s.obs.Middleware("claims", "campaign")).Get("/campaigns/{id}", s.handleGetCampaign)
			pub.With(s.obs.Middleware("claims", "claimed")).Get("/claims/{address}", s.handleClaimed)
			pub.With(s.obs.Middleware("claims", "timed_config")).Get("/timed", s.handleGetTimed)
			pub.With(s.obs.Middleware("claims", "claim_points")).Get("/timed/points", s.handleGetClaimPoints)
			pub.With(s.obs.Middleware("claims", "can_claim")).Get("/eligibility/{address}/{id}", s.handleCanClaim)
			pub.With(s.obs.Middleware("claims", "can_claim_batch")).Post("/eligibility/{address}/batch", s.handleCanClaimBatch)
			pub.With(s.obs.Middleware("claims", "can_claim_timed")).Get("/eligibility/{address}/timed", s.handleCanClaimTimed)
			pub.With(s.obs.Middleware("whitelist", "restricted")).Get("/whitelist/restrictions", s.handleListRestrictions)
			pub.With(s.obs.Middleware("whitelist", "can_list")).Get("/whitelist/assets/{assetID}", s.handleCanList)
			pub.With(s.obs.Middleware("randomness", "lookup")).Get("/randomness/requests/{id}", s.handleLookupRandomness)
			pub.With(s.obs.Middleware("system", "pauses")).Get("/pauses", s.handleGetPauses)
			// Fulfilments are authenticated by the fulfiller's signature.
			pub.With(s.obs.Middleware("randomness", "fulfill")).Post("/randomness/requests/{id}/fulfill", s.handleFulfill)
		})

		api.Group(func(user chi.Router) {
			user.Use(s.limiter.Middleware(routeWrite))
			user.Use(s.auth.Middleware(middleware.ScopeUser))
			user.With(s.obs.Middleware("claims", "claim")).Post("/campaigns/{id}/claim", s.handleClaim)
			user.With(s.obs.Middleware("claims", "claim_timed")).Post("/timed/claim", s.handleClaimTimed)
			user.With(s.obs.Middleware("randomness", "request")).Post("/randomness/requests", s.handleRequestRandomness)
		})

		api.Group(func(admin chi.Router) {
			admin.Use(s.limiter.Middleware(routeWrite))
			admin.Use(s.auth.Middleware(middleware.ScopeAdmin))
			admin.With(s.obs.Middleware("credit", "update_ceiling")).Put("/credit/ceiling", s.handleUpdateCeiling)
			admin.With(s.obs.Middleware("claims", "add_campaign")).Post("/campaigns", s.handleAddCampaign)
			admin.With(s.obs.Middleware("claims", "update_campaign")).Put("/campaigns/{id}", s.handleUpdateCampaign)
			admin.With(s.obs.Middleware("claims", "update_timed")).Put("/timed", s.handleUpdateTimed)
			admin.With(s.obs.Middleware("claims", "update_claim_points")).Put("/timed/points", s.handleSetClaimPoints)
			admin.With(s.obs.Middleware("whitelist", "add")).Post("/whitelist/restrictions", s.handleAddRestrictions)
			admin.With(s.obs.Middleware("whitelist", "remove")).Delete("/whitelist/restrictions", s.handleRemoveRestrictions)
			admin.With(s.obs.Middleware("randomness", "set_fulfiller")).Put("/randomness/fulfiller", s.handleSetFulfiller)
			admin.With(s.obs.Middleware("system", "set_pauses")).Put("/pauses", s.handleSetPauses)
		})
	})
	return otelhttp.NewHandler(r, "claimsd")
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("claimsd: http server listening", slog.String("address", s.cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// locked runs fn while holding the state lock.
func (s *Server) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// caller resolves the authenticated subject to an account address.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	subject := middleware.SubjectFromContext(r.Context())
	addr, err := crypto.ParseAddress(subject)
	if err != nil || addr == ([20]byte{}) {
		http.Error(w, "invalid subject", http.StatusUnauthorized)
		return [20]byte{}, false
	}
	return addr, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
