package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/iamaanahmad/agentmarket/internal/auth"
	"github.com/iamaanahmad/agentmarket/internal/config"
	"github.com/iamaanahmad/agentmarket/internal/escrow"
	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/registry"
	"github.com/iamaanahmad/agentmarket/internal/reputation"
	"github.com/iamaanahmad/agentmarket/internal/royalty"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

type Server struct {
	cfg         config.Config
	registry    *registry.Registry
	escrow      *escrow.Coordinator
	reputation  *reputation.Ledger
	distributor *royalty.Distributor
	store       store.Store
}

func New(cfg config.Config, reg *registry.Registry, esc *escrow.Coordinator, rep *reputation.Ledger, dist *royalty.Distributor, st store.Store) *Server {
	return &Server{
		cfg:         cfg,
		registry:    reg,
		escrow:      esc,
		reputation:  rep,
		distributor: dist,
		store:       st,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleHealth)

	authed := auth.Middleware(auth.Options{
		Secret:              []byte(s.cfg.JWTSecret),
		AllowDebugPrincipal: s.cfg.AllowDebugPrincipal,
	})

	r.Group(func(r chi.Router) {
		r.Use(authed)

		r.Route("/registry/agents", func(r chi.Router) {
			r.Post("/", s.handleRegisterAgent)
			r.Get("/{id}", s.handleGetAgent)
			r.Patch("/{id}", s.handleUpdateMetadata)
			r.Post("/{id}/deactivate", s.handleDeactivateAgent)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/deposit", s.handleDeposit)
			r.Get("/{owner}", s.handleGetAccount)
		})

		r.Route("/escrow/requests", func(r chi.Router) {
			r.Post("/", s.handleOpenRequest)
			r.Get("/{id}", s.handleGetRequest)
			r.Post("/{id}/result", s.handleSubmitResult)
			r.Post("/{id}/approve", s.handleApprove)
			r.Post("/{id}/dispute", s.handleDispute)
			r.Post("/{id}/cancel", s.handleCancel)
			r.With(auth.RequireRole(auth.RolePlatformAdmin)).
				Post("/{id}/resolve", s.handleResolve)
		})

		r.Route("/reputation", func(r chi.Router) {
			r.Post("/ratings", s.handleSubmitRating)
			r.Post("/ratings/{id}/report", s.handleReportRating)
			r.With(auth.RequireRole(auth.RolePlatformAdmin)).
				Post("/ratings/{id}/moderate", s.handleModerateRating)
			r.Get("/agents/{id}", s.handleGetAggregate)
		})

		r.Route("/royalty", func(r chi.Router) {
			r.Get("/stats", s.handleRoyaltyStats)
			r.With(auth.RequireRole(auth.RolePlatformAdmin)).
				Post("/config", s.handleUpdateSplit)
			r.With(auth.RequireRole(auth.RolePlatformAdmin)).
				Post("/pause", s.handleSetPaused)
			r.With(auth.RequireRole(auth.RolePlatformAdmin)).
				Post("/withdraw", s.handleWithdrawFees)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.store.Ping(ctx); err != nil {
		status["ok"] = false
		status["db"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

type registerAgentRequest struct {
	MetadataURI string `json:"metadataUri"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := auth.FromContext(r.Context())
	agent, err := s.registry.Register(r.Context(), p.Address, req.MetadataURI)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	agent, err := s.registry.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

type updateMetadataRequest struct {
	MetadataURI string `json:"metadataUri"`
}

func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateMetadataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := auth.FromContext(r.Context())
	agent, err := s.registry.UpdateMetadata(r.Context(), p.Address, id, req.MetadataURI)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (s *Server) handleDeactivateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p := auth.FromContext(r.Context())
	agent, err := s.registry.Deactivate(r.Context(), p.Address, p.HasRole(auth.RolePlatformAdmin), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (s *Server) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	agg, err := s.reputation.GetAggregate(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agg)
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	p := auth.FromContext(r.Context())
	acct, err := s.store.Deposit(r.Context(), p.Address, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	p := auth.FromContext(r.Context())
	if owner != p.Address && !p.HasRole(auth.RolePlatformAdmin) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	acct, err := s.store.GetAccount(r.Context(), owner)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

type openRequestRequest struct {
	AgentID string `json:"agentId"`
	Amount  int64  `json:"amount"`
}

func (s *Server) handleOpenRequest(w http.ResponseWriter, r *http.Request) {
	var req openRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid agentId")
		return
	}
	p := auth.FromContext(r.Context())
	created, err := s.escrow.OpenRequest(r.Context(), p.Address, agentID, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := s.escrow.GetRequest(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

type submitResultRequest struct {
	ResultRef string `json:"resultRef"`
}

func (s *Server) handleSubmitResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req submitResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := auth.FromContext(r.Context())
	updated, err := s.escrow.SubmitResult(r.Context(), p.Address, id, req.ResultRef)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p := auth.FromContext(r.Context())
	updated, dist, err := s.escrow.Approve(r.Context(), p.Address, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"request":      updated,
		"distribution": dist,
	})
}

type disputeRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req disputeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := auth.FromContext(r.Context())
	updated, err := s.escrow.Dispute(r.Context(), p.Address, id, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome := escrow.ResolveOutcome(req.Outcome)
	if outcome != escrow.OutcomeApprove && outcome != escrow.OutcomeRefund {
		respondError(w, http.StatusBadRequest, "outcome must be approve or refund")
		return
	}
	updated, err := s.escrow.Resolve(r.Context(), id, outcome)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p := auth.FromContext(r.Context())
	updated, err := s.escrow.Cancel(r.Context(), p.Address, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

type submitRatingRequest struct {
	RequestID string `json:"requestId"`
	Stars     int    `json:"stars"`
	Quality   int    `json:"quality"`
	Speed     int    `json:"speed"`
	Value     int    `json:"value"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	var req submitRatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid requestId")
		return
	}
	p := auth.FromContext(r.Context())
	rating, err := s.reputation.SubmitRating(r.Context(), p.Address, requestID, req.Stars, req.Quality, req.Speed, req.Value)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rating)
}

type moderateRequest struct {
	Hidden bool `json:"hidden"`
}

func (s *Server) handleModerateRating(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req moderateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rating, err := s.reputation.Moderate(r.Context(), id, req.Hidden)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rating)
}

type reportRatingRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReportRating(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reportRatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := auth.FromContext(r.Context())
	rating, err := s.reputation.Report(r.Context(), p.Address, id, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rating)
}

type updateSplitRequest struct {
	CreatorShare  int `json:"creatorShare"`
	PlatformShare int `json:"platformShare"`
	TreasuryShare int `json:"treasuryShare"`
}

func (s *Server) handleUpdateSplit(w http.ResponseWriter, r *http.Request) {
	var req updateSplitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := s.distributor.UpdateSplit(r.Context(), royalty.Split{
		Creator:  req.CreatorShare,
		Platform: req.PlatformShare,
		Treasury: req.TreasuryShare,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleRoyaltyStats(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.distributor.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"creatorShare":     cfg.CreatorShare,
		"platformShare":    cfg.PlatformShare,
		"treasuryShare":    cfg.TreasuryShare,
		"paused":           cfg.Paused,
		"totalDistributed": cfg.TotalDistributed,
		"totalPayouts":     cfg.TotalPayouts,
	})
}

type setPausedRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	var req setPausedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := s.distributor.SetPaused(r.Context(), req.Paused)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

type withdrawRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := s.distributor.WithdrawPlatformFees(r.Context(), req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps the market error taxonomy onto HTTP statuses.
// Conflicting state transitions and exhausted balances are 409 so clients can
// distinguish "retry won't help as-is" from malformed input.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrUnauthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, market.ErrPaused):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, market.ErrInvalidState),
		errors.Is(err, market.ErrAlreadyDistributed),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrInsufficientBalance),
		errors.Is(err, market.ErrNotEligible),
		errors.Is(err, market.ErrDuplicateRegistration),
		errors.Is(err, market.ErrAgentInactive):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusBadRequest, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
