package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/models"
)

// MemoryStore is the in-memory Store used by tests and local development.
// A single mutex gives it the same atomicity guarantees as the Postgres
// implementation: each method is one indivisible unit.
type MemoryStore struct {
	mu            sync.Mutex
	agents        map[uuid.UUID]models.Agent
	accounts      map[string]models.Account
	requests      map[uuid.UUID]models.EscrowRequest
	ratings       map[uuid.UUID]models.Rating
	distributions map[uuid.UUID]models.Distribution // keyed by request id
	config        *models.RoyaltyConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:        map[uuid.UUID]models.Agent{},
		accounts:      map[string]models.Account{},
		requests:      map[uuid.UUID]models.EscrowRequest{},
		ratings:       map[uuid.UUID]models.Rating{},
		distributions: map[uuid.UUID]models.Distribution{},
	}
}

func (m *MemoryStore) CreateAgent(ctx context.Context, in AgentInput) (models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.Active && a.Creator == in.Creator && a.MetadataURI == in.MetadataURI {
			return models.Agent{}, market.ErrDuplicateRegistration
		}
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	now := time.Now().UTC()
	agent := models.Agent{
		ID:            in.ID,
		Creator:       in.Creator,
		MetadataURI:   in.MetadataURI,
		Active:        true,
		SchemaVersion: models.SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.agents[agent.ID] = agent
	return agent, nil
}

func (m *MemoryStore) GetAgent(ctx context.Context, id uuid.UUID) (models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return models.Agent{}, market.ErrNotFound
	}
	return agent, nil
}

func (m *MemoryStore) UpdateAgentMetadata(ctx context.Context, id uuid.UUID, uri string) (models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return models.Agent{}, market.ErrNotFound
	}
	agent.MetadataURI = uri
	agent.UpdatedAt = time.Now().UTC()
	m.agents[id] = agent
	return agent, nil
}

func (m *MemoryStore) SetAgentActive(ctx context.Context, id uuid.UUID, active bool) (models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return models.Agent{}, market.ErrNotFound
	}
	agent.Active = active
	agent.UpdatedAt = time.Now().UTC()
	m.agents[id] = agent
	return agent, nil
}

func (m *MemoryStore) Deposit(ctx context.Context, owner string, amount int64) (models.Account, error) {
	if amount <= 0 {
		return models.Account{}, market.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credit(owner, amount), nil
}

// credit assumes the lock is held.
func (m *MemoryStore) credit(owner string, amount int64) models.Account {
	acct := m.accounts[owner]
	acct.Owner = owner
	acct.Balance += amount
	acct.SchemaVersion = models.SchemaVersion
	acct.UpdatedAt = time.Now().UTC()
	m.accounts[owner] = acct
	return acct
}

func (m *MemoryStore) Withdraw(ctx context.Context, owner string, amount int64) (models.Account, error) {
	if amount <= 0 {
		return models.Account{}, market.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[owner]
	if !ok || acct.Balance < amount {
		return models.Account{}, market.ErrInsufficientBalance
	}
	acct.Balance -= amount
	acct.UpdatedAt = time.Now().UTC()
	m.accounts[owner] = acct
	return acct, nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, owner string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[owner]
	if !ok {
		return models.Account{}, market.ErrNotFound
	}
	return acct, nil
}

func (m *MemoryStore) CreateRequest(ctx context.Context, in RequestInput) (models.EscrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[in.Payer]
	if !ok || acct.Balance < in.Amount {
		return models.EscrowRequest{}, market.ErrInsufficientFunds
	}
	acct.Balance -= in.Amount
	acct.UpdatedAt = time.Now().UTC()
	m.accounts[in.Payer] = acct

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	now := time.Now().UTC()
	req := models.EscrowRequest{
		ID:            in.ID,
		AgentID:       in.AgentID,
		Payer:         in.Payer,
		Amount:        in.Amount,
		State:         models.StateOpen,
		CreatorShare:  in.CreatorShare,
		PlatformShare: in.PlatformShare,
		TreasuryShare: in.TreasuryShare,
		SchemaVersion: models.SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.requests[req.ID] = req
	return req, nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id uuid.UUID) (models.EscrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return models.EscrowRequest{}, market.ErrNotFound
	}
	return req, nil
}

func (m *MemoryStore) SubmitResult(ctx context.Context, id uuid.UUID, resultRef string) (models.EscrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return models.EscrowRequest{}, market.ErrNotFound
	}
	if req.State != models.StateOpen {
		return models.EscrowRequest{}, market.ErrInvalidState
	}
	req.State = models.StateResultSubmitted
	req.ResultRef = resultRef
	req.UpdatedAt = time.Now().UTC()
	m.requests[id] = req
	return req, nil
}

func (m *MemoryStore) DisputeRequest(ctx context.Context, id uuid.UUID, reason string) (models.EscrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return models.EscrowRequest{}, market.ErrNotFound
	}
	if req.State != models.StateResultSubmitted {
		return models.EscrowRequest{}, market.ErrInvalidState
	}
	req.State = models.StateDisputed
	req.DisputeReason = reason
	req.UpdatedAt = time.Now().UTC()
	m.requests[id] = req
	return req, nil
}

func (m *MemoryStore) SettleRequest(ctx context.Context, in SettleInput) (models.EscrowRequest, models.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[in.RequestID]
	if !ok {
		return models.EscrowRequest{}, models.Distribution{}, market.ErrNotFound
	}
	if req.State != in.From {
		return models.EscrowRequest{}, models.Distribution{}, market.ErrInvalidState
	}
	if _, exists := m.distributions[in.RequestID]; exists {
		return models.EscrowRequest{}, models.Distribution{}, market.ErrAlreadyDistributed
	}
	if in.CreatorAmount+in.PlatformAmount+in.TreasuryAmount != req.Amount {
		return models.EscrowRequest{}, models.Distribution{}, market.ErrInvalidSplit
	}

	req.State = in.To
	req.UpdatedAt = time.Now().UTC()
	m.requests[in.RequestID] = req

	m.credit(in.Creator, in.CreatorAmount)
	m.credit(in.PlatformAccount, in.PlatformAmount)
	m.credit(in.TreasuryAccount, in.TreasuryAmount)

	dist := models.Distribution{
		ID:             uuid.New(),
		RequestID:      in.RequestID,
		Creator:        in.Creator,
		Total:          req.Amount,
		CreatorAmount:  in.CreatorAmount,
		PlatformAmount: in.PlatformAmount,
		TreasuryAmount: in.TreasuryAmount,
		SchemaVersion:  models.SchemaVersion,
		CreatedAt:      time.Now().UTC(),
	}
	m.distributions[in.RequestID] = dist

	if m.config != nil {
		m.config.TotalDistributed += req.Amount
		m.config.TotalPayouts++
		m.config.UpdatedAt = time.Now().UTC()
	}
	return req, dist, nil
}

func (m *MemoryStore) RefundRequest(ctx context.Context, id uuid.UUID, from, to models.RequestState) (models.EscrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return models.EscrowRequest{}, market.ErrNotFound
	}
	if req.State != from {
		return models.EscrowRequest{}, market.ErrInvalidState
	}
	req.State = to
	req.UpdatedAt = time.Now().UTC()
	m.requests[id] = req
	m.credit(req.Payer, req.Amount)
	return req, nil
}

func (m *MemoryStore) ListApprovedWithoutDistribution(ctx context.Context, limit int) ([]models.EscrowRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EscrowRequest
	for id, req := range m.requests {
		if !req.State.ApprovedTerminal() {
			continue
		}
		if _, ok := m.distributions[id]; ok {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateRating(ctx context.Context, in RatingInput) (models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.ratings {
		if r.RequestID == in.RequestID {
			return models.Rating{}, market.ErrNotEligible
		}
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	rating := models.Rating{
		ID:            in.ID,
		AgentID:       in.AgentID,
		RequestID:     in.RequestID,
		Rater:         in.Rater,
		Stars:         in.Stars,
		Quality:       in.Quality,
		Speed:         in.Speed,
		Value:         in.Value,
		SchemaVersion: models.SchemaVersion,
		CreatedAt:     time.Now().UTC(),
	}
	m.ratings[rating.ID] = rating
	return rating, nil
}

func (m *MemoryStore) GetRating(ctx context.Context, id uuid.UUID) (models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rating, ok := m.ratings[id]
	if !ok {
		return models.Rating{}, market.ErrNotFound
	}
	return rating, nil
}

func (m *MemoryStore) SetRatingModerated(ctx context.Context, id uuid.UUID, moderated bool) (models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rating, ok := m.ratings[id]
	if !ok {
		return models.Rating{}, market.ErrNotFound
	}
	rating.Moderated = moderated
	m.ratings[id] = rating
	return rating, nil
}

func (m *MemoryStore) ReportRating(ctx context.Context, id uuid.UUID, reason string) (models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rating, ok := m.ratings[id]
	if !ok {
		return models.Rating{}, market.ErrNotFound
	}
	rating.Reported = true
	rating.ReportReason = reason
	m.ratings[id] = rating
	return rating, nil
}

func (m *MemoryStore) ListAgentRatings(ctx context.Context, agentID uuid.UUID) ([]models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Rating
	for _, r := range m.ratings {
		if r.AgentID == agentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) EnsureRoyaltyConfig(ctx context.Context, defaults models.RoyaltyConfig) (models.RoyaltyConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		defaults.SchemaVersion = models.SchemaVersion
		defaults.UpdatedAt = time.Now().UTC()
		cfg := defaults
		m.config = &cfg
	}
	return *m.config, nil
}

func (m *MemoryStore) GetRoyaltyConfig(ctx context.Context) (models.RoyaltyConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		return models.RoyaltyConfig{}, market.ErrNotFound
	}
	return *m.config, nil
}

func (m *MemoryStore) UpdateRoyaltyShares(ctx context.Context, creator, platform, treasury int) (models.RoyaltyConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		return models.RoyaltyConfig{}, market.ErrNotFound
	}
	m.config.CreatorShare = creator
	m.config.PlatformShare = platform
	m.config.TreasuryShare = treasury
	m.config.UpdatedAt = time.Now().UTC()
	return *m.config, nil
}

func (m *MemoryStore) SetPaused(ctx context.Context, paused bool) (models.RoyaltyConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		return models.RoyaltyConfig{}, market.ErrNotFound
	}
	m.config.Paused = paused
	m.config.UpdatedAt = time.Now().UTC()
	return *m.config, nil
}

func (m *MemoryStore) GetDistributionByRequest(ctx context.Context, requestID uuid.UUID) (models.Distribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dist, ok := m.distributions[requestID]
	if !ok {
		return models.Distribution{}, market.ErrNotFound
	}
	return dist, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
