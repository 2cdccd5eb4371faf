package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/iamaanahmad/agentmarket/internal/models"
)

// Store is the persistence abstraction shared by the four components. Every
// method that moves funds or advances a request state is atomic: the state is
// re-validated and mutated inside a single transaction (or under a single
// lock for the memory implementation), so partial transitions are never
// observable. Methods return the market error kinds directly.
type Store interface {
	// Agents.
	CreateAgent(ctx context.Context, in AgentInput) (models.Agent, error)
	GetAgent(ctx context.Context, id uuid.UUID) (models.Agent, error)
	UpdateAgentMetadata(ctx context.Context, id uuid.UUID, uri string) (models.Agent, error)
	SetAgentActive(ctx context.Context, id uuid.UUID, active bool) (models.Agent, error)

	// Accounts.
	Deposit(ctx context.Context, owner string, amount int64) (models.Account, error)
	Withdraw(ctx context.Context, owner string, amount int64) (models.Account, error)
	GetAccount(ctx context.Context, owner string) (models.Account, error)

	// Escrow requests. CreateRequest debits the payer and inserts the
	// request as one unit. SettleRequest flips the state, credits the
	// three recipients and records the distribution as one unit.
	// RefundRequest flips the state and credits the payer back.
	CreateRequest(ctx context.Context, in RequestInput) (models.EscrowRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (models.EscrowRequest, error)
	SubmitResult(ctx context.Context, id uuid.UUID, resultRef string) (models.EscrowRequest, error)
	DisputeRequest(ctx context.Context, id uuid.UUID, reason string) (models.EscrowRequest, error)
	SettleRequest(ctx context.Context, in SettleInput) (models.EscrowRequest, models.Distribution, error)
	RefundRequest(ctx context.Context, id uuid.UUID, from, to models.RequestState) (models.EscrowRequest, error)
	ListApprovedWithoutDistribution(ctx context.Context, limit int) ([]models.EscrowRequest, error)

	// Ratings.
	CreateRating(ctx context.Context, in RatingInput) (models.Rating, error)
	GetRating(ctx context.Context, id uuid.UUID) (models.Rating, error)
	SetRatingModerated(ctx context.Context, id uuid.UUID, moderated bool) (models.Rating, error)
	ReportRating(ctx context.Context, id uuid.UUID, reason string) (models.Rating, error)
	ListAgentRatings(ctx context.Context, agentID uuid.UUID) ([]models.Rating, error)

	// Royalty configuration (singleton row).
	EnsureRoyaltyConfig(ctx context.Context, defaults models.RoyaltyConfig) (models.RoyaltyConfig, error)
	GetRoyaltyConfig(ctx context.Context) (models.RoyaltyConfig, error)
	UpdateRoyaltyShares(ctx context.Context, creator, platform, treasury int) (models.RoyaltyConfig, error)
	SetPaused(ctx context.Context, paused bool) (models.RoyaltyConfig, error)
	GetDistributionByRequest(ctx context.Context, requestID uuid.UUID) (models.Distribution, error)

	Ping(ctx context.Context) error
}

type AgentInput struct {
	ID          uuid.UUID
	Creator     string
	MetadataURI string
}

type RequestInput struct {
	ID            uuid.UUID
	AgentID       uuid.UUID
	Payer         string
	Amount        int64
	CreatorShare  int
	PlatformShare int
	TreasuryShare int
}

// SettleInput carries a fully computed disbursement into the settlement
// transaction. From is the state the request must still be in when the row is
// locked; the store rejects the transition with ErrInvalidState otherwise.
type SettleInput struct {
	RequestID       uuid.UUID
	From            models.RequestState
	To              models.RequestState
	Creator         string
	CreatorAmount   int64
	PlatformAmount  int64
	TreasuryAmount  int64
	PlatformAccount string
	TreasuryAccount string
}

type RatingInput struct {
	ID        uuid.UUID
	AgentID   uuid.UUID
	RequestID uuid.UUID
	Rater     string
	Stars     int
	Quality   int
	Speed     int
	Value     int
}
