package reputation_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamaanahmad/agentmarket/internal/escrow"
	"github.com/iamaanahmad/agentmarket/internal/events"
	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/models"
	"github.com/iamaanahmad/agentmarket/internal/reputation"
	"github.com/iamaanahmad/agentmarket/internal/royalty"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

type env struct {
	st     *store.MemoryStore
	ledger *reputation.Ledger
	esc    *escrow.Coordinator
	agent  models.Agent
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	_, err := st.EnsureRoyaltyConfig(ctx, models.RoyaltyConfig{
		CreatorShare:    85,
		PlatformShare:   10,
		TreasuryShare:   5,
		PlatformAccount: "platform",
		TreasuryAccount: "treasury",
	})
	require.NoError(t, err)
	agent, err := st.CreateAgent(ctx, store.AgentInput{Creator: "creator-1", MetadataURI: "ipfs://meta"})
	require.NoError(t, err)
	_, err = st.Deposit(ctx, "payer-1", 10000)
	require.NoError(t, err)

	emitter := events.NewMemoryEmitter()
	dist := royalty.New(st, emitter)
	return &env{
		st:     st,
		ledger: reputation.New(st, emitter),
		esc:    escrow.New(st, dist, emitter, false),
		agent:  agent,
	}
}

// approvedRequest walks a fresh request through to the Approved state.
func (e *env) approvedRequest(t *testing.T) models.EscrowRequest {
	t.Helper()
	ctx := context.Background()
	req, err := e.esc.OpenRequest(ctx, "payer-1", e.agent.ID, 100)
	require.NoError(t, err)
	_, err = e.esc.SubmitResult(ctx, "creator-1", req.ID, "ref")
	require.NoError(t, err)
	updated, _, err := e.esc.Approve(ctx, "payer-1", req.ID)
	require.NoError(t, err)
	return updated
}

func TestSubmitRating(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	req := e.approvedRequest(t)

	rating, err := e.ledger.SubmitRating(ctx, "payer-1", req.ID, 5, 4, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, e.agent.ID, rating.AgentID)
	assert.Equal(t, 5, rating.Stars)
	assert.False(t, rating.Moderated)
}

func TestSubmitRatingEligibility(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Not yet approved: open request, then submitted result.
	open, err := e.esc.OpenRequest(ctx, "payer-1", e.agent.ID, 100)
	require.NoError(t, err)
	_, err = e.ledger.SubmitRating(ctx, "payer-1", open.ID, 5, 5, 5, 5)
	assert.ErrorIs(t, err, market.ErrNotEligible)

	req := e.approvedRequest(t)

	// Only the payer may rate.
	_, err = e.ledger.SubmitRating(ctx, "creator-1", req.ID, 5, 5, 5, 5)
	assert.ErrorIs(t, err, market.ErrNotEligible)

	// One rating per request.
	_, err = e.ledger.SubmitRating(ctx, "payer-1", req.ID, 5, 5, 5, 5)
	require.NoError(t, err)
	_, err = e.ledger.SubmitRating(ctx, "payer-1", req.ID, 4, 4, 4, 4)
	assert.ErrorIs(t, err, market.ErrNotEligible)

	// Unknown request.
	_, err = e.ledger.SubmitRating(ctx, "payer-1", uuid.New(), 5, 5, 5, 5)
	assert.ErrorIs(t, err, market.ErrNotFound)
}

func TestSubmitRatingScoreBounds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	req := e.approvedRequest(t)

	_, err := e.ledger.SubmitRating(ctx, "payer-1", req.ID, 0, 5, 5, 5)
	assert.ErrorIs(t, err, market.ErrInvalidRating)
	_, err = e.ledger.SubmitRating(ctx, "payer-1", req.ID, 5, 6, 5, 5)
	assert.ErrorIs(t, err, market.ErrInvalidRating)
}

func TestRatingAfterDisputeResolvedApproved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req, err := e.esc.OpenRequest(ctx, "payer-1", e.agent.ID, 100)
	require.NoError(t, err)
	_, err = e.esc.SubmitResult(ctx, "creator-1", req.ID, "ref")
	require.NoError(t, err)
	_, err = e.esc.Dispute(ctx, "payer-1", req.ID, "late")
	require.NoError(t, err)
	_, err = e.esc.Resolve(ctx, req.ID, escrow.OutcomeApprove)
	require.NoError(t, err)

	_, err = e.ledger.SubmitRating(ctx, "payer-1", req.ID, 2, 3, 1, 2)
	assert.NoError(t, err, "a dispute resolved in the agent's favor still completed the job")
}

func TestRatingAfterRefundRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req, err := e.esc.OpenRequest(ctx, "payer-1", e.agent.ID, 100)
	require.NoError(t, err)
	_, err = e.esc.SubmitResult(ctx, "creator-1", req.ID, "ref")
	require.NoError(t, err)
	_, err = e.esc.Dispute(ctx, "payer-1", req.ID, "broken")
	require.NoError(t, err)
	_, err = e.esc.Resolve(ctx, req.ID, escrow.OutcomeRefund)
	require.NoError(t, err)

	_, err = e.ledger.SubmitRating(ctx, "payer-1", req.ID, 1, 1, 1, 1)
	assert.ErrorIs(t, err, market.ErrNotEligible)
}

func TestAggregateCentiStars(t *testing.T) {
	agentID := uuid.New()
	ratings := []models.Rating{
		{Stars: 5, Quality: 5, Speed: 4, Value: 5},
		{Stars: 4, Quality: 3, Speed: 5, Value: 4},
	}
	agg := reputation.Aggregate(agentID, ratings)
	assert.Equal(t, int64(2), agg.Count)
	assert.Equal(t, int64(450), agg.Score)
	assert.Equal(t, int64(400), agg.Quality)
	assert.Equal(t, int64(450), agg.Speed)
	assert.Equal(t, int64(450), agg.Value)
}

func TestAggregateSkipsModerated(t *testing.T) {
	agentID := uuid.New()
	ratings := []models.Rating{
		{Stars: 5, Quality: 5, Speed: 5, Value: 5},
		{Stars: 1, Quality: 1, Speed: 1, Value: 1, Moderated: true},
	}
	agg := reputation.Aggregate(agentID, ratings)
	assert.Equal(t, int64(1), agg.Count)
	assert.Equal(t, int64(500), agg.Score)
}

func TestAggregateEmpty(t *testing.T) {
	agg := reputation.Aggregate(uuid.New(), nil)
	assert.Zero(t, agg.Count)
	assert.Zero(t, agg.Score)
}

func TestReportRating(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	req := e.approvedRequest(t)

	rating, err := e.ledger.SubmitRating(ctx, "payer-1", req.ID, 5, 5, 5, 5)
	require.NoError(t, err)

	_, err = e.ledger.Report(ctx, "other-user", rating.ID, "")
	assert.Error(t, err)

	_, err = e.ledger.Report(ctx, "other-user", uuid.New(), "spam")
	assert.ErrorIs(t, err, market.ErrNotFound)

	reported, err := e.ledger.Report(ctx, "other-user", rating.ID, "looks like self-review")
	require.NoError(t, err)
	assert.True(t, reported.Reported)
	assert.Equal(t, "looks like self-review", reported.ReportReason)

	// A report alone does not change the aggregate; only moderation does.
	agg, err := e.ledger.GetAggregate(ctx, e.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Count)

	_, err = e.ledger.Moderate(ctx, rating.ID, true)
	require.NoError(t, err)
	agg, err = e.ledger.GetAggregate(ctx, e.agent.ID)
	require.NoError(t, err)
	assert.Zero(t, agg.Count)
}

func TestModerationInvalidatesAggregate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	req := e.approvedRequest(t)

	rating, err := e.ledger.SubmitRating(ctx, "payer-1", req.ID, 5, 5, 5, 5)
	require.NoError(t, err)

	agg, err := e.ledger.GetAggregate(ctx, e.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Count)

	moderated, err := e.ledger.Moderate(ctx, rating.ID, true)
	require.NoError(t, err)
	assert.True(t, moderated.Moderated)

	agg, err = e.ledger.GetAggregate(ctx, e.agent.ID)
	require.NoError(t, err)
	assert.Zero(t, agg.Count, "moderated ratings leave the aggregate immediately")

	// The record itself survives moderation.
	kept, err := e.st.GetRating(ctx, rating.ID)
	require.NoError(t, err)
	assert.True(t, kept.Moderated)
}
