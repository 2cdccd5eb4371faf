package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/models"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

func newMock(t *testing.T) (*store.PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewPGStore(db), mock
}

func agentRows(id uuid.UUID, creator, uri string, active bool) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "creator", "metadata_uri", "active", "schema_version", "created_at", "updated_at"}).
		AddRow(id, creator, uri, active, models.SchemaVersion, now, now)
}

func requestRows(id, agentID uuid.UUID, payer string, amount int64, state models.RequestState) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "agent_id", "payer", "amount", "state", "result_ref", "dispute_reason",
		"creator_share", "platform_share", "treasury_share", "schema_version", "created_at", "updated_at",
	}).AddRow(id, agentID, payer, amount, state, "", "", 85, 10, 5, models.SchemaVersion, now, now)
}

func TestGetAgent(t *testing.T) {
	st, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, creator, metadata_uri").
		WithArgs(id).
		WillReturnRows(agentRows(id, "creator-1", "ipfs://m", true))

	agent, err := st.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, agent.ID)
	assert.True(t, agent.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAgentNotFound(t *testing.T) {
	st, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, creator, metadata_uri").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := st.GetAgent(context.Background(), id)
	assert.ErrorIs(t, err, market.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAgentDuplicate(t *testing.T) {
	st, mock := newMock(t)

	mock.ExpectQuery("INSERT INTO agents").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := st.CreateAgent(context.Background(), store.AgentInput{Creator: "creator-1", MetadataURI: "ipfs://m"})
	assert.ErrorIs(t, err, market.ErrDuplicateRegistration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepositUpserts(t *testing.T) {
	st, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs("payer-1", int64(100), models.SchemaVersion).
		WillReturnRows(sqlmock.NewRows([]string{"owner", "balance", "schema_version", "updated_at"}).
			AddRow("payer-1", int64(100), models.SchemaVersion, now))

	acct, err := st.Deposit(context.Background(), "payer-1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	st, mock := newMock(t)

	mock.ExpectQuery("UPDATE accounts SET balance").
		WithArgs("payer-1", int64(500)).
		WillReturnError(sql.ErrNoRows)

	_, err := st.Withdraw(context.Background(), "payer-1", 500)
	assert.ErrorIs(t, err, market.ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequestDebitsPayer(t *testing.T) {
	st, mock := newMock(t)
	agentID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs("payer-1", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO escrow_requests").
		WillReturnRows(requestRows(uuid.New(), agentID, "payer-1", 100, models.StateOpen))
	mock.ExpectCommit()

	req, err := st.CreateRequest(context.Background(), store.RequestInput{
		AgentID: agentID, Payer: "payer-1", Amount: 100,
		CreatorShare: 85, PlatformShare: 10, TreasuryShare: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StateOpen, req.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequestInsufficientFundsRollsBack(t *testing.T) {
	st, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET balance").
		WithArgs("payer-1", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := st.CreateRequest(context.Background(), store.RequestInput{
		AgentID: uuid.New(), Payer: "payer-1", Amount: 100,
		CreatorShare: 85, PlatformShare: 10, TreasuryShare: 5,
	})
	assert.ErrorIs(t, err, market.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitResultWrongState(t *testing.T) {
	st, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, agent_id").
		WithArgs(id).
		WillReturnRows(requestRows(id, uuid.New(), "payer-1", 100, models.StateApproved))
	mock.ExpectRollback()

	_, err := st.SubmitResult(context.Background(), id, "ref")
	assert.ErrorIs(t, err, market.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleRequestConservationGuard(t *testing.T) {
	st, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, agent_id").
		WithArgs(id).
		WillReturnRows(requestRows(id, uuid.New(), "payer-1", 100, models.StateResultSubmitted))
	mock.ExpectRollback()

	_, _, err := st.SettleRequest(context.Background(), store.SettleInput{
		RequestID: id,
		From:      models.StateResultSubmitted,
		To:        models.StateApproved,
		Creator:   "creator-1",
		// 85+10+4 != 100: must be rejected before any balance moves.
		CreatorAmount:   85,
		PlatformAmount:  10,
		TreasuryAmount:  4,
		PlatformAccount: "platform",
		TreasuryAccount: "treasury",
	})
	assert.ErrorIs(t, err, market.ErrInvalidSplit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoyaltyShares(t *testing.T) {
	st, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE royalty_config SET creator_share").
		WithArgs(70, 20, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"creator_share", "platform_share", "treasury_share", "platform_account", "treasury_account",
			"paused", "total_distributed", "total_payouts", "schema_version", "updated_at",
		}).AddRow(70, 20, 10, "platform", "treasury", false, int64(0), int64(0), models.SchemaVersion, now))

	cfg, err := st.UpdateRoyaltyShares(context.Background(), 70, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.CreatorShare)
	assert.Equal(t, 20, cfg.PlatformShare)
	assert.Equal(t, 10, cfg.TreasuryShare)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRatingNotFound(t *testing.T) {
	st, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE ratings SET reported").
		WithArgs(id, "spam").
		WillReturnError(sql.ErrNoRows)

	_, err := st.ReportRating(context.Background(), id, "spam")
	assert.ErrorIs(t, err, market.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRatingDuplicateRequest(t *testing.T) {
	st, mock := newMock(t)

	mock.ExpectQuery("INSERT INTO ratings").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := st.CreateRating(context.Background(), store.RatingInput{
		AgentID: uuid.New(), RequestID: uuid.New(), Rater: "payer-1",
		Stars: 5, Quality: 5, Speed: 5, Value: 5,
	})
	assert.ErrorIs(t, err, market.ErrNotEligible)
	assert.NoError(t, mock.ExpectationsWereMet())
}
