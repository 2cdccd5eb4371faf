package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/models"
)

// PGStore is the Postgres-backed Store. Each state transition locks the
// request row with SELECT ... FOR UPDATE, re-validates the expected state and
// writes the transition, the balance movements and the distribution record in
// a single transaction, so concurrent approve/dispute calls serialize on the
// row and the loser fails with ErrInvalidState.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const agentColumns = "id, creator, metadata_uri, active, schema_version, created_at, updated_at"

func scanAgent(row rowScanner) (models.Agent, error) {
	var a models.Agent
	if err := row.Scan(&a.ID, &a.Creator, &a.MetadataURI, &a.Active, &a.SchemaVersion, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return models.Agent{}, err
	}
	return a, nil
}

const requestColumns = "id, agent_id, payer, amount, state, result_ref, dispute_reason, creator_share, platform_share, treasury_share, schema_version, created_at, updated_at"

func scanRequest(row rowScanner) (models.EscrowRequest, error) {
	var r models.EscrowRequest
	if err := row.Scan(
		&r.ID, &r.AgentID, &r.Payer, &r.Amount, &r.State,
		&r.ResultRef, &r.DisputeReason,
		&r.CreatorShare, &r.PlatformShare, &r.TreasuryShare,
		&r.SchemaVersion, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return models.EscrowRequest{}, err
	}
	return r, nil
}

const ratingColumns = "id, agent_id, request_id, rater, stars, quality, speed, value, moderated, reported, report_reason, schema_version, created_at"

func scanRating(row rowScanner) (models.Rating, error) {
	var r models.Rating
	if err := row.Scan(&r.ID, &r.AgentID, &r.RequestID, &r.Rater, &r.Stars, &r.Quality, &r.Speed, &r.Value, &r.Moderated, &r.Reported, &r.ReportReason, &r.SchemaVersion, &r.CreatedAt); err != nil {
		return models.Rating{}, err
	}
	return r, nil
}

const distributionColumns = "id, request_id, creator, total, creator_amount, platform_amount, treasury_amount, schema_version, created_at"

func scanDistribution(row rowScanner) (models.Distribution, error) {
	var d models.Distribution
	if err := row.Scan(&d.ID, &d.RequestID, &d.Creator, &d.Total, &d.CreatorAmount, &d.PlatformAmount, &d.TreasuryAmount, &d.SchemaVersion, &d.CreatedAt); err != nil {
		return models.Distribution{}, err
	}
	return d, nil
}

const configColumns = "creator_share, platform_share, treasury_share, platform_account, treasury_account, paused, total_distributed, total_payouts, schema_version, updated_at"

func scanConfig(row rowScanner) (models.RoyaltyConfig, error) {
	var c models.RoyaltyConfig
	if err := row.Scan(&c.CreatorShare, &c.PlatformShare, &c.TreasuryShare, &c.PlatformAccount, &c.TreasuryAccount, &c.Paused, &c.TotalDistributed, &c.TotalPayouts, &c.SchemaVersion, &c.UpdatedAt); err != nil {
		return models.RoyaltyConfig{}, err
	}
	return c, nil
}

func (s *PGStore) CreateAgent(ctx context.Context, in AgentInput) (models.Agent, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	query := `
		INSERT INTO agents (id, creator, metadata_uri, active, schema_version)
		VALUES ($1,$2,$3,TRUE,$4)
		RETURNING ` + agentColumns
	agent, err := scanAgent(s.db.QueryRowContext(ctx, query, in.ID, in.Creator, in.MetadataURI, models.SchemaVersion))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Agent{}, market.ErrDuplicateRegistration
		}
		return models.Agent{}, fmt.Errorf("insert agent: %w", err)
	}
	return agent, nil
}

func (s *PGStore) GetAgent(ctx context.Context, id uuid.UUID) (models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id=$1`
	agent, err := scanAgent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Agent{}, market.ErrNotFound
		}
		return models.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return agent, nil
}

func (s *PGStore) UpdateAgentMetadata(ctx context.Context, id uuid.UUID, uri string) (models.Agent, error) {
	query := `
		UPDATE agents SET metadata_uri=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING ` + agentColumns
	agent, err := scanAgent(s.db.QueryRowContext(ctx, query, id, uri))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Agent{}, market.ErrNotFound
		}
		return models.Agent{}, fmt.Errorf("update agent metadata: %w", err)
	}
	return agent, nil
}

func (s *PGStore) SetAgentActive(ctx context.Context, id uuid.UUID, active bool) (models.Agent, error) {
	query := `
		UPDATE agents SET active=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING ` + agentColumns
	agent, err := scanAgent(s.db.QueryRowContext(ctx, query, id, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Agent{}, market.ErrNotFound
		}
		return models.Agent{}, fmt.Errorf("set agent active: %w", err)
	}
	return agent, nil
}

const accountColumns = "owner, balance, schema_version, updated_at"

func scanAccount(row rowScanner) (models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.Owner, &a.Balance, &a.SchemaVersion, &a.UpdatedAt); err != nil {
		return models.Account{}, err
	}
	return a, nil
}

func (s *PGStore) Deposit(ctx context.Context, owner string, amount int64) (models.Account, error) {
	if amount <= 0 {
		return models.Account{}, market.ErrInvalidAmount
	}
	query := `
		INSERT INTO accounts (owner, balance, schema_version)
		VALUES ($1,$2,$3)
		ON CONFLICT (owner) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING ` + accountColumns
	acct, err := scanAccount(s.db.QueryRowContext(ctx, query, owner, amount, models.SchemaVersion))
	if err != nil {
		return models.Account{}, fmt.Errorf("deposit: %w", err)
	}
	return acct, nil
}

func (s *PGStore) Withdraw(ctx context.Context, owner string, amount int64) (models.Account, error) {
	if amount <= 0 {
		return models.Account{}, market.ErrInvalidAmount
	}
	query := `
		UPDATE accounts SET balance = balance - $2, updated_at = NOW()
		WHERE owner = $1 AND balance >= $2
		RETURNING ` + accountColumns
	acct, err := scanAccount(s.db.QueryRowContext(ctx, query, owner, amount))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, market.ErrInsufficientBalance
		}
		return models.Account{}, fmt.Errorf("withdraw: %w", err)
	}
	return acct, nil
}

func (s *PGStore) GetAccount(ctx context.Context, owner string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner=$1`
	acct, err := scanAccount(s.db.QueryRowContext(ctx, query, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, market.ErrNotFound
		}
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

// creditTx upserts a balance inside an open transaction.
func creditTx(ctx context.Context, tx *sql.Tx, owner string, amount int64) error {
	const query = `
		INSERT INTO accounts (owner, balance, schema_version)
		VALUES ($1,$2,$3)
		ON CONFLICT (owner) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, owner, amount, models.SchemaVersion); err != nil {
		return fmt.Errorf("credit %s: %w", owner, err)
	}
	return nil
}

func (s *PGStore) CreateRequest(ctx context.Context, in RequestInput) (models.EscrowRequest, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Lock the amount: debit fails if the payer cannot cover it.
	const debit = `
		UPDATE accounts SET balance = balance - $2, updated_at = NOW()
		WHERE owner = $1 AND balance >= $2
	`
	res, err := tx.ExecContext(ctx, debit, in.Payer, in.Amount)
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("debit payer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.EscrowRequest{}, market.ErrInsufficientFunds
	}

	insert := `
		INSERT INTO escrow_requests (id, agent_id, payer, amount, state, creator_share, platform_share, treasury_share, schema_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING ` + requestColumns
	req, err := scanRequest(tx.QueryRowContext(ctx, insert,
		in.ID, in.AgentID, in.Payer, in.Amount, models.StateOpen,
		in.CreatorShare, in.PlatformShare, in.TreasuryShare, models.SchemaVersion))
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("insert escrow request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.EscrowRequest{}, fmt.Errorf("commit open request: %w", err)
	}
	return req, nil
}

func (s *PGStore) GetRequest(ctx context.Context, id uuid.UUID) (models.EscrowRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM escrow_requests WHERE id=$1`
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EscrowRequest{}, market.ErrNotFound
		}
		return models.EscrowRequest{}, fmt.Errorf("get escrow request: %w", err)
	}
	return req, nil
}

// lockRequest fetches a request row FOR UPDATE and checks the expected state.
func lockRequest(ctx context.Context, tx *sql.Tx, id uuid.UUID, from models.RequestState) (models.EscrowRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM escrow_requests WHERE id=$1 FOR UPDATE`
	req, err := scanRequest(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EscrowRequest{}, market.ErrNotFound
		}
		return models.EscrowRequest{}, fmt.Errorf("lock escrow request: %w", err)
	}
	if req.State != from {
		return models.EscrowRequest{}, market.ErrInvalidState
	}
	return req, nil
}

func (s *PGStore) SubmitResult(ctx context.Context, id uuid.UUID, resultRef string) (models.EscrowRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockRequest(ctx, tx, id, models.StateOpen); err != nil {
		return models.EscrowRequest{}, err
	}
	update := `
		UPDATE escrow_requests SET state=$2, result_ref=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING ` + requestColumns
	req, err := scanRequest(tx.QueryRowContext(ctx, update, id, models.StateResultSubmitted, resultRef))
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("submit result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.EscrowRequest{}, fmt.Errorf("commit submit result: %w", err)
	}
	return req, nil
}

func (s *PGStore) DisputeRequest(ctx context.Context, id uuid.UUID, reason string) (models.EscrowRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockRequest(ctx, tx, id, models.StateResultSubmitted); err != nil {
		return models.EscrowRequest{}, err
	}
	update := `
		UPDATE escrow_requests SET state=$2, dispute_reason=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING ` + requestColumns
	req, err := scanRequest(tx.QueryRowContext(ctx, update, id, models.StateDisputed, reason))
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("dispute request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.EscrowRequest{}, fmt.Errorf("commit dispute: %w", err)
	}
	return req, nil
}

func (s *PGStore) SettleRequest(ctx context.Context, in SettleInput) (models.EscrowRequest, models.Distribution, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := lockRequest(ctx, tx, in.RequestID, in.From)
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}
	// Conservation guard: the three shares must add up to the locked amount.
	if in.CreatorAmount+in.PlatformAmount+in.TreasuryAmount != locked.Amount {
		return models.EscrowRequest{}, models.Distribution{}, market.ErrInvalidSplit
	}

	update := `
		UPDATE escrow_requests SET state=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING ` + requestColumns
	req, err := scanRequest(tx.QueryRowContext(ctx, update, in.RequestID, in.To))
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, fmt.Errorf("settle request: %w", err)
	}

	insert := `
		INSERT INTO distributions (id, request_id, creator, total, creator_amount, platform_amount, treasury_amount, schema_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING ` + distributionColumns
	dist, err := scanDistribution(tx.QueryRowContext(ctx, insert,
		uuid.New(), in.RequestID, in.Creator, locked.Amount,
		in.CreatorAmount, in.PlatformAmount, in.TreasuryAmount, models.SchemaVersion))
	if err != nil {
		if isUniqueViolation(err) {
			return models.EscrowRequest{}, models.Distribution{}, market.ErrAlreadyDistributed
		}
		return models.EscrowRequest{}, models.Distribution{}, fmt.Errorf("insert distribution: %w", err)
	}

	if err := creditTx(ctx, tx, in.Creator, in.CreatorAmount); err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}
	if err := creditTx(ctx, tx, in.PlatformAccount, in.PlatformAmount); err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}
	if err := creditTx(ctx, tx, in.TreasuryAccount, in.TreasuryAmount); err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}

	const stats = `
		UPDATE royalty_config SET total_distributed = total_distributed + $1, total_payouts = total_payouts + 1, updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, stats, locked.Amount); err != nil {
		return models.EscrowRequest{}, models.Distribution{}, fmt.Errorf("update distribution stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.EscrowRequest{}, models.Distribution{}, fmt.Errorf("commit settle: %w", err)
	}
	return req, dist, nil
}

func (s *PGStore) RefundRequest(ctx context.Context, id uuid.UUID, from, to models.RequestState) (models.EscrowRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := lockRequest(ctx, tx, id, from)
	if err != nil {
		return models.EscrowRequest{}, err
	}
	update := `
		UPDATE escrow_requests SET state=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING ` + requestColumns
	req, err := scanRequest(tx.QueryRowContext(ctx, update, id, to))
	if err != nil {
		return models.EscrowRequest{}, fmt.Errorf("refund request: %w", err)
	}
	if err := creditTx(ctx, tx, locked.Payer, locked.Amount); err != nil {
		return models.EscrowRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.EscrowRequest{}, fmt.Errorf("commit refund: %w", err)
	}
	return req, nil
}

func (s *PGStore) ListApprovedWithoutDistribution(ctx context.Context, limit int) ([]models.EscrowRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + requestColumns + ` FROM escrow_requests r
		WHERE r.state IN ($1, $2)
		  AND NOT EXISTS (SELECT 1 FROM distributions d WHERE d.request_id = r.id)
		ORDER BY r.created_at
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, models.StateApproved, models.StateResolvedApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("list undistributed: %w", err)
	}
	defer rows.Close()

	var out []models.EscrowRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

func (s *PGStore) CreateRating(ctx context.Context, in RatingInput) (models.Rating, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	query := `
		INSERT INTO ratings (id, agent_id, request_id, rater, stars, quality, speed, value, schema_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING ` + ratingColumns
	rating, err := scanRating(s.db.QueryRowContext(ctx, query,
		in.ID, in.AgentID, in.RequestID, in.Rater, in.Stars, in.Quality, in.Speed, in.Value, models.SchemaVersion))
	if err != nil {
		if isUniqueViolation(err) {
			// The request's single rating entitlement was already consumed.
			return models.Rating{}, market.ErrNotEligible
		}
		return models.Rating{}, fmt.Errorf("insert rating: %w", err)
	}
	return rating, nil
}

func (s *PGStore) GetRating(ctx context.Context, id uuid.UUID) (models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE id=$1`
	rating, err := scanRating(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Rating{}, market.ErrNotFound
		}
		return models.Rating{}, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}

func (s *PGStore) SetRatingModerated(ctx context.Context, id uuid.UUID, moderated bool) (models.Rating, error) {
	query := `
		UPDATE ratings SET moderated=$2
		WHERE id=$1
		RETURNING ` + ratingColumns
	rating, err := scanRating(s.db.QueryRowContext(ctx, query, id, moderated))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Rating{}, market.ErrNotFound
		}
		return models.Rating{}, fmt.Errorf("set rating moderated: %w", err)
	}
	return rating, nil
}

func (s *PGStore) ReportRating(ctx context.Context, id uuid.UUID, reason string) (models.Rating, error) {
	query := `
		UPDATE ratings SET reported=TRUE, report_reason=$2
		WHERE id=$1
		RETURNING ` + ratingColumns
	rating, err := scanRating(s.db.QueryRowContext(ctx, query, id, reason))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Rating{}, market.ErrNotFound
		}
		return models.Rating{}, fmt.Errorf("report rating: %w", err)
	}
	return rating, nil
}

func (s *PGStore) ListAgentRatings(ctx context.Context, agentID uuid.UUID) ([]models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE agent_id=$1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var out []models.Rating
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return out, nil
}

func (s *PGStore) EnsureRoyaltyConfig(ctx context.Context, defaults models.RoyaltyConfig) (models.RoyaltyConfig, error) {
	insert := `
		INSERT INTO royalty_config (id, creator_share, platform_share, treasury_share, platform_account, treasury_account, paused, schema_version)
		VALUES (1,$1,$2,$3,$4,$5,FALSE,$6)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert,
		defaults.CreatorShare, defaults.PlatformShare, defaults.TreasuryShare,
		defaults.PlatformAccount, defaults.TreasuryAccount, models.SchemaVersion); err != nil {
		return models.RoyaltyConfig{}, fmt.Errorf("ensure royalty config: %w", err)
	}
	return s.GetRoyaltyConfig(ctx)
}

func (s *PGStore) GetRoyaltyConfig(ctx context.Context) (models.RoyaltyConfig, error) {
	query := `SELECT ` + configColumns + ` FROM royalty_config WHERE id=1`
	cfg, err := scanConfig(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoyaltyConfig{}, market.ErrNotFound
		}
		return models.RoyaltyConfig{}, fmt.Errorf("get royalty config: %w", err)
	}
	return cfg, nil
}

func (s *PGStore) UpdateRoyaltyShares(ctx context.Context, creator, platform, treasury int) (models.RoyaltyConfig, error) {
	query := `
		UPDATE royalty_config SET creator_share=$1, platform_share=$2, treasury_share=$3, updated_at=NOW()
		WHERE id=1
		RETURNING ` + configColumns
	cfg, err := scanConfig(s.db.QueryRowContext(ctx, query, creator, platform, treasury))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoyaltyConfig{}, market.ErrNotFound
		}
		return models.RoyaltyConfig{}, fmt.Errorf("update royalty shares: %w", err)
	}
	return cfg, nil
}

func (s *PGStore) SetPaused(ctx context.Context, paused bool) (models.RoyaltyConfig, error) {
	query := `
		UPDATE royalty_config SET paused=$1, updated_at=NOW()
		WHERE id=1
		RETURNING ` + configColumns
	cfg, err := scanConfig(s.db.QueryRowContext(ctx, query, paused))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoyaltyConfig{}, market.ErrNotFound
		}
		return models.RoyaltyConfig{}, fmt.Errorf("set paused: %w", err)
	}
	return cfg, nil
}

func (s *PGStore) GetDistributionByRequest(ctx context.Context, requestID uuid.UUID) (models.Distribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM distributions WHERE request_id=$1`
	dist, err := scanDistribution(s.db.QueryRowContext(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Distribution{}, market.ErrNotFound
		}
		return models.Distribution{}, fmt.Errorf("get distribution: %w", err)
	}
	return dist, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
