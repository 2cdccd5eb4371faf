package store

import (
	"context"
	"fmt"
)

// Schema is the full DDL for the coordination service. Statements are
// idempotent so EnsureSchema can run at every startup. Rows carry a
// schema_version column; additive changes bump models.SchemaVersion and old
// rows stay readable without a coordinated migration.
const Schema = `
CREATE TABLE IF NOT EXISTS agents (
	id             UUID PRIMARY KEY,
	creator        TEXT NOT NULL,
	metadata_uri   TEXT NOT NULL,
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	schema_version INT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS agents_active_creator_uri
	ON agents (creator, metadata_uri) WHERE active;

CREATE TABLE IF NOT EXISTS accounts (
	owner          TEXT PRIMARY KEY,
	balance        BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	schema_version INT NOT NULL DEFAULT 1,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS escrow_requests (
	id             UUID PRIMARY KEY,
	agent_id       UUID NOT NULL REFERENCES agents(id),
	payer          TEXT NOT NULL,
	amount         BIGINT NOT NULL CHECK (amount > 0),
	state          TEXT NOT NULL,
	result_ref     TEXT NOT NULL DEFAULT '',
	dispute_reason TEXT NOT NULL DEFAULT '',
	creator_share  INT NOT NULL,
	platform_share INT NOT NULL,
	treasury_share INT NOT NULL,
	schema_version INT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS escrow_requests_agent ON escrow_requests (agent_id);
CREATE INDEX IF NOT EXISTS escrow_requests_state ON escrow_requests (state);

CREATE TABLE IF NOT EXISTS ratings (
	id             UUID PRIMARY KEY,
	agent_id       UUID NOT NULL REFERENCES agents(id),
	request_id     UUID NOT NULL UNIQUE REFERENCES escrow_requests(id),
	rater          TEXT NOT NULL,
	stars          INT NOT NULL CHECK (stars BETWEEN 1 AND 5),
	quality        INT NOT NULL CHECK (quality BETWEEN 1 AND 5),
	speed          INT NOT NULL CHECK (speed BETWEEN 1 AND 5),
	value          INT NOT NULL CHECK (value BETWEEN 1 AND 5),
	moderated      BOOLEAN NOT NULL DEFAULT FALSE,
	reported       BOOLEAN NOT NULL DEFAULT FALSE,
	report_reason  TEXT NOT NULL DEFAULT '',
	schema_version INT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ratings_agent ON ratings (agent_id);

CREATE TABLE IF NOT EXISTS distributions (
	id              UUID PRIMARY KEY,
	request_id      UUID NOT NULL UNIQUE REFERENCES escrow_requests(id),
	creator         TEXT NOT NULL,
	total           BIGINT NOT NULL,
	creator_amount  BIGINT NOT NULL,
	platform_amount BIGINT NOT NULL,
	treasury_amount BIGINT NOT NULL,
	schema_version  INT NOT NULL DEFAULT 1,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (creator_amount + platform_amount + treasury_amount = total)
);

CREATE TABLE IF NOT EXISTS royalty_config (
	id                INT PRIMARY KEY CHECK (id = 1),
	creator_share     INT NOT NULL,
	platform_share    INT NOT NULL,
	treasury_share    INT NOT NULL,
	platform_account  TEXT NOT NULL,
	treasury_account  TEXT NOT NULL,
	paused            BOOLEAN NOT NULL DEFAULT FALSE,
	total_distributed BIGINT NOT NULL DEFAULT 0,
	total_payouts     BIGINT NOT NULL DEFAULT 0,
	schema_version    INT NOT NULL DEFAULT 1,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (creator_share + platform_share + treasury_share = 100)
);
`

// EnsureSchema applies the DDL. Safe to call on every startup.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
