package models

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped onto every persisted record so the account/record
// shapes can evolve without a coordinated migration of external callers.
// Readers must tolerate rows written at older versions.
const SchemaVersion = 1

// Agent is a registered identity. The id and creator are immutable; the
// metadata URI points at off-chain descriptive data and may be updated by the
// creator. Agents are never deleted, only deactivated, so historical escrow
// references stay valid.
type Agent struct {
	ID            uuid.UUID `json:"id"`
	Creator       string    `json:"creator"`
	MetadataURI   string    `json:"metadataUri"`
	Active        bool      `json:"active"`
	SchemaVersion int       `json:"schemaVersion"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RequestState is the escrow request lifecycle state.
type RequestState string

const (
	StateOpen             RequestState = "open"
	StateResultSubmitted  RequestState = "result_submitted"
	StateApproved         RequestState = "approved"
	StateDisputed         RequestState = "disputed"
	StateResolvedApproved RequestState = "resolved_approved"
	StateResolvedRefunded RequestState = "resolved_refunded"
	StateCancelled        RequestState = "cancelled"
)

// Terminal reports whether no further transition is legal from s.
func (s RequestState) Terminal() bool {
	switch s {
	case StateApproved, StateResolvedApproved, StateResolvedRefunded, StateCancelled:
		return true
	}
	return false
}

// ApprovedTerminal reports whether s is a terminal state in which the result
// was accepted and funds were distributed. Rating eligibility hangs off this.
func (s RequestState) ApprovedTerminal() bool {
	return s == StateApproved || s == StateResolvedApproved
}

// EscrowRequest is the central fund-bearing entity. Amount is locked at open
// time and immutable; the split shares are captured at open time so later
// royalty config changes never retroactively affect an open request.
type EscrowRequest struct {
	ID            uuid.UUID    `json:"id"`
	AgentID       uuid.UUID    `json:"agentId"`
	Payer         string       `json:"payer"`
	Amount        int64        `json:"amount"`
	State         RequestState `json:"state"`
	ResultRef     string       `json:"resultRef,omitempty"`
	DisputeReason string       `json:"disputeReason,omitempty"`
	CreatorShare  int          `json:"creatorShare"`
	PlatformShare int          `json:"platformShare"`
	TreasuryShare int          `json:"treasuryShare"`
	SchemaVersion int          `json:"schemaVersion"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Rating is one submitted rating. A community report flags a rating for
// review but does not change its weight; moderation hides it from aggregation.
// Neither removes the record.
type Rating struct {
	ID            uuid.UUID `json:"id"`
	AgentID       uuid.UUID `json:"agentId"`
	RequestID     uuid.UUID `json:"requestId"`
	Rater         string    `json:"rater"`
	Stars         int       `json:"stars"`
	Quality       int       `json:"quality"`
	Speed         int       `json:"speed"`
	Value         int       `json:"value"`
	Moderated     bool      `json:"moderated"`
	Reported      bool      `json:"reported"`
	ReportReason  string    `json:"reportReason,omitempty"`
	SchemaVersion int       `json:"schemaVersion"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Aggregate is the derived reputation view for one agent. Scores are
// centi-stars (450 == 4.50) so recomputation is integer-deterministic. It is a
// cache over the non-moderated rating set, never authoritative.
type Aggregate struct {
	AgentID uuid.UUID `json:"agentId"`
	Score   int64     `json:"score"`
	Quality int64     `json:"quality"`
	Speed   int64     `json:"speed"`
	Value   int64     `json:"value"`
	Count   int64     `json:"count"`
}

// Account is a ledger balance for a payer, creator, the platform or the
// treasury.
type Account struct {
	Owner         string    `json:"owner"`
	Balance       int64     `json:"balance"`
	SchemaVersion int       `json:"schemaVersion"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Distribution records the three-way disbursement of one approved request.
// At most one distribution exists per request.
type Distribution struct {
	ID             uuid.UUID `json:"id"`
	RequestID      uuid.UUID `json:"requestId"`
	Creator        string    `json:"creator"`
	Total          int64     `json:"total"`
	CreatorAmount  int64     `json:"creatorAmount"`
	PlatformAmount int64     `json:"platformAmount"`
	TreasuryAmount int64     `json:"treasuryAmount"`
	SchemaVersion  int       `json:"schemaVersion"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RoyaltyConfig is the singleton platform split configuration. Shares must
// partition 100. While Paused is set, distribution calls fail closed.
type RoyaltyConfig struct {
	CreatorShare     int       `json:"creatorShare"`
	PlatformShare    int       `json:"platformShare"`
	TreasuryShare    int       `json:"treasuryShare"`
	PlatformAccount  string    `json:"platformAccount"`
	TreasuryAccount  string    `json:"treasuryAccount"`
	Paused           bool      `json:"paused"`
	TotalDistributed int64     `json:"totalDistributed"`
	TotalPayouts     int64     `json:"totalPayouts"`
	SchemaVersion    int       `json:"schemaVersion"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
