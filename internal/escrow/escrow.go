// Package escrow is the central state machine. It is the only component with
// write access to fund-bearing state: the registry, distributor and
// reputation ledger are consulted through their own interfaces and never
// touch escrow rows directly.
//
// State machine:
//
//	Open → ResultSubmitted → Approved                      (terminal)
//	       ResultSubmitted → Disputed → ResolvedApproved   (terminal)
//	                                  → ResolvedRefunded   (terminal)
//	Open → Cancelled                                       (terminal)
//
// Transitions are strictly forward. Every transition re-validates the current
// state inside the settlement transaction, so of two racing calls exactly one
// wins and the other observes ErrInvalidState.
package escrow

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/iamaanahmad/agentmarket/internal/events"
	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/models"
	"github.com/iamaanahmad/agentmarket/internal/royalty"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

// ResolveOutcome is the authority's verdict on a disputed request.
type ResolveOutcome string

const (
	OutcomeApprove ResolveOutcome = "approve"
	OutcomeRefund  ResolveOutcome = "refund"
)

type Coordinator struct {
	store       store.Store
	distributor *royalty.Distributor
	emitter     events.Emitter

	// openSubmitter relaxes the submit_result policy: by default only the
	// hired agent's creator may submit, with the flag any authenticated
	// caller may.
	openSubmitter bool
}

func New(st store.Store, dist *royalty.Distributor, emitter events.Emitter, openSubmitter bool) *Coordinator {
	return &Coordinator{
		store:         st,
		distributor:   dist,
		emitter:       emitter,
		openSubmitter: openSubmitter,
	}
}

// OpenRequest locks amount from the payer's account and creates the request
// in Open. The configured royalty split is captured onto the request here, so
// later configuration changes never retroactively affect it.
func (c *Coordinator) OpenRequest(ctx context.Context, payer string, agentID uuid.UUID, amount int64) (models.EscrowRequest, error) {
	if amount <= 0 {
		return models.EscrowRequest{}, market.ErrInvalidAmount
	}
	agent, err := c.store.GetAgent(ctx, agentID)
	if err != nil {
		return models.EscrowRequest{}, err
	}
	if !agent.Active {
		return models.EscrowRequest{}, market.ErrAgentInactive
	}
	split, err := c.distributor.CurrentSplit(ctx)
	if err != nil {
		return models.EscrowRequest{}, err
	}

	req, err := c.store.CreateRequest(ctx, store.RequestInput{
		AgentID:       agentID,
		Payer:         payer,
		Amount:        amount,
		CreatorShare:  split.Creator,
		PlatformShare: split.Platform,
		TreasuryShare: split.Treasury,
	})
	if err != nil {
		return models.EscrowRequest{}, err
	}
	c.emit(ctx, events.New(events.TypeRequestOpened, req.ID.String(), req))
	return req, nil
}

func (c *Coordinator) GetRequest(ctx context.Context, id uuid.UUID) (models.EscrowRequest, error) {
	return c.store.GetRequest(ctx, id)
}

// SubmitResult records the opaque result reference and advances Open →
// ResultSubmitted. The core never inspects the result content.
func (c *Coordinator) SubmitResult(ctx context.Context, caller string, id uuid.UUID, resultRef string) (models.EscrowRequest, error) {
	if resultRef == "" {
		return models.EscrowRequest{}, fmt.Errorf("resultRef required")
	}
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return models.EscrowRequest{}, err
	}
	if !c.openSubmitter {
		agent, err := c.store.GetAgent(ctx, req.AgentID)
		if err != nil {
			return models.EscrowRequest{}, err
		}
		if agent.Creator != caller {
			return models.EscrowRequest{}, market.ErrUnauthorized
		}
	}
	updated, err := c.store.SubmitResult(ctx, id, resultRef)
	if err != nil {
		return models.EscrowRequest{}, err
	}
	c.emit(ctx, events.New(events.TypeResultSubmitted, id.String(), updated))
	return updated, nil
}

// Approve finalizes a submitted result. Only the payer may call it. The state
// flip, the three-way credit and the distribution record are committed as one
// transaction; "approved but undistributed" is never observable.
func (c *Coordinator) Approve(ctx context.Context, caller string, id uuid.UUID) (models.EscrowRequest, models.Distribution, error) {
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}
	if req.Payer != caller {
		return models.EscrowRequest{}, models.Distribution{}, market.ErrUnauthorized
	}
	updated, dist, err := c.settleFrom(ctx, id, models.StateResultSubmitted, models.StateApproved)
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}
	c.emit(ctx, events.New(events.TypeApproved, id.String(), updated))
	return updated, dist, nil
}

// Dispute halts distribution and flags the request for manual resolution.
// Only the payer may call it, and only from ResultSubmitted.
func (c *Coordinator) Dispute(ctx context.Context, caller string, id uuid.UUID, reason string) (models.EscrowRequest, error) {
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return models.EscrowRequest{}, err
	}
	if req.Payer != caller {
		return models.EscrowRequest{}, market.ErrUnauthorized
	}
	updated, err := c.store.DisputeRequest(ctx, id, reason)
	if err != nil {
		return models.EscrowRequest{}, err
	}
	c.emit(ctx, events.New(events.TypeDisputed, id.String(), updated))
	return updated, nil
}

// Resolve is the authority-gated escape hatch for disputed requests. Approve
// distributes per the captured split; Refund returns the full locked amount
// to the payer and the distributor is never invoked. Authorization is checked
// at the HTTP layer.
func (c *Coordinator) Resolve(ctx context.Context, id uuid.UUID, outcome ResolveOutcome) (models.EscrowRequest, error) {
	switch outcome {
	case OutcomeApprove:
		req, _, err := c.settleFrom(ctx, id, models.StateDisputed, models.StateResolvedApproved)
		if err != nil {
			return models.EscrowRequest{}, err
		}
		c.emit(ctx, events.New(events.TypeDisputeResolved, id.String(), req))
		return req, nil
	case OutcomeRefund:
		req, err := c.store.RefundRequest(ctx, id, models.StateDisputed, models.StateResolvedRefunded)
		if err != nil {
			return models.EscrowRequest{}, err
		}
		c.emit(ctx, events.New(events.TypeDisputeResolved, id.String(), req))
		return req, nil
	default:
		return models.EscrowRequest{}, market.ErrInvalidState
	}
}

// Cancel refunds an Open request before any result was submitted. Only the
// payer may call it.
func (c *Coordinator) Cancel(ctx context.Context, caller string, id uuid.UUID) (models.EscrowRequest, error) {
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return models.EscrowRequest{}, err
	}
	if req.Payer != caller {
		return models.EscrowRequest{}, market.ErrUnauthorized
	}
	updated, err := c.store.RefundRequest(ctx, id, models.StateOpen, models.StateCancelled)
	if err != nil {
		return models.EscrowRequest{}, err
	}
	c.emit(ctx, events.New(events.TypeCancelled, id.String(), updated))
	return updated, nil
}

func (c *Coordinator) settleFrom(ctx context.Context, id uuid.UUID, from, to models.RequestState) (models.EscrowRequest, models.Distribution, error) {
	req, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}
	if req.State != from {
		return models.EscrowRequest{}, models.Distribution{}, market.ErrInvalidState
	}
	agent, err := c.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}
	breakdown, err := c.distributor.Quote(ctx, req, agent.Creator)
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}

	updated, dist, err := c.store.SettleRequest(ctx, store.SettleInput{
		RequestID:       id,
		From:            from,
		To:              to,
		Creator:         breakdown.Creator,
		CreatorAmount:   breakdown.CreatorAmount,
		PlatformAmount:  breakdown.PlatformAmount,
		TreasuryAmount:  breakdown.TreasuryAmount,
		PlatformAccount: breakdown.PlatformAccount,
		TreasuryAccount: breakdown.TreasuryAccount,
	})
	if err != nil {
		return models.EscrowRequest{}, models.Distribution{}, err
	}
	c.emit(ctx, events.New(events.TypeDistributed, id.String(), dist))
	return updated, dist, nil
}

func (c *Coordinator) emit(ctx context.Context, ev events.Event) {
	if err := c.emitter.Emit(ctx, ev); err != nil {
		log.Printf("[escrow] emit %s: %v", ev.Type, err)
	}
}
