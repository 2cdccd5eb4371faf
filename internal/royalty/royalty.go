// Package royalty computes and guards the three-way split of escrowed funds.
// The split configuration is a singleton record owned by the platform
// authority; a pause switch makes distribution fail closed.
package royalty

import (
	"context"
	"errors"
	"log"

	"github.com/iamaanahmad/agentmarket/internal/events"
	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/models"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

// Split is a percentage partition of a locked amount.
type Split struct {
	Creator  int
	Platform int
	Treasury int
}

// Validate rejects splits that do not partition exactly 100%.
func (s Split) Validate() error {
	if s.Creator < 0 || s.Platform < 0 || s.Treasury < 0 {
		return market.ErrInvalidSplit
	}
	if s.Creator+s.Platform+s.Treasury != 100 {
		return market.ErrInvalidSplit
	}
	return nil
}

// Breakdown is a fully computed disbursement for one request. The three
// amounts always sum exactly to the total: creator and platform shares are
// rounded down and the treasury takes the remainder.
type Breakdown struct {
	Creator         string
	CreatorAmount   int64
	PlatformAmount  int64
	TreasuryAmount  int64
	PlatformAccount string
	TreasuryAccount string
}

// Compute splits amount per the shares. Integer floor division for creator and
// platform; remainder to treasury, so conservation is exact.
func Compute(amount int64, s Split) (creator, platform, treasury int64) {
	creator = amount * int64(s.Creator) / 100
	platform = amount * int64(s.Platform) / 100
	treasury = amount - creator - platform
	return creator, platform, treasury
}

type Distributor struct {
	store   store.Store
	emitter events.Emitter
}

func New(st store.Store, emitter events.Emitter) *Distributor {
	return &Distributor{store: st, emitter: emitter}
}

// CurrentSplit returns the configured platform split. The escrow coordinator
// captures it at open time, so later configuration changes never affect
// already-open requests.
func (d *Distributor) CurrentSplit(ctx context.Context) (Split, error) {
	cfg, err := d.store.GetRoyaltyConfig(ctx)
	if err != nil {
		return Split{}, err
	}
	split := Split{Creator: cfg.CreatorShare, Platform: cfg.PlatformShare, Treasury: cfg.TreasuryShare}
	if err := split.Validate(); err != nil {
		return Split{}, err
	}
	return split, nil
}

// Quote validates that a distribution for req may proceed and computes the
// breakdown. Fails with ErrPaused while the emergency stop is engaged, with
// ErrInvalidSplit if the captured shares are malformed, and with
// ErrAlreadyDistributed if a distribution for the request already exists
// (defense in depth; the settlement transaction enforces the same uniqueness).
// No funds move here.
func (d *Distributor) Quote(ctx context.Context, req models.EscrowRequest, creator string) (Breakdown, error) {
	cfg, err := d.store.GetRoyaltyConfig(ctx)
	if err != nil {
		return Breakdown{}, err
	}
	if cfg.Paused {
		return Breakdown{}, market.ErrPaused
	}
	split := Split{Creator: req.CreatorShare, Platform: req.PlatformShare, Treasury: req.TreasuryShare}
	if err := split.Validate(); err != nil {
		return Breakdown{}, err
	}
	if _, err := d.store.GetDistributionByRequest(ctx, req.ID); err == nil {
		return Breakdown{}, market.ErrAlreadyDistributed
	} else if !errors.Is(err, market.ErrNotFound) {
		return Breakdown{}, err
	}

	creatorAmt, platformAmt, treasuryAmt := Compute(req.Amount, split)
	return Breakdown{
		Creator:         creator,
		CreatorAmount:   creatorAmt,
		PlatformAmount:  platformAmt,
		TreasuryAmount:  treasuryAmt,
		PlatformAccount: cfg.PlatformAccount,
		TreasuryAccount: cfg.TreasuryAccount,
	}, nil
}

// WithdrawPlatformFees moves accumulated platform balance out to the
// authority-controlled destination. Caller authorization is checked at the
// HTTP layer.
func (d *Distributor) WithdrawPlatformFees(ctx context.Context, amount int64) (models.Account, error) {
	if amount <= 0 {
		return models.Account{}, market.ErrInvalidAmount
	}
	cfg, err := d.store.GetRoyaltyConfig(ctx)
	if err != nil {
		return models.Account{}, err
	}
	acct, err := d.store.Withdraw(ctx, cfg.PlatformAccount, amount)
	if err != nil {
		return models.Account{}, err
	}
	d.emit(ctx, events.New(events.TypePlatformFeesWithdrawn, cfg.PlatformAccount, map[string]interface{}{
		"amount":  amount,
		"balance": acct.Balance,
	}))
	return acct, nil
}

// UpdateSplit replaces the configured shares. Caller authorization is checked
// at the HTTP layer. Open requests keep the shares captured at their open
// time; only requests opened after the update see the new partition.
func (d *Distributor) UpdateSplit(ctx context.Context, s Split) (models.RoyaltyConfig, error) {
	if err := s.Validate(); err != nil {
		return models.RoyaltyConfig{}, err
	}
	cfg, err := d.store.UpdateRoyaltyShares(ctx, s.Creator, s.Platform, s.Treasury)
	if err != nil {
		return models.RoyaltyConfig{}, err
	}
	d.emit(ctx, events.New(events.TypeConfigUpdated, "royalty-config", map[string]interface{}{
		"creatorShare":  s.Creator,
		"platformShare": s.Platform,
		"treasuryShare": s.Treasury,
	}))
	return cfg, nil
}

// SetPaused flips the emergency stop.
func (d *Distributor) SetPaused(ctx context.Context, paused bool) (models.RoyaltyConfig, error) {
	cfg, err := d.store.SetPaused(ctx, paused)
	if err != nil {
		return models.RoyaltyConfig{}, err
	}
	d.emit(ctx, events.New(events.TypePauseChanged, "royalty-config", map[string]interface{}{
		"paused": paused,
	}))
	return cfg, nil
}

// Stats reports cumulative distribution totals.
func (d *Distributor) Stats(ctx context.Context) (models.RoyaltyConfig, error) {
	return d.store.GetRoyaltyConfig(ctx)
}

func (d *Distributor) emit(ctx context.Context, ev events.Event) {
	if err := d.emitter.Emit(ctx, ev); err != nil {
		log.Printf("[royalty] emit %s: %v", ev.Type, err)
	}
}
