// Package reconcile sweeps for approved-but-undistributed requests. With the
// transactional settlement path this state should never exist; if it does,
// something outside the service mutated the ledger and automated processing
// must stop for that request. The sweep therefore only surfaces findings; it
// never retries a distribution, which could double-disburse.
package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/iamaanahmad/agentmarket/internal/events"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

type Config struct {
	// Interval between sweeps. Defaults to 1m.
	Interval time.Duration

	// BatchSize caps how many stuck requests one sweep reports.
	BatchSize int
}

type Sweeper struct {
	store   store.Store
	emitter events.Emitter
	cfg     Config
}

func New(st store.Store, emitter events.Emitter, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Sweeper{store: st, emitter: emitter, cfg: cfg}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				log.Printf("[reconcile] sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("[reconcile] %d approved request(s) without a distribution record", n)
			}
		}
	}
}

// SweepOnce reports every approved request lacking a distribution record and
// returns how many were found.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	stuck, err := s.store.ListApprovedWithoutDistribution(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, req := range stuck {
		ev := events.New(events.TypeReconcileAlert, req.ID.String(), map[string]interface{}{
			"requestId": req.ID,
			"state":     req.State,
			"amount":    req.Amount,
		})
		if err := s.emitter.Emit(ctx, ev); err != nil {
			log.Printf("[reconcile] emit alert for %s: %v", req.ID, err)
		}
	}
	return len(stuck), nil
}
