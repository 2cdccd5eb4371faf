// Package reputation accumulates rating submissions per agent and exposes a
// weighted aggregate. The aggregate is always recomputable from the
// non-moderated rating set; the TTL cache in front of it is never
// authoritative.
package reputation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/iamaanahmad/agentmarket/internal/events"
	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/models"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

const aggregateCacheTTL = 30 * time.Second

type Ledger struct {
	store   store.Store
	emitter events.Emitter
	cache   *gocache.Cache
}

func New(st store.Store, emitter events.Emitter) *Ledger {
	return &Ledger{
		store:   st,
		emitter: emitter,
		cache:   gocache.New(aggregateCacheTTL, 2*aggregateCacheTTL),
	}
}

// SubmitRating appends a rating. The rater must be the payer of the request,
// the request must reference the rated agent and sit in an approved terminal
// state, and each request carries exactly one rating entitlement; anything
// else fails with ErrNotEligible. Scores are 1..5.
func (l *Ledger) SubmitRating(ctx context.Context, rater string, requestID uuid.UUID, stars, quality, speed, value int) (models.Rating, error) {
	for _, v := range []int{stars, quality, speed, value} {
		if v < 1 || v > 5 {
			return models.Rating{}, market.ErrInvalidRating
		}
	}
	req, err := l.store.GetRequest(ctx, requestID)
	if err != nil {
		return models.Rating{}, err
	}
	if req.Payer != rater || !req.State.ApprovedTerminal() {
		return models.Rating{}, market.ErrNotEligible
	}

	rating, err := l.store.CreateRating(ctx, store.RatingInput{
		AgentID:   req.AgentID,
		RequestID: requestID,
		Rater:     rater,
		Stars:     stars,
		Quality:   quality,
		Speed:     speed,
		Value:     value,
	})
	if err != nil {
		return models.Rating{}, err
	}
	l.cache.Delete(req.AgentID.String())
	l.emit(ctx, events.New(events.TypeRatingSubmitted, req.AgentID.String(), rating))
	return rating, nil
}

// Report flags a rating for moderation review. Any authenticated caller may
// report; the rating keeps its full weight until an authority moderates it.
func (l *Ledger) Report(ctx context.Context, reporter string, ratingID uuid.UUID, reason string) (models.Rating, error) {
	if reason == "" {
		return models.Rating{}, fmt.Errorf("reason required")
	}
	rating, err := l.store.ReportRating(ctx, ratingID, reason)
	if err != nil {
		return models.Rating{}, err
	}
	l.emit(ctx, events.New(events.TypeRatingReported, rating.AgentID.String(), map[string]interface{}{
		"ratingId": rating.ID,
		"reporter": reporter,
		"reason":   reason,
	}))
	return rating, nil
}

// Moderate hides or unhides a rating from aggregation. The record itself is
// never removed.
func (l *Ledger) Moderate(ctx context.Context, ratingID uuid.UUID, hide bool) (models.Rating, error) {
	rating, err := l.store.SetRatingModerated(ctx, ratingID, hide)
	if err != nil {
		return models.Rating{}, err
	}
	l.cache.Delete(rating.AgentID.String())
	l.emit(ctx, events.New(events.TypeRatingModerated, rating.AgentID.String(), rating))
	return rating, nil
}

// GetAggregate returns the agent's aggregate score. An agent with no eligible
// ratings yields the explicit zero aggregate, not an error.
func (l *Ledger) GetAggregate(ctx context.Context, agentID uuid.UUID) (models.Aggregate, error) {
	if cached, ok := l.cache.Get(agentID.String()); ok {
		return cached.(models.Aggregate), nil
	}
	ratings, err := l.store.ListAgentRatings(ctx, agentID)
	if err != nil {
		return models.Aggregate{}, err
	}
	agg := Aggregate(agentID, ratings)
	l.cache.SetDefault(agentID.String(), agg)
	return agg, nil
}

// Aggregate recomputes the aggregate deterministically from the non-moderated
// rating set: an unweighted mean in centi-stars (450 == 4.50). Exported so
// tests can assert the derivation directly.
func Aggregate(agentID uuid.UUID, ratings []models.Rating) models.Aggregate {
	agg := models.Aggregate{AgentID: agentID}
	var stars, quality, speed, value int64
	for _, r := range ratings {
		if r.Moderated {
			continue
		}
		stars += int64(r.Stars)
		quality += int64(r.Quality)
		speed += int64(r.Speed)
		value += int64(r.Value)
		agg.Count++
	}
	if agg.Count == 0 {
		return agg
	}
	agg.Score = stars * 100 / agg.Count
	agg.Quality = quality * 100 / agg.Count
	agg.Speed = speed * 100 / agg.Count
	agg.Value = value * 100 / agg.Count
	return agg
}

func (l *Ledger) emit(ctx context.Context, ev events.Event) {
	if err := l.emitter.Emit(ctx, ev); err != nil {
		log.Printf("[reputation] emit %s: %v", ev.Type, err)
	}
}
