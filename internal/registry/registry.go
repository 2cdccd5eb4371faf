// Package registry maps creators to registered agent identities. Identities
// are never deleted, only deactivated, so historical escrow references stay
// valid.
package registry

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/iamaanahmad/agentmarket/internal/events"
	"github.com/iamaanahmad/agentmarket/internal/market"
	"github.com/iamaanahmad/agentmarket/internal/models"
	"github.com/iamaanahmad/agentmarket/internal/store"
)

const maxMetadataURILen = 200

type Registry struct {
	store   store.Store
	emitter events.Emitter
}

func New(st store.Store, emitter events.Emitter) *Registry {
	return &Registry{store: st, emitter: emitter}
}

// Register creates a new agent identity owned by creator. A creator may hold
// many agents, but an active duplicate of the same creator+metadataURI pair
// fails with ErrDuplicateRegistration.
func (r *Registry) Register(ctx context.Context, creator, metadataURI string) (models.Agent, error) {
	if creator == "" {
		return models.Agent{}, fmt.Errorf("creator required")
	}
	if metadataURI == "" {
		return models.Agent{}, fmt.Errorf("metadataUri required")
	}
	if len(metadataURI) > maxMetadataURILen {
		return models.Agent{}, fmt.Errorf("metadataUri too long (max %d characters)", maxMetadataURILen)
	}
	agent, err := r.store.CreateAgent(ctx, store.AgentInput{Creator: creator, MetadataURI: metadataURI})
	if err != nil {
		return models.Agent{}, err
	}
	r.emit(ctx, events.New(events.TypeAgentRegistered, agent.ID.String(), agent))
	return agent, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (models.Agent, error) {
	return r.store.GetAgent(ctx, id)
}

// UpdateMetadata changes the off-chain metadata pointer. Only the creator may
// call it.
func (r *Registry) UpdateMetadata(ctx context.Context, caller string, id uuid.UUID, uri string) (models.Agent, error) {
	if uri == "" || len(uri) > maxMetadataURILen {
		return models.Agent{}, fmt.Errorf("metadataUri required (max %d characters)", maxMetadataURILen)
	}
	agent, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return models.Agent{}, err
	}
	if agent.Creator != caller {
		return models.Agent{}, market.ErrUnauthorized
	}
	updated, err := r.store.UpdateAgentMetadata(ctx, id, uri)
	if err != nil {
		return models.Agent{}, err
	}
	r.emit(ctx, events.New(events.TypeAgentUpdated, id.String(), updated))
	return updated, nil
}

// Deactivate retires an agent. The creator or the platform authority may call
// it. Open requests against the agent are unaffected and must still resolve;
// only new requests are refused. There is no reactivation.
func (r *Registry) Deactivate(ctx context.Context, caller string, authority bool, id uuid.UUID) (models.Agent, error) {
	agent, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return models.Agent{}, err
	}
	if agent.Creator != caller && !authority {
		return models.Agent{}, market.ErrUnauthorized
	}
	if !agent.Active {
		return agent, nil
	}
	updated, err := r.store.SetAgentActive(ctx, id, false)
	if err != nil {
		return models.Agent{}, err
	}
	r.emit(ctx, events.New(events.TypeAgentDeactivated, id.String(), updated))
	return updated, nil
}

func (r *Registry) emit(ctx context.Context, ev events.Event) {
	if err := r.emitter.Emit(ctx, ev); err != nil {
		log.Printf("[registry] emit %s: %v", ev.Type, err)
	}
}
