package persistence

import (
	"context"
	"fmt"
)

// MutationKind names the gateway operation a Mutation replays.
type MutationKind string

const (
	MutationUpsertLobby  MutationKind = "upsert_lobby"
	MutationUpsertPlayer MutationKind = "upsert_player"
)

// Mutation is a queued gateway call. It is what the write-behind writer buffers
// and what the Redis outbox serializes.
type Mutation struct {
	Kind   MutationKind  `json:"kind"`
	Lobby  *LobbyRecord  `json:"lobby,omitempty"`
	Player *PlayerRecord `json:"player,omitempty"`
}

// Apply replays the mutation against gw.
func (m Mutation) Apply(ctx context.Context, gw Gateway) error {
	switch m.Kind {
	case MutationUpsertLobby:
		if m.Lobby == nil {
			return fmt.Errorf("mutation %s: missing lobby", m.Kind)
		}
		return gw.UpsertLobby(ctx, *m.Lobby)
	case MutationUpsertPlayer:
		if m.Player == nil {
			return fmt.Errorf("mutation %s: missing player", m.Kind)
		}
		return gw.UpsertPlayer(ctx, *m.Player)
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}
