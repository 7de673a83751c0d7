// Package persistence defines the durable mirror of lobby state. The in-memory
// lobby store is authoritative; everything behind a Gateway is best-effort.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by a Reader when no durable record exists.
var ErrNotFound = errors.New("persistence: record not found")

// LobbyRecord is the durable shape of a lobby.
type LobbyRecord struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	Phase            string    `json:"phase"`
	SelectedImageID  string    `json:"selected_image_id,omitempty"`
	SelectedImageURL string    `json:"selected_image_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// PlayerRecord is the durable shape of a player. DisplayKey is the case-folded
// display name and, together with LobbyID, the upsert key.
type PlayerRecord struct {
	ID           uuid.UUID `json:"id"`
	LobbyID      uuid.UUID `json:"lobby_id"`
	DisplayName  string    `json:"display_name"`
	DisplayKey   string    `json:"display_key"`
	IconID       int       `json:"icon_id"`
	Role         string    `json:"role"`
	ConnectionID string    `json:"connection_id,omitempty"`
}

// Gateway receives every lobby mutation. Both operations must be idempotent
// under retry.
type Gateway interface {
	UpsertLobby(ctx context.Context, lobby LobbyRecord) error
	UpsertPlayer(ctx context.Context, player PlayerRecord) error
}

// Reader reads back what a Gateway wrote, for verification and tooling.
type Reader interface {
	LoadLobby(ctx context.Context, code string) (LobbyRecord, []PlayerRecord, error)
}

// Nop is a Gateway that discards every write. Used when no durable store is configured.
type Nop struct{}

func (Nop) UpsertLobby(context.Context, LobbyRecord) error   { return nil }
func (Nop) UpsertPlayer(context.Context, PlayerRecord) error { return nil }
