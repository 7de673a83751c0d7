// internal/lobby/lobby.go
package lobby

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sketchlobby/internal/models"
	"github.com/jason-s-yu/sketchlobby/internal/persistence"
	"golang.org/x/text/cases"
)

// MaxDisplayNameLength matches the width of the durable display_name column.
const MaxDisplayNameLength = 64

// Player is one participant of a lobby. DisplayName identifies the player
// within the lobby, compared with Unicode case folding.
type Player struct {
	ID          uuid.UUID   `json:"id"`
	DisplayName string      `json:"displayName"`
	IconID      int         `json:"iconId"`
	Role        models.Role `json:"role"`

	// ConnectionID is the live transport session of the player; empty means
	// the player is not currently connected.
	ConnectionID string `json:"connectionId,omitempty"`
}

// Lobby is a snapshot of a session. Values returned by the Store are copies;
// changing them never affects the store.
type Lobby struct {
	ID               uuid.UUID    `json:"id"`
	Code             string       `json:"code"`
	Phase            models.Phase `json:"phase"`
	Players          []Player     `json:"players"`
	SelectedImageID  string       `json:"selectedImageId,omitempty"`
	SelectedImageURL string       `json:"selectedImageUrl,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// PlayerNames lists display names in join order.
func (l Lobby) PlayerNames() []string {
	names := make([]string, len(l.Players))
	for i, p := range l.Players {
		names[i] = p.DisplayName
	}
	return names
}

// FindPlayer looks a player up by display name, ignoring case.
func (l Lobby) FindPlayer(displayName string) (Player, bool) {
	key := displayKey(displayName)
	for _, p := range l.Players {
		if displayKey(p.DisplayName) == key {
			return p, true
		}
	}
	return Player{}, false
}

// session is the live lobby owned by the store. mu serializes every mutation
// of this lobby; unrelated lobbies never share a lock.
type session struct {
	mu    sync.Mutex
	lobby Lobby
	byKey map[string]int // folded display name -> index into lobby.Players
}

func newSession(code string, now time.Time) *session {
	return &session{
		lobby: Lobby{
			ID:        uuid.New(),
			Code:      code,
			Phase:     models.PhaseWaiting,
			Players:   []Player{},
			CreatedAt: now,
		},
		byKey: make(map[string]int),
	}
}

// snapshot copies the lobby. Caller holds mu.
func (s *session) snapshot() Lobby {
	out := s.lobby
	out.Players = make([]Player, len(s.lobby.Players))
	copy(out.Players, s.lobby.Players)
	return out
}

// upsertMode selects which fields an update overwrites.
type upsertMode int

const (
	// overwrite icon, role and connection (explicit player payload)
	upsertFull upsertMode = iota
	// overwrite icon and connection only (transport join)
	upsertConnection
)

// upsert inserts in or merges it into the existing record with the same
// display key, returning the stored player and the connection id it replaced.
// Caller holds mu.
func (s *session) upsert(in Player, mode upsertMode) (stored *Player, previousConn string) {
	key := displayKey(in.DisplayName)
	if idx, ok := s.byKey[key]; ok {
		p := &s.lobby.Players[idx]
		previousConn = p.ConnectionID
		p.IconID = in.IconID
		p.ConnectionID = in.ConnectionID
		if mode == upsertFull {
			p.Role = in.Role
		}
		return p, previousConn
	}

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if mode == upsertConnection {
		in.Role = models.RoleNone
	}
	s.lobby.Players = append(s.lobby.Players, in)
	s.byKey[key] = len(s.lobby.Players) - 1
	return &s.lobby.Players[len(s.lobby.Players)-1], ""
}

// player returns the live record for key. Caller holds mu.
func (s *session) player(key string) (*Player, bool) {
	idx, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	return &s.lobby.Players[idx], true
}

// displayKey folds a display name into its identity key. A Caser is not safe
// for concurrent use, so one is built per call.
func displayKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func normalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}

func lobbyRecord(l *Lobby) persistence.LobbyRecord {
	return persistence.LobbyRecord{
		ID:               l.ID,
		Code:             l.Code,
		Phase:            string(l.Phase),
		SelectedImageID:  l.SelectedImageID,
		SelectedImageURL: l.SelectedImageURL,
		CreatedAt:        l.CreatedAt,
	}
}

func playerRecord(lobbyID uuid.UUID, p *Player) persistence.PlayerRecord {
	return persistence.PlayerRecord{
		ID:           p.ID,
		LobbyID:      lobbyID,
		DisplayName:  p.DisplayName,
		DisplayKey:   displayKey(p.DisplayName),
		IconID:       p.IconID,
		Role:         p.Role.String(),
		ConnectionID: p.ConnectionID,
	}
}
