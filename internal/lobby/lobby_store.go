// internal/lobby/lobby_store.go
package lobby

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sketchlobby/internal/models"
	"github.com/jason-s-yu/sketchlobby/internal/persistence"
	"github.com/sirupsen/logrus"
)

// MaxCodeLength matches the width of the durable lobbies.code column.
const MaxCodeLength = 32

// maxCodeAttempts bounds how many generated codes CreateLobby tries before giving up.
const maxCodeAttempts = 16

// ImageProvider is the image library the store binds round images from.
type ImageProvider interface {
	// RandomImage picks any available image. A nil image with a nil error means
	// the library is empty.
	RandomImage() (*models.Image, error)
	// ResolvePath maps an image id to a readable file, or false if it is gone.
	ResolvePath(imageID string) (string, bool)
}

// Store is the authoritative in-memory registry of lobbies. It is safe for
// concurrent use: the registry itself is lock-free for lookups and inserts,
// and each lobby serializes its own mutations.
type Store struct {
	lobbies sync.Map // code -> *session
	conns   sync.Map // connection id -> connRef

	codes   CodeGenerator
	images  ImageProvider
	gateway persistence.Gateway
	log     logrus.FieldLogger
	intn    func(n int) int
	now     func() time.Time
}

// connRef is the back-reference from a transport connection to its player.
type connRef struct {
	code string
	key  string
}

// Option configures a Store.
type Option func(*Store)

// WithCodeGenerator replaces the random code generator.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Store) { s.codes = g }
}

// WithImageProvider sets the image library used for round images.
func WithImageProvider(p ImageProvider) Option {
	return func(s *Store) { s.images = p }
}

// WithGateway sets the durable mirror. Defaults to persistence.Nop.
func WithGateway(g persistence.Gateway) Option {
	return func(s *Store) { s.gateway = g }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithRandom replaces the source used to pick the describer. intn must return
// a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(s *Store) { s.intn = intn }
}

// NewStore initializes an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		codes:   RandomCodeGenerator{},
		images:  emptyLibrary{},
		gateway: persistence.Nop{},
		log:     logrus.StandardLogger(),
		intn:    rand.IntN,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "lobby_store")
	return s
}

// CreateLobby registers a new empty lobby under a freshly generated code.
// A generated code that is already live is never overwritten; a new one is
// drawn instead.
func (s *Store) CreateLobby(ctx context.Context) (Lobby, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.codes.Generate()
		if code == "" {
			continue
		}
		sess := newSession(code, s.now())
		// Held until the lobby is persisted so that concurrent joins on the
		// same code cannot mirror players ahead of their lobby.
		sess.mu.Lock()
		if _, loaded := s.lobbies.LoadOrStore(code, sess); loaded {
			sess.mu.Unlock()
			s.log.WithField("code", code).Debug("lobby code collision, regenerating")
			continue
		}
		s.persistLobby(ctx, &sess.lobby)
		snap := sess.snapshot()
		sess.mu.Unlock()
		s.log.WithFields(logrus.Fields{"code": code, "lobby": snap.ID}).Info("lobby created")
		return snap, nil
	}
	return Lobby{}, ErrCodeSpaceExhausted
}

// LobbyExists reports whether a live lobby has the given code.
func (s *Store) LobbyExists(code string) bool {
	_, ok := s.lobbies.Load(code)
	return ok
}

// GetLobby returns a snapshot of the lobby or ErrLobbyNotFound.
func (s *Store) GetLobby(code string) (Lobby, error) {
	l, ok := s.Lookup(code)
	if !ok {
		return Lobby{}, ErrLobbyNotFound
	}
	return l, nil
}

// Lookup is GetLobby for callers that branch on presence.
func (s *Store) Lookup(code string) (Lobby, bool) {
	sess, ok := s.session(code)
	if !ok {
		return Lobby{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), true
}

// GetAllLobbies returns snapshots of every live lobby, oldest first.
func (s *Store) GetAllLobbies() []Lobby {
	var sessions []*session
	s.lobbies.Range(func(_, v any) bool {
		sessions = append(sessions, v.(*session))
		return true
	})

	out := make([]Lobby, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		out = append(out, sess.snapshot())
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// AddPlayer upserts player into the lobby with the given code, creating the
// lobby under that code if it does not exist. An existing player with the
// same display name (ignoring case) keeps its ID and takes the incoming icon,
// role and connection.
func (s *Store) AddPlayer(ctx context.Context, player Player, code string) (Player, error) {
	name, err := normalizeDisplayName(player.DisplayName)
	if err != nil {
		return Player{}, err
	}
	player.DisplayName = name
	return s.upsertPlayer(ctx, code, player, upsertFull)
}

// AddOrUpdatePlayerConnection registers a transport join for displayName,
// creating the lobby and the player as needed. The player's role is left
// untouched when it already exists.
func (s *Store) AddOrUpdatePlayerConnection(ctx context.Context, code, displayName string, iconID int, connectionID string) (Player, error) {
	name, err := normalizeDisplayName(displayName)
	if err != nil {
		return Player{}, err
	}
	return s.upsertPlayer(ctx, code, Player{
		DisplayName:  name,
		IconID:       iconID,
		ConnectionID: connectionID,
	}, upsertConnection)
}

// JoinLobby is a hook for join auditing. It has no effect.
func (s *Store) JoinLobby(code string) {
	s.log.WithFields(logrus.Fields{"code": code, "exists": s.LobbyExists(code)}).Debug("join requested")
}

func (s *Store) upsertPlayer(ctx context.Context, code string, in Player, mode upsertMode) (Player, error) {
	sess, err := s.getOrCreate(ctx, code)
	if err != nil {
		return Player{}, err
	}

	sess.mu.Lock()
	stored, previousConn := sess.upsert(in, mode)
	ref := connRef{code: code, key: displayKey(stored.DisplayName)}
	if previousConn != "" && previousConn != stored.ConnectionID {
		s.conns.CompareAndDelete(previousConn, ref)
	}

	var displaced connRef
	var hasDisplaced bool
	if stored.ConnectionID != "" {
		if old, loaded := s.conns.Swap(stored.ConnectionID, ref); loaded && old.(connRef) != ref {
			displaced, hasDisplaced = old.(connRef), true
			if displaced.code == code {
				s.releaseLocked(ctx, sess, displaced.key, stored.ConnectionID)
				hasDisplaced = false
			}
		}
	}

	s.persistPlayer(ctx, sess.lobby.ID, stored)
	out := *stored
	sess.mu.Unlock()

	// A connection names one player at a time; the player it named before
	// lives in another lobby and is released under that lobby's lock.
	if hasDisplaced {
		s.release(ctx, displaced, out.ConnectionID)
	}
	return out, nil
}

// release clears connectionID from the player ref names, unless the
// connection has since been registered to that player again.
func (s *Store) release(ctx context.Context, ref connRef, connectionID string) {
	sess, ok := s.session(ref.code)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if v, ok := s.conns.Load(connectionID); ok && v.(connRef) == ref {
		return
	}
	s.releaseLocked(ctx, sess, ref.key, connectionID)
}

// releaseLocked clears connectionID from the player with key. Caller holds mu.
func (s *Store) releaseLocked(ctx context.Context, sess *session, key, connectionID string) {
	p, ok := sess.player(key)
	if !ok || p.ConnectionID != connectionID {
		return
	}
	p.ConnectionID = ""
	s.persistPlayer(ctx, sess.lobby.ID, p)
	s.log.WithFields(logrus.Fields{
		"code":       sess.lobby.Code,
		"player":     p.DisplayName,
		"connection": connectionID,
	}).Debug("connection moved to another player")
}

// LookupConnection resolves a transport connection to the lobby code and
// display name it was registered for.
func (s *Store) LookupConnection(connectionID string) (code, displayName string, ok bool) {
	v, found := s.conns.Load(connectionID)
	if !found {
		return "", "", false
	}
	ref := v.(connRef)
	sess, found := s.session(ref.code)
	if !found {
		return "", "", false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	p, found := sess.player(ref.key)
	if !found {
		return "", "", false
	}
	return ref.code, p.DisplayName, true
}

// DisconnectConnection forgets a transport connection. The player's
// ConnectionID is cleared only while it still names this connection, so a
// reconnect that already replaced it is kept. The returned bool reports
// whether a player record was changed.
func (s *Store) DisconnectConnection(ctx context.Context, connectionID string) (Player, bool) {
	v, found := s.conns.Load(connectionID)
	if !found {
		return Player{}, false
	}
	ref := v.(connRef)
	s.conns.CompareAndDelete(connectionID, ref)

	sess, found := s.session(ref.code)
	if !found {
		return Player{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	p, found := sess.player(ref.key)
	if !found || p.ConnectionID != connectionID {
		return Player{}, false
	}
	p.ConnectionID = ""
	s.persistPlayer(ctx, sess.lobby.ID, p)
	return *p, true
}

func (s *Store) session(code string) (*session, bool) {
	v, ok := s.lobbies.Load(code)
	if !ok {
		return nil, false
	}
	return v.(*session), true
}

// getOrCreate returns the session for code, inserting a new one if absent.
// Only the goroutine whose insert wins persists the lobby.
func (s *Store) getOrCreate(ctx context.Context, code string) (*session, error) {
	if sess, ok := s.session(code); ok {
		return sess, nil
	}
	if strings.TrimSpace(code) == "" || utf8.RuneCountInString(code) > MaxCodeLength {
		return nil, ErrInvalidCode
	}

	sess := newSession(code, s.now())
	sess.mu.Lock()
	actual, loaded := s.lobbies.LoadOrStore(code, sess)
	if loaded {
		sess.mu.Unlock()
		return actual.(*session), nil
	}
	s.persistLobby(ctx, &sess.lobby)
	sess.mu.Unlock()
	s.log.WithFields(logrus.Fields{"code": code, "lobby": sess.lobby.ID}).Info("lobby created on first join")
	return sess, nil
}

// persistLobby mirrors l to the gateway. Failures are logged, never returned:
// the in-memory lobby stays authoritative.
func (s *Store) persistLobby(ctx context.Context, l *Lobby) {
	if err := s.gateway.UpsertLobby(ctx, lobbyRecord(l)); err != nil {
		s.log.WithFields(logrus.Fields{
			"code":  l.Code,
			"lobby": l.ID,
			"error": err,
		}).Warn("failed to persist lobby")
	}
}

func (s *Store) persistPlayer(ctx context.Context, lobbyID uuid.UUID, p *Player) {
	if err := s.gateway.UpsertPlayer(ctx, playerRecord(lobbyID, p)); err != nil {
		s.log.WithFields(logrus.Fields{
			"lobby":  lobbyID,
			"player": p.DisplayName,
			"error":  err,
		}).Warn("failed to persist player")
	}
}

// emptyLibrary is the ImageProvider used when none is configured.
type emptyLibrary struct{}

func (emptyLibrary) RandomImage() (*models.Image, error) { return nil, nil }
func (emptyLibrary) ResolvePath(string) (string, bool)   { return "", false }
