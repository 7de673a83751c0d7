package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/sketchlobby/internal/persistence"
)

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Gateway mirrors lobbies and players into Postgres.
type Gateway struct {
	pool *pgxpool.Pool
}

var (
	_ persistence.Gateway = (*Gateway)(nil)
	_ persistence.Reader  = (*Gateway)(nil)
)

// NewGateway wraps an open pool.
func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

const upsertLobbySQL = `
	INSERT INTO lobbies (
		id, code, phase, selected_image_id, selected_image_url, created_at, updated_at
	)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, now())
	ON CONFLICT (id) DO UPDATE SET
		phase              = EXCLUDED.phase,
		selected_image_id  = EXCLUDED.selected_image_id,
		selected_image_url = EXCLUDED.selected_image_url,
		updated_at         = now()
	`

const upsertPlayerSQL = `
	INSERT INTO lobby_players (
		id, lobby_id, display_name, display_key, icon_id, role, connection_id,
		created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), clock_timestamp(), now())
	ON CONFLICT (lobby_id, display_key) DO UPDATE SET
		icon_id       = EXCLUDED.icon_id,
		role          = EXCLUDED.role,
		connection_id = EXCLUDED.connection_id,
		updated_at    = now()
	`

// UpsertLobby inserts the lobby or refreshes its mutable columns.
func (g *Gateway) UpsertLobby(ctx context.Context, l persistence.LobbyRecord) error {
	return pgx.BeginTxFunc(ctx, g.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return upsertLobby(ctx, tx, l)
	})
}

// UpsertPlayer inserts the player or, when (lobby_id, display_key) already
// exists, refreshes icon, role and connection. The stored id is kept.
func (g *Gateway) UpsertPlayer(ctx context.Context, p persistence.PlayerRecord) error {
	return pgx.BeginTxFunc(ctx, g.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return upsertPlayer(ctx, tx, p)
	})
}

// ApplyBatch replays mutations in order inside one transaction. Either all of
// them land or none do.
func (g *Gateway) ApplyBatch(ctx context.Context, batch []persistence.Mutation) error {
	if len(batch) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, g.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		gw := txGateway{tx}
		for i, m := range batch {
			if err := m.Apply(ctx, gw); err != nil {
				return fmt.Errorf("mutation %d of %d: %w", i+1, len(batch), err)
			}
		}
		return nil
	})
}

// LoadLobby reads a lobby and its players back by code, players in the order
// they were first written.
func (g *Gateway) LoadLobby(ctx context.Context, code string) (persistence.LobbyRecord, []persistence.PlayerRecord, error) {
	var l persistence.LobbyRecord
	q := `
	SELECT id, code, phase,
	       COALESCE(selected_image_id, ''), COALESCE(selected_image_url, ''),
	       created_at
	  FROM lobbies
	 WHERE code = $1
	`
	err := g.pool.QueryRow(ctx, q, code).Scan(
		&l.ID,
		&l.Code,
		&l.Phase,
		&l.SelectedImageID,
		&l.SelectedImageURL,
		&l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return l, nil, persistence.ErrNotFound
	}
	if err != nil {
		return l, nil, err
	}

	rows, err := g.pool.Query(ctx, `
	SELECT id, lobby_id, display_name, display_key, icon_id, role,
	       COALESCE(connection_id, '')
	  FROM lobby_players
	 WHERE lobby_id = $1
	 ORDER BY created_at, id
	`, l.ID)
	if err != nil {
		return l, nil, err
	}
	defer rows.Close()

	var players []persistence.PlayerRecord
	for rows.Next() {
		var p persistence.PlayerRecord
		if err := rows.Scan(
			&p.ID,
			&p.LobbyID,
			&p.DisplayName,
			&p.DisplayKey,
			&p.IconID,
			&p.Role,
			&p.ConnectionID,
		); err != nil {
			return l, nil, err
		}
		players = append(players, p)
	}
	return l, players, rows.Err()
}

// txGateway applies mutations inside an open transaction.
type txGateway struct {
	tx pgx.Tx
}

func (t txGateway) UpsertLobby(ctx context.Context, l persistence.LobbyRecord) error {
	return upsertLobby(ctx, t.tx, l)
}

func (t txGateway) UpsertPlayer(ctx context.Context, p persistence.PlayerRecord) error {
	return upsertPlayer(ctx, t.tx, p)
}

func upsertLobby(ctx context.Context, db execer, l persistence.LobbyRecord) error {
	_, err := db.Exec(ctx, upsertLobbySQL,
		l.ID,
		l.Code,
		l.Phase,
		l.SelectedImageID,
		l.SelectedImageURL,
		l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert lobby %s: %w", l.Code, err)
	}
	return nil
}

func upsertPlayer(ctx context.Context, db execer, p persistence.PlayerRecord) error {
	_, err := db.Exec(ctx, upsertPlayerSQL,
		p.ID,
		p.LobbyID,
		p.DisplayName,
		p.DisplayKey,
		p.IconID,
		p.Role,
		p.ConnectionID,
	)
	if err != nil {
		return fmt.Errorf("upsert player %q: %w", p.DisplayName, err)
	}
	return nil
}
