// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/sketchlobby/internal/persistence"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list lobby mutations are pushed to.
const DefaultQueueName = "sketchlobby_mutations"

// Connect creates a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Outbox is a persistence.Gateway that serializes every mutation onto a Redis
// list. A separate persister process drains the list into Postgres.
type Outbox struct {
	rdb   *redis.Client
	queue string
}

var _ persistence.Gateway = (*Outbox)(nil)

// NewOutbox pushes to queue, or DefaultQueueName when queue is empty.
func NewOutbox(rdb *redis.Client, queue string) *Outbox {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Outbox{rdb: rdb, queue: queue}
}

// Queue is the list name this outbox pushes to.
func (o *Outbox) Queue() string { return o.queue }

func (o *Outbox) UpsertLobby(ctx context.Context, l persistence.LobbyRecord) error {
	return o.Push(ctx, persistence.Mutation{Kind: persistence.MutationUpsertLobby, Lobby: &l})
}

func (o *Outbox) UpsertPlayer(ctx context.Context, p persistence.PlayerRecord) error {
	return o.Push(ctx, persistence.Mutation{Kind: persistence.MutationUpsertPlayer, Player: &p})
}

// Push serializes m to JSON and appends it to the queue.
func (o *Outbox) Push(ctx context.Context, m persistence.Mutation) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation: %w", err)
	}
	if err := o.rdb.RPush(ctx, o.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", o.queue, err)
	}
	return nil
}

// Pop blocks up to timeout for the next mutation. ok is false when the wait
// timed out. A payload that does not decode is consumed and reported as an
// error so one bad entry cannot wedge the queue.
func (o *Outbox) Pop(ctx context.Context, timeout time.Duration) (m persistence.Mutation, ok bool, err error) {
	res, err := o.rdb.BLPop(ctx, timeout, o.queue).Result()
	if errors.Is(err, redis.Nil) {
		return m, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("BLPop %s: %w", o.queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return m, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &m); err != nil {
		return m, false, fmt.Errorf("invalid mutation payload: %w", err)
	}
	return m, true, nil
}

// Len reports how many mutations are waiting.
func (o *Outbox) Len(ctx context.Context) (int64, error) {
	return o.rdb.LLen(ctx, o.queue).Result()
}
