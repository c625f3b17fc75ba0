package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/pr-poehali-dev/rusbakery-email-system/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Tracker keeps a per-user activity mark in redis with a TTL. Login writes
// the mark, logout deletes it, and the sweeper flips is_online off in the
// store for any user whose mark has expired. The users table stays the
// authoritative presence record — redis only carries the expiry clock.
type Tracker struct {
	rdb    *redis.Client
	users  repository.UserRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewTracker(rdb *redis.Client, users repository.UserRepository, ttl time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		rdb:    rdb,
		users:  users,
		ttl:    ttl,
		logger: logger,
	}
}

func activityKey(userID int64) string {
	return fmt.Sprintf("presence:%d", userID)
}

// MarkActive refreshes the user's activity mark. Called on login.
func (t *Tracker) MarkActive(ctx context.Context, userID int64) error {
	if err := t.rdb.Set(ctx, activityKey(userID), 1, t.ttl).Err(); err != nil {
		return fmt.Errorf("mark active: %w", err)
	}
	return nil
}

// Clear drops the activity mark immediately. Called on explicit logout so
// the sweeper doesn't have to wait out the TTL.
func (t *Tracker) Clear(ctx context.Context, userID int64) error {
	if err := t.rdb.Del(ctx, activityKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear activity: %w", err)
	}
	return nil
}

// Run sweeps on a fixed interval until the context is cancelled. Meant to be
// launched as a goroutine from main.
func (t *Tracker) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	t.logger.Info("presence sweeper started",
		zap.Duration("interval", every),
		zap.Duration("ttl", t.ttl),
	)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("presence sweeper stopped")
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

// sweep marks every online user whose activity key has expired as offline.
// Errors are logged and the sweep moves on; the next tick retries naturally.
func (t *Tracker) sweep(ctx context.Context) {
	ids, err := t.users.ListOnlineIDs(ctx)
	if err != nil {
		t.logger.Warn("presence sweep: list online users", zap.Error(err))
		return
	}

	for _, id := range ids {
		n, err := t.rdb.Exists(ctx, activityKey(id)).Result()
		if err != nil {
			t.logger.Warn("presence sweep: check activity", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		if n > 0 {
			continue
		}
		if err := t.users.SetOffline(ctx, id); err != nil {
			t.logger.Warn("presence sweep: set offline", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		t.logger.Info("presence sweep: marked user offline", zap.Int64("user_id", id))
	}
}
