// Package redislock provides the per-(project, stage) advisory lock that
// keeps concurrent re-triggers of the same stage from racing. Locks are
// TTL-bounded so a crashed run cannot wedge a stage forever.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"animatevdo-backend/internal/models"
)

type Locker struct {
	rdb *redis.Client
}

func New(addr, password string) (*Locker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Locker{rdb: rdb}, nil
}

func stageKey(projectID uuid.UUID, stage models.Stage) string {
	return fmt.Sprintf("stage_lock:%s:%s", projectID.String(), stage)
}

// AcquireStage takes the advisory lock for one stage run. Returns false when
// another run already holds it.
func (l *Locker) AcquireStage(ctx context.Context, projectID uuid.UUID, stage models.Stage, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, stageKey(projectID, stage), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire stage lock: %w", err)
	}
	return ok, nil
}

// ReleaseStage drops the lock after a run finishes. Safe to call when the
// TTL already expired.
func (l *Locker) ReleaseStage(ctx context.Context, projectID uuid.UUID, stage models.Stage) error {
	return l.rdb.Del(ctx, stageKey(projectID, stage)).Err()
}

func (l *Locker) Close() error {
	return l.rdb.Close()
}
