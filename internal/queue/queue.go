// Package queue wraps the asynq task queue used to wake the recovery drain.
// Every queued recovery entry gets one delayed task; the database row, not
// the task, owns the retry count.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"animatevdo-backend/internal/logger"
)

const TypeRecoveryDrain = "recovery:drain"

type RecoveryPayload struct {
	EntryID string `json:"entry_id"`
}

func newRecoveryTask(entryID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(RecoveryPayload{EntryID: entryID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recovery payload: %w", err)
	}
	return asynq.NewTask(TypeRecoveryDrain, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// Client enqueues recovery drain tasks.
type Client struct {
	client *asynq.Client
	log    *logger.Logger
}

func NewClient(redisAddr, redisPassword string, log *logger.Logger) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
		}),
		log: log.With("component", "queue"),
	}
}

// EnqueueRecovery schedules a drain task for the entry after the given delay.
func (c *Client) EnqueueRecovery(ctx context.Context, entryID uuid.UUID, delay time.Duration) error {
	task, err := newRecoveryTask(entryID)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay))
	if err != nil {
		return fmt.Errorf("failed to enqueue recovery task: %w", err)
	}

	c.log.Debug("recovery task enqueued",
		"entry_id", entryID.String(), "task_id", info.ID, "delay", delay.String())
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
