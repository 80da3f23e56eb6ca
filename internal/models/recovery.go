package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	RecoveryStatusPending    = "pending"
	RecoveryStatusProcessing = "processing"
	RecoveryStatusCompleted  = "completed"
	RecoveryStatusFailed     = "failed"
)

// RecoveryQueueEntry is one queued retryable stage failure awaiting a later
// background attempt. Terminal once status reaches completed or failed.
type RecoveryQueueEntry struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	Stage            Stage
	RetryCount       int
	MaxRetries       int
	LastErrorCode    sql.NullString
	LastErrorMessage sql.NullString
	NextRetryAt      time.Time
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
