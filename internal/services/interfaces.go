// Package services contains the pipeline orchestration: stage runners, the
// retry/recovery flow, usage recording, and entitlement checks. External
// collaborators (persistence, object storage, locks, the task queue, and the
// per-stage AI providers) are consumed through the narrow interfaces below;
// the concrete clients live in internal/supabase, internal/redislock,
// internal/queue, and internal/providers.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/providers"
	"animatevdo-backend/internal/providers/render"
)

// Store is the persistence surface the pipeline uses. Implemented by
// supabase.DatabaseClient.
type Store interface {
	GetProjectByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	CountProjects(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status string) error
	AdvanceProjectStage(ctx context.Context, projectID uuid.UUID, stage models.Stage, status string) error

	GetProgress(ctx context.Context, projectID uuid.UUID) (*models.ProgressRecord, error)
	MarkStageComplete(ctx context.Context, projectID uuid.UUID, stage models.Stage) error

	CreateStageResult(ctx context.Context, result *models.StageResult) (*models.StageResult, error)
	GetLatestCompletedResult(ctx context.Context, projectID uuid.UUID, stage models.Stage) (*models.StageResult, error)

	CreateRecoveryEntry(ctx context.Context, entry *models.RecoveryQueueEntry) (*models.RecoveryQueueEntry, error)
	GetRecoveryEntry(ctx context.Context, entryID uuid.UUID) (*models.RecoveryQueueEntry, error)
	ClaimRecoveryEntry(ctx context.Context, entryID uuid.UUID) (bool, error)
	RescheduleRecoveryEntry(ctx context.Context, entryID uuid.UUID, errCode, errMsg string, nextRetryAt time.Time) error
	FinishRecoveryEntry(ctx context.Context, entryID uuid.UUID, status string) error
	ListPendingRecoveryEntries(ctx context.Context) ([]models.RecoveryQueueEntry, error)

	CreateUsageRecord(ctx context.Context, record *models.UsageRecord) error
	GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// MediaStore uploads generated artifacts and returns their public URLs.
// Implemented by supabase.StorageClient.
type MediaStore interface {
	UploadMedia(userID, projectID uuid.UUID, filename, contentType string, data []byte) (string, error)
}

// StageLocker guards against concurrent runs of the same (project, stage).
// Implemented by redislock.Locker.
type StageLocker interface {
	AcquireStage(ctx context.Context, projectID uuid.UUID, stage models.Stage, ttl time.Duration) (bool, error)
	ReleaseStage(ctx context.Context, projectID uuid.UUID, stage models.Stage) error
}

// RecoveryScheduler enqueues a delayed drain task for a recovery entry.
// Implemented by queue.Client.
type RecoveryScheduler interface {
	EnqueueRecovery(ctx context.Context, entryID uuid.UUID, delay time.Duration) error
}

// EventPublisher pushes pipeline events to the dashboard. Implemented by
// supabase.RealtimeClient.
type EventPublisher interface {
	PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error
}

// Per-stage provider capabilities. The real clients live under
// internal/providers; providers/mock satisfies all five.

type ResearchProvider interface {
	Research(ctx context.Context, topic string) (*models.ResearchContent, error)
}

type ScriptProvider interface {
	ChatCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, *providers.Usage, error)
}

type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, *providers.Usage, error)
}

type SpeechProvider interface {
	Synthesize(ctx context.Context, text, voiceID string, settings models.VoiceSettings) ([]byte, *providers.Usage, error)
}

type VideoProvider interface {
	SubmitJob(ctx context.Context, job render.JobRequest) (string, error)
	WaitForJob(ctx context.Context, jobID string, pollInterval time.Duration) (*render.JobStatus, error)
}

// Providers bundles the five stage capabilities for injection into the
// pipeline service.
type Providers struct {
	Research ResearchProvider
	Script   ScriptProvider
	Image    ImageProvider
	Speech   SpeechProvider
	Video    VideoProvider
}
