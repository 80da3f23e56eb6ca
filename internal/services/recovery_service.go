package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"animatevdo-backend/internal/config"
	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/pipeline"
)

// RecoveryService drains the recovery queue: when a delayed task fires it
// claims the entry, re-runs the failed stage, and either finishes the entry
// or reschedules it for another attempt. The database row owns the retry
// count; the task queue is only the wakeup mechanism.
type RecoveryService struct {
	store     Store
	runner    *PipelineService
	scheduler RecoveryScheduler
	cfg       *config.Config
	log       *logger.Logger
}

func NewRecoveryService(store Store, runner *PipelineService, scheduler RecoveryScheduler, cfg *config.Config, log *logger.Logger) *RecoveryService {
	return &RecoveryService{
		store:     store,
		runner:    runner,
		scheduler: scheduler,
		cfg:       cfg,
		log:       log.With("component", "recovery"),
	}
}

// ProcessEntry handles one drain wakeup. Returns an error only for
// infrastructure failures the task queue should retry; stage outcomes are
// fully handled here.
func (s *RecoveryService) ProcessEntry(ctx context.Context, entryID uuid.UUID) error {
	entry, err := s.store.GetRecoveryEntry(ctx, entryID)
	if err != nil {
		return fmt.Errorf("failed to load recovery entry: %w", err)
	}
	if entry == nil {
		// The project was deleted and the entry cascaded away.
		s.log.Info("recovery entry no longer exists", "entry_id", entryID.String())
		return nil
	}

	claimed, err := s.store.ClaimRecoveryEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if !claimed {
		s.log.Debug("recovery entry already claimed or finished",
			"entry_id", entryID.String(), "status", entry.Status)
		return nil
	}

	log := s.log.With("entry_id", entryID.String(),
		"project_id", entry.ProjectID.String(), "stage", entry.Stage.String())

	// A manual re-run may have completed the stage while this entry waited.
	progress, err := s.store.GetProgress(ctx, entry.ProjectID)
	if err != nil {
		return err
	}
	if progress != nil && progress.StageDone(entry.Stage) {
		log.Info("stage already completed, closing recovery entry")
		return s.store.FinishRecoveryEntry(ctx, entryID, models.RecoveryStatusCompleted)
	}

	project, err := s.store.GetProjectByID(ctx, entry.ProjectID)
	if err != nil {
		return err
	}
	if project == nil {
		log.Info("project no longer exists, closing recovery entry")
		return s.store.FinishRecoveryEntry(ctx, entryID, models.RecoveryStatusFailed)
	}

	log.Info("retrying failed stage", "retry_count", entry.RetryCount, "max_retries", entry.MaxRetries)
	_, runErr := s.runner.runStage(ctx, project, entry.Stage, nil, false)
	if runErr == nil {
		log.Info("background retry succeeded")
		return s.store.FinishRecoveryEntry(ctx, entryID, models.RecoveryStatusCompleted)
	}

	svcErr := pipeline.Classify(runErr, entry.Stage.ServiceName())

	// A held lock means a manual run is in flight right now; check again
	// later instead of counting this as a failed attempt outcome.
	retryable := svcErr.Retryable || svcErr.Code == pipeline.ErrCodeStageAlreadyRunning

	attempts := entry.RetryCount + 1
	if !retryable || attempts >= entry.MaxRetries {
		log.Warn("recovery exhausted, marking failed",
			"code", string(svcErr.Code), "attempts", attempts, "error", svcErr.Message)
		return s.store.FinishRecoveryEntry(ctx, entryID, models.RecoveryStatusFailed)
	}

	nextRetryAt := time.Now().Add(s.cfg.RecoveryRetryDelay)
	if err := s.store.RescheduleRecoveryEntry(ctx, entryID, string(svcErr.Code), svcErr.Message, nextRetryAt); err != nil {
		return err
	}
	if err := s.scheduler.EnqueueRecovery(ctx, entryID, s.cfg.RecoveryRetryDelay); err != nil {
		// The startup sweep picks the pending entry back up.
		log.Warn("failed to enqueue next recovery attempt", "error", err)
	}
	log.Info("background retry failed, rescheduled",
		"code", string(svcErr.Code), "attempts", attempts, "next_retry_at", nextRetryAt.Format(time.RFC3339))
	return nil
}

// RequeuePending re-enqueues a drain task for every pending entry. Called at
// startup so entries whose delayed task was lost to a restart still run.
func (s *RecoveryService) RequeuePending(ctx context.Context) error {
	entries, err := s.store.ListPendingRecoveryEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending recovery entries: %w", err)
	}

	for _, entry := range entries {
		delay := time.Until(entry.NextRetryAt)
		if delay < 0 {
			delay = 0
		}
		if err := s.scheduler.EnqueueRecovery(ctx, entry.ID, delay); err != nil {
			s.log.Warn("failed to requeue recovery entry",
				"entry_id", entry.ID.String(), "error", err)
		}
	}

	if len(entries) > 0 {
		s.log.Info("requeued pending recovery entries", "count", len(entries))
	}
	return nil
}
