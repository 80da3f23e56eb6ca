package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"animatevdo-backend/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// CreateProjectWithProgress inserts the project and its progress record in
// one transaction. Both rows exist or neither does.
func (d *DatabaseClient) CreateProjectWithProgress(ctx context.Context, userID uuid.UUID, topic string) (*models.Project, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var project models.Project
	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (user_id, topic, status, current_stage)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, topic, status, current_stage, created_at, updated_at
	`, userID, topic, models.ProjectStatusCreated, models.StageResearch).Scan(
		&project.ID, &project.UserID, &project.Topic, &project.Status,
		&project.CurrentStage, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO progress (project_id)
		VALUES ($1)
	`, project.ID); err != nil {
		return nil, fmt.Errorf("failed to create progress record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project creation: %w", err)
	}

	return &project, nil
}

func (d *DatabaseClient) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	return d.scanProject(d.db.QueryRowContext(ctx, `
		SELECT id, user_id, topic, status, current_stage, created_at, updated_at
		FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID))
}

// GetProjectByID looks a project up without user scoping. Used by the
// recovery worker, which acts on behalf of the owning user.
func (d *DatabaseClient) GetProjectByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	return d.scanProject(d.db.QueryRowContext(ctx, `
		SELECT id, user_id, topic, status, current_stage, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID))
}

func (d *DatabaseClient) scanProject(row *sql.Row) (*models.Project, error) {
	var project models.Project
	err := row.Scan(
		&project.ID, &project.UserID, &project.Topic, &project.Status,
		&project.CurrentStage, &project.CreatedAt, &project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (d *DatabaseClient) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, topic, status, current_stage, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var project models.Project
		err := rows.Scan(
			&project.ID, &project.UserID, &project.Topic, &project.Status,
			&project.CurrentStage, &project.CreatedAt, &project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

func (d *DatabaseClient) CountProjects(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM projects WHERE user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

// DeleteProject removes the project row; progress, stage results, and
// recovery entries cascade.
func (d *DatabaseClient) DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error {
	_, err := d.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID)
	return err
}

// AdvanceProjectStage moves the current-stage pointer and project status
// after a successful stage run.
func (d *DatabaseClient) AdvanceProjectStage(ctx context.Context, projectID uuid.UUID, stage models.Stage, status string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE projects
		SET current_stage = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, stage, status, projectID)
	return err
}

func (d *DatabaseClient) UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE projects
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, projectID)
	return err
}

func (d *DatabaseClient) GetProgress(ctx context.Context, projectID uuid.UUID) (*models.ProgressRecord, error) {
	var progress models.ProgressRecord
	err := d.db.QueryRowContext(ctx, `
		SELECT project_id, research, script, characters, audio, video, updated_at
		FROM progress
		WHERE project_id = $1
	`, projectID).Scan(
		&progress.ProjectID, &progress.Research, &progress.Script,
		&progress.Characters, &progress.Audio, &progress.Video, &progress.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return &progress, nil
}

// MarkStageComplete flips the stage's completion flag to true. Monotonic: the
// core never resets a flag to false.
func (d *DatabaseClient) MarkStageComplete(ctx context.Context, projectID uuid.UUID, stage models.Stage) error {
	column, err := progressColumn(stage)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE progress
		SET %s = TRUE, updated_at = NOW()
		WHERE project_id = $1
	`, column)
	_, err = d.db.ExecContext(ctx, query, projectID)
	return err
}

// progressColumn maps a stage to its flag column. The allowlist keeps stage
// names out of SQL string interpolation.
func progressColumn(stage models.Stage) (string, error) {
	switch stage {
	case models.StageResearch:
		return "research", nil
	case models.StageScript:
		return "script", nil
	case models.StageCharacters:
		return "characters", nil
	case models.StageAudio:
		return "audio", nil
	case models.StageVideo:
		return "video", nil
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}

func (d *DatabaseClient) CreateStageResult(ctx context.Context, result *models.StageResult) (*models.StageResult, error) {
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO stage_results (project_id, stage, status, content, error_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, result.ProjectID, result.Stage, result.Status, result.Content,
		result.ErrorCode, result.ErrorMessage,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage result: %w", err)
	}
	return result, nil
}

// GetLatestCompletedResult returns the authoritative output for a stage: the
// most recent completed entry. Returns nil without error when none exists.
func (d *DatabaseClient) GetLatestCompletedResult(ctx context.Context, projectID uuid.UUID, stage models.Stage) (*models.StageResult, error) {
	var result models.StageResult
	err := d.db.QueryRowContext(ctx, `
		SELECT id, project_id, stage, status, content, error_code, error_message, created_at
		FROM stage_results
		WHERE project_id = $1 AND stage = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, projectID, stage, models.StageStatusCompleted).Scan(
		&result.ID, &result.ProjectID, &result.Stage, &result.Status,
		&result.Content, &result.ErrorCode, &result.ErrorMessage, &result.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage result: %w", err)
	}
	return &result, nil
}

func (d *DatabaseClient) ListStageResults(ctx context.Context, projectID uuid.UUID, stage models.Stage) ([]models.StageResult, error) {
	query := `
		SELECT id, project_id, stage, status, content, error_code, error_message, created_at
		FROM stage_results
		WHERE project_id = $1
		ORDER BY created_at DESC
	`
	args := []interface{}{projectID}
	if stage != "" {
		query = `
			SELECT id, project_id, stage, status, content, error_code, error_message, created_at
			FROM stage_results
			WHERE project_id = $1 AND stage = $2
			ORDER BY created_at DESC
		`
		args = append(args, stage)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage results: %w", err)
	}
	defer rows.Close()

	var results []models.StageResult
	for rows.Next() {
		var result models.StageResult
		err := rows.Scan(
			&result.ID, &result.ProjectID, &result.Stage, &result.Status,
			&result.Content, &result.ErrorCode, &result.ErrorMessage, &result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage result: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// LatestCompletedResults returns the newest completed entry per stage for a
// project, used by the project detail view.
func (d *DatabaseClient) LatestCompletedResults(ctx context.Context, projectID uuid.UUID) ([]models.StageResult, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT ON (stage)
			id, project_id, stage, status, content, error_code, error_message, created_at
		FROM stage_results
		WHERE project_id = $1 AND status = $2
		ORDER BY stage, created_at DESC
	`, projectID, models.StageStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest stage results: %w", err)
	}
	defer rows.Close()

	var results []models.StageResult
	for rows.Next() {
		var result models.StageResult
		err := rows.Scan(
			&result.ID, &result.ProjectID, &result.Stage, &result.Status,
			&result.Content, &result.ErrorCode, &result.ErrorMessage, &result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage result: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

func (d *DatabaseClient) CreateRecoveryEntry(ctx context.Context, entry *models.RecoveryQueueEntry) (*models.RecoveryQueueEntry, error) {
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO recovery_queue (project_id, stage, retry_count, max_retries, last_error_code, last_error_message, next_retry_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, entry.ProjectID, entry.Stage, entry.RetryCount, entry.MaxRetries,
		entry.LastErrorCode, entry.LastErrorMessage, entry.NextRetryAt, entry.Status,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create recovery entry: %w", err)
	}
	return entry, nil
}

func (d *DatabaseClient) GetRecoveryEntry(ctx context.Context, entryID uuid.UUID) (*models.RecoveryQueueEntry, error) {
	var entry models.RecoveryQueueEntry
	err := d.db.QueryRowContext(ctx, `
		SELECT id, project_id, stage, retry_count, max_retries, last_error_code, last_error_message, next_retry_at, status, created_at, updated_at
		FROM recovery_queue
		WHERE id = $1
	`, entryID).Scan(
		&entry.ID, &entry.ProjectID, &entry.Stage, &entry.RetryCount,
		&entry.MaxRetries, &entry.LastErrorCode, &entry.LastErrorMessage,
		&entry.NextRetryAt, &entry.Status, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery entry: %w", err)
	}
	return &entry, nil
}

// ClaimRecoveryEntry transitions a pending entry to processing. Returns false
// when the entry was already claimed or finished, so concurrent drains do not
// double-run a retry.
func (d *DatabaseClient) ClaimRecoveryEntry(ctx context.Context, entryID uuid.UUID) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE recovery_queue
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, models.RecoveryStatusProcessing, entryID, models.RecoveryStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim recovery entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RescheduleRecoveryEntry records another failed background attempt and puts
// the entry back to pending for the next drain.
func (d *DatabaseClient) RescheduleRecoveryEntry(ctx context.Context, entryID uuid.UUID, errCode, errMsg string, nextRetryAt time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE recovery_queue
		SET retry_count = retry_count + 1,
		    status = $1,
		    last_error_code = $2,
		    last_error_message = $3,
		    next_retry_at = $4,
		    updated_at = NOW()
		WHERE id = $5
	`, models.RecoveryStatusPending, errCode, errMsg, nextRetryAt, entryID)
	return err
}

// FinishRecoveryEntry marks an entry terminal (completed or failed).
func (d *DatabaseClient) FinishRecoveryEntry(ctx context.Context, entryID uuid.UUID, status string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE recovery_queue
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, entryID)
	return err
}

// ListPendingRecoveryEntries returns all pending entries, oldest first. Used
// by the startup sweep to re-enqueue drains lost to a restart.
func (d *DatabaseClient) ListPendingRecoveryEntries(ctx context.Context) ([]models.RecoveryQueueEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, project_id, stage, retry_count, max_retries, last_error_code, last_error_message, next_retry_at, status, created_at, updated_at
		FROM recovery_queue
		WHERE status = $1
		ORDER BY next_retry_at ASC
	`, models.RecoveryStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending recovery entries: %w", err)
	}
	defer rows.Close()

	var entries []models.RecoveryQueueEntry
	for rows.Next() {
		var entry models.RecoveryQueueEntry
		err := rows.Scan(
			&entry.ID, &entry.ProjectID, &entry.Stage, &entry.RetryCount,
			&entry.MaxRetries, &entry.LastErrorCode, &entry.LastErrorMessage,
			&entry.NextRetryAt, &entry.Status, &entry.CreatedAt, &entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recovery entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (d *DatabaseClient) CreateUsageRecord(ctx context.Context, record *models.UsageRecord) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO usage_records (user_id, project_id, service_type, model, api_calls, input_tokens, output_tokens, duration_ms, cost, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.UserID, record.ProjectID, record.ServiceType, record.Model,
		record.APICalls, record.InputTokens, record.OutputTokens,
		record.DurationMS, record.Cost, record.Success, record.ErrorMessage)
	return err
}

func (d *DatabaseClient) GetUsageSummary(ctx context.Context, userID uuid.UUID) ([]models.UsageSummaryRow, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT service_type, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE user_id = $1
		GROUP BY service_type
		ORDER BY service_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage summary: %w", err)
	}
	defer rows.Close()

	var summary []models.UsageSummaryRow
	for rows.Next() {
		var row models.UsageSummaryRow
		if err := rows.Scan(&row.ServiceType, &row.APICalls, &row.InputTokens, &row.OutputTokens, &row.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		summary = append(summary, row)
	}

	return summary, rows.Err()
}

func (d *DatabaseClient) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_customer_id = EXCLUDED.stripe_customer_id,
		    stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		    plan = EXCLUDED.plan,
		    status = EXCLUDED.status,
		    current_period_end = EXCLUDED.current_period_end,
		    updated_at = NOW()
	`, sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.Plan, sub.Status, sub.CurrentPeriodEnd)
	return err
}

func (d *DatabaseClient) GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := d.db.QueryRowContext(ctx, `
		SELECT user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`, userID).Scan(
		&sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Plan, &sub.Status, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// GetSubscriptionByCustomerID resolves the owning user for Stripe events
// that only carry the customer identifier.
func (d *DatabaseClient) GetSubscriptionByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := d.db.QueryRowContext(ctx, `
		SELECT user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE stripe_customer_id = $1
	`, customerID).Scan(
		&sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Plan, &sub.Status, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
