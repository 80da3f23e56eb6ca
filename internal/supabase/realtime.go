package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"animatevdo-backend/internal/models"
)

// RealtimeClient names the channels the dashboard subscribes to. Progress
// and project rows are updated by the pipeline, and Supabase emits the
// corresponding postgres_changes events itself; PublishEvent exists for
// explicit broadcast events if those are ever needed.
type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// Database writes already trigger postgres_changes on the dashboard's
	// subscription; no explicit broadcast is required.
	return nil
}

func (r *RealtimeClient) PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("project:%s", projectID.String())
	return r.PublishEvent(channel, event, payload)
}

func (r *RealtimeClient) PublishUserEvent(userID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("user:%s", userID.String())
	return r.PublishEvent(channel, event, payload)
}

// Event payloads

func StageStartedPayload(projectID uuid.UUID, stage models.Stage) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"stage":      stage.String(),
		"status":     "running",
	}
}

func StageCompletedPayload(projectID uuid.UUID, stage models.Stage, nextStage string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"stage":      stage.String(),
		"status":     "completed",
		"next_stage": nextStage,
	}
}

func StageFailedPayload(projectID uuid.UUID, stage models.Stage, errorMsg string, retryQueued bool) map[string]interface{} {
	return map[string]interface{}{
		"project_id":   projectID.String(),
		"stage":        stage.String(),
		"status":       "failed",
		"error":        errorMsg,
		"retry_queued": retryQueued,
	}
}

func ProjectCompletedPayload(projectID uuid.UUID, videoURL string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"status":     "completed",
		"video_url":  videoURL,
	}
}
