// Package handlers implements the gin HTTP API: project CRUD, the stage run
// entry point, progress and result reads, usage summaries, and the Stripe
// webhook.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"animatevdo-backend/internal/middleware"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/pipeline"
	"animatevdo-backend/internal/supabase"
)

// currentUserID pulls the authenticated user id set by the auth middleware.
// Writes the error response itself when the id is missing or malformed.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return uuid.Nil, false
	}
	str, ok := raw.(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(str)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return uuid.Nil, false
	}
	return userID, true
}

// projectFromPath parses the :id parameter and loads the project scoped to
// the requesting user. Writes the error response itself on failure.
func projectFromPath(c *gin.Context, db *supabase.DatabaseClient, userID uuid.UUID) (*models.Project, bool) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return nil, false
	}

	project, err := db.GetProject(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load project",
			Message: err.Error(),
		})
		return nil, false
	}
	if project == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return nil, false
	}
	return project, true
}

// respondServiceError writes a classified pipeline error with the HTTP
// status its code maps to, or a plain 500 for unclassified errors.
func respondServiceError(c *gin.Context, err error) {
	if svcErr, ok := pipeline.AsServiceError(err); ok {
		c.JSON(statusForCode(svcErr.Code), models.ErrorResponse{
			Error:           svcErr.UserMessage,
			Message:         svcErr.Message,
			Code:            string(svcErr.Code),
			SuggestedAction: svcErr.SuggestedAction,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal error",
		Message: err.Error(),
	})
}

func statusForCode(code pipeline.ErrorCode) int {
	switch code {
	case pipeline.ErrCodeStageAlreadyRunning:
		return http.StatusConflict
	case pipeline.ErrCodeMissingDependencies, pipeline.ErrCodeInvalidProjectData:
		return http.StatusBadRequest
	case pipeline.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case pipeline.ErrCodeSubscriptionRequired, pipeline.ErrCodeUsageLimitExceeded:
		return http.StatusPaymentRequired
	case pipeline.ErrCodeScriptFailed, pipeline.ErrCodeCharacterFailed:
		// Content rejections: the input needs to change, not the service.
		return http.StatusUnprocessableEntity
	case pipeline.ErrCodeAPIRateLimit:
		return http.StatusTooManyRequests
	case pipeline.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case pipeline.ErrCodeAPIKeyMissing, pipeline.ErrCodeDataCorruption, pipeline.ErrCodeStorageUploadFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func projectResponse(p *models.Project) models.ProjectResponse {
	return models.ProjectResponse{
		ID:           p.ID.String(),
		Topic:        p.Topic,
		Status:       p.Status,
		CurrentStage: p.CurrentStage.String(),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func progressResponse(p *models.ProgressRecord) models.ProgressResponse {
	return models.ProgressResponse{
		Research:   p.Research,
		Script:     p.Script,
		Characters: p.Characters,
		Audio:      p.Audio,
		Video:      p.Video,
		UpdatedAt:  p.UpdatedAt,
	}
}

func stageResultResponse(r *models.StageResult) models.StageResultResponse {
	resp := models.StageResultResponse{
		ID:        r.ID.String(),
		Stage:     r.Stage.String(),
		Status:    r.Status,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}
	if r.ErrorCode.Valid {
		resp.ErrorCode = r.ErrorCode.String
	}
	if r.ErrorMessage.Valid {
		resp.ErrorMessage = r.ErrorMessage.String
	}
	return resp
}
