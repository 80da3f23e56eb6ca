package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/services"
	"animatevdo-backend/internal/supabase"
)

type StagesHandler struct {
	dbClient *supabase.DatabaseClient
	pipeline *services.PipelineService
	log      *logger.Logger
}

func NewStagesHandler(dbClient *supabase.DatabaseClient, pipeline *services.PipelineService, log *logger.Logger) *StagesHandler {
	return &StagesHandler{
		dbClient: dbClient,
		pipeline: pipeline,
		log:      log.With("component", "stages_handler"),
	}
}

// RunStage godoc
// @Summary     Run a pipeline stage
// @Description Runs one stage of the video pipeline synchronously and returns its result. The request body can override the outputs of earlier stages; otherwise the stage loads the most recent completed results. Stages can be re-run at any time.
// @Tags        stages
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Project ID"
// @Param       stage path string true "Stage name" Enums(research, script, characters, audio, video)
// @Param       request body models.RunStageRequest false "Optional input overrides"
// @Success     200 {object} models.StageResultResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{id}/stages/{stage}/run [post]
func (h *StagesHandler) RunStage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	stage, ok := models.ParseStage(c.Param("stage"))
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown stage"})
		return
	}

	project, ok := projectFromPath(c, h.dbClient, userID)
	if !ok {
		return
	}

	// The body is optional; an empty body means no overrides.
	var override models.RunStageRequest
	if err := c.ShouldBindJSON(&override); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	h.log.Info("stage run requested", "project_id", project.ID, "stage", stage)

	result, err := h.pipeline.RunStage(c.Request.Context(), project, stage, &override)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stageResultResponse(result))
}

// GetProgress godoc
// @Summary     Get pipeline progress
// @Description Returns the per-stage completion flags for a project.
// @Tags        stages
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Project ID"
// @Success     200 {object} models.ProgressResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{id}/progress [get]
func (h *StagesHandler) GetProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	project, ok := projectFromPath(c, h.dbClient, userID)
	if !ok {
		return
	}

	progress, err := h.dbClient.GetProgress(c.Request.Context(), project.ID)
	if err != nil {
		h.log.Error("load progress failed", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load progress",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, progressResponse(progress))
}

// ListStageResults godoc
// @Summary     List stage results
// @Description Returns the stage result history for a project, newest first. Pass ?stage= to filter to one stage.
// @Tags        stages
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Project ID"
// @Param       stage query string false "Stage name" Enums(research, script, characters, audio, video)
// @Success     200 {object} models.StageResultListResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{id}/results [get]
func (h *StagesHandler) ListStageResults(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	project, ok := projectFromPath(c, h.dbClient, userID)
	if !ok {
		return
	}

	var stage models.Stage
	if raw := c.Query("stage"); raw != "" {
		parsed, valid := models.ParseStage(raw)
		if !valid {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown stage"})
			return
		}
		stage = parsed
	}

	results, err := h.dbClient.ListStageResults(c.Request.Context(), project.ID, stage)
	if err != nil {
		h.log.Error("list stage results failed", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list stage results",
			Message: err.Error(),
		})
		return
	}

	out := make([]models.StageResultResponse, len(results))
	for i := range results {
		out[i] = stageResultResponse(&results[i])
	}

	c.JSON(http.StatusOK, models.StageResultListResponse{Results: out})
}
