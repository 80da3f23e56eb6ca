package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/services"
	"animatevdo-backend/internal/supabase"
)

type ProjectsHandler struct {
	dbClient      *supabase.DatabaseClient
	storageClient *supabase.StorageClient
	billing       *services.BillingService
	log           *logger.Logger
}

func NewProjectsHandler(dbClient *supabase.DatabaseClient, storageClient *supabase.StorageClient, billing *services.BillingService, log *logger.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		dbClient:      dbClient,
		storageClient: storageClient,
		billing:       billing,
		log:           log.With("component", "projects_handler"),
	}
}

// CreateProject godoc
// @Summary     Create a new project
// @Description Creates a video project for a topic. The project starts at the research stage with all progress flags false.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateProjectRequest true "Project topic"
// @Success     201 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "topic is required"})
		return
	}

	if err := h.billing.CheckCanCreateProject(c.Request.Context(), userID); err != nil {
		respondServiceError(c, err)
		return
	}

	project, err := h.dbClient.CreateProjectWithProgress(c.Request.Context(), userID, req.Topic)
	if err != nil {
		h.log.Error("create project failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to create project",
			Message: err.Error(),
		})
		return
	}

	h.log.Info("project created", "project_id", project.ID, "topic", project.Topic)
	c.JSON(http.StatusCreated, projectResponse(project))
}

// ListProjects godoc
// @Summary     List projects
// @Description Returns all projects owned by the authenticated user, newest first.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projects, err := h.dbClient.ListProjects(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("list projects failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list projects",
			Message: err.Error(),
		})
		return
	}

	out := make([]models.ProjectResponse, len(projects))
	for i := range projects {
		out[i] = projectResponse(&projects[i])
	}

	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: out})
}

// GetProject godoc
// @Summary     Get a project
// @Description Returns a single project with its per-stage progress flags and the most recent completed result of each stage.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Project ID"
// @Success     200 {object} models.ProjectDetailResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
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

	results, err := h.dbClient.LatestCompletedResults(c.Request.Context(), project.ID)
	if err != nil {
		h.log.Error("load stage results failed", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load stage results",
			Message: err.Error(),
		})
		return
	}

	resultViews := make([]models.StageResultResponse, len(results))
	for i := range results {
		resultViews[i] = stageResultResponse(&results[i])
	}

	c.JSON(http.StatusOK, models.ProjectDetailResponse{
		ID:           project.ID.String(),
		Topic:        project.Topic,
		Status:       project.Status,
		CurrentStage: string(project.CurrentStage),
		Progress:     progressResponse(progress),
		Results:      resultViews,
		CreatedAt:    project.CreatedAt,
		UpdatedAt:    project.UpdatedAt,
	})
}

// DeleteProject godoc
// @Summary     Delete a project
// @Description Deletes a project and its stage results, then removes its media files from storage.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Project ID"
// @Success     200 {object} map[string]string
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	project, ok := projectFromPath(c, h.dbClient, userID)
	if !ok {
		return
	}

	if err := h.dbClient.DeleteProject(c.Request.Context(), project.ID, userID); err != nil {
		h.log.Error("delete project failed", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to delete project",
			Message: err.Error(),
		})
		return
	}

	// Media cleanup is best effort. The rows are already gone; orphaned
	// files only cost storage.
	if err := h.storageClient.DeleteProjectFiles(userID, project.ID); err != nil {
		h.log.Warn("storage cleanup failed", "project_id", project.ID, "error", err)
	}

	h.log.Info("project deleted", "project_id", project.ID)
	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}
