package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/supabase"
)

type UsageHandler struct {
	dbClient *supabase.DatabaseClient
	log      *logger.Logger
}

func NewUsageHandler(dbClient *supabase.DatabaseClient, log *logger.Logger) *UsageHandler {
	return &UsageHandler{
		dbClient: dbClient,
		log:      log.With("component", "usage_handler"),
	}
}

// GetUsageSummary godoc
// @Summary     Get usage summary
// @Description Returns the authenticated user's aggregated external API usage and cost, grouped by service type.
// @Tags        usage
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.UsageSummaryResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /usage [get]
func (h *UsageHandler) GetUsageSummary(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	rows, err := h.dbClient.GetUsageSummary(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("usage summary failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load usage",
			Message: err.Error(),
		})
		return
	}

	resp := models.UsageSummaryResponse{
		ByService: make([]models.ServiceUsageResponse, len(rows)),
	}
	for i, row := range rows {
		resp.ByService[i] = models.ServiceUsageResponse{
			ServiceType:  row.ServiceType,
			APICalls:     row.APICalls,
			InputTokens:  row.InputTokens,
			OutputTokens: row.OutputTokens,
			Cost:         row.Cost,
		}
		resp.TotalCalls += row.APICalls
		resp.TotalCost += row.Cost
	}

	c.JSON(http.StatusOK, resp)
}
