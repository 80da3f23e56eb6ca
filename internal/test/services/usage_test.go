package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
	"animatevdo-backend/internal/services"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name         string
		serviceType  string
		model        string
		inputTokens  int
		outputTokens int
		apiCalls     int
		want         float64
	}{
		{"search request", models.ServiceSearch, "tavily-search", 0, 0, 1, 0.005},
		{"mini llm tokens", models.ServiceLLM, "gpt-4o-mini", 1000, 500, 1, 0.00045},
		{"full llm tokens", models.ServiceLLM, "gpt-4o", 1000, 1000, 1, 0.0125},
		{"two images", models.ServiceImage, "dall-e-3", 0, 0, 2, 0.08},
		{"tts characters", models.ServiceTTS, "eleven_multilingual_v2", 2000, 0, 1, 0.60},
		{"video render", models.ServiceVideo, "render-1080p", 0, 0, 1, 0.05},
		{"unknown model", models.ServiceLLM, "some-future-model", 1000, 1000, 1, 0},
		{"unknown service", "telemetry", "tavily-search", 0, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.Cost(tt.serviceType, tt.model, tt.inputTokens, tt.outputTokens, tt.apiCalls)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRecord_WritesRow(t *testing.T) {
	store := newFakeStore()
	svc := services.NewUsageService(store, logger.NewNop())
	userID, projectID := uuid.New(), uuid.New()

	svc.Record(services.UsageEvent{
		UserID:       userID,
		ProjectID:    projectID,
		ServiceType:  models.ServiceLLM,
		Model:        "gpt-4o-mini",
		APICalls:     1,
		InputTokens:  1000,
		OutputTokens: 500,
		Duration:     250 * time.Millisecond,
	})

	require.Len(t, store.usage, 1)
	rec := store.usage[0]
	assert.Equal(t, userID, rec.UserID)
	assert.True(t, rec.ProjectID.Valid)
	assert.Equal(t, projectID, rec.ProjectID.UUID)
	assert.Equal(t, models.ServiceLLM, rec.ServiceType)
	assert.Equal(t, "gpt-4o-mini", rec.Model)
	assert.Equal(t, 1, rec.APICalls)
	assert.Equal(t, 1000, rec.InputTokens)
	assert.Equal(t, 500, rec.OutputTokens)
	assert.Equal(t, int64(250), rec.DurationMS)
	assert.InDelta(t, 0.00045, rec.Cost, 1e-9)
	assert.True(t, rec.Success)
	assert.False(t, rec.ErrorMessage.Valid)
}

func TestRecord_FailureCapturesError(t *testing.T) {
	store := newFakeStore()
	svc := services.NewUsageService(store, logger.NewNop())

	svc.Record(services.UsageEvent{
		UserID:      uuid.New(),
		ProjectID:   uuid.New(),
		ServiceType: models.ServiceSearch,
		Model:       "tavily-search",
		APICalls:    1,
		Err:         errors.New("tavily API error: status 503"),
	})

	require.Len(t, store.usage, 1)
	rec := store.usage[0]
	assert.False(t, rec.Success)
	assert.Equal(t, "tavily API error: status 503", rec.ErrorMessage.String)
	// Failed attempts still cost money; the provider billed the call.
	assert.InDelta(t, 0.005, rec.Cost, 1e-9)
}

func TestRecord_NilProjectLeavesColumnNull(t *testing.T) {
	store := newFakeStore()
	svc := services.NewUsageService(store, logger.NewNop())

	svc.Record(services.UsageEvent{
		UserID:      uuid.New(),
		ProjectID:   uuid.Nil,
		ServiceType: models.ServiceSearch,
		Model:       "tavily-search",
		APICalls:    1,
	})

	require.Len(t, store.usage, 1)
	assert.False(t, store.usage[0].ProjectID.Valid)
}

func TestRecord_StoreFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.usageErr = errors.New("connection refused")
	svc := services.NewUsageService(store, logger.NewNop())

	assert.NotPanics(t, func() {
		svc.Record(services.UsageEvent{
			UserID:      uuid.New(),
			ServiceType: models.ServiceSearch,
			Model:       "tavily-search",
			APICalls:    1,
		})
	})
	assert.Empty(t, store.usage)
}
