package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/models"
)

// Model identifiers used when a provider does not report one itself.
const (
	modelTavilySearch       = "tavily-search"
	modelElevenMultilingual = "eleven_multilingual_v2"
	modelRender             = "render-1080p"
)

type rateKey struct {
	serviceType string
	model       string
}

// rate holds per-1000-token input/output prices plus a flat per-request
// price, in USD.
type rate struct {
	inputPer1K  float64
	outputPer1K float64
	perRequest  float64
}

var rateTable = map[rateKey]rate{
	{models.ServiceSearch, modelTavilySearch}:    {perRequest: 0.005},
	{models.ServiceLLM, "gpt-4o-mini"}:           {inputPer1K: 0.00015, outputPer1K: 0.0006},
	{models.ServiceLLM, "gpt-4o"}:                {inputPer1K: 0.0025, outputPer1K: 0.01},
	{models.ServiceImage, "dall-e-3"}:            {perRequest: 0.04},
	{models.ServiceTTS, modelElevenMultilingual}: {inputPer1K: 0.30},
	{models.ServiceVideo, modelRender}:           {perRequest: 0.05},
}

// Cost computes the dollar cost of an invocation from the rate table. An
// unknown (service type, model) pair costs zero rather than erroring.
func Cost(serviceType, model string, inputTokens, outputTokens, apiCalls int) float64 {
	r, ok := rateTable[rateKey{serviceType, model}]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000*r.inputPer1K +
		float64(outputTokens)/1000*r.outputPer1K +
		float64(apiCalls)*r.perRequest
}

// UsageEvent describes one external-API invocation attempt.
type UsageEvent struct {
	UserID       uuid.UUID
	ProjectID    uuid.UUID
	ServiceType  string
	Model        string
	APICalls     int
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Err          error
}

// UsageService writes one usage row per provider invocation attempt,
// success or failure. Recording is fire-and-forget: its own failures are
// logged and never surfaced to the pipeline.
type UsageService struct {
	store Store
	log   *logger.Logger
}

func NewUsageService(store Store, log *logger.Logger) *UsageService {
	return &UsageService{
		store: store,
		log:   log.With("component", "usage"),
	}
}

func (s *UsageService) Record(ev UsageEvent) {
	record := &models.UsageRecord{
		UserID:       ev.UserID,
		ProjectID:    uuid.NullUUID{UUID: ev.ProjectID, Valid: ev.ProjectID != uuid.Nil},
		ServiceType:  ev.ServiceType,
		Model:        ev.Model,
		APICalls:     ev.APICalls,
		InputTokens:  ev.InputTokens,
		OutputTokens: ev.OutputTokens,
		DurationMS:   ev.Duration.Milliseconds(),
		Cost:         Cost(ev.ServiceType, ev.Model, ev.InputTokens, ev.OutputTokens, ev.APICalls),
		Success:      ev.Err == nil,
	}
	if ev.Err != nil {
		record.ErrorMessage = sql.NullString{String: ev.Err.Error(), Valid: true}
	}

	// The stage's context may already be cancelled when a failed attempt is
	// recorded, so the write gets its own short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.CreateUsageRecord(ctx, record); err != nil {
		s.log.Warn("failed to record usage",
			"user_id", ev.UserID.String(),
			"service_type", ev.ServiceType,
			"model", ev.Model,
			"error", err)
	}
}
