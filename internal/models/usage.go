package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Service types for usage records and the cost rate table.
const (
	ServiceSearch = "search"
	ServiceLLM    = "llm"
	ServiceImage  = "image"
	ServiceTTS    = "tts"
	ServiceVideo  = "video"
)

// UsageRecord captures one external-API invocation attempt, success or
// failure. Written fire-and-forget; never mutated.
type UsageRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ProjectID    uuid.NullUUID
	ServiceType  string
	Model        string
	APICalls     int
	InputTokens  int
	OutputTokens int
	DurationMS   int64
	Cost         float64
	Success      bool
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}

// UsageSummaryRow is one aggregated line of a per-user usage query.
type UsageSummaryRow struct {
	ServiceType  string
	APICalls     int64
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}
