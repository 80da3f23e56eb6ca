package models

import (
	"encoding/json"
	"time"
)

type ProjectResponse struct {
	ID           string    `json:"project_id"`
	Topic        string    `json:"topic"`
	Status       string    `json:"status"`
	CurrentStage string    `json:"current_stage"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type ProjectDetailResponse struct {
	ID           string                `json:"project_id"`
	Topic        string                `json:"topic"`
	Status       string                `json:"status"`
	CurrentStage string                `json:"current_stage"`
	Progress     ProgressResponse      `json:"progress"`
	Results      []StageResultResponse `json:"results"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

type ProgressResponse struct {
	Research   bool      `json:"research"`
	Script     bool      `json:"script"`
	Characters bool      `json:"characters"`
	Audio      bool      `json:"audio"`
	Video      bool      `json:"video"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type StageResultResponse struct {
	ID           string          `json:"id"`
	Stage        string          `json:"stage"`
	Status       string          `json:"status"`
	Content      json.RawMessage `json:"content,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type StageResultListResponse struct {
	Results []StageResultResponse `json:"results"`
}

type ServiceUsageResponse struct {
	ServiceType  string  `json:"service_type"`
	APICalls     int64   `json:"api_calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

type UsageSummaryResponse struct {
	TotalCalls int64                  `json:"total_calls"`
	TotalCost  float64                `json:"total_cost"`
	ByService  []ServiceUsageResponse `json:"by_service"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
