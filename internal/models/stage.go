package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stage identifies one of the five fixed pipeline phases.
type Stage string

const (
	StageResearch   Stage = "research"
	StageScript     Stage = "script"
	StageCharacters Stage = "characters"
	StageAudio      Stage = "audio"
	StageVideo      Stage = "video"
)

// StageOrder is the fixed pipeline sequence. The project's current-stage
// pointer only ever advances along this order.
var StageOrder = []Stage{StageResearch, StageScript, StageCharacters, StageAudio, StageVideo}

func ParseStage(s string) (Stage, bool) {
	stage := Stage(s)
	for _, known := range StageOrder {
		if stage == known {
			return stage, true
		}
	}
	return "", false
}

// Next returns the stage after s in the pipeline order, or false when s is
// the final stage.
func (s Stage) Next() (Stage, bool) {
	for i, known := range StageOrder {
		if s == known && i+1 < len(StageOrder) {
			return StageOrder[i+1], true
		}
	}
	return "", false
}

func (s Stage) String() string {
	return string(s)
}

// ServiceName is the human-readable name used when classifying failures from
// this stage's provider.
func (s Stage) ServiceName() string {
	switch s {
	case StageResearch:
		return "Research"
	case StageScript:
		return "Script Generation"
	case StageCharacters:
		return "Character Generation"
	case StageAudio:
		return "Audio Generation"
	case StageVideo:
		return "Video Generation"
	default:
		return string(s)
	}
}

const (
	StageStatusCompleted = "completed"
	StageStatusFailed    = "failed"
)

// StageResult is one append-only log entry per stage invocation. The most
// recent completed entry for a stage is the authoritative output consumed by
// later stages.
type StageResult struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	Stage        Stage
	Status       string
	Content      json.RawMessage
	ErrorCode    sql.NullString
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}
