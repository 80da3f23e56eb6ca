package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProjectStatusCreated    = "created"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusFailed     = "failed"
)

type Project struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Topic        string
	Status       string
	CurrentStage Stage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProgressRecord holds one completion flag per pipeline stage. Exactly one
// exists per project, created in the same transaction as the project row.
// Flags only ever transition false to true.
type ProgressRecord struct {
	ProjectID  uuid.UUID
	Research   bool
	Script     bool
	Characters bool
	Audio      bool
	Video      bool
	UpdatedAt  time.Time
}

func (p *ProgressRecord) StageDone(stage Stage) bool {
	switch stage {
	case StageResearch:
		return p.Research
	case StageScript:
		return p.Script
	case StageCharacters:
		return p.Characters
	case StageAudio:
		return p.Audio
	case StageVideo:
		return p.Video
	default:
		return false
	}
}
