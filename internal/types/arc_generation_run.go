package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

const (
  RunModeAuto       = "auto"
  RunModeRegenerate = "regenerate"

  RunStatusQueued    = "queued"
  RunStatusRunning   = "running"
  RunStatusCompleted = "completed"
  RunStatusFailed    = "failed"

  StepStatusPending    = "pending"
  StepStatusGenerating = "generating"
  StepStatusCompleted  = "completed"
  StepStatusError      = "error"
)

// GenerationStep is per-run process state, one array per run, serialized
// into the run row's steps column. A step with no feasible work completes
// vacuously (pending -> completed, no data, no error).
type GenerationStep struct {
  ID     string `json:"id"`
  Label  string `json:"label"`
  Status string `json:"status"`
  Error  string `json:"error,omitempty"`
  // Skipped marks a vacuous completion so "nothing to do" stays
  // distinguishable from "did the work".
  Skipped bool `json:"skipped,omitempty"`
}

// ArcGenerationRun records one orchestrated generation pass over an arc,
// Mode A (auto) or Mode B (regenerate). Progress and current_step are
// advisory for UI display; control flow never reads them back.
type ArcGenerationRun struct {
  ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ArcID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"arc_id"`
  ActorID       uuid.UUID      `gorm:"type:uuid;not null" json:"actor_id"`
  Mode          string         `gorm:"column:mode;not null" json:"mode"`
  Status        string         `gorm:"column:status;not null" json:"status"`
  Progress      int            `gorm:"column:progress;not null;default:0" json:"progress"`
  CurrentStep   string         `gorm:"column:current_step" json:"current_step,omitempty"`
  Steps         datatypes.JSON `gorm:"type:jsonb;column:steps" json:"steps,omitempty"`
  SectionErrors datatypes.JSON `gorm:"type:jsonb;column:section_errors" json:"section_errors,omitempty"`
  Error         string         `gorm:"column:error" json:"error,omitempty"`
  CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  CompletedAt   *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (ArcGenerationRun) TableName() string {
  return "arc_generation_run"
}
