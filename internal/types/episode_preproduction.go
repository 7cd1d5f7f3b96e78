package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// EpisodePreProduction is the per-episode planning document. Every section
// column is an independently optional jsonb sub-document; per-episode
// workflows write them one at a time.
type EpisodePreProduction struct {
  ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  SeriesID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uniq_series_episode,priority:1" json:"series_id"`
  OwnerID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
  EpisodeNumber   int            `gorm:"column:episode_number;not null;uniqueIndex:uniq_series_episode,priority:2" json:"episode_number"`
  ScriptBreakdown datatypes.JSON `gorm:"type:jsonb;column:script_breakdown" json:"script_breakdown,omitempty"`
  Scripts         datatypes.JSON `gorm:"type:jsonb;column:scripts" json:"scripts,omitempty"`
  Casting         datatypes.JSON `gorm:"type:jsonb;column:casting" json:"casting,omitempty"`
  PropsWardrobe   datatypes.JSON `gorm:"type:jsonb;column:props_wardrobe" json:"props_wardrobe,omitempty"`
  Equipment       datatypes.JSON `gorm:"type:jsonb;column:equipment" json:"equipment,omitempty"`
  Locations       datatypes.JSON `gorm:"type:jsonb;column:locations" json:"locations,omitempty"`
  Permits         datatypes.JSON `gorm:"type:jsonb;column:permits" json:"permits,omitempty"`
  CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (EpisodePreProduction) TableName() string {
  return "episode_preproduction"
}
