package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

type SeriesBible struct {
  ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  SeriesID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"series_id"`
  OwnerID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"owner_id"`
  Title       string          `gorm:"column:title;not null" json:"title"`
  Logline     string          `gorm:"column:logline" json:"logline,omitempty"`
  // Arcs is the ordered list of arc outlines: [{"title": ..., "episodeCount": N}, ...]
  Arcs        datatypes.JSON  `gorm:"type:jsonb;column:arcs" json:"arcs"`
  CreatedAt   time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (SeriesBible) TableName() string {
  return "series_bible"
}

type ArcOutline struct {
  Title        string `json:"title"`
  EpisodeCount int    `json:"episodeCount"`
}
