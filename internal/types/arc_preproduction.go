package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// Section names shared by the arc document, the aggregation decision and
// both generation modes. These are also the jsonb column names.
const (
  SectionCasting          = "casting"
  SectionShootingSchedule = "shootingSchedule"
  SectionEquipment        = "equipment"
  SectionLocations        = "locations"
  SectionPropsWardrobe    = "propsWardrobe"
  SectionPermits          = "permits"
  SectionBudget           = "budget"
  SectionMarketing        = "marketing"
)

// AllSections in tab order. Auto-generation triggers only when every one of
// these is empty on the arc document.
var AllSections = []string{
  SectionCasting,
  SectionShootingSchedule,
  SectionEquipment,
  SectionLocations,
  SectionPropsWardrobe,
  SectionPermits,
  SectionBudget,
  SectionMarketing,
}

// ArcPreProduction is the arc-level planning document: one row per
// (series, arc index), section columns mutated independently through the
// single ApplySections write path. Last writer wins; there is no version
// column on purpose.
type ArcPreProduction struct {
  ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  SeriesID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uniq_series_arc,priority:1" json:"series_id"`
  OwnerID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
  ArcIndex         int            `gorm:"column:arc_index;not null;uniqueIndex:uniq_series_arc,priority:2" json:"arc_index"`
  ArcTitle         string         `gorm:"column:arc_title" json:"arc_title,omitempty"`
  // EpisodeNumbers is the authoritative membership list for the arc.
  EpisodeNumbers   datatypes.JSON `gorm:"type:jsonb;column:episode_numbers" json:"episode_numbers"`
  Casting          datatypes.JSON `gorm:"type:jsonb;column:casting" json:"casting,omitempty"`
  ShootingSchedule datatypes.JSON `gorm:"type:jsonb;column:shooting_schedule" json:"shooting_schedule,omitempty"`
  Equipment        datatypes.JSON `gorm:"type:jsonb;column:equipment" json:"equipment,omitempty"`
  Locations        datatypes.JSON `gorm:"type:jsonb;column:locations" json:"locations,omitempty"`
  PropsWardrobe    datatypes.JSON `gorm:"type:jsonb;column:props_wardrobe" json:"props_wardrobe,omitempty"`
  Permits          datatypes.JSON `gorm:"type:jsonb;column:permits" json:"permits,omitempty"`
  Budget           datatypes.JSON `gorm:"type:jsonb;column:budget" json:"budget,omitempty"`
  Marketing        datatypes.JSON `gorm:"type:jsonb;column:marketing" json:"marketing,omitempty"`
  Collaborators    datatypes.JSON `gorm:"type:jsonb;column:collaborators" json:"collaborators,omitempty"`
  CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ArcPreProduction) TableName() string {
  return "arc_preproduction"
}

// Section returns the raw jsonb payload for a named section.
func (a *ArcPreProduction) Section(name string) datatypes.JSON {
  switch name {
  case SectionCasting:
    return a.Casting
  case SectionShootingSchedule:
    return a.ShootingSchedule
  case SectionEquipment:
    return a.Equipment
  case SectionLocations:
    return a.Locations
  case SectionPropsWardrobe:
    return a.PropsWardrobe
  case SectionPermits:
    return a.Permits
  case SectionBudget:
    return a.Budget
  case SectionMarketing:
    return a.Marketing
  default:
    return nil
  }
}

// SectionColumn maps a section name to its database column.
func SectionColumn(name string) (string, bool) {
  switch name {
  case SectionCasting:
    return "casting", true
  case SectionShootingSchedule:
    return "shooting_schedule", true
  case SectionEquipment:
    return "equipment", true
  case SectionLocations:
    return "locations", true
  case SectionPropsWardrobe:
    return "props_wardrobe", true
  case SectionPermits:
    return "permits", true
  case SectionBudget:
    return "budget", true
  case SectionMarketing:
    return "marketing", true
  default:
    return "", false
  }
}
