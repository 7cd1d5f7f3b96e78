package preprod

import (
  "time"
)

// Document shapes shared by the per-episode and per-arc pre-production
// records. These are the JSON payloads stored in the jsonb section columns;
// the gorm rows themselves live in internal/types.

type Scene struct {
  SceneNumber      int      `json:"sceneNumber"`
  Title            string   `json:"title,omitempty"`
  Location         string   `json:"location,omitempty"`
  InteriorExterior string   `json:"interiorExterior,omitempty"`
  TimeOfDay        string   `json:"timeOfDay,omitempty"`
  Cast             []string `json:"cast,omitempty"`
  Props            []string `json:"props,omitempty"`
  Description      string   `json:"description,omitempty"`
}

// TaggedScene is a breakdown scene annotated with the episode it came from.
// Arc-level location generation consumes these.
type TaggedScene struct {
  Scene
  EpisodeNumber int `json:"episodeNumber"`
}

type ScriptBreakdown struct {
  Scenes []Scene `json:"scenes"`
}

type Scripts struct {
  FullScript string `json:"fullScript"`
}

type CastMember struct {
  ID            string  `json:"id,omitempty"`
  CharacterName string  `json:"characterName"`
  ActorName     string  `json:"actorName,omitempty"`
  Role          string  `json:"role,omitempty"`
  DayRate       float64 `json:"dayRate,omitempty"`
  Notes         string  `json:"notes,omitempty"`
  // Episodes is filled by arc-level aggregation only.
  Episodes []int `json:"episodes,omitempty"`
}

type CastingDoc struct {
  CastMembers []CastMember `json:"castMembers"`
  Generated   bool         `json:"generated,omitempty"`
  LastUpdated *time.Time   `json:"lastUpdated,omitempty"`
}

func (d *CastingDoc) IsEmpty() bool {
  return d == nil || len(d.CastMembers) == 0
}

type EquipmentItem struct {
  Name         string  `json:"name"`
  Category     string  `json:"category,omitempty"`
  Quantity     int     `json:"quantity,omitempty"`
  RentalSource string  `json:"rentalSource,omitempty"`
  DailyCost    float64 `json:"dailyCost,omitempty"`
  Notes        string  `json:"notes,omitempty"`
}

// EquipmentDoc carries both historical schemas: the categorized one
// (camera/lighting/audio/grip/other) and the legacy flat items array.
// Normalize folds the flat form into categories before any aggregation.
type EquipmentDoc struct {
  Camera   []EquipmentItem `json:"camera,omitempty"`
  Lighting []EquipmentItem `json:"lighting,omitempty"`
  Audio    []EquipmentItem `json:"audio,omitempty"`
  Grip     []EquipmentItem `json:"grip,omitempty"`
  Other    []EquipmentItem `json:"other,omitempty"`

  Items []EquipmentItem `json:"items,omitempty"`

  Generated   bool       `json:"generated,omitempty"`
  LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

func (d *EquipmentDoc) ItemCount() int {
  if d == nil {
    return 0
  }
  return len(d.Camera) + len(d.Lighting) + len(d.Audio) + len(d.Grip) + len(d.Other) + len(d.Items)
}

func (d *EquipmentDoc) IsEmpty() bool {
  return d.ItemCount() == 0
}

type PermitRecord struct {
  Type         string  `json:"type"`
  Jurisdiction string  `json:"jurisdiction,omitempty"`
  Status       string  `json:"status,omitempty"`
  Cost         float64 `json:"cost,omitempty"`
  LeadTimeDays int     `json:"leadTimeDays,omitempty"`
  Notes        string  `json:"notes,omitempty"`
  Episodes     []int   `json:"episodes,omitempty"`
}

type PermitsDoc struct {
  Permits     []PermitRecord `json:"permits"`
  Generated   bool           `json:"generated,omitempty"`
  LastUpdated *time.Time     `json:"lastUpdated,omitempty"`
}

func (d *PermitsDoc) IsEmpty() bool {
  return d == nil || len(d.Permits) == 0
}

// CostFields is the nested costBreakdown shape on a suggestion, also used
// for a group's own costEstimate. Pointer fields so "absent" and "zero"
// stay distinguishable for the fallback chain.
type CostFields struct {
  DayRate           *float64 `json:"dayRate,omitempty"`
  PermitCost        *float64 `json:"permitCost,omitempty"`
  DepositAmount     *float64 `json:"depositAmount,omitempty"`
  InsuranceRequired *bool    `json:"insuranceRequired,omitempty"`
}

type ShootingLocationSuggestion struct {
  ID      string `json:"id"`
  Name    string `json:"name,omitempty"`
  Address string `json:"address,omitempty"`

  CostBreakdown *CostFields `json:"costBreakdown,omitempty"`

  // Legacy flat cost fields; estimatedCost was the old name for the day rate.
  EstimatedCost     *float64 `json:"estimatedCost,omitempty"`
  PermitCost        *float64 `json:"permitCost,omitempty"`
  DepositAmount     *float64 `json:"depositAmount,omitempty"`
  InsuranceRequired *bool    `json:"insuranceRequired,omitempty"`

  Notes string `json:"notes,omitempty"`
}

type LocationGroup struct {
  ID                 string   `json:"id"`
  ParentLocationName string   `json:"parentLocationName"`
  Type               string   `json:"type,omitempty"`
  SubLocations       []string `json:"subLocations,omitempty"`

  // EpisodeUsage maps episode number -> scene numbers using that location.
  EpisodeUsage map[int][]int `json:"episodeUsage,omitempty"`

  ShootingLocationSuggestions []ShootingLocationSuggestion `json:"shootingLocationSuggestions,omitempty"`
  SelectedSuggestionID        string                       `json:"selectedSuggestionId,omitempty"`
  Status                      string                       `json:"status,omitempty"`

  CostEstimate *CostFields `json:"costEstimate,omitempty"`
}

type CostRollupEntry struct {
  LocationID           string  `json:"locationId"`
  SelectedSuggestionID string  `json:"selectedSuggestionId,omitempty"`
  DayRate              float64 `json:"dayRate"`
  PermitCost           float64 `json:"permitCost"`
  DepositAmount        float64 `json:"depositAmount"`
  InsuranceRequired    bool    `json:"insuranceRequired"`
  Total                float64 `json:"total"`
}

type CostRollup struct {
  PerLocation []CostRollupEntry `json:"perLocation"`
  ArcTotal    float64           `json:"arcTotal"`
}

type LocationsDoc struct {
  LocationGroups []LocationGroup `json:"locationGroups,omitempty"`
  CostRollup     *CostRollup     `json:"costRollup,omitempty"`

  // PendingOptions holds generated location groups awaiting user review;
  // auto-generation writes here rather than finalizing a selection.
  PendingOptions []LocationGroup `json:"pendingOptions,omitempty"`

  // Locations is the legacy flat array written before location groups existed.
  Locations []LocationGroup `json:"locations,omitempty"`

  Generated   bool       `json:"generated,omitempty"`
  LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// Groups returns the effective location groups, reading the legacy flat
// array when the grouped form is absent.
func (d *LocationsDoc) Groups() []LocationGroup {
  if d == nil {
    return nil
  }
  if len(d.LocationGroups) > 0 {
    return d.LocationGroups
  }
  return d.Locations
}

func (d *LocationsDoc) IsEmpty() bool {
  return d == nil || (len(d.LocationGroups) == 0 && len(d.Locations) == 0 && len(d.PendingOptions) == 0)
}

type ScheduleDay struct {
  Day           int    `json:"day"`
  Date          string `json:"date,omitempty"`
  EpisodeNumber int    `json:"episodeNumber,omitempty"`
  Scenes        []int  `json:"scenes,omitempty"`
  Location      string `json:"location,omitempty"`
  Notes         string `json:"notes,omitempty"`
}

type ScheduleDoc struct {
  Days        []ScheduleDay `json:"days"`
  Generated   bool          `json:"generated,omitempty"`
  LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
}

func (d *ScheduleDoc) IsEmpty() bool {
  return d == nil || len(d.Days) == 0
}

type PropItem struct {
  Name     string `json:"name"`
  Scenes   []int  `json:"scenes,omitempty"`
  Source   string `json:"source,omitempty"`
  Status   string `json:"status,omitempty"`
  Episodes []int  `json:"episodes,omitempty"`
}

type WardrobeItem struct {
  Character string `json:"character"`
  Outfit    string `json:"outfit"`
  Scenes    []int  `json:"scenes,omitempty"`
  Status    string `json:"status,omitempty"`
}

type PropsWardrobeDoc struct {
  Props       []PropItem     `json:"props,omitempty"`
  Wardrobe    []WardrobeItem `json:"wardrobe,omitempty"`
  Generated   bool           `json:"generated,omitempty"`
  LastUpdated *time.Time     `json:"lastUpdated,omitempty"`
}

func (d *PropsWardrobeDoc) IsEmpty() bool {
  return d == nil || (len(d.Props) == 0 && len(d.Wardrobe) == 0)
}

type BudgetLine struct {
  Category string  `json:"category"`
  Label    string  `json:"label,omitempty"`
  Amount   float64 `json:"amount"`
}

type BudgetDoc struct {
  Lines       []BudgetLine `json:"lines,omitempty"`
  Total       float64      `json:"total,omitempty"`
  Generated   bool         `json:"generated,omitempty"`
  LastUpdated *time.Time   `json:"lastUpdated,omitempty"`
}

func (d *BudgetDoc) IsEmpty() bool {
  return d == nil || (len(d.Lines) == 0 && d.Total == 0)
}

type MarketingDoc struct {
  Logline        string     `json:"logline,omitempty"`
  TargetAudience string     `json:"targetAudience,omitempty"`
  Beats          []string   `json:"beats,omitempty"`
  Generated      bool       `json:"generated,omitempty"`
  LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
}

func (d *MarketingDoc) IsEmpty() bool {
  return d == nil || (d.Logline == "" && d.TargetAudience == "" && len(d.Beats) == 0)
}

// EpisodeDoc is the per-episode pre-production document. Every sub-document
// is independently optional; absent means that workflow has not run yet.
type EpisodeDoc struct {
  EpisodeNumber   int               `json:"episodeNumber"`
  ScriptBreakdown *ScriptBreakdown  `json:"scriptBreakdown,omitempty"`
  Scripts         *Scripts          `json:"scripts,omitempty"`
  Casting         *CastingDoc       `json:"casting,omitempty"`
  PropsWardrobe   *PropsWardrobeDoc `json:"propsWardrobe,omitempty"`
  Equipment       *EquipmentDoc     `json:"equipment,omitempty"`
  Locations       *LocationsDoc     `json:"locations,omitempty"`
  Permits         *PermitsDoc       `json:"permits,omitempty"`
}

// HasBreakdown reports whether the episode has at least one breakdown scene.
func (e *EpisodeDoc) HasBreakdown() bool {
  return e != nil && e.ScriptBreakdown != nil && len(e.ScriptBreakdown.Scenes) > 0
}

// HasFullScript reports whether the episode carries a non-empty full script.
func (e *EpisodeDoc) HasFullScript() bool {
  return e != nil && e.Scripts != nil && e.Scripts.FullScript != ""
}
