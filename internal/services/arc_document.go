package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/preprod"
  "github.com/showforge/preprod-backend/internal/repos"
  "github.com/showforge/preprod-backend/internal/sse"
  "github.com/showforge/preprod-backend/internal/types"
)

// ArcDocumentService owns every write to the arc document. Writes are a
// shallow merge of named sections into the row (last writer wins, no
// version check) followed by a live-update broadcast on the arc channel.
type ArcDocumentService interface {
  GetArc(ctx context.Context, arcID uuid.UUID) (*types.ArcPreProduction, error)
  EnsureArc(ctx context.Context, seriesID uuid.UUID, ownerID uuid.UUID, arcIndex int, arcTitle string, episodeNumbers []int) (*types.ArcPreProduction, error)
  ApplySections(ctx context.Context, arcID uuid.UUID, sections map[string]any, actorID uuid.UUID) error
  SelectSuggestion(ctx context.Context, arcID uuid.UUID, groupID string, suggestionID string, actorID uuid.UUID) (*preprod.LocationsDoc, error)
  UpdateLocationGroups(ctx context.Context, arcID uuid.UUID, groups []preprod.LocationGroup, actorID uuid.UUID) (*preprod.LocationsDoc, error)
  SectionEmpty(arc *types.ArcPreProduction, section string) bool
}

type arcDocumentService struct {
  db      *gorm.DB
  log     *logger.Logger
  arcRepo repos.ArcRepo
  emit    SSEEmitter
}

func NewArcDocumentService(db *gorm.DB, baseLog *logger.Logger, arcRepo repos.ArcRepo, emit SSEEmitter) ArcDocumentService {
  return &arcDocumentService{
    db:      db,
    log:     baseLog.With("service", "ArcDocumentService"),
    arcRepo: arcRepo,
    emit:    emit,
  }
}

func (s *arcDocumentService) GetArc(ctx context.Context, arcID uuid.UUID) (*types.ArcPreProduction, error) {
  return s.arcRepo.GetByID(ctx, nil, arcID)
}

func (s *arcDocumentService) EnsureArc(ctx context.Context, seriesID uuid.UUID, ownerID uuid.UUID, arcIndex int, arcTitle string, episodeNumbers []int) (*types.ArcPreProduction, error) {
  existing, err := s.arcRepo.GetBySeriesArc(ctx, nil, seriesID, arcIndex)
  if err != nil {
    return nil, fmt.Errorf("load arc: %w", err)
  }
  if existing != nil {
    return existing, nil
  }
  nums, err := json.Marshal(episodeNumbers)
  if err != nil {
    return nil, err
  }
  arc := &types.ArcPreProduction{
    ID:             uuid.New(),
    SeriesID:       seriesID,
    OwnerID:        ownerID,
    ArcIndex:       arcIndex,
    ArcTitle:       arcTitle,
    EpisodeNumbers: datatypes.JSON(nums),
  }
  created, err := s.arcRepo.Create(ctx, nil, arc)
  if err != nil {
    return nil, fmt.Errorf("create arc: %w", err)
  }
  return created, nil
}

func (s *arcDocumentService) ApplySections(ctx context.Context, arcID uuid.UUID, sections map[string]any, actorID uuid.UUID) error {
  if len(sections) == 0 {
    return nil
  }
  columns := map[string]interface{}{}
  payloads := map[string]any{}
  names := make([]string, 0, len(sections))
  for name, payload := range sections {
    column, ok := types.SectionColumn(name)
    if !ok {
      return fmt.Errorf("unknown arc section %q", name)
    }
    raw, err := json.Marshal(payload)
    if err != nil {
      return fmt.Errorf("encode section %q: %w", name, err)
    }
    // Every locations write re-derives the cost rollup, so a direct edit
    // of cost fields through the generic patch path can never persist a
    // rollup that is stale against its groups.
    if name == types.SectionLocations {
      raw, err = withFreshRollup(raw)
      if err != nil {
        return fmt.Errorf("section %q: %w", name, err)
      }
      payload = json.RawMessage(raw)
    }
    columns[column] = datatypes.JSON(raw)
    payloads[name] = payload
    names = append(names, name)
  }
  if err := s.arcRepo.UpdateSections(ctx, nil, arcID, columns); err != nil {
    return fmt.Errorf("update arc sections: %w", err)
  }
  for _, name := range names {
    s.emit.Emit(ctx, sse.SSEMessage{
      Channel: sse.ArcChannel(arcID),
      Event:   sse.SSEEventArcSectionUpdated,
      Data: map[string]any{
        "arc_id":  arcID,
        "section": name,
        "payload": payloads[name],
        "actor":   actorID,
      },
    })
  }
  return nil
}

// withFreshRollup decodes a locations payload and replaces its cost rollup
// with one recomputed from the groups it carries.
func withFreshRollup(raw []byte) ([]byte, error) {
  doc := &preprod.LocationsDoc{}
  if err := json.Unmarshal(raw, doc); err != nil {
    return nil, fmt.Errorf("decode locations payload: %w", err)
  }
  rollup := preprod.ComputeCostRollup(doc.Groups())
  doc.CostRollup = &rollup
  return json.Marshal(doc)
}

// ArcLocations decodes the locations section, tolerating both the grouped
// and the legacy flat layout. A missing section decodes to an empty doc.
func ArcLocations(arc *types.ArcPreProduction) (*preprod.LocationsDoc, error) {
  doc := &preprod.LocationsDoc{}
  if arc == nil || len(arc.Locations) == 0 {
    return doc, nil
  }
  if err := json.Unmarshal(arc.Locations, doc); err != nil {
    return nil, fmt.Errorf("decode locations section: %w", err)
  }
  return doc, nil
}

func (s *arcDocumentService) SelectSuggestion(ctx context.Context, arcID uuid.UUID, groupID string, suggestionID string, actorID uuid.UUID) (*preprod.LocationsDoc, error) {
  arc, err := s.arcRepo.GetByID(ctx, nil, arcID)
  if err != nil {
    return nil, err
  }
  if arc == nil {
    return nil, fmt.Errorf("arc %s not found", arcID)
  }
  doc, err := ArcLocations(arc)
  if err != nil {
    return nil, err
  }

  groups := doc.Groups()
  found := false
  for i := range groups {
    if groups[i].ID != groupID {
      continue
    }
    for _, sug := range groups[i].ShootingLocationSuggestions {
      if sug.ID == suggestionID {
        groups[i].SelectedSuggestionID = suggestionID
        found = true
        break
      }
    }
    if !found {
      return nil, fmt.Errorf("suggestion %q not found in location group %q", suggestionID, groupID)
    }
    break
  }
  if !found {
    return nil, fmt.Errorf("location group %q not found", groupID)
  }

  return s.persistGroups(ctx, arcID, doc, groups, actorID)
}

func (s *arcDocumentService) UpdateLocationGroups(ctx context.Context, arcID uuid.UUID, groups []preprod.LocationGroup, actorID uuid.UUID) (*preprod.LocationsDoc, error) {
  arc, err := s.arcRepo.GetByID(ctx, nil, arcID)
  if err != nil {
    return nil, err
  }
  if arc == nil {
    return nil, fmt.Errorf("arc %s not found", arcID)
  }
  doc, err := ArcLocations(arc)
  if err != nil {
    return nil, err
  }
  return s.persistGroups(ctx, arcID, doc, groups, actorID)
}

// persistGroups stores the groups in the grouped layout (migrating away
// from the legacy flat array) and recomputes the rollup before writing.
func (s *arcDocumentService) persistGroups(ctx context.Context, arcID uuid.UUID, doc *preprod.LocationsDoc, groups []preprod.LocationGroup, actorID uuid.UUID) (*preprod.LocationsDoc, error) {
  rollup := preprod.ComputeCostRollup(groups)
  now := time.Now()

  doc.LocationGroups = groups
  doc.Locations = nil
  doc.CostRollup = &rollup
  doc.LastUpdated = &now

  if err := s.ApplySections(ctx, arcID, map[string]any{types.SectionLocations: doc}, actorID); err != nil {
    return nil, err
  }
  return doc, nil
}

// SectionEmpty reports whether an arc-level section holds no usable data.
// Malformed payloads count as non-empty so aggregation can never clobber
// something a user may have written.
func (s *arcDocumentService) SectionEmpty(arc *types.ArcPreProduction, section string) bool {
  return SectionEmpty(arc, section)
}

func SectionEmpty(arc *types.ArcPreProduction, section string) bool {
  if arc == nil {
    return true
  }
  raw := arc.Section(section)
  if len(raw) == 0 || string(raw) == "null" {
    return true
  }
  decode := func(v interface{ IsEmpty() bool }) bool {
    if err := json.Unmarshal(raw, v); err != nil {
      return false
    }
    return v.IsEmpty()
  }
  switch section {
  case types.SectionCasting:
    return decode(&preprod.CastingDoc{})
  case types.SectionShootingSchedule:
    return decode(&preprod.ScheduleDoc{})
  case types.SectionEquipment:
    return decode(&preprod.EquipmentDoc{})
  case types.SectionLocations:
    return decode(&preprod.LocationsDoc{})
  case types.SectionPropsWardrobe:
    return decode(&preprod.PropsWardrobeDoc{})
  case types.SectionPermits:
    return decode(&preprod.PermitsDoc{})
  case types.SectionBudget:
    return decode(&preprod.BudgetDoc{})
  case types.SectionMarketing:
    return decode(&preprod.MarketingDoc{})
  default:
    return false
  }
}
