package services

import (
  "context"
  "encoding/json"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/preprod"
  "github.com/showforge/preprod-backend/internal/repos"
  "github.com/showforge/preprod-backend/internal/sse"
  "github.com/showforge/preprod-backend/internal/types"
)

type EpisodeService interface {
  GetEpisode(ctx context.Context, seriesID uuid.UUID, episodeNumber int) (*types.EpisodePreProduction, error)
  // LoadEpisodeDocs fetches the range in one query and decodes each row.
  // Load or decode failures are logged and the affected episodes skipped;
  // they simply contribute nothing to aggregation.
  LoadEpisodeDocs(ctx context.Context, seriesID uuid.UUID, episodeNumbers []int) (map[int]*preprod.EpisodeDoc, error)
  UpsertSection(ctx context.Context, seriesID uuid.UUID, ownerID uuid.UUID, episodeNumber int, section string, payload json.RawMessage) error
}

type episodeService struct {
  db          *gorm.DB
  log         *logger.Logger
  episodeRepo repos.EpisodeRepo
  emit        SSEEmitter
}

func NewEpisodeService(db *gorm.DB, baseLog *logger.Logger, episodeRepo repos.EpisodeRepo, emit SSEEmitter) EpisodeService {
  return &episodeService{
    db:          db,
    log:         baseLog.With("service", "EpisodeService"),
    episodeRepo: episodeRepo,
    emit:        emit,
  }
}

func (s *episodeService) GetEpisode(ctx context.Context, seriesID uuid.UUID, episodeNumber int) (*types.EpisodePreProduction, error) {
  return s.episodeRepo.GetByEpisodeNumber(ctx, nil, seriesID, episodeNumber)
}

// DecodeEpisode converts a row into the domain document. A column that
// fails to decode is dropped (treated as absent) rather than failing the
// whole episode.
func DecodeEpisode(log *logger.Logger, row *types.EpisodePreProduction) *preprod.EpisodeDoc {
  if row == nil {
    return nil
  }
  doc := &preprod.EpisodeDoc{EpisodeNumber: row.EpisodeNumber}

  decode := func(name string, raw datatypes.JSON, out any) {
    if len(raw) == 0 || string(raw) == "null" {
      return
    }
    if err := json.Unmarshal(raw, out); err != nil && log != nil {
      log.Warn("Dropping malformed episode section", "episode", row.EpisodeNumber, "section", name, "error", err)
    }
  }

  breakdown := &preprod.ScriptBreakdown{}
  decode("scriptBreakdown", row.ScriptBreakdown, breakdown)
  if len(breakdown.Scenes) > 0 {
    doc.ScriptBreakdown = breakdown
  }
  scripts := &preprod.Scripts{}
  decode("scripts", row.Scripts, scripts)
  if scripts.FullScript != "" {
    doc.Scripts = scripts
  }
  casting := &preprod.CastingDoc{}
  decode("casting", row.Casting, casting)
  if !casting.IsEmpty() {
    doc.Casting = casting
  }
  props := &preprod.PropsWardrobeDoc{}
  decode("propsWardrobe", row.PropsWardrobe, props)
  if !props.IsEmpty() {
    doc.PropsWardrobe = props
  }
  equipment := &preprod.EquipmentDoc{}
  decode("equipment", row.Equipment, equipment)
  if !equipment.IsEmpty() {
    doc.Equipment = equipment
  }
  locations := &preprod.LocationsDoc{}
  decode("locations", row.Locations, locations)
  if !locations.IsEmpty() {
    doc.Locations = locations
  }
  permits := &preprod.PermitsDoc{}
  decode("permits", row.Permits, permits)
  if !permits.IsEmpty() {
    doc.Permits = permits
  }
  return doc
}

func (s *episodeService) LoadEpisodeDocs(ctx context.Context, seriesID uuid.UUID, episodeNumbers []int) (map[int]*preprod.EpisodeDoc, error) {
  docs := map[int]*preprod.EpisodeDoc{}
  rows, err := s.episodeRepo.GetByEpisodeNumbers(ctx, nil, seriesID, episodeNumbers)
  if err != nil {
    s.log.Warn("Episode load failed, excluding range from aggregation", "episodes", episodeNumbers, "error", err)
    return docs, nil
  }
  for _, row := range rows {
    if row == nil {
      continue
    }
    docs[row.EpisodeNumber] = DecodeEpisode(s.log, row)
  }
  return docs, nil
}

func (s *episodeService) UpsertSection(ctx context.Context, seriesID uuid.UUID, ownerID uuid.UUID, episodeNumber int, section string, payload json.RawMessage) error {
  column, ok := episodeSectionColumn(section)
  if !ok {
    return fmt.Errorf("unknown episode section %q", section)
  }
  if err := s.episodeRepo.UpsertSection(ctx, nil, seriesID, ownerID, episodeNumber, column, datatypes.JSON(payload)); err != nil {
    return fmt.Errorf("upsert episode section: %w", err)
  }
  s.emit.Emit(ctx, sse.SSEMessage{
    Channel: "series:" + seriesID.String(),
    Event:   sse.SSEEventEpisodeSectionUpdated,
    Data: map[string]any{
      "series_id": seriesID,
      "episode":   episodeNumber,
      "section":   section,
    },
  })
  return nil
}

func episodeSectionColumn(section string) (string, bool) {
  switch section {
  case "scriptBreakdown":
    return "script_breakdown", true
  case "scripts":
    return "scripts", true
  case "casting":
    return "casting", true
  case "propsWardrobe":
    return "props_wardrobe", true
  case "equipment":
    return "equipment", true
  case "locations":
    return "locations", true
  case "permits":
    return "permits", true
  default:
    return "", false
  }
}
