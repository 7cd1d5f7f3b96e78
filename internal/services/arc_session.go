package services

import (
  "context"
  "encoding/json"
  "fmt"
  "sync"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/preprod"
  "github.com/showforge/preprod-backend/internal/repos"
  "github.com/showforge/preprod-backend/internal/types"
)

// ArcSessionState is what opening an arc workspace returns: the arc row
// after aggregation fill, the episode documents that fed it, and the flags
// the UI needs to decide what to show next.
type ArcSessionState struct {
  Bible    *types.SeriesBible         `json:"bible"`
  Arc      *types.ArcPreProduction    `json:"arc"`
  Episodes map[int]*preprod.EpisodeDoc `json:"-"`
  EpisodeNumbers []int                `json:"episode_numbers"`
  // AutoGenerateStarted is true when this open triggered a Mode A run.
  AutoGenerateStarted bool                     `json:"auto_generate_started"`
  Run                 *types.ArcGenerationRun  `json:"run,omitempty"`
  // SuggestSetupQuestionnaire flags that neither props nor equipment data
  // exists anywhere, so the setup questionnaire is worth offering.
  SuggestSetupQuestionnaire bool `json:"suggest_setup_questionnaire"`
}

type ArcSessionService interface {
  // Open runs the load -> aggregate -> maybe-auto-generate sequence for one
  // arc. Each phase runs at most once per (series, arc) per process; a
  // second concurrent or later open reuses the guard and only reloads.
  Open(ctx context.Context, seriesID uuid.UUID, arcIndex int, actorID uuid.UUID) (*ArcSessionState, error)
}

type arcSessionService struct {
  db        *gorm.DB
  log       *logger.Logger
  bibleRepo repos.SeriesBibleRepo
  episodes  EpisodeService
  arcDoc    ArcDocumentService
  gen       ArcGenerationService

  mu     sync.Mutex
  guards map[string]*sessionGuard
}

// sessionGuard carries the once-flags for one (series, arc) pair. The
// sequencing bugs this prevents: re-running aggregation on every open (which
// would fight the user's edits) and double-triggering auto-generation.
type sessionGuard struct {
  mu                sync.Mutex
  hasRunAggregation bool
  hasCheckedAutoGen bool
  hasSuggestedSetup bool
}

func NewArcSessionService(
  db *gorm.DB,
  baseLog *logger.Logger,
  bibleRepo repos.SeriesBibleRepo,
  episodes EpisodeService,
  arcDoc ArcDocumentService,
  gen ArcGenerationService,
) ArcSessionService {
  return &arcSessionService{
    db:        db,
    log:       baseLog.With("service", "ArcSessionService"),
    bibleRepo: bibleRepo,
    episodes:  episodes,
    arcDoc:    arcDoc,
    gen:       gen,
    guards:    map[string]*sessionGuard{},
  }
}

func (s *arcSessionService) guard(seriesID uuid.UUID, arcIndex int) *sessionGuard {
  key := fmt.Sprintf("%s:%d", seriesID, arcIndex)
  s.mu.Lock()
  defer s.mu.Unlock()
  g, ok := s.guards[key]
  if !ok {
    g = &sessionGuard{}
    s.guards[key] = g
  }
  return g
}

// EpisodeRangeForArc derives an arc's episode numbers from the ordered arc
// outlines: arc i covers the episodes after the first i arcs' episode
// counts. A missing or out-of-range outline is fatal; there is no sensible
// fallback range to guess.
func EpisodeRangeForArc(bible *types.SeriesBible, arcIndex int) ([]int, string, error) {
  if bible == nil || len(bible.Arcs) == 0 {
    return nil, "", fmt.Errorf("series bible has no arc outlines")
  }
  var outlines []types.ArcOutline
  if err := json.Unmarshal(bible.Arcs, &outlines); err != nil {
    return nil, "", fmt.Errorf("decode arc outlines: %w", err)
  }
  if arcIndex < 0 || arcIndex >= len(outlines) {
    return nil, "", fmt.Errorf("arc index %d out of range (series has %d arcs)", arcIndex, len(outlines))
  }
  start := 1
  for i := 0; i < arcIndex; i++ {
    if outlines[i].EpisodeCount <= 0 {
      return nil, "", fmt.Errorf("arc %d has no episode count", i)
    }
    start += outlines[i].EpisodeCount
  }
  count := outlines[arcIndex].EpisodeCount
  if count <= 0 {
    return nil, "", fmt.Errorf("arc %d has no episode count", arcIndex)
  }
  nums := make([]int, 0, count)
  for n := start; n < start+count; n++ {
    nums = append(nums, n)
  }
  return nums, outlines[arcIndex].Title, nil
}

func (s *arcSessionService) Open(ctx context.Context, seriesID uuid.UUID, arcIndex int, actorID uuid.UUID) (*ArcSessionState, error) {
  bible, err := s.bibleRepo.GetBySeriesID(ctx, nil, seriesID)
  if err != nil {
    return nil, fmt.Errorf("load series bible: %w", err)
  }
  if bible == nil {
    return nil, fmt.Errorf("series %s has no bible", seriesID)
  }

  episodeNumbers, arcTitle, err := EpisodeRangeForArc(bible, arcIndex)
  if err != nil {
    return nil, err
  }

  docs, err := s.episodes.LoadEpisodeDocs(ctx, seriesID, episodeNumbers)
  if err != nil {
    return nil, err
  }

  arc, err := s.arcDoc.EnsureArc(ctx, seriesID, actorID, arcIndex, arcTitle, episodeNumbers)
  if err != nil {
    return nil, err
  }

  state := &ArcSessionState{
    Bible:          bible,
    Arc:            arc,
    Episodes:       docs,
    EpisodeNumbers: episodeNumbers,
  }

  g := s.guard(seriesID, arcIndex)
  g.mu.Lock()
  defer g.mu.Unlock()

  if !g.hasRunAggregation {
    g.hasRunAggregation = true
    if err := s.fillFromAggregation(ctx, arc, docs, actorID); err != nil {
      // Aggregation is best effort; the arc still opens.
      s.log.Warn("Aggregation fill failed", "arc_id", arc.ID, "error", err)
    }
    // Re-read so the state reflects whatever aggregation wrote.
    if refreshed, rErr := s.arcDoc.GetArc(ctx, arc.ID); rErr == nil && refreshed != nil {
      arc = refreshed
      state.Arc = refreshed
    }
  }

  if !g.hasCheckedAutoGen {
    g.hasCheckedAutoGen = true
    if allSectionsEmpty(arc) {
      run, genErr := s.gen.StartAutoGenerate(ctx, bible, arc, docs, actorID)
      if genErr != nil {
        s.log.Warn("Auto-generation trigger failed", "arc_id", arc.ID, "error", genErr)
      } else {
        state.AutoGenerateStarted = true
        state.Run = run
      }
    }
  }

  if !g.hasSuggestedSetup {
    if !hasAnySetupData(arc, docs) {
      g.hasSuggestedSetup = true
      state.SuggestSetupQuestionnaire = true
    }
  }

  return state, nil
}

// fillFromAggregation writes each aggregatable section, but only into empty
// slots. User data, even malformed user data, is never overwritten here.
func (s *arcSessionService) fillFromAggregation(ctx context.Context, arc *types.ArcPreProduction, docs map[int]*preprod.EpisodeDoc, actorID uuid.UUID) error {
  sections := map[string]any{}

  if SectionEmpty(arc, types.SectionCasting) {
    if agg := preprod.AggregateCasting(docs); len(agg.CastMembers) > 0 {
      stampNow(&agg.LastUpdated)
      sections[types.SectionCasting] = agg
    }
  }
  if SectionEmpty(arc, types.SectionEquipment) {
    if agg := preprod.AggregateEquipment(docs); !agg.IsEmpty() {
      stampNow(&agg.LastUpdated)
      sections[types.SectionEquipment] = agg
    }
  }
  if SectionEmpty(arc, types.SectionPermits) {
    if agg := preprod.AggregatePermits(docs); !agg.IsEmpty() {
      stampNow(&agg.LastUpdated)
      sections[types.SectionPermits] = agg
    }
  }

  if len(sections) == 0 {
    return nil
  }
  return s.arcDoc.ApplySections(ctx, arc.ID, sections, actorID)
}

func allSectionsEmpty(arc *types.ArcPreProduction) bool {
  for _, name := range types.AllSections {
    if !SectionEmpty(arc, name) {
      return false
    }
  }
  return true
}

// hasAnySetupData reports whether props/wardrobe or equipment information
// exists anywhere: on the arc document or in any member episode.
func hasAnySetupData(arc *types.ArcPreProduction, docs map[int]*preprod.EpisodeDoc) bool {
  if !SectionEmpty(arc, types.SectionPropsWardrobe) || !SectionEmpty(arc, types.SectionEquipment) {
    return true
  }
  for _, ep := range docs {
    if ep == nil {
      continue
    }
    if ep.PropsWardrobe != nil && !ep.PropsWardrobe.IsEmpty() {
      return true
    }
    if ep.Equipment != nil && !ep.Equipment.IsEmpty() {
      return true
    }
  }
  return false
}
