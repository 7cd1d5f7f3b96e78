package services

import (
  "context"
  "encoding/json"
  "fmt"
  "sort"
  "sync"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/preprod"
  "github.com/showforge/preprod-backend/internal/repos"
  "github.com/showforge/preprod-backend/internal/sse"
  "github.com/showforge/preprod-backend/internal/types"
)

// LocationProgress reports streaming progress from location generation:
// type is "progress", "complete" or "error", mirroring the SSE events the
// location review UI consumes.
type LocationProgress struct {
  Type    string `json:"type"`
  Percent int    `json:"percent,omitempty"`
  Message string `json:"message,omitempty"`
}

type RegenerateResult struct {
  Run           *types.ArcGenerationRun
  Sections      map[string]any
  SectionErrors map[string]string
}

// ArcGenerationService orchestrates the two generation modes over an arc.
//
// Mode A (AutoGenerate) runs a fixed step sequence; every step persists its
// own result before the next starts, so a later failure never erases an
// earlier success. Mode B (Regenerate) runs a user-selected subset of
// sections concurrently and reports a per-section error map; it only
// persists when the caller asked it to.
type ArcGenerationService interface {
  StartAutoGenerate(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, actorID uuid.UUID) (*types.ArcGenerationRun, error)
  Regenerate(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, sections []string, applyPartial bool, actorID uuid.UUID) (*RegenerateResult, error)
  GenerateLocations(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, onProgress func(LocationProgress)) (*preprod.LocationsDoc, error)
  GenerateQuestionnaire(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (map[string]any, error)
  LatestRun(ctx context.Context, arcID uuid.UUID) (*types.ArcGenerationRun, error)
}

type arcGenerationService struct {
  db      *gorm.DB
  log     *logger.Logger
  runRepo repos.GenerationRunRepo
  arcDoc  ArcDocumentService
  ai      AIClient
  prompts *promptRegistry
  emit    SSEEmitter
}

func NewArcGenerationService(
  db *gorm.DB,
  baseLog *logger.Logger,
  runRepo repos.GenerationRunRepo,
  arcDoc ArcDocumentService,
  ai AIClient,
  emit SSEEmitter,
) (ArcGenerationService, error) {
  prompts, err := loadPromptRegistry()
  if err != nil {
    return nil, err
  }
  return &arcGenerationService{
    db:      db,
    log:     baseLog.With("service", "ArcGenerationService"),
    runRepo: runRepo,
    arcDoc:  arcDoc,
    ai:      ai,
    prompts: prompts,
    emit:    emit,
  }, nil
}

func (s *arcGenerationService) LatestRun(ctx context.Context, arcID uuid.UUID) (*types.ArcGenerationRun, error) {
  return s.runRepo.GetLatestByArcID(ctx, nil, arcID)
}

// -------------------- Mode A: auto-generate once --------------------

type autoStep struct {
  id    string
  label string
  // run receives the current arc row and returns the sections to persist;
  // skipped means there was no feasible work (vacuous success, not an
  // error).
  run func(ctx context.Context, arc *types.ArcPreProduction) (sections map[string]any, skipped bool, err error)
}

func (s *arcGenerationService) StartAutoGenerate(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, actorID uuid.UUID) (*types.ArcGenerationRun, error) {
  if arc == nil {
    return nil, fmt.Errorf("arc required")
  }
  run := &types.ArcGenerationRun{
    ID:      uuid.New(),
    ArcID:   arc.ID,
    ActorID: actorID,
    Mode:    types.RunModeAuto,
    Status:  types.RunStatusQueued,
  }
  if _, err := s.runRepo.Create(ctx, nil, run); err != nil {
    return nil, fmt.Errorf("create generation run: %w", err)
  }

  // The run outlives the triggering request.
  go s.runAuto(context.Background(), run, bible, arc, episodes, actorID)

  return run, nil
}

func (s *arcGenerationService) runAuto(ctx context.Context, run *types.ArcGenerationRun, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, actorID uuid.UUID) {
  steps := s.autoSteps(bible, episodes)

  stepStates := make([]types.GenerationStep, len(steps))
  for i, def := range steps {
    stepStates[i] = types.GenerationStep{ID: def.id, Label: def.label, Status: types.StepStatusPending}
  }

  s.persistRun(ctx, run, map[string]interface{}{
    "status": types.RunStatusRunning,
    "steps":  mustSteps(stepStates),
  })
  s.emitRun(ctx, arc.ID, sse.SSEEventArcGenerationStarted, run.ID, map[string]any{"mode": run.Mode, "steps": stepStates})

  progress := 0
  completedWork := 0

  for i, def := range steps {
    stepStates[i].Status = types.StepStatusGenerating
    s.persistRun(ctx, run, map[string]interface{}{
      "current_step": def.id,
      "steps":        mustSteps(stepStates),
    })
    s.emitRun(ctx, arc.ID, sse.SSEEventArcGenerationStep, run.ID, map[string]any{"step": stepStates[i]})

    sections, skipped, err := def.run(ctx, arc)
    switch {
    case err != nil:
      stepStates[i].Status = types.StepStatusError
      stepStates[i].Error = HumanMessage(err)
      s.log.Warn("Generation step failed, continuing", "step", def.id, "error", err)
    case skipped:
      // No feasible work: straight to completed, nothing produced.
      stepStates[i].Status = types.StepStatusCompleted
      stepStates[i].Skipped = true
    default:
      if len(sections) > 0 {
        if applyErr := s.arcDoc.ApplySections(ctx, arc.ID, sections, actorID); applyErr != nil {
          stepStates[i].Status = types.StepStatusError
          stepStates[i].Error = HumanMessage(applyErr)
          s.log.Warn("Persisting step result failed", "step", def.id, "error", applyErr)
          break
        }
        // Later steps read earlier steps' persisted output, so reload
        // the row after each write.
        if fresh, loadErr := s.arcDoc.GetArc(ctx, arc.ID); loadErr == nil && fresh != nil {
          arc = fresh
        }
      }
      stepStates[i].Status = types.StepStatusCompleted
      completedWork++
    }

    // Monotone, advisory only.
    if next := (i + 1) * 100 / len(steps); next > progress {
      progress = next
    }
    s.persistRun(ctx, run, map[string]interface{}{
      "progress": progress,
      "steps":    mustSteps(stepStates),
    })
    s.emitRun(ctx, arc.ID, sse.SSEEventArcGenerationProgress, run.ID, map[string]any{
      "progress":     progress,
      "current_step": def.id,
      "step":         stepStates[i],
    })
  }

  status := types.RunStatusCompleted
  erroredAll := true
  for _, st := range stepStates {
    if st.Status != types.StepStatusError {
      erroredAll = false
      break
    }
  }
  if erroredAll && len(stepStates) > 0 {
    status = types.RunStatusFailed
  }

  now := time.Now()
  s.persistRun(ctx, run, map[string]interface{}{
    "status":       status,
    "progress":     100,
    "current_step": "",
    "steps":        mustSteps(stepStates),
    "completed_at": now,
  })
  event := sse.SSEEventArcGenerationCompleted
  if status == types.RunStatusFailed {
    event = sse.SSEEventArcGenerationFailed
  }
  s.emitRun(ctx, arc.ID, event, run.ID, map[string]any{"status": status, "steps": stepStates})
}

func (s *arcGenerationService) autoSteps(bible *types.SeriesBible, episodes map[int]*preprod.EpisodeDoc) []autoStep {
  return []autoStep{
    {
      id:    "casting",
      label: "Casting",
      run: func(ctx context.Context, arc *types.ArcPreProduction) (map[string]any, bool, error) {
        agg := preprod.AggregateCasting(episodes)
        if len(agg.CastMembers) > 0 {
          stampNow(&agg.LastUpdated)
          return map[string]any{types.SectionCasting: agg}, false, nil
        }
        if !anyEpisodeWithScriptAndBreakdown(episodes) {
          return nil, true, nil
        }
        doc, err := s.generateCasting(ctx, bible, arc, episodes)
        if err != nil {
          return nil, false, err
        }
        return map[string]any{types.SectionCasting: doc}, false, nil
      },
    },
    {
      id:    "schedule",
      label: "Shooting schedule",
      run: func(ctx context.Context, arc *types.ArcPreProduction) (map[string]any, bool, error) {
        if !anyEpisodeWithBreakdown(episodes) {
          return nil, true, nil
        }
        doc, err := s.generateSchedule(ctx, bible, arc, episodes)
        if err != nil {
          return nil, false, err
        }
        return map[string]any{types.SectionShootingSchedule: doc}, false, nil
      },
    },
    {
      id:    "equipment",
      label: "Equipment",
      run: func(ctx context.Context, arc *types.ArcPreProduction) (map[string]any, bool, error) {
        agg := preprod.AggregateEquipment(episodes)
        if agg.IsEmpty() {
          return nil, true, nil
        }
        stampNow(&agg.LastUpdated)
        return map[string]any{types.SectionEquipment: agg}, false, nil
      },
    },
    {
      id:    "locations",
      label: "Locations",
      run: func(ctx context.Context, arc *types.ArcPreProduction) (map[string]any, bool, error) {
        if !anyEpisodeWithScriptAndBreakdown(episodes) {
          return nil, true, nil
        }
        doc, err := s.GenerateLocations(ctx, bible, arc, episodes, nil)
        if err != nil {
          return nil, false, err
        }
        return map[string]any{types.SectionLocations: doc}, false, nil
      },
    },
    {
      id:    "permits",
      label: "Permits",
      run: func(ctx context.Context, arc *types.ArcPreProduction) (map[string]any, bool, error) {
        // Empty is a valid permits result; persist unconditionally.
        agg := preprod.AggregatePermits(episodes)
        stampNow(&agg.LastUpdated)
        return map[string]any{types.SectionPermits: agg}, false, nil
      },
    },
  }
}

// -------------------- Mode B: regenerate selected sections --------------------

func (s *arcGenerationService) Regenerate(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, sections []string, applyPartial bool, actorID uuid.UUID) (*RegenerateResult, error) {
  if arc == nil {
    return nil, fmt.Errorf("arc required")
  }
  if len(sections) == 0 {
    return nil, fmt.Errorf("no sections selected")
  }
  for _, name := range sections {
    if _, ok := types.SectionColumn(name); !ok {
      return nil, fmt.Errorf("unknown arc section %q", name)
    }
  }

  run := &types.ArcGenerationRun{
    ID:      uuid.New(),
    ArcID:   arc.ID,
    ActorID: actorID,
    Mode:    types.RunModeRegenerate,
    Status:  types.RunStatusRunning,
  }
  if _, err := s.runRepo.Create(ctx, nil, run); err != nil {
    return nil, fmt.Errorf("create generation run: %w", err)
  }

  var mu sync.Mutex
  results := map[string]any{}
  sectionErrors := map[string]string{}

  // Sections are independent; completion order is meaningless, so the
  // result and error maps are merged commutatively under one lock.
  var g errgroup.Group
  for _, name := range sections {
    section := name
    g.Go(func() error {
      payload, err := s.regenerateSection(ctx, section, bible, arc, episodes)
      mu.Lock()
      defer mu.Unlock()
      if err != nil {
        sectionErrors[section] = HumanMessage(err)
        return nil
      }
      results[section] = payload
      return nil
    })
  }
  _ = g.Wait()

  if applyPartial && len(results) > 0 {
    if err := s.arcDoc.ApplySections(ctx, arc.ID, results, actorID); err != nil {
      for name := range results {
        sectionErrors[name] = HumanMessage(err)
      }
      results = map[string]any{}
    }
  }

  status := types.RunStatusCompleted
  if len(sectionErrors) > 0 {
    status = types.RunStatusFailed
  }
  now := time.Now()
  s.persistRun(ctx, run, map[string]interface{}{
    "status":         status,
    "progress":       100,
    "steps":          mustSteps(regenerateSteps(sections, sectionErrors)),
    "section_errors": mustJSON(sectionErrors),
    "completed_at":   now,
  })
  event := sse.SSEEventArcGenerationCompleted
  if status == types.RunStatusFailed {
    event = sse.SSEEventArcGenerationFailed
  }
  s.emitRun(ctx, arc.ID, event, run.ID, map[string]any{
    "mode":           run.Mode,
    "status":         status,
    "section_errors": sectionErrors,
  })

  run.Status = status
  return &RegenerateResult{Run: run, Sections: results, SectionErrors: sectionErrors}, nil
}

func regenerateSteps(sections []string, sectionErrors map[string]string) []types.GenerationStep {
  sorted := append([]string{}, sections...)
  sort.Strings(sorted)
  steps := make([]types.GenerationStep, 0, len(sorted))
  for _, name := range sorted {
    step := types.GenerationStep{ID: name, Label: name, Status: types.StepStatusCompleted}
    if msg, ok := sectionErrors[name]; ok {
      step.Status = types.StepStatusError
      step.Error = msg
    }
    steps = append(steps, step)
  }
  return steps
}

func (s *arcGenerationService) regenerateSection(ctx context.Context, section string, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (any, error) {
  switch section {
  case types.SectionCasting:
    return s.generateCasting(ctx, bible, arc, episodes)
  case types.SectionShootingSchedule:
    return s.generateSchedule(ctx, bible, arc, episodes)
  case types.SectionLocations:
    return s.GenerateLocations(ctx, bible, arc, episodes, nil)
  case types.SectionPropsWardrobe:
    return s.generatePropsWardrobe(ctx, bible, arc, episodes)
  case types.SectionBudget:
    return s.generateBudget(ctx, bible, arc, episodes)
  case types.SectionMarketing:
    return s.generateMarketing(ctx, bible, arc, episodes)
  case types.SectionEquipment:
    // No generation endpoint for equipment; regeneration re-aggregates.
    agg := preprod.AggregateEquipment(episodes)
    stampNow(&agg.LastUpdated)
    return agg, nil
  case types.SectionPermits:
    agg := preprod.AggregatePermits(episodes)
    stampNow(&agg.LastUpdated)
    return agg, nil
  default:
    return nil, fmt.Errorf("unknown arc section %q", section)
  }
}

// -------------------- Section generators --------------------

func (s *arcGenerationService) generateCasting(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (*preprod.CastingDoc, error) {
  out, err := s.callPrompt(ctx, "casting", "arc_casting", castingSchema, bible, arc, episodeContext(episodes))
  if err != nil {
    return nil, err
  }
  doc := &preprod.CastingDoc{}
  if err := reshape(out, doc); err != nil {
    return nil, err
  }
  doc.Generated = true
  stampNow(&doc.LastUpdated)
  return doc, nil
}

func (s *arcGenerationService) generateSchedule(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (*preprod.ScheduleDoc, error) {
  promptCtx := map[string]any{
    "episodes": episodeContext(episodes),
    // Casting persisted by the preceding step and any locations left by a
    // prior run feed the prompt; the schedule is better when it can group
    // by location group.
    "casting":   json.RawMessage(orNull(arc.Casting)),
    "locations": json.RawMessage(orNull(arc.Locations)),
  }
  out, err := s.callPrompt(ctx, "schedule", "arc_schedule", scheduleSchema, bible, arc, promptCtx)
  if err != nil {
    return nil, err
  }
  doc := &preprod.ScheduleDoc{}
  if err := reshape(out, doc); err != nil {
    return nil, err
  }
  doc.Generated = true
  stampNow(&doc.LastUpdated)
  return doc, nil
}

func (s *arcGenerationService) GenerateLocations(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, onProgress func(LocationProgress)) (*preprod.LocationsDoc, error) {
  report := func(p LocationProgress) {
    if onProgress != nil {
      onProgress(p)
    }
  }

  scenes := preprod.AggregateScenes(episodes)
  if len(scenes) == 0 {
    err := fmt.Errorf("no breakdown scenes available for location generation")
    report(LocationProgress{Type: "error", Message: err.Error()})
    return nil, err
  }
  report(LocationProgress{Type: "progress", Percent: 10, Message: fmt.Sprintf("Analyzing %d scenes", len(scenes))})

  out, err := s.callPrompt(ctx, "locations", "arc_locations", locationsSchema, bible, arc, scenes)
  if err != nil {
    report(LocationProgress{Type: "error", Message: HumanMessage(err)})
    return nil, err
  }
  report(LocationProgress{Type: "progress", Percent: 80, Message: "Grouping locations"})

  generated := struct {
    LocationGroups []preprod.LocationGroup `json:"locationGroups"`
  }{}
  if err := reshape(out, &generated); err != nil {
    report(LocationProgress{Type: "error", Message: err.Error()})
    return nil, err
  }

  // Generated groups land in pendingOptions for user review; any groups
  // the user already has stay untouched.
  doc, err := ArcLocations(arc)
  if err != nil {
    doc = &preprod.LocationsDoc{}
  }
  doc.PendingOptions = generated.LocationGroups
  doc.Generated = true
  stampNow(&doc.LastUpdated)

  report(LocationProgress{Type: "complete", Percent: 100})
  return doc, nil
}

func (s *arcGenerationService) generatePropsWardrobe(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (*preprod.PropsWardrobeDoc, error) {
  out, err := s.callPrompt(ctx, "propsWardrobe", "arc_props_wardrobe", propsWardrobeSchema, bible, arc, episodeContext(episodes))
  if err != nil {
    return nil, err
  }
  doc := &preprod.PropsWardrobeDoc{}
  if err := reshape(out, doc); err != nil {
    return nil, err
  }
  doc.Generated = true
  stampNow(&doc.LastUpdated)
  return doc, nil
}

func (s *arcGenerationService) GenerateQuestionnaire(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (map[string]any, error) {
  return s.callPrompt(ctx, "questionnaire", "setup_questionnaire", questionnaireSchema, bible, arc, episodeContext(episodes))
}

func (s *arcGenerationService) generateBudget(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (*preprod.BudgetDoc, error) {
  promptCtx := map[string]any{
    "casting":   json.RawMessage(orNull(arc.Casting)),
    "locations": json.RawMessage(orNull(arc.Locations)),
    "equipment": json.RawMessage(orNull(arc.Equipment)),
    "permits":   json.RawMessage(orNull(arc.Permits)),
  }
  out, err := s.callPrompt(ctx, "budget", "arc_budget", budgetSchema, bible, arc, promptCtx)
  if err != nil {
    return nil, err
  }
  doc := &preprod.BudgetDoc{}
  if err := reshape(out, doc); err != nil {
    return nil, err
  }
  doc.Generated = true
  stampNow(&doc.LastUpdated)
  return doc, nil
}

func (s *arcGenerationService) generateMarketing(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (*preprod.MarketingDoc, error) {
  out, err := s.callPrompt(ctx, "marketing", "arc_marketing", marketingSchema, bible, arc, episodeContext(episodes))
  if err != nil {
    return nil, err
  }
  doc := &preprod.MarketingDoc{}
  if err := reshape(out, doc); err != nil {
    return nil, err
  }
  doc.Generated = true
  stampNow(&doc.LastUpdated)
  return doc, nil
}

// -------------------- helpers --------------------

func (s *arcGenerationService) callPrompt(ctx context.Context, promptName string, schemaName string, schema map[string]any, bible *types.SeriesBible, arc *types.ArcPreProduction, promptContext any) (map[string]any, error) {
  title := ""
  if bible != nil {
    title = bible.Title
  }
  system, user, err := s.prompts.Render(promptName, map[string]any{
    "title":          title,
    "episodeNumbers": arcEpisodeNumbers(arc),
    "context":        promptContext,
  })
  if err != nil {
    return nil, err
  }
  return s.ai.GenerateJSON(ctx, system, user, schemaName, schema)
}

// episodeContext is the compact per-episode payload handed to prompts.
func episodeContext(episodes map[int]*preprod.EpisodeDoc) []map[string]any {
  nums := make([]int, 0, len(episodes))
  for n := range episodes {
    nums = append(nums, n)
  }
  sort.Ints(nums)
  out := make([]map[string]any, 0, len(nums))
  for _, n := range nums {
    ep := episodes[n]
    if ep == nil {
      continue
    }
    entry := map[string]any{"episodeNumber": n}
    if ep.ScriptBreakdown != nil {
      entry["scenes"] = ep.ScriptBreakdown.Scenes
    }
    if ep.Scripts != nil {
      entry["fullScript"] = ep.Scripts.FullScript
    }
    if ep.Casting != nil {
      entry["casting"] = ep.Casting
    }
    out = append(out, entry)
  }
  return out
}

func arcEpisodeNumbers(arc *types.ArcPreProduction) []int {
  nums := []int{}
  if arc == nil || len(arc.EpisodeNumbers) == 0 {
    return nums
  }
  _ = json.Unmarshal(arc.EpisodeNumbers, &nums)
  return nums
}

func anyEpisodeWithBreakdown(episodes map[int]*preprod.EpisodeDoc) bool {
  for _, ep := range episodes {
    if ep.HasBreakdown() {
      return true
    }
  }
  return false
}

func anyEpisodeWithScriptAndBreakdown(episodes map[int]*preprod.EpisodeDoc) bool {
  for _, ep := range episodes {
    if ep.HasBreakdown() && ep.HasFullScript() {
      return true
    }
  }
  return false
}

// reshape re-marshals a loose LLM object into a typed document.
func reshape(in map[string]any, out any) error {
  raw, err := json.Marshal(in)
  if err != nil {
    return err
  }
  if err := json.Unmarshal(raw, out); err != nil {
    return fmt.Errorf("generated payload has unexpected shape: %w", err)
  }
  return nil
}

func stampNow(dst **time.Time) {
  now := time.Now()
  *dst = &now
}

func orNull(raw datatypes.JSON) []byte {
  if len(raw) == 0 {
    return []byte("null")
  }
  return []byte(raw)
}

func mustJSON(v any) datatypes.JSON {
  raw, err := json.Marshal(v)
  if err != nil {
    return datatypes.JSON([]byte(`{}`))
  }
  return datatypes.JSON(raw)
}

func mustSteps(steps []types.GenerationStep) datatypes.JSON {
  return mustJSON(steps)
}

func (s *arcGenerationService) persistRun(ctx context.Context, run *types.ArcGenerationRun, updates map[string]interface{}) {
  if err := s.runRepo.UpdateFields(ctx, nil, run.ID, updates); err != nil {
    s.log.Warn("Failed to persist generation run state", "run_id", run.ID, "error", err)
  }
}

func (s *arcGenerationService) emitRun(ctx context.Context, arcID uuid.UUID, event sse.SSEEvent, runID uuid.UUID, data map[string]any) {
  payload := map[string]any{"run_id": runID, "arc_id": arcID}
  for k, v := range data {
    payload[k] = v
  }
  s.emit.Emit(ctx, sse.SSEMessage{
    Channel: sse.ArcChannel(arcID),
    Event:   event,
    Data:    payload,
  })
}
