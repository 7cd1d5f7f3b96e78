package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/showforge/preprod-backend/internal/logger"
	"github.com/showforge/preprod-backend/internal/preprod"
	"github.com/showforge/preprod-backend/internal/sse"
	"github.com/showforge/preprod-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeAI returns canned payloads keyed by schema name and records the user
// prompt of each call.
type fakeAI struct {
	mu          sync.Mutex
	responses   map[string]map[string]any
	errors      map[string]error
	calls       []string
	userPrompts map[string]string
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, schemaName)
	if f.userPrompts == nil {
		f.userPrompts = map[string]string{}
	}
	f.userPrompts[schemaName] = user
	if err, ok := f.errors[schemaName]; ok {
		return nil, err
	}
	if out, ok := f.responses[schemaName]; ok {
		return out, nil
	}
	return nil, fmt.Errorf("no canned response for %s", schemaName)
}

type capturedEmit struct {
	mu   sync.Mutex
	msgs []sse.SSEMessage
}

func (e *capturedEmit) Emit(ctx context.Context, msg sse.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
}

func (e *capturedEmit) events() []sse.SSEEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sse.SSEEvent, 0, len(e.msgs))
	for _, m := range e.msgs {
		out = append(out, m.Event)
	}
	return out
}

// memRunRepo keeps generation runs in a map.
type memRunRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*types.ArcGenerationRun
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: map[uuid.UUID]*types.ArcGenerationRun{}}
}

func (r *memRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.ArcGenerationRun) (*types.ArcGenerationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	return run, nil
}

func (r *memRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ArcGenerationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (r *memRunRepo) GetLatestByArcID(ctx context.Context, tx *gorm.DB, arcID uuid.UUID) (*types.ArcGenerationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *types.ArcGenerationRun
	for _, run := range r.runs {
		if run.ArcID != arcID {
			continue
		}
		if latest == nil || run.CreatedAt.After(latest.CreatedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *memRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	for key, val := range updates {
		switch key {
		case "status":
			run.Status = val.(string)
		case "progress":
			run.Progress = val.(int)
		case "current_step":
			run.CurrentStep = val.(string)
		case "steps":
			run.Steps = val.(datatypes.JSON)
		case "section_errors":
			run.SectionErrors = val.(datatypes.JSON)
		}
	}
	return nil
}

// memArcRepo keeps one arc row and applies section column updates to it,
// standing in for repos.ArcRepo under the real document service.
type memArcRepo struct {
	mu  sync.Mutex
	arc *types.ArcPreProduction
}

func (r *memArcRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ArcPreProduction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.arc == nil || r.arc.ID != id {
		return nil, nil
	}
	cp := *r.arc
	return &cp, nil
}

func (r *memArcRepo) GetBySeriesArc(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, arcIndex int) (*types.ArcPreProduction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.arc == nil || r.arc.SeriesID != seriesID || r.arc.ArcIndex != arcIndex {
		return nil, nil
	}
	cp := *r.arc
	return &cp, nil
}

func (r *memArcRepo) Create(ctx context.Context, tx *gorm.DB, arc *types.ArcPreProduction) (*types.ArcPreProduction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *arc
	r.arc = &cp
	return arc, nil
}

func (r *memArcRepo) UpdateSections(ctx context.Context, tx *gorm.DB, id uuid.UUID, columns map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.arc == nil || r.arc.ID != id {
		return fmt.Errorf("arc %s not found", id)
	}
	for column, val := range columns {
		raw, ok := val.(datatypes.JSON)
		if !ok {
			continue
		}
		switch column {
		case "casting":
			r.arc.Casting = raw
		case "shooting_schedule":
			r.arc.ShootingSchedule = raw
		case "equipment":
			r.arc.Equipment = raw
		case "locations":
			r.arc.Locations = raw
		case "props_wardrobe":
			r.arc.PropsWardrobe = raw
		case "permits":
			r.arc.Permits = raw
		case "budget":
			r.arc.Budget = raw
		case "marketing":
			r.arc.Marketing = raw
		}
	}
	return nil
}

func (r *memArcRepo) locations(t *testing.T) *preprod.LocationsDoc {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := &preprod.LocationsDoc{}
	if len(r.arc.Locations) == 0 {
		return doc
	}
	if err := json.Unmarshal(r.arc.Locations, doc); err != nil {
		t.Fatalf("decode stored locations: %v", err)
	}
	return doc
}

// memArcStore implements ArcDocumentService over a single in-memory arc
// row, reusing the real SectionEmpty and rollup logic.
type memArcStore struct {
	mu      sync.Mutex
	arc     *types.ArcPreProduction
	applied []map[string]any
}

func newMemArcStore(arc *types.ArcPreProduction) *memArcStore {
	return &memArcStore{arc: arc}
}

func (s *memArcStore) GetArc(ctx context.Context, arcID uuid.UUID) (*types.ArcPreProduction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.arc
	return &cp, nil
}

func (s *memArcStore) EnsureArc(ctx context.Context, seriesID uuid.UUID, ownerID uuid.UUID, arcIndex int, arcTitle string, episodeNumbers []int) (*types.ArcPreProduction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.arc
	return &cp, nil
}

func (s *memArcStore) ApplySections(ctx context.Context, arcID uuid.UUID, sections map[string]any, actorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, sections)
	for name, payload := range sections {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		s.setSection(name, datatypes.JSON(raw))
	}
	return nil
}

func (s *memArcStore) setSection(name string, raw datatypes.JSON) {
	switch name {
	case types.SectionCasting:
		s.arc.Casting = raw
	case types.SectionShootingSchedule:
		s.arc.ShootingSchedule = raw
	case types.SectionEquipment:
		s.arc.Equipment = raw
	case types.SectionLocations:
		s.arc.Locations = raw
	case types.SectionPropsWardrobe:
		s.arc.PropsWardrobe = raw
	case types.SectionPermits:
		s.arc.Permits = raw
	case types.SectionBudget:
		s.arc.Budget = raw
	case types.SectionMarketing:
		s.arc.Marketing = raw
	}
}

func (s *memArcStore) SelectSuggestion(ctx context.Context, arcID uuid.UUID, groupID string, suggestionID string, actorID uuid.UUID) (*preprod.LocationsDoc, error) {
	return nil, fmt.Errorf("not implemented in fake")
}

func (s *memArcStore) UpdateLocationGroups(ctx context.Context, arcID uuid.UUID, groups []preprod.LocationGroup, actorID uuid.UUID) (*preprod.LocationsDoc, error) {
	return nil, fmt.Errorf("not implemented in fake")
}

func (s *memArcStore) SectionEmpty(arc *types.ArcPreProduction, section string) bool {
	return SectionEmpty(arc, section)
}

func (s *memArcStore) appliedSections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, batch := range s.applied {
		for name := range batch {
			out = append(out, name)
		}
	}
	return out
}

func testArc(t *testing.T) *types.ArcPreProduction {
	t.Helper()
	nums, _ := json.Marshal([]int{1, 2, 3})
	return &types.ArcPreProduction{
		ID:             uuid.New(),
		SeriesID:       uuid.New(),
		OwnerID:        uuid.New(),
		ArcIndex:       0,
		ArcTitle:       "Arc One",
		EpisodeNumbers: datatypes.JSON(nums),
	}
}

func testBible(t *testing.T, seriesID uuid.UUID, counts ...int) *types.SeriesBible {
	t.Helper()
	outlines := make([]types.ArcOutline, 0, len(counts))
	for i, c := range counts {
		outlines = append(outlines, types.ArcOutline{Title: fmt.Sprintf("Arc %d", i+1), EpisodeCount: c})
	}
	raw, err := json.Marshal(outlines)
	if err != nil {
		t.Fatalf("marshal outlines: %v", err)
	}
	return &types.SeriesBible{
		ID:       uuid.New(),
		SeriesID: seriesID,
		OwnerID:  uuid.New(),
		Title:    "Test Series",
		Arcs:     datatypes.JSON(raw),
	}
}

func episodeWithBreakdown(num int, locations ...string) *preprod.EpisodeDoc {
	scenes := make([]preprod.Scene, 0, len(locations))
	for i, loc := range locations {
		scenes = append(scenes, preprod.Scene{SceneNumber: i + 1, Location: loc})
	}
	return &preprod.EpisodeDoc{
		EpisodeNumber:   num,
		ScriptBreakdown: &preprod.ScriptBreakdown{Scenes: scenes},
		Scripts:         &preprod.Scripts{FullScript: "INT. SOMEWHERE - DAY"},
	}
}
