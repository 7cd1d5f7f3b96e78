package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/showforge/preprod-backend/internal/preprod"
	"github.com/showforge/preprod-backend/internal/types"
)

type memBibleRepo struct {
	bible *types.SeriesBible
}

func (r *memBibleRepo) GetBySeriesID(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID) (*types.SeriesBible, error) {
	if r.bible == nil || r.bible.SeriesID != seriesID {
		return nil, nil
	}
	cp := *r.bible
	return &cp, nil
}

func (r *memBibleRepo) Upsert(ctx context.Context, tx *gorm.DB, bible *types.SeriesBible) (*types.SeriesBible, error) {
	r.bible = bible
	return bible, nil
}

type stubEpisodeService struct {
	docs map[int]*preprod.EpisodeDoc
}

func (s *stubEpisodeService) GetEpisode(ctx context.Context, seriesID uuid.UUID, episodeNumber int) (*types.EpisodePreProduction, error) {
	return nil, nil
}

func (s *stubEpisodeService) LoadEpisodeDocs(ctx context.Context, seriesID uuid.UUID, episodeNumbers []int) (map[int]*preprod.EpisodeDoc, error) {
	out := map[int]*preprod.EpisodeDoc{}
	for _, n := range episodeNumbers {
		if doc, ok := s.docs[n]; ok {
			out[n] = doc
		}
	}
	return out, nil
}

func (s *stubEpisodeService) UpsertSection(ctx context.Context, seriesID uuid.UUID, ownerID uuid.UUID, episodeNumber int, section string, payload json.RawMessage) error {
	return nil
}

type stubGenService struct {
	mu     sync.Mutex
	starts int
}

func (s *stubGenService) StartAutoGenerate(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, actorID uuid.UUID) (*types.ArcGenerationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return &types.ArcGenerationRun{ID: uuid.New(), ArcID: arc.ID, Mode: types.RunModeAuto, Status: types.RunStatusQueued}, nil
}

func (s *stubGenService) Regenerate(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, sections []string, applyPartial bool, actorID uuid.UUID) (*RegenerateResult, error) {
	return &RegenerateResult{}, nil
}

func (s *stubGenService) GenerateLocations(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc, onProgress func(LocationProgress)) (*preprod.LocationsDoc, error) {
	return &preprod.LocationsDoc{}, nil
}

func (s *stubGenService) GenerateQuestionnaire(ctx context.Context, bible *types.SeriesBible, arc *types.ArcPreProduction, episodes map[int]*preprod.EpisodeDoc) (map[string]any, error) {
	return map[string]any{}, nil
}

func (s *stubGenService) LatestRun(ctx context.Context, arcID uuid.UUID) (*types.ArcGenerationRun, error) {
	return nil, nil
}

func TestEpisodeRangeForArc(t *testing.T) {
	bible := testBible(t, uuid.New(), 3, 4, 2)

	tests := []struct {
		name     string
		arcIndex int
		want     []int
		wantErr  bool
	}{
		{name: "first arc", arcIndex: 0, want: []int{1, 2, 3}},
		{name: "second arc offsets past the first", arcIndex: 1, want: []int{4, 5, 6, 7}},
		{name: "third arc", arcIndex: 2, want: []int{8, 9}},
		{name: "negative index", arcIndex: -1, wantErr: true},
		{name: "index past last arc", arcIndex: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := EpisodeRangeForArc(bible, tt.arcIndex)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("EpisodeRangeForArc: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}

	if _, _, err := EpisodeRangeForArc(nil, 0); err == nil {
		t.Error("nil bible should be an error")
	}
	if _, _, err := EpisodeRangeForArc(testBible(t, uuid.New(), 0), 0); err == nil {
		t.Error("zero episode count should be an error")
	}
}

func newSessionFixture(t *testing.T, arc *types.ArcPreProduction, docs map[int]*preprod.EpisodeDoc) (*arcSessionService, *memArcStore, *stubGenService, uuid.UUID) {
	t.Helper()
	seriesID := arc.SeriesID
	store := newMemArcStore(arc)
	gen := &stubGenService{}
	svc := &arcSessionService{
		log:       testLogger(t).With("service", "ArcSessionService"),
		bibleRepo: &memBibleRepo{bible: testBible(t, seriesID, 3)},
		episodes:  &stubEpisodeService{docs: docs},
		arcDoc:    store,
		gen:       gen,
		guards:    map[string]*sessionGuard{},
	}
	return svc, store, gen, seriesID
}

func TestOpenTriggersAutoGenerateOnce(t *testing.T) {
	arc := testArc(t)
	docs := map[int]*preprod.EpisodeDoc{1: episodeWithBreakdown(1, "Warehouse")}
	svc, _, gen, seriesID := newSessionFixture(t, arc, docs)

	state, err := svc.Open(context.Background(), seriesID, 0, uuid.New())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !state.AutoGenerateStarted || state.Run == nil {
		t.Fatal("first open of a fully empty arc should trigger auto-generation")
	}

	state2, err := svc.Open(context.Background(), seriesID, 0, uuid.New())
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if state2.AutoGenerateStarted {
		t.Error("second open must not re-trigger auto-generation")
	}
	if gen.starts != 1 {
		t.Errorf("StartAutoGenerate called %d times, want 1", gen.starts)
	}
}

func TestOpenSkipsAutoGenerateWhenAnySectionPresent(t *testing.T) {
	arc := testArc(t)
	raw, _ := json.Marshal(preprod.BudgetDoc{Lines: []preprod.BudgetLine{{Category: "camera", Amount: 500}}})
	arc.Budget = raw

	svc, _, gen, seriesID := newSessionFixture(t, arc, nil)
	state, err := svc.Open(context.Background(), seriesID, 0, uuid.New())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if state.AutoGenerateStarted || gen.starts != 0 {
		t.Error("auto-generation must only trigger when every section is empty")
	}
}

func TestOpenAggregationFillsOnlyEmptySections(t *testing.T) {
	arc := testArc(t)
	userCasting := preprod.CastingDoc{CastMembers: []preprod.CastMember{{CharacterName: "Mara", ActorName: "Hand-picked"}}}
	raw, _ := json.Marshal(userCasting)
	arc.Casting = raw

	ep := episodeWithBreakdown(1, "Warehouse")
	ep.Casting = &preprod.CastingDoc{CastMembers: []preprod.CastMember{{CharacterName: "Mara", ActorName: "Episode Actor"}}}
	ep.Equipment = &preprod.EquipmentDoc{Camera: []preprod.EquipmentItem{{Name: "Alexa 35", Quantity: 1}}}
	docs := map[int]*preprod.EpisodeDoc{1: ep}

	svc, store, _, seriesID := newSessionFixture(t, arc, docs)
	if _, err := svc.Open(context.Background(), seriesID, 0, uuid.New()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Equipment was empty and gets the aggregate; casting already had user
	// data and must be untouched.
	applied := store.appliedSections()
	for _, name := range applied {
		if name == types.SectionCasting {
			t.Fatal("aggregation overwrote a non-empty casting section")
		}
	}
	var sawEquipment bool
	for _, name := range applied {
		if name == types.SectionEquipment {
			sawEquipment = true
		}
	}
	if !sawEquipment {
		t.Error("aggregation should fill the empty equipment section")
	}

	var casting preprod.CastingDoc
	if err := json.Unmarshal(store.arc.Casting, &casting); err != nil {
		t.Fatalf("decode casting: %v", err)
	}
	if casting.CastMembers[0].ActorName != "Hand-picked" {
		t.Errorf("user casting data changed: %+v", casting.CastMembers[0])
	}
}

func TestOpenMalformedSectionCountsAsNonEmpty(t *testing.T) {
	arc := testArc(t)
	arc.Casting = []byte(`{"castMembers": [{"characterName": 12`) // truncated user data

	ep := episodeWithBreakdown(1, "Warehouse")
	ep.Casting = &preprod.CastingDoc{CastMembers: []preprod.CastMember{{CharacterName: "Mara"}}}
	svc, store, _, seriesID := newSessionFixture(t, arc, map[int]*preprod.EpisodeDoc{1: ep})

	if _, err := svc.Open(context.Background(), seriesID, 0, uuid.New()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, name := range store.appliedSections() {
		if name == types.SectionCasting {
			t.Fatal("aggregation must never clobber a malformed (possibly user-authored) section")
		}
	}
}

func TestOpenSuggestsSetupQuestionnaire(t *testing.T) {
	t.Run("no props or equipment anywhere", func(t *testing.T) {
		arc := testArc(t)
		svc, _, _, seriesID := newSessionFixture(t, arc, map[int]*preprod.EpisodeDoc{1: episodeWithBreakdown(1, "Warehouse")})
		state, err := svc.Open(context.Background(), seriesID, 0, uuid.New())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if !state.SuggestSetupQuestionnaire {
			t.Error("expected questionnaire suggestion")
		}
	})

	t.Run("episode equipment suppresses the suggestion", func(t *testing.T) {
		arc := testArc(t)
		ep := episodeWithBreakdown(1, "Warehouse")
		ep.Equipment = &preprod.EquipmentDoc{Items: []preprod.EquipmentItem{{Name: "Boom mic"}}}
		svc, _, _, seriesID := newSessionFixture(t, arc, map[int]*preprod.EpisodeDoc{1: ep})
		state, err := svc.Open(context.Background(), seriesID, 0, uuid.New())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if state.SuggestSetupQuestionnaire {
			t.Error("equipment data exists; questionnaire should not be suggested")
		}
	})
}
