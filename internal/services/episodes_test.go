package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/showforge/preprod-backend/internal/types"
)

// memEpisodeRepo serves canned episode rows and counts which fetch path the
// service takes.
type memEpisodeRepo struct {
	rows        map[int]*types.EpisodePreProduction
	batchErr    error
	singleCalls int
	batchCalls  int
}

func (r *memEpisodeRepo) GetByEpisodeNumber(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, episodeNumber int) (*types.EpisodePreProduction, error) {
	r.singleCalls++
	row, ok := r.rows[episodeNumber]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *memEpisodeRepo) GetByEpisodeNumbers(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, episodeNumbers []int) ([]*types.EpisodePreProduction, error) {
	r.batchCalls++
	if r.batchErr != nil {
		return nil, r.batchErr
	}
	var out []*types.EpisodePreProduction
	for _, num := range episodeNumbers {
		if row, ok := r.rows[num]; ok {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memEpisodeRepo) UpsertSection(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, ownerID uuid.UUID, episodeNumber int, column string, payload datatypes.JSON) error {
	return fmt.Errorf("not implemented in fake")
}

func episodeRow(seriesID uuid.UUID, num int, breakdown string) *types.EpisodePreProduction {
	return &types.EpisodePreProduction{
		ID:              uuid.New(),
		SeriesID:        seriesID,
		OwnerID:         uuid.New(),
		EpisodeNumber:   num,
		ScriptBreakdown: datatypes.JSON([]byte(breakdown)),
	}
}

func TestLoadEpisodeDocsBatchesOneQuery(t *testing.T) {
	seriesID := uuid.New()
	repo := &memEpisodeRepo{rows: map[int]*types.EpisodePreProduction{
		1: episodeRow(seriesID, 1, `{"scenes":[{"sceneNumber":1,"location":"Harbor"}]}`),
		3: episodeRow(seriesID, 3, `{"scenes":[{"sceneNumber":1,"location":"Rooftop"}]}`),
	}}
	svc := NewEpisodeService(nil, testLogger(t), repo, &capturedEmit{})

	docs, err := svc.LoadEpisodeDocs(context.Background(), seriesID, []int{1, 2, 3})
	if err != nil {
		t.Fatalf("LoadEpisodeDocs: %v", err)
	}
	if repo.batchCalls != 1 || repo.singleCalls != 0 {
		t.Fatalf("fetch calls: batch=%d single=%d, want one batch query", repo.batchCalls, repo.singleCalls)
	}
	if len(docs) != 2 {
		t.Fatalf("docs: want=2 got=%d", len(docs))
	}
	if docs[1] == nil || docs[1].ScriptBreakdown == nil || docs[1].ScriptBreakdown.Scenes[0].Location != "Harbor" {
		t.Fatalf("episode 1 not decoded: %+v", docs[1])
	}
	if _, ok := docs[2]; ok {
		t.Fatalf("missing episode 2 should contribute nothing")
	}
}

func TestLoadEpisodeDocsDegradesOnLoadFailure(t *testing.T) {
	repo := &memEpisodeRepo{batchErr: fmt.Errorf("connection reset")}
	svc := NewEpisodeService(nil, testLogger(t), repo, &capturedEmit{})

	docs, err := svc.LoadEpisodeDocs(context.Background(), uuid.New(), []int{1, 2})
	if err != nil {
		t.Fatalf("load failure should degrade, not propagate: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("docs after failed load: want=0 got=%d", len(docs))
	}
}
