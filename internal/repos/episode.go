package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/types"
)

type EpisodeRepo interface {
  GetByEpisodeNumber(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, episodeNumber int) (*types.EpisodePreProduction, error)
  GetByEpisodeNumbers(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, episodeNumbers []int) ([]*types.EpisodePreProduction, error)
  UpsertSection(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, ownerID uuid.UUID, episodeNumber int, column string, payload datatypes.JSON) error
}

type episodeRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewEpisodeRepo(db *gorm.DB, baseLog *logger.Logger) EpisodeRepo {
  return &episodeRepo{db: db, log: baseLog.With("repo", "EpisodeRepo")}
}

func (r *episodeRepo) GetByEpisodeNumber(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, episodeNumber int) (*types.EpisodePreProduction, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var ep types.EpisodePreProduction
  err := transaction.WithContext(ctx).
    Where("series_id = ? AND episode_number = ?", seriesID, episodeNumber).
    Limit(1).
    Find(&ep).Error
  if err != nil {
    return nil, err
  }
  if ep.ID == uuid.Nil {
    return nil, nil
  }
  return &ep, nil
}

func (r *episodeRepo) GetByEpisodeNumbers(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, episodeNumbers []int) ([]*types.EpisodePreProduction, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.EpisodePreProduction
  if len(episodeNumbers) == 0 {
    return results, nil
  }
  err := transaction.WithContext(ctx).
    Where("series_id = ? AND episode_number IN ?", seriesID, episodeNumbers).
    Order("episode_number ASC").
    Find(&results).Error
  if err != nil {
    return nil, err
  }
  return results, nil
}

func (r *episodeRepo) UpsertSection(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, ownerID uuid.UUID, episodeNumber int, column string, payload datatypes.JSON) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  existing, err := r.GetByEpisodeNumber(ctx, transaction, seriesID, episodeNumber)
  if err != nil {
    return err
  }
  if existing == nil {
    ep := &types.EpisodePreProduction{
      ID:            uuid.New(),
      SeriesID:      seriesID,
      OwnerID:       ownerID,
      EpisodeNumber: episodeNumber,
    }
    if err := transaction.WithContext(ctx).Create(ep).Error; err != nil {
      return err
    }
    existing = ep
  }
  return transaction.WithContext(ctx).
    Model(&types.EpisodePreProduction{}).
    Where("id = ?", existing.ID).
    Update(column, payload).Error
}
