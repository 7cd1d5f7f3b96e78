package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/types"
)

type SeriesBibleRepo interface {
  GetBySeriesID(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID) (*types.SeriesBible, error)
  Upsert(ctx context.Context, tx *gorm.DB, bible *types.SeriesBible) (*types.SeriesBible, error)
}

type seriesBibleRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSeriesBibleRepo(db *gorm.DB, baseLog *logger.Logger) SeriesBibleRepo {
  return &seriesBibleRepo{db: db, log: baseLog.With("repo", "SeriesBibleRepo")}
}

func (r *seriesBibleRepo) GetBySeriesID(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID) (*types.SeriesBible, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if seriesID == uuid.Nil {
    return nil, nil
  }
  var bible types.SeriesBible
  err := transaction.WithContext(ctx).
    Where("series_id = ?", seriesID).
    Limit(1).
    Find(&bible).Error
  if err != nil {
    return nil, err
  }
  if bible.ID == uuid.Nil {
    return nil, nil
  }
  return &bible, nil
}

func (r *seriesBibleRepo) Upsert(ctx context.Context, tx *gorm.DB, bible *types.SeriesBible) (*types.SeriesBible, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if bible == nil {
    return nil, nil
  }
  existing, err := r.GetBySeriesID(ctx, transaction, bible.SeriesID)
  if err != nil {
    return nil, err
  }
  if existing != nil {
    bible.ID = existing.ID
    if err := transaction.WithContext(ctx).Save(bible).Error; err != nil {
      return nil, err
    }
    return bible, nil
  }
  if err := transaction.WithContext(ctx).Create(bible).Error; err != nil {
    return nil, err
  }
  return bible, nil
}
