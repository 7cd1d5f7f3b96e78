package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/types"
)

type ArcRepo interface {
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ArcPreProduction, error)
  GetBySeriesArc(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, arcIndex int) (*types.ArcPreProduction, error)
  Create(ctx context.Context, tx *gorm.DB, arc *types.ArcPreProduction) (*types.ArcPreProduction, error)
  // UpdateSections writes the given section columns in one statement.
  // Keys are database column names; this is the only arc write path.
  UpdateSections(ctx context.Context, tx *gorm.DB, id uuid.UUID, columns map[string]interface{}) error
}

type arcRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewArcRepo(db *gorm.DB, baseLog *logger.Logger) ArcRepo {
  return &arcRepo{db: db, log: baseLog.With("repo", "ArcRepo")}
}

func (r *arcRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ArcPreProduction, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var arc types.ArcPreProduction
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&arc).Error
  if err != nil {
    return nil, err
  }
  if arc.ID == uuid.Nil {
    return nil, nil
  }
  return &arc, nil
}

func (r *arcRepo) GetBySeriesArc(ctx context.Context, tx *gorm.DB, seriesID uuid.UUID, arcIndex int) (*types.ArcPreProduction, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var arc types.ArcPreProduction
  err := transaction.WithContext(ctx).
    Where("series_id = ? AND arc_index = ?", seriesID, arcIndex).
    Limit(1).
    Find(&arc).Error
  if err != nil {
    return nil, err
  }
  if arc.ID == uuid.Nil {
    return nil, nil
  }
  return &arc, nil
}

func (r *arcRepo) Create(ctx context.Context, tx *gorm.DB, arc *types.ArcPreProduction) (*types.ArcPreProduction, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if arc == nil {
    return nil, nil
  }
  if arc.ID == uuid.Nil {
    arc.ID = uuid.New()
  }
  if len(arc.EpisodeNumbers) == 0 {
    arc.EpisodeNumbers = datatypes.JSON([]byte(`[]`))
  }
  if err := transaction.WithContext(ctx).Create(arc).Error; err != nil {
    return nil, err
  }
  return arc, nil
}

func (r *arcRepo) UpdateSections(ctx context.Context, tx *gorm.DB, id uuid.UUID, columns map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(columns) == 0 {
    return nil
  }
  columns["updated_at"] = time.Now()
  return transaction.WithContext(ctx).
    Model(&types.ArcPreProduction{}).
    Where("id = ?", id).
    Updates(columns).Error
}
