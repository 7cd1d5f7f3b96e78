package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/showforge/preprod-backend/internal/logger"
  "github.com/showforge/preprod-backend/internal/types"
)

type GenerationRunRepo interface {
  Create(ctx context.Context, tx *gorm.DB, run *types.ArcGenerationRun) (*types.ArcGenerationRun, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ArcGenerationRun, error)
  GetLatestByArcID(ctx context.Context, tx *gorm.DB, arcID uuid.UUID) (*types.ArcGenerationRun, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type generationRunRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
  return &generationRunRepo{db: db, log: baseLog.With("repo", "GenerationRunRepo")}
}

func (r *generationRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.ArcGenerationRun) (*types.ArcGenerationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if run == nil {
    return nil, nil
  }
  if run.ID == uuid.Nil {
    run.ID = uuid.New()
  }
  if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
    return nil, err
  }
  return run, nil
}

func (r *generationRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ArcGenerationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var run types.ArcGenerationRun
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&run).Error
  if err != nil {
    return nil, err
  }
  if run.ID == uuid.Nil {
    return nil, nil
  }
  return &run, nil
}

func (r *generationRunRepo) GetLatestByArcID(ctx context.Context, tx *gorm.DB, arcID uuid.UUID) (*types.ArcGenerationRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if arcID == uuid.Nil {
    return nil, nil
  }
  var run types.ArcGenerationRun
  err := transaction.WithContext(ctx).
    Where("arc_id = ?", arcID).
    Order("created_at DESC").
    Limit(1).
    Find(&run).Error
  if err != nil {
    return nil, err
  }
  if run.ID == uuid.Nil {
    return nil, nil
  }
  return &run, nil
}

func (r *generationRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(updates) == 0 {
    return nil
  }
  updates["updated_at"] = time.Now()
  return transaction.WithContext(ctx).
    Model(&types.ArcGenerationRun{}).
    Where("id = ?", id).
    Updates(updates).Error
}
