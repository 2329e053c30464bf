package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/types"
)

// RecordRepo is the physical read/write surface of the versioned record
// store. Rows are append-only: Insert creates a new (id, version) row and
// the only permitted mutation afterwards is the conditional removal of the
// active marker.
type RecordRepo interface {
	Get(ctx context.Context, tx *gorm.DB, id uuid.UUID, version string) (*types.Record, error)
	QueryActiveByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]*types.Record, error)
	QueryActiveByIDPage(ctx context.Context, tx *gorm.DB, id uuid.UUID, excludeVersion string, limit int) ([]*types.Record, error)
	QueryAllActiveByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Record, error)
	QueryActiveByKind(ctx context.Context, tx *gorm.DB, kind types.EntityKind) ([]*types.Record, error)
	QueryVersions(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]*types.Record, error)
	QueryMultiActiveIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error)
	Insert(ctx context.Context, tx *gorm.DB, record *types.Record) (*types.Record, error)
	RemoveActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, version string) (bool, error)

	GetHead(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RecordHead, error)
	AdvanceHead(ctx context.Context, tx *gorm.DB, head *types.RecordHead) error
}

type recordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	repoLog := baseLog.With("repo", "RecordRepo")
	return &recordRepo{db: db, log: repoLog}
}

func (rr *recordRepo) Get(ctx context.Context, tx *gorm.DB, id uuid.UUID, version string) (*types.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var result types.Record
	err := transaction.WithContext(ctx).
		Where("id = ? AND version = ?", id, version).
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (rr *recordRepo) QueryActiveByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]*types.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Record
	if err := transaction.WithContext(ctx).
		Where("id = ? AND active IS NOT NULL", id).
		Order("version ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// QueryActiveByIDPage returns up to limit active rows for id, excluding
// excludeVersion. The reconciler pages with this until nothing comes back.
func (rr *recordRepo) QueryActiveByIDPage(ctx context.Context, tx *gorm.DB, id uuid.UUID, excludeVersion string, limit int) ([]*types.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	if limit <= 0 {
		limit = 25
	}

	var results []*types.Record
	if err := transaction.WithContext(ctx).
		Where("id = ? AND version <> ? AND active IS NOT NULL", id, excludeVersion).
		Order("version ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recordRepo) QueryAllActiveByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Record
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND active IS NOT NULL", projectID).
		Order("version ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recordRepo) QueryActiveByKind(ctx context.Context, tx *gorm.DB, kind types.EntityKind) ([]*types.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Record
	if err := transaction.WithContext(ctx).
		Where("entity_kind = ? AND active IS NOT NULL", kind).
		Order("version ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recordRepo) QueryVersions(ctx context.Context, tx *gorm.DB, id uuid.UUID) ([]*types.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.Record
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Order("version ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// QueryMultiActiveIDs returns every id that currently has more than one
// active row, i.e. ids whose change events were lost before reconciliation.
func (rr *recordRepo) QueryMultiActiveIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.Record{}).
		Where("active IS NOT NULL").
		Group("id").
		Having("COUNT(*) > 1").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (rr *recordRepo) Insert(ctx context.Context, tx *gorm.DB, record *types.Record) (*types.Record, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// RemoveActive clears the active marker on one row, conditional on the
// marker still being present. Returns true when a row was changed; false
// means the marker was already gone, which callers treat as success.
func (rr *recordRepo) RemoveActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, version string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.Record{}).
		Where("id = ? AND version = ? AND active IS NOT NULL", id, version).
		Update("active", gorm.Expr("NULL"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (rr *recordRepo) GetHead(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RecordHead, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var head types.RecordHead
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&head).Error
	if err != nil {
		return nil, err
	}
	return &head, nil
}

// AdvanceHead moves the head pointer forward, never backward: on conflict
// the stored current_version is replaced only when the incoming version is
// lexicographically greater. Version tokens are zero-padded so lexicographic
// order matches temporal order.
func (rr *recordRepo) AdvanceHead(ctx context.Context, tx *gorm.DB, head *types.RecordHead) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"current_version": head.CurrentVersion,
				"updated_at":      head.UpdatedAt,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Lt{Column: clause.Column{Table: "record_head", Name: "current_version"}, Value: head.CurrentVersion},
			}},
		}).
		Create(head).Error
}
