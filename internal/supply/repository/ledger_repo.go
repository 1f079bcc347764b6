package repository

import (
	"context"

	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"gorm.io/gorm"
)

// LedgerRepository append-only stock movement store
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts a movement. A repeated reference returns ErrDuplicate.
func (r *LedgerRepository) Append(ctx context.Context, m *entity.StockMovement) error {
	return translate(conn(ctx, r.db).Create(m).Error)
}

// FindAll lists movements, newest first
func (r *LedgerRepository) FindAll(ctx context.Context, params MovementListParams) ([]entity.StockMovement, int64, error) {
	var items []entity.StockMovement
	var total int64
	page, pageSize := Normalize(params.Page, params.PageSize)

	query := conn(ctx, r.db).Model(&entity.StockMovement{})
	if params.BranchID != 0 {
		query = query.Where("stock_movements.branch_id = ?", params.BranchID)
	}
	if params.MaterialID != 0 {
		query = query.Where("stock_movements.material_id = ?", params.MaterialID)
	}
	if params.MovementType != "" {
		query = query.Where("stock_movements.movement_type = ?", params.MovementType)
	}
	if params.From != nil {
		query = query.Where("stock_movements.movement_date >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("stock_movements.movement_date <= ?", *params.To)
	}
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.
			Joins("LEFT JOIN materials ON materials.id = stock_movements.material_id").
			Where("materials.name ILIKE ? OR materials.code ILIKE ? OR stock_movements.notes ILIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Select("stock_movements.*").
		Order("stock_movements.movement_date DESC, stock_movements.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// History returns every movement of one (branch, material) in posting order
func (r *LedgerRepository) History(ctx context.Context, branchID, materialID uint) ([]entity.StockMovement, error) {
	var items []entity.StockMovement
	err := conn(ctx, r.db).
		Where("branch_id = ? AND material_id = ?", branchID, materialID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// Keys returns every (branch, material) pair that has ledger rows
func (r *LedgerRepository) Keys(ctx context.Context, branchID uint) ([]StockKey, error) {
	var keys []StockKey
	query := conn(ctx, r.db).Model(&entity.StockMovement{}).
		Distinct("branch_id", "material_id")
	if branchID != 0 {
		query = query.Where("branch_id = ?", branchID)
	}
	err := query.Order("branch_id ASC, material_id ASC").Scan(&keys).Error
	return keys, err
}

// StockKey identifies one snapshot
type StockKey struct {
	BranchID   uint
	MaterialID uint
}
