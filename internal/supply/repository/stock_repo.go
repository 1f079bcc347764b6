package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockRepository per (branch, material) snapshot store
type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

// LockOrCreate returns the snapshot row locked for update, inserting an
// empty one first if absent. Must run inside a transaction.
func (r *StockRepository) LockOrCreate(ctx context.Context, branchID, materialID uint, maxDefault decimal.Decimal) (*entity.MaterialStock, error) {
	db := conn(ctx, r.db)
	s, err := r.lock(db, branchID, materialID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return s, translate(err)
	}

	// a concurrent poster may insert first; DO NOTHING lets both lock the winner's row
	fresh := entity.NewMaterialStock(branchID, materialID)
	fresh.MaxStock = maxDefault
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(fresh).Error; err != nil {
		return nil, translate(err)
	}
	s, err = r.lock(db, branchID, materialID)
	return s, translate(err)
}

func (r *StockRepository) lock(db *gorm.DB, branchID, materialID uint) (*entity.MaterialStock, error) {
	var s entity.MaterialStock
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND material_id = ?", branchID, materialID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Find returns the snapshot without locking
func (r *StockRepository) Find(ctx context.Context, branchID, materialID uint) (*entity.MaterialStock, error) {
	var s entity.MaterialStock
	err := conn(ctx, r.db).
		Preload("Material").
		Where("branch_id = ? AND material_id = ?", branchID, materialID).
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// Update saves a snapshot
func (r *StockRepository) Update(ctx context.Context, s *entity.MaterialStock) error {
	s.LastUpdated = time.Now()
	return conn(ctx, r.db).Omit(clause.Associations).Save(s).Error
}

// List lists snapshots ordered by branch then material
func (r *StockRepository) List(ctx context.Context, params StockListParams) ([]entity.MaterialStock, int64, error) {
	var items []entity.MaterialStock
	var total int64
	page, pageSize := Normalize(params.Page, params.PageSize)

	query := conn(ctx, r.db).Model(&entity.MaterialStock{})
	if params.BranchID != 0 {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	if params.MaterialID != 0 {
		query = query.Where("material_id = ?", params.MaterialID)
	}
	if params.LowStock {
		query = query.Where("min_stock > 0 AND current_stock < min_stock")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Preload("Material").
		Order("branch_id ASC, material_id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// ListAll returns every snapshot, optionally for one branch
func (r *StockRepository) ListAll(ctx context.Context, branchID uint) ([]entity.MaterialStock, error) {
	var items []entity.MaterialStock
	query := conn(ctx, r.db).Model(&entity.MaterialStock{})
	if branchID != 0 {
		query = query.Where("branch_id = ?", branchID)
	}
	err := query.Preload("Material").Order("branch_id ASC, material_id ASC").Find(&items).Error
	return items, err
}
