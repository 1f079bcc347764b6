package repository

import (
	"context"

	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SupplyRequestRepository supply request store
type SupplyRequestRepository struct {
	db *gorm.DB
}

func NewSupplyRequestRepository(db *gorm.DB) *SupplyRequestRepository {
	return &SupplyRequestRepository{db: db}
}

// Create inserts the request header and its items
func (r *SupplyRequestRepository) Create(ctx context.Context, req *entity.SupplyRequest) error {
	return conn(ctx, r.db).Create(req).Error
}

// FindByID loads a request with its items ordered by id
func (r *SupplyRequestRepository) FindByID(ctx context.Context, id uint) (*entity.SupplyRequest, error) {
	var req entity.SupplyRequest
	err := conn(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// FindByIDForUpdate locks the request header row, then loads the items.
// Must run inside a transaction.
func (r *SupplyRequestRepository) FindByIDForUpdate(ctx context.Context, id uint) (*entity.SupplyRequest, error) {
	db := conn(ctx, r.db)
	var req entity.SupplyRequest
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	if err := db.Where("request_id = ?", id).Order("id ASC").Find(&req.Items).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindAll lists requests, newest first
func (r *SupplyRequestRepository) FindAll(ctx context.Context, params RequestListParams) ([]entity.SupplyRequest, int64, error) {
	var items []entity.SupplyRequest
	var total int64
	page, pageSize := Normalize(params.Page, params.PageSize)

	query := conn(ctx, r.db).Model(&entity.SupplyRequest{})
	if params.BranchID != 0 {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Priority != "" {
		query = query.Where("priority = ?", params.Priority)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// Update saves the header only
func (r *SupplyRequestRepository) Update(ctx context.Context, req *entity.SupplyRequest) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(req).Error
}

// UpdateItem saves one item
func (r *SupplyRequestRepository) UpdateItem(ctx context.Context, item *entity.SupplyRequestItem) error {
	return conn(ctx, r.db).Save(item).Error
}

// Delete removes history, items and the header in one transaction
func (r *SupplyRequestRepository) Delete(ctx context.Context, id uint) error {
	return NewTxManager(r.db).Transaction(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)
		if err := db.Where("request_id = ?", id).Delete(&entity.SupplyRequestHistory{}).Error; err != nil {
			return err
		}
		if err := db.Where("request_id = ?", id).Delete(&entity.SupplyRequestItem{}).Error; err != nil {
			return err
		}
		res := db.Where("id = ?", id).Delete(&entity.SupplyRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
