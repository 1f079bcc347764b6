package repository

import (
	"context"

	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"gorm.io/gorm"
)

// HistoryRepository supply request audit trail
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create appends a history row
func (r *HistoryRepository) Create(ctx context.Context, h *entity.SupplyRequestHistory) error {
	return conn(ctx, r.db).Create(h).Error
}

// FindByRequest lists the history of a request, newest first
func (r *HistoryRepository) FindByRequest(ctx context.Context, requestID uint) ([]entity.SupplyRequestHistory, error) {
	var items []entity.SupplyRequestHistory
	err := conn(ctx, r.db).
		Where("request_id = ?", requestID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	return items, err
}
