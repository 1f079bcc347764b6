package repository

import (
	"context"

	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"gorm.io/gorm"
)

// MaterialRepository material catalog, read-only
type MaterialRepository struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// FindMaterial finds a material by id
func (r *MaterialRepository) FindMaterial(ctx context.Context, id uint) (*entity.Material, error) {
	var m entity.Material
	if err := conn(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// Create registers a material. Used by seeding and tests.
func (r *MaterialRepository) Create(ctx context.Context, m *entity.Material) error {
	return translate(conn(ctx, r.db).Create(m).Error)
}
