package repository

import (
	"context"

	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"gorm.io/gorm"
)

// BranchRepository branch directory, read-only
type BranchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) *BranchRepository {
	return &BranchRepository{db: db}
}

// FindBranch finds a branch by id
func (r *BranchRepository) FindBranch(ctx context.Context, id uint) (*entity.Branch, error) {
	var b entity.Branch
	if err := conn(ctx, r.db).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// Create registers a branch. Used by seeding and tests.
func (r *BranchRepository) Create(ctx context.Context, b *entity.Branch) error {
	return translate(conn(ctx, r.db).Create(b).Error)
}
