package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Branch restaurant branch. Owned by the branch directory, read-only here.
type Branch struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Code      string    `json:"code" gorm:"size:32;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Address   string    `json:"address" gorm:"size:255"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Branch) TableName() string {
	return "branches"
}

// Material raw material in the central catalog. Read-only here.
type Material struct {
	ID          uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	Code        string          `json:"code" gorm:"size:64;uniqueIndex"`
	Name        string          `json:"name" gorm:"size:128;not null"`
	Category    string          `json:"category" gorm:"size:64"`
	Unit        string          `json:"unit" gorm:"size:20;not null;default:ea"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit" gorm:"type:decimal(14,4);not null;default:0"`
	IsActive    bool            `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Material) TableName() string {
	return "materials"
}
