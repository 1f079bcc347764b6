package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType stock movement type
type MovementType string

const (
	MovementSupplyIn      MovementType = "SUPPLY_IN"
	MovementSaleDeduction MovementType = "SALE_DEDUCTION"
	MovementAdjustment    MovementType = "ADJUSTMENT"
	MovementLoss          MovementType = "LOSS"
	MovementReturn        MovementType = "RETURN"
)

// movementSigns +1 credit, -1 debit, 0 either (sign carried by the quantity)
var movementSigns = map[MovementType]int{
	MovementSupplyIn:      1,
	MovementSaleDeduction: -1,
	MovementAdjustment:    0,
	MovementLoss:          -1,
	MovementReturn:        1,
}

var movementLabels = map[MovementType]string{
	MovementSupplyIn:      "Supply in",
	MovementSaleDeduction: "Sale deduction",
	MovementAdjustment:    "Adjustment",
	MovementLoss:          "Loss",
	MovementReturn:        "Return",
}

// ParseMovementType validates a movement type string.
func ParseMovementType(s string) (MovementType, bool) {
	t := MovementType(s)
	_, ok := movementSigns[t]
	return t, ok
}

// Label human readable text
func (t MovementType) Label() string {
	if l, ok := movementLabels[t]; ok {
		return l
	}
	return string(t)
}

// Sign expected sign of the signed quantity for this type.
func (t MovementType) Sign() int {
	return movementSigns[t]
}

// Reference types
const (
	RefSupplyRequest = "SUPPLY_REQUEST"
	RefOrder         = "ORDER"
	RefManual        = "MANUAL"
)

// DefaultMaxStock sentinel max stock for snapshots created on first delivery
var DefaultMaxStock = decimal.NewFromInt(999999)

// MaterialStock per (branch, material) stock snapshot
type MaterialStock struct {
	ID            uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	BranchID      uint            `json:"branch_id" gorm:"not null;uniqueIndex:idx_material_stock_branch_material"`
	MaterialID    uint            `json:"material_id" gorm:"not null;uniqueIndex:idx_material_stock_branch_material"`
	CurrentStock  decimal.Decimal `json:"current_stock" gorm:"type:decimal(14,4);not null;default:0"`
	MinStock      decimal.Decimal `json:"min_stock" gorm:"type:decimal(14,4);not null;default:0"`
	MaxStock      decimal.Decimal `json:"max_stock" gorm:"type:decimal(14,4);not null;default:0"`
	ReservedStock decimal.Decimal `json:"reserved_stock" gorm:"type:decimal(14,4);not null;default:0"`
	LastUpdated   time.Time       `json:"last_updated"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Material *Material `json:"material,omitempty" gorm:"foreignKey:MaterialID"`
}

func (MaterialStock) TableName() string {
	return "material_stocks"
}

// AvailableStock current minus reserved
func (s *MaterialStock) AvailableStock() decimal.Decimal {
	return s.CurrentStock.Sub(s.ReservedStock)
}

// IsLow below min stock
func (s *MaterialStock) IsLow() bool {
	return s.MinStock.IsPositive() && s.CurrentStock.LessThan(s.MinStock)
}

// NewMaterialStock empty snapshot with default thresholds.
func NewMaterialStock(branchID, materialID uint) *MaterialStock {
	return &MaterialStock{
		BranchID:      branchID,
		MaterialID:    materialID,
		CurrentStock:  decimal.Zero,
		MinStock:      decimal.Zero,
		MaxStock:      DefaultMaxStock,
		ReservedStock: decimal.Zero,
		LastUpdated:   time.Now(),
	}
}

// StockMovement ledger entry, never updated once written
type StockMovement struct {
	ID              uint                `json:"id" gorm:"primaryKey;autoIncrement"`
	MaterialID      uint                `json:"material_id" gorm:"not null;index:idx_movement_branch_material"`
	BranchID        uint                `json:"branch_id" gorm:"not null;index:idx_movement_branch_material"`
	MovementType    MovementType        `json:"movement_type" gorm:"size:20;not null;uniqueIndex:idx_movement_reference"`
	Quantity        decimal.Decimal     `json:"quantity" gorm:"type:decimal(14,4);not null"` // positive credits, negative debits
	Unit            string              `json:"unit" gorm:"size:20"`
	CostPerUnit     decimal.Decimal     `json:"cost_per_unit" gorm:"type:decimal(14,4);not null;default:0"`
	TotalCost       decimal.Decimal     `json:"total_cost" gorm:"type:decimal(14,2);not null;default:0"`
	BalanceAfter    decimal.NullDecimal `json:"balance_after" gorm:"type:decimal(14,4)"`
	ReferenceType   string              `json:"reference_type" gorm:"size:30;not null;uniqueIndex:idx_movement_reference"`
	ReferenceID     uint                `json:"reference_id" gorm:"uniqueIndex:idx_movement_reference"`
	ReferenceItemID *uint               `json:"reference_item_id" gorm:"uniqueIndex:idx_movement_reference"`
	Notes           string              `json:"notes" gorm:"type:text"`
	PerformedBy     string              `json:"performed_by" gorm:"size:64"`
	MovementDate    time.Time           `json:"movement_date" gorm:"not null;index"`
	CreatedAt       time.Time           `json:"created_at"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}
