package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AutoMigrate migrates the catalog, supply request and inventory tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// catalog
		&Branch{},
		&Material{},

		// supply requests
		&SupplyRequest{},
		&SupplyRequestItem{},
		&SupplyRequestHistory{},

		// inventory
		&MaterialStock{},
		&StockMovement{},
	)
}

// StatusChangeEvent emitted after a committed supply request status change
type StatusChangeEvent struct {
	EventID     string          `json:"event_id"`
	RequestID   uint            `json:"request_id"`
	BranchID    uint            `json:"branch_id"`
	FromStatus  RequestStatus   `json:"from_status"`
	ToStatus    RequestStatus   `json:"to_status"`
	Priority    Priority        `json:"priority"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	ProcessedBy string          `json:"processed_by,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
