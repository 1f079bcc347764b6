package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus supply request status
type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusApproved  RequestStatus = "APPROVED"
	StatusInTransit RequestStatus = "IN_TRANSIT"
	StatusDelivered RequestStatus = "DELIVERED"
	StatusCancelled RequestStatus = "CANCELLED"
)

var statusLabels = map[RequestStatus]string{
	StatusPending:   "Pending",
	StatusApproved:  "Approved",
	StatusInTransit: "In transit",
	StatusDelivered: "Delivered",
	StatusCancelled: "Cancelled",
}

// ValidStatusTransitions allowed forward edges. Terminal states have no entry.
var ValidStatusTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:   {StatusApproved, StatusInTransit, StatusDelivered, StatusCancelled},
	StatusApproved:  {StatusInTransit, StatusDelivered, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled},
}

// ParseRequestStatus parses a status string case-insensitively.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	st := RequestStatus(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := statusLabels[st]
	return st, ok
}

// Label human readable text
func (s RequestStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsTerminal DELIVERED and CANCELLED accept no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether from -> to is a valid forward edge.
func (s RequestStatus) CanTransitionTo(to RequestStatus) bool {
	for _, next := range ValidStatusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority supply request priority
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var priorityLabels = map[Priority]string{
	PriorityLow:    "Low",
	PriorityNormal: "Normal",
	PriorityHigh:   "High",
	PriorityUrgent: "Urgent",
}

// ParsePriority parses a priority string case-insensitively. Empty means NORMAL.
func ParsePriority(s string) (Priority, bool) {
	if strings.TrimSpace(s) == "" {
		return PriorityNormal, true
	}
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := priorityLabels[p]
	return p, ok
}

// Label human readable text
func (p Priority) Label() string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return string(p)
}

// SupplyRequest branch replenishment request
type SupplyRequest struct {
	ID                   uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	BranchID             uint            `json:"branch_id" gorm:"not null;index"`
	RequesterID          string          `json:"requester_id" gorm:"size:64"`
	RequesterName        string          `json:"requester_name" gorm:"size:100"`
	RequestDate          time.Time       `json:"request_date" gorm:"not null"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	Status               RequestStatus   `json:"status" gorm:"size:20;not null;default:PENDING;index"`
	Priority             Priority        `json:"priority" gorm:"size:20;not null;default:NORMAL"`
	TotalCost            decimal.Decimal `json:"total_cost" gorm:"type:decimal(14,2);not null;default:0"`
	Notes                string          `json:"notes" gorm:"type:text"`
	ProcessedBy          string          `json:"processed_by" gorm:"size:64"`
	ProcessedAt          *time.Time      `json:"processed_at"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Items []SupplyRequestItem `json:"items,omitempty" gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

func (SupplyRequest) TableName() string {
	return "supply_requests"
}

// RecalculateTotal sums item totals into TotalCost.
func (r *SupplyRequest) RecalculateTotal() {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.TotalCost)
	}
	r.TotalCost = total
}

// SupplyRequestItem supply request line
type SupplyRequestItem struct {
	ID                uint                `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID         uint                `json:"request_id" gorm:"not null;index"`
	MaterialID        uint                `json:"material_id" gorm:"not null;index"`
	MaterialName      string              `json:"material_name" gorm:"size:128"`
	RequestedQuantity decimal.Decimal     `json:"requested_quantity" gorm:"type:decimal(14,4);not null"`
	ApprovedQuantity  decimal.NullDecimal `json:"approved_quantity" gorm:"type:decimal(14,4)"`
	DeliveredQuantity decimal.NullDecimal `json:"delivered_quantity" gorm:"type:decimal(14,4)"`
	Unit              string              `json:"unit" gorm:"size:20;not null;default:ea"`
	CostPerUnit       decimal.Decimal     `json:"cost_per_unit" gorm:"type:decimal(14,4);not null;default:0"`
	TotalCost         decimal.Decimal     `json:"total_cost" gorm:"type:decimal(14,2);not null;default:0"`
	Status            RequestStatus       `json:"status" gorm:"size:20;not null;default:PENDING"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (SupplyRequestItem) TableName() string {
	return "supply_request_items"
}

// CreditedQuantity the quantity a delivery credits to stock: the delivered
// quantity when recorded, else the approved quantity, else the requested one.
func (i *SupplyRequestItem) CreditedQuantity() decimal.Decimal {
	if i.DeliveredQuantity.Valid {
		return i.DeliveredQuantity.Decimal
	}
	if i.ApprovedQuantity.Valid {
		return i.ApprovedQuantity.Decimal
	}
	return i.RequestedQuantity
}

// History actions
const (
	ActionCreate       = "create"
	ActionStatusChange = "status_change"
	ActionCancel       = "cancel"
	ActionAudit        = "audit_update"
)

// SupplyRequestHistory audit trail of a supply request
type SupplyRequestHistory struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID    uint      `json:"request_id" gorm:"not null;index"`
	Action       string    `json:"action" gorm:"size:50;not null"`
	FromStatus   string    `json:"from_status" gorm:"size:20"`
	ToStatus     string    `json:"to_status" gorm:"size:20"`
	Content      string    `json:"content" gorm:"type:text"`
	OperatorID   string    `json:"operator_id" gorm:"size:64"`
	OperatorName string    `json:"operator_name" gorm:"size:100"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SupplyRequestHistory) TableName() string {
	return "supply_request_histories"
}
