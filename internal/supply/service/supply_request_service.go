package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/metrics"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
	"go.uber.org/zap"
)

// SupplyRequestService supply request lifecycle
type SupplyRequestService struct {
	stores      Stores
	fulfillment *FulfillmentProcessor
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewSupplyRequestService(stores Stores, fulfillment *FulfillmentProcessor, notifier Notifier, m *metrics.Metrics, logger *zap.Logger) *SupplyRequestService {
	return &SupplyRequestService{
		stores:      stores,
		fulfillment: fulfillment,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
	}
}

// CreateSupplyRequestInput create request
type CreateSupplyRequestInput struct {
	BranchID             uint                `json:"branch_id" binding:"required"`
	RequesterID          string              `json:"requester_id"`
	RequesterName        string              `json:"requester_name"`
	Priority             string              `json:"priority"`
	Notes                string              `json:"notes"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date"`
	Items                []CreateRequestItem `json:"items"`
}

type CreateRequestItem struct {
	MaterialID  uint                `json:"material_id"`
	Quantity    decimal.Decimal     `json:"quantity"`
	CostPerUnit decimal.NullDecimal `json:"cost_per_unit"`
	Unit        string              `json:"unit"`
}

// TransitionInput status change request
type TransitionInput struct {
	Status      string         `json:"status" binding:"required"`
	ProcessedBy string         `json:"processed_by"`
	ProcessedAt *time.Time     `json:"processed_at"`
	Items       []ItemQuantity `json:"items"`
}

// ItemQuantity approved or delivered quantity of one item
type ItemQuantity struct {
	ItemID   uint            `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (in *CreateSupplyRequestInput) validate() error {
	if in.BranchID == 0 {
		return validation("branch_id is required")
	}
	if len(in.Items) == 0 {
		return validation("at least one item is required")
	}
	for i, item := range in.Items {
		if item.MaterialID == 0 {
			return validation("items[%d]: material_id is required", i)
		}
		if !item.Quantity.IsPositive() {
			return validation("items[%d]: quantity must be positive", i)
		}
		if err := checkStored(item.Quantity, fmt.Sprintf("items[%d]: quantity", i)); err != nil {
			return err
		}
		if item.CostPerUnit.Valid {
			if item.CostPerUnit.Decimal.IsNegative() {
				return validation("items[%d]: cost_per_unit must not be negative", i)
			}
			if err := checkStored(item.CostPerUnit.Decimal, fmt.Sprintf("items[%d]: cost_per_unit", i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Create validates and persists a PENDING request with its items
func (s *SupplyRequestService) Create(ctx context.Context, in *CreateSupplyRequestInput, op Operator) (*entity.SupplyRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	priority, ok := entity.ParsePriority(in.Priority)
	if !ok {
		return nil, invalidState("unknown priority %q", in.Priority)
	}
	if _, err := s.stores.Branches.FindBranch(ctx, in.BranchID); err != nil {
		return nil, storeErr(err, fmt.Sprintf("branch %d", in.BranchID))
	}

	req := &entity.SupplyRequest{
		BranchID:             in.BranchID,
		RequesterID:          in.RequesterID,
		RequesterName:        in.RequesterName,
		RequestDate:          time.Now(),
		ExpectedDeliveryDate: in.ExpectedDeliveryDate,
		Status:               entity.StatusPending,
		Priority:             priority,
		Notes:                in.Notes,
	}
	if req.RequesterID == "" {
		req.RequesterID = op.ID
	}
	if req.RequesterName == "" {
		req.RequesterName = op.Name
	}

	for i, line := range in.Items {
		material, err := s.stores.Materials.FindMaterial(ctx, line.MaterialID)
		if err != nil {
			return nil, storeErr(err, fmt.Sprintf("items[%d]: material %d", i, line.MaterialID))
		}
		cost := material.CostPerUnit
		if line.CostPerUnit.Valid {
			cost = line.CostPerUnit.Decimal
		}
		unit := material.Unit
		if line.Unit != "" {
			unit = line.Unit
		}
		req.Items = append(req.Items, entity.SupplyRequestItem{
			MaterialID:        material.ID,
			MaterialName:      material.Name,
			RequestedQuantity: line.Quantity,
			Unit:              unit,
			CostPerUnit:       cost,
			TotalCost:         line.Quantity.Mul(cost).Round(2),
			Status:            entity.StatusPending,
		})
	}
	req.RecalculateTotal()
	if req.TotalCost.GreaterThanOrEqual(totalLimit) {
		return nil, validation("total_cost is out of range")
	}

	err := s.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.stores.Requests.Create(ctx, req); err != nil {
			return storeErr(err, "supply request")
		}
		return s.writeHistory(ctx, req.ID, entity.ActionCreate, "", entity.StatusPending,
			fmt.Sprintf("created with %d items, total %s", len(req.Items), req.TotalCost.StringFixed(2)), op)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("supply request created",
		zap.Uint("request_id", req.ID),
		zap.Uint("branch_id", req.BranchID),
		zap.String("total_cost", req.TotalCost.StringFixed(2)))
	return req, nil
}

// List lists requests, newest first
func (s *SupplyRequestService) List(ctx context.Context, params repository.RequestListParams) ([]entity.SupplyRequest, int64, error) {
	if params.Status != "" {
		st, ok := entity.ParseRequestStatus(params.Status)
		if !ok {
			return nil, 0, invalidState("unknown status %q", params.Status)
		}
		params.Status = string(st)
	}
	if params.Priority != "" {
		p, ok := entity.ParsePriority(params.Priority)
		if !ok {
			return nil, 0, invalidState("unknown priority %q", params.Priority)
		}
		params.Priority = string(p)
	}
	items, total, err := s.stores.Requests.FindAll(ctx, params)
	if err != nil {
		return nil, 0, storeErr(err, "supply requests")
	}
	return items, total, nil
}

// Get returns a request with its items
func (s *SupplyRequestService) Get(ctx context.Context, id uint) (*entity.SupplyRequest, error) {
	req, err := s.stores.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, fmt.Sprintf("supply request %d", id))
	}
	return req, nil
}

// History returns the audit trail of a request, newest first
func (s *SupplyRequestService) History(ctx context.Context, id uint) ([]entity.SupplyRequestHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.stores.History.FindByRequest(ctx, id)
	if err != nil {
		return nil, storeErr(err, "supply request history")
	}
	return items, nil
}

// Transition moves a request along the status graph. Replaying the current
// status changes no stock. Entering DELIVERED credits branch stock in the
// same transaction.
func (s *SupplyRequestService) Transition(ctx context.Context, id uint, in *TransitionInput, op Operator) (*entity.SupplyRequest, error) {
	to, ok := entity.ParseRequestStatus(in.Status)
	if !ok {
		return nil, invalidState("unknown status %q", in.Status)
	}
	if len(in.Items) > 0 && to != entity.StatusApproved && to != entity.StatusDelivered {
		return nil, validation("item quantities only apply when approving or delivering")
	}
	quantities := make(map[uint]decimal.Decimal, len(in.Items))
	for _, q := range in.Items {
		if _, dup := quantities[q.ItemID]; dup {
			return nil, validation("item %d listed more than once", q.ItemID)
		}
		if q.Quantity.IsNegative() {
			return nil, validation("item %d: quantity must not be negative", q.ItemID)
		}
		if err := checkStored(q.Quantity, fmt.Sprintf("item %d: quantity", q.ItemID)); err != nil {
			return nil, err
		}
		quantities[q.ItemID] = q.Quantity
	}
	processedBy := in.ProcessedBy
	if processedBy == "" {
		processedBy = op.Label()
	}
	processedAt := time.Now()
	if in.ProcessedAt != nil {
		processedAt = *in.ProcessedAt
	}

	var (
		result    *entity.SupplyRequest
		from      entity.RequestStatus
		changed   bool
		movements []entity.StockMovement
	)
	err := s.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
		req, err := s.stores.Requests.FindByIDForUpdate(ctx, id)
		if err != nil {
			return storeErr(err, fmt.Sprintf("supply request %d", id))
		}
		result = req
		from = req.Status

		if from == to {
			if len(quantities) > 0 {
				return validation("supply request %d is already %s", id, to)
			}
			if in.ProcessedBy == "" && in.ProcessedAt == nil {
				return nil
			}
			req.ProcessedBy = processedBy
			req.ProcessedAt = &processedAt
			if err := s.stores.Requests.Update(ctx, req); err != nil {
				return storeErr(err, "supply request")
			}
			return s.writeHistory(ctx, req.ID, entity.ActionAudit, string(from), to, "audit fields updated", op)
		}

		if !from.CanTransitionTo(to) {
			return invalidState("cannot move supply request %d from %s to %s", id, from, to)
		}
		for itemID, q := range quantities {
			item := findItem(req, itemID)
			if item == nil {
				return validation("item %d does not belong to supply request %d", itemID, id)
			}
			if ceiling := itemCeiling(item, to); q.GreaterThan(ceiling) {
				return validation("item %d: quantity %s exceeds %s", itemID, q, ceiling)
			}
		}

		if to == entity.StatusDelivered {
			movements, err = s.fulfillment.OnDelivery(ctx, req, quantities, processedBy)
			if err != nil {
				return err
			}
		} else {
			for i := range req.Items {
				item := &req.Items[i]
				if q, ok := quantities[item.ID]; ok && to == entity.StatusApproved {
					item.ApprovedQuantity = decimal.NewNullDecimal(q)
				}
				item.Status = to
				if err := s.stores.Requests.UpdateItem(ctx, item); err != nil {
					return storeErr(err, "supply request item")
				}
			}
		}

		req.Status = to
		req.ProcessedBy = processedBy
		req.ProcessedAt = &processedAt
		if err := s.stores.Requests.Update(ctx, req); err != nil {
			return storeErr(err, "supply request")
		}
		changed = true
		return s.writeHistory(ctx, req.ID, entity.ActionStatusChange, string(from), to,
			fmt.Sprintf("%s -> %s", from.Label(), to.Label()), op)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.committed(ctx, result, from, "")
		for _, m := range movements {
			s.metrics.Movement(string(m.MovementType))
		}
	}
	return result, nil
}

// Cancel cancels a non-terminal request. Cancelling a cancelled request is
// a no-op; a delivered request cannot be cancelled.
func (s *SupplyRequestService) Cancel(ctx context.Context, id uint, reason string, op Operator) (*entity.SupplyRequest, error) {
	reason = strings.TrimSpace(reason)
	var (
		result  *entity.SupplyRequest
		from    entity.RequestStatus
		changed bool
	)
	err := s.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
		req, err := s.stores.Requests.FindByIDForUpdate(ctx, id)
		if err != nil {
			return storeErr(err, fmt.Sprintf("supply request %d", id))
		}
		result = req
		from = req.Status
		if from == entity.StatusCancelled {
			return nil
		}
		if !from.CanTransitionTo(entity.StatusCancelled) {
			return invalidState("cannot cancel supply request %d in status %s", id, from)
		}

		for i := range req.Items {
			req.Items[i].Status = entity.StatusCancelled
			if err := s.stores.Requests.UpdateItem(ctx, &req.Items[i]); err != nil {
				return storeErr(err, "supply request item")
			}
		}
		now := time.Now()
		req.Status = entity.StatusCancelled
		req.ProcessedBy = op.Label()
		req.ProcessedAt = &now
		if reason != "" {
			if req.Notes != "" {
				req.Notes += "\n"
			}
			req.Notes += "[CANCELLED] " + reason
		}
		if err := s.stores.Requests.Update(ctx, req); err != nil {
			return storeErr(err, "supply request")
		}
		changed = true
		return s.writeHistory(ctx, req.ID, entity.ActionCancel, string(from), entity.StatusCancelled, reason, op)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.committed(ctx, result, from, reason)
	}
	return result, nil
}

// Delete removes a PENDING request with its items and history
func (s *SupplyRequestService) Delete(ctx context.Context, id uint) error {
	err := s.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
		req, err := s.stores.Requests.FindByIDForUpdate(ctx, id)
		if err != nil {
			return storeErr(err, fmt.Sprintf("supply request %d", id))
		}
		if req.Status != entity.StatusPending {
			return invalidState("only PENDING supply requests can be deleted, %d is %s", id, req.Status)
		}
		return storeErr(s.stores.Requests.Delete(ctx, id), fmt.Sprintf("supply request %d", id))
	})
	if err != nil {
		return err
	}
	s.logger.Info("supply request deleted", zap.Uint("request_id", id))
	return nil
}

func (s *SupplyRequestService) writeHistory(ctx context.Context, requestID uint, action, from string, to entity.RequestStatus, content string, op Operator) error {
	h := &entity.SupplyRequestHistory{
		RequestID:    requestID,
		Action:       action,
		FromStatus:   from,
		ToStatus:     string(to),
		Content:      content,
		OperatorID:   op.ID,
		OperatorName: op.Name,
	}
	return storeErr(s.stores.History.Create(ctx, h), "supply request history")
}

// committed records metrics and emits the status change event
func (s *SupplyRequestService) committed(ctx context.Context, req *entity.SupplyRequest, from entity.RequestStatus, reason string) {
	s.metrics.Transition(string(from), string(req.Status))
	s.logger.Info("supply request status changed",
		zap.Uint("request_id", req.ID),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)),
		zap.String("processed_by", req.ProcessedBy))

	s.notifier.Notify(ctx, entity.StatusChangeEvent{
		EventID:     uuid.New().String(),
		RequestID:   req.ID,
		BranchID:    req.BranchID,
		FromStatus:  from,
		ToStatus:    req.Status,
		Priority:    req.Priority,
		TotalCost:   req.TotalCost,
		ProcessedBy: req.ProcessedBy,
		Reason:      reason,
		OccurredAt:  time.Now(),
	})
}

func findItem(req *entity.SupplyRequest, itemID uint) *entity.SupplyRequestItem {
	for i := range req.Items {
		if req.Items[i].ID == itemID {
			return &req.Items[i]
		}
	}
	return nil
}

// itemCeiling is the most an item may be approved or delivered: the requested
// quantity, or the approved one once set.
func itemCeiling(item *entity.SupplyRequestItem, to entity.RequestStatus) decimal.Decimal {
	if to == entity.StatusDelivered && item.ApprovedQuantity.Valid {
		return item.ApprovedQuantity.Decimal
	}
	return item.RequestedQuantity
}
