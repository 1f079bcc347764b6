package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/metrics"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
	"go.uber.org/zap"
)

// StockService manual and sales driven stock movements
type StockService struct {
	stores  Stores
	poster  *LedgerPoster
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewStockService(stores Stores, poster *LedgerPoster, m *metrics.Metrics, logger *zap.Logger) *StockService {
	return &StockService{stores: stores, poster: poster, metrics: m, logger: logger}
}

// MovementInput adjustment, loss or return of one material
type MovementInput struct {
	BranchID   uint            `json:"branch_id" binding:"required"`
	MaterialID uint            `json:"material_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reason     string          `json:"reason"`
}

// SaleDeductionInput stock consumed by a sales order
type SaleDeductionInput struct {
	BranchID uint       `json:"branch_id" binding:"required"`
	OrderID  uint       `json:"order_id" binding:"required"`
	Lines    []SaleLine `json:"lines"`
}

type SaleLine struct {
	MaterialID uint            `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ThresholdInput snapshot thresholds
type ThresholdInput struct {
	MinStock decimal.Decimal `json:"min_stock"`
	MaxStock decimal.Decimal `json:"max_stock"`
}

// Adjust applies a signed correction
func (s *StockService) Adjust(ctx context.Context, in *MovementInput, op Operator) (*entity.StockMovement, error) {
	if in.Quantity.IsZero() {
		return nil, validation("adjustment quantity must not be zero")
	}
	return s.single(ctx, in, entity.MovementAdjustment, in.Quantity, op)
}

// RecordLoss debits spoiled or lost stock
func (s *StockService) RecordLoss(ctx context.Context, in *MovementInput, op Operator) (*entity.StockMovement, error) {
	if !in.Quantity.IsPositive() {
		return nil, validation("loss quantity must be positive")
	}
	return s.single(ctx, in, entity.MovementLoss, in.Quantity.Neg(), op)
}

// RecordReturn credits stock returned to the branch
func (s *StockService) RecordReturn(ctx context.Context, in *MovementInput, op Operator) (*entity.StockMovement, error) {
	if !in.Quantity.IsPositive() {
		return nil, validation("return quantity must be positive")
	}
	return s.single(ctx, in, entity.MovementReturn, in.Quantity, op)
}

func (s *StockService) single(ctx context.Context, in *MovementInput, t entity.MovementType, qty decimal.Decimal, op Operator) (*entity.StockMovement, error) {
	if err := checkStored(qty, "quantity"); err != nil {
		return nil, err
	}
	if _, err := s.stores.Branches.FindBranch(ctx, in.BranchID); err != nil {
		return nil, storeErr(err, fmt.Sprintf("branch %d", in.BranchID))
	}
	material, err := s.stores.Materials.FindMaterial(ctx, in.MaterialID)
	if err != nil {
		return nil, storeErr(err, fmt.Sprintf("material %d", in.MaterialID))
	}

	var movement *entity.StockMovement
	err = s.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
		m, _, err := s.poster.Post(ctx, PostInput{
			BranchID:      in.BranchID,
			MaterialID:    in.MaterialID,
			Type:          t,
			Quantity:      qty,
			Unit:          material.Unit,
			CostPerUnit:   material.CostPerUnit,
			ReferenceType: entity.RefManual,
			Notes:         strings.TrimSpace(in.Reason),
			PerformedBy:   op.Label(),
		})
		movement = m
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Movement(string(t))
	s.logger.Info("stock movement recorded",
		zap.String("type", string(t)),
		zap.Uint("branch_id", in.BranchID),
		zap.Uint("material_id", in.MaterialID),
		zap.String("quantity", qty.String()))
	return movement, nil
}

// DeductSale debits every line of a sales order atomically. Lines of the
// same material are merged; an order is deducted at most once per material.
func (s *StockService) DeductSale(ctx context.Context, in *SaleDeductionInput, op Operator) ([]entity.StockMovement, error) {
	if in.OrderID == 0 {
		return nil, validation("order_id is required")
	}
	if len(in.Lines) == 0 {
		return nil, validation("at least one line is required")
	}
	merged := make(map[uint]decimal.Decimal)
	for i, line := range in.Lines {
		if line.MaterialID == 0 {
			return nil, validation("lines[%d]: material_id is required", i)
		}
		if !line.Quantity.IsPositive() {
			return nil, validation("lines[%d]: quantity must be positive", i)
		}
		if err := checkStored(line.Quantity, fmt.Sprintf("lines[%d]: quantity", i)); err != nil {
			return nil, err
		}
		merged[line.MaterialID] = merged[line.MaterialID].Add(line.Quantity)
	}
	for id, q := range merged {
		if err := checkStored(q, fmt.Sprintf("material %d: quantity", id)); err != nil {
			return nil, err
		}
	}
	if _, err := s.stores.Branches.FindBranch(ctx, in.BranchID); err != nil {
		return nil, storeErr(err, fmt.Sprintf("branch %d", in.BranchID))
	}

	materialIDs := make([]uint, 0, len(merged))
	materials := make(map[uint]*entity.Material, len(merged))
	for id := range merged {
		m, err := s.stores.Materials.FindMaterial(ctx, id)
		if err != nil {
			return nil, storeErr(err, fmt.Sprintf("material %d", id))
		}
		materials[id] = m
		materialIDs = append(materialIDs, id)
	}
	sort.Slice(materialIDs, func(i, j int) bool { return materialIDs[i] < materialIDs[j] })

	var movements []entity.StockMovement
	err := s.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
		movements = movements[:0]
		for _, id := range materialIDs {
			materialID := id
			m, _, err := s.poster.Post(ctx, PostInput{
				BranchID:        in.BranchID,
				MaterialID:      id,
				Type:            entity.MovementSaleDeduction,
				Quantity:        merged[id].Neg(),
				Unit:            materials[id].Unit,
				CostPerUnit:     materials[id].CostPerUnit,
				ReferenceType:   entity.RefOrder,
				ReferenceID:     in.OrderID,
				ReferenceItemID: &materialID,
				Notes:           fmt.Sprintf("order %d", in.OrderID),
				PerformedBy:     op.Label(),
			})
			if err != nil {
				return err
			}
			movements = append(movements, *m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for range movements {
		s.metrics.Movement(string(entity.MovementSaleDeduction))
	}
	return movements, nil
}

// UpdateThresholds sets min and max stock, creating the snapshot if needed
func (s *StockService) UpdateThresholds(ctx context.Context, branchID, materialID uint, in *ThresholdInput) (*entity.MaterialStock, error) {
	if in.MinStock.IsNegative() {
		return nil, validation("min_stock must not be negative")
	}
	if in.MaxStock.LessThan(in.MinStock) {
		return nil, validation("max_stock must not be below min_stock")
	}
	if err := checkStored(in.MinStock, "min_stock"); err != nil {
		return nil, err
	}
	if err := checkStored(in.MaxStock, "max_stock"); err != nil {
		return nil, err
	}
	if _, err := s.stores.Branches.FindBranch(ctx, branchID); err != nil {
		return nil, storeErr(err, fmt.Sprintf("branch %d", branchID))
	}
	if _, err := s.stores.Materials.FindMaterial(ctx, materialID); err != nil {
		return nil, storeErr(err, fmt.Sprintf("material %d", materialID))
	}

	var stock *entity.MaterialStock
	err := s.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
		st, err := s.stores.Stocks.LockOrCreate(ctx, branchID, materialID, s.poster.opts.DefaultMaxStock)
		if err != nil {
			return storeErr(err, "material stock")
		}
		st.MinStock = in.MinStock
		st.MaxStock = in.MaxStock
		stock = st
		return storeErr(s.stores.Stocks.Update(ctx, st), "material stock")
	})
	if err != nil {
		return nil, err
	}
	return stock, nil
}

// Get returns one snapshot
func (s *StockService) Get(ctx context.Context, branchID, materialID uint) (*entity.MaterialStock, error) {
	st, err := s.stores.Stocks.Find(ctx, branchID, materialID)
	if err != nil {
		return nil, storeErr(err, fmt.Sprintf("stock of material %d at branch %d", materialID, branchID))
	}
	return st, nil
}

// List lists snapshots
func (s *StockService) List(ctx context.Context, params repository.StockListParams) ([]entity.MaterialStock, int64, error) {
	items, total, err := s.stores.Stocks.List(ctx, params)
	if err != nil {
		return nil, 0, storeErr(err, "material stocks")
	}
	return items, total, nil
}

// Alerts snapshots below their minimum, optionally for one branch
func (s *StockService) Alerts(ctx context.Context, branchID uint) ([]entity.MaterialStock, error) {
	all, err := s.stores.Stocks.ListAll(ctx, branchID)
	if err != nil {
		return nil, storeErr(err, "material stocks")
	}
	low := make([]entity.MaterialStock, 0)
	for _, st := range all {
		if st.IsLow() {
			low = append(low, st)
		}
	}
	return low, nil
}
