package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/service"
)

// StockHandler stock snapshot and adjustment endpoints
type StockHandler struct {
	svc       *service.StockService
	reconcile *service.ReconciliationService
}

func NewStockHandler(svc *service.StockService, reconcile *service.ReconciliationService) *StockHandler {
	return &StockHandler{svc: svc, reconcile: reconcile}
}

// List GET /api/v1/stocks?branch_id=&material_id=&low_stock=true
func (h *StockHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	branchID, ok := uintQuery(c, "branch_id")
	if !ok {
		return
	}
	materialID, ok := uintQuery(c, "material_id")
	if !ok {
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), repository.StockListParams{
		BranchID:   branchID,
		MaterialID: materialID,
		LowStock:   c.Query("low_stock") == "true",
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// Alerts GET /api/v1/stocks/alerts?branch_id=
func (h *StockHandler) Alerts(c *gin.Context) {
	branchID, ok := uintQuery(c, "branch_id")
	if !ok {
		return
	}
	items, err := h.svc.Alerts(c.Request.Context(), branchID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

// Get GET /api/v1/stocks/:branch_id/:material_id
func (h *StockHandler) Get(c *gin.Context) {
	branchID, materialID, ok := stockKey(c)
	if !ok {
		return
	}
	st, err := h.svc.Get(c.Request.Context(), branchID, materialID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, st)
}

// UpdateThresholds PUT /api/v1/stocks/:branch_id/:material_id/thresholds
func (h *StockHandler) UpdateThresholds(c *gin.Context) {
	branchID, materialID, ok := stockKey(c)
	if !ok {
		return
	}
	var req service.ThresholdInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	st, err := h.svc.UpdateThresholds(c.Request.Context(), branchID, materialID, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, st)
}

// Adjust POST /api/v1/stocks/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	h.movement(c, h.svc.Adjust)
}

// RecordLoss POST /api/v1/stocks/loss
func (h *StockHandler) RecordLoss(c *gin.Context) {
	h.movement(c, h.svc.RecordLoss)
}

// RecordReturn POST /api/v1/stocks/return
func (h *StockHandler) RecordReturn(c *gin.Context) {
	h.movement(c, h.svc.RecordReturn)
}

type movementFunc func(ctx context.Context, in *service.MovementInput, op service.Operator) (*entity.StockMovement, error)

func (h *StockHandler) movement(c *gin.Context, fn movementFunc) {
	var req service.MovementInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := fn(c.Request.Context(), &req, GetOperator(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, m)
}

// DeductSale POST /api/v1/stocks/sale-deduction
func (h *StockHandler) DeductSale(c *gin.Context) {
	var req service.SaleDeductionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rows, err := h.svc.DeductSale(c.Request.Context(), &req, GetOperator(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, rows)
}

// Reconcile GET /api/v1/stocks/:branch_id/:material_id/reconcile
func (h *StockHandler) Reconcile(c *gin.Context) {
	branchID, materialID, ok := stockKey(c)
	if !ok {
		return
	}
	report, err := h.reconcile.Reconcile(c.Request.Context(), branchID, materialID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, report)
}

// ReconcileBranch GET /api/v1/branches/:branch_id/reconcile
func (h *StockHandler) ReconcileBranch(c *gin.Context) {
	branchID, ok := uintParam(c, "branch_id")
	if !ok {
		return
	}
	reports, err := h.reconcile.ReconcileBranch(c.Request.Context(), branchID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, reports)
}

func stockKey(c *gin.Context) (uint, uint, bool) {
	branchID, ok := uintParam(c, "branch_id")
	if !ok {
		return 0, 0, false
	}
	materialID, ok := uintParam(c, "material_id")
	if !ok {
		return 0, 0, false
	}
	return branchID, materialID, true
}
