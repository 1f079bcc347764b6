package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/service"
)

// SupplyRequestHandler supply request endpoints
type SupplyRequestHandler struct {
	svc *service.SupplyRequestService
}

func NewSupplyRequestHandler(svc *service.SupplyRequestService) *SupplyRequestHandler {
	return &SupplyRequestHandler{svc: svc}
}

// Create POST /api/v1/supply-requests
func (h *SupplyRequestHandler) Create(c *gin.Context) {
	var req service.CreateSupplyRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	created, err := h.svc.Create(c.Request.Context(), &req, GetOperator(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, created)
}

// List GET /api/v1/supply-requests?branch_id=&status=&priority=
func (h *SupplyRequestHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	branchID, ok := uintQuery(c, "branch_id")
	if !ok {
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), repository.RequestListParams{
		BranchID: branchID,
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, listResponse(items, page, pageSize, total))
}

// Get GET /api/v1/supply-requests/:id
func (h *SupplyRequestHandler) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	req, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, req)
}

// History GET /api/v1/supply-requests/:id/history
func (h *SupplyRequestHandler) History(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

// Transition PUT /api/v1/supply-requests/:id/status
func (h *SupplyRequestHandler) Transition(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req service.TransitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	updated, err := h.svc.Transition(c.Request.Context(), id, &req, GetOperator(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, updated)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel POST /api/v1/supply-requests/:id/cancel
func (h *SupplyRequestHandler) Cancel(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	updated, err := h.svc.Cancel(c.Request.Context(), id, req.Reason, GetOperator(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, updated)
}

// Delete DELETE /api/v1/supply-requests/:id
func (h *SupplyRequestHandler) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}
