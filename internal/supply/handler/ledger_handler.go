package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/service"
)

// LedgerHandler stock movement history endpoints
type LedgerHandler struct {
	svc *service.LedgerService
}

func NewLedgerHandler(svc *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// ByBranch GET /api/v1/branches/:branch_id/stock-movements
func (h *LedgerHandler) ByBranch(c *gin.Context) {
	branchID, ok := uintParam(c, "branch_id")
	if !ok {
		return
	}
	f, ok := movementFilter(c)
	if !ok {
		return
	}
	items, total, err := h.svc.ByBranch(c.Request.Context(), branchID, f)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, listResponse(items, f.Page, f.PageSize, total))
}

// ByMaterial GET /api/v1/materials/:material_id/stock-movements?branch_id=
func (h *LedgerHandler) ByMaterial(c *gin.Context) {
	materialID, ok := uintParam(c, "material_id")
	if !ok {
		return
	}
	branchID, ok := uintQuery(c, "branch_id")
	if !ok {
		return
	}
	f, ok := movementFilter(c)
	if !ok {
		return
	}
	items, total, err := h.svc.ByMaterial(c.Request.Context(), materialID, branchID, f)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, listResponse(items, f.Page, f.PageSize, total))
}

// Export GET /api/v1/branches/:branch_id/stock-movements/export
func (h *LedgerHandler) Export(c *gin.Context) {
	branchID, ok := uintParam(c, "branch_id")
	if !ok {
		return
	}
	f, ok := movementFilter(c)
	if !ok {
		return
	}
	file, filename, err := h.svc.Export(c.Request.Context(), branchID, f)
	if err != nil {
		Fail(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	if err := file.Write(c.Writer); err != nil {
		c.Error(err)
	}
}

// movementFilter reads type, from, to, search and paging. Dates are YYYY-MM-DD
// or RFC3339; a bare "to" date includes the whole day.
func movementFilter(c *gin.Context) (service.MovementFilter, bool) {
	page, pageSize := GetPagination(c)
	f := service.MovementFilter{
		Type:     c.Query("type"),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := c.Query("from"); raw != "" {
		t, _, err := parseDate(raw)
		if err != nil {
			BadRequest(c, "invalid from")
			return f, false
		}
		f.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, dateOnly, err := parseDate(raw)
		if err != nil {
			BadRequest(c, "invalid to")
			return f, false
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		BadRequest(c, "to must not be before from")
		return f, false
	}
	return f, true
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}
