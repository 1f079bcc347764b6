package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shstksdbs/ERP-Project-sub001/internal/middleware"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/notify"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/service"
)

// Handlers supply handler set
type Handlers struct {
	Request *SupplyRequestHandler
	Stock   *StockHandler
	Ledger  *LedgerHandler
	Events  *EventHandler
}

func NewHandlers(svc *service.Services, hub *notify.Hub) *Handlers {
	return &Handlers{
		Request: NewSupplyRequestHandler(svc.Requests),
		Stock:   NewStockHandler(svc.Stock, svc.Reconciliation),
		Ledger:  NewLedgerHandler(svc.Ledger),
		Events:  NewEventHandler(hub),
	}
}

// RegisterRoutes mounts the supply API on the /api/v1 group
func (h *Handlers) RegisterRoutes(v1 *gin.RouterGroup) {
	requests := v1.Group("/supply-requests")
	{
		requests.POST("", h.Request.Create)
		requests.GET("", h.Request.List)
		requests.GET("/:id", h.Request.Get)
		requests.GET("/:id/history", h.Request.History)
		requests.PUT("/:id/status", h.Request.Transition)
		requests.POST("/:id/cancel", h.Request.Cancel)
		requests.DELETE("/:id", h.Request.Delete)
	}

	stocks := v1.Group("/stocks")
	{
		stocks.GET("", h.Stock.List)
		stocks.GET("/alerts", h.Stock.Alerts)
		stocks.POST("/adjust", h.Stock.Adjust)
		stocks.POST("/loss", h.Stock.RecordLoss)
		stocks.POST("/return", h.Stock.RecordReturn)
		stocks.POST("/sale-deduction", h.Stock.DeductSale)
		stocks.GET("/:branch_id/:material_id", h.Stock.Get)
		stocks.PUT("/:branch_id/:material_id/thresholds", h.Stock.UpdateThresholds)
		stocks.GET("/:branch_id/:material_id/reconcile", h.Stock.Reconcile)
	}

	branches := v1.Group("/branches/:branch_id")
	{
		branches.GET("/reconcile", h.Stock.ReconcileBranch)
		branches.GET("/stock-movements", h.Ledger.ByBranch)
		branches.GET("/stock-movements/export", h.Ledger.Export)
	}

	v1.GET("/materials/:material_id/stock-movements", h.Ledger.ByMaterial)
	v1.GET("/events", h.Events.Stream)
}

// === response helpers ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail maps a service error onto the envelope
func Fail(c *gin.Context, err error) {
	c.Error(err)
	switch {
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		Conflict(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetOperator the acting user set by middleware.Operator
func GetOperator(c *gin.Context) service.Operator {
	return service.Operator{
		ID:   c.GetString(middleware.KeyOperatorID),
		Name: c.GetString(middleware.KeyOperatorName),
	}
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func listResponse(items interface{}, page, pageSize int, total int64) ListResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	}
}

// uintParam parses a positive id path parameter
func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// uintQuery parses an optional id query parameter; empty means 0
func uintQuery(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}
