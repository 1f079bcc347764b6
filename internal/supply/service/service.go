package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/metrics"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
	"go.uber.org/zap"
)

// Transactor runs fn atomically; stores called with the ctx passed to fn
// join the transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type BranchDirectory interface {
	FindBranch(ctx context.Context, id uint) (*entity.Branch, error)
}

type MaterialCatalog interface {
	FindMaterial(ctx context.Context, id uint) (*entity.Material, error)
}

type RequestStore interface {
	Create(ctx context.Context, req *entity.SupplyRequest) error
	FindByID(ctx context.Context, id uint) (*entity.SupplyRequest, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*entity.SupplyRequest, error)
	FindAll(ctx context.Context, params repository.RequestListParams) ([]entity.SupplyRequest, int64, error)
	Update(ctx context.Context, req *entity.SupplyRequest) error
	UpdateItem(ctx context.Context, item *entity.SupplyRequestItem) error
	Delete(ctx context.Context, id uint) error
}

type HistoryStore interface {
	Create(ctx context.Context, h *entity.SupplyRequestHistory) error
	FindByRequest(ctx context.Context, requestID uint) ([]entity.SupplyRequestHistory, error)
}

type SnapshotStore interface {
	LockOrCreate(ctx context.Context, branchID, materialID uint, maxDefault decimal.Decimal) (*entity.MaterialStock, error)
	Find(ctx context.Context, branchID, materialID uint) (*entity.MaterialStock, error)
	Update(ctx context.Context, s *entity.MaterialStock) error
	List(ctx context.Context, params repository.StockListParams) ([]entity.MaterialStock, int64, error)
	ListAll(ctx context.Context, branchID uint) ([]entity.MaterialStock, error)
}

type LedgerStore interface {
	Append(ctx context.Context, m *entity.StockMovement) error
	FindAll(ctx context.Context, params repository.MovementListParams) ([]entity.StockMovement, int64, error)
	History(ctx context.Context, branchID, materialID uint) ([]entity.StockMovement, error)
	Keys(ctx context.Context, branchID uint) ([]repository.StockKey, error)
}

// Notifier receives committed status changes. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, ev entity.StatusChangeEvent)
}

// Stores backend used by the services
type Stores struct {
	Tx        Transactor
	Branches  BranchDirectory
	Materials MaterialCatalog
	Requests  RequestStore
	History   HistoryStore
	Stocks    SnapshotStore
	Ledger    LedgerStore
}

// InventoryOptions inventory policy
type InventoryOptions struct {
	AllowNegativeStock bool
	DefaultMaxStock    decimal.Decimal
}

// Operator who performs an operation
type Operator struct {
	ID   string
	Name string
}

// Label name if known, else id
func (o Operator) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return o.ID
}

// Services supply service set
type Services struct {
	Requests       *SupplyRequestService
	Stock          *StockService
	Ledger         *LedgerService
	Reconciliation *ReconciliationService
	Fulfillment    *FulfillmentProcessor
	Poster         *LedgerPoster
}

// NewServices wires the services over the given stores
func NewServices(stores Stores, notifier Notifier, m *metrics.Metrics, opts InventoryOptions, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultMaxStock.IsZero() {
		opts.DefaultMaxStock = entity.DefaultMaxStock
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	poster := NewLedgerPoster(stores.Stocks, stores.Ledger, opts)
	fulfillment := NewFulfillmentProcessor(stores.Requests, poster)
	return &Services{
		Requests:       NewSupplyRequestService(stores, fulfillment, notifier, m, logger),
		Stock:          NewStockService(stores, poster, m, logger),
		Ledger:         NewLedgerService(stores.Ledger, stores.Stocks, stores.Materials),
		Reconciliation: NewReconciliationService(stores.Ledger, stores.Stocks, m, logger),
		Fulfillment:    fulfillment,
		Poster:         poster,
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, entity.StatusChangeEvent) {}
