package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Repositories supply repository set
type Repositories struct {
	Tx       *TxManager
	Branch   *BranchRepository
	Material *MaterialRepository
	Request  *SupplyRequestRepository
	History  *HistoryRepository
	Stock    *StockRepository
	Ledger   *LedgerRepository
}

// NewRepositories creates the gorm backed repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tx:       NewTxManager(db),
		Branch:   NewBranchRepository(db),
		Material: NewMaterialRepository(db),
		Request:  NewSupplyRequestRepository(db),
		History:  NewHistoryRepository(db),
		Stock:    NewStockRepository(db),
		Ledger:   NewLedgerRepository(db),
	}
}

// RequestListParams supply request list filters
type RequestListParams struct {
	BranchID uint
	Status   string
	Priority string
	Page     int
	PageSize int
}

// StockListParams snapshot list filters
type StockListParams struct {
	BranchID   uint
	MaterialID uint
	LowStock   bool
	Page       int
	PageSize   int
}

// MovementListParams ledger filters. Zero values mean "no filter".
type MovementListParams struct {
	BranchID     uint
	MaterialID   uint
	MovementType string
	From         *time.Time
	To           *time.Time
	Search       string
	Page         int
	PageSize     int
}

// Normalize applies the default paging used by every list query.
func Normalize(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return page, pageSize
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
