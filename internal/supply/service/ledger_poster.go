package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
)

// PostInput one stock movement to apply
type PostInput struct {
	BranchID        uint
	MaterialID      uint
	Type            entity.MovementType
	Quantity        decimal.Decimal // signed
	Unit            string
	CostPerUnit     decimal.Decimal
	ReferenceType   string
	ReferenceID     uint
	ReferenceItemID *uint
	Notes           string
	PerformedBy     string
}

// LedgerPoster applies a movement to the snapshot and appends it to the
// ledger as one unit.
type LedgerPoster struct {
	stocks SnapshotStore
	ledger LedgerStore
	opts   InventoryOptions
}

func NewLedgerPoster(stocks SnapshotStore, ledger LedgerStore, opts InventoryOptions) *LedgerPoster {
	if opts.DefaultMaxStock.IsZero() {
		opts.DefaultMaxStock = entity.DefaultMaxStock
	}
	return &LedgerPoster{stocks: stocks, ledger: ledger, opts: opts}
}

// Post locks (or creates) the snapshot, moves current stock by the signed
// quantity and appends the ledger row with the resulting balance. Call it
// inside a transaction; a failure leaves both untouched after rollback.
func (p *LedgerPoster) Post(ctx context.Context, in PostInput) (*entity.StockMovement, *entity.MaterialStock, error) {
	if in.Quantity.IsZero() {
		return nil, nil, validation("movement quantity must not be zero")
	}
	if sign := in.Type.Sign(); sign != 0 && in.Quantity.Sign() != sign {
		return nil, nil, validation("%s quantity has the wrong sign", in.Type)
	}
	if err := checkStored(in.Quantity, "movement quantity"); err != nil {
		return nil, nil, err
	}

	stock, err := p.stocks.LockOrCreate(ctx, in.BranchID, in.MaterialID, p.opts.DefaultMaxStock)
	if err != nil {
		return nil, nil, storeErr(err, "material stock")
	}

	next := stock.CurrentStock.Add(in.Quantity)
	if in.Quantity.IsNegative() && !p.opts.AllowNegativeStock && next.Sub(stock.ReservedStock).IsNegative() {
		return nil, nil, invalidState("insufficient stock for material %d at branch %d: available %s, requested %s",
			in.MaterialID, in.BranchID, stock.AvailableStock().String(), in.Quantity.Neg().String())
	}

	if next.Abs().GreaterThanOrEqual(storedLimit) {
		return nil, nil, validation("stock of material %d at branch %d would leave the storable range", in.MaterialID, in.BranchID)
	}

	now := time.Now()
	stock.CurrentStock = next
	stock.LastUpdated = now
	if err := p.stocks.Update(ctx, stock); err != nil {
		return nil, nil, storeErr(err, "material stock")
	}

	movement := &entity.StockMovement{
		MaterialID:      in.MaterialID,
		BranchID:        in.BranchID,
		MovementType:    in.Type,
		Quantity:        in.Quantity,
		Unit:            in.Unit,
		CostPerUnit:     in.CostPerUnit,
		TotalCost:       in.Quantity.Abs().Mul(in.CostPerUnit).Round(2),
		BalanceAfter:    decimal.NewNullDecimal(next),
		ReferenceType:   in.ReferenceType,
		ReferenceID:     in.ReferenceID,
		ReferenceItemID: in.ReferenceItemID,
		Notes:           in.Notes,
		PerformedBy:     in.PerformedBy,
		MovementDate:    now,
	}
	if err := p.ledger.Append(ctx, movement); err != nil {
		return nil, nil, storeErr(err, "stock movement")
	}
	return movement, stock, nil
}
