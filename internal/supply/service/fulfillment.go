package service

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
)

// FulfillmentProcessor credits a delivered request into branch stock
type FulfillmentProcessor struct {
	requests RequestStore
	poster   *LedgerPoster
}

func NewFulfillmentProcessor(requests RequestStore, poster *LedgerPoster) *FulfillmentProcessor {
	return &FulfillmentProcessor{requests: requests, poster: poster}
}

// OnDelivery posts one SUPPLY_IN per item, in ascending material id order.
// delivered overrides the credited quantity per item id. Items are updated
// in place with their delivered quantity. Must run inside the caller's
// transaction.
func (p *FulfillmentProcessor) OnDelivery(ctx context.Context, req *entity.SupplyRequest, delivered map[uint]decimal.Decimal, performedBy string) ([]entity.StockMovement, error) {
	order := make([]int, len(req.Items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := req.Items[order[a]], req.Items[order[b]]
		if ia.MaterialID != ib.MaterialID {
			return ia.MaterialID < ib.MaterialID
		}
		return ia.ID < ib.ID
	})

	var movements []entity.StockMovement
	for _, idx := range order {
		item := &req.Items[idx]
		qty := item.CreditedQuantity()
		if q, ok := delivered[item.ID]; ok {
			qty = q
		}
		item.DeliveredQuantity = decimal.NewNullDecimal(qty)
		item.Status = entity.StatusDelivered
		if err := p.requests.UpdateItem(ctx, item); err != nil {
			return nil, storeErr(err, "supply request item")
		}
		if qty.IsZero() {
			continue
		}

		itemID := item.ID
		m, _, err := p.poster.Post(ctx, PostInput{
			BranchID:        req.BranchID,
			MaterialID:      item.MaterialID,
			Type:            entity.MovementSupplyIn,
			Quantity:        qty,
			Unit:            item.Unit,
			CostPerUnit:     item.CostPerUnit,
			ReferenceType:   entity.RefSupplyRequest,
			ReferenceID:     req.ID,
			ReferenceItemID: &itemID,
			Notes:           "supply request delivery",
			PerformedBy:     performedBy,
		})
		if err != nil {
			return nil, err
		}
		movements = append(movements, *m)
	}
	return movements, nil
}
