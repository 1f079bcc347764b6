package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
)

func seeded() *Store {
	s := New()
	s.SeedBranch(entity.Branch{ID: 5, Name: "Gangnam"})
	s.SeedMaterial(entity.Material{ID: 10, Code: "M010", Name: "Flour", Unit: "kg"})
	s.SeedMaterial(entity.Material{ID: 11, Code: "M011", Name: "Sugar", Unit: "kg"})
	return s
}

func movement(materialID, refID uint, item *uint, qty int64) *entity.StockMovement {
	return &entity.StockMovement{
		BranchID:        5,
		MaterialID:      materialID,
		MovementType:    entity.MovementSupplyIn,
		Quantity:        decimal.NewFromInt(qty),
		ReferenceType:   entity.RefSupplyRequest,
		ReferenceID:     refID,
		ReferenceItemID: item,
		MovementDate:    time.Now(),
	}
}

func TestTransaction_Rollback(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(ctx context.Context) error {
		st, err := s.Stocks.LockOrCreate(ctx, 5, 10, entity.DefaultMaxStock)
		if err != nil {
			return err
		}
		st.CurrentStock = decimal.NewFromInt(9)
		if err := s.Stocks.Update(ctx, st); err != nil {
			return err
		}
		// nested call joins the outer transaction
		return s.Transaction(ctx, func(ctx context.Context) error {
			if err := s.Ledger.Append(ctx, movement(10, 1, nil, 9)); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Stocks.Find(ctx, 5, 10); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected snapshot rolled back, got %v", err)
	}
	rows, _ := s.Ledger.History(ctx, 5, 10)
	if len(rows) != 0 {
		t.Errorf("expected no ledger rows, got %d", len(rows))
	}
}

func TestLedger_ReferenceUniqueness(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	item := uint(3)

	if err := s.Ledger.Append(ctx, movement(10, 1, &item, 5)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Ledger.Append(ctx, movement(10, 1, &item, 5)); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	// references without an item id are not deduplicated
	if err := s.Ledger.Append(ctx, movement(10, 1, nil, 5)); err != nil {
		t.Errorf("expected nil-item reference to append, got %v", err)
	}
	if err := s.Ledger.Append(ctx, movement(10, 1, nil, 5)); err != nil {
		t.Errorf("expected second nil-item reference to append, got %v", err)
	}
}

func TestLedger_FailAppendWith(t *testing.T) {
	s := seeded()
	injected := errors.New("disk full")
	s.FailAppendWith(func(m *entity.StockMovement) error {
		if m.MaterialID == 11 {
			return injected
		}
		return nil
	})

	ctx := context.Background()
	if err := s.Ledger.Append(ctx, movement(10, 1, nil, 1)); err != nil {
		t.Fatalf("unexpected error for material 10: %v", err)
	}
	if err := s.Ledger.Append(ctx, movement(11, 1, nil, 1)); !errors.Is(err, injected) {
		t.Errorf("expected injected error, got %v", err)
	}
	s.FailAppendWith(nil)
	if err := s.Ledger.Append(ctx, movement(11, 1, nil, 1)); err != nil {
		t.Errorf("expected hook cleared, got %v", err)
	}
}

func TestLedger_QueryAndKeys(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	for i, mat := range []uint{11, 10, 11} {
		m := movement(mat, uint(i+1), nil, int64(i+1))
		m.MovementDate = time.Date(2026, 1, i+1, 12, 0, 0, 0, time.UTC)
		if err := s.Ledger.Append(ctx, m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rows, total, err := s.Ledger.FindAll(ctx, repository.MovementListParams{BranchID: 5, Search: "sug"})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if total != 2 || rows[0].ReferenceID != 3 {
		t.Errorf("expected 2 sugar rows newest first, got %d (first ref %d)", total, rows[0].ReferenceID)
	}

	to := time.Date(2026, 1, 2, 23, 59, 59, 0, time.UTC)
	_, total, _ = s.Ledger.FindAll(ctx, repository.MovementListParams{BranchID: 5, To: &to})
	if total != 2 {
		t.Errorf("expected 2 rows up to Jan 2, got %d", total)
	}

	keys, err := s.Ledger.Keys(ctx, 5)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0].MaterialID != 10 || keys[1].MaterialID != 11 {
		t.Errorf("expected sorted distinct keys, got %v", keys)
	}
}

func TestRequests_CreateFindDelete(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	req := &entity.SupplyRequest{
		BranchID: 5,
		Status:   entity.StatusPending,
		Items: []entity.SupplyRequestItem{
			{MaterialID: 10, RequestedQuantity: decimal.NewFromInt(2)},
			{MaterialID: 11, RequestedQuantity: decimal.NewFromInt(3)},
		},
	}
	if err := s.Requests.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.ID != 1 {
		t.Errorf("expected first request id 1, got %d", req.ID)
	}
	s.History.Create(ctx, &entity.SupplyRequestHistory{RequestID: req.ID, Action: entity.ActionCreate})

	got, err := s.Requests.FindByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].RequestID != req.ID {
		t.Errorf("unexpected items: %+v", got.Items)
	}

	// returned values are copies
	got.Status = entity.StatusCancelled
	again, _ := s.Requests.FindByID(ctx, req.ID)
	if again.Status != entity.StatusPending {
		t.Error("mutating a returned request changed the store")
	}

	if err := s.Requests.Delete(ctx, req.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Requests.FindByID(ctx, req.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	rows, _ := s.History.FindByRequest(ctx, req.ID)
	if len(rows) != 0 {
		t.Errorf("expected history removed, got %d", len(rows))
	}
	if err := s.Requests.Delete(ctx, req.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
