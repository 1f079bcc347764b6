package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
)

func TestReconcile_ConsistentAfterOperations(t *testing.T) {
	env := newTestEnv(t, InventoryOptions{})
	ctx := context.Background()
	req := env.createRequest(t, CreateRequestItem{MaterialID: 10, Quantity: dec("20")}, CreateRequestItem{MaterialID: 11, Quantity: dec("4")})
	if _, err := env.svc.Requests.Transition(ctx, req.ID, &TransitionInput{Status: "DELIVERED"}, env.op); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := env.svc.Stock.RecordLoss(ctx, &MovementInput{BranchID: 5, MaterialID: 10, Quantity: dec("2.25")}, env.op); err != nil {
		t.Fatalf("loss: %v", err)
	}
	if _, err := env.svc.Stock.Adjust(ctx, &MovementInput{BranchID: 5, MaterialID: 11, Quantity: dec("1")}, env.op); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	reports, err := env.svc.Reconciliation.ReconcileBranch(ctx, 5)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	for _, r := range reports {
		if !r.Consistent || !r.Drift.IsZero() || r.BrokenChainAt != nil {
			t.Fatalf("expected consistent report, got %+v", r)
		}
	}
	if !reports[0].LedgerStock.Equal(dec("17.75")) || reports[0].MovementCount != 2 {
		t.Fatalf("unexpected flour report %+v", reports[0])
	}
	if got := testutil.ToFloat64(env.metrics.ReconcileMismatches); got != 0 {
		t.Fatalf("expected no mismatches, got %v", got)
	}
}

func TestReconcile_DetectsDrift(t *testing.T) {
	env := newTestEnv(t, InventoryOptions{})
	ctx := context.Background()
	req := env.createRequest(t)
	if _, err := env.svc.Requests.Transition(ctx, req.ID, &TransitionInput{Status: "DELIVERED"}, env.op); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	// snapshot edited outside the ledger
	env.store.SeedStock(entity.MaterialStock{BranchID: 5, MaterialID: 10, CurrentStock: dec("23")})

	r, err := env.svc.Reconciliation.Reconcile(ctx, 5, 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if r.Consistent || !r.Drift.Equal(dec("3")) || !r.LedgerStock.Equal(dec("20")) {
		t.Fatalf("expected drift of 3, got %+v", r)
	}
	if got := testutil.ToFloat64(env.metrics.ReconcileMismatches); got != 1 {
		t.Fatalf("expected 1 mismatch, got %v", got)
	}
}

func TestReconcile_BrokenChainAndMissingSnapshot(t *testing.T) {
	env := newTestEnv(t, InventoryOptions{})
	ctx := context.Background()
	bad := &entity.StockMovement{BranchID: 6, MaterialID: 10, MovementType: entity.MovementReturn, ReferenceType: entity.RefManual, Quantity: dec("2")}
	bad.BalanceAfter.Valid = true
	bad.BalanceAfter.Decimal = dec("5")
	if err := env.store.Ledger.Append(ctx, bad); err != nil {
		t.Fatalf("append: %v", err)
	}

	r, err := env.svc.Reconciliation.Reconcile(ctx, 6, 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if r.HasSnapshot || r.Consistent || !r.Drift.Equal(dec("-2")) {
		t.Fatalf("expected missing snapshot counted as zero, got %+v", r)
	}
	if r.BrokenChainAt == nil || *r.BrokenChainAt != bad.ID {
		t.Fatalf("expected broken chain at %d, got %v", bad.ID, r.BrokenChainAt)
	}

	if _, err := env.svc.Reconciliation.Reconcile(ctx, 6, 11); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found with no snapshot and no ledger, got %v", err)
	}
}
