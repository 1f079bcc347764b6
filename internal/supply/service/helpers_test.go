package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/metrics"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/memstore"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []entity.StatusChangeEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev entity.StatusChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type testEnv struct {
	store    *memstore.Store
	svc      *Services
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	op       Operator
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEnv(t *testing.T, opts InventoryOptions) *testEnv {
	t.Helper()
	store := memstore.New()
	store.SeedBranch(entity.Branch{ID: 5, Code: "B005", Name: "Gangnam"})
	store.SeedBranch(entity.Branch{ID: 6, Code: "B006", Name: "Hongdae"})
	store.SeedMaterial(entity.Material{ID: 10, Code: "M010", Name: "Flour", Unit: "kg", CostPerUnit: dec("3.50")})
	store.SeedMaterial(entity.Material{ID: 11, Code: "M011", Name: "Sugar", Unit: "kg", CostPerUnit: dec("2.00")})

	n := &recordingNotifier{}
	m := metrics.New()
	svc := NewServices(Stores{
		Tx:        store,
		Branches:  store.Branches,
		Materials: store.Materials,
		Requests:  store.Requests,
		History:   store.History,
		Stocks:    store.Stocks,
		Ledger:    store.Ledger,
	}, n, m, opts, nil)
	return &testEnv{store: store, svc: svc, notifier: n, metrics: m, op: Operator{ID: "u1", Name: "Kim"}}
}

func (e *testEnv) createRequest(t *testing.T, items ...CreateRequestItem) *entity.SupplyRequest {
	t.Helper()
	if len(items) == 0 {
		items = []CreateRequestItem{{MaterialID: 10, Quantity: dec("20")}}
	}
	req, err := e.svc.Requests.Create(context.Background(), &CreateSupplyRequestInput{
		BranchID: 5,
		Items:    items,
	}, e.op)
	if err != nil {
		t.Fatalf("create supply request: %v", err)
	}
	return req
}

func (e *testEnv) movements(t *testing.T, branchID, materialID uint) []entity.StockMovement {
	t.Helper()
	rows, err := e.store.Ledger.History(context.Background(), branchID, materialID)
	if err != nil {
		t.Fatalf("ledger history: %v", err)
	}
	return rows
}

func (e *testEnv) stock(t *testing.T, branchID, materialID uint) decimal.Decimal {
	t.Helper()
	st, err := e.store.Stocks.Find(context.Background(), branchID, materialID)
	if err != nil {
		t.Fatalf("find stock: %v", err)
	}
	return st.CurrentStock
}
