package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/metrics"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/memstore"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/notify"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/service"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/testutil"
)

type handlerEnv struct {
	router *gin.Engine
	store  *memstore.Store
	hub    *notify.Hub
	disp   *notify.Dispatcher
}

func setupSupplyTest(t *testing.T) *handlerEnv {
	t.Helper()
	store := memstore.New()
	store.SeedBranch(entity.Branch{ID: 5, Code: "B005", Name: "Gangnam"})
	store.SeedMaterial(entity.Material{ID: 10, Code: "M010", Name: "Flour", Unit: "kg", CostPerUnit: decimal.RequireFromString("3.50")})
	store.SeedMaterial(entity.Material{ID: 11, Code: "M011", Name: "Sugar", Unit: "kg", CostPerUnit: decimal.RequireFromString("2.00")})

	m := metrics.New()
	hub := notify.NewHub(nil)
	disp := notify.NewDispatcher(time.Second, m, nil, hub)
	svc := service.NewServices(service.Stores{
		Tx:        store,
		Branches:  store.Branches,
		Materials: store.Materials,
		Requests:  store.Requests,
		History:   store.History,
		Stocks:    store.Stocks,
		Ledger:    store.Ledger,
	}, disp, m, service.InventoryOptions{}, nil)

	router := testutil.SetupRouter()
	NewHandlers(svc, hub).RegisterRoutes(router.Group("/api/v1"))
	return &handlerEnv{router: router, store: store, hub: hub, disp: disp}
}

func (e *handlerEnv) do(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := testutil.DoRequest(e.router, method, path, body, testutil.TestOperator)
	return w, testutil.ParseResponse(w)
}

func dataOf(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no object data: %v", resp)
	}
	return data
}

func itemsOf(t *testing.T, resp map[string]interface{}) []interface{} {
	t.Helper()
	items, ok := dataOf(t, resp)["items"].([]interface{})
	if !ok {
		t.Fatalf("response has no items: %v", resp)
	}
	return items
}

func (e *handlerEnv) createRequest(t *testing.T) (uint, uint) {
	t.Helper()
	w, resp := e.do("POST", "/api/v1/supply-requests", map[string]interface{}{
		"branch_id": 5,
		"priority":  "HIGH",
		"items": []map[string]interface{}{
			{"material_id": 10, "quantity": 20},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := dataOf(t, resp)
	item := data["items"].([]interface{})[0].(map[string]interface{})
	return uint(data["id"].(float64)), uint(item["id"].(float64))
}

func TestSupplyRequestHandler_Lifecycle(t *testing.T) {
	env := setupSupplyTest(t)
	id, _ := env.createRequest(t)
	base := fmt.Sprintf("/api/v1/supply-requests/%d", id)

	t.Run("Get", func(t *testing.T) {
		w, resp := env.do("GET", base, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		data := dataOf(t, resp)
		if data["status"] != "PENDING" || data["priority"] != "HIGH" {
			t.Errorf("unexpected request: %v", data)
		}
		if data["total_cost"] != "70" {
			t.Errorf("expected total_cost 70, got %v", data["total_cost"])
		}
	})

	t.Run("ListByStatus", func(t *testing.T) {
		w, resp := env.do("GET", "/api/v1/supply-requests?branch_id=5&status=PENDING", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if n := len(itemsOf(t, resp)); n != 1 {
			t.Errorf("expected 1 request, got %d", n)
		}
	})

	for _, status := range []string{"APPROVED", "IN_TRANSIT", "DELIVERED"} {
		w, resp := env.do("PUT", base+"/status", map[string]interface{}{"status": status})
		if w.Code != http.StatusOK {
			t.Fatalf("transition to %s: expected 200, got %d: %s", status, w.Code, w.Body.String())
		}
		if got := dataOf(t, resp)["status"]; got != status {
			t.Fatalf("expected status %s, got %v", status, got)
		}
	}

	t.Run("StockCredited", func(t *testing.T) {
		w, resp := env.do("GET", "/api/v1/stocks/5/10", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if got := dataOf(t, resp)["current_stock"]; got != "20" {
			t.Errorf("expected current_stock 20, got %v", got)
		}
	})

	t.Run("Movements", func(t *testing.T) {
		w, resp := env.do("GET", "/api/v1/branches/5/stock-movements?type=SUPPLY_IN", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		items := itemsOf(t, resp)
		if len(items) != 1 {
			t.Fatalf("expected 1 movement, got %d", len(items))
		}
		mv := items[0].(map[string]interface{})
		if mv["previous_stock"] != "0" || mv["current_stock"] != "20" {
			t.Errorf("unexpected running balance: %v", mv)
		}
	})

	t.Run("Reconcile", func(t *testing.T) {
		w, resp := env.do("GET", "/api/v1/stocks/5/10/reconcile", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if dataOf(t, resp)["consistent"] != true {
			t.Errorf("expected consistent report: %v", resp)
		}
	})

	t.Run("HistoryNewestFirst", func(t *testing.T) {
		w, resp := env.do("GET", base+"/history", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		rows := resp["data"].([]interface{})
		if len(rows) != 4 {
			t.Fatalf("expected 4 history rows, got %d", len(rows))
		}
		if first := rows[0].(map[string]interface{}); first["to_status"] != "DELIVERED" {
			t.Errorf("expected newest row first, got %v", first)
		}
	})

	t.Run("CancelDelivered", func(t *testing.T) {
		w, resp := env.do("POST", base+"/cancel", map[string]string{"reason": "late"})
		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
		if resp["code"] != float64(40900) {
			t.Errorf("expected code 40900, got %v", resp["code"])
		}
	})
}

func TestSupplyRequestHandler_Errors(t *testing.T) {
	env := setupSupplyTest(t)

	t.Run("NoItems", func(t *testing.T) {
		w, _ := env.do("POST", "/api/v1/supply-requests", map[string]interface{}{"branch_id": 5})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("UnknownBranch", func(t *testing.T) {
		w, _ := env.do("POST", "/api/v1/supply-requests", map[string]interface{}{
			"branch_id": 99,
			"items":     []map[string]interface{}{{"material_id": 10, "quantity": 1}},
		})
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("BadID", func(t *testing.T) {
		w, _ := env.do("GET", "/api/v1/supply-requests/abc", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		w, resp := env.do("GET", "/api/v1/supply-requests/999", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
		if resp["code"] != float64(40400) {
			t.Errorf("expected code 40400, got %v", resp["code"])
		}
	})

	t.Run("SkipTransition", func(t *testing.T) {
		id, _ := env.createRequest(t)
		w, _ := env.do("PUT", fmt.Sprintf("/api/v1/supply-requests/%d/status", id), map[string]interface{}{"status": "DELIVERED"})
		if w.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", w.Code)
		}
	})

	t.Run("CancelThenDelete", func(t *testing.T) {
		id, _ := env.createRequest(t)
		path := fmt.Sprintf("/api/v1/supply-requests/%d", id)
		w, resp := env.do("POST", path+"/cancel", map[string]string{"reason": "duplicate"})
		if w.Code != http.StatusOK {
			t.Fatalf("cancel: expected 200, got %d", w.Code)
		}
		if notes := dataOf(t, resp)["notes"].(string); !strings.Contains(notes, "[CANCELLED] duplicate") {
			t.Errorf("expected cancel reason in notes, got %q", notes)
		}
		w, _ = env.do("DELETE", path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("delete: expected 200, got %d", w.Code)
		}
		w, _ = env.do("GET", path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", w.Code)
		}
	})
}

func TestSupplyRequestHandler_PartialDelivery(t *testing.T) {
	env := setupSupplyTest(t)
	id, itemID := env.createRequest(t)
	base := fmt.Sprintf("/api/v1/supply-requests/%d/status", id)

	env.do("PUT", base, map[string]interface{}{
		"status": "APPROVED",
		"items":  []map[string]interface{}{{"item_id": itemID, "quantity": 15}},
	})
	env.do("PUT", base, map[string]interface{}{"status": "IN_TRANSIT"})
	w, _ := env.do("PUT", base, map[string]interface{}{
		"status": "DELIVERED",
		"items":  []map[string]interface{}{{"item_id": itemID, "quantity": 12}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	_, resp := env.do("GET", "/api/v1/stocks/5/10", nil)
	if got := dataOf(t, resp)["current_stock"]; got != "12" {
		t.Errorf("expected current_stock 12, got %v", got)
	}
}

func TestStockHandler_Movements(t *testing.T) {
	env := setupSupplyTest(t)

	w, _ := env.do("POST", "/api/v1/stocks/adjust", map[string]interface{}{
		"branch_id": 5, "material_id": 10, "quantity": 30, "reason": "count",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("adjust: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	t.Run("LossBeyondStock", func(t *testing.T) {
		w, _ := env.do("POST", "/api/v1/stocks/loss", map[string]interface{}{
			"branch_id": 5, "material_id": 10, "quantity": 50,
		})
		if w.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", w.Code)
		}
	})

	t.Run("SaleDeductionOnce", func(t *testing.T) {
		body := map[string]interface{}{
			"branch_id": 5,
			"order_id":  77,
			"lines":     []map[string]interface{}{{"material_id": 10, "quantity": 4}},
		}
		w, _ := env.do("POST", "/api/v1/stocks/sale-deduction", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}
		w, _ = env.do("POST", "/api/v1/stocks/sale-deduction", body)
		if w.Code != http.StatusConflict {
			t.Errorf("expected 409 on replay, got %d", w.Code)
		}
		_, resp := env.do("GET", "/api/v1/stocks/5/10", nil)
		if got := dataOf(t, resp)["current_stock"]; got != "26" {
			t.Errorf("expected current_stock 26, got %v", got)
		}
	})

	t.Run("ThresholdsAndAlerts", func(t *testing.T) {
		w, _ := env.do("PUT", "/api/v1/stocks/5/10/thresholds", map[string]interface{}{"min_stock": 40, "max_stock": 100})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		w, resp := env.do("GET", "/api/v1/stocks/alerts?branch_id=5", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if n := len(resp["data"].([]interface{})); n != 1 {
			t.Errorf("expected 1 alert, got %d", n)
		}
		_, resp = env.do("GET", "/api/v1/stocks?low_stock=true", nil)
		if n := len(itemsOf(t, resp)); n != 1 {
			t.Errorf("expected 1 low stock row, got %d", n)
		}
	})

	t.Run("ReconcileBranch", func(t *testing.T) {
		w, resp := env.do("GET", "/api/v1/branches/5/reconcile", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		reports := resp["data"].([]interface{})
		if len(reports) != 1 || reports[0].(map[string]interface{})["consistent"] != true {
			t.Errorf("unexpected reports: %v", reports)
		}
	})

	t.Run("ByMaterial", func(t *testing.T) {
		w, resp := env.do("GET", "/api/v1/materials/10/stock-movements?branch_id=5", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if n := len(itemsOf(t, resp)); n != 2 {
			t.Errorf("expected 2 movements, got %d", n)
		}
		w, _ = env.do("GET", "/api/v1/materials/999/stock-movements", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404 for unknown material, got %d", w.Code)
		}
	})

	t.Run("BadFilter", func(t *testing.T) {
		w, _ := env.do("GET", "/api/v1/branches/5/stock-movements?type=TELEPORT", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown type, got %d", w.Code)
		}
		w, _ = env.do("GET", "/api/v1/branches/5/stock-movements?from=2026-02-01&to=2026-01-01", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for inverted range, got %d", w.Code)
		}
	})
}

func TestLedgerHandler_Export(t *testing.T) {
	env := setupSupplyTest(t)
	env.do("POST", "/api/v1/stocks/adjust", map[string]interface{}{"branch_id": 5, "material_id": 11, "quantity": 8})

	w, _ := env.do("GET", "/api/v1/branches/5/stock-movements/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") {
		t.Errorf("expected xlsx attachment, got %q", w.Header().Get("Content-Disposition"))
	}
	// xlsx is a zip archive
	if !strings.HasPrefix(w.Body.String(), "PK") {
		t.Error("expected zip payload")
	}
}

// lockedRecorder lets the test read the body while the stream is running.
type lockedRecorder struct {
	mu  sync.Mutex
	rec *httptest.ResponseRecorder
}

func (l *lockedRecorder) Header() http.Header { return l.rec.Header() }

func (l *lockedRecorder) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec.Write(b)
}

func (l *lockedRecorder) WriteHeader(code int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec.WriteHeader(code)
}

func (l *lockedRecorder) Flush() {}

func (l *lockedRecorder) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec.Body.String()
}

func TestEventHandler_Stream(t *testing.T) {
	env := setupSupplyTest(t)
	id, _ := env.createRequest(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest("GET", "/api/v1/events?branch_id=5", nil).WithContext(ctx)
	w := &lockedRecorder{rec: httptest.NewRecorder()}
	done := make(chan struct{})
	go func() {
		env.router.ServeHTTP(w, req)
		close(done)
	}()

	waitFor(t, func() bool { return env.hub.Count() == 1 })

	env.do("PUT", fmt.Sprintf("/api/v1/supply-requests/%d/status", id), map[string]interface{}{"status": "APPROVED"})
	env.disp.Wait()
	waitFor(t, func() bool { return strings.Contains(w.String(), "event: "+notify.EventStatusChange) })

	cancel()
	<-done

	body := w.String()
	if !strings.Contains(body, "event: connected") {
		t.Errorf("missing connected event: %q", body)
	}
	if !strings.Contains(body, `"to_status":"APPROVED"`) {
		t.Errorf("missing new status in payload: %q", body)
	}
	if env.hub.Count() != 0 {
		t.Errorf("expected client to unregister, %d left", env.hub.Count())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
