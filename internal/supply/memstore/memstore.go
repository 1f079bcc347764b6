// Package memstore is an in-memory implementation of the supply stores.
// Transactions are serialized and roll back by restoring a copy of the
// state taken when the transaction began.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
)

type txKey struct{}

type state struct {
	branches  map[uint]entity.Branch
	materials map[uint]entity.Material
	requests  map[uint]entity.SupplyRequest
	items     map[uint]entity.SupplyRequestItem
	histories []entity.SupplyRequestHistory
	stocks    map[repository.StockKey]entity.MaterialStock
	movements []entity.StockMovement
}

func newState() *state {
	return &state{
		branches:  make(map[uint]entity.Branch),
		materials: make(map[uint]entity.Material),
		requests:  make(map[uint]entity.SupplyRequest),
		items:     make(map[uint]entity.SupplyRequestItem),
		stocks:    make(map[repository.StockKey]entity.MaterialStock),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.branches {
		c.branches[k] = v
	}
	for k, v := range s.materials {
		c.materials[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	c.histories = append([]entity.SupplyRequestHistory(nil), s.histories...)
	c.movements = append([]entity.StockMovement(nil), s.movements...)
	return c
}

// Store in-memory backend. Use the typed views (Requests, Stocks, ...) as
// the individual stores.
type Store struct {
	txMu sync.Mutex
	st   *state
	seq  uint

	appendHook func(m *entity.StockMovement) error

	Branches  *CatalogView
	Materials *CatalogView
	Requests  *RequestView
	History   *HistoryView
	Stocks    *StockView
	Ledger    *LedgerView
}

// New creates an empty store
func New() *Store {
	s := &Store{st: newState()}
	s.Branches = &CatalogView{s: s}
	s.Materials = s.Branches
	s.Requests = &RequestView{s: s}
	s.History = &HistoryView{s: s}
	s.Stocks = &StockView{s: s}
	s.Ledger = &LedgerView{s: s}
	return s
}

// Transaction runs fn atomically. A nested call joins the outer one.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	saved := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.st = saved
		return err
	}
	return nil
}

// FailAppendWith makes Append call hook first and fail with its error.
// A nil hook clears the injection.
func (s *Store) FailAppendWith(hook func(m *entity.StockMovement) error) {
	s.do(context.Background(), func(*state) error {
		s.appendHook = hook
		return nil
	})
}

// SeedBranch adds a branch to the directory
func (s *Store) SeedBranch(b entity.Branch) entity.Branch {
	s.do(context.Background(), func(st *state) error {
		if b.ID == 0 {
			b.ID = s.next()
		}
		b.IsActive = true
		st.branches[b.ID] = b
		return nil
	})
	return b
}

// SeedMaterial adds a material to the catalog
func (s *Store) SeedMaterial(m entity.Material) entity.Material {
	s.do(context.Background(), func(st *state) error {
		if m.ID == 0 {
			m.ID = s.next()
		}
		if m.Unit == "" {
			m.Unit = "ea"
		}
		m.IsActive = true
		st.materials[m.ID] = m
		return nil
	})
	return m
}

// SeedStock writes a snapshot directly, bypassing the ledger
func (s *Store) SeedStock(ms entity.MaterialStock) {
	s.do(context.Background(), func(st *state) error {
		if ms.ID == 0 {
			ms.ID = s.next()
		}
		st.stocks[repository.StockKey{BranchID: ms.BranchID, MaterialID: ms.MaterialID}] = ms
		return nil
	})
}

// do runs fn with exclusive access. Inside a transaction the lock is
// already held.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if ctx.Value(txKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	return fn(s.st)
}

func (s *Store) next() uint {
	s.seq++
	return s.seq
}

func page(total, p, size int) (int, int) {
	p, size = repository.Normalize(p, size)
	start := (p - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}

// CatalogView branch directory and material catalog
type CatalogView struct{ s *Store }

func (v *CatalogView) FindBranch(ctx context.Context, id uint) (*entity.Branch, error) {
	var out *entity.Branch
	err := v.s.do(ctx, func(st *state) error {
		b, ok := st.branches[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

func (v *CatalogView) FindMaterial(ctx context.Context, id uint) (*entity.Material, error) {
	var out *entity.Material
	err := v.s.do(ctx, func(st *state) error {
		m, ok := st.materials[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

// RequestView supply request store
type RequestView struct{ s *Store }

func (v *RequestView) Create(ctx context.Context, req *entity.SupplyRequest) error {
	return v.s.do(ctx, func(st *state) error {
		now := time.Now()
		req.ID = v.s.next()
		req.CreatedAt, req.UpdatedAt = now, now
		for i := range req.Items {
			req.Items[i].ID = v.s.next()
			req.Items[i].RequestID = req.ID
			req.Items[i].CreatedAt, req.Items[i].UpdatedAt = now, now
			st.items[req.Items[i].ID] = req.Items[i]
		}
		header := *req
		header.Items = nil
		st.requests[req.ID] = header
		return nil
	})
}

func (v *RequestView) load(st *state, id uint) (*entity.SupplyRequest, error) {
	req, ok := st.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	req.Items = itemsOf(st, id)
	return &req, nil
}

func itemsOf(st *state, requestID uint) []entity.SupplyRequestItem {
	var items []entity.SupplyRequestItem
	for _, it := range st.items {
		if it.RequestID == requestID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (v *RequestView) FindByID(ctx context.Context, id uint) (*entity.SupplyRequest, error) {
	var out *entity.SupplyRequest
	err := v.s.do(ctx, func(st *state) error {
		var err error
		out, err = v.load(st, id)
		return err
	})
	return out, err
}

// FindByIDForUpdate same as FindByID; transactions are serialized.
func (v *RequestView) FindByIDForUpdate(ctx context.Context, id uint) (*entity.SupplyRequest, error) {
	return v.FindByID(ctx, id)
}

func (v *RequestView) FindAll(ctx context.Context, params repository.RequestListParams) ([]entity.SupplyRequest, int64, error) {
	var out []entity.SupplyRequest
	var total int
	err := v.s.do(ctx, func(st *state) error {
		var all []entity.SupplyRequest
		for id, req := range st.requests {
			if params.BranchID != 0 && req.BranchID != params.BranchID {
				continue
			}
			if params.Status != "" && string(req.Status) != params.Status {
				continue
			}
			if params.Priority != "" && string(req.Priority) != params.Priority {
				continue
			}
			req.Items = itemsOf(st, id)
			all = append(all, req)
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return all[i].ID > all[j].ID
		})
		total = len(all)
		start, end := page(total, params.Page, params.PageSize)
		out = all[start:end]
		return nil
	})
	return out, int64(total), err
}

func (v *RequestView) Update(ctx context.Context, req *entity.SupplyRequest) error {
	return v.s.do(ctx, func(st *state) error {
		if _, ok := st.requests[req.ID]; !ok {
			return repository.ErrNotFound
		}
		req.UpdatedAt = time.Now()
		header := *req
		header.Items = nil
		st.requests[req.ID] = header
		return nil
	})
}

func (v *RequestView) UpdateItem(ctx context.Context, item *entity.SupplyRequestItem) error {
	return v.s.do(ctx, func(st *state) error {
		if _, ok := st.items[item.ID]; !ok {
			return repository.ErrNotFound
		}
		item.UpdatedAt = time.Now()
		st.items[item.ID] = *item
		return nil
	})
}

func (v *RequestView) Delete(ctx context.Context, id uint) error {
	return v.s.do(ctx, func(st *state) error {
		if _, ok := st.requests[id]; !ok {
			return repository.ErrNotFound
		}
		kept := st.histories[:0:0]
		for _, h := range st.histories {
			if h.RequestID != id {
				kept = append(kept, h)
			}
		}
		st.histories = kept
		for itemID, it := range st.items {
			if it.RequestID == id {
				delete(st.items, itemID)
			}
		}
		delete(st.requests, id)
		return nil
	})
}

// HistoryView audit trail store
type HistoryView struct{ s *Store }

func (v *HistoryView) Create(ctx context.Context, h *entity.SupplyRequestHistory) error {
	return v.s.do(ctx, func(st *state) error {
		h.ID = v.s.next()
		h.CreatedAt = time.Now()
		st.histories = append(st.histories, *h)
		return nil
	})
}

func (v *HistoryView) FindByRequest(ctx context.Context, requestID uint) ([]entity.SupplyRequestHistory, error) {
	var out []entity.SupplyRequestHistory
	err := v.s.do(ctx, func(st *state) error {
		for i := len(st.histories) - 1; i >= 0; i-- {
			if st.histories[i].RequestID == requestID {
				out = append(out, st.histories[i])
			}
		}
		return nil
	})
	return out, err
}

// StockView snapshot store
type StockView struct{ s *Store }

func (v *StockView) LockOrCreate(ctx context.Context, branchID, materialID uint, maxDefault decimal.Decimal) (*entity.MaterialStock, error) {
	var out *entity.MaterialStock
	err := v.s.do(ctx, func(st *state) error {
		key := repository.StockKey{BranchID: branchID, MaterialID: materialID}
		ms, ok := st.stocks[key]
		if !ok {
			fresh := entity.NewMaterialStock(branchID, materialID)
			fresh.ID = v.s.next()
			fresh.MaxStock = maxDefault
			fresh.CreatedAt, fresh.UpdatedAt = fresh.LastUpdated, fresh.LastUpdated
			ms = *fresh
			st.stocks[key] = ms
		}
		out = &ms
		return nil
	})
	return out, err
}

func (v *StockView) Find(ctx context.Context, branchID, materialID uint) (*entity.MaterialStock, error) {
	var out *entity.MaterialStock
	err := v.s.do(ctx, func(st *state) error {
		ms, ok := st.stocks[repository.StockKey{BranchID: branchID, MaterialID: materialID}]
		if !ok {
			return repository.ErrNotFound
		}
		withMaterial(st, &ms)
		out = &ms
		return nil
	})
	return out, err
}

func withMaterial(st *state, ms *entity.MaterialStock) {
	if m, ok := st.materials[ms.MaterialID]; ok {
		ms.Material = &m
	}
}

func (v *StockView) Update(ctx context.Context, ms *entity.MaterialStock) error {
	return v.s.do(ctx, func(st *state) error {
		key := repository.StockKey{BranchID: ms.BranchID, MaterialID: ms.MaterialID}
		if _, ok := st.stocks[key]; !ok {
			return repository.ErrNotFound
		}
		ms.LastUpdated = time.Now()
		ms.UpdatedAt = ms.LastUpdated
		saved := *ms
		saved.Material = nil
		st.stocks[key] = saved
		return nil
	})
}

func (v *StockView) sorted(st *state, keep func(entity.MaterialStock) bool) []entity.MaterialStock {
	var all []entity.MaterialStock
	for _, ms := range st.stocks {
		if keep(ms) {
			withMaterial(st, &ms)
			all = append(all, ms)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].BranchID != all[j].BranchID {
			return all[i].BranchID < all[j].BranchID
		}
		return all[i].MaterialID < all[j].MaterialID
	})
	return all
}

func (v *StockView) List(ctx context.Context, params repository.StockListParams) ([]entity.MaterialStock, int64, error) {
	var out []entity.MaterialStock
	var total int
	err := v.s.do(ctx, func(st *state) error {
		all := v.sorted(st, func(ms entity.MaterialStock) bool {
			if params.BranchID != 0 && ms.BranchID != params.BranchID {
				return false
			}
			if params.MaterialID != 0 && ms.MaterialID != params.MaterialID {
				return false
			}
			return !params.LowStock || ms.IsLow()
		})
		total = len(all)
		start, end := page(total, params.Page, params.PageSize)
		out = all[start:end]
		return nil
	})
	return out, int64(total), err
}

func (v *StockView) ListAll(ctx context.Context, branchID uint) ([]entity.MaterialStock, error) {
	var out []entity.MaterialStock
	err := v.s.do(ctx, func(st *state) error {
		out = v.sorted(st, func(ms entity.MaterialStock) bool {
			return branchID == 0 || ms.BranchID == branchID
		})
		return nil
	})
	return out, err
}

// LedgerView append-only movement store
type LedgerView struct{ s *Store }

func sameReference(a, b *entity.StockMovement) bool {
	if a.ReferenceItemID == nil || b.ReferenceItemID == nil {
		return false
	}
	return a.MovementType == b.MovementType &&
		a.ReferenceType == b.ReferenceType &&
		a.ReferenceID == b.ReferenceID &&
		*a.ReferenceItemID == *b.ReferenceItemID
}

func (v *LedgerView) Append(ctx context.Context, m *entity.StockMovement) error {
	return v.s.do(ctx, func(st *state) error {
		if v.s.appendHook != nil {
			if err := v.s.appendHook(m); err != nil {
				return err
			}
		}
		for i := range st.movements {
			if sameReference(&st.movements[i], m) {
				return repository.ErrDuplicate
			}
		}
		m.ID = v.s.next()
		m.CreatedAt = time.Now()
		if m.MovementDate.IsZero() {
			m.MovementDate = m.CreatedAt
		}
		st.movements = append(st.movements, *m)
		return nil
	})
}

func (v *LedgerView) FindAll(ctx context.Context, params repository.MovementListParams) ([]entity.StockMovement, int64, error) {
	var out []entity.StockMovement
	var total int
	err := v.s.do(ctx, func(st *state) error {
		search := strings.ToLower(params.Search)
		var all []entity.StockMovement
		for _, m := range st.movements {
			if params.BranchID != 0 && m.BranchID != params.BranchID {
				continue
			}
			if params.MaterialID != 0 && m.MaterialID != params.MaterialID {
				continue
			}
			if params.MovementType != "" && string(m.MovementType) != params.MovementType {
				continue
			}
			if params.From != nil && m.MovementDate.Before(*params.From) {
				continue
			}
			if params.To != nil && m.MovementDate.After(*params.To) {
				continue
			}
			if search != "" {
				mat := st.materials[m.MaterialID]
				hay := strings.ToLower(mat.Name + " " + mat.Code + " " + m.Notes)
				if !strings.Contains(hay, search) {
					continue
				}
			}
			all = append(all, m)
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].MovementDate.Equal(all[j].MovementDate) {
				return all[i].MovementDate.After(all[j].MovementDate)
			}
			return all[i].ID > all[j].ID
		})
		total = len(all)
		start, end := page(total, params.Page, params.PageSize)
		out = all[start:end]
		return nil
	})
	return out, int64(total), err
}

func (v *LedgerView) History(ctx context.Context, branchID, materialID uint) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	err := v.s.do(ctx, func(st *state) error {
		for _, m := range st.movements {
			if m.BranchID == branchID && m.MaterialID == materialID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (v *LedgerView) Keys(ctx context.Context, branchID uint) ([]repository.StockKey, error) {
	var out []repository.StockKey
	err := v.s.do(ctx, func(st *state) error {
		seen := make(map[repository.StockKey]bool)
		for _, m := range st.movements {
			if branchID != 0 && m.BranchID != branchID {
				continue
			}
			k := repository.StockKey{BranchID: m.BranchID, MaterialID: m.MaterialID}
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].BranchID != out[j].BranchID {
			return out[i].BranchID < out[j].BranchID
		}
		return out[i].MaterialID < out[j].MaterialID
	})
	return out, err
}
