package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
	"github.com/xuri/excelize/v2"
)

// LedgerService stock movement queries
type LedgerService struct {
	ledger    LedgerStore
	stocks    SnapshotStore
	materials MaterialCatalog
}

func NewLedgerService(ledger LedgerStore, stocks SnapshotStore, materials MaterialCatalog) *LedgerService {
	return &LedgerService{ledger: ledger, stocks: stocks, materials: materials}
}

// MovementFilter ledger query filters
type MovementFilter struct {
	Type     string
	From     *time.Time
	To       *time.Time
	Search   string
	Page     int
	PageSize int
}

// MovementView ledger row with the stock level before and after it
type MovementView struct {
	entity.StockMovement
	MaterialName  string          `json:"material_name"`
	MaterialCode  string          `json:"material_code"`
	TypeLabel     string          `json:"type_label"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
}

// ByBranch movements of one branch, newest first
func (s *LedgerService) ByBranch(ctx context.Context, branchID uint, f MovementFilter) ([]MovementView, int64, error) {
	return s.query(ctx, branchID, 0, f)
}

// ByMaterial movements of one material, optionally at one branch
func (s *LedgerService) ByMaterial(ctx context.Context, materialID, branchID uint, f MovementFilter) ([]MovementView, int64, error) {
	if _, err := s.materials.FindMaterial(ctx, materialID); err != nil {
		return nil, 0, storeErr(err, fmt.Sprintf("material %d", materialID))
	}
	return s.query(ctx, branchID, materialID, f)
}

func (s *LedgerService) query(ctx context.Context, branchID, materialID uint, f MovementFilter) ([]MovementView, int64, error) {
	if f.Type != "" {
		if _, ok := entity.ParseMovementType(f.Type); !ok {
			return nil, 0, validation("unknown movement type %q", f.Type)
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, validation("date range end is before its start")
	}
	rows, total, err := s.ledger.FindAll(ctx, repository.MovementListParams{
		BranchID:     branchID,
		MaterialID:   materialID,
		MovementType: f.Type,
		From:         f.From,
		To:           f.To,
		Search:       f.Search,
		Page:         f.Page,
		PageSize:     f.PageSize,
	})
	if err != nil {
		return nil, 0, storeErr(err, "stock movements")
	}
	views, err := s.views(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// views derives before/after levels. Rows carrying balance_after are exact;
// older rows fall back to walking back from the current snapshot.
func (s *LedgerService) views(ctx context.Context, rows []entity.StockMovement) ([]MovementView, error) {
	running := make(map[repository.StockKey]decimal.Decimal)
	names := make(map[uint]*entity.Material)
	views := make([]MovementView, 0, len(rows))

	for _, m := range rows {
		key := repository.StockKey{BranchID: m.BranchID, MaterialID: m.MaterialID}
		current, seen := running[key]
		if m.BalanceAfter.Valid {
			current = m.BalanceAfter.Decimal
		} else if !seen {
			current = decimal.Zero
			snap, err := s.stocks.Find(ctx, m.BranchID, m.MaterialID)
			if err == nil {
				current = snap.CurrentStock
			} else if !errors.Is(err, repository.ErrNotFound) {
				return nil, storeErr(err, "material stock")
			}
		}
		previous := current.Sub(m.Quantity)
		running[key] = previous

		v := MovementView{
			StockMovement: m,
			TypeLabel:     m.MovementType.Label(),
			PreviousStock: previous,
			CurrentStock:  current,
		}
		mat, ok := names[m.MaterialID]
		if !ok {
			mat, _ = s.materials.FindMaterial(ctx, m.MaterialID)
			names[m.MaterialID] = mat
		}
		if mat != nil {
			v.MaterialName = mat.Name
			v.MaterialCode = mat.Code
		}
		views = append(views, v)
	}
	return views, nil
}

var movementExportHeaders = []string{
	"Date", "Material code", "Material", "Type", "Quantity", "Unit",
	"Previous stock", "Current stock", "Cost per unit", "Total cost",
	"Reference", "Performed by", "Notes",
}

const exportPageSize = 500

// Export renders the branch ledger as an xlsx workbook
func (s *LedgerService) Export(ctx context.Context, branchID uint, f MovementFilter) (*excelize.File, string, error) {
	var rows []MovementView
	f.PageSize = exportPageSize
	for page := 1; ; page++ {
		f.Page = page
		batch, total, err := s.ByBranch(ctx, branchID, f)
		if err != nil {
			return nil, "", err
		}
		rows = append(rows, batch...)
		if int64(len(rows)) >= total || len(batch) == 0 {
			break
		}
	}

	file := excelize.NewFile()
	sheet := "Movements"
	file.SetSheetName("Sheet1", sheet)

	headerStyle, _ := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range movementExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		file.SetCellValue(sheet, cell, h)
		file.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, v := range rows {
		row := i + 2
		ref := v.ReferenceType
		if v.ReferenceID != 0 {
			ref = fmt.Sprintf("%s #%d", v.ReferenceType, v.ReferenceID)
		}
		values := []interface{}{
			v.MovementDate.Format("2006-01-02 15:04:05"),
			v.MaterialCode,
			v.MaterialName,
			v.TypeLabel,
			v.Quantity.InexactFloat64(),
			v.Unit,
			v.PreviousStock.InexactFloat64(),
			v.CurrentStock.InexactFloat64(),
			v.CostPerUnit.InexactFloat64(),
			v.TotalCost.InexactFloat64(),
			ref,
			v.PerformedBy,
			v.Notes,
		}
		for c, val := range values {
			col, _ := excelize.ColumnNumberToName(c + 1)
			file.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), val)
		}
	}

	colWidths := []float64{20, 14, 24, 16, 10, 8, 14, 14, 12, 12, 22, 16, 30}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		file.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("stock-movements-branch-%d-%s.xlsx", branchID, time.Now().Format("20060102"))
	return file, filename, nil
}
