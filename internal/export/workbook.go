package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"ledger-reconciliation-backend/internal/models"
)

const (
	SheetName  = "Sheet1"
	TotalLabel = "total da planilha"
)

var header = []interface{}{"nota", "empresa", "Valor", "Valor_Total", TotalLabel}

// NewWorkbook lays out reconciled records one per row followed by a trailing
// row carrying the file total in its own column.
func NewWorkbook(records []models.GroupedRecord, total float64) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		row := []interface{}{documentCell(r.DocumentID), r.Counterparty, r.UnitValue, r.TotalValue}
		if err := setRow(f, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	totalRow := []interface{}{nil, nil, nil, nil, total}
	if err := setRow(f, len(records)+2, totalRow); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteWorkbook streams the xlsx document to w.
func WriteWorkbook(w io.Writer, records []models.GroupedRecord, total float64) error {
	f, err := NewWorkbook(records, total)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteWorkbookFile saves the xlsx document at path.
func WriteWorkbookFile(path string, records []models.GroupedRecord, total float64) error {
	f, err := NewWorkbook(records, total)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, rowNum int, row []interface{}) error {
	cellRef, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cellRef, &row); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

// documentCell writes numeric document ids as numbers so spreadsheets sort
// them naturally.
func documentCell(id string) interface{} {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
