package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"ledger-reconciliation-backend/internal/models"
)

var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrMissingColumn = errors.New("missing column")
)

const (
	DefaultRegisterSheet    = "Fornecedores"
	DefaultRegisterSkipRows = 11
)

var (
	descriptionHeaders = []string{"complemento"}
	debitHeaders       = []string{"débito", "debito"}
	creditHeaders      = []string{"crédito", "credito"}

	referenceHeaders           = []string{"nf-s", "mês", "mes"}
	registerDescriptionHeaders = []string{"descriçao", "descrição", "descricao"}
	registerAmountHeaders      = []string{"valor"}
)

type RegisterOptions struct {
	Sheet    string
	SkipRows int
}

func (o RegisterOptions) withDefaults() RegisterOptions {
	if o.Sheet == "" {
		o.Sheet = DefaultRegisterSheet
	}
	if o.SkipRows < 0 {
		o.SkipRows = DefaultRegisterSkipRows
	}
	return o
}

// ReadLedgerWorkbook reads every sheet of a ledger export. The first row of
// each sheet is the header; sheets without a description column are skipped.
func ReadLedgerWorkbook(r io.Reader) ([]models.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open ledger workbook: %w", err)
	}
	defer f.Close()

	var sheets []models.Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}

		header := rows[0]
		descCol := findColumn(header, descriptionHeaders)
		if descCol < 0 {
			slog.Debug("sheet has no description column, skipping", "sheet", name)
			continue
		}
		debitCol := findColumn(header, debitHeaders)
		creditCol := findColumn(header, creditHeaders)
		if debitCol < 0 || creditCol < 0 {
			slog.Warn("sheet is missing debit or credit column, amounts will net to zero", "sheet", name)
		}

		sheet := models.Sheet{Name: name}
		for i, row := range rows[1:] {
			desc := strings.TrimSpace(cell(row, descCol))
			if desc == "" {
				continue
			}
			rec := models.RawRecord{
				Source:      models.SourceLedger,
				Sheet:       name,
				Row:         i + 2,
				Description: desc,
			}
			if debitCol >= 0 && creditCol >= 0 {
				debit := ParseAmount(cell(row, debitCol))
				credit := ParseAmount(cell(row, creditCol))
				rec.Debit, rec.Credit = &debit, &credit
			}
			sheet.Records = append(sheet.Records, rec)
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// ReadContractRegister reads the supplier sheet of a contract register. The
// header sits after opts.SkipRows banner rows; rows without an amount are
// dropped.
func ReadContractRegister(r io.Reader, opts RegisterOptions) ([]models.RawRecord, error) {
	opts = opts.withDefaults()

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open contract register: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	found := false
	for _, s := range sheets {
		if s == opts.Sheet {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrSheetNotFound, opts.Sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(opts.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", opts.Sheet, err)
	}
	if len(rows) <= opts.SkipRows {
		return nil, nil
	}

	header := rows[opts.SkipRows]
	refCol := findColumn(header, referenceHeaders)
	descCol := findColumn(header, registerDescriptionHeaders)
	amountCol := findColumn(header, registerAmountHeaders)
	if amountCol < 0 {
		return nil, fmt.Errorf("%w: Valor in sheet %q", ErrMissingColumn, opts.Sheet)
	}
	if descCol < 0 {
		return nil, fmt.Errorf("%w: Descriçao in sheet %q", ErrMissingColumn, opts.Sheet)
	}

	var records []models.RawRecord
	for i, row := range rows[opts.SkipRows+1:] {
		raw := strings.TrimSpace(cell(row, amountCol))
		if raw == "" {
			continue
		}
		value := ParseAmount(raw)
		records = append(records, models.RawRecord{
			Source:      models.SourceContractRegister,
			Sheet:       opts.Sheet,
			Row:         opts.SkipRows + i + 2,
			Description: strings.TrimSpace(cell(row, descCol)),
			Reference:   strings.TrimSpace(cell(row, refCol)),
			Amount:      &value,
		})
	}
	return records, nil
}

// ParseAmount accepts plain numbers as well as Brazilian formatted values
// such as "R$ 1.234,56" or "(12,00)". Anything else is logged and read as 0.
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return 0
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	s = strings.ReplaceAll(s, " ", "")
	switch {
	case strings.LastIndex(s, ".") > strings.LastIndex(s, ","):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		slog.Warn("malformed amount, using 0", "value", raw)
		return 0
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64()
}

// FileStem is the file name without directory or extension. Ledger and
// register files with the same stem belong together.
func FileStem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsWorkbook reports whether the file has an extension excelize can open.
func IsWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return !strings.HasPrefix(filepath.Base(name), "~$")
	}
	return false
}

// findColumn returns the index of the first name found in the header, trying
// names in order.
func findColumn(header []string, names []string) int {
	for _, n := range names {
		for i, h := range header {
			if strings.ToLower(strings.TrimSpace(h)) == n {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
