package viewer

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// SheetParser turns workbook bytes into sheets.
type SheetParser interface {
	Parse(content []byte) ([]Sheet, error)
}

// ExcelParser reads XLSX workbooks with excelize.
type ExcelParser struct {
	logger *slog.Logger
}

func NewExcelParser(logger *slog.Logger) *ExcelParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelParser{logger: logger}
}

// Parse returns every sheet in workbook order with its raw rows. The first
// row is data like any other.
func (p *ExcelParser) Parse(content []byte) (sheets []Sheet, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			sheets, err = nil, fmt.Errorf("workbook: %v", rec)
		}
	}()
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			p.logger.Warn("viewer.sheet.close_failed", "error", err)
		}
	}()

	names := f.GetSheetList()
	sheets = make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}
