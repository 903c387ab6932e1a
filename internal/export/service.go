// Package export writes a document's shipment record to an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/form"
)

const (
	SheetShipment = "Shipment"
	SheetItems    = "Items"
)

// Service produces XLSX bytes for exports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportRecordXLSX returns a workbook with a "Shipment" sheet of field/value
// pairs for doc and an "Items" sheet with one row per line item. rec is the
// record to write, usually doc.Current() or the form's working copy.
func (s *Service) ExportRecordXLSX(ctx context.Context, doc entity.Document, rec entity.StructuredRecord) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetShipment); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(SheetShipment)
	f.SetActiveSheet(activeIndex)

	write := func(sheet string, col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	// Shipment: document header, then one row per form field
	uploaded := ""
	if !doc.UploadTime.IsZero() {
		uploaded = doc.UploadTime.Local().Format("2006-01-02 15:04:05")
	}
	rows := [][2]any{
		{"Field", "Value"},
		{"Document ID", doc.ID.String()},
		{"Filename", doc.Filename},
		{"Uploaded", uploaded},
	}
	for _, fs := range form.Fields() {
		v, _ := form.FieldValue(rec, fs.Name)
		rows = append(rows, [2]any{fs.Label, cellValue(v, fs.Input)})
	}
	for i, r := range rows {
		if err := write(SheetShipment, 1, i+1, r[0]); err != nil {
			return nil, err
		}
		if err := write(SheetShipment, 2, i+1, r[1]); err != nil {
			return nil, err
		}
	}

	// Items
	cols := form.ItemFields()
	for i, c := range cols {
		if err := write(SheetItems, i+1, 1, c.Label); err != nil {
			return nil, err
		}
	}
	for r, it := range rec.Items {
		vals := []entity.Scalar{it.Description, it.Quantity, it.Weight, it.Value}
		for c, v := range vals {
			if err := write(SheetItems, c+1, r+2, cellValue(v, cols[c].Input)); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(SheetShipment, "A", "A", 20)
	_ = f.SetColWidth(SheetShipment, "B", "B", 48)
	_ = f.SetColWidth(SheetItems, "A", "A", 36)
	_ = f.SetColWidth(SheetItems, "B", "D", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"doc_id", doc.ID.String(),
		"items", len(rec.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// cellValue writes number fields as numbers when they parse, text otherwise.
func cellValue(v entity.Scalar, kind form.InputKind) any {
	if kind == form.InputNumber {
		if n, ok := v.Float(); ok {
			return n
		}
	}
	return v.String()
}
