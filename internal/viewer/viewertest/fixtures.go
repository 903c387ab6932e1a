// Package viewertest builds small PDF and XLSX files for tests.
package viewertest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// PDF returns a valid PDF with one page per entry of texts, each page
// showing its text in Helvetica.
func PDF(texts ...string) []byte {
	n := len(texts)
	// objects: 1 catalog, 2 pages, 3 font, then a page and a content stream per page
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // filled below once kids are known
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	var kids bytes.Buffer
	for i, text := range texts {
		pageObj := 4 + 2*i
		contentObj := pageObj + 1
		fmt.Fprintf(&kids, "%d 0 R ", pageObj)
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", bytes.TrimSpace(kids.Bytes()), n)

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

// Sheet is one sheet of a fixture workbook.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook returns XLSX bytes with the given sheets in order.
func Workbook(sheets ...Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, err
		}
		for r, row := range s.Rows {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(s.Name, cell, v); err != nil {
					return nil, err
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
