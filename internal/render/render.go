// Package render prints session data as terminal tables.
package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/joseph-ayodele/shipment-docs/constants"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/form"
	"github.com/joseph-ayodele/shipment-docs/internal/viewer"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	if len(header) > 0 {
		t.SetHeader(header)
	}
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	return t
}

// Documents lists documents with their local upload time, marking the
// selected one.
func Documents(w io.Writer, docs []entity.Document, selected entity.DocumentID) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents uploaded yet.")
		return
	}
	t := newTable(w, "", "ID", "Filename", "Uploaded")
	for _, d := range docs {
		mark := ""
		if !selected.IsZero() && d.ID == selected {
			mark = "*"
		}
		uploaded := ""
		if !d.UploadTime.IsZero() {
			uploaded = d.UploadTime.Local().Format(timeLayout)
		}
		t.Append([]string{mark, d.ID.String(), d.Filename, uploaded})
	}
	t.Render()
}

// Queue lists files waiting for upload with their size in MB.
func Queue(w io.Writer, files []entity.UploadedFile, status constants.UploadStatus) {
	if status == constants.UploadStatusUploading {
		fmt.Fprintln(w, "Uploading...")
	}
	if len(files) == 0 {
		fmt.Fprintln(w, "No files selected.")
		return
	}
	t := newTable(w, "#", "Name", "Type", "Size")
	for i, f := range files {
		t.Append([]string{strconv.Itoa(i), f.Name, f.MimeType, fmt.Sprintf("%.2f MB", f.SizeMB())})
	}
	t.Render()
}

// ViewerFiles lists the files the viewer can show. active is -1 when the
// viewer is closed.
func ViewerFiles(w io.Writer, files []viewer.Descriptor, active int) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No files to view.")
		return
	}
	t := newTable(w, "", "#", "Name", "Kind", "Source")
	for i, d := range files {
		mark := ""
		if i == active {
			mark = ">"
		}
		src := d.URL
		if d.InMemory() {
			src = fmt.Sprintf("memory (%.2f MB)", float64(len(d.Content))/1024/1024)
		}
		t.Append([]string{mark, strconv.Itoa(i), d.Name, d.Kind().String(), src})
	}
	t.Render()
}

// Preview prints PDF pages in order or every sheet as its own table. Sheet
// rows are all data; there is no header row.
func Preview(w io.Writer, p viewer.Preview) {
	switch p.Kind {
	case viewer.KindPDF:
		if len(p.Pages) == 0 {
			fmt.Fprintf(w, "Unable to display %s.\n", p.File)
			return
		}
		for _, page := range p.Pages {
			fmt.Fprintf(w, "--- %s: page %d of %d (scale %.1f) ---\n", p.File, page.Number, p.PageCount, page.Scale)
			if page.Text == "" {
				fmt.Fprintln(w, "(no text)")
				continue
			}
			fmt.Fprintln(w, page.Text)
		}
	case viewer.KindSpreadsheet:
		if len(p.Sheets) == 0 {
			fmt.Fprintf(w, "Unable to display %s.\n", p.File)
			return
		}
		for _, s := range p.Sheets {
			fmt.Fprintf(w, "Sheet: %s\n", s.Name)
			if len(s.Rows) == 0 {
				fmt.Fprintln(w, "(empty)")
				continue
			}
			t := newTable(w)
			t.SetRowLine(true)
			t.AppendBulk(padRows(s.Rows))
			t.Render()
		}
	default:
		if p.File == "" {
			fmt.Fprintln(w, "Viewer is closed.")
			return
		}
		fmt.Fprintf(w, "No preview available for %s.\n", p.File)
	}
}

// Form prints the scalar fields and the items table of rec.
func Form(w io.Writer, rec entity.StructuredRecord) {
	t := newTable(w, "Field", "Label", "Value")
	for _, fs := range form.Fields() {
		v, _ := form.FieldValue(rec, fs.Name)
		t.Append([]string{fs.Name, fs.Label, v.String()})
	}
	t.Render()

	Items(w, rec.Items)
}

// Items prints the line item table with row indexes.
func Items(w io.Writer, items []entity.LineItem) {
	header := []string{"#"}
	for _, fs := range form.ItemFields() {
		header = append(header, fs.Label)
	}
	t := newTable(w, header...)
	for i, it := range items {
		t.Append([]string{strconv.Itoa(i), it.Description.String(), it.Quantity.String(), it.Weight.String(), it.Value.String()})
	}
	t.Render()
}

// padRows makes the rows rectangular.
func padRows(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = make([]string, width)
		copy(out[i], r)
	}
	return out
}
