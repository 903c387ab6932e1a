package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	rpdf "rsc.io/pdf"
)

// Source locates a document for a PDFEngine: a URL or in-memory bytes.
type Source struct {
	URL     string
	Content []byte
}

// Fetcher downloads a stored file.
type Fetcher interface {
	FetchFile(ctx context.Context, locator string) ([]byte, error)
}

// PDFEngine loads a PDF. The page count is known once Load returns.
type PDFEngine interface {
	Load(ctx context.Context, src Source) (PDFDocument, error)
}

// PDFDocument is a loaded PDF whose pages render one at a time.
type PDFDocument interface {
	PageCount() int
	RenderPage(ctx context.Context, number int, scale float64) (Page, error)
}

// TextEngine counts pages with pdfcpu and renders each page as its text
// content.
type TextEngine struct {
	fetcher Fetcher
	conf    *model.Configuration
}

func NewTextEngine(fetcher Fetcher) *TextEngine {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &TextEngine{fetcher: fetcher, conf: conf}
}

func (e *TextEngine) Load(ctx context.Context, src Source) (PDFDocument, error) {
	content := src.Content
	if content == nil {
		if src.URL == "" {
			return nil, errors.New("empty source")
		}
		if e.fetcher == nil {
			return nil, errors.New("no fetcher for url source")
		}
		var err error
		if content, err = e.fetcher.FetchFile(ctx, src.URL); err != nil {
			return nil, err
		}
	}

	n, err := e.pageCount(content)
	if err != nil {
		return nil, err
	}
	doc := &textDocument{pages: n}
	// Without a text reader every page still gets its slot.
	doc.reader, doc.readerErr = openTextReader(content)
	return doc, nil
}

type textDocument struct {
	pages     int
	reader    *rpdf.Reader
	readerErr error
}

func (d *textDocument) PageCount() int { return d.pages }

func (d *textDocument) RenderPage(ctx context.Context, number int, scale float64) (page Page, err error) {
	page = Page{Number: number, Scale: scale}
	if err := ctx.Err(); err != nil {
		return page, err
	}
	if number < 1 || number > d.pages {
		return page, fmt.Errorf("page %d out of range 1..%d", number, d.pages)
	}
	if d.reader == nil {
		return page, fmt.Errorf("text reader: %w", d.readerErr)
	}
	defer func() {
		// rsc.io/pdf panics on malformed content streams
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", number, r)
		}
	}()
	p := d.reader.Page(number)
	if p.V.IsNull() {
		return page, fmt.Errorf("page %d not found", number)
	}
	page.Text = pageText(p.Content().Text)
	return page, nil
}

func (e *TextEngine) pageCount(content []byte) (n int, err error) {
	defer func() {
		// pdfcpu panics on some broken object graphs
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page count: %v", rec)
		}
	}()
	n, err = api.PageCount(bytes.NewReader(content), e.conf)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

func openTextReader(content []byte) (r *rpdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("open: %v", rec)
		}
	}()
	return rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

// pageText joins text runs into lines, top to bottom, left to right.
func pageText(runs []rpdf.Text) string {
	if len(runs) == 0 {
		return ""
	}
	sorted := append([]rpdf.Text(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})
	var b strings.Builder
	lastY := sorted[0].Y
	for _, t := range sorted {
		if t.Y != lastY {
			b.WriteByte('\n')
			lastY = t.Y
		}
		b.WriteString(t.S)
	}
	return strings.TrimSpace(b.String())
}
