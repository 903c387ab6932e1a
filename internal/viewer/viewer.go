// Package viewer previews PDF and XLSX files: PDFs as numbered pages,
// workbooks as sheets of raw rows.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/shipment-docs/internal/common"
)

// DefaultScale is the fixed page scale.
const DefaultScale = 1.0

// Page is one rendered PDF page.
type Page struct {
	Number int
	Scale  float64
	Text   string
}

// Sheet is one workbook sheet; every row is data.
type Sheet struct {
	Name string
	Rows [][]string
}

// Preview is what the viewer shows for the active file. A failed fetch or
// parse yields a preview with no pages or sheets.
type Preview struct {
	Kind      Kind
	File      string
	PageCount int
	Pages     []Page
	Sheets    []Sheet
}

// Empty reports whether nothing could be shown.
func (p Preview) Empty() bool {
	return len(p.Pages) == 0 && len(p.Sheets) == 0
}

// Options configures a Viewer.
type Options struct {
	Scale        float64
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// Viewer is a closed/open state machine over a list of files with one active
// file. Derived state (rendered pages, parsed sheets) lives only while open.
type Viewer struct {
	engine  PDFEngine
	fetcher Fetcher
	parser  SheetParser
	scale   float64
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	files []Descriptor
	open  bool
	index int
	epoch uint64
	cache map[int]Preview
}

func New(engine PDFEngine, fetcher Fetcher, parser SheetParser, opts Options) *Viewer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	return &Viewer{
		engine:  engine,
		fetcher: fetcher,
		parser:  parser,
		scale:   opts.Scale,
		timeout: opts.FetchTimeout,
		logger:  opts.Logger,
	}
}

// Open shows files starting at initialIndex. Any previous derived state is
// discarded.
func (v *Viewer) Open(files []Descriptor, initialIndex int) error {
	if initialIndex < 0 || initialIndex >= len(files) {
		return fmt.Errorf("open at %d of %d files: %w", initialIndex, len(files), common.ErrIndexOutOfRange)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files = append([]Descriptor(nil), files...)
	v.open = true
	v.index = initialIndex
	v.epoch++
	v.cache = map[int]Preview{}
	v.logger.Debug("viewer.open", "files", len(files), "index", initialIndex)
	return nil
}

// SelectFile makes file j active. Out of range leaves the state unchanged.
func (v *Viewer) SelectFile(j int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open {
		return errors.New("viewer is closed")
	}
	if j < 0 || j >= len(v.files) {
		return fmt.Errorf("select %d of %d files: %w", j, len(v.files), common.ErrIndexOutOfRange)
	}
	v.index = j
	return nil
}

// Close discards the files and everything derived from them.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files = nil
	v.open = false
	v.index = 0
	v.epoch++
	v.cache = nil
}

func (v *Viewer) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// Index returns the active file index; meaningful only while open.
func (v *Viewer) Index() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.index
}

func (v *Viewer) Files() []Descriptor {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Descriptor(nil), v.files...)
}

// Render builds the preview of the active file. It never fails: problems are
// logged and produce an empty preview. A result is kept only if the viewer
// was not reopened, closed or moved to another file while it was built.
func (v *Viewer) Render(ctx context.Context) Preview {
	v.mu.Lock()
	if !v.open {
		v.mu.Unlock()
		return Preview{}
	}
	epoch, idx, desc := v.epoch, v.index, v.files[v.index]
	if p, ok := v.cache[idx]; ok {
		v.mu.Unlock()
		return p
	}
	v.mu.Unlock()

	start := time.Now()
	p := v.build(ctx, desc)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.open && v.epoch == epoch && v.index == idx {
		v.cache[idx] = p
	} else {
		v.logger.Debug("viewer.render.stale", "file", desc.Name)
	}
	v.logger.Debug("viewer.render.ok", "file", desc.Name, "kind", desc.Kind().String(), "pages", len(p.Pages), "sheets", len(p.Sheets), "elapsed_ms", time.Since(start).Milliseconds())
	return p
}

func (v *Viewer) build(ctx context.Context, d Descriptor) Preview {
	p := Preview{Kind: d.Kind(), File: d.Name}
	switch d.Kind() {
	case KindPDF:
		return v.buildPDF(ctx, d, p)
	case KindSpreadsheet:
		return v.buildSheets(ctx, d, p)
	default:
		return p
	}
}

func (v *Viewer) buildPDF(ctx context.Context, d Descriptor, p Preview) Preview {
	if v.engine == nil {
		v.logParseError(&common.ParseError{File: d.Name, Err: errors.New("no pdf engine")})
		return p
	}
	lctx, cancel := common.WithTimeout(ctx, v.timeout)
	defer cancel()
	doc, err := v.engine.Load(lctx, Source{URL: d.URL, Content: d.Content})
	if err != nil {
		v.logParseError(&common.ParseError{File: d.Name, Err: err})
		return p
	}
	p.PageCount = doc.PageCount()
	p.Pages = make([]Page, 0, p.PageCount)
	for n := 1; n <= p.PageCount; n++ {
		page, err := doc.RenderPage(ctx, n, v.scale)
		if err != nil {
			v.logger.Warn("viewer.render.page_error", "file", d.Name, "page", n, "error", err)
			page = Page{Number: n, Scale: v.scale}
		}
		p.Pages = append(p.Pages, page)
	}
	return p
}

func (v *Viewer) buildSheets(ctx context.Context, d Descriptor, p Preview) Preview {
	content := d.Content
	if d.URL != "" {
		if v.fetcher == nil {
			v.logParseError(&common.ParseError{File: d.Name, Err: errors.New("no fetcher")})
			return p
		}
		fctx, cancel := common.WithTimeout(ctx, v.timeout)
		defer cancel()
		b, err := v.fetcher.FetchFile(fctx, d.URL)
		if err != nil {
			v.logParseError(&common.ParseError{File: d.Name, Err: err})
			return p
		}
		content = b
	}
	if v.parser == nil {
		v.logParseError(&common.ParseError{File: d.Name, Err: errors.New("no sheet parser")})
		return p
	}
	sheets, err := v.parser.Parse(content)
	if err != nil {
		v.logParseError(&common.ParseError{File: d.Name, Err: err})
		return p
	}
	p.Sheets = sheets
	return p
}

func (v *Viewer) logParseError(err *common.ParseError) {
	v.logger.Error("viewer.render.parse_error", "file", err.File, "error", err.Err)
}
