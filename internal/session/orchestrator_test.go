package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/shipment-docs/constants"
	"github.com/joseph-ayodele/shipment-docs/internal/backend"
	"github.com/joseph-ayodele/shipment-docs/internal/backend/backendtest"
	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/viewer"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type confirmFunc func(string) bool

func (f confirmFunc) Confirm(p string) bool { return f(p) }

type fixture struct {
	srv    *backendtest.Server
	client *backend.Client
	o      *Orchestrator
	notes  *recordingNotifier
	asked  []string
	answer bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{srv: backendtest.New(), notes: &recordingNotifier{}, answer: true}
	t.Cleanup(f.srv.Close)
	f.client = backend.NewClient(backend.Config{BaseURL: f.srv.URL}, nil)
	f.o = New(Deps{
		Backend: f.client,
		Notify:  f.notes,
		Confirm: confirmFunc(func(p string) bool {
			f.asked = append(f.asked, p)
			return f.answer
		}),
	})
	return f
}

func (f *fixture) seed(names ...string) {
	for _, n := range names {
		f.srv.Seed(n, []byte("content of "+n), entity.StructuredRecord{
			ShipmentID: entity.Scalar("SHP-" + n),
			Items:      []entity.LineItem{{Description: entity.Scalar("item of " + n), Quantity: "1"}},
		})
	}
}

type fileSummary struct {
	Name     string
	Kind     viewer.Kind
	Type     string
	InMemory bool
}

func summarize(files []viewer.Descriptor) []fileSummary {
	var out []fileSummary
	for _, d := range files {
		out = append(out, fileSummary{Name: d.Name, Kind: d.Kind(), Type: d.DeclaredType, InMemory: d.InMemory()})
	}
	return out
}

func TestMountSelectsFirstDocument(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")

	if err := f.o.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	s := f.o.State()
	if s.SelectedID() != "1" || len(s.Documents) != 2 {
		t.Fatalf("unexpected state after mount: selected=%q docs=%d", s.SelectedID(), len(s.Documents))
	}
	want := []fileSummary{{Name: "a.pdf", Kind: viewer.KindPDF, Type: constants.MimePDF}}
	if diff := cmp.Diff(want, summarize(s.ViewerFiles)); diff != "" {
		t.Errorf("viewer files mismatch (-want +got):\n%s", diff)
	}
	if got := s.ViewerFiles[0].URL; got != f.srv.URL+"/file/a.pdf" {
		t.Errorf("viewer URL = %q", got)
	}
	if v, _ := f.o.Form().Value("shipment_id"); v != "SHP-a.pdf" {
		t.Errorf("form not loaded from first document: %q", v)
	}
}

func TestMountEmptyBackend(t *testing.T) {
	f := newFixture(t)
	if err := f.o.Mount(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := f.o.State()
	if s.Selected != nil || len(s.ViewerFiles) != 0 {
		t.Errorf("nothing should be selected: %+v", s)
	}
}

func TestMountKeepsExistingSelection(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")
	ctx := context.Background()
	_ = f.o.Mount(ctx)
	if err := f.o.Select("2"); err != nil {
		t.Fatal(err)
	}
	_ = f.o.Mount(ctx)
	if got := f.o.State().SelectedID(); got != "2" {
		t.Errorf("Mount replaced selection: %q", got)
	}
}

func TestUploadScenario(t *testing.T) {
	f := newFixture(t)
	f.seed("old.pdf")
	ctx := context.Background()
	_ = f.o.Mount(ctx)

	pdf := entity.UploadedFile{Name: "invoice.pdf", Size: 2202010, Content: make([]byte, 2202010), MimeType: constants.MimePDF}
	xlsx := entity.UploadedFile{Name: "manifest.xlsx", Size: 314573, Content: make([]byte, 314573), MimeType: constants.MimeXLSX}
	f.o.AddFiles(pdf, xlsx)
	f.o.AddFiles(pdf) // duplicate drop

	if _, err := f.o.Upload(ctx); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	batches := f.srv.Batches()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("expected one batch with both files, got %d batches", len(batches))
	}
	s := f.o.State()
	last := s.Documents[len(s.Documents)-1]
	if s.SelectedID() != last.ID {
		t.Errorf("selected %q, want the last document %q", s.SelectedID(), last.ID)
	}
	if last.Filename != "invoice.pdf" && last.Filename != "manifest.xlsx" {
		t.Errorf("newest document %q is not from the batch", last.Filename)
	}
	want := []fileSummary{
		{Name: "invoice.pdf", Kind: viewer.KindPDF, Type: constants.MimePDF, InMemory: true},
		{Name: "manifest.xlsx", Kind: viewer.KindSpreadsheet, Type: constants.MimeXLSX, InMemory: true},
	}
	if diff := cmp.Diff(want, summarize(s.ViewerFiles)); diff != "" {
		t.Errorf("viewer files mismatch (-want +got):\n%s", diff)
	}
	if len(s.ViewerFiles[0].Content) != 2202010 {
		t.Errorf("viewer should hold the uploaded bytes")
	}
	if len(s.Queue) != 0 || s.UploadStatus != constants.UploadStatusIdle {
		t.Errorf("queue not drained: %d files, status %s", len(s.Queue), s.UploadStatus)
	}
}

func TestUploadFailureLeavesStateAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf")
	ctx := context.Background()
	_ = f.o.Mount(ctx)
	before := f.o.State()

	f.o.AddFiles(entity.UploadedFile{Name: "invoice.pdf", Size: 3, Content: []byte("pdf"), MimeType: constants.MimePDF})
	f.srv.FailWith(400, "Invalid file type: invoice.pdf")
	if _, err := f.o.Upload(ctx); err == nil {
		t.Fatal("expected error")
	}

	if diff := cmp.Diff([]string{"Error uploading files: Invalid file type: invoice.pdf"}, f.notes.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	after := f.o.State()
	if after.SelectedID() != before.SelectedID() || len(after.ViewerFiles) != len(before.ViewerFiles) {
		t.Error("session changed after a failed upload")
	}
	if len(after.Queue) != 1 {
		t.Errorf("failed upload should keep the queue, got %d files", len(after.Queue))
	}
}

func TestUploadEmptyQueueIsQuiet(t *testing.T) {
	f := newFixture(t)
	if _, err := f.o.Upload(context.Background()); !errors.Is(err, common.ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue, got %v", err)
	}
	if len(f.notes.all()) != 0 {
		t.Errorf("no notification expected, got %v", f.notes.all())
	}
}

func TestUploadDoesNotOverrideNewerSelection(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")
	ctx := context.Background()
	_ = f.o.Mount(ctx)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.srv.OnUpload(func() {
		close(entered)
		<-release
	})
	f.o.AddFiles(entity.UploadedFile{Name: "c.pdf", Size: 1, Content: []byte("c"), MimeType: constants.MimePDF})

	done := make(chan error, 1)
	go func() {
		_, err := f.o.Upload(ctx)
		done <- err
	}()
	<-entered
	if err := f.o.Select("2"); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Upload: %v", err)
	}

	s := f.o.State()
	if s.SelectedID() != "2" {
		t.Errorf("upload completion replaced a newer selection: %q", s.SelectedID())
	}
	if len(s.Documents) != 3 {
		t.Errorf("document list not refreshed: %d docs", len(s.Documents))
	}
}

func TestSelectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")
	_ = f.o.Mount(context.Background())

	if err := f.o.Select("2"); err != nil {
		t.Fatal(err)
	}
	first := f.o.State()
	firstRec := f.o.Form().Record()
	if err := f.o.Select("2"); err != nil {
		t.Fatal(err)
	}
	second := f.o.State()

	if diff := cmp.Diff(summarize(first.ViewerFiles), summarize(second.ViewerFiles)); diff != "" {
		t.Errorf("viewer files differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(firstRec, f.o.Form().Record()); diff != "" {
		t.Errorf("form data differs (-first +second):\n%s", diff)
	}
	want := []fileSummary{{Name: "b.xlsx", Kind: viewer.KindSpreadsheet, Type: constants.MimeXLSX}}
	if diff := cmp.Diff(want, summarize(second.ViewerFiles)); diff != "" {
		t.Errorf("viewer files mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectUnknownDocument(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf")
	_ = f.o.Mount(context.Background())
	if err := f.o.Select("99"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if f.o.State().SelectedID() != "1" {
		t.Error("selection changed on unknown id")
	}
}

func TestRefreshKeepsEditsForSameDocument(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")
	ctx := context.Background()
	_ = f.o.Mount(ctx)

	if err := f.o.Form().ChangeItem(0, "description", "edited"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.o.Form().Items()[0].Description; got != "edited" {
		t.Errorf("refresh reverted the edit: %q", got)
	}
	if err := f.o.Select("1"); err != nil {
		t.Fatal(err)
	}
	if got := f.o.Form().Items()[0].Description; got != "edited" {
		t.Errorf("re-selecting the same document reverted the edit: %q", got)
	}

	if err := f.o.Select("2"); err != nil {
		t.Fatal(err)
	}
	want := []entity.LineItem{{Description: "item of b.xlsx", Quantity: "1"}}
	if diff := cmp.Diff(want, f.o.Form().Items()); diff != "" {
		t.Errorf("selecting another document must reset the form (-want +got):\n%s", diff)
	}
}

func TestSave(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf")
	ctx := context.Background()

	if err := f.o.Save(ctx); !errors.Is(err, common.ErrNoSelection) {
		t.Fatalf("Save without selection: got %v", err)
	}

	_ = f.o.Mount(ctx)
	_ = f.o.Form().SetValue("total_value", "1200")
	f.o.Form().AddItem()
	if err := f.o.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saves := f.srv.Saves()
	if len(saves) != 1 || saves[0].DocID != "1" || saves[0].Record.TotalValue != "1200" || len(saves[0].Record.Items) != 2 {
		t.Fatalf("unexpected saves %+v", saves)
	}
	sel := f.o.State().Selected
	if sel == nil || sel.EditedData == nil || sel.EditedData.TotalValue != "1200" {
		t.Errorf("selection not refreshed with edited data: %+v", sel)
	}
	if diff := cmp.Diff([]string{"Changes saved!"}, f.notes.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveFailureNotifies(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf")
	ctx := context.Background()
	_ = f.o.Mount(ctx)
	_ = f.o.Form().SetValue("sender_name", "kept")

	f.srv.FailWith(500, "")
	if err := f.o.Save(ctx); err == nil {
		t.Fatal("expected error")
	}
	if got := f.notes.all(); len(got) != 1 || got[0] != "Error saving changes: request failed with status code 500" {
		t.Errorf("unexpected notifications %v", got)
	}
	if v, _ := f.o.Form().Value("sender_name"); v != "kept" {
		t.Errorf("form edits lost after failed save: %q", v)
	}
}

func TestSaveWithFailedRefreshReportsBoth(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf")
	ctx := context.Background()
	_ = f.o.Mount(ctx)
	_ = f.o.Form().SetValue("total_value", "1200")

	f.srv.FailListWith(503, "network down")
	err := f.o.Save(ctx)
	if !errors.Is(err, common.ErrRefreshFailed) {
		t.Fatalf("Save error = %v, want ErrRefreshFailed", err)
	}
	if len(f.srv.Saves()) != 1 {
		t.Fatalf("save should have reached the backend, got %d", len(f.srv.Saves()))
	}
	want := []string{"Changes saved!", "Error fetching documents: network down"}
	if diff := cmp.Diff(want, f.notes.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	if v, _ := f.o.Form().Value("total_value"); v != "1200" {
		t.Errorf("form edits lost: %q", v)
	}
}

func TestDiscardEdits(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf")
	ctx := context.Background()

	if err := f.o.DiscardEdits(); !errors.Is(err, common.ErrNoSelection) {
		t.Fatalf("DiscardEdits without selection: got %v", err)
	}
	_ = f.o.Mount(ctx)
	_ = f.o.Form().SetValue("shipment_id", "edited")
	f.o.Form().AddItem()

	if err := f.o.DiscardEdits(); err != nil {
		t.Fatal(err)
	}
	if v, _ := f.o.Form().Value("shipment_id"); v != "SHP-a.pdf" {
		t.Errorf("shipment_id = %q, want the stored value", v)
	}
	if n := len(f.o.Form().Items()); n != 1 {
		t.Errorf("items = %d, want 1", n)
	}
}

func TestDeleteSelectedClearsSession(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")
	ctx := context.Background()
	_ = f.o.Mount(ctx)
	if err := f.o.OpenViewer(0); err != nil {
		t.Fatal(err)
	}

	if err := f.o.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if diff := cmp.Diff([]string{DeletePrompt}, f.asked); diff != "" {
		t.Errorf("prompt mismatch (-want +got):\n%s", diff)
	}
	s := f.o.State()
	if s.Selected != nil || len(s.ViewerFiles) != 0 || s.ViewerOpen {
		t.Errorf("selection and viewer should be cleared: %+v", s)
	}
	if _, ok := f.o.Form().DocID(); ok {
		t.Error("form should be cleared")
	}
	if len(s.Documents) != 1 {
		t.Errorf("expected 1 document left, got %d", len(s.Documents))
	}
}

func TestDeleteSelectedClearsSessionWhenRefreshFails(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.pdf")
	ctx := context.Background()
	_ = f.o.Mount(ctx)

	f.srv.FailListWith(503, "network down")
	err := f.o.Delete(ctx, "1")
	if !errors.Is(err, common.ErrRefreshFailed) {
		t.Fatalf("Delete error = %v, want ErrRefreshFailed", err)
	}
	if diff := cmp.Diff([]entity.DocumentID{"1"}, f.srv.Deletes()); diff != "" {
		t.Errorf("deletes mismatch (-want +got):\n%s", diff)
	}
	s := f.o.State()
	if s.Selected != nil || len(s.ViewerFiles) != 0 {
		t.Errorf("deleted document still selected: selected=%q files=%d", s.SelectedID(), len(s.ViewerFiles))
	}
	if diff := cmp.Diff([]string{"b.pdf"}, filenames(s.Documents)); diff != "" {
		t.Errorf("documents mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Error fetching documents: network down"}, f.notes.all()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteOtherKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")
	ctx := context.Background()
	_ = f.o.Mount(ctx)
	before := f.o.State()

	if err := f.o.Delete(ctx, "2"); err != nil {
		t.Fatal(err)
	}
	after := f.o.State()
	if after.SelectedID() != "1" {
		t.Errorf("selection changed: %q", after.SelectedID())
	}
	if diff := cmp.Diff(summarize(before.ViewerFiles), summarize(after.ViewerFiles)); diff != "" {
		t.Errorf("viewer files changed (-before +after):\n%s", diff)
	}
}

func TestDeleteDeclinedIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf")
	ctx := context.Background()
	_ = f.o.Mount(ctx)
	f.answer = false

	if err := f.o.Delete(ctx, "1"); err != nil {
		t.Fatalf("declined delete should not error: %v", err)
	}
	if len(f.srv.Deletes()) != 0 {
		t.Error("no request should be sent when declined")
	}
	if f.o.State().SelectedID() != "1" {
		t.Error("selection changed after declined delete")
	}
}

func TestVanishedSelectionIsCleared(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")
	ctx := context.Background()
	_ = f.o.Mount(ctx)

	// another client removes the selected document
	if err := f.client.DeleteDocument(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if err := f.o.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	s := f.o.State()
	if s.Selected != nil || len(s.ViewerFiles) != 0 {
		t.Errorf("stale selection survived refresh: %+v", s)
	}
}

func TestViewerTransitions(t *testing.T) {
	f := newFixture(t)
	f.seed("a.pdf", "b.xlsx")
	ctx := context.Background()
	_ = f.o.Mount(ctx)

	if err := f.o.OpenViewer(1); !errors.Is(err, common.ErrIndexOutOfRange) {
		t.Errorf("OpenViewer past the end: got %v", err)
	}
	if err := f.o.OpenViewer(0); err != nil {
		t.Fatal(err)
	}
	if err := f.o.SelectViewerFile(3); !errors.Is(err, common.ErrIndexOutOfRange) {
		t.Errorf("SelectViewerFile past the end: got %v", err)
	}

	// a new selection while open restarts the viewer on the new files
	if err := f.o.Select("2"); err != nil {
		t.Fatal(err)
	}
	s := f.o.State()
	if !s.ViewerOpen || s.ViewerIndex != 0 {
		t.Errorf("viewer should stay open at 0: %+v", s)
	}
	if p := f.o.Preview(ctx); p.File != "b.xlsx" || p.Kind != viewer.KindSpreadsheet {
		t.Errorf("preview of wrong file: %+v", p)
	}

	f.o.CloseViewer()
	if f.o.State().ViewerOpen {
		t.Error("viewer still open")
	}
	if len(f.o.State().ViewerFiles) != 1 {
		t.Error("closing the viewer must not drop the session's viewer files")
	}
}

func filenames(docs []entity.Document) []string {
	var out []string
	for _, d := range docs {
		out = append(out, d.Filename)
	}
	return out
}
