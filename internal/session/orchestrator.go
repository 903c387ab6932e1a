// Package session owns the client session: the document list, the
// selection, the viewer files and the form, changed only through the
// Orchestrator's transitions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/shipment-docs/constants"
	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/form"
	"github.com/joseph-ayodele/shipment-docs/internal/registry"
	"github.com/joseph-ayodele/shipment-docs/internal/upload"
	"github.com/joseph-ayodele/shipment-docs/internal/viewer"
)

// DeletePrompt is the question asked before a delete.
const DeletePrompt = "Are you sure you want to delete this document?"

// User-facing notifications.
const (
	MsgSaved        = "Changes saved!"
	MsgUploadFailed = "Error uploading files"
	MsgSaveFailed   = "Error saving changes"
	MsgDeleteFailed = "Error deleting document"
	MsgListFailed   = "Error fetching documents"
)

// Backend is everything the session needs from the extraction backend.
type Backend interface {
	registry.Backend
	upload.Uploader
	viewer.Fetcher
	FileURL(filename string) string
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Notifier shows a blocking message to the user.
type Notifier interface {
	Notify(message string)
}

// Deps wires an Orchestrator.
type Deps struct {
	Backend Backend
	Viewer  *viewer.Viewer
	Confirm Confirmer
	Notify  Notifier
	Logger  *slog.Logger
}

// Orchestrator is the single writer of session state. Its lock is never held
// across a backend call.
type Orchestrator struct {
	backend Backend
	reg     *registry.Registry
	queue   *upload.Queue
	form    *form.Form
	viewer  *viewer.Viewer
	confirm Confirmer
	notify  Notifier
	logger  *slog.Logger

	mu          sync.Mutex
	docs        []entity.Document
	selected    *entity.Document
	viewerFiles []viewer.Descriptor
	viewerOpen  bool
	viewerStart int
	// gen changes on every selection change; completions started under an
	// older generation do not move the selection.
	gen uint64
}

func New(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Viewer == nil {
		d.Viewer = viewer.New(viewer.NewTextEngine(d.Backend), d.Backend, viewer.NewExcelParser(d.Logger), viewer.Options{Logger: d.Logger})
	}
	o := &Orchestrator{
		backend: d.Backend,
		reg:     registry.New(d.Backend, d.Logger),
		queue:   upload.NewQueue(d.Logger),
		viewer:  d.Viewer,
		confirm: d.Confirm,
		notify:  d.Notify,
		logger:  d.Logger,
	}
	o.form = form.New(o.persist)
	return o
}

// Form is the editable working copy of the selected document.
func (o *Orchestrator) Form() *form.Form { return o.form }

// Mount loads the document list and, when nothing is selected yet, selects
// the first document.
func (o *Orchestrator) Mount(ctx context.Context) error {
	if err := o.refresh(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selected == nil && len(o.docs) > 0 {
		first := o.docs[0]
		o.selectLocked(first, []viewer.Descriptor{o.urlDescriptor(first)})
	}
	return nil
}

// Refresh reloads the document list and re-resolves the selection.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	return o.refresh(ctx)
}

// AddFiles queues files for the next upload and returns the queue.
func (o *Orchestrator) AddFiles(files ...entity.UploadedFile) []entity.UploadedFile {
	return o.queue.AddFiles(files...)
}

// ClearQueue drops every queued file.
func (o *Orchestrator) ClearQueue() {
	o.queue.Clear()
}

// Upload sends the queue as one batch. On success the newest document is
// selected and the viewer shows the uploaded files from memory. On failure
// the user is notified and the session is left as it was.
func (o *Orchestrator) Upload(ctx context.Context) (entity.BatchResult, error) {
	o.mu.Lock()
	gen := o.gen
	o.mu.Unlock()

	res, sent, err := o.queue.Submit(ctx, o.backend)
	if err != nil {
		if !errors.Is(err, common.ErrEmptyQueue) && !errors.Is(err, common.ErrUploadInProgress) {
			o.notifyf(common.UserMessage(MsgUploadFailed, err))
		}
		return entity.BatchResult{}, err
	}
	if err := o.refresh(ctx); err != nil {
		return res, fmt.Errorf("refresh after upload: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		o.logger.Info("session.upload.selection_changed", "files", len(sent))
		return res, nil
	}
	latest, ok := registry.SelectLatest(o.docs)
	if !ok {
		return res, nil
	}
	files := make([]viewer.Descriptor, 0, len(sent))
	for _, f := range sent {
		files = append(files, viewer.NewMemoryDescriptor(f.Name, f.Content, f.MimeType))
	}
	o.selectLocked(latest, files)
	return res, nil
}

// Select makes document id the selection and points the viewer at its
// stored file. The form keeps its edits when id is already selected.
func (o *Orchestrator) Select(id entity.DocumentID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	doc, ok := registry.FindIn(o.docs, id)
	if !ok {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	o.selectLocked(doc, []viewer.Descriptor{o.urlDescriptor(doc)})
	return nil
}

// Save persists the form for the selected document and reloads the list.
func (o *Orchestrator) Save(ctx context.Context) error {
	o.mu.Lock()
	selected := o.selected != nil
	o.mu.Unlock()
	if !selected {
		return common.ErrNoSelection
	}
	return o.form.Submit(ctx)
}

// DiscardEdits reloads the form from the selected document, dropping
// unsaved edits.
func (o *Orchestrator) DiscardEdits() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selected == nil {
		return common.ErrNoSelection
	}
	o.form.Reset(o.selected.ID, o.selected.Current())
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, id entity.DocumentID, rec entity.StructuredRecord) error {
	_, err := o.reg.Save(ctx, id, rec)
	if err != nil && !errors.Is(err, common.ErrRefreshFailed) {
		o.notifyf(common.UserMessage(MsgSaveFailed, err))
		return err
	}
	o.mu.Lock()
	o.syncLocked()
	o.mu.Unlock()
	o.notifyf(MsgSaved)
	if err != nil {
		o.notifyf(common.UserMessage(MsgListFailed, err))
	}
	return err
}

// Delete removes document id after the user confirms. Declining is not an
// error. Deleting the selected document clears the selection, the form and
// the viewer.
func (o *Orchestrator) Delete(ctx context.Context, id entity.DocumentID) error {
	if o.confirm != nil && !o.confirm.Confirm(DeletePrompt) {
		o.logger.Debug("session.delete.declined", "doc_id", id.String())
		return nil
	}
	_, err := o.reg.Delete(ctx, id)
	if err != nil && !errors.Is(err, common.ErrRefreshFailed) {
		o.notifyf(common.UserMessage(MsgDeleteFailed, err))
		return err
	}
	if err != nil {
		o.notifyf(common.UserMessage(MsgListFailed, err))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selected != nil && o.selected.ID == id {
		o.clearSelectionLocked()
	}
	o.syncLocked()
	return err
}

// OpenViewer opens the viewer on the current files at idx.
func (o *Orchestrator) OpenViewer(idx int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.viewer.Open(o.viewerFiles, idx); err != nil {
		return err
	}
	o.viewerOpen = true
	o.viewerStart = idx
	return nil
}

func (o *Orchestrator) SelectViewerFile(j int) error {
	return o.viewer.SelectFile(j)
}

func (o *Orchestrator) CloseViewer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeViewerLocked()
}

// Preview renders the active viewer file.
func (o *Orchestrator) Preview(ctx context.Context) viewer.Preview {
	return o.viewer.Render(ctx)
}

// State returns a deep snapshot of the session.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := State{
		Documents:          cloneDocs(o.docs),
		ViewerFiles:        append([]viewer.Descriptor(nil), o.viewerFiles...),
		ViewerOpen:         o.viewerOpen,
		ViewerInitialIndex: o.viewerStart,
		Queue:              o.queue.Files(),
		UploadStatus:       o.queue.Status(),
	}
	if o.viewerOpen {
		s.ViewerIndex = o.viewer.Index()
	}
	if o.selected != nil {
		sel := o.selected.Clone()
		s.Selected = &sel
	}
	return s
}

func (o *Orchestrator) refresh(ctx context.Context) error {
	if _, err := o.reg.Refresh(ctx); err != nil {
		o.notifyf(common.UserMessage(MsgListFailed, err))
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncLocked()
	return nil
}

// syncLocked takes the registry's current list and re-resolves the
// selection against it. The registry only ever holds the latest applied
// list, so a late caller cannot roll the session back.
func (o *Orchestrator) syncLocked() {
	o.docs = o.reg.Documents()
	if o.selected == nil {
		return
	}
	fresh, ok := registry.FindIn(o.docs, o.selected.ID)
	if !ok {
		o.logger.Info("session.selection.vanished", "doc_id", o.selected.ID.String())
		o.clearSelectionLocked()
		return
	}
	o.selected = &fresh
	o.form.Load(fresh.ID, fresh.Current())
}

func (o *Orchestrator) selectLocked(doc entity.Document, files []viewer.Descriptor) {
	if o.selected == nil || o.selected.ID != doc.ID {
		o.gen++
	}
	o.selected = &doc
	o.form.Load(doc.ID, doc.Current())
	o.setViewerFilesLocked(files)
	o.logger.Debug("session.select", "doc_id", doc.ID.String(), "viewer_files", len(files))
}

func (o *Orchestrator) clearSelectionLocked() {
	o.gen++
	o.selected = nil
	o.form.Clear()
	o.setViewerFilesLocked(nil)
}

// setViewerFilesLocked replaces the viewer files; an open viewer restarts at
// the first file.
func (o *Orchestrator) setViewerFilesLocked(files []viewer.Descriptor) {
	o.viewerFiles = files
	if !o.viewerOpen {
		return
	}
	if len(files) == 0 {
		o.closeViewerLocked()
		return
	}
	if err := o.viewer.Open(files, 0); err != nil {
		o.logger.Warn("session.viewer.reopen_failed", "error", err)
		o.closeViewerLocked()
		return
	}
	o.viewerStart = 0
}

func (o *Orchestrator) closeViewerLocked() {
	o.viewer.Close()
	o.viewerOpen = false
	o.viewerStart = 0
}

func (o *Orchestrator) urlDescriptor(doc entity.Document) viewer.Descriptor {
	return viewer.NewURLDescriptor(doc.Filename, o.backend.FileURL(doc.Filename), constants.DeclaredTypeForStored(doc.Filename))
}

func (o *Orchestrator) notifyf(msg string) {
	o.logger.Debug("session.notify", "message", msg)
	if o.notify != nil {
		o.notify.Notify(msg)
	}
}

func cloneDocs(docs []entity.Document) []entity.Document {
	if docs == nil {
		return nil
	}
	out := make([]entity.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
