package upload

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/joseph-ayodele/shipment-docs/constants"
	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
)

type fakeUploader struct {
	mu     sync.Mutex
	calls  [][]entity.UploadedFile
	result entity.BatchResult
	err    error
	// block, when set, is waited on before answering
	block chan struct{}
	// entered is closed when Upload starts
	entered chan struct{}
}

func (f *fakeUploader) Upload(_ context.Context, files []entity.UploadedFile) (entity.BatchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, files)
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func file(name string, size int64, mime string) entity.UploadedFile {
	return entity.UploadedFile{Name: name, Size: size, Content: make([]byte, size), MimeType: mime}
}

func names(files []entity.UploadedFile) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func TestAddFilesFiltersAndDedups(t *testing.T) {
	q := NewQueue(nil)

	got := q.AddFiles(
		file("invoice.pdf", 10, constants.MimePDF),
		file("notes.txt", 3, "text/plain"),
		file("manifest.xlsx", 20, constants.MimeXLSX),
		file("invoice.pdf", 10, constants.MimePDF),
	)
	if diff := cmp.Diff([]string{"invoice.pdf", "manifest.xlsx"}, names(got)); diff != "" {
		t.Fatalf("queue mismatch (-want +got):\n%s", diff)
	}

	// same name, different size is a different file
	got = q.AddFiles(file("invoice.pdf", 11, constants.MimePDF), file("manifest.xlsx", 20, constants.MimeXLSX))
	if len(got) != 3 {
		t.Fatalf("expected 3 queued files, got %v", names(got))
	}
	if got[2].Size != 11 {
		t.Errorf("expected the resized invoice appended last, got %+v", got[2])
	}
}

func TestAddFilesNormalizesMime(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		want     string
	}{
		{"Report.XLSX", "", constants.MimeXLSX},
		{"scan.pdf", "application/octet-stream", constants.MimePDF},
		{"scan2.pdf", "text/plain", constants.MimePDF},
		{"upper.pdf", "APPLICATION/PDF", constants.MimePDF},
		{"noext", " APPLICATION/PDF ", constants.MimePDF},
	}
	q := NewQueue(nil)
	for _, tt := range tests {
		q.AddFiles(file(tt.name, 5, tt.declared))
	}
	got := q.Files()
	if len(got) != len(tests) {
		t.Fatalf("expected every file accepted, got %v", names(got))
	}
	for i, tt := range tests {
		if got[i].MimeType != tt.want {
			t.Errorf("%s queued as %q, want %q", tt.name, got[i].MimeType, tt.want)
		}
	}
}

func TestAddFilesKeepsKeysUnique(t *testing.T) {
	q := NewQueue(nil)
	batches := [][]entity.UploadedFile{
		{file("a.pdf", 1, constants.MimePDF), file("b.pdf", 2, constants.MimePDF)},
		{file("b.pdf", 2, constants.MimePDF), file("a.pdf", 2, constants.MimePDF)},
		{file("a.pdf", 1, constants.MimePDF), file("a.pdf", 1, constants.MimePDF), file("c.xlsx", 1, constants.MimeXLSX)},
	}
	for _, b := range batches {
		q.AddFiles(b...)
	}
	seen := map[entity.FileKey]bool{}
	for _, f := range q.Files() {
		if seen[f.Key()] {
			t.Fatalf("duplicate key %+v in queue", f.Key())
		}
		seen[f.Key()] = true
	}
	if q.Len() != 4 {
		t.Errorf("expected 4 unique files, got %d", q.Len())
	}
}

func TestSubmitSuccessRemovesSubmittedFiles(t *testing.T) {
	q := NewQueue(nil)
	q.AddFiles(file("invoice.pdf", 10, constants.MimePDF), file("manifest.xlsx", 20, constants.MimeXLSX))
	up := &fakeUploader{result: entity.BatchResult{DocIDs: []entity.DocumentID{"7", "8"}}}

	res, sent, err := q.Submit(context.Background(), up)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(up.calls) != 1 || len(up.calls[0]) != 2 {
		t.Fatalf("expected one request with both files, got %v", up.calls)
	}
	if diff := cmp.Diff([]entity.DocumentID{"7", "8"}, res.DocIDs); diff != "" {
		t.Errorf("doc ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"invoice.pdf", "manifest.xlsx"}, names(sent)); diff != "" {
		t.Errorf("sent files mismatch (-want +got):\n%s", diff)
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty after success, has %v", names(q.Files()))
	}
	if q.Status() != constants.UploadStatusIdle {
		t.Errorf("status = %s, want IDLE", q.Status())
	}
}

func TestSubmitFailureLeavesQueueUnchanged(t *testing.T) {
	q := NewQueue(nil)
	before := q.AddFiles(file("invoice.pdf", 10, constants.MimePDF))
	up := &fakeUploader{err: &common.TransportError{Op: "upload", Status: 400, Detail: "Invalid file type: x"}}

	_, _, err := q.Submit(context.Background(), up)
	var te *common.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if diff := cmp.Diff(before, q.Files(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("queue changed on failure (-want +got):\n%s", diff)
	}
	if q.Status() != constants.UploadStatusIdle {
		t.Errorf("status = %s, want IDLE", q.Status())
	}
}

func TestSubmitEmptyQueue(t *testing.T) {
	q := NewQueue(nil)
	up := &fakeUploader{}
	if _, _, err := q.Submit(context.Background(), up); !errors.Is(err, common.ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue, got %v", err)
	}
	if len(up.calls) != 0 {
		t.Error("no request should be sent for an empty queue")
	}
}

func TestSubmitWhileInFlight(t *testing.T) {
	q := NewQueue(nil)
	q.AddFiles(file("invoice.pdf", 10, constants.MimePDF))
	up := &fakeUploader{block: make(chan struct{}), entered: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, _, err := q.Submit(context.Background(), up)
		done <- err
	}()
	<-up.entered

	if q.Status() != constants.UploadStatusUploading {
		t.Errorf("status = %s, want UPLOADING", q.Status())
	}
	// added during the round trip; must survive the success
	q.AddFiles(file("late.xlsx", 4, constants.MimeXLSX))
	if _, _, err := q.Submit(context.Background(), &fakeUploader{}); !errors.Is(err, common.ErrUploadInProgress) {
		t.Errorf("expected ErrUploadInProgress, got %v", err)
	}

	close(up.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if diff := cmp.Diff([]string{"late.xlsx"}, names(q.Files())); diff != "" {
		t.Errorf("queue after success mismatch (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	q := NewQueue(nil)
	q.AddFiles(file("invoice.pdf", 10, constants.MimePDF))
	q.Clear()
	if q.Len() != 0 || q.Files() != nil {
		t.Errorf("queue not cleared: %v", q.Files())
	}
}
