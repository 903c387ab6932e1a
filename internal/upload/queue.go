// Package upload holds files picked by the user until they are sent to the
// backend as one batch.
package upload

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/shipment-docs/constants"
	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
)

// Uploader sends a batch of files to the backend.
type Uploader interface {
	Upload(ctx context.Context, files []entity.UploadedFile) (entity.BatchResult, error)
}

// Queue is the set of files waiting to be uploaded. No two entries share a
// (name, size) key. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	files  []entity.UploadedFile
	status constants.UploadStatus
	logger *slog.Logger
}

func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{status: constants.UploadStatusIdle, logger: logger}
}

// AddFiles filters out files that are neither PDF nor XLSX, merges the rest
// into the queue keeping the first entry seen per (name, size), and returns
// the resulting queue.
func (q *Queue) AddFiles(files ...entity.UploadedFile) []entity.UploadedFile {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[entity.FileKey]struct{}, len(q.files)+len(files))
	for _, f := range q.files {
		seen[f.Key()] = struct{}{}
	}
	var added, rejected, dupes int
	for _, f := range files {
		if !constants.Accepted(f.Name, f.MimeType) {
			rejected++
			continue
		}
		if _, ok := seen[f.Key()]; ok {
			dupes++
			continue
		}
		f.MimeType = constants.NormalizeMime(f.Name, f.MimeType)
		seen[f.Key()] = struct{}{}
		q.files = append(q.files, f)
		added++
	}
	q.logger.Debug("upload.queue.add", "added", added, "rejected", rejected, "duplicates", dupes, "queued", len(q.files))
	return q.snapshotLocked()
}

// Files returns a copy of the queued files in insertion order.
func (q *Queue) Files() []entity.UploadedFile {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Len returns the number of queued files.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.files)
}

func (q *Queue) Status() constants.UploadStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}

// Clear drops every queued file.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.files = nil
}

// Submit sends the whole queue as one batch. On success the submitted files
// are removed (files added during the request stay queued) and returned with
// the backend result. On failure the queue is left as it was.
func (q *Queue) Submit(ctx context.Context, up Uploader) (entity.BatchResult, []entity.UploadedFile, error) {
	q.mu.Lock()
	if q.status == constants.UploadStatusUploading {
		q.mu.Unlock()
		return entity.BatchResult{}, nil, common.ErrUploadInProgress
	}
	if len(q.files) == 0 {
		q.mu.Unlock()
		return entity.BatchResult{}, nil, common.ErrEmptyQueue
	}
	batch := q.snapshotLocked()
	q.status = constants.UploadStatusUploading
	q.mu.Unlock()

	start := time.Now()
	res, err := up.Upload(ctx, batch)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.status = constants.UploadStatusIdle
	if err != nil {
		q.logger.Error("upload.submit.failed", "files", len(batch), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.BatchResult{}, nil, err
	}

	sent := make(map[entity.FileKey]struct{}, len(batch))
	for _, f := range batch {
		sent[f.Key()] = struct{}{}
	}
	kept := q.files[:0:0]
	for _, f := range q.files {
		if _, ok := sent[f.Key()]; !ok {
			kept = append(kept, f)
		}
	}
	q.files = kept
	q.logger.Info("upload.submit.ok", "files", len(batch), "doc_ids", len(res.DocIDs), "elapsed_ms", time.Since(start).Milliseconds())
	return res, batch, nil
}

func (q *Queue) snapshotLocked() []entity.UploadedFile {
	if len(q.files) == 0 {
		return nil
	}
	return append([]entity.UploadedFile(nil), q.files...)
}
