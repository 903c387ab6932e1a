// Package registry caches the backend's document list.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
)

// Backend is the slice of the backend client the registry needs.
type Backend interface {
	ListDocuments(ctx context.Context) ([]entity.Document, error)
	SaveEditedData(ctx context.Context, id entity.DocumentID, record entity.StructuredRecord) error
	DeleteDocument(ctx context.Context, id entity.DocumentID) error
}

// Registry holds the last applied document list. Every mutation is followed
// by a full refetch.
type Registry struct {
	backend Backend
	logger  *slog.Logger

	mu      sync.Mutex
	docs    []entity.Document
	started uint64 // sequence of the last refresh started
	applied uint64 // sequence of the refresh whose result is cached
}

func New(backend Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{backend: backend, logger: logger}
}

// Refresh fetches the full list and replaces the cache. A result that
// arrives after a later-started refresh already applied is dropped and the
// current cache is returned instead.
func (r *Registry) Refresh(ctx context.Context) ([]entity.Document, error) {
	r.mu.Lock()
	r.started++
	seq := r.started
	r.mu.Unlock()

	start := time.Now()
	docs, err := r.backend.ListDocuments(ctx)
	if err != nil {
		r.logger.Error("registry.refresh.failed", "seq", seq, "error", err)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq < r.applied {
		r.logger.Debug("registry.refresh.stale", "seq", seq, "applied", r.applied)
		return cloneDocs(r.docs), nil
	}
	r.applied = seq
	r.docs = cloneDocs(docs)
	r.logger.Debug("registry.refresh.ok", "seq", seq, "count", len(docs), "elapsed_ms", time.Since(start).Milliseconds())
	return cloneDocs(r.docs), nil
}

// Documents returns a copy of the cached list in backend order.
func (r *Registry) Documents() []entity.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneDocs(r.docs)
}

// Delete removes a document on the backend and refetches. Once the backend
// confirms, the document leaves the cache even if the refetch fails; that
// failure is reported wrapped in common.ErrRefreshFailed.
func (r *Registry) Delete(ctx context.Context, id entity.DocumentID) ([]entity.Document, error) {
	if err := r.backend.DeleteDocument(ctx, id); err != nil {
		return nil, err
	}
	r.logger.Info("registry.delete.ok", "doc_id", id.String())
	r.applyLocal(func(docs []entity.Document) []entity.Document {
		out := docs[:0]
		for _, d := range docs {
			if d.ID != id {
				out = append(out, d)
			}
		}
		return out
	})
	return r.refetch(ctx)
}

// Save persists edited data for a document and refetches. The cache only
// changes through the refetch; its failure is reported wrapped in
// common.ErrRefreshFailed.
func (r *Registry) Save(ctx context.Context, id entity.DocumentID, record entity.StructuredRecord) ([]entity.Document, error) {
	if err := r.backend.SaveEditedData(ctx, id, record); err != nil {
		return nil, err
	}
	r.logger.Info("registry.save.ok", "doc_id", id.String(), "items", len(record.Items))
	return r.refetch(ctx)
}

func (r *Registry) refetch(ctx context.Context) ([]entity.Document, error) {
	docs, err := r.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRefreshFailed, err)
	}
	return docs, nil
}

// applyLocal edits the cache after a confirmed delete. It counts as an
// applied refresh, so any list requested before the delete is dropped.
func (r *Registry) applyLocal(fn func([]entity.Document) []entity.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	r.applied = r.started
	r.docs = fn(r.docs)
}

// SelectLatest returns the last element of docs. The backend's order is
// taken as is.
func SelectLatest(docs []entity.Document) (entity.Document, bool) {
	if len(docs) == 0 {
		return entity.Document{}, false
	}
	return docs[len(docs)-1].Clone(), true
}

// FindIn looks up id in docs.
func FindIn(docs []entity.Document, id entity.DocumentID) (entity.Document, bool) {
	for _, d := range docs {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return entity.Document{}, false
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
