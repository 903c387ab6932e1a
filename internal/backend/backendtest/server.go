// Package backendtest runs an in-memory extraction backend that speaks the
// same HTTP contract as the real one. It exists for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/shipment-docs/constants"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
)

// StoredFile is a file the fake backend received.
type StoredFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	nextID  int
	docs    []entity.Document
	files   map[string]StoredFile
	batches [][]StoredFile
	saves   []SaveCall
	deletes []entity.DocumentID

	// Extract builds the extraction result for one uploaded file.
	Extract func(f StoredFile) entity.StructuredRecord
	// set by FailWith
	fail         int
	failDetail   string
	listFail     int
	listDetail   string
	beforeList   func()
	beforeUpload func()
}

// SaveCall records one POST /save-edited-data.
type SaveCall struct {
	DocID  entity.DocumentID
	Record entity.StructuredRecord
}

// New starts a fake backend. Close it with Close.
func New() *Server {
	s := &Server{
		nextID: 1,
		files:  map[string]StoredFile{},
		Extract: func(f StoredFile) entity.StructuredRecord {
			return entity.StructuredRecord{ShipmentID: entity.Scalar("SHP-" + f.Name)}
		},
	}
	r := chi.NewRouter()
	r.Use(s.failures)
	r.Get("/documents", s.handleList)
	r.Post("/upload", s.handleUpload)
	r.Post("/save-edited-data", s.handleSave)
	r.Delete("/document/{id}", s.handleDelete)
	r.Get("/file/{filename}", s.handleFile)
	s.Server = httptest.NewServer(r)
	return s
}

// FailWith makes every following request answer with status and a JSON
// {"detail": detail} body (no body when detail is empty). Status 0 turns
// failures off.
func (s *Server) FailWith(status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = status
	s.failDetail = detail
}

// FailListWith makes only GET /documents fail, the way FailWith does for
// every route. Status 0 turns it off.
func (s *Server) FailListWith(status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listFail = status
	s.listDetail = detail
}

// OnList runs fn before each GET /documents is served.
func (s *Server) OnList(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeList = fn
}

// OnUpload runs fn before each POST /upload is served; tests use it to hold
// a request in flight.
func (s *Server) OnUpload(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeUpload = fn
}

// Seed adds a document (and its raw file) as if it had been uploaded earlier.
func (s *Server) Seed(filename string, content []byte, extracted entity.StructuredRecord) entity.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(StoredFile{Name: filename, ContentType: constants.DeclaredTypeForStored(filename), Content: content}, extracted)
}

func (s *Server) addLocked(f StoredFile, extracted entity.StructuredRecord) entity.Document {
	doc := entity.Document{
		ID:            entity.DocumentID(strconv.Itoa(s.nextID)),
		Filename:      f.Name,
		UploadTime:    entity.Timestamp{Time: time.Date(2025, 1, 1, 12, 0, s.nextID, 0, time.UTC)},
		ExtractedData: extracted,
	}
	s.nextID++
	s.docs = append(s.docs, doc)
	s.files[f.Name] = f
	return doc
}

// Documents returns a copy of the stored documents.
func (s *Server) Documents() []entity.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Clone()
	}
	return out
}

// Batches returns the files of every upload request received, in order.
func (s *Server) Batches() [][]StoredFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]StoredFile(nil), s.batches...)
}

// Saves returns every save request received.
func (s *Server) Saves() []SaveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SaveCall(nil), s.saves...)
}

// Deletes returns the ids of every delete request received.
func (s *Server) Deletes() []entity.DocumentID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.DocumentID(nil), s.deletes...)
}

func (s *Server) failures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, detail := s.fail, s.failDetail
		if status == 0 && r.Method == http.MethodGet && r.URL.Path == "/documents" {
			status, detail = s.listFail, s.listDetail
		}
		s.mu.Unlock()
		if status != 0 {
			if detail == "" {
				w.WriteHeader(status)
				return
			}
			writeJSON(w, status, map[string]string{"detail": detail})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	hook := s.beforeList
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	writeJSON(w, http.StatusOK, s.Documents())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hook := s.beforeUpload
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "No files uploaded"})
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "No files uploaded"})
		return
	}
	var batch []StoredFile
	for _, fh := range headers {
		if constants.MimeFromName(fh.Filename) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": fmt.Sprintf("Invalid file type: %s", fh.Filename)})
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
			return
		}
		batch = append(batch, StoredFile{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Content: content})
	}

	s.mu.Lock()
	s.batches = append(s.batches, batch)
	result := entity.BatchResult{ExtractedData: map[string]entity.StructuredRecord{}}
	for _, f := range batch {
		rec := s.Extract(f)
		doc := s.addLocked(f, rec)
		result.DocIDs = append(result.DocIDs, doc.ID)
		result.ExtractedData[f.Name] = rec
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocID      entity.DocumentID        `json:"doc_id"`
		EditedData *entity.StructuredRecord `json:"edited_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocID.IsZero() || req.EditedData == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "doc_id and edited_data required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == req.DocID {
			rec := req.EditedData.Clone()
			s.docs[i].EditedData = &rec
			s.saves = append(s.saves, SaveCall{DocID: req.DocID, Record: rec.Clone()})
			writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Data saved!"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Document not found"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid id"})
		return
	}
	id := entity.DocumentID(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			delete(s.files, s.docs[i].Filename)
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			s.deletes = append(s.deletes, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Document not found"})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid filename"})
		return
	}
	s.mu.Lock()
	f, ok := s.files[name]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "File not found"})
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	_, _ = w.Write(f.Content)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
