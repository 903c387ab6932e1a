package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
)

// Config for the backend client.
type Config struct {
	BaseURL      string        // default http://localhost:8000
	Timeout      time.Duration // http client timeout
	MaxIdleConns int
}

// Client talks to the extraction backend over its fixed HTTP contract.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	numeric map[entity.DocumentID]bool // id kinds as last received
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     60 * time.Second,
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger:  logger,
		numeric: map[entity.DocumentID]bool{},
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// FileURL returns the raw-file locator for a stored filename.
func (c *Client) FileURL(filename string) string {
	return c.cfg.BaseURL + "/file/" + url.PathEscape(filename)
}

// ListDocuments fetches every persisted document, in backend order.
func (c *Client) ListDocuments(ctx context.Context) ([]entity.Document, error) {
	raw, err := c.send(ctx, "list documents", http.MethodGet, c.cfg.BaseURL+"/documents", nil, "")
	if err != nil {
		return nil, err
	}
	if err := ValidateDocumentList(raw); err != nil {
		c.logger.Error("backend.documents.unexpected_structure", "error", err, "bytes", len(raw))
		return nil, &common.TransportError{Op: "list documents", Detail: "unexpected document structure", Err: err}
	}
	var docs []entity.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		c.logger.Error("backend.documents.decode_error", "error", err)
		return nil, &common.TransportError{Op: "list documents", Detail: "unexpected document structure", Err: err}
	}
	if docs == nil {
		docs = []entity.Document{}
	}
	var kinds []struct {
		ID entity.WireID `json:"id"`
	}
	if err := json.Unmarshal(raw, &kinds); err == nil {
		ids := make([]entity.WireID, 0, len(kinds))
		for _, k := range kinds {
			ids = append(ids, k.ID)
		}
		c.rememberKinds(ids)
	}
	return docs, nil
}

// Upload sends all files as one multipart batch under the "files" field.
func (c *Client) Upload(ctx context.Context, files []entity.UploadedFile) (entity.BatchResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(f.Name)))
		ct := f.MimeType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return entity.BatchResult{}, fmt.Errorf("build multipart: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return entity.BatchResult{}, fmt.Errorf("build multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return entity.BatchResult{}, fmt.Errorf("build multipart: %w", err)
	}

	raw, err := c.send(ctx, "upload", http.MethodPost, c.cfg.BaseURL+"/upload", body.Bytes(), mw.FormDataContentType())
	if err != nil {
		return entity.BatchResult{}, err
	}
	var out entity.BatchResult
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("backend.upload.decode_error", "error", err)
		return entity.BatchResult{}, &common.TransportError{Op: "upload", Detail: "unexpected upload response", Err: err}
	}
	var kinds struct {
		DocIDs []entity.WireID `json:"doc_ids"`
	}
	if err := json.Unmarshal(raw, &kinds); err == nil {
		c.rememberKinds(kinds.DocIDs)
	}
	return out, nil
}

func (c *Client) rememberKinds(ids []entity.WireID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range ids {
		c.numeric[w.ID] = w.Numeric
	}
}

// wireID returns id in the JSON kind the backend last sent it in.
func (c *Client) wireID(id entity.DocumentID) entity.WireID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if numeric, ok := c.numeric[id]; ok {
		return entity.WireID{ID: id, Numeric: numeric}
	}
	return entity.NewWireID(id)
}

type saveRequest struct {
	DocID      entity.WireID           `json:"doc_id"`
	EditedData entity.StructuredRecord `json:"edited_data"`
}

// SaveEditedData persists the edited record for a document. The id is sent
// back as a JSON number or string, whichever the backend used for it.
func (c *Client) SaveEditedData(ctx context.Context, id entity.DocumentID, record entity.StructuredRecord) error {
	bs, err := json.Marshal(saveRequest{DocID: c.wireID(id), EditedData: record})
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = c.send(ctx, "save edited data", http.MethodPost, c.cfg.BaseURL+"/save-edited-data", bs, "application/json")
	return err
}

// DeleteDocument removes a document and its stored file.
func (c *Client) DeleteDocument(ctx context.Context, id entity.DocumentID) error {
	_, err := c.send(ctx, "delete document", http.MethodDelete, c.cfg.BaseURL+"/document/"+url.PathEscape(id.String()), nil, "")
	return err
}

// FetchFile downloads raw file bytes from a locator built by FileURL (or any absolute URL).
func (c *Client) FetchFile(ctx context.Context, locator string) ([]byte, error) {
	return c.send(ctx, "fetch file", http.MethodGet, locator, nil, "")
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
