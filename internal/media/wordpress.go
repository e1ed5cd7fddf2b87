// Package media wraps the WordPress media library API. Uploads are
// synchronous binary posts (no task lifecycle); batches are bounded by a
// counting semaphore and isolate per-file failures.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"asset-pipeline/internal/domain"
	"asset-pipeline/internal/infra"
	"asset-pipeline/internal/ledger"
	"asset-pipeline/internal/providers/httpx"
)

// ErrMissingCredentials indicates the client was configured without a base
// URL, username or application password.
var ErrMissingCredentials = errors.New("media: base url, username and application password are required")

const (
	ledgerComponent = "media.wordpress"

	// DefaultBatchConcurrency caps simultaneous uploads in BatchUpload.
	DefaultBatchConcurrency = 3
)

// mimeTypes is the fixed extension table. The two 3D-model entries cover the
// generated artifacts; anything unknown falls back to octet-stream.
var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
}

const fallbackMIME = "application/octet-stream"

// Uploader is the contract the pipeline consumes.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*domain.UploadResult, error)
	BatchUpload(ctx context.Context, files []UploadRequest, maxConcurrent int64) []BatchItem
}

// UploadRequest describes one file to publish plus its descriptive metadata.
type UploadRequest struct {
	FilePath    string
	Title       string
	AltText     string
	Caption     string
	Description string
}

// BatchItem pairs one input with its outcome. BatchUpload returns exactly one
// item per input, in input order, so callers can correlate by index even when
// some uploads fail.
type BatchItem struct {
	Input  UploadRequest
	Result *domain.UploadResult
	Err    error
}

// Options configures the media client.
type Options struct {
	BaseURL     string
	Username    string
	AppPassword string
	HTTPClient  *http.Client
	Logger      *infra.Logger
	Ledger      ledger.Ledger
	MaxRetries  int
}

// Client performs HTTP calls against the WordPress REST media endpoint.
type Client struct {
	endpoint   string
	authHeader string
	httpClient *http.Client
	logger     *infra.Logger
	ledger     ledger.Ledger
	maxRetries int
}

type mediaResponse struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
	MimeType  string `json:"mime_type"`
	Title     struct {
		Raw      string `json:"raw"`
		Rendered string `json:"rendered"`
	} `json:"title"`
}

type mediaPatch struct {
	AltText     string `json:"alt_text,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewClient constructs a media client. Credentials are required up front so a
// misconfigured deployment fails at startup.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" || opts.Username == "" || opts.AppPassword == "" {
		return nil, ErrMissingCredentials
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	ldg := opts.Ledger
	if ldg == nil {
		ldg = ledger.NewZerolog(logger)
	}
	creds := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.AppPassword))
	return &Client{
		endpoint:   baseURL + "/wp-json/wp/v2/media",
		authHeader: "Basic " + creds,
		httpClient: httpClient,
		logger:     logger,
		ledger:     ldg,
		maxRetries: opts.MaxRetries,
	}, nil
}

// Upload publishes one local file. When descriptive metadata is supplied, a
// second best-effort patch call attaches it; a patch failure is logged but
// never fails the upload.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*domain.UploadResult, error) {
	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("media: read file: %w", err)
	}
	filename := filepath.Base(req.FilePath)
	mime := MIMETypeFor(filename)

	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", c.authHeader)
		httpReq.Header.Set("Content-Type", mime)
		httpReq.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		return httpReq, nil
	}, httpx.Options{Op: "media: upload " + filename, MaxRetries: c.maxRetries})
	if err != nil {
		c.reportTransient(ctx, err, filename)
		return nil, err
	}
	defer resp.Body.Close()

	var decoded mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("media: decode response: %w", err)
	}
	if decoded.ID == 0 {
		return nil, fmt.Errorf("media: upload accepted but no media id returned")
	}

	title := req.Title
	if title == "" {
		title = decoded.Title.Rendered
	}
	result := &domain.UploadResult{
		MediaID:    decoded.ID,
		SourceURL:  decoded.SourceURL,
		MIMEType:   decoded.MimeType,
		Title:      title,
		AltText:    req.AltText,
		FileSize:   int64(len(data)),
		UploadedAt: time.Now().UTC(),
	}
	if result.MIMEType == "" {
		result.MIMEType = mime
	}

	if req.AltText != "" || req.Caption != "" || req.Description != "" || req.Title != "" {
		if err := c.patchMetadata(ctx, decoded.ID, req); err != nil {
			c.logger.Warn().Err(err).Int64("media_id", decoded.ID).Msg("media: metadata update failed")
		}
	}

	c.logger.Info().
		Int64("media_id", result.MediaID).
		Str("source_url", result.SourceURL).
		Str("mime_type", result.MIMEType).
		Msg("media: uploaded")
	return result, nil
}

// UploadFromURL downloads the resource to a temporary file and delegates to
// Upload.
func (c *Client) UploadFromURL(ctx context.Context, sourceURL, title, altText string) (*domain.UploadResult, error) {
	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, sourceURL, nil)
	}, httpx.Options{Op: "media: download source", MaxRetries: c.maxRetries})
	if err != nil {
		c.reportTransient(ctx, err, sourceURL)
		return nil, err
	}
	defer resp.Body.Close()

	name := filepath.Base(strings.SplitN(sourceURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "download.bin"
	}
	tmp, err := os.CreateTemp("", "media-*-"+name)
	if err != nil {
		return nil, fmt.Errorf("media: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("media: buffer download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("media: close temp file: %w", err)
	}

	return c.Upload(ctx, UploadRequest{FilePath: tmp.Name(), Title: title, AltText: altText})
}

// BatchUpload runs uploads with at most maxConcurrent in flight. One file's
// failure never cancels or blocks the others; the returned slice always has
// one entry per input, in input order.
func (c *Client) BatchUpload(ctx context.Context, files []UploadRequest, maxConcurrent int64) []BatchItem {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultBatchConcurrency
	}
	sem := semaphore.NewWeighted(maxConcurrent)
	items := make([]BatchItem, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		items[i].Input = file
		if err := sem.Acquire(ctx, 1); err != nil {
			items[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, file UploadRequest) {
			defer wg.Done()
			defer sem.Release(1)
			result, err := c.Upload(ctx, file)
			if err != nil {
				c.logger.Error().Err(err).Str("file", file.FilePath).Msg("media: batch upload item failed")
				c.ledger.Record(ctx, ledger.Entry{
					Type:      "MediaUploadError",
					Message:   fmt.Sprintf("batch upload failed for %s: %v", filepath.Base(file.FilePath), err),
					Severity:  ledger.SeverityMedium,
					Component: ledgerComponent,
					Context:   map[string]string{"file": file.FilePath},
					Err:       err,
				})
				items[i].Err = err
				return
			}
			items[i].Result = result
		}(i, file)
	}
	wg.Wait()
	return items
}

func (c *Client) patchMetadata(ctx context.Context, mediaID int64, req UploadRequest) error {
	patch := map[string]any{}
	if req.Title != "" {
		patch["title"] = req.Title
	}
	if req.AltText != "" {
		patch["alt_text"] = req.AltText
	}
	if req.Caption != "" {
		patch["caption"] = req.Caption
	}
	if req.Description != "" {
		patch["description"] = req.Description
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("media: encode metadata: %w", err)
	}

	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/%d", c.endpoint, mediaID), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", c.authHeader)
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	}, httpx.Options{Op: "media: update metadata", MaxRetries: c.maxRetries})
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func (c *Client) reportTransient(ctx context.Context, err error, target string) {
	var transient *domain.TransientError
	if !errors.As(err, &transient) {
		return
	}
	c.ledger.Record(ctx, ledger.Entry{
		Type:      "MediaUploadTransportError",
		Message:   err.Error(),
		Severity:  ledger.SeverityHigh,
		Component: ledgerComponent,
		Context:   map[string]string{"target": target},
		Err:       err,
	})
}

// MIMETypeFor resolves a filename to its upload content type via the fixed
// extension table.
func MIMETypeFor(filename string) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mime
	}
	return fallbackMIME
}

var _ Uploader = (*Client)(nil)
