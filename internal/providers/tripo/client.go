// Package tripo wraps the Tripo3D task-based generation API: submit a
// request, obtain a task id, poll until terminal, download the artifact.
package tripo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"asset-pipeline/internal/domain"
	"asset-pipeline/internal/infra"
	"asset-pipeline/internal/ledger"
	"asset-pipeline/internal/providers/httpx"
	"asset-pipeline/internal/providers/taskpoll"
	"asset-pipeline/internal/storage"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("tripo: api key is required")

const ledgerComponent = "providers.tripo"

// Generator is the contract the pipeline consumes. Satisfied by *Client and
// by test doubles.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*domain.GenerationResult, error)
}

// GenerateRequest selects the submission mode: a reference image when one is
// present, otherwise a synthesized text prompt. The caller decides once,
// before submission.
type GenerateRequest struct {
	Prompt    string
	ImageURL  string
	ImagePath string
}

// Options configures the Tripo3D client.
type Options struct {
	APIKey       string
	BaseURL      string
	ModelVersion string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	Store        *storage.FileStore
	Ledger       ledger.Ledger
	Poll         taskpoll.Config
	MaxRetries   int
}

// Client performs HTTP calls against the Tripo3D task API.
type Client struct {
	apiKey       string
	baseURL      string
	modelVersion string
	httpClient   *http.Client
	logger       *infra.Logger
	store        *storage.FileStore
	ledger       ledger.Ledger
	poll         taskpoll.Config
	maxRetries   int
}

type taskRequest struct {
	Type         string    `json:"type"`
	Prompt       string    `json:"prompt,omitempty"`
	File         *taskFile `json:"file,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
}

type taskFile struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	FileToken string `json:"file_token,omitempty"`
}

type taskCreateResponse struct {
	Code int `json:"code"`
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
	Message string `json:"message"`
}

type uploadGrantResponse struct {
	Code int `json:"code"`
	Data struct {
		ImageToken string `json:"image_token"`
		UploadURL  string `json:"upload_url"`
	} `json:"data"`
	Message string `json:"message"`
}

type taskStatusResponse struct {
	Code int `json:"code"`
	Data struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Output   struct {
			Model struct {
				URL string `json:"url"`
			} `json:"model"`
			RenderedImage struct {
				URL string `json:"url"`
			} `json:"rendered_image"`
		} `json:"output"`
		Error string `json:"error"`
	} `json:"data"`
}

// taskSnapshot is one observed remote task state.
type taskSnapshot struct {
	status       string
	progress     int
	modelURL     string
	thumbnailURL string
	errMessage   string
}

func (s taskSnapshot) terminal() bool {
	switch s.status {
	case "success", "failed", "cancelled", "banned":
		return true
	}
	return false
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.tripo3d.ai/v2/openapi"
	}
	modelVersion := strings.TrimSpace(opts.ModelVersion)
	if modelVersion == "" {
		modelVersion = "v2.0-20240919"
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	ldg := opts.Ledger
	if ldg == nil {
		ldg = ledger.NewZerolog(logger)
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		modelVersion: modelVersion,
		httpClient:   httpClient,
		logger:       logger,
		store:        opts.Store,
		ledger:       ldg,
		poll:         opts.Poll,
		maxRetries:   opts.MaxRetries,
	}, nil
}

// Generate submits a generation task, waits for a terminal state and, on
// success, downloads the model artifact. A failed or timed-out remote task is
// reported through the result status; errors are reserved for validation and
// transport conditions.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*domain.GenerationResult, error) {
	start := time.Now()

	taskID, err := c.submit(ctx, req)
	if err != nil {
		c.reportTransient(ctx, "3DGenerationTransportError", err, nil)
		return nil, err
	}

	c.logger.Info().Str("task_id", taskID).Msg("tripo: task submitted")

	snapshot, timedOut, err := taskpoll.Wait(ctx, c.poll, func(ctx context.Context) (taskSnapshot, bool, error) {
		snap, err := c.fetchTask(ctx, taskID)
		if err != nil {
			return taskSnapshot{}, false, err
		}
		return snap, snap.terminal(), nil
	})
	if err != nil {
		c.reportTransient(ctx, "3DGenerationTransportError", err, map[string]string{"task_id": taskID})
		return nil, err
	}

	result := &domain.GenerationResult{
		TaskID:   taskID,
		Elapsed:  time.Since(start),
		Metadata: map[string]string{},
	}

	if timedOut {
		result.Status = domain.GenerationTimeout
		result.Metadata["last_status"] = snapshot.status
		c.logger.Warn().Str("task_id", taskID).Str("last_status", snapshot.status).Msg("tripo: poll bound exhausted")
		return result, nil
	}

	switch snapshot.status {
	case "success":
		result.Status = domain.GenerationSuccess
		result.ModelURL = snapshot.modelURL
		result.ThumbnailURL = snapshot.thumbnailURL
	default:
		result.Status = domain.GenerationFailed
		if snapshot.errMessage != "" {
			result.Metadata["error"] = snapshot.errMessage
		} else {
			result.Metadata["error"] = "task ended in state " + snapshot.status
		}
		return result, nil
	}

	if result.ModelURL != "" {
		localPath, err := c.download(ctx, taskID, result.ModelURL)
		if err != nil {
			c.reportTransient(ctx, "3DGenerationTransportError", err, map[string]string{"task_id": taskID})
			return nil, err
		}
		result.LocalPath = localPath
	}
	result.Elapsed = time.Since(start)

	c.logger.Info().
		Str("task_id", taskID).
		Str("local_path", result.LocalPath).
		Dur("elapsed", result.Elapsed).
		Msg("tripo: generation complete")
	return result, nil
}

func (c *Client) submit(ctx context.Context, req GenerateRequest) (string, error) {
	payload := taskRequest{ModelVersion: c.modelVersion}
	switch {
	case req.ImageURL != "":
		payload.Type = "image_to_model"
		payload.File = &taskFile{Type: imageType(req.ImageURL), URL: req.ImageURL}
	case req.ImagePath != "":
		token, err := c.uploadImage(ctx, req.ImagePath)
		if err != nil {
			return "", err
		}
		payload.Type = "image_to_model"
		payload.File = &taskFile{Type: imageType(req.ImagePath), FileToken: token}
	case strings.TrimSpace(req.Prompt) != "":
		payload.Type = "text_to_model"
		payload.Prompt = req.Prompt
	default:
		return "", &domain.ValidationError{Field: "request", Reason: "either a prompt or a reference image is required"}
	}

	var decoded taskCreateResponse
	if err := c.postJSON(ctx, "/task", payload, &decoded, "tripo: submit task"); err != nil {
		return "", err
	}
	if decoded.Data.TaskID == "" {
		return "", fmt.Errorf("tripo: no task id returned (%s)", decoded.Message)
	}
	return decoded.Data.TaskID, nil
}

// uploadImage performs the two-step local-file submission: obtain an upload
// grant, then PUT the bytes to the signed URL. Returns the file token used in
// the task payload.
func (c *Client) uploadImage(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("tripo: read reference image: %w", err)
	}

	var grant uploadGrantResponse
	if err := c.postJSON(ctx, "/upload", map[string]string{"format": imageType(path)}, &grant, "tripo: request upload grant"); err != nil {
		return "", err
	}
	if grant.Data.ImageToken == "" || grant.Data.UploadURL == "" {
		return "", fmt.Errorf("tripo: incomplete upload grant (%s)", grant.Message)
	}

	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPut, grant.Data.UploadURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "image/"+imageType(path))
		return req, nil
	}, httpx.Options{Op: "tripo: upload reference image", MaxRetries: c.maxRetries})
	if err != nil {
		return "", err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return grant.Data.ImageToken, nil
}

func (c *Client) fetchTask(ctx context.Context, taskID string) (taskSnapshot, error) {
	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/task/"+taskID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}, httpx.Options{Op: "tripo: fetch task", MaxRetries: c.maxRetries})
	if err != nil {
		return taskSnapshot{}, err
	}
	defer resp.Body.Close()

	var decoded taskStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return taskSnapshot{}, fmt.Errorf("tripo: decode task status: %w", err)
	}
	status := decoded.Data.Status
	if status == "" {
		status = "queued"
	}
	return taskSnapshot{
		status:       status,
		progress:     decoded.Data.Progress,
		modelURL:     decoded.Data.Output.Model.URL,
		thumbnailURL: decoded.Data.Output.RenderedImage.URL,
		errMessage:   decoded.Data.Error,
	}, nil
}

// download fetches the model artifact into the store under a path derived
// from the task id, which is unique across concurrent tasks.
func (c *Client) download(ctx context.Context, taskID, modelURL string) (string, error) {
	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, modelURL, nil)
	}, httpx.Options{Op: "tripo: download model", MaxRetries: c.maxRetries})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	key := "models/" + taskID + modelExtension(modelURL)
	if _, err := c.store.WriteFrom(ctx, key, resp.Body); err != nil {
		return "", err
	}
	return c.store.Path(key)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any, op string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}, httpx.Options{Op: op, MaxRetries: c.maxRetries})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// reportTransient records exhausted-retry transport failures to the error
// ledger. Other error kinds surface to the caller without a ledger entry.
func (c *Client) reportTransient(ctx context.Context, errType string, err error, extra map[string]string) {
	var transient *domain.TransientError
	if !errors.As(err, &transient) {
		return
	}
	c.ledger.Record(ctx, ledger.Entry{
		Type:      errType,
		Message:   err.Error(),
		Severity:  ledger.SeverityHigh,
		Component: ledgerComponent,
		Context:   extra,
		Err:       err,
	})
}

func imageType(ref string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(ref), "."))
	switch ext {
	case "jpg", "jpeg":
		return "jpg"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}

func modelExtension(modelURL string) string {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(modelURL, "?", 2)[0]))
	switch ext {
	case ".glb", ".gltf", ".fbx", ".obj", ".usdz":
		return ext
	default:
		return ".glb"
	}
}

var _ Generator = (*Client)(nil)
