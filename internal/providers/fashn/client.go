// Package fashn wraps the FASHN virtual try-on API. Same task lifecycle as
// the 3D provider (submit, poll, download) but its own status vocabulary and
// wire format, so it stays a separate client behind the shared poll loop.
package fashn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
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
var ErrMissingAPIKey = errors.New("fashn: api key is required")

const ledgerComponent = "providers.fashn"

// Fitter is the contract the pipeline consumes.
type Fitter interface {
	TryOn(ctx context.Context, req FitRequest) (*domain.FitResult, error)
}

// FitRequest describes one try-on call: a garment image applied to one model
// variant. Category must already be in the provider's vocabulary
// (tops/bottoms/one-pieces).
type FitRequest struct {
	GarmentImageURL string
	Category        string
	Mode            string
	ModelVariant    string
}

// Options configures the FASHN client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Store      *storage.FileStore
	Ledger     ledger.Ledger
	Poll       taskpoll.Config
	MaxRetries int
}

// Client performs HTTP calls against the FASHN prediction API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	store      *storage.FileStore
	ledger     ledger.Ledger
	poll       taskpoll.Config
	maxRetries int
}

type runRequest struct {
	GarmentImageURL string `json:"garment_image_url"`
	Category        string `json:"category"`
	Mode            string `json:"mode,omitempty"`
	ModelID         string `json:"model_id"`
}

type runResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output struct {
		ImageURL string `json:"image_url"`
	} `json:"output"`
	Error string `json:"error"`
}

type predictionSnapshot struct {
	status   string
	imageURL string
	errMsg   string
}

func (s predictionSnapshot) terminal() bool {
	return s.status == "completed" || s.status == "failed" || s.status == "canceled"
}

// variantModelIDs maps the pipeline's model variants onto provider model
// identifiers.
var variantModelIDs = map[string]string{
	"female": "model-female-studio",
	"male":   "model-male-studio",
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
		baseURL = "https://api.fashn.ai/v1"
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
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		store:      opts.Store,
		ledger:     ldg,
		poll:       opts.Poll,
		maxRetries: opts.MaxRetries,
	}, nil
}

// TryOn submits a prediction, waits for a terminal state and downloads the
// output image on success. Remote failure and poll timeout are encoded in the
// result status; errors are reserved for validation and transport conditions.
func (c *Client) TryOn(ctx context.Context, req FitRequest) (*domain.FitResult, error) {
	if req.GarmentImageURL == "" {
		return nil, &domain.ValidationError{Field: "garment_image_url", Reason: "must not be empty"}
	}
	start := time.Now()

	predictionID, err := c.submit(ctx, req)
	if err != nil {
		c.reportTransient(ctx, err, nil)
		return nil, err
	}

	c.logger.Info().
		Str("prediction_id", predictionID).
		Str("model_variant", req.ModelVariant).
		Msg("fashn: prediction submitted")

	snapshot, timedOut, err := taskpoll.Wait(ctx, c.poll, func(ctx context.Context) (predictionSnapshot, bool, error) {
		snap, err := c.fetchStatus(ctx, predictionID)
		if err != nil {
			return predictionSnapshot{}, false, err
		}
		return snap, snap.terminal(), nil
	})
	if err != nil {
		c.reportTransient(ctx, err, map[string]string{"prediction_id": predictionID})
		return nil, err
	}

	result := &domain.FitResult{
		PredictionID: predictionID,
		ModelVariant: req.ModelVariant,
		Elapsed:      time.Since(start),
		Metadata:     map[string]string{"category": req.Category},
	}

	if timedOut {
		result.Status = domain.FitTimeout
		result.Metadata["last_status"] = snapshot.status
		c.logger.Warn().Str("prediction_id", predictionID).Msg("fashn: poll bound exhausted")
		return result, nil
	}

	if snapshot.status != "completed" {
		result.Status = domain.FitFailed
		if snapshot.errMsg != "" {
			result.Metadata["error"] = snapshot.errMsg
		} else {
			result.Metadata["error"] = "prediction ended in state " + snapshot.status
		}
		return result, nil
	}

	result.Status = domain.FitCompleted
	result.OutputURL = snapshot.imageURL
	if snapshot.imageURL != "" && c.store != nil {
		localPath, err := c.download(ctx, predictionID, snapshot.imageURL)
		if err != nil {
			c.reportTransient(ctx, err, map[string]string{"prediction_id": predictionID})
			return nil, err
		}
		result.LocalPath = localPath
	}
	result.Elapsed = time.Since(start)

	c.logger.Info().
		Str("prediction_id", predictionID).
		Str("model_variant", req.ModelVariant).
		Dur("elapsed", result.Elapsed).
		Msg("fashn: try-on complete")
	return result, nil
}

func (c *Client) submit(ctx context.Context, req FitRequest) (string, error) {
	modelID, ok := variantModelIDs[req.ModelVariant]
	if !ok {
		modelID = req.ModelVariant
	}
	mode := req.Mode
	if mode == "" {
		mode = "balanced"
	}
	payload := runRequest{
		GarmentImageURL: req.GarmentImageURL,
		Category:        req.Category,
		Mode:            mode,
		ModelID:         modelID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fashn: encode request: %w", err)
	}

	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		return httpReq, nil
	}, httpx.Options{Op: "fashn: submit prediction", MaxRetries: c.maxRetries})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded runResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("fashn: decode response: %w", err)
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("fashn: no prediction id returned (%s)", decoded.Error)
	}
	return decoded.ID, nil
}

func (c *Client) fetchStatus(ctx context.Context, predictionID string) (predictionSnapshot, error) {
	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/status/"+predictionID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}, httpx.Options{Op: "fashn: fetch status", MaxRetries: c.maxRetries})
	if err != nil {
		return predictionSnapshot{}, err
	}
	defer resp.Body.Close()

	var decoded statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return predictionSnapshot{}, fmt.Errorf("fashn: decode status: %w", err)
	}
	status := decoded.Status
	if status == "" {
		status = "processing"
	}
	return predictionSnapshot{
		status:   status,
		imageURL: decoded.Output.ImageURL,
		errMsg:   decoded.Error,
	}, nil
}

func (c *Client) download(ctx context.Context, predictionID, imageURL string) (string, error) {
	resp, err := httpx.Do(ctx, c.httpClient, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, imageURL, nil)
	}, httpx.Options{Op: "fashn: download output", MaxRetries: c.maxRetries})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	key := "fits/" + predictionID + ".png"
	if _, err := c.store.WriteFrom(ctx, key, resp.Body); err != nil {
		return "", err
	}
	return c.store.Path(key)
}

func (c *Client) reportTransient(ctx context.Context, err error, extra map[string]string) {
	var transient *domain.TransientError
	if !errors.As(err, &transient) {
		return
	}
	c.ledger.Record(ctx, ledger.Entry{
		Type:      "TryOnTransportError",
		Message:   err.Error(),
		Severity:  ledger.SeverityHigh,
		Component: ledgerComponent,
		Context:   extra,
		Err:       err,
	})
}

var _ Fitter = (*Client)(nil)
