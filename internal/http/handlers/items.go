package handlers

import (
	"encoding/json"
	"net/http"

	"asset-pipeline/internal/domain"
	"asset-pipeline/internal/pipeline"
)

type processItemRequest struct {
	Item  domain.ItemDescription `json:"item"`
	Flags *pipeline.Flags        `json:"flags,omitempty"`
}

type processBatchRequest struct {
	Items         []domain.ItemDescription `json:"items"`
	Flags         *pipeline.Flags          `json:"flags,omitempty"`
	Parallel      *bool                    `json:"parallel,omitempty"`
	MaxConcurrent int64                    `json:"max_concurrent,omitempty"`
}

// defaultFlags enables every stage; callers opt out per request.
func defaultFlags() pipeline.Flags {
	return pipeline.Flags{Generate3D: true, GenerateFit: true, Upload: true}
}

// ProcessItem runs the pipeline synchronously for one item. Stage failures
// are reported inside the result payload, not as HTTP errors; only malformed
// requests yield a non-200 status.
func (a *App) ProcessItem(w http.ResponseWriter, r *http.Request) {
	var req processItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Item.Validate(); err != nil {
		a.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	flags := defaultFlags()
	if req.Flags != nil {
		flags = *req.Flags
	}

	result := a.Pipeline.ProcessItem(r.Context(), req.Item, flags)
	a.json(w, http.StatusOK, result)
}

// ProcessBatch runs the pipeline for a batch of items.
func (a *App) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req processBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		a.jsonError(w, http.StatusBadRequest, "items must not be empty")
		return
	}
	flags := defaultFlags()
	if req.Flags != nil {
		flags = *req.Flags
	}
	parallel := true
	if req.Parallel != nil {
		parallel = *req.Parallel
	}

	result := a.Pipeline.ProcessBatch(r.Context(), pipeline.BatchRequest{
		Items:         req.Items,
		Flags:         flags,
		Parallel:      parallel,
		MaxConcurrent: req.MaxConcurrent,
	})
	a.json(w, http.StatusOK, result)
}
