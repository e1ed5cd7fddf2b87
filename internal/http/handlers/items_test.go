package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"asset-pipeline/internal/domain"
	"asset-pipeline/internal/pipeline"
)

// newTestApp wires a pipeline with no clients: every stage is skipped, so
// handler behavior can be tested without provider stubs.
func newTestApp() *App {
	return NewApp(pipeline.New(pipeline.Options{}), nil)
}

func validItemJSON() string {
	return `{
		"item_id": "hoodie-001",
		"name": "Black Rose Hoodie",
		"description": "Luxury black hoodie with embroidered rose pattern",
		"category": "hoodie",
		"collection": "black_rose",
		"color": "black",
		"price": 149.99,
		"sku": "SR-BR-H001"
	}`
}

func TestHealth(t *testing.T) {
	app := newTestApp()
	rec := httptest.NewRecorder()
	app.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProcessItemOK(t *testing.T) {
	app := newTestApp()
	body := `{"item": ` + validItemJSON() + `}`
	rec := httptest.NewRecorder()
	app.ProcessItem(rec, httptest.NewRequest(http.MethodPost, "/v1/items/process", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result domain.PipelineResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.ItemID != "hoodie-001" {
		t.Fatalf("item id = %q", result.ItemID)
	}
	if !result.Success {
		t.Fatalf("all-skipped pipeline should succeed, errors: %v", result.Errors)
	}
}

func TestProcessItemBadJSON(t *testing.T) {
	app := newTestApp()
	rec := httptest.NewRecorder()
	app.ProcessItem(rec, httptest.NewRequest(http.MethodPost, "/v1/items/process", strings.NewReader("{not json")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestProcessItemInvalidItem(t *testing.T) {
	app := newTestApp()
	body := `{"item": {"item_id": "x", "name": "", "description": "d", "price": 10, "sku": "s"}}`
	rec := httptest.NewRecorder()
	app.ProcessItem(rec, httptest.NewRequest(http.MethodPost, "/v1/items/process", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var errBody map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] == "" {
		t.Fatalf("error message missing")
	}
}

func TestProcessBatchOK(t *testing.T) {
	app := newTestApp()
	body := `{"items": [` + validItemJSON() + `], "parallel": false}`
	rec := httptest.NewRecorder()
	app.ProcessBatch(rec, httptest.NewRequest(http.MethodPost, "/v1/batches/process", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result domain.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.TotalItems != 1 || result.Successful != 1 {
		t.Fatalf("batch = %+v", result)
	}
}

func TestProcessBatchEmptyItems(t *testing.T) {
	app := newTestApp()
	rec := httptest.NewRecorder()
	app.ProcessBatch(rec, httptest.NewRequest(http.MethodPost, "/v1/batches/process", strings.NewReader(`{"items": []}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
