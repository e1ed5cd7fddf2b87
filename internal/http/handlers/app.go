package handlers

import (
	"encoding/json"
	"net/http"

	"asset-pipeline/internal/infra"
	"asset-pipeline/internal/pipeline"
)

// App carries the handler dependencies.
type App struct {
	Pipeline *pipeline.Pipeline
	Logger   *infra.Logger
}

// NewApp builds the handler container.
func NewApp(p *pipeline.Pipeline, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &App{Pipeline: p, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
