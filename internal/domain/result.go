package domain

import "time"

// GenerationStatus enumerates the 3D generation provider's task lifecycle.
type GenerationStatus string

const (
	GenerationQueued  GenerationStatus = "queued"
	GenerationRunning GenerationStatus = "running"
	GenerationSuccess GenerationStatus = "success"
	GenerationFailed  GenerationStatus = "failed"
	// GenerationTimeout means the poll bound was exhausted before the remote
	// task settled. Terminal locally; the remote task may still finish.
	GenerationTimeout GenerationStatus = "timeout"
)

// Terminal reports whether no further transition can occur.
func (s GenerationStatus) Terminal() bool {
	return s == GenerationSuccess || s == GenerationFailed || s == GenerationTimeout
}

// Succeeded reports terminal success.
func (s GenerationStatus) Succeeded() bool { return s == GenerationSuccess }

// FitStatus enumerates the fitting provider's task lifecycle. It is kept as a
// separate vocabulary from GenerationStatus because the two providers speak
// different state languages; the orchestrator only relies on Terminal and
// Succeeded.
type FitStatus string

const (
	FitProcessing FitStatus = "processing"
	FitCompleted  FitStatus = "completed"
	FitFailed     FitStatus = "failed"
	FitTimeout    FitStatus = "timeout"
)

// Terminal reports whether no further transition can occur.
func (s FitStatus) Terminal() bool {
	return s == FitCompleted || s == FitFailed || s == FitTimeout
}

// Succeeded reports terminal success.
func (s FitStatus) Succeeded() bool { return s == FitCompleted }

// GenerationResult is the outcome of one 3D model generation task.
type GenerationResult struct {
	TaskID       string            `json:"task_id"`
	Status       GenerationStatus  `json:"status"`
	ModelURL     string            `json:"model_url,omitempty"`
	LocalPath    string            `json:"local_path,omitempty"`
	ThumbnailURL string            `json:"thumbnail_url,omitempty"`
	Elapsed      time.Duration     `json:"elapsed"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// FitResult is the outcome of one virtual try-on task for one model variant.
type FitResult struct {
	PredictionID string            `json:"prediction_id"`
	Status       FitStatus         `json:"status"`
	OutputURL    string            `json:"output_url,omitempty"`
	LocalPath    string            `json:"local_path,omitempty"`
	ModelVariant string            `json:"model_variant"`
	Elapsed      time.Duration     `json:"elapsed"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// UploadResult describes one asset accepted by the media library.
type UploadResult struct {
	MediaID    int64     `json:"media_id"`
	SourceURL  string    `json:"source_url"`
	MIMEType   string    `json:"mime_type"`
	Title      string    `json:"title"`
	AltText    string    `json:"alt_text,omitempty"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Stage tracks where an item currently sits in the pipeline.
type Stage string

const (
	StagePending      Stage = "pending"
	StageGenerating3D Stage = "generating_3d"
	StageFitting      Stage = "fitting"
	StageUploading    Stage = "uploading"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// PipelineResult aggregates all stage outcomes for one item. The orchestrator
// owns it exclusively while the item is in flight; once Stage reaches
// StageCompleted or StageFailed it is no longer mutated.
type PipelineResult struct {
	ItemID      string            `json:"item_id"`
	ItemName    string            `json:"item_name"`
	Stage       Stage             `json:"stage"`
	Success     bool              `json:"success"`
	Generation  *GenerationResult `json:"generation,omitempty"`
	Fits        []FitResult       `json:"fits,omitempty"`
	Uploads     []UploadResult    `json:"uploads,omitempty"`
	Errors      []string          `json:"errors,omitempty"`
	Elapsed     time.Duration     `json:"elapsed"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`
}

// Has3DModel reports whether a model was generated successfully.
func (r *PipelineResult) Has3DModel() bool {
	return r.Generation != nil && r.Generation.Status.Succeeded()
}

// FitCount returns the number of completed try-on images.
func (r *PipelineResult) FitCount() int {
	n := 0
	for _, f := range r.Fits {
		if f.Status.Succeeded() {
			n++
		}
	}
	return n
}

// UploadCount returns the number of published assets.
func (r *PipelineResult) UploadCount() int { return len(r.Uploads) }

// BatchResult aggregates the per-item results of one batch run. Once complete,
// Successful+Failed == TotalItems.
type BatchResult struct {
	BatchID     string           `json:"batch_id"`
	TotalItems  int              `json:"total_items"`
	Successful  int              `json:"successful"`
	Failed      int              `json:"failed"`
	Results     []PipelineResult `json:"results"`
	Elapsed     time.Duration    `json:"elapsed"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at,omitempty"`
}

// SuccessRate returns the percentage of successful items, 0 for an empty batch.
func (b *BatchResult) SuccessRate() float64 {
	if b.TotalItems == 0 {
		return 0
	}
	return float64(b.Successful) / float64(b.TotalItems) * 100
}
