// Package pipeline sequences the three stages that turn a catalog item into
// a published listing: 3D model generation, virtual try-on, media upload.
// Stage failures are isolated per item; the batch entrypoints never fail
// because of a single item.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"asset-pipeline/internal/domain"
	"asset-pipeline/internal/infra"
	"asset-pipeline/internal/ledger"
	"asset-pipeline/internal/media"
	"asset-pipeline/internal/providers/fashn"
	"asset-pipeline/internal/providers/tripo"
)

const (
	ledgerComponent = "pipeline"

	// DefaultMaxConcurrentItems caps simultaneous item pipelines in a batch.
	DefaultMaxConcurrentItems = 5
	// DefaultUploadConcurrency caps simultaneous uploads within one item.
	DefaultUploadConcurrency = 3
)

// Flags toggles individual stages for one processing call. A disabled stage
// is skipped, never marked failed.
type Flags struct {
	Generate3D  bool `json:"generate_3d"`
	GenerateFit bool `json:"generate_fit"`
	Upload      bool `json:"upload"`
}

// BatchRequest describes one batch run.
type BatchRequest struct {
	Items         []domain.ItemDescription
	Flags         Flags
	Parallel      bool
	MaxConcurrent int64
}

// Options wires the orchestrator. Clients are injected so tests can use
// doubles; there is no package-level shared state.
type Options struct {
	Generator tripo.Generator
	Fitter    fashn.Fitter
	Uploader  media.Uploader
	Ledger    ledger.Ledger
	Logger    *infra.Logger

	FitVariants       []string
	FitMode           string
	UploadConcurrency int64
}

// Pipeline orchestrates the generate → fit → upload sequence.
type Pipeline struct {
	generator tripo.Generator
	fitter    fashn.Fitter
	uploader  media.Uploader
	ledger    ledger.Ledger
	logger    *infra.Logger

	fitVariants       []string
	fitMode           string
	uploadConcurrency int64
}

// New constructs a Pipeline from injected collaborators.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	ldg := opts.Ledger
	if ldg == nil {
		ldg = ledger.NewZerolog(logger)
	}
	variants := opts.FitVariants
	if len(variants) == 0 {
		variants = []string{"female", "male"}
	}
	uploadConcurrency := opts.UploadConcurrency
	if uploadConcurrency <= 0 {
		uploadConcurrency = DefaultUploadConcurrency
	}
	return &Pipeline{
		generator:         opts.Generator,
		fitter:            opts.Fitter,
		uploader:          opts.Uploader,
		ledger:            ldg,
		logger:            logger,
		fitVariants:       variants,
		fitMode:           opts.FitMode,
		uploadConcurrency: uploadConcurrency,
	}
}

// ProcessItem runs the enabled stages for one item, in order. It always
// returns a result, never an error: stage failures accumulate as error
// strings, and anything unexpected is recovered into a failed result so a
// batch sibling is never affected.
func (p *Pipeline) ProcessItem(ctx context.Context, item domain.ItemDescription, flags Flags) (result *domain.PipelineResult) {
	start := time.Now()
	result = &domain.PipelineResult{
		ItemID:    item.ItemID,
		ItemName:  item.Name,
		Stage:     domain.StagePending,
		StartedAt: start.UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			result.Stage = domain.StageFailed
			result.Errors = append(result.Errors, fmt.Sprintf("pipeline panic: %v", r))
			p.ledger.Record(ctx, ledger.Entry{
				Type:      "PipelineProcessingError",
				Message:   fmt.Sprintf("panic while processing item %s: %v", item.ItemID, r),
				Severity:  ledger.SeverityHigh,
				Component: ledgerComponent,
				Context:   map[string]string{"item_id": item.ItemID, "item_name": item.Name},
			})
		}
		if result.Stage != domain.StageFailed {
			result.Stage = domain.StageCompleted
		}
		result.Success = result.Stage == domain.StageCompleted && len(result.Errors) == 0
		result.CompletedAt = time.Now().UTC()
		result.Elapsed = time.Since(start)

		p.logger.Info().
			Str("item_id", item.ItemID).
			Str("stage", string(result.Stage)).
			Bool("success", result.Success).
			Bool("has_3d_model", result.Has3DModel()).
			Int("fit_count", result.FitCount()).
			Int("upload_count", result.UploadCount()).
			Dur("elapsed", result.Elapsed).
			Msg("pipeline: item processed")
	}()

	if err := item.Validate(); err != nil {
		result.Stage = domain.StageFailed
		result.Errors = append(result.Errors, err.Error())
		p.ledger.Record(ctx, ledger.Entry{
			Type:      "PipelineValidationError",
			Message:   fmt.Sprintf("invalid item %s: %v", item.ItemID, err),
			Severity:  ledger.SeverityHigh,
			Component: ledgerComponent,
			Context:   map[string]string{"item_id": item.ItemID},
			Err:       err,
		})
		return result
	}

	p.logger.Info().Str("item_id", item.ItemID).Str("name", item.Name).Msg("pipeline: processing item")

	// A stage whose client was never configured behaves like a disabled
	// stage: skipped, not failed.
	if flags.Generate3D && p.generator != nil {
		result.Stage = domain.StageGenerating3D
		result.Generation = p.generate(ctx, item)
		if !result.Generation.Status.Succeeded() {
			result.Errors = append(result.Errors, "3d generation failed: "+generationFailure(result.Generation))
		}
	}

	if flags.GenerateFit && p.fitter != nil {
		result.Stage = domain.StageFitting
		result.Fits = p.fit(ctx, item, result.Generation)
		failed := 0
		for _, f := range result.Fits {
			if !f.Status.Succeeded() {
				failed++
			}
		}
		if failed > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("%d try-on generation(s) failed", failed))
		}
	}

	if flags.Upload && p.uploader != nil {
		result.Stage = domain.StageUploading
		files := uploadFiles(item, result)
		if len(files) == 0 {
			p.logger.Debug().Str("item_id", item.ItemID).Msg("pipeline: no local artifacts to upload")
		} else {
			for _, outcome := range p.uploader.BatchUpload(ctx, files, p.uploadConcurrency) {
				if outcome.Err != nil {
					result.Errors = append(result.Errors,
						fmt.Sprintf("upload failed for %s: %v", filepath.Base(outcome.Input.FilePath), outcome.Err))
					continue
				}
				result.Uploads = append(result.Uploads, *outcome.Result)
			}
		}
	}

	return result
}

// generate runs the 3D stage. The submission mode is decided exactly once,
// before submission: a reference image wins over a synthesized prompt.
// Client errors become a failed result so the item can continue to the next
// enabled stage.
func (p *Pipeline) generate(ctx context.Context, item domain.ItemDescription) *domain.GenerationResult {
	req := tripo.GenerateRequest{
		ImageURL:  item.ReferenceImageURL,
		ImagePath: item.ReferenceImagePath,
	}
	if !item.HasReferenceImage() {
		req.Prompt = item.PromptFor3D()
	}

	gen, err := p.generator.Generate(ctx, req)
	if err != nil {
		p.ledger.Record(ctx, ledger.Entry{
			Type:      "3DGenerationError",
			Message:   fmt.Sprintf("3d generation failed for %s: %v", item.ItemID, err),
			Severity:  ledger.SeverityMedium,
			Component: ledgerComponent,
			Context:   map[string]string{"item_id": item.ItemID},
			Err:       err,
		})
		return &domain.GenerationResult{
			Status:   domain.GenerationFailed,
			Metadata: map[string]string{"error": err.Error()},
		}
	}
	return gen
}

// fit runs one try-on per configured model variant, concurrently. When no
// garment image can be determined the stage is skipped with zero errors:
// absence of an image is not a failure.
func (p *Pipeline) fit(ctx context.Context, item domain.ItemDescription, gen *domain.GenerationResult) []domain.FitResult {
	garmentURL := item.ReferenceImageURL
	if garmentURL == "" && gen != nil {
		garmentURL = gen.ThumbnailURL
	}
	if garmentURL == "" {
		p.logger.Debug().Str("item_id", item.ItemID).Msg("pipeline: no garment image available, skipping fit stage")
		return nil
	}

	category := FitCategory(item.Category)
	results := make([]domain.FitResult, len(p.fitVariants))

	var wg sync.WaitGroup
	for i, variant := range p.fitVariants {
		wg.Add(1)
		go func(i int, variant string) {
			defer wg.Done()
			fit, err := p.fitter.TryOn(ctx, fashn.FitRequest{
				GarmentImageURL: garmentURL,
				Category:        category,
				Mode:            p.fitMode,
				ModelVariant:    variant,
			})
			if err != nil {
				p.ledger.Record(ctx, ledger.Entry{
					Type:      "TryOnGenerationError",
					Message:   fmt.Sprintf("try-on failed for %s (%s): %v", item.ItemID, variant, err),
					Severity:  ledger.SeverityMedium,
					Component: ledgerComponent,
					Context:   map[string]string{"item_id": item.ItemID, "model_variant": variant},
					Err:       err,
				})
				results[i] = domain.FitResult{
					Status:       domain.FitFailed,
					ModelVariant: variant,
					Metadata:     map[string]string{"error": err.Error()},
				}
				return
			}
			results[i] = *fit
		}(i, variant)
	}
	wg.Wait()
	return results
}

// uploadFiles collects the artifacts that exist locally. Remote-only results
// are not upload candidates.
func uploadFiles(item domain.ItemDescription, result *domain.PipelineResult) []media.UploadRequest {
	var files []media.UploadRequest
	if result.Generation != nil && result.Generation.LocalPath != "" {
		files = append(files, media.UploadRequest{
			FilePath:    result.Generation.LocalPath,
			Title:       item.Name + " - 3D Model",
			AltText:     fmt.Sprintf("3D model of %s from the %s collection", item.Name, collectionLabel(item.Collection)),
			Description: item.Description,
		})
	}
	for _, fit := range result.Fits {
		if !fit.Status.Succeeded() || fit.LocalPath == "" {
			continue
		}
		files = append(files, media.UploadRequest{
			FilePath: fit.LocalPath,
			Title:    fmt.Sprintf("%s - Virtual Try-On (%s)", item.Name, titleCase(fit.ModelVariant)),
			AltText:  fmt.Sprintf("Virtual try-on of %s on a %s model", item.Name, fit.ModelVariant),
		})
	}
	return files
}

// ProcessBatch fans a batch of items out across ProcessItem, either strictly
// in order or bounded-parallel. Successful+Failed always equals TotalItems:
// every input item produces exactly one result.
func (p *Pipeline) ProcessBatch(ctx context.Context, req BatchRequest) *domain.BatchResult {
	start := time.Now()
	batch := &domain.BatchResult{
		BatchID:    uuid.NewString()[:8],
		TotalItems: len(req.Items),
		StartedAt:  start.UTC(),
		Results:    make([]domain.PipelineResult, len(req.Items)),
	}

	p.logger.Info().
		Str("batch_id", batch.BatchID).
		Int("total_items", batch.TotalItems).
		Bool("parallel", req.Parallel).
		Msg("pipeline: batch started")

	if req.Parallel {
		maxConcurrent := req.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = DefaultMaxConcurrentItems
		}
		sem := semaphore.NewWeighted(maxConcurrent)
		var wg sync.WaitGroup
		for i, item := range req.Items {
			if err := sem.Acquire(ctx, 1); err != nil {
				batch.Results[i] = *cancelledResult(item, err)
				continue
			}
			wg.Add(1)
			go func(i int, item domain.ItemDescription) {
				defer wg.Done()
				defer sem.Release(1)
				batch.Results[i] = *p.ProcessItem(ctx, item, req.Flags)
			}(i, item)
		}
		wg.Wait()
	} else {
		for i, item := range req.Items {
			batch.Results[i] = *p.ProcessItem(ctx, item, req.Flags)
		}
	}

	for i := range batch.Results {
		if batch.Results[i].Success {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}
	batch.CompletedAt = time.Now().UTC()
	batch.Elapsed = time.Since(start)

	p.logger.Info().
		Str("batch_id", batch.BatchID).
		Int("successful", batch.Successful).
		Int("failed", batch.Failed).
		Float64("success_rate", batch.SuccessRate()).
		Dur("elapsed", batch.Elapsed).
		Msg("pipeline: batch completed")
	return batch
}

// FitCategory maps a catalog category onto the fitting provider's vocabulary.
// Categories absent from the table default to "tops".
func FitCategory(c domain.Category) string {
	switch c {
	case domain.CategoryHoodie, domain.CategoryTShirt, domain.CategoryJacket,
		domain.CategorySweater, domain.CategoryTankTop, domain.CategoryCoat:
		return "tops"
	case domain.CategoryPants, domain.CategoryShorts, domain.CategorySkirt:
		return "bottoms"
	case domain.CategoryDress:
		return "one-pieces"
	default:
		return "tops"
	}
}

func generationFailure(gen *domain.GenerationResult) string {
	if gen == nil {
		return "no result"
	}
	if msg, ok := gen.Metadata["error"]; ok && msg != "" {
		return msg
	}
	return string(gen.Status)
}

func collectionLabel(c domain.Collection) string {
	words := strings.Split(strings.ReplaceAll(string(c), "_", " "), " ")
	for i, w := range words {
		words[i] = titleCase(w)
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func cancelledResult(item domain.ItemDescription, err error) *domain.PipelineResult {
	now := time.Now().UTC()
	return &domain.PipelineResult{
		ItemID:      item.ItemID,
		ItemName:    item.Name,
		Stage:       domain.StageFailed,
		Errors:      []string{err.Error()},
		StartedAt:   now,
		CompletedAt: now,
	}
}
