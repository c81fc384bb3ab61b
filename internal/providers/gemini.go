package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Uploader stores a generated image and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error)
}

type generateImagesFunc func(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)

// GeminiProvider runs full generations against the Gemini image models. Jobs
// run in process; their records live on a RecordBoard that serves both
// Status and Subscribe.
type GeminiProvider struct {
	modelID  string
	generate generateImagesFunc
	assets   Uploader
	board    *RecordBoard
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGeminiProvider(ctx context.Context, apiKey, modelID string, assets Uploader, logger *slog.Logger) (*GeminiProvider, error) {
	if apiKey == "" || modelID == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY and GEMINI_MODEL_ID must be set")
	}
	if assets == nil {
		return nil, fmt.Errorf("gemini provider needs asset storage for results")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return newGeminiProvider(modelID, client.Models.GenerateImages, assets, logger), nil
}

func newGeminiProvider(modelID string, generate generateImagesFunc, assets Uploader, logger *slog.Logger) *GeminiProvider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &GeminiProvider{
		modelID:  modelID,
		generate: generate,
		assets:   assets,
		board:    NewRecordBoard(),
		log:      logger.With("provider", "gemini", "model", modelID),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (p *GeminiProvider) Submit(_ context.Context, req models.JobRequest) (string, error) {
	if req.Kind != models.JobGenerate {
		return "", fmt.Errorf("gemini cannot run %s jobs: %w", req.Kind, faults.ErrValidation)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("a text prompt is required: %w", faults.ErrValidation)
	}
	if p.ctx.Err() != nil {
		return "", fmt.Errorf("gemini provider closed: %w", faults.ErrProvider)
	}

	jobID := uuid.NewString()
	p.board.Put(models.JobRecord{JobID: jobID, Status: models.JobQueued, Logs: []string{"Queued"}})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(jobID, req)
	}()
	return jobID, nil
}

func (p *GeminiProvider) run(jobID string, req models.JobRequest) {
	logs := []string{"Queued", "Generating with " + p.modelID}
	p.board.Put(models.JobRecord{JobID: jobID, Status: models.JobProcessing, Logs: logs})

	mimeType := outputMIMEType(req.OutputFormat)
	resp, err := p.generate(p.ctx, p.modelID, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: mimeType,
	})
	if err != nil {
		p.failJob(jobID, logs, fmt.Sprintf("generation failed: %v", err))
		return
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		p.failJob(jobID, logs, "no image returned, the prompt may have been filtered")
		return
	}
	img := resp.GeneratedImages[0].Image
	if img.MIMEType != "" {
		mimeType = img.MIMEType
	}

	logs = append(logs, "Uploading result")
	p.board.Put(models.JobRecord{JobID: jobID, Status: models.JobProcessing, Logs: logs})

	name := "generated/" + jobID + extensionFor(mimeType)
	url, err := p.assets.Upload(p.ctx, name, mimeType, bytes.NewReader(img.ImageBytes))
	if err != nil {
		p.failJob(jobID, logs, fmt.Sprintf("upload failed: %v", err))
		return
	}

	logs = append(logs, "Done")
	p.log.Info("job succeeded", "job_id", jobID, "url", url)
	p.board.Put(models.JobRecord{JobID: jobID, Status: models.JobSucceeded, ResultURL: url, Logs: logs})
}

func (p *GeminiProvider) failJob(jobID string, logs []string, msg string) {
	p.log.Warn("job failed", "job_id", jobID, "error", msg)
	p.board.Put(models.JobRecord{JobID: jobID, Status: models.JobFailed, Error: msg, Logs: logs})
}

func (p *GeminiProvider) Status(_ context.Context, jobID string) (models.JobRecord, error) {
	return p.board.Get(jobID)
}

func (p *GeminiProvider) Subscribe(_ context.Context, jobID string) (<-chan models.JobRecord, error) {
	return p.board.Watch(jobID)
}

// Close cancels running jobs and waits for them to record their outcome.
func (p *GeminiProvider) Close() {
	p.cancel()
	p.wg.Wait()
}

func outputMIMEType(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "image/png"
	default:
		// the Gemini image models encode png or jpeg only
		return "image/jpeg"
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}
