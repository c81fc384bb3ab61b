// Package generation drives provider jobs from submission to a terminal
// status and mirrors their progress onto placeholder shapes in the store.
//
// A job is tracked by two producers, a fixed-interval poll and a push
// subscription, feeding one consumer. The first terminal record wins and
// cancels the other producer. The consumer only ever refers to the target
// shape by id, so a shape deleted mid-job simply makes its next update a no-op.
package generation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"canvas-studio-backend/internal/canvas/notice"
	"canvas-studio-backend/internal/canvas/store"
	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"
	"canvas-studio-backend/internal/retry"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollAttempts = 60
	// DefaultPlaceholderSize is used when no source shape gives a size.
	DefaultPlaceholderSize = 512.0
	placementGap           = 40.0
	// ErrorTint is the color of a shape whose job failed.
	ErrorTint = "#ff4d4f"
)

type Config struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	SubmitRetry     retry.Policy
	Exclusivity     ExclusivityPolicy
	Logger          *slog.Logger
	Now             func() time.Time
	Rand            *rand.Rand
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    DefaultPollInterval,
		MaxPollAttempts: DefaultMaxPollAttempts,
		SubmitRetry: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Retryable:   faults.IsConnectivity,
		},
		Exclusivity: DefaultExclusivity(),
	}
}

// GenerateRequest asks for a full generation. Every field is optional.
type GenerateRequest struct {
	// SourceShapeID anchors placement and supplies an init image.
	SourceShapeID string `json:"sourceShapeId,omitempty"`
	// TargetShapeID regenerates into an existing shape instead of a new placeholder.
	TargetShapeID string `json:"targetShapeId,omitempty"`
	// Prompt overrides the active text prompt sticky.
	Prompt   string        `json:"prompt,omitempty"`
	Position *models.Point `json:"position,omitempty"`
}

type Orchestrator struct {
	projectID  string
	store      *store.Store
	provider   Provider
	subscriber Subscriber
	slot       *notice.Slot
	cfg        Config
	log        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    map[string]*tracked // by job id
	byShape map[string]*tracked // by target shape id, includes jobs still submitting
	wg      sync.WaitGroup
}

type tracked struct {
	job    models.GenerationJob
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an orchestrator bound to one document store. subscriber may be
// nil, in which case jobs are tracked by polling alone.
func New(projectID string, st *store.Store, provider Provider, subscriber Subscriber, slot *notice.Slot, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = def.MaxPollAttempts
	}
	if cfg.SubmitRetry.MaxAttempts == 0 {
		cfg.SubmitRetry = def.SubmitRetry
	}
	if cfg.Exclusivity == nil {
		cfg.Exclusivity = def.Exclusivity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if slot == nil {
		slot = notice.NewSlot()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		projectID:  projectID,
		store:      st,
		provider:   provider,
		subscriber: subscriber,
		slot:       slot,
		cfg:        cfg,
		log:        logger.With("project_id", projectID),
		ctx:        ctx,
		cancel:     cancel,
		jobs:       map[string]*tracked{},
		byShape:    map[string]*tracked{},
	}
}

// Generate inserts a placeholder, submits a full generation and starts
// tracking it. The returned job carries the placeholder shape id even when
// submission fails, in which case the shape is already marked failed.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (models.GenerationJob, error) {
	snap := o.store.Snapshot()
	var source *models.Shape
	if req.SourceShapeID != "" {
		s, ok := o.store.Get(req.SourceShapeID)
		if !ok {
			return models.GenerationJob{}, fmt.Errorf("source shape %s: %w", req.SourceShapeID, faults.ErrNotFound)
		}
		source = &s
	}
	jobReq := ComposeRequest(snap.Shapes, models.JobGenerate, source, req.Prompt, o.cfg.Rand)
	return o.start(ctx, models.JobGenerate, jobReq, source, req.TargetShapeID, req.Position)
}

// Derive runs a single preprocessing step (depth, edges, pose) on an image shape.
func (o *Orchestrator) Derive(ctx context.Context, sourceShapeID string, kind models.JobKind) (models.GenerationJob, error) {
	if !kind.IsDerivation() {
		return models.GenerationJob{}, fmt.Errorf("job kind %q is not a derivation: %w", kind, faults.ErrValidation)
	}
	source, ok := o.store.Get(sourceShapeID)
	if !ok {
		return models.GenerationJob{}, fmt.Errorf("source shape %s: %w", sourceShapeID, faults.ErrNotFound)
	}
	if source.ImageURL == "" {
		return models.GenerationJob{}, fmt.Errorf("source shape %s has no image: %w", sourceShapeID, faults.ErrValidation)
	}
	jobReq := ComposeRequest(nil, kind, &source, "", o.cfg.Rand)
	return o.start(ctx, kind, jobReq, &source, "", nil)
}

func (o *Orchestrator) start(ctx context.Context, kind models.JobKind, jobReq models.JobRequest, source *models.Shape, targetID string, at *models.Point) (models.GenerationJob, error) {
	shapeID, err := o.insertPlaceholder(kind, source, targetID, at)
	if err != nil {
		return models.GenerationJob{}, err
	}

	t := o.claim(shapeID, kind)
	o.log.Info("submitting job", "kind", kind, "shape_id", shapeID)

	var jobID string
	err = o.cfg.SubmitRetry.Do(ctx, func(ctx context.Context) error {
		var serr error
		jobID, serr = o.provider.Submit(ctx, jobReq)
		return serr
	})
	if err == nil && jobID == "" {
		err = faults.Provider("submission returned no job id")
	}
	if err != nil {
		err = fmt.Errorf("submit %s job: %w", kind, err)
		if o.release(t) {
			o.fail(shapeID, nil, err)
		}
		return t.job, err
	}

	if !o.register(t, jobID) {
		o.log.Warn("job superseded before registration", "job_id", jobID, "shape_id", shapeID)
		return t.job, nil
	}
	o.log.Info("job submitted", "job_id", jobID, "shape_id", shapeID)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.track(t)
	}()
	return t.job, nil
}

// insertPlaceholder puts the pending shape in place and, for exclusive
// controls, switches the control off everywhere else, all in one version.
func (o *Orchestrator) insertPlaceholder(kind models.JobKind, source *models.Shape, targetID string, at *models.Point) (string, error) {
	control, hasControl := kind.Control()
	exclusive := hasControl && o.cfg.Exclusivity.Exclusive(control)
	pending := models.ShapePatch{
		IsUploading: models.Ptr(true),
		HasError:    models.Ptr(false),
		Logs:        &[]string{"Submitting " + string(kind) + " job"},
	}

	var shapeID string
	err := o.store.Batch(func(tx *store.Tx) error {
		if targetID != "" {
			target, ok := tx.Get(targetID)
			if !ok {
				return fmt.Errorf("target shape %s: %w", targetID, faults.ErrNotFound)
			}
			if !target.Type.HoldsImage() {
				return fmt.Errorf("target shape %s cannot hold an image: %w", targetID, faults.ErrValidation)
			}
			shapeID = targetID
		} else {
			shapeID = tx.NewID()
		}

		if exclusive {
			tx.Patch(func(s models.Shape) bool {
				return s.ID != shapeID && s.Controls.Showing(control)
			}, models.ShapePatch{Controls: models.Controls{control: {Show: false}}})
		}

		if targetID != "" {
			tx.Update(shapeID, pending)
			return nil
		}
		placeholder := o.placeholder(shapeID, kind, source, at, tx.Shapes())
		if hasControl {
			placeholder.Controls = models.Controls{control: {Show: true, Strength: models.DefaultStrength}}
		}
		return tx.Add(placeholder)
	})
	return shapeID, err
}

func (o *Orchestrator) placeholder(id string, kind models.JobKind, source *models.Shape, at *models.Point, shapes []models.Shape) models.Shape {
	width, height := DefaultPlaceholderSize, DefaultPlaceholderSize
	var pos models.Point
	switch {
	case at != nil:
		pos = *at
	case source != nil:
		width, height = source.Width, source.Height
		pos = models.Point{X: source.Position.X + source.Width + placementGap, Y: source.Position.Y}
	default:
		if box, ok := models.BoundingBoxOf(shapes); ok {
			pos = models.Point{X: box.X + box.Width + placementGap, Y: box.Y}
		}
	}
	s := models.NewShape(id, kind.ShapeType(), pos, width, height)
	s.IsUploading = true
	s.Logs = []string{"Submitting " + string(kind) + " job"}
	if source != nil && kind.IsDerivation() {
		s.SourceImageID = source.ID
	}
	return s
}

// claim reserves the target shape for a new job, superseding any job that
// still targets it.
func (o *Orchestrator) claim(shapeID string, kind models.JobKind) *tracked {
	ctx, cancel := context.WithCancel(o.ctx)
	t := &tracked{
		job: models.GenerationJob{
			TargetShapeID: shapeID,
			Kind:          kind,
			CreatedAt:     o.cfg.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if prev, ok := o.byShape[shapeID]; ok {
		o.log.Info("superseding job", "job_id", prev.job.JobID, "shape_id", shapeID)
		prev.cancel()
		delete(o.jobs, prev.job.JobID)
	}
	o.byShape[shapeID] = t
	return t
}

// register records the job id of a claimed job. It fails when the claim was
// superseded or cancelled while the submission was in flight.
func (o *Orchestrator) register(t *tracked, jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.byShape[t.job.TargetShapeID] != t || t.ctx.Err() != nil {
		return false
	}
	t.job.JobID = jobID
	o.jobs[jobID] = t
	return true
}

// release drops t from the in-flight set. It reports whether t was still the
// current job for its shape.
func (o *Orchestrator) release(t *tracked) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	t.cancel()
	current := o.byShape[t.job.TargetShapeID] == t
	if current {
		delete(o.byShape, t.job.TargetShapeID)
	}
	if t.job.JobID != "" && o.jobs[t.job.JobID] == t {
		delete(o.jobs, t.job.JobID)
	}
	return current
}

func (o *Orchestrator) isCurrent(t *tracked) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.byShape[t.job.TargetShapeID] == t && t.ctx.Err() == nil
}

// InFlight lists the jobs being tracked, oldest first.
func (o *Orchestrator) InFlight() []models.GenerationJob {
	o.mu.Lock()
	out := make([]models.GenerationJob, 0, len(o.jobs))
	for _, t := range o.jobs {
		out = append(out, t.job)
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// JobForShape returns the in-flight job targeting shapeID, if any.
func (o *Orchestrator) JobForShape(shapeID string) (models.GenerationJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.byShape[shapeID]
	if !ok || t.job.JobID == "" {
		return models.GenerationJob{}, false
	}
	return t.job, true
}

// Cancel stops tracking the job targeting shapeID. The provider job itself is
// left to run; its result is discarded.
func (o *Orchestrator) Cancel(shapeID string) bool {
	o.mu.Lock()
	t, ok := o.byShape[shapeID]
	o.mu.Unlock()
	if !ok || !o.release(t) {
		return false
	}
	o.store.UpdateShape(shapeID, models.ShapePatch{
		IsUploading: models.Ptr(false),
		AppendLogs:  []string{"Cancelled"},
	})
	return true
}

// Close stops every tracker and waits for them to exit.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
	o.mu.Lock()
	o.jobs = map[string]*tracked{}
	o.byShape = map[string]*tracked{}
	o.mu.Unlock()
}
