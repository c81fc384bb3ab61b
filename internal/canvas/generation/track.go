package generation

import (
	"context"
	"fmt"
	"time"

	"canvas-studio-backend/internal/faults"
	"canvas-studio-backend/internal/models"
)

type source string

const (
	fromPoll source = "poll"
	fromPush source = "push"
)

type update struct {
	from   source
	record models.JobRecord
	// gone is set when the poll loop found the target shape deleted.
	gone bool
	err  error
}

// track consumes poll and push updates for one job until a terminal record,
// the timeout, deletion of the target shape, or cancellation.
func (o *Orchestrator) track(t *tracked) {
	defer t.cancel()

	updates := make(chan update, 4)
	go o.poll(t, updates)
	if o.subscriber != nil {
		go o.subscribe(t, updates)
	}

	log := o.log.With("job_id", t.job.JobID, "shape_id", t.job.TargetShapeID)
	for {
		var u update
		select {
		case <-t.ctx.Done():
			return
		case u = <-updates:
		}

		if u.gone || !o.store.Has(t.job.TargetShapeID) {
			log.Info("target shape deleted, dropping job")
			o.release(t)
			return
		}
		if u.err != nil {
			log.Warn("job failed", "from", u.from, "error", u.err)
			o.finish(t, func() { o.fail(t.job.TargetShapeID, nil, u.err) })
			return
		}

		rec := u.record
		if !rec.Status.Terminal() {
			o.applyIfCurrent(t, func() { o.progress(t.job.TargetShapeID, rec) })
			continue
		}

		log.Info("job finished", "status", rec.Status, "from", u.from)
		if rec.Status == models.JobSucceeded && rec.ResultURL != "" {
			o.finish(t, func() { o.succeed(t.job.TargetShapeID, rec) })
		} else {
			err := terminalError(t.job, rec)
			o.finish(t, func() { o.fail(t.job.TargetShapeID, &rec, err) })
		}
		return
	}
}

// poll fetches the job status every PollInterval. After MaxPollAttempts
// fetches without a terminal status it reports a timeout.
func (o *Orchestrator) poll(t *tracked, out chan<- update) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}

		if !o.store.Has(t.job.TargetShapeID) {
			send(t.ctx, out, update{from: fromPoll, gone: true})
			return
		}

		rec, err := o.provider.Status(t.ctx, t.job.JobID)
		switch {
		case err == nil:
			if !send(t.ctx, out, update{from: fromPoll, record: rec}) {
				return
			}
			if rec.Status.Terminal() {
				return
			}
		case t.ctx.Err() != nil:
			return
		case faults.IsConnectivity(err):
			o.log.Warn("status poll failed", "job_id", t.job.JobID, "attempt", attempt, "error", err)
		default:
			send(t.ctx, out, update{from: fromPoll, err: fmt.Errorf("poll job %s: %w", t.job.JobID, err)})
			return
		}

		if attempt >= o.cfg.MaxPollAttempts {
			err := fmt.Errorf("job %s: no terminal status after %d polls: %w", t.job.JobID, attempt, faults.ErrTimeout)
			send(t.ctx, out, update{from: fromPoll, err: err})
			return
		}
	}
}

// subscribe forwards push updates. A failed subscription leaves the job to
// the poll loop.
func (o *Orchestrator) subscribe(t *tracked, out chan<- update) {
	ch, err := o.subscriber.Subscribe(t.ctx, t.job.JobID)
	if err != nil {
		if t.ctx.Err() == nil {
			o.log.Warn("push subscription failed, polling only", "job_id", t.job.JobID, "error", err)
		}
		return
	}
	for {
		select {
		case <-t.ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if !send(t.ctx, out, update{from: fromPush, record: rec}) {
				return
			}
			if rec.Status.Terminal() {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- update, u update) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- u:
		return true
	}
}

// applyIfCurrent runs fn while t is still the job owning its shape. Holding
// the lock keeps a superseding claim from slipping in mid-write.
func (o *Orchestrator) applyIfCurrent(t *tracked, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.byShape[t.job.TargetShapeID] != t || t.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// finish applies the terminal write and removes the job in one step.
func (o *Orchestrator) finish(t *tracked, fn func()) {
	o.mu.Lock()
	current := o.byShape[t.job.TargetShapeID] == t && t.ctx.Err() == nil
	if current {
		fn()
		delete(o.byShape, t.job.TargetShapeID)
		delete(o.jobs, t.job.JobID)
	}
	o.mu.Unlock()
	t.cancel()
}

func (o *Orchestrator) progress(shapeID string, rec models.JobRecord) {
	if len(rec.Logs) == 0 {
		return
	}
	// providers report the full log so far, so replacing is idempotent
	// whichever channel delivers it
	o.store.UpdateShape(shapeID, models.ShapePatch{Logs: models.Ptr(append([]string(nil), rec.Logs...))})
}

func (o *Orchestrator) succeed(shapeID string, rec models.JobRecord) {
	patch := models.ShapePatch{
		ImageURL:    models.Ptr(rec.ResultURL),
		IsUploading: models.Ptr(false),
		HasError:    models.Ptr(false),
	}
	if rec.MaskURL != "" {
		patch.MaskURL = models.Ptr(rec.MaskURL)
	}
	if len(rec.Logs) > 0 {
		patch.Logs = models.Ptr(append([]string(nil), rec.Logs...))
	}
	if shape, ok := o.store.Get(shapeID); ok && rec.Width > 0 && rec.Height > 0 {
		// keep the placeholder width, follow the result's aspect ratio
		patch.Height = models.Ptr(shape.Width * rec.Height / rec.Width)
	}
	o.store.UpdateShape(shapeID, patch)
}

// fail tints the shape, leaves a final log line and reports the error.
func (o *Orchestrator) fail(shapeID string, rec *models.JobRecord, err error) {
	patch := models.ShapePatch{
		IsUploading: models.Ptr(false),
		HasError:    models.Ptr(true),
		Color:       models.Ptr(ErrorTint),
		AppendLogs:  []string{"Error: " + err.Error()},
	}
	if rec != nil && len(rec.Logs) > 0 {
		patch.Logs = models.Ptr(append([]string(nil), rec.Logs...))
	}
	o.store.UpdateShape(shapeID, patch)
	o.slot.Report("generation", o.projectID, shapeID, err)
}

func terminalError(job models.GenerationJob, rec models.JobRecord) error {
	switch rec.Status {
	case models.JobCanceled:
		return fmt.Errorf("job %s: %w", job.JobID, faults.Provider("job was canceled"))
	case models.JobSucceeded:
		return fmt.Errorf("job %s: %w", job.JobID, faults.Provider("succeeded without a result url"))
	case models.JobTimedOut:
		return fmt.Errorf("job %s: %w", job.JobID, faults.ErrTimeout)
	}
	msg := rec.Error
	if msg == "" {
		msg = "job failed"
	}
	return fmt.Errorf("job %s: %w", job.JobID, faults.Provider(msg))
}
