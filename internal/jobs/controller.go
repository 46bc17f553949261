package jobs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwlsn/augmentor/internal/backend"
	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/options"
	"github.com/gwlsn/augmentor/internal/timeline"
)

// Backend is the part of the processing service the controller drives.
// Implemented by backend.Client.
type Backend interface {
	Upload(ctx context.Context, f *media.File) (string, error)
	Process(ctx context.Context, req backend.ProcessRequest) (*backend.ProcessResponse, error)
	ProcessVideo(ctx context.Context, req backend.VideoProcessRequest) (*backend.ProcessResponse, error)
}

// Submission is everything a process request needs besides the upload.
type Submission struct {
	Options      *options.Set
	OutputFolder string
	OutputPath   *string // custom_output_path; nil sends null
	TimeRange    timeline.Range
}

// Controller owns the upload → process workflow for one session. Every job
// gets a new generation; responses carrying an older generation are dropped
// so a superseded job can never overwrite the current one.
type Controller struct {
	kind    media.Kind
	backend Backend
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	gen     uint64
	job     *Job
	changed chan struct{}

	// applied is called after every response is applied or dropped (tests)
	applied func(gen uint64, dropped bool)

	// Subscribers for state events
	subsMu      sync.RWMutex
	subscribers map[chan Event]struct{}
}

// Option customises a Controller.
type Option func(*Controller)

// WithRequestTimeout bounds each upload and process request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// NewController creates an idle controller for kind.
func NewController(kind media.Kind, b Backend, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		kind:        kind,
		backend:     b,
		ctx:         ctx,
		cancel:      cancel,
		job:         &Job{Kind: kind, State: StateIdle, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		changed:     make(chan struct{}),
		subscribers: make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind returns the media kind this controller accepts.
func (c *Controller) Kind() media.Kind {
	return c.kind
}

// Close abandons any in-flight request. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.cancel()
}

// Snapshot returns a copy of the current job.
func (c *Controller) Snapshot() *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.Copy()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.State
}

// SelectFile validates f and, if acceptable, starts a new job uploading it.
// Any previous job is superseded whatever its state. An invalid file leaves
// the current job untouched and returns the validation error.
func (c *Controller) SelectFile(f *media.File) error {
	if err := media.Validate(f, c.kind); err != nil {
		logger.Debug("File rejected", "file", fileName(f), "error", err)
		return err
	}
	if c.ctx.Err() != nil {
		return ErrClosed
	}

	c.mu.Lock()
	prev := c.job
	c.gen++
	gen := c.gen
	now := time.Now()
	c.job = &Job{
		ID:         uuid.NewString(),
		Generation: gen,
		Kind:       c.kind,
		State:      StateUploading,
		File:       f,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	id := c.job.ID
	c.transitionLocked()
	c.mu.Unlock()

	if prev.State.InFlight() {
		logger.Info("Superseding in-flight job", "job_id", prev.ID, "state", prev.State, "generation", prev.Generation)
	}
	logger.Info("Upload started", "job_id", id, "generation", gen, "file", f.Name, "size", f.Size)

	go c.runUpload(gen, f)
	return nil
}

// Submit starts a process request for the uploaded file. It is accepted only
// from Uploaded or a terminal state that still holds an upload; video
// submissions must carry a valid time range. Rejected submissions never
// contact the backend.
func (c *Controller) Submit(sub Submission) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}

	c.mu.Lock()
	job := c.job
	if job.State.InFlight() {
		c.mu.Unlock()
		return inFlightError(job.ID, job.State)
	}
	if job.Token == "" {
		c.mu.Unlock()
		return ErrNoUpload
	}
	if c.kind == media.KindVideo {
		if err := sub.TimeRange.Validate(job.File.DurationSeconds()); err != nil {
			c.mu.Unlock()
			return err
		}
	}

	opts := sub.Options
	if opts == nil {
		opts = options.NewSet(nil)
	}
	opts = opts.Snapshot()
	folder := strings.TrimSpace(sub.OutputFolder)
	if folder == "" {
		folder = media.DefaultFolder(c.kind)
	}

	gen := job.Generation
	token := job.Token
	job.State = StateProcessing
	job.Result = nil
	job.Error = ""
	job.Err = nil
	job.UpdatedAt = time.Now()
	c.transitionLocked()
	c.mu.Unlock()

	logger.Info("Process started", "job_id", job.ID, "generation", gen, "output_folder", folder)

	go c.runProcess(gen, token, folder, sub.OutputPath, sub.TimeRange, opts)
	return nil
}

// ArtifactRef returns the archive name of a completed job.
func (c *Controller) ArtifactRef() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job.State != StateCompleted || c.job.Result == nil {
		return "", notCompletedError(c.job.ID, c.job.State)
	}
	return c.job.Result.ArtifactRef, nil
}

// Wait blocks until the current job has no request in flight and returns it.
// A job superseded while waiting is followed to its successor.
func (c *Controller) Wait(ctx context.Context) (*Job, error) {
	for {
		c.mu.Lock()
		if !c.job.State.InFlight() {
			job := c.job.Copy()
			c.mu.Unlock()
			return job, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.ctx.Done():
			return nil, ErrClosed
		}
	}
}

func (c *Controller) requestContext() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(c.ctx, c.timeout)
	}
	return context.WithCancel(c.ctx)
}

func (c *Controller) runUpload(gen uint64, f *media.File) {
	ctx, cancel := c.requestContext()
	defer cancel()

	token, err := c.backend.Upload(ctx, f)

	c.apply(gen, StateUploading, func(job *Job) State {
		if err != nil {
			job.Err = err
			job.Error = err.Error()
			return StateFailed
		}
		job.Token = token
		return StateUploaded
	})
}

func (c *Controller) runProcess(gen uint64, token, folder string, outPath *string, tr timeline.Range, opts *options.Set) {
	ctx, cancel := c.requestContext()
	defer cancel()

	var (
		resp *backend.ProcessResponse
		err  error
	)
	if c.kind == media.KindVideo {
		resp, err = c.backend.ProcessVideo(ctx, backend.VideoProcessRequest{
			Filename:         token,
			OutputFolder:     folder,
			CustomOutputPath: outPath,
			StartTime:        tr.Start,
			EndTime:          tr.End,
			SelectedOptions:  opts.VideoSelected(),
		})
	} else {
		resp, err = c.backend.Process(ctx, backend.ProcessRequest{
			Filename:         token,
			OutputFolder:     folder,
			CustomOutputPath: outPath,
			SelectedOptions:  opts.Selected(),
		})
	}

	c.apply(gen, StateProcessing, func(job *Job) State {
		if err != nil {
			job.Err = err
			job.Error = err.Error()
			return StateFailed
		}
		result := &Result{
			Message:        resp.Message,
			ProcessedCount: resp.ProcessedCount,
			ArtifactRef:    resp.ZipFile,
		}
		if resp.StartTime != nil && resp.EndTime != nil {
			result.TimeRange = &timeline.Range{Start: *resp.StartTime, End: *resp.EndTime}
		}
		job.Result = result
		return StateCompleted
	})
}

// apply runs mutate on the current job if it still belongs to gen and is in
// the expected state; otherwise the response is stale and dropped.
func (c *Controller) apply(gen uint64, expect State, mutate func(*Job) State) {
	c.mu.Lock()
	job := c.job
	if gen != c.gen || job.State != expect {
		current := c.gen
		c.mu.Unlock()
		logger.Info("Discarding stale response", "generation", gen, "current_generation", current, "expected_state", expect)
		if c.applied != nil {
			c.applied(gen, true)
		}
		return
	}
	job.State = mutate(job)
	job.UpdatedAt = time.Now()
	snap := job.Copy()
	c.transitionLocked()
	c.mu.Unlock()

	if snap.State == StateFailed {
		logger.Warn("Job failed", "job_id", snap.ID, "generation", gen, "error", snap.Error)
	} else {
		logger.Info("Job state changed", "job_id", snap.ID, "generation", gen, "state", snap.State)
	}
	if c.applied != nil {
		c.applied(gen, false)
	}
}

// transitionLocked publishes the current job to subscribers and wakes Wait
// callers. Called with mu held so events leave in transition order.
func (c *Controller) transitionLocked() {
	c.broadcast(Event{Type: string(c.job.State), Job: c.job.Copy()})
	close(c.changed)
	c.changed = make(chan struct{})
}

// Subscribe returns a channel that receives state events
func (c *Controller) Subscribe() chan Event {
	ch := make(chan Event, 100)

	c.subsMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subsMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription
func (c *Controller) Unsubscribe(ch chan Event) {
	c.subsMu.Lock()
	delete(c.subscribers, ch)
	c.subsMu.Unlock()

	close(ch)
}

// broadcast sends an event to all subscribers
func (c *Controller) broadcast(event Event) {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	for ch := range c.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}

func fileName(f *media.File) string {
	if f == nil {
		return ""
	}
	return f.Name
}
