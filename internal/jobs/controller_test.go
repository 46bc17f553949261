package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gwlsn/augmentor/internal/backend"
	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/options"
	"github.com/gwlsn/augmentor/internal/timeline"
	"github.com/gwlsn/augmentor/internal/validation"
)

// call is one backend request held open until the test replies to it.
type call struct {
	op    string
	file  *media.File
	image backend.ProcessRequest
	video backend.VideoProcessRequest
	reply chan reply
}

type reply struct {
	token string
	resp  *backend.ProcessResponse
	err   error
}

type fakeBackend struct {
	calls chan *call
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(chan *call, 10)}
}

func (f *fakeBackend) wait(ctx context.Context, c *call) reply {
	f.calls <- c
	select {
	case r := <-c.reply:
		return r
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
}

func (f *fakeBackend) Upload(ctx context.Context, file *media.File) (string, error) {
	r := f.wait(ctx, &call{op: "upload", file: file, reply: make(chan reply, 1)})
	return r.token, r.err
}

func (f *fakeBackend) Process(ctx context.Context, req backend.ProcessRequest) (*backend.ProcessResponse, error) {
	r := f.wait(ctx, &call{op: "process", image: req, reply: make(chan reply, 1)})
	return r.resp, r.err
}

func (f *fakeBackend) ProcessVideo(ctx context.Context, req backend.VideoProcessRequest) (*backend.ProcessResponse, error) {
	r := f.wait(ctx, &call{op: "process_video", video: req, reply: make(chan reply, 1)})
	return r.resp, r.err
}

func (f *fakeBackend) next(t *testing.T, op string) *call {
	t.Helper()
	select {
	case c := <-f.calls:
		if c.op != op {
			t.Fatalf("expected %s call, got %s", op, c.op)
		}
		return c
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s call", op)
		return nil
	}
}

func (f *fakeBackend) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected %s call", c.op)
	case <-time.After(20 * time.Millisecond):
	}
}

// applyLog records responses as the controller applies or drops them.
type applyLog struct {
	ch chan applyNote
}

type applyNote struct {
	gen     uint64
	dropped bool
}

func watchApplies(c *Controller) *applyLog {
	log := &applyLog{ch: make(chan applyNote, 10)}
	c.applied = func(gen uint64, dropped bool) {
		log.ch <- applyNote{gen: gen, dropped: dropped}
	}
	return log
}

func (l *applyLog) next(t *testing.T) applyNote {
	t.Helper()
	select {
	case n := <-l.ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response to be applied")
		return applyNote{}
	}
}

func settle(t *testing.T, c *Controller) *Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	return job
}

func png(name string) *media.File {
	return media.FromBytes(name, "image/png", []byte("png bytes"))
}

func TestImageLifecycle(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()

	if c.State() != StateIdle {
		t.Fatalf("expected idle, got %s", c.State())
	}

	if err := c.SelectFile(png("f1.png")); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if c.State() != StateUploading {
		t.Errorf("expected uploading, got %s", c.State())
	}

	up := fb.next(t, "upload")
	if up.file.Name != "f1.png" {
		t.Errorf("uploaded wrong file %s", up.file.Name)
	}
	up.reply <- reply{token: "f1.png"}

	job := settle(t, c)
	if job.State != StateUploaded || job.Token != "f1.png" {
		t.Fatalf("expected uploaded with token, got %+v", job)
	}

	if _, err := c.ArtifactRef(); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("expected not completed, got %v", err)
	}

	if err := c.Submit(Submission{Options: options.NewImageSet(), OutputFolder: "out"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if c.State() != StateProcessing {
		t.Errorf("expected processing, got %s", c.State())
	}

	proc := fb.next(t, "process")
	if proc.image.Filename != "f1.png" || proc.image.OutputFolder != "out" || proc.image.CustomOutputPath != nil {
		t.Errorf("unexpected process request %+v", proc.image)
	}
	proc.reply <- reply{resp: &backend.ProcessResponse{Message: "done", ProcessedCount: 12, ZipFile: "f1.zip"}}

	job = settle(t, c)
	if job.State != StateCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.State, job.Error)
	}
	if job.Result.ProcessedCount != 12 {
		t.Errorf("expected 12 processed, got %d", job.Result.ProcessedCount)
	}
	ref, err := c.ArtifactRef()
	if err != nil || ref != "f1.zip" {
		t.Errorf("ArtifactRef = %q, %v", ref, err)
	}
}

func TestInvalidFileStaysIdle(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()

	err := c.SelectFile(media.FromBytes("doc.pdf", "application/pdf", []byte("%PDF")))
	if !errors.Is(err, validation.ErrUnsupportedType) {
		t.Errorf("expected unsupported type, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
	fb.expectNoCall(t)
}

func TestInvalidFileKeepsCurrentJob(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()

	c.SelectFile(png("a.png"))
	fb.next(t, "upload").reply <- reply{token: "a.png"}
	settle(t, c)

	big := &media.File{Name: "big.png", MIMEType: "image/png", Size: media.MaxImageBytes + 1}
	if err := c.SelectFile(big); !errors.Is(err, validation.ErrTooLarge) {
		t.Errorf("expected too large, got %v", err)
	}
	if job := c.Snapshot(); job.State != StateUploaded || job.Token != "a.png" {
		t.Errorf("rejected file disturbed the job: %+v", job)
	}
}

func TestUploadFailure(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()

	c.SelectFile(png("a.png"))
	fb.next(t, "upload").reply <- reply{err: &backend.BackendError{Op: "upload", Status: 400, Message: "Invalid file type"}}

	job := settle(t, c)
	if job.State != StateFailed {
		t.Fatalf("expected failed, got %s", job.State)
	}
	var berr *backend.BackendError
	if !errors.As(job.Err, &berr) || berr.Message != "Invalid file type" {
		t.Errorf("failure cause lost: %v", job.Err)
	}

	if err := c.Submit(Submission{}); !errors.Is(err, ErrNoUpload) {
		t.Errorf("expected no upload, got %v", err)
	}
	fb.expectNoCall(t)
}

func TestSubmitGuards(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()

	if err := c.Submit(Submission{}); !errors.Is(err, ErrNoUpload) {
		t.Errorf("idle submit: expected no upload, got %v", err)
	}

	c.SelectFile(png("a.png"))
	if err := c.Submit(Submission{}); !errors.Is(err, ErrAlreadyInFlight) {
		t.Errorf("uploading submit: expected in flight, got %v", err)
	}
	fb.next(t, "upload").reply <- reply{token: "a.png"}
	settle(t, c)

	if err := c.Submit(Submission{}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := c.Submit(Submission{}); !errors.Is(err, ErrAlreadyInFlight) {
		t.Errorf("re-entrant submit: expected in flight, got %v", err)
	}

	proc := fb.next(t, "process")
	if proc.image.OutputFolder != media.DefaultImageFolder {
		t.Errorf("expected default folder, got %q", proc.image.OutputFolder)
	}
	fb.expectNoCall(t)

	proc.reply <- reply{err: &backend.TransportError{Op: "process", Err: errors.New("connection refused")}}
	if job := settle(t, c); job.State != StateFailed || !errors.Is(job.Err, backend.ErrTransport) {
		t.Fatalf("expected transport failure, got %+v", job)
	}

	// the upload survives a failed process, so the user can resubmit
	if err := c.Submit(Submission{OutputFolder: "  retry "}); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	proc = fb.next(t, "process")
	if proc.image.OutputFolder != "retry" {
		t.Errorf("expected trimmed folder, got %q", proc.image.OutputFolder)
	}
	proc.reply <- reply{resp: &backend.ProcessResponse{ZipFile: "retry.zip"}}
	if job := settle(t, c); job.State != StateCompleted || job.Error != "" {
		t.Errorf("expected clean completion, got %+v", job)
	}
}

func TestSubmitSnapshotsOptions(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()

	c.SelectFile(png("a.png"))
	fb.next(t, "upload").reply <- reply{token: "a.png"}
	settle(t, c)

	set := options.NewImageSet()
	if err := c.Submit(Submission{Options: set}); err != nil {
		t.Fatal(err)
	}
	set.Toggle(options.Zoom, false)

	proc := fb.next(t, "process")
	if !proc.image.SelectedOptions[options.Zoom].Enabled {
		t.Error("edit after submit leaked into the in-flight request")
	}
	proc.reply <- reply{resp: &backend.ProcessResponse{}}
	settle(t, c)
}

func TestSupersededProcessResponseIgnored(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()
	applies := watchApplies(c)

	// job A reaches processing
	c.SelectFile(png("a.png"))
	fb.next(t, "upload").reply <- reply{token: "a.png"}
	applies.next(t)
	c.Submit(Submission{})
	procA := fb.next(t, "process")
	genA := c.Snapshot().Generation

	// job B starts while A is still processing
	if err := c.SelectFile(png("b.png")); err != nil {
		t.Fatal(err)
	}
	jobB := c.Snapshot()
	if jobB.State != StateUploading || jobB.Generation <= genA {
		t.Fatalf("expected new uploading generation, got %+v", jobB)
	}
	upB := fb.next(t, "upload")

	// A's result arrives late
	procA.reply <- reply{resp: &backend.ProcessResponse{ProcessedCount: 99, ZipFile: "a.zip"}}
	note := applies.next(t)
	if note.gen != genA || !note.dropped {
		t.Fatalf("expected A's response to be dropped, got %+v", note)
	}

	job := c.Snapshot()
	if job.ID != jobB.ID || job.State != StateUploading || job.Result != nil {
		t.Fatalf("stale response changed job B: %+v", job)
	}
	if _, err := c.ArtifactRef(); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("stale artifact exposed: %v", err)
	}

	upB.reply <- reply{token: "b.png"}
	if job := settle(t, c); job.State != StateUploaded || job.Token != "b.png" {
		t.Errorf("job B did not continue: %+v", job)
	}
}

func TestSupersededUploadFailureIgnored(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()
	applies := watchApplies(c)

	c.SelectFile(png("a.png"))
	upA := fb.next(t, "upload")
	c.SelectFile(png("b.png"))
	upB := fb.next(t, "upload")

	upA.reply <- reply{err: errors.New("network down")}
	if note := applies.next(t); !note.dropped {
		t.Fatal("expected A's failure to be dropped")
	}
	if c.State() != StateUploading {
		t.Errorf("stale failure changed state to %s", c.State())
	}

	upB.reply <- reply{token: "b.png"}
	if job := settle(t, c); job.State != StateUploaded || job.File.Name != "b.png" {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestReselectFromTerminalStates(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()

	c.SelectFile(png("a.png"))
	fb.next(t, "upload").reply <- reply{token: "a.png"}
	settle(t, c)
	c.Submit(Submission{})
	fb.next(t, "process").reply <- reply{resp: &backend.ProcessResponse{ZipFile: "a.zip"}}
	first := settle(t, c)

	c.SelectFile(png("b.png"))
	job := c.Snapshot()
	if job.State != StateUploading || job.Token != "" || job.Result != nil || job.ID == first.ID {
		t.Fatalf("new job carried old state: %+v", job)
	}
	fb.next(t, "upload").reply <- reply{err: errors.New("boom")}
	settle(t, c)

	c.SelectFile(png("c.png"))
	if c.State() != StateUploading {
		t.Errorf("expected failed job to re-arm, got %s", c.State())
	}
	fb.next(t, "upload").reply <- reply{token: "c.png"}
	settle(t, c)
}

func TestVideoTimeRange(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindVideo, fb)
	defer c.Close()

	clip := media.FromBytes("clip.mp4", "", []byte("mp4")).WithDuration(100 * time.Second)
	c.SelectFile(clip)
	fb.next(t, "upload").reply <- reply{token: "clip.mp4"}
	settle(t, c)

	set := options.NewVideoSet()
	err := c.Submit(Submission{Options: set, TimeRange: timeline.Range{Start: 50, End: 40}})
	if !errors.Is(err, validation.ErrInvalidTimeRange) {
		t.Errorf("expected invalid time range, got %v", err)
	}
	err = c.Submit(Submission{Options: set, TimeRange: timeline.Range{Start: 0, End: 101}})
	if !errors.Is(err, validation.ErrInvalidTimeRange) {
		t.Errorf("expected invalid time range past the end, got %v", err)
	}
	if c.State() != StateUploaded {
		t.Errorf("rejected submit changed state to %s", c.State())
	}
	fb.expectNoCall(t)

	if err := c.Submit(Submission{Options: set, TimeRange: timeline.Range{Start: 10, End: 40}}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	proc := fb.next(t, "process_video")
	if proc.video.StartTime != 10 || proc.video.EndTime != 40 || proc.video.OutputFolder != media.DefaultVideoFolder {
		t.Errorf("unexpected request %+v", proc.video)
	}
	if len(proc.video.SelectedOptions.Intervals) != 4 {
		t.Errorf("unexpected intervals %v", proc.video.SelectedOptions.Intervals)
	}
	start, end := 10, 40
	proc.reply <- reply{resp: &backend.ProcessResponse{ProcessedCount: 9, ZipFile: "video_frames.zip", StartTime: &start, EndTime: &end}}

	job := settle(t, c)
	if job.Result == nil || job.Result.TimeRange == nil || *job.Result.TimeRange != (timeline.Range{Start: 10, End: 40}) {
		t.Errorf("time range not echoed: %+v", job.Result)
	}
}

func TestSubscribeOrder(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)
	defer c.Close()

	events := c.Subscribe()
	defer c.Unsubscribe(events)

	c.SelectFile(png("a.png"))
	fb.next(t, "upload").reply <- reply{token: "a.png"}
	settle(t, c)
	c.Submit(Submission{})
	fb.next(t, "process").reply <- reply{resp: &backend.ProcessResponse{ZipFile: "a.zip"}}
	settle(t, c)

	want := []State{StateUploading, StateUploaded, StateProcessing, StateCompleted}
	for _, state := range want {
		select {
		case ev := <-events:
			if ev.Job.State != state || ev.Type != string(state) {
				t.Errorf("expected %s event, got %s/%s", state, ev.Type, ev.Job.State)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", state)
		}
	}
}

func TestCloseAbandonsRequests(t *testing.T) {
	fb := newFakeBackend()
	c := NewController(media.KindImage, fb)

	c.SelectFile(png("a.png"))
	fb.next(t, "upload")
	c.Close()

	if _, err := c.Wait(context.Background()); !errors.Is(err, ErrClosed) && err != nil {
		t.Errorf("unexpected wait error %v", err)
	}
	if err := c.SelectFile(png("b.png")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected closed, got %v", err)
	}
}
