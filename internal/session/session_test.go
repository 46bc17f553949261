package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/gwlsn/augmentor/internal/backend"
	"github.com/gwlsn/augmentor/internal/i18n"
	"github.com/gwlsn/augmentor/internal/jobs"
	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/options"
	"github.com/gwlsn/augmentor/internal/timeline"
	"github.com/gwlsn/augmentor/internal/validation"
)

// stubBackend answers every request immediately.
type stubBackend struct {
	mu         sync.Mutex
	processed  []backend.ProcessRequest
	videos     []backend.VideoProcessRequest
	processErr error
	pathsErr   error
	current    string
}

func (b *stubBackend) Upload(ctx context.Context, f *media.File) (string, error) {
	return f.Name, nil
}

func (b *stubBackend) Process(ctx context.Context, req backend.ProcessRequest) (*backend.ProcessResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.processed = append(b.processed, req)
	if b.processErr != nil {
		return nil, b.processErr
	}
	return &backend.ProcessResponse{Message: "3 images", ProcessedCount: 3, ZipFile: "out.zip"}, nil
}

func (b *stubBackend) ProcessVideo(ctx context.Context, req backend.VideoProcessRequest) (*backend.ProcessResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.videos = append(b.videos, req)
	return &backend.ProcessResponse{Message: "9 frames", ProcessedCount: 9, ZipFile: "frames.zip"}, nil
}

func (b *stubBackend) OutputPaths(ctx context.Context) (*backend.OutputPaths, error) {
	if b.pathsErr != nil {
		return nil, b.pathsErr
	}
	return &backend.OutputPaths{CurrentPath: b.current}, nil
}

func (b *stubBackend) Download(ctx context.Context, zipFile string, w io.Writer) (int64, error) {
	n, err := io.WriteString(w, "zip:"+zipFile)
	return int64(n), err
}

func (b *stubBackend) DownloadURL(zipFile string) string {
	return "http://backend/download/" + zipFile
}

func wait(t *testing.T, s *Session) *jobs.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	return job
}

func TestImageSession(t *testing.T) {
	b := &stubBackend{current: "/srv/results"}
	s := New(media.KindImage, b)
	defer s.Close()

	s.LoadDefaultOutputPath(context.Background())

	if err := s.OnFileSelected(media.FromBytes("cat.png", "", []byte("png"))); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	wait(t, s)

	if err := s.OnToggleFamily(options.Blur, false); err != nil {
		t.Fatal(err)
	}
	if v, err := s.OnAddCustom(options.Zoom, "3.5"); err != nil || v != 3.5 {
		t.Fatalf("AddCustom = %v, %v", v, err)
	}
	s.SetOutputFolder("  ")

	if err := s.OnSubmit(); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	job := wait(t, s)
	if job.State != jobs.StateCompleted {
		t.Fatalf("expected completed, got %s", job.State)
	}

	req := b.processed[0]
	if req.Filename != "cat.png" || req.OutputFolder != media.DefaultImageFolder {
		t.Errorf("unexpected request %+v", req)
	}
	if req.CustomOutputPath == nil || *req.CustomOutputPath != "/srv/results" {
		t.Errorf("default output path not sent: %v", req.CustomOutputPath)
	}
	if req.SelectedOptions[options.Blur].Enabled || len(req.SelectedOptions[options.Blur].Values) != 0 {
		t.Errorf("disabled family sent values: %+v", req.SelectedOptions[options.Blur])
	}
	zoom := req.SelectedOptions[options.Zoom].Values
	if zoom[len(zoom)-1] != 3.5 {
		t.Errorf("custom zoom missing: %v", zoom)
	}

	var buf bytes.Buffer
	name, err := s.OnDownload(context.Background(), &buf)
	if err != nil || name != "out.zip" || buf.String() != "zip:out.zip" {
		t.Errorf("download = %q, %v, %q", name, err, buf.String())
	}
	if url, _ := s.DownloadURL(); url != "http://backend/download/out.zip" {
		t.Errorf("unexpected url %s", url)
	}

	view := s.View()
	if view.Status != "Success: 3 images" || view.DownloadURL == "" {
		t.Errorf("unexpected view %+v", view)
	}
	if view.Time != nil {
		t.Error("image session should not expose time inputs")
	}
	if len(view.Options) != 5 {
		t.Errorf("expected 5 image families, got %d", len(view.Options))
	}
}

func TestDownloadBeforeCompletion(t *testing.T) {
	s := New(media.KindImage, &stubBackend{})
	defer s.Close()

	if _, err := s.OnDownload(context.Background(), io.Discard); !errors.Is(err, jobs.ErrNotCompleted) {
		t.Errorf("expected not completed, got %v", err)
	}
	if err := s.OnSubmit(); !errors.Is(err, jobs.ErrNoUpload) {
		t.Errorf("expected no upload, got %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	b := &stubBackend{pathsErr: errors.New("offline")}
	s := New(media.KindImage, b, WithDefaultFolder("augmented"))
	defer s.Close()

	// a failed lookup is ignored
	s.LoadDefaultOutputPath(context.Background())
	if v := s.View(); v.OutputPath != "" || v.OutputFolder != "augmented" {
		t.Errorf("unexpected output settings %q / %q", v.OutputPath, v.OutputFolder)
	}

	// an explicit choice wins over the backend default
	s.SetOutputPath("/mine")
	b.pathsErr = nil
	b.current = "/theirs"
	s.LoadDefaultOutputPath(context.Background())
	if v := s.View(); v.OutputPath != "/mine" {
		t.Errorf("explicit path overwritten: %q", v.OutputPath)
	}

	s.SetOutputPath(" ")
	if v := s.View(); v.OutputPath != "" {
		t.Errorf("blank path should clear, got %q", v.OutputPath)
	}
}

func TestVideoSession(t *testing.T) {
	b := &stubBackend{}
	s := New(media.KindVideo, b)
	defer s.Close()

	clip := media.FromBytes("clip.mp4", "", []byte("mp4")).WithDuration(95 * time.Second)
	if err := s.OnFileSelected(clip); err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	view := s.View()
	if view.Time == nil || view.Time.EndMinutes != "1" || view.Time.EndSeconds != "35" {
		t.Fatalf("end not seeded from duration: %+v", view.Time)
	}
	if !strings.Contains(view.FileInfo, "Duration: 1:35") {
		t.Errorf("unexpected file info %q", view.FileInfo)
	}

	s.SetTimeInputs(timeline.Inputs{StartMinutes: "0", StartSeconds: "50", EndMinutes: "0", EndSeconds: "40"})
	if err := s.OnSubmit(); !errors.Is(err, validation.ErrInvalidTimeRange) {
		t.Errorf("expected invalid time range, got %v", err)
	}
	if _, estimate := s.Preview(); estimate != 0 {
		t.Errorf("reversed range should estimate 0, got %d", estimate)
	}

	s.SetTimeInputs(timeline.Inputs{StartSeconds: "10", EndSeconds: "40"})
	s.OnToggleFamily(options.Interval, true)
	text, estimate := s.Preview()
	// 30 s with 0.5, 1, 2 and 5 s intervals
	if estimate != 60+30+15+6 {
		t.Errorf("unexpected estimate %d", estimate)
	}
	if text != "Selected range: 0:10 - 0:40 (30 seconds)" {
		t.Errorf("unexpected preview %q", text)
	}

	if err := s.OnSubmit(); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if job := wait(t, s); job.State != jobs.StateCompleted {
		t.Fatalf("expected completed, got %s", job.State)
	}
	req := b.videos[0]
	if req.StartTime != 10 || req.EndTime != 40 || req.OutputFolder != media.DefaultVideoFolder {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestRendererReceivesTransitions(t *testing.T) {
	s := New(media.KindImage, &stubBackend{processErr: &backend.BackendError{Op: "process", Status: 400}},
		WithPrinter(i18n.NewPrinter(language.Turkish)))
	defer s.Close()

	var mu sync.Mutex
	var states []jobs.State
	got := make(chan struct{}, 10)
	detach := s.Attach(RendererFunc(func(state jobs.State, ev jobs.Event) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
		got <- struct{}{}
	}))

	s.OnFileSelected(media.FromBytes("cat.png", "", []byte("png")))
	wait(t, s)
	s.OnSubmit()
	job := wait(t, s)

	for i := 0; i < 4; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatalf("renderer saw only %d events", i)
		}
	}
	detach()
	detach()

	mu.Lock()
	defer mu.Unlock()
	want := []jobs.State{jobs.StateUploading, jobs.StateUploaded, jobs.StateProcessing, jobs.StateFailed}
	for i, state := range want {
		if states[i] != state {
			t.Errorf("event %d: expected %s, got %s", i, state, states[i])
		}
	}

	if line := s.StatusLine(job); line != "İşlem hatası" {
		t.Errorf("unexpected status %q", line)
	}
}

func TestRejectedFileKeepsSession(t *testing.T) {
	s := New(media.KindImage, &stubBackend{})
	defer s.Close()

	err := s.OnFileSelected(media.FromBytes("clip.mp4", "", []byte("mp4")))
	if !errors.Is(err, validation.ErrUnsupportedType) {
		t.Errorf("expected unsupported type, got %v", err)
	}
	if got := s.Printer().Describe(err); got != i18n.MsgUnsupportedImage {
		t.Errorf("unexpected message %q", got)
	}
	if s.View().Job.State != jobs.StateIdle {
		t.Error("rejected file changed state")
	}
}
