// Package session holds everything one user works with at a time: the file
// being processed, the option set, the time range inputs and output settings.
// Presentations drive it through Adapter and watch it through Renderer.
package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/gwlsn/augmentor/internal/backend"
	"github.com/gwlsn/augmentor/internal/i18n"
	"github.com/gwlsn/augmentor/internal/jobs"
	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/options"
	"github.com/gwlsn/augmentor/internal/timeline"
)

// Adapter is what a presentation calls in response to user input.
type Adapter interface {
	OnFileSelected(f *media.File) error
	OnToggleFamily(name string, enabled bool) error
	OnAddCustom(name, raw string) (float64, error)
	OnSubmit() error
	OnDownload(ctx context.Context, w io.Writer) (string, error)
}

// Renderer is told about every state change of the current job.
type Renderer interface {
	OnStateChanged(state jobs.State, ev jobs.Event)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(state jobs.State, ev jobs.Event)

func (f RendererFunc) OnStateChanged(state jobs.State, ev jobs.Event) { f(state, ev) }

// Backend is the processing service as the session needs it. Implemented by
// backend.Client.
type Backend interface {
	jobs.Backend
	OutputPaths(ctx context.Context) (*backend.OutputPaths, error)
	Download(ctx context.Context, zipFile string, w io.Writer) (int64, error)
	DownloadURL(zipFile string) string
}

// Session implements Adapter for one media kind.
type Session struct {
	id      string
	kind    media.Kind
	backend Backend
	ctrl    *jobs.Controller
	printer *i18n.Printer

	mu            sync.Mutex
	opts          *options.Set
	times         timeline.Inputs
	outputFolder  string
	defaultFolder string
	outputPath    *string
}

var _ Adapter = (*Session)(nil)

// Option customises a Session.
type Option func(*Session)

// WithPrinter sets the language of status and error messages.
func WithPrinter(p *i18n.Printer) Option {
	return func(s *Session) { s.printer = p }
}

// WithDefaultFolder replaces the folder sent when the user leaves it blank.
func WithDefaultFolder(folder string) Option {
	return func(s *Session) {
		if f := strings.TrimSpace(folder); f != "" {
			s.defaultFolder = f
		}
	}
}

// WithController supplies a preconfigured controller, e.g. one with a
// request timeout.
func WithController(c *jobs.Controller) Option {
	return func(s *Session) { s.ctrl = c }
}

// New creates an idle session for kind.
func New(kind media.Kind, b Backend, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		kind:    kind,
		backend: b,
		printer: i18n.NewPrinter(language.English),
	}
	if kind == media.KindVideo {
		s.opts = options.NewVideoSet()
	} else {
		s.opts = options.NewImageSet()
	}
	s.defaultFolder = media.DefaultFolder(kind)
	for _, opt := range opts {
		opt(s)
	}
	if s.ctrl == nil {
		s.ctrl = jobs.NewController(kind, b)
	}
	s.printer = s.printer.ForKind(kind)
	return s
}

// ID identifies the session.
func (s *Session) ID() string { return s.id }

// Kind returns the media kind the session accepts.
func (s *Session) Kind() media.Kind { return s.kind }

// Printer returns the session's message printer.
func (s *Session) Printer() *i18n.Printer { return s.printer }

// Controller exposes the job controller for waiting and subscriptions.
func (s *Session) Controller() *jobs.Controller { return s.ctrl }

// Close abandons in-flight requests.
func (s *Session) Close() {
	s.ctrl.Close()
}

// Attach delivers state changes to r until the returned func is called.
func (s *Session) Attach(r Renderer) (detach func()) {
	events := s.ctrl.Subscribe()
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				r.OnStateChanged(ev.Job.State, ev)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
			s.ctrl.Unsubscribe(events)
		})
	}
}

// LoadDefaultOutputPath asks the backend for its current output path and
// uses it unless the user already chose one. Failures are logged and
// otherwise ignored.
func (s *Session) LoadDefaultOutputPath(ctx context.Context) {
	paths, err := s.backend.OutputPaths(ctx)
	if err != nil {
		logger.Debug("Default output path unavailable", "error", err)
		return
	}
	if paths.CurrentPath == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outputPath == nil {
		p := paths.CurrentPath
		s.outputPath = &p
	}
}

// OnFileSelected starts a new job for f. For videos the end of the time range
// is set to the media duration.
func (s *Session) OnFileSelected(f *media.File) error {
	if err := s.ctrl.SelectFile(f); err != nil {
		return err
	}
	if s.kind == media.KindVideo {
		s.mu.Lock()
		s.times = timeline.InputsFor(0, f.DurationSeconds())
		s.mu.Unlock()
	}
	return nil
}

// OnToggleFamily enables or disables an option family.
func (s *Session) OnToggleFamily(name string, enabled bool) error {
	return s.opts.Toggle(name, enabled)
}

// OnAddCustom validates raw against the family bounds and selects it.
func (s *Session) OnAddCustom(name, raw string) (float64, error) {
	return s.opts.AddCustom(name, raw)
}

// OnSubmit sends the current options for processing.
func (s *Session) OnSubmit() error {
	s.mu.Lock()
	sub := jobs.Submission{
		Options:      s.opts,
		OutputFolder: s.folderLocked(),
		OutputPath:   s.outputPath,
		TimeRange:    s.times.Range(),
	}
	s.mu.Unlock()

	return s.ctrl.Submit(sub)
}

// OnDownload streams the completed job's archive to w and returns its name.
func (s *Session) OnDownload(ctx context.Context, w io.Writer) (string, error) {
	ref, err := s.ctrl.ArtifactRef()
	if err != nil {
		return "", err
	}
	n, err := s.backend.Download(ctx, ref, w)
	if err != nil {
		return "", err
	}
	logger.Info("Archive downloaded", "zip_file", ref, "size", humanize.IBytes(uint64(n)))
	return ref, nil
}

// DownloadURL is the backend URL of the completed job's archive.
func (s *Session) DownloadURL() (string, error) {
	ref, err := s.ctrl.ArtifactRef()
	if err != nil {
		return "", err
	}
	return s.backend.DownloadURL(ref), nil
}

// AddPreset selects a preset value. Values outside the family's catalog and
// bounds are rejected.
func (s *Session) AddPreset(name string, v float64) error {
	return s.opts.Select(name, v)
}

// RemoveValue deselects a value.
func (s *Session) RemoveValue(name string, v float64) error {
	return s.opts.Remove(name, v)
}

// SetTimeInputs replaces the four time fields.
func (s *Session) SetTimeInputs(in timeline.Inputs) {
	s.mu.Lock()
	s.times = in
	s.mu.Unlock()
}

// SetOutputFolder sets the output folder name; blank means the default.
func (s *Session) SetOutputFolder(folder string) {
	s.mu.Lock()
	s.outputFolder = strings.TrimSpace(folder)
	s.mu.Unlock()
}

// SetOutputPath chooses where the backend writes results; blank clears it.
func (s *Session) SetOutputPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path = strings.TrimSpace(path); path == "" {
		s.outputPath = nil
		return
	}
	s.outputPath = &path
}

func (s *Session) folderLocked() string {
	if s.outputFolder != "" {
		return s.outputFolder
	}
	return s.defaultFolder
}

// Wait blocks until the current job has no request in flight.
func (s *Session) Wait(ctx context.Context) (*jobs.Job, error) {
	return s.ctrl.Wait(ctx)
}

// Preview describes the selected time range and how many frames it would
// produce with the selected intervals.
func (s *Session) Preview() (string, int) {
	s.mu.Lock()
	r := s.times.Range()
	s.mu.Unlock()

	text := s.printer.Sprintf(i18n.MsgSelectedRange, timeline.Clock(r.Start), timeline.Clock(r.End), max(r.Duration(), 0))
	return text, timeline.Estimate(r, s.opts.Intervals())
}

// StatusLine renders the job state as a message for the user.
func (s *Session) StatusLine(job *jobs.Job) string {
	switch job.State {
	case jobs.StateUploaded:
		return s.printer.Sprintf(i18n.MsgUploaded)
	case jobs.StateUploading, jobs.StateProcessing:
		return s.printer.Sprintf(i18n.MsgProcessing)
	case jobs.StateCompleted:
		if job.Result != nil {
			return s.printer.Sprintf(i18n.MsgCompleted, job.Result.Message)
		}
	case jobs.StateFailed:
		if job.Err != nil {
			return s.printer.Describe(job.Err)
		}
		return job.Error
	}
	return ""
}

// FileInfo renders the one-line description of the selected file.
func (s *Session) FileInfo(f *media.File) string {
	if f == nil {
		return ""
	}
	size := humanize.IBytes(uint64(f.Size))
	if s.kind == media.KindVideo && f.Duration > 0 {
		return s.printer.Sprintf(i18n.MsgFileInfoVideo, f.Name, size, timeline.Clock(f.DurationSeconds()), f.MIMEType)
	}
	return s.printer.Sprintf(i18n.MsgFileInfo, f.Name, size, f.MIMEType)
}

// FamilyView is one option family as a presentation shows it.
type FamilyView struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        options.ValueType `json:"type"`
	Enabled     bool              `json:"enabled"`
	Values      []float64         `json:"values"`
	Labels      []string          `json:"labels"`
	Bounds      *options.Bounds   `json:"bounds,omitempty"`
}

// View is a point-in-time picture of the whole session.
type View struct {
	ID           string           `json:"id"`
	Kind         media.Kind       `json:"kind"`
	Job          *jobs.Job        `json:"job"`
	Status       string           `json:"status,omitempty"`
	FileInfo     string           `json:"file_info,omitempty"`
	Options      []FamilyView     `json:"options"`
	Time         *timeline.Inputs `json:"time,omitempty"`
	Preview      string           `json:"preview,omitempty"`
	Estimate     int              `json:"estimate,omitempty"`
	OutputFolder string           `json:"output_folder"`
	OutputPath   string           `json:"output_path,omitempty"`
	DownloadURL  string           `json:"download_url,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// View returns the current picture of the session.
func (s *Session) View() *View {
	job := s.ctrl.Snapshot()
	v := &View{
		ID:        s.id,
		Kind:      s.kind,
		Job:       job,
		Status:    s.StatusLine(job),
		FileInfo:  s.FileInfo(job.File),
		UpdatedAt: job.UpdatedAt,
	}

	for _, f := range s.opts.Families() {
		v.Options = append(v.Options, FamilyView{
			Name:        f.Name,
			DisplayName: s.printer.FamilyName(f.Name),
			Type:        f.Type,
			Enabled:     f.Enabled,
			Values:      f.Values,
			Labels:      f.Labels(),
			Bounds:      f.Bounds,
		})
	}

	s.mu.Lock()
	v.OutputFolder = s.folderLocked()
	if s.outputPath != nil {
		v.OutputPath = *s.outputPath
	}
	times := s.times
	s.mu.Unlock()

	if s.kind == media.KindVideo {
		v.Time = &times
		v.Preview, v.Estimate = s.Preview()
	}
	if url, err := s.DownloadURL(); err == nil {
		v.DownloadURL = url
	}
	return v
}
