package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gwlsn/augmentor/internal/ffmpeg"
	"github.com/gwlsn/augmentor/internal/i18n"
	"github.com/gwlsn/augmentor/internal/jobs"
	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/session"
	"github.com/gwlsn/augmentor/internal/timeline"
)

// listFlag collects a repeatable or comma separated flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// splitAssignment parses "family=value".
func splitAssignment(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("%q is not family=value", s)
	}
	return strings.TrimSpace(name), strings.TrimSpace(value), nil
}

// parseClock reads "m:ss" or plain seconds. Negative fields and seconds of
// 60 or more after a colon are rejected.
func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	invalid := fmt.Errorf("invalid time %q", s)
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err := strconv.Atoi(m)
		if err != nil || mins < 0 {
			return 0, invalid
		}
		secs, err := strconv.Atoi(sec)
		if err != nil || secs < 0 || secs >= 60 {
			return 0, invalid
		}
		return mins*60 + secs, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs < 0 {
		return 0, invalid
	}
	return secs, nil
}

type cliFlags struct {
	config     string
	file       string
	enable     listFlag
	disable    listFlag
	presets    listFlag
	custom     listFlag
	folder     string
	outputPath string
	start      string
	end        string
	duration   float64
	download   string
	locale     string
}

// runCLI drives one session through upload, processing and download.
func runCLI(kind media.Kind, args []string) int {
	var f cliFlags
	fs := flag.NewFlagSet(string(kind), flag.ExitOnError)
	fs.StringVar(&f.config, "config", "", "Path to config file (default: ./config/augmentor.yaml)")
	fs.StringVar(&f.file, "file", "", "File to process (required)")
	fs.Var(&f.enable, "enable", "Option families to enable (repeatable, comma separated)")
	fs.Var(&f.disable, "disable", "Option families to disable (repeatable, comma separated)")
	fs.Var(&f.presets, "preset", "Preset value to select, as family=value (repeatable)")
	fs.Var(&f.custom, "custom", "Custom value to add, as family=value (repeatable)")
	fs.StringVar(&f.folder, "folder", "", "Output folder name on the backend")
	fs.StringVar(&f.outputPath, "output-path", "", "Output path on the backend (default: the backend's current path)")
	fs.StringVar(&f.download, "download", "", "Directory to save the result archive in")
	fs.StringVar(&f.locale, "locale", "", "Message language (en or tr)")
	if kind == media.KindVideo {
		fs.StringVar(&f.start, "start", "", "Start of the time range, m:ss or seconds (default 0)")
		fs.StringVar(&f.end, "end", "", "End of the time range, m:ss or seconds (default: video length)")
		fs.Float64Var(&f.duration, "duration", 0, "Video length in seconds when ffprobe is not available")
	}
	fs.Parse(args)

	if f.file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(configPath(f.config))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if f.locale != "" {
		cfg.Locale = f.locale
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		return 1
	}

	folder := cfg.ImageOutputFolder
	if kind == media.KindVideo {
		folder = cfg.VideoOutputFolder
	}
	s := session.New(kind, client,
		session.WithController(jobs.NewController(kind, client, jobs.WithRequestTimeout(cfg.RequestTimeout))),
		session.WithPrinter(i18n.NewPrinter(i18n.Match(cfg.Locale))),
		session.WithDefaultFolder(folder),
	)
	defer s.Close()
	p := s.Printer()

	fail := func(err error) int {
		fmt.Fprintln(os.Stderr, p.Describe(err))
		return 1
	}

	detach := s.Attach(session.RendererFunc(func(state jobs.State, ev jobs.Event) {
		if line := s.StatusLine(ev.Job); line != "" && state != jobs.StateFailed {
			fmt.Fprintf(os.Stderr, "  %s\n", line)
		}
	}))
	defer detach()

	if f.outputPath != "" {
		s.SetOutputPath(f.outputPath)
	} else {
		s.LoadDefaultOutputPath(ctx)
	}
	if f.folder != "" {
		s.SetOutputFolder(f.folder)
	}

	file, err := media.FromPath(f.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if kind == media.KindVideo {
		file = withDuration(ctx, file, f.duration, cfg.FFprobePath)
	}
	fmt.Println(s.FileInfo(file))

	if err := s.OnFileSelected(file); err != nil {
		return fail(err)
	}

	// Options are set while the upload runs
	for _, name := range f.enable {
		if err := s.OnToggleFamily(name, true); err != nil {
			return fail(err)
		}
	}
	for _, name := range f.disable {
		if err := s.OnToggleFamily(name, false); err != nil {
			return fail(err)
		}
	}
	for _, a := range f.presets {
		name, raw, err := splitAssignment(a)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "-preset %s: %v\n", a, err)
			return 2
		}
		if err := s.AddPreset(name, v); err != nil {
			return fail(err)
		}
	}
	for _, a := range f.custom {
		name, raw, err := splitAssignment(a)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		if _, err := s.OnAddCustom(name, raw); err != nil {
			return fail(err)
		}
	}
	if kind == media.KindVideo {
		if code := applyTimeRange(s, f, file); code != 0 {
			return code
		}
		preview, estimate := s.Preview()
		fmt.Println(preview)
		fmt.Println(p.Sprintf(i18n.MsgEstimate, estimate))
	}

	job, err := s.Wait(ctx)
	if err != nil {
		return fail(err)
	}
	if job.State == jobs.StateFailed {
		fmt.Fprintln(os.Stderr, s.StatusLine(job))
		return 1
	}

	if err := s.OnSubmit(); err != nil {
		return fail(err)
	}
	job, err = s.Wait(ctx)
	if err != nil {
		return fail(err)
	}
	if job.State != jobs.StateCompleted {
		fmt.Fprintln(os.Stderr, s.StatusLine(job))
		return 1
	}

	if f.download == "" {
		if url, err := s.DownloadURL(); err == nil {
			fmt.Println(url)
		}
		return 0
	}
	return download(ctx, s, f.download)
}

// withDuration sets the video length from -duration or ffprobe.
func withDuration(ctx context.Context, file *media.File, declared float64, ffprobePath string) *media.File {
	if declared > 0 {
		return file.WithDuration(time.Duration(declared * float64(time.Second)))
	}
	prober := ffmpeg.NewProber(ffprobePath)
	if !prober.Available() {
		logger.Warn("ffprobe not found; pass -duration to set the video length", "path", ffprobePath)
		return file
	}
	d, err := prober.Duration(ctx, file.Path)
	if err != nil {
		logger.Warn("Could not probe video", "file", file.Name, "error", err)
		return file
	}
	return file.WithDuration(d)
}

func applyTimeRange(s *session.Session, f cliFlags, file *media.File) int {
	if f.start == "" && f.end == "" {
		return 0
	}
	start, end := 0, file.DurationSeconds()
	var err error
	if f.start != "" {
		if start, err = parseClock(f.start); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if f.end != "" {
		if end, err = parseClock(f.end); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	s.SetTimeInputs(timeline.InputsFor(start, end))
	return 0
}

// download saves the archive into dir under the backend's name.
func download(ctx context.Context, s *session.Session, dir string) int {
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	tmp, err := os.CreateTemp(dir, ".augmentor-*.zip")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer os.Remove(tmp.Name())

	name, err := s.OnDownload(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, s.Printer().Describe(err))
		return 1
	}

	dest := filepath.Join(dir, filepath.Base(name))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(dest)
	return 0
}
