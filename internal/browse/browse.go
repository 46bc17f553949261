package browse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/media"
)

// ErrOutsideRoot is returned for paths that escape the media root.
var ErrOutsideRoot = errors.New("path is outside the media root")

// DurationProber reports the duration of a video file. Implemented by
// ffmpeg.Prober.
type DurationProber interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Entry represents a file or directory in the browser
type Entry struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	IsDir    bool          `json:"is_dir"`
	Size     int64         `json:"size"`
	SizeText string        `json:"size_text,omitempty"`
	ModTime  time.Time     `json:"mod_time"`
	Kind     media.Kind    `json:"kind,omitempty"`
	MIMEType string        `json:"mime_type,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	TooLarge bool          `json:"too_large,omitempty"` // over the upload limit of Kind
	// For directories: number of selectable media files directly inside
	FileCount int `json:"file_count,omitempty"`
}

// BrowseResult contains the result of browsing a directory
type BrowseResult struct {
	Path      string   `json:"path"`
	Parent    string   `json:"parent,omitempty"`
	Entries   []*Entry `json:"entries"`
	FileCount int      `json:"file_count"`
	TotalSize int64    `json:"total_size"`
}

// Browser lists the media root for picking input files and output folders.
type Browser struct {
	prober    DurationProber
	mediaRoot string

	// Cache for probed durations (path -> duration)
	cacheMu sync.RWMutex
	cache   map[string]time.Duration
}

// NewBrowser creates a new Browser with the given prober and media root.
// prober may be nil, in which case durations are left unknown.
func NewBrowser(prober DurationProber, mediaRoot string) *Browser {
	// Convert to absolute path for consistent comparisons
	absRoot, err := filepath.Abs(mediaRoot)
	if err != nil {
		absRoot = mediaRoot
	}
	return &Browser{
		prober:    prober,
		mediaRoot: absRoot,
		cache:     make(map[string]time.Duration),
	}
}

// Root returns the absolute media root.
func (b *Browser) Root() string {
	return b.mediaRoot
}

// Resolve makes path absolute, interpreting relative paths against the media
// root, and checks that it stays inside the root.
func (b *Browser) Resolve(path string) (string, error) {
	if path == "" {
		return b.mediaRoot, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.mediaRoot, path)
	}
	cleanPath := filepath.Clean(path)

	rel, err := filepath.Rel(b.mediaRoot, cleanPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return cleanPath, nil
}

// Browse returns the contents of a directory. Only files selectable as kind
// are listed; an empty kind lists images and videos.
func (b *Browser) Browse(ctx context.Context, path string, kind media.Kind) (*BrowseResult, error) {
	cleanPath, err := b.Resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(cleanPath)
	if err != nil {
		return nil, err
	}

	result := &BrowseResult{
		Path:    cleanPath,
		Entries: make([]*Entry, 0, len(entries)),
	}

	// Set parent path (if not at root)
	if cleanPath != b.mediaRoot {
		result.Parent = filepath.Dir(cleanPath)
	}

	var videos []*Entry
	for _, e := range entries {
		// Skip hidden files
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}

		entryPath := filepath.Join(cleanPath, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}

		entry := &Entry{
			Name:    e.Name(),
			Path:    entryPath,
			IsDir:   e.IsDir(),
			ModTime: info.ModTime(),
		}

		if e.IsDir() {
			entry.FileCount = countMedia(entryPath, kind)
			result.Entries = append(result.Entries, entry)
			continue
		}

		mimeType := media.DetectMIME(e.Name())
		fileKind, ok := kindOf(mimeType, kind)
		if !ok {
			continue
		}
		entry.Kind = fileKind
		entry.MIMEType = mimeType
		entry.Size = info.Size()
		entry.SizeText = humanize.IBytes(uint64(info.Size()))
		entry.TooLarge = info.Size() > media.MaxBytes(fileKind)

		result.FileCount++
		result.TotalSize += info.Size()
		result.Entries = append(result.Entries, entry)
		if fileKind == media.KindVideo {
			videos = append(videos, entry)
		}
	}

	b.probeAll(ctx, videos)

	// Sort entries: directories first, then by name
	sort.Slice(result.Entries, func(i, j int) bool {
		if result.Entries[i].IsDir != result.Entries[j].IsDir {
			return result.Entries[i].IsDir // Directories first
		}
		return strings.ToLower(result.Entries[i].Name) < strings.ToLower(result.Entries[j].Name)
	})

	return result, nil
}

// Open resolves path and returns it as a selectable media file. Videos carry
// their probed duration when a prober is available.
func (b *Browser) Open(ctx context.Context, path string) (*media.File, error) {
	cleanPath, err := b.Resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := media.FromPath(cleanPath)
	if err != nil {
		return nil, err
	}
	if media.Accepts(f.MIMEType, media.KindVideo) {
		if d := b.duration(ctx, cleanPath); d > 0 {
			f = f.WithDuration(d)
		}
	}
	return f, nil
}

// probeAll fills in video durations concurrently.
func (b *Browser) probeAll(ctx context.Context, videos []*Entry) {
	if b.prober == nil || len(videos) == 0 {
		return
	}

	// Limit concurrent probes to reduce system load
	const maxConcurrent = 8
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, entry := range videos {
		wg.Add(1)
		go func(entry *Entry) {
			defer wg.Done()

			// Acquire semaphore slot (limits concurrent probes)
			sem <- struct{}{}
			defer func() { <-sem }()

			// each goroutine owns its entry
			entry.Duration = b.duration(ctx, entry.Path)
		}(entry)
	}
	wg.Wait()
}

// duration returns a cached or fresh probe result, zero when unknown.
func (b *Browser) duration(ctx context.Context, path string) time.Duration {
	if b.prober == nil {
		return 0
	}

	// Check cache
	b.cacheMu.RLock()
	if d, ok := b.cache[path]; ok {
		b.cacheMu.RUnlock()
		return d
	}
	b.cacheMu.RUnlock()

	d, err := b.prober.Duration(ctx, path)
	if err != nil {
		logger.Debug("Probe failed", "path", path, "error", err)
		return 0
	}

	// Cache the result
	b.cacheMu.Lock()
	b.cache[path] = d
	b.cacheMu.Unlock()

	return d
}

// ClearCache forgets all probed durations.
func (b *Browser) ClearCache() {
	b.cacheMu.Lock()
	b.cache = make(map[string]time.Duration)
	b.cacheMu.Unlock()
}

// countMedia counts selectable files in a directory (non-recursive for speed)
func countMedia(dirPath string, kind media.Kind) int {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return 0
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := kindOf(media.DetectMIME(e.Name()), kind); ok {
			count++
		}
	}
	return count
}

// kindOf classifies mimeType, restricted to want when it is set.
func kindOf(mimeType string, want media.Kind) (media.Kind, bool) {
	for _, k := range []media.Kind{media.KindImage, media.KindVideo} {
		if want != "" && want != k {
			continue
		}
		if media.Accepts(mimeType, k) {
			return k, true
		}
	}
	return "", false
}
