package media

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Kind selects which acceptance rules apply to a file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Output folders used when the user leaves the field blank.
const (
	DefaultImageFolder = "processed_images"
	DefaultVideoFolder = "video_frames"
)

// DefaultFolder returns the output folder for kind.
func DefaultFolder(kind Kind) string {
	if kind == KindVideo {
		return DefaultVideoFolder
	}
	return DefaultImageFolder
}

// ParseKind maps "image"/"video" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindImage):
		return KindImage, nil
	case string(KindVideo):
		return KindVideo, nil
	}
	return "", fmt.Errorf("unknown media kind: %q", s)
}

// File is a user-selected media blob. It is never mutated after selection; a
// re-selection produces a new File.
type File struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`

	// Duration is the playable length of a video, zero when unknown.
	Duration time.Duration `json:"duration,omitempty"`

	// Path is the local file behind FromPath, empty otherwise.
	Path string `json:"-"`

	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the file contents.
func (f *File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("media: %s has no content", f.Name)
	}
	return f.open()
}

// WithDuration returns a copy of f carrying the given duration.
func (f *File) WithDuration(d time.Duration) *File {
	cp := *f
	cp.Duration = d
	return &cp
}

// DurationSeconds is the duration truncated to whole seconds.
func (f *File) DurationSeconds() int {
	return int(f.Duration / time.Second)
}

// Info renders the one-line description shown next to the preview.
func (f *File) Info() string {
	parts := []string{
		"File: " + f.Name,
		"Size: " + humanize.IBytes(uint64(f.Size)),
	}
	if f.Duration > 0 {
		secs := f.DurationSeconds()
		parts = append(parts, fmt.Sprintf("Duration: %d:%02d", secs/60, secs%60))
	}
	parts = append(parts, "Type: "+f.MIMEType)
	return strings.Join(parts, " | ")
}

// FromPath builds a File backed by a local path. The MIME type is derived
// from the extension, the way a browser file picker reports it.
func FromPath(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("media: %s is a directory", path)
	}
	return &File{
		Name:     filepath.Base(path),
		MIMEType: DetectMIME(path),
		Size:     info.Size(),
		Path:     path,
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromBytes builds an in-memory File. An empty mimeType is detected from name.
func FromBytes(name, mimeType string, data []byte) *File {
	if mimeType == "" {
		mimeType = DetectMIME(name)
	}
	return &File{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".mp4":  "video/mp4",
	".avi":  "video/avi",
	".mov":  "video/mov",
	".mkv":  "video/mkv",
	".wmv":  "video/wmv",
}

// DetectMIME guesses a MIME type from a file name. Unknown extensions yield
// "application/octet-stream".
func DetectMIME(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
		return t
	}
	return "application/octet-stream"
}
