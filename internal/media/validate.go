package media

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/gwlsn/augmentor/internal/validation"
)

// Size limits. A file is rejected only when strictly larger than the limit.
const (
	MaxImageBytes int64 = 16 * 1024 * 1024
	MaxVideoBytes int64 = 100 * 1024 * 1024
)

var (
	imageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/bmp"}
	videoTypes = []string{"video/mp4", "video/avi", "video/mov", "video/mkv", "video/wmv"}
)

// AcceptedTypes lists the MIME types accepted for kind.
func AcceptedTypes(kind Kind) []string {
	if kind == KindVideo {
		return videoTypes
	}
	return imageTypes
}

// MaxBytes returns the size limit for kind.
func MaxBytes(kind Kind) int64 {
	if kind == KindVideo {
		return MaxVideoBytes
	}
	return MaxImageBytes
}

// Validate checks f against the type and size rules of kind. It returns nil
// when the file is acceptable, otherwise a *validation.Error with reason
// UnsupportedType or TooLarge. The type check runs first.
func Validate(f *File, kind Kind) error {
	if f == nil {
		return validation.New(validation.ReasonUnsupportedType, "", "no file")
	}
	if !Accepts(f.MIMEType, kind) {
		return validation.New(validation.ReasonUnsupportedType, f.Name, f.MIMEType)
	}
	limit := MaxBytes(kind)
	if f.Size > limit {
		err := validation.New(validation.ReasonTooLarge, f.Name,
			fmt.Sprintf("%s > %s", humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(limit))))
		err.Max = float64(limit)
		return err
	}
	return nil
}

// Accepts reports whether mimeType is one of the accepted types of kind.
func Accepts(mimeType string, kind Kind) bool {
	for _, t := range AcceptedTypes(kind) {
		if t == mimeType {
			return true
		}
	}
	return false
}
