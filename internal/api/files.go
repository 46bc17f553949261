package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/validation"
)

// Multipart parts above this size are spooled to disk while parsing.
const formMemory = 32 << 20

// SelectFile handles POST /api/file?kind=
//
// The file is either a multipart "file" part or a "path" inside the media
// root. An optional "duration" field gives a video's length in seconds;
// otherwise ffprobe is asked.
func (h *Handler) SelectFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	kind := s.Kind()

	// Leave headroom over the limit so oversized files still parse and get
	// the proper TooLarge error from validation
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxBytes(kind)+formMemory)
	if err := r.ParseMultipartForm(formMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			verr := validation.New(validation.ReasonTooLarge, "", "request body too large")
			verr.Max = float64(media.MaxBytes(kind))
			h.fail(w, r, kind, verr)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	var (
		f       *media.File
		tmpPath string
		err     error
	)
	if path := r.FormValue("path"); path != "" {
		f, err = h.browser.Open(r.Context(), path)
	} else {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "file required")
			return
		}
		defer file.Close()
		f, tmpPath, err = h.saveUpload(r.Context(), kind, file, header)
	}
	if err != nil {
		h.fail(w, r, kind, err)
		return
	}

	if raw := r.FormValue("duration"); raw != "" {
		secs, perr := strconv.ParseFloat(raw, 64)
		if perr != nil || secs < 0 {
			h.fail(w, r, kind, validation.New(validation.ReasonNotANumber, "duration", strconv.Quote(raw)))
			removeTemp(tmpPath)
			return
		}
		f = f.WithDuration(time.Duration(secs * float64(time.Second)))
	}

	if err := s.OnFileSelected(f); err != nil {
		removeTemp(tmpPath)
		h.fail(w, r, kind, err)
		return
	}
	h.replaceUpload(kind, tmpPath)

	writeJSON(w, http.StatusAccepted, s.View())
}

// saveUpload checks the part against the limits of kind, then copies it into
// the handler's temp dir so it can be probed and streamed to the backend.
func (h *Handler) saveUpload(ctx context.Context, kind media.Kind, file multipart.File, header *multipart.FileHeader) (*media.File, string, error) {
	name := filepath.Base(header.Filename)
	mimeType := media.DetectMIME(name)
	if mimeType == "application/octet-stream" {
		if ct := header.Header.Get("Content-Type"); ct != "" {
			mimeType = ct
		}
	}

	declared := &media.File{Name: name, MIMEType: mimeType, Size: header.Size}
	if err := media.Validate(declared, kind); err != nil {
		return nil, "", err
	}

	tmp, err := os.CreateTemp(h.tempDir, "upload-*"+filepath.Ext(name))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, "", fmt.Errorf("save upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, "", err
	}

	f, err := media.FromPath(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return nil, "", err
	}
	f.Name = name
	f.MIMEType = mimeType

	if kind == media.KindVideo && h.prober != nil {
		if d, err := h.prober.Duration(ctx, tmp.Name()); err == nil {
			f = f.WithDuration(d)
		} else {
			logger.Debug("Could not probe upload", "file", name, "error", err)
		}
	}
	return f, tmp.Name(), nil
}

// replaceUpload records the temp file behind the current selection and
// removes the previous one.
func (h *Handler) replaceUpload(kind media.Kind, tmpPath string) {
	h.uploadsMu.Lock()
	prev := h.uploads[kind]
	if tmpPath == "" {
		delete(h.uploads, kind)
	} else {
		h.uploads[kind] = tmpPath
	}
	h.uploadsMu.Unlock()

	removeTemp(prev)
}

func removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Debug("Could not remove temp file", "path", path, "error", err)
	}
}
