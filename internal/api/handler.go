package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gwlsn/augmentor/internal/backend"
	"github.com/gwlsn/augmentor/internal/browse"
	"github.com/gwlsn/augmentor/internal/config"
	"github.com/gwlsn/augmentor/internal/i18n"
	"github.com/gwlsn/augmentor/internal/jobs"
	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/media"
	"github.com/gwlsn/augmentor/internal/options"
	"github.com/gwlsn/augmentor/internal/session"
	"github.com/gwlsn/augmentor/internal/timeline"
	"github.com/gwlsn/augmentor/internal/validation"
)

// Handler provides HTTP API handlers. It keeps one session per media kind,
// matching the image and video pages of the console.
type Handler struct {
	cfg      *config.Config
	backend  session.Backend
	browser  *browse.Browser
	prober   browse.DurationProber
	sessions map[media.Kind]*session.Session
	tempDir  string
	upgrader websocket.Upgrader

	// Uploaded temp file currently selected, per kind
	uploadsMu sync.Mutex
	uploads   map[media.Kind]string
}

// NewHandler creates a new API handler. prober may be nil.
func NewHandler(cfg *config.Config, b session.Backend, browser *browse.Browser, prober browse.DurationProber) (*Handler, error) {
	tempDir, err := os.MkdirTemp("", "augmentor-")
	if err != nil {
		return nil, err
	}

	printer := i18n.NewPrinter(i18n.Match(cfg.Locale))
	h := &Handler{
		cfg:      cfg,
		backend:  b,
		browser:  browser,
		prober:   prober,
		sessions: make(map[media.Kind]*session.Session),
		tempDir:  tempDir,
		uploads:  make(map[media.Kind]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	folders := map[media.Kind]string{
		media.KindImage: cfg.ImageOutputFolder,
		media.KindVideo: cfg.VideoOutputFolder,
	}
	for kind, folder := range folders {
		ctrl := jobs.NewController(kind, b, jobs.WithRequestTimeout(cfg.RequestTimeout))
		h.sessions[kind] = session.New(kind, b,
			session.WithController(ctrl),
			session.WithPrinter(printer),
			session.WithDefaultFolder(folder),
		)
	}
	return h, nil
}

// LoadDefaults fetches the backend's default output path for every session.
func (h *Handler) LoadDefaults(ctx context.Context) {
	for _, s := range h.sessions {
		s.LoadDefaultOutputPath(ctx)
	}
}

// Close abandons in-flight requests and removes uploaded temp files.
func (h *Handler) Close() {
	for _, s := range h.sessions {
		s.Close()
	}
	if err := os.RemoveAll(h.tempDir); err != nil {
		logger.Warn("Could not remove temp dir", "path", h.tempDir, "error", err)
	}
}

// response helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// fail maps err to a status code and a localized message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, kind media.Kind, err error) {
	status, reason := classify(err)
	msg := printerFrom(r.Context()).ForKind(kind).Describe(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("Request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg, Reason: reason})
}

func classify(err error) (int, string) {
	if reason, ok := validation.ReasonOf(err); ok {
		if reason == validation.ReasonUnknownFamily {
			return http.StatusNotFound, string(reason)
		}
		return http.StatusBadRequest, string(reason)
	}
	switch {
	case errors.Is(err, options.ErrPresetOnly):
		return http.StatusBadRequest, "preset_only"
	case errors.Is(err, jobs.ErrAlreadyInFlight):
		return http.StatusConflict, "already_in_flight"
	case errors.Is(err, jobs.ErrNoUpload):
		return http.StatusConflict, "no_upload"
	case errors.Is(err, jobs.ErrNotCompleted):
		return http.StatusConflict, "not_completed"
	case errors.Is(err, jobs.ErrClosed):
		return http.StatusServiceUnavailable, "closed"
	case errors.Is(err, browse.ErrOutsideRoot):
		return http.StatusForbidden, "outside_root"
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, backend.ErrRejected), errors.Is(err, backend.ErrTransport):
		return http.StatusBadGateway, "backend"
	}
	return http.StatusInternalServerError, ""
}

// session resolves ?kind= (default image) to its session.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	raw := r.URL.Query().Get("kind")
	if raw == "" {
		raw = string(media.KindImage)
	}
	kind, err := media.ParseKind(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return h.sessions[kind], true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type familyInfo struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        options.ValueType `json:"type"`
	Bounds      *options.Bounds   `json:"bounds,omitempty"`
	Presets     []float64         `json:"presets"`
	Labels      []string          `json:"labels"`
}

type kindInfo struct {
	AcceptedTypes []string     `json:"accepted_types"`
	MaxBytes      int64        `json:"max_bytes"`
	DefaultFolder string       `json:"default_folder"`
	Families      []familyInfo `json:"families"`
}

// GetConfig handles GET /api/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	p := printerFrom(r.Context())

	kinds := make(map[media.Kind]kindInfo, 2)
	defs := map[media.Kind][]options.Definition{
		media.KindImage: options.ImageFamilies(),
		media.KindVideo: options.VideoFamilies(),
	}
	for kind, families := range defs {
		info := kindInfo{
			AcceptedTypes: media.AcceptedTypes(kind),
			MaxBytes:      media.MaxBytes(kind),
			DefaultFolder: h.sessions[kind].View().OutputFolder,
		}
		for _, def := range families {
			fi := familyInfo{
				Name:        def.Name,
				DisplayName: p.FamilyName(def.Name),
				Type:        def.Type,
				Bounds:      def.Bounds,
				Presets:     def.Presets,
				Labels:      make([]string, len(def.Presets)),
			}
			for i, v := range def.Presets {
				if def.Label != nil {
					fi.Labels[i] = def.Label(v)
				} else {
					fi.Labels[i] = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
			info.Families = append(info.Families, fi)
		}
		kinds[kind] = info
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"backend_url":     h.cfg.ResolvedBackendURL(),
		"environment":     h.cfg.Environment,
		"locale":          p.Tag().String(),
		"media_path":      h.browser.Root(),
		"request_timeout": h.cfg.RequestTimeout.String(),
		"kinds":           kinds,
	})
}

// GetSession handles GET /api/session?kind=
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// ToggleRequest is the body of POST /api/options/{family}/toggle
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleFamily handles POST /api/options/{family}/toggle
func (h *Handler) ToggleFamily(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ToggleRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.OnToggleFamily(chi.URLParam(r, "family"), req.Enabled); err != nil {
		h.fail(w, r, s.Kind(), err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// CustomRequest is the body of POST /api/options/{family}/custom. Value is
// the raw text from the input field.
type CustomRequest struct {
	Value string `json:"value"`
}

// AddCustom handles POST /api/options/{family}/custom
func (h *Handler) AddCustom(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req CustomRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.OnAddCustom(chi.URLParam(r, "family"), req.Value)
	if err != nil {
		h.fail(w, r, s.Kind(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"value":   v,
		"session": s.View(),
	})
}

// PresetRequest is the body of POST /api/options/{family}/preset
type PresetRequest struct {
	Value    float64 `json:"value"`
	Selected bool    `json:"selected"`
}

// SetPreset handles POST /api/options/{family}/preset (a preset checkbox)
func (h *Handler) SetPreset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req PresetRequest
	if !decode(w, r, &req) {
		return
	}
	family := chi.URLParam(r, "family")
	var err error
	if req.Selected {
		err = s.AddPreset(family, req.Value)
	} else {
		err = s.RemoveValue(family, req.Value)
	}
	if err != nil {
		h.fail(w, r, s.Kind(), err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// SetTime handles PUT /api/time with the four time fields
func (h *Handler) SetTime(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var in timeline.Inputs
	if !decode(w, r, &in) {
		return
	}
	s.SetTimeInputs(in)

	preview, estimate := s.Preview()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"range":    in.Range(),
		"preview":  preview,
		"estimate": estimate,
	})
}

// OutputRequest is the body of PUT /api/output. Absent fields are unchanged.
type OutputRequest struct {
	Folder *string `json:"folder,omitempty"`
	Path   *string `json:"path,omitempty"`
}

// SetOutput handles PUT /api/output
func (h *Handler) SetOutput(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req OutputRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Folder != nil {
		s.SetOutputFolder(*req.Folder)
	}
	if req.Path != nil {
		s.SetOutputPath(*req.Path)
	}
	writeJSON(w, http.StatusOK, s.View())
}

// Submit handles POST /api/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.OnSubmit(); err != nil {
		h.fail(w, r, s.Kind(), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.View())
}

// attachmentWriter sets download headers on the first write, so a backend
// failure before any bytes arrive can still be reported as JSON.
type attachmentWriter struct {
	w       http.ResponseWriter
	name    string
	started bool
}

func (a *attachmentWriter) start() {
	if a.started {
		return
	}
	a.started = true
	a.w.Header().Set("Content-Type", "application/zip")
	a.w.Header().Set("Content-Disposition", `attachment; filename="`+a.name+`"`)
	a.w.WriteHeader(http.StatusOK)
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	a.start()
	return a.w.Write(p)
}

// Download handles GET /api/download by streaming the archive from the backend
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ref, err := s.Controller().ArtifactRef()
	if err != nil {
		h.fail(w, r, s.Kind(), err)
		return
	}

	aw := &attachmentWriter{w: w, name: ref}
	if _, err := s.OnDownload(r.Context(), aw); err != nil {
		if !aw.started {
			h.fail(w, r, s.Kind(), err)
			return
		}
		logger.Warn("Download interrupted", "zip_file", ref, "error", err)
		return
	}
	aw.start()
}

// Browse handles GET /api/browse?path=...&kind=...&refresh=1
//
// refresh drops cached video durations so files replaced on disk are probed
// again.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	var kind media.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, err := media.ParseKind(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind = k
	}
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		h.browser.ClearCache()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := h.browser.Browse(ctx, r.URL.Query().Get("path"), kind)
	if err != nil {
		h.fail(w, r, kind, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
