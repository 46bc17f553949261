package api

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// registerAPIRoutes registers all API endpoints on the given router
func registerAPIRoutes(r chi.Router, h *Handler) {
	r.Get("/config", h.GetConfig)
	r.Get("/browse", h.Browse)

	// Session state
	r.Get("/session", h.GetSession)
	r.Post("/file", h.SelectFile)
	r.Route("/options/{family}", func(r chi.Router) {
		r.Post("/toggle", h.ToggleFamily)
		r.Post("/custom", h.AddCustom)
		r.Post("/preset", h.SetPreset)
	})
	r.Put("/time", h.SetTime)
	r.Put("/output", h.SetOutput)

	// Processing
	r.Post("/submit", h.Submit)
	r.Get("/download", h.Download)

	// State streams
	r.Get("/events", h.Events)
	r.Get("/ws", h.WebSocket)
}

// NewRouter creates a new HTTP router with all API endpoints. staticFS must
// contain web/templates/index.html.
func NewRouter(h *Handler, staticFS fs.FS) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, accessLog)
	r.Use(cors(h.cfg.AllowedOrigins), locale(h.cfg.Locale))

	r.Route("/api", func(r chi.Router) {
		registerAPIRoutes(r, h)
	})

	// Serve static files from web/templates
	staticSubFS, err := fs.Sub(staticFS, "web/templates")
	if err != nil {
		// Fall back to empty handler if no static files
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Augmentor API - No UI available"))
		})
		return r
	}

	// Serve index.html at root
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		content, err := fs.ReadFile(staticSubFS, "index.html")
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(content)
	})

	return r
}
