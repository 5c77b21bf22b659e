package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"clipforge/internal/httpapi/handlers"
	"clipforge/internal/httpkit"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/pkg/middleware"
	"clipforge/internal/ports"
)

type Deps struct {
	Store ports.Store
	Queue ports.JobQueue
	SP    ports.StorageProvider
	Log   *logger.Logger

	CORSOrigins []string
	// RequestTimeout bounds JSON endpoints. Downloads are exempt.
	RequestTimeout time.Duration

	MaxScriptLength int
	ImageCount      int
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}))

	h := handlers.New(handlers.Deps{
		Store:           d.Store,
		Queue:           d.Queue,
		SP:              d.SP,
		Log:             log,
		MaxScriptLength: d.MaxScriptLength,
		ImageCount:      d.ImageCount,
	})
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// ---- STREAMING ----
		r.Get("/download/{videoID}", wrap(h.Download))
		r.Get("/video/{videoID}/thumbnail", wrap(h.Thumbnail))

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(d.RequestTimeout))

			// ---- JOBS ----
			r.Post("/create-video", wrap(h.CreateVideo))
			r.Get("/job-status/{jobID}", wrap(h.JobStatus))
			r.Get("/jobs", wrap(h.ListJobs))

			// ---- VIDEOS ----
			r.Get("/all-videos", wrap(h.AllVideos))
			r.Get("/videos/search", wrap(h.SearchVideos))
			r.Get("/video/{videoID}", wrap(h.GetVideo))
			r.Delete("/video/{videoID}", wrap(h.DeleteVideo))

			// ---- CATALOG ----
			r.Get("/config", h.Config)
			r.Get("/styles", h.Styles)
			r.Get("/voices", h.Voices)
			r.Get("/formats", h.Formats)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpkit.WriteErr(w, http.StatusNotFound, "NOT_FOUND", "route not found", map[string]any{"path": r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpkit.WriteErr(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	return r
}
