package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-matcher/internal/constants"
	"github.com/kozaktomas/face-matcher/internal/web/handlers"
	"github.com/kozaktomas/face-matcher/internal/web/middleware"
	"github.com/kozaktomas/face-matcher/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	indexHandler := handlers.NewIndexHandler(s.config.Web.UploadDir, s.flashes, s.embedder, s.matcher, s.templates)
	matchHandler := handlers.NewMatchHandler(s.embedder, s.matcher)
	identitiesHandler := handlers.NewIdentitiesHandler(s.db)

	// HTML front end
	s.router.Get("/", indexHandler.Form)
	s.router.Post("/", indexHandler.Upload)

	// Saved uploads and bundled assets
	s.router.Handle(constants.UploadURLPrefix+"*",
		http.StripPrefix(constants.UploadURLPrefix, noDirListing(http.FileServer(http.Dir(s.config.Web.UploadDir)))))
	s.router.Handle("/assets/*",
		http.StripPrefix("/assets/", noDirListing(http.FileServer(static.GetFileSystem()))))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(s.config.Web.AllowedOrigins))

		r.Get("/health", handlers.HealthCheck)
		r.Get("/identities", identitiesHandler.List)
		r.Post("/match", matchHandler.Match)
	})
}

// noDirListing answers directory requests with 404 instead of an index.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
