package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperterse/tablescope/core/domain/interfaces"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	"github.com/hyperterse/tablescope/core/infrastructure/transport/http/handlers"
)

// RegisterRoutes registers all HTTP routes
func RegisterRoutes(r chi.Router, svc interfaces.BrowserService, cookieMaxAge int, version string) {
	log := logging.New("routes")
	h := handlers.NewBrowserHandler(svc, cookieMaxAge)
	s := h.Session

	r.Get("/heartbeat", h.Heartbeat)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.json", handlers.OpenAPIHandler(r, version))

	r.Route("/api", func(r chi.Router) {
		r.Post("/connect", h.Connect)
		r.Get("/reconnect/{session_id}", h.Reconnect)
		r.Post("/disconnect/{session_id}", h.Disconnect)
		r.Get("/connection-info/{session_id}", h.ConnectionInfo)
		r.Get("/sessions", h.Sessions)
		r.Delete("/sessions/{session_id}", h.DropSession)

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", s(h.Tables))
			r.Route("/{table}", func(r chi.Router) {
				r.Get("/columns", s(h.Columns))
				r.Get("/schema", s(h.Schema))
				r.Get("/count", s(h.Count))
				r.Get("/preview", s(h.Preview))

				r.Get("/records", s(h.Records))
				r.Post("/records", s(h.CreateRecord))
				r.Delete("/records", s(h.BulkDelete))
				r.Get("/records/selected", s(h.SelectedRecords))
				r.Get("/records/{id}", s(h.Record))
				r.Put("/records/{id}", s(h.UpdateRecord))
				r.Post("/records/{id}", s(h.UpdateRecord))
				r.Delete("/records/{id}", s(h.DeleteRecord))
			})
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/status", s(h.CacheStatus))
			r.Get("/health", h.CacheHealth)
			r.Get("/stats", h.CacheStats)
			r.Delete("/clear", s(h.ClearSessionCache))
			r.Delete("/clear/table/{table}", s(h.ClearTableCache))
		})
	})

	routes := 0
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes++
		log.Debugf("  %s %s", method, route)
		return nil
	})
	log.Infof("Routes registered: %d", routes)
}
