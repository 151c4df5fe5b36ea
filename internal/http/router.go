package httpapi

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID, WithLogging)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	r.Get("/healthz", app.healthHandler)
	r.Get("/debug/metrics", app.metricsHandler)
	r.Handle("/debug/vars", expvar.Handler())
	r.Get("/openapi.yaml", app.openapiHandler)
	r.Get("/docs", app.docsHandler)

	r.Route("/machines", func(r chi.Router) {
		r.Get("/", app.listMachines)
		r.With(app.rejectWhileClosing).Post("/", app.createMachine)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.getMachine)
			r.Delete("/", app.deleteMachine)
			r.Get("/events", app.listEvents)

			r.Group(func(r chi.Router) {
				r.Use(app.rejectWhileClosing)
				r.Post("/coins/{coin}", app.putCoin)
				r.Post("/products/{product}/dispense", app.giveProduct)
				r.Post("/return", app.returnMoney)

				r.Post("/admin/enter", app.enterAdmin)
				r.Post("/admin/exit", app.exitAdmin)
				r.Put("/admin/coins", app.fillCoins)
				r.Post("/admin/products", app.fillProducts)
			})
		})
	})
	return r
}
