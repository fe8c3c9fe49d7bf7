package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Templates
	mux.Handle("GET /api/v1/templates", chain(http.HandlerFunc(h.ListTemplates)))
	mux.Handle("POST /api/v1/templates", chain(http.HandlerFunc(h.CreateTemplate)))
	mux.Handle("GET /api/v1/templates/{id}", chain(http.HandlerFunc(h.GetTemplate)))
	mux.Handle("DELETE /api/v1/templates/{id}", chain(http.HandlerFunc(h.DeleteTemplate)))
	mux.Handle("PUT /api/v1/templates/{id}/active", chain(http.HandlerFunc(h.SetTemplateActive)))
	mux.Handle("POST /api/v1/templates/{id}/steps", chain(http.HandlerFunc(h.AddStep)))
	mux.Handle("POST /api/v1/templates/{id}/transitions", chain(http.HandlerFunc(h.AddTransition)))
	mux.Handle("POST /api/v1/templates/{id}/validate", chain(http.HandlerFunc(h.ValidateTemplate)))

	// Instances
	mux.Handle("GET /api/v1/instances", chain(http.HandlerFunc(h.ListInstances)))
	mux.Handle("POST /api/v1/instances", chain(http.HandlerFunc(h.StartInstance)))
	mux.Handle("GET /api/v1/instances/{id}", chain(http.HandlerFunc(h.GetInstance)))
	mux.Handle("POST /api/v1/instances/{id}/advance", chain(http.HandlerFunc(h.AdvanceInstance)))
	mux.Handle("POST /api/v1/instances/{id}/cancel", chain(http.HandlerFunc(h.CancelInstance)))
	mux.Handle("GET /api/v1/instances/{id}/history", chain(http.HandlerFunc(h.InstanceHistory)))

	// Analytics
	mux.Handle("GET /api/v1/templates/{id}/metrics", chain(http.HandlerFunc(h.TemplateMetrics)))
	mux.Handle("GET /api/v1/templates/{id}/bottlenecks", chain(http.HandlerFunc(h.TemplateBottlenecks)))
}
