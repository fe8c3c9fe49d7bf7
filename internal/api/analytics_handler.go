package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TemplateMetrics возвращает сводку по instances шаблона за период.
// GET /api/v1/templates/{id}/metrics?from=&to=
//
// from/to — RFC 3339; по умолчанию последние 30 дней.
func (h *Handler) TemplateMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	_, err = h.templateRepo.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(w, "invalid from: expected RFC 3339")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(w, "invalid to: expected RFC 3339")
			return
		}
	}
	if !from.Before(to) {
		BadRequest(w, "from must be before to")
		return
	}

	metrics, err := h.analyzer.GetMetrics(r.Context(), id, from, to)
	if HandleError(w, h.logger, err, "") {
		return
	}

	Success(w, metrics)
}

// TemplateBottlenecks возвращает отчёт об узких местах шаблона.
// GET /api/v1/templates/{id}/bottlenecks
func (h *Handler) TemplateBottlenecks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	_, err = h.templateRepo.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	report, err := h.analyzer.GetBottlenecks(r.Context(), id)
	if HandleError(w, h.logger, err, "") {
		return
	}

	Success(w, report)
}
