package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
	"github.com/shaiso/Vizir/internal/engine"
)

// ListTemplates возвращает список всех templates.
// GET /api/v1/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateRepo.List(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		result[i] = TemplateFromDomain(t)
	}

	List(w, result, len(result))
}

// CreateTemplate создаёт новый template (неактивный, без шагов).
// POST /api/v1/templates
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.EntityType == "" {
		BadRequest(w, "entity_type is required")
		return
	}

	tpl := &domain.WorkflowTemplate{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		EntityType:  req.EntityType,
		IsActive:    false,
		CreatedAt:   time.Now(),
	}

	if err := h.templateRepo.Create(r.Context(), tpl); err != nil {
		HandleError(w, h.logger, err, "")
		return
	}

	Created(w, TemplateFromDomain(*tpl))
}

// GetTemplate возвращает template с шагами и переходами.
// GET /api/v1/templates/{id}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	tpl, err := h.templateRepo.GetFull(r.Context(), id)
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	Success(w, TemplateFromDomain(*tpl))
}

// DeleteTemplate удаляет template.
// Отклоняется с 422, если на template ссылаются instances.
// DELETE /api/v1/templates/{id}
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	if err := h.templateRepo.Delete(r.Context(), id); err != nil {
		HandleError(w, h.logger, err, "template not found")
		return
	}

	NoContent(w)
}

// SetTemplateActive включает или выключает template.
// PUT /api/v1/templates/{id}/active
func (h *Handler) SetTemplateActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.templateRepo.SetActive(r.Context(), id, req.IsActive); err != nil {
		HandleError(w, h.logger, err, "template not found")
		return
	}

	tpl, err := h.templateRepo.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	Success(w, TemplateFromDomain(*tpl))
}

// AddStep добавляет шаг к template.
// POST /api/v1/templates/{id}/steps
func (h *Handler) AddStep(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	var req AddStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.StepOrder < 1 {
		BadRequest(w, "step_order must be positive")
		return
	}
	if req.RequiredRole == "" {
		BadRequest(w, "required_role is required")
		return
	}
	if len(req.Actions) == 0 {
		BadRequest(w, "actions must be non-empty")
		return
	}

	// Проверяем, что template существует
	_, err = h.templateRepo.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	step := &domain.WorkflowStep{
		ID:           uuid.New(),
		TemplateID:   id,
		Name:         req.Name,
		StepOrder:    req.StepOrder,
		RequiredRole: req.RequiredRole,
		Actions:      req.Actions,
		AutoAdvance:  req.AutoAdvance,
		TimeoutHours: req.TimeoutHours,
	}

	if err := h.templateRepo.AddStep(r.Context(), step); err != nil {
		HandleError(w, h.logger, err, "template not found")
		return
	}

	Created(w, StepFromDomain(*step))
}

// AddTransition добавляет переход к template.
// POST /api/v1/templates/{id}/transitions
func (h *Handler) AddTransition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	var req AddTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.FromStepID == uuid.Nil || req.ToStepID == uuid.Nil {
		BadRequest(w, "from_step_id and to_step_id are required")
		return
	}
	if req.Condition == "" {
		BadRequest(w, "condition is required")
		return
	}

	// Проверяем, что template существует
	_, err = h.templateRepo.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	tr := &domain.WorkflowTransition{
		ID:         uuid.New(),
		TemplateID: id,
		FromStepID: req.FromStepID,
		ToStepID:   req.ToStepID,
		Condition:  req.Condition,
		Priority:   req.Priority,
	}

	if err := h.templateRepo.AddTransition(r.Context(), tr); err != nil {
		HandleError(w, h.logger, err, "template not found")
		return
	}

	Created(w, TransitionFromDomain(*tr))
}

// ValidateTemplate выполняет структурную проверку template.
// Возвращает 200 с перечнем проблем; невалидный шаблон — не ошибка
// запроса.
// POST /api/v1/templates/{id}/validate
func (h *Handler) ValidateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid template id")
		return
	}

	tpl, err := h.templateRepo.GetFull(r.Context(), id)
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	result := engine.ValidateTemplate(tpl)
	if result.Issues == nil {
		result.Issues = []engine.Issue{}
	}

	Success(w, result)
}
