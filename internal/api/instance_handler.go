package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
	"github.com/shaiso/Vizir/internal/engine"
	"github.com/shaiso/Vizir/internal/repo"
)

// ListInstances возвращает instances с фильтрацией.
// GET /api/v1/instances?template_id=&entity_type=&entity_id=&status=&limit=&offset=
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseInstanceFilter(w, r)
	if !ok {
		return
	}

	instances, err := h.instanceRepo.List(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]InstanceResponse, len(instances))
	for i, inst := range instances {
		result[i] = InstanceFromDomain(inst)
	}

	List(w, result, len(result))
}

// StartInstance запускает новый instance по активному template.
// POST /api/v1/instances
func (h *Handler) StartInstance(w http.ResponseWriter, r *http.Request) {
	var req StartInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.TemplateID == uuid.Nil {
		BadRequest(w, "template_id is required")
		return
	}
	if req.EntityType == "" || req.EntityID == "" {
		BadRequest(w, "entity_type and entity_id are required")
		return
	}
	if req.InitiatedBy == "" {
		BadRequest(w, "initiated_by is required")
		return
	}

	inst, err := h.engine.StartInstance(r.Context(), req.TemplateID, req.EntityType, req.EntityID, req.InitiatedBy)
	if HandleError(w, h.logger, err, "template not found") {
		return
	}

	Created(w, InstanceFromDomain(*inst))
}

// GetInstance возвращает instance по ID.
// GET /api/v1/instances/{id}
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	inst, err := h.instanceRepo.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "instance not found") {
		return
	}

	Success(w, InstanceFromDomain(*inst))
}

// AdvanceInstance применяет действие актора к instance.
// POST /api/v1/instances/{id}/advance
func (h *Handler) AdvanceInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.ActorID == "" || req.ActorRole == "" {
		BadRequest(w, "actor_id and actor_role are required")
		return
	}
	if req.Action == "" {
		BadRequest(w, "action is required")
		return
	}

	inst, err := h.engine.Advance(r.Context(), engine.AdvanceCommand{
		InstanceID: id,
		ActorID:    req.ActorID,
		ActorRole:  req.ActorRole,
		Action:     req.Action,
		Comments:   req.Comments,
		Metadata:   req.Metadata,
	})
	if HandleError(w, h.logger, err, "instance not found") {
		return
	}

	Success(w, InstanceFromDomain(*inst))
}

// CancelInstance отменяет instance.
// POST /api/v1/instances/{id}/cancel
func (h *Handler) CancelInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.ActorID == "" {
		BadRequest(w, "actor_id is required")
		return
	}

	inst, err := h.engine.Cancel(r.Context(), id, req.ActorID, req.ActorRole, req.Comments)
	if HandleError(w, h.logger, err, "instance not found") {
		return
	}

	Success(w, InstanceFromDomain(*inst))
}

// InstanceHistory возвращает execution-строки instance в хронологии.
// GET /api/v1/instances/{id}/history
func (h *Handler) InstanceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	// Проверяем, что instance существует
	_, err = h.instanceRepo.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "instance not found") {
		return
	}

	executions, err := h.executionRepo.ListByInstance(r.Context(), id)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionResponse, len(executions))
	for i, e := range executions {
		result[i] = ExecutionFromDomain(e)
	}

	List(w, result, len(result))
}

// parseInstanceFilter разбирает query-параметры фильтра instances.
func parseInstanceFilter(w http.ResponseWriter, r *http.Request) (repo.InstanceFilter, bool) {
	q := r.URL.Query()

	filter := repo.InstanceFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Status:     domain.InstanceStatus(q.Get("status")),
		Limit:      50,
	}

	if raw := q.Get("template_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			BadRequest(w, "invalid template_id")
			return filter, false
		}
		filter.TemplateID = &id
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			BadRequest(w, "invalid limit")
			return filter, false
		}
		filter.Limit = min(n, 500)
	}

	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			BadRequest(w, "invalid offset")
			return filter, false
		}
		filter.Offset = n
	}

	return filter, true
}
