package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
)

// Template DTOs

// CreateTemplateRequest — запрос на создание template.
type CreateTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	EntityType  string `json:"entity_type"`
}

// SetActiveRequest — запрос на включение/выключение template.
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// TemplateResponse — ответ с template.
type TemplateResponse struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	EntityType  string               `json:"entity_type"`
	IsActive    bool                 `json:"is_active"`
	Steps       []StepResponse       `json:"steps,omitempty"`
	Transitions []TransitionResponse `json:"transitions,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// TemplateFromDomain конвертирует domain.WorkflowTemplate в TemplateResponse.
func TemplateFromDomain(t domain.WorkflowTemplate) TemplateResponse {
	resp := TemplateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		EntityType:  t.EntityType,
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
	}
	for _, s := range t.Steps {
		resp.Steps = append(resp.Steps, StepFromDomain(s))
	}
	for _, tr := range t.Transitions {
		resp.Transitions = append(resp.Transitions, TransitionFromDomain(tr))
	}
	return resp
}

// Step DTOs

// AddStepRequest — запрос на добавление шага.
type AddStepRequest struct {
	Name         string   `json:"name"`
	StepOrder    int      `json:"step_order"`
	RequiredRole string   `json:"required_role"`
	Actions      []string `json:"actions"`
	AutoAdvance  bool     `json:"auto_advance,omitempty"`
	TimeoutHours *int     `json:"timeout_hours,omitempty"`
}

// StepResponse — ответ с шагом.
type StepResponse struct {
	ID           uuid.UUID `json:"id"`
	TemplateID   uuid.UUID `json:"template_id"`
	Name         string    `json:"name"`
	StepOrder    int       `json:"step_order"`
	RequiredRole string    `json:"required_role"`
	Actions      []string  `json:"actions"`
	AutoAdvance  bool      `json:"auto_advance"`
	TimeoutHours *int      `json:"timeout_hours,omitempty"`
}

// StepFromDomain конвертирует domain.WorkflowStep в StepResponse.
func StepFromDomain(s domain.WorkflowStep) StepResponse {
	return StepResponse{
		ID:           s.ID,
		TemplateID:   s.TemplateID,
		Name:         s.Name,
		StepOrder:    s.StepOrder,
		RequiredRole: s.RequiredRole,
		Actions:      s.Actions,
		AutoAdvance:  s.AutoAdvance,
		TimeoutHours: s.TimeoutHours,
	}
}

// Transition DTOs

// AddTransitionRequest — запрос на добавление перехода.
type AddTransitionRequest struct {
	FromStepID uuid.UUID `json:"from_step_id"`
	ToStepID   uuid.UUID `json:"to_step_id"`
	Condition  string    `json:"condition"`
	Priority   int       `json:"priority,omitempty"`
}

// TransitionResponse — ответ с переходом.
type TransitionResponse struct {
	ID         uuid.UUID `json:"id"`
	TemplateID uuid.UUID `json:"template_id"`
	FromStepID uuid.UUID `json:"from_step_id"`
	ToStepID   uuid.UUID `json:"to_step_id"`
	Condition  string    `json:"condition"`
	Priority   int       `json:"priority"`
}

// TransitionFromDomain конвертирует domain.WorkflowTransition в TransitionResponse.
func TransitionFromDomain(t domain.WorkflowTransition) TransitionResponse {
	return TransitionResponse{
		ID:         t.ID,
		TemplateID: t.TemplateID,
		FromStepID: t.FromStepID,
		ToStepID:   t.ToStepID,
		Condition:  t.Condition,
		Priority:   t.Priority,
	}
}

// Instance DTOs

// StartInstanceRequest — запрос на запуск instance.
type StartInstanceRequest struct {
	TemplateID  uuid.UUID `json:"template_id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	InitiatedBy string    `json:"initiated_by"`
}

// AdvanceRequest — запрос на продвижение instance.
type AdvanceRequest struct {
	ActorID   string         `json:"actor_id"`
	ActorRole string         `json:"actor_role"`
	Action    string         `json:"action"`
	Comments  string         `json:"comments,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CancelRequest — запрос на отмену instance.
type CancelRequest struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Comments  string `json:"comments,omitempty"`
}

// InstanceResponse — ответ с instance.
type InstanceResponse struct {
	ID            uuid.UUID  `json:"id"`
	TemplateID    uuid.UUID  `json:"template_id"`
	EntityType    string     `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	Status        string     `json:"status"`
	CurrentStepID uuid.UUID  `json:"current_step_id"`
	Version       int        `json:"version"`
	InitiatedBy   string     `json:"initiated_by"`
	StartedAt     time.Time  `json:"started_at"`
	StepEnteredAt time.Time  `json:"step_entered_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// InstanceFromDomain конвертирует domain.WorkflowInstance в InstanceResponse.
func InstanceFromDomain(i domain.WorkflowInstance) InstanceResponse {
	return InstanceResponse{
		ID:            i.ID,
		TemplateID:    i.TemplateID,
		EntityType:    i.EntityType,
		EntityID:      i.EntityID,
		Status:        string(i.Status),
		CurrentStepID: i.CurrentStepID,
		Version:       i.Version,
		InitiatedBy:   i.InitiatedBy,
		StartedAt:     i.StartedAt,
		StepEnteredAt: i.StepEnteredAt,
		CompletedAt:   i.CompletedAt,
	}
}

// Execution DTOs

// ExecutionResponse — одна запись истории instance.
type ExecutionResponse struct {
	ID         uuid.UUID      `json:"id"`
	InstanceID uuid.UUID      `json:"instance_id"`
	StepID     uuid.UUID      `json:"step_id"`
	ActorID    string         `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	Action     string         `json:"action"`
	Comments   string         `json:"comments,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ExecutionFromDomain конвертирует domain.WorkflowExecution в ExecutionResponse.
func ExecutionFromDomain(e domain.WorkflowExecution) ExecutionResponse {
	return ExecutionResponse{
		ID:         e.ID,
		InstanceID: e.InstanceID,
		StepID:     e.StepID,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Action:     e.Action,
		Comments:   e.Comments,
		Metadata:   e.Metadata,
		CreatedAt:  e.CreatedAt,
	}
}
