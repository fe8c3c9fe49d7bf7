package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowInstance — живое выполнение template против одного
// бизнес-объекта.
//
// Instance создаётся операцией "start instance" на шаге с
// StepOrder = 1 и мутируется только Transition Engine.
// Не удаляется, пока хранится его история (audit trail).
type WorkflowInstance struct {
	// ID — уникальный идентификатор instance.
	ID uuid.UUID `json:"id"`

	// TemplateID — выполняемый template.
	TemplateID uuid.UUID `json:"template_id"`

	// EntityType/EntityID — бизнес-объект под управлением процесса.
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`

	// Status — грубое представление состояния поверх CurrentStepID:
	// IN_PROGRESS на любом нетерминальном шаге, иначе один из
	// терминальных статусов.
	Status InstanceStatus `json:"status"`

	// CurrentStepID — текущий шаг. Всегда ссылается на шаг
	// собственного template.
	CurrentStepID uuid.UUID `json:"current_step_id"`

	// Version — монотонный счётчик для оптимистической блокировки.
	// Увеличивается ровно на 1 при каждом зафиксированном переходе.
	Version int `json:"version"`

	// InitiatedBy — идентификатор актора, запустившего instance.
	InitiatedBy string `json:"initiated_by"`

	// StartedAt — время запуска.
	StartedAt time.Time `json:"started_at"`

	// StepEnteredAt — момент входа на текущий шаг. Сбрасывается при
	// каждом переходе; используется для dwell-time и таймаутов.
	StepEnteredAt time.Time `json:"step_entered_at"`

	// CompletedAt — выставляется один раз при достижении
	// терминального статуса; nil, пока instance жив.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsFinished возвращает true, если instance в терминальном статусе.
func (i *WorkflowInstance) IsFinished() bool {
	return i.Status.IsTerminal()
}

// MoveTo переводит instance на следующий шаг, оставляя IN_PROGRESS.
func (i *WorkflowInstance) MoveTo(stepID uuid.UUID, now time.Time) {
	i.CurrentStepID = stepID
	i.StepEnteredAt = now
	i.Status = StatusInProgress
}

// MarkCompleted переводит instance в COMPLETED.
func (i *WorkflowInstance) MarkCompleted(now time.Time) {
	i.Status = StatusCompleted
	i.CompletedAt = &now
}

// MarkRejected переводит instance в REJECTED.
func (i *WorkflowInstance) MarkRejected(now time.Time) {
	i.Status = StatusRejected
	i.CompletedAt = &now
}

// MarkCancelled переводит instance в CANCELLED.
func (i *WorkflowInstance) MarkCancelled(now time.Time) {
	i.Status = StatusCancelled
	i.CompletedAt = &now
}

// MarkTimedOut переводит instance в TIMED_OUT.
func (i *WorkflowInstance) MarkTimedOut(now time.Time) {
	i.Status = StatusTimedOut
	i.CompletedAt = &now
}

// StepDeadlineExceeded проверяет, просрочен ли текущий шаг.
// Шаги без TimeoutHours не имеют дедлайна.
func (i *WorkflowInstance) StepDeadlineExceeded(step *WorkflowStep, now time.Time) bool {
	if step.TimeoutHours == nil {
		return false
	}
	deadline := i.StepEnteredAt.Add(time.Duration(*step.TimeoutHours) * time.Hour)
	return now.After(deadline)
}
