package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowExecution — неизменяемая запись о зафиксированном переходе.
//
// Одна строка на каждый успешно закоммиченный вызов advance
// (включая авто-продвижение и действия Sweeper'а). Образует audit
// trail instance и служит единственным источником для dwell-time
// анализа.
type WorkflowExecution struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// InstanceID — ссылка на instance.
	InstanceID uuid.UUID `json:"instance_id"`

	// StepID — шаг, на котором instance находился в момент действия.
	StepID uuid.UUID `json:"step_id"`

	// ActorID — кто выполнил действие (пользователь или системный актор).
	ActorID string `json:"actor_id"`

	// ActorRole — роль, от имени которой подано действие.
	ActorRole string `json:"actor_role"`

	// Action — выполненное действие.
	Action string `json:"action"`

	// Comments — свободный комментарий актора.
	Comments string `json:"comments,omitempty"`

	// Metadata — структурированные данные, приложенные к действию.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt — время фиксации перехода.
	CreatedAt time.Time `json:"created_at"`
}
