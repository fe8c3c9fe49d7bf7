package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
)

// TemplateStore — доступ к шаблонам, нужный движку.
// Реализуется repo.TemplateRepo.
type TemplateStore interface {
	// GetFull возвращает template с жадно загруженными шагами
	// и переходами.
	GetFull(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error)
}

// InstanceStore — доступ к instances и их истории.
// Реализуется repo.InstanceRepo.
type InstanceStore interface {
	// Create сохраняет новый instance.
	Create(ctx context.Context, inst *domain.WorkflowInstance) error

	// GetByID возвращает instance.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error)

	// CommitTransition атомарно применяет переход: условный UPDATE
	// instance (WHERE version = expectedVersion, version = version+1)
	// плюс INSERT execution-строки в одной транзакции.
	//
	// Возвращает repo.ErrVersionConflict, если version изменился
	// с момента чтения, и repo.ErrNotFound для неизвестного instance.
	// При успехе inst.Version инкрементирован.
	CommitTransition(ctx context.Context, inst *domain.WorkflowInstance, expectedVersion int, exec *domain.WorkflowExecution) error
}

// EventPublisher — публикация доменных событий после коммита.
// Публикация best-effort: события никогда не входят в
// транзакцию движка. Реализуется mq.Publisher; nil — события выключены.
type EventPublisher interface {
	PublishInstanceEvent(ctx context.Context, event string, inst *domain.WorkflowInstance, action string)
}
