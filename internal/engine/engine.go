package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
	"github.com/shaiso/Vizir/internal/repo"
)

// Доменные события, публикуемые после коммита перехода.
const (
	EventStarted   = "instance.started"
	EventAdvanced  = "instance.advanced"
	EventCompleted = "instance.completed"
	EventRejected  = "instance.rejected"
	EventCancelled = "instance.cancelled"
	EventTimedOut  = "instance.timed_out"
)

// Engine — конечный автомат процесса согласования.
//
// Состояния — шаги шаблона; Status instance — огрублённое
// представление поверх них. Engine — единственный компонент,
// мутирующий instances. Взаимное исключение по одному instance
// достигается оптимистической версией, а не блокировкой: из двух
// конкурентных advance ровно один коммитится, второй получает
// repo.ErrVersionConflict и перечитывает.
type Engine struct {
	templates TemplateStore
	instances InstanceStore
	events    EventPublisher
	logger    *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация Engine.
type Config struct {
	Templates TemplateStore
	Instances InstanceStore
	Events    EventPublisher // опционально
	Logger    *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		templates: cfg.Templates,
		instances: cfg.Instances,
		events:    cfg.Events,
		logger:    logger,
		now:       time.Now,
	}
}

// AdvanceCommand — входные данные одного вызова advance.
type AdvanceCommand struct {
	InstanceID uuid.UUID
	ActorID    string
	ActorRole  string
	Action     string
	Comments   string
	Metadata   map[string]any
}

// StartInstance создаёт instance для template и помещает его на шаг
// с step_order = 1.
//
// Template неявно валидируется; невалидный блокирует старт.
// Если начальный шаг — autoAdvance, цепочка авто-продвижения
// выполняется до возврата.
func (e *Engine) StartInstance(ctx context.Context, templateID uuid.UUID, entityType, entityID, initiatedBy string) (*domain.WorkflowInstance, error) {
	tpl, err := e.templates.GetFull(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	if !tpl.IsActive {
		return nil, fmt.Errorf("template %s: %w", tpl.ID, ErrTemplateInactive)
	}

	if res := ValidateTemplate(tpl); !res.IsValid {
		return nil, fmt.Errorf("template %s has %d issue(s): %w", tpl.ID, len(res.Issues), ErrTemplateInvalid)
	}

	initial, ok := tpl.InitialStep()
	if !ok {
		return nil, fmt.Errorf("template %s: %w", tpl.ID, ErrNoInitialStep)
	}

	now := e.now()
	inst := &domain.WorkflowInstance{
		ID:            uuid.New(),
		TemplateID:    tpl.ID,
		EntityType:    entityType,
		EntityID:      entityID,
		Status:        domain.StatusInProgress,
		CurrentStepID: initial.ID,
		Version:       1,
		InitiatedBy:   initiatedBy,
		StartedAt:     now,
		StepEnteredAt: now,
	}

	if err := e.instances.Create(ctx, inst); err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	e.logger.Info("instance started",
		"instance_id", inst.ID,
		"template_id", tpl.ID,
		"entity_type", entityType,
		"entity_id", entityID,
		"initiated_by", initiatedBy,
	)
	e.publish(ctx, EventStarted, inst, "")

	return e.autoAdvance(ctx, tpl, inst)
}

// Advance применяет одно действие актора к instance.
//
// Алгоритм: загрузка instance и шаблона → проверка роли → проверка
// действия → выбор перехода с наибольшим priority → перемещение (или
// терминальный исход по конвенции COMPLETE/REJECT) → атомарный
// коммит с версионной проверкой → цепочка авто-продвижения.
//
// Любой путь отказа возвращает типизированную ошибку; instance при
// этом не мутирован в БД.
func (e *Engine) Advance(ctx context.Context, cmd AdvanceCommand) (*domain.WorkflowInstance, error) {
	inst, err := e.instances.GetByID(ctx, cmd.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}

	tpl, err := e.templates.GetFull(ctx, inst.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	inst, err = e.advanceOnce(ctx, tpl, inst, cmd.ActorID, cmd.ActorRole, cmd.Action, cmd.Comments, cmd.Metadata)
	if err != nil {
		return nil, err
	}

	return e.autoAdvance(ctx, tpl, inst)
}

// Cancel явно отменяет instance (status = CANCELLED).
// Отмена — обычное зафиксированное действие: пишет execution-строку
// и подчиняется той же версионной проверке, что и advance.
func (e *Engine) Cancel(ctx context.Context, instanceID uuid.UUID, actorID, actorRole, comments string) (*domain.WorkflowInstance, error) {
	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	if inst.IsFinished() {
		return nil, fmt.Errorf("instance %s (%s): %w", inst.ID, inst.Status, ErrInstanceFinished)
	}

	now := e.now()
	expected := inst.Version
	stepID := inst.CurrentStepID
	inst.MarkCancelled(now)

	exec := &domain.WorkflowExecution{
		ID:         uuid.New(),
		InstanceID: inst.ID,
		StepID:     stepID,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Action:     domain.ActionCancel,
		Comments:   comments,
		CreatedAt:  now,
	}

	if err := e.instances.CommitTransition(ctx, inst, expected, exec); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}

	e.logger.Info("instance cancelled",
		"instance_id", inst.ID,
		"actor_id", actorID,
	)
	e.publish(ctx, EventCancelled, inst, domain.ActionCancel)
	return inst, nil
}

// Timeout обрабатывает просроченный шаг от имени Sweeper'а.
//
// Если из текущего шага объявлен TIMEOUT-переход — выполняется он
// (с последующей цепочкой авто-продвижения); иначе instance сразу
// помечается TIMED_OUT. Повторный вызов по уже обработанному
// instance — тихий no-op; проигранная гонка с живым актором
// возвращает repo.ErrVersionConflict, который Sweeper трактует так же.
func (e *Engine) Timeout(ctx context.Context, instanceID uuid.UUID) (*domain.WorkflowInstance, error) {
	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	if inst.Status != domain.StatusInProgress {
		return inst, nil
	}

	tpl, err := e.templates.GetFull(ctx, inst.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	step, ok := tpl.StepByID(inst.CurrentStepID)
	if !ok {
		return nil, fmt.Errorf("instance %s: current step %s: %w", inst.ID, inst.CurrentStepID, repo.ErrNotFound)
	}

	// Дедлайн перепроверяется по свежему чтению: instance мог уже
	// уйти на другой шаг между выборкой кандидатов и этим вызовом.
	if !inst.StepDeadlineExceeded(step, e.now()) {
		return inst, nil
	}

	trs := tpl.TransitionsFrom(step.ID, domain.ActionTimeout)
	if len(trs) > 0 {
		if len(trs) > 1 && trs[0].Priority == trs[1].Priority {
			return nil, fmt.Errorf("step %s: TIMEOUT transitions tie at priority %d: %w",
				step.ID, trs[0].Priority, ErrInvalidAction)
		}
		inst, err = e.commitMove(ctx, tpl, inst, step, &trs[0], domain.SweeperActor, step.RequiredRole, domain.ActionTimeout, "step deadline exceeded", nil)
		if err != nil {
			return nil, err
		}
		return e.autoAdvance(ctx, tpl, inst)
	}

	now := e.now()
	expected := inst.Version
	inst.MarkTimedOut(now)

	exec := &domain.WorkflowExecution{
		ID:         uuid.New(),
		InstanceID: inst.ID,
		StepID:     step.ID,
		ActorID:    domain.SweeperActor,
		ActorRole:  step.RequiredRole,
		Action:     domain.ActionTimeout,
		Comments:   "step deadline exceeded",
		CreatedAt:  now,
	}

	if err := e.instances.CommitTransition(ctx, inst, expected, exec); err != nil {
		return nil, fmt.Errorf("commit timeout: %w", err)
	}

	e.logger.Info("instance timed out",
		"instance_id", inst.ID,
		"step_id", step.ID,
	)
	e.publish(ctx, EventTimedOut, inst, domain.ActionTimeout)
	return inst, nil
}

// advanceOnce выполняет один шаг алгоритма advance без цепочки
// авто-продвижения.
func (e *Engine) advanceOnce(ctx context.Context, tpl *domain.WorkflowTemplate, inst *domain.WorkflowInstance, actorID, actorRole, action, comments string, metadata map[string]any) (*domain.WorkflowInstance, error) {
	if inst.IsFinished() {
		return nil, fmt.Errorf("instance %s (%s): %w", inst.ID, inst.Status, ErrInstanceFinished)
	}

	step, ok := tpl.StepByID(inst.CurrentStepID)
	if !ok {
		return nil, fmt.Errorf("instance %s: current step %s: %w", inst.ID, inst.CurrentStepID, repo.ErrNotFound)
	}

	if actorRole != step.RequiredRole {
		// Отказ в доступе логируется с идентификаторами для аудита.
		e.logger.Warn("advance forbidden",
			"instance_id", inst.ID,
			"step_id", step.ID,
			"actor_id", actorID,
			"actor_role", actorRole,
			"required_role", step.RequiredRole,
		)
		return nil, fmt.Errorf("step %q requires role %s, got %s: %w",
			step.Name, step.RequiredRole, actorRole, ErrForbidden)
	}

	if !step.AcceptsAction(action) {
		return nil, fmt.Errorf("step %q does not accept action %s: %w", step.Name, action, ErrInvalidAction)
	}

	trs := tpl.TransitionsFrom(step.ID, action)
	if len(trs) == 0 {
		return e.commitTerminal(ctx, inst, step, actorID, actorRole, action, comments, metadata)
	}

	// Совпадение максимальных priority — дефект шаблона; движок
	// отказывает, а не угадывает.
	if len(trs) > 1 && trs[0].Priority == trs[1].Priority {
		return nil, fmt.Errorf("step %q: transitions for action %s tie at priority %d: %w",
			step.Name, action, trs[0].Priority, ErrInvalidAction)
	}

	return e.commitMove(ctx, tpl, inst, step, &trs[0], actorID, actorRole, action, comments, metadata)
}

// commitTerminal разрешает действие без перехода по конвенции:
// COMPLETE → COMPLETED, REJECT → REJECTED, иначе ошибка.
func (e *Engine) commitTerminal(ctx context.Context, inst *domain.WorkflowInstance, step *domain.WorkflowStep, actorID, actorRole, action, comments string, metadata map[string]any) (*domain.WorkflowInstance, error) {
	now := e.now()
	expected := inst.Version

	var event string
	switch action {
	case domain.ActionComplete:
		inst.MarkCompleted(now)
		event = EventCompleted
	case domain.ActionReject:
		inst.MarkRejected(now)
		event = EventRejected
	default:
		return nil, fmt.Errorf("step %q: no transition for action %s: %w", step.Name, action, ErrInvalidAction)
	}

	exec := &domain.WorkflowExecution{
		ID:         uuid.New(),
		InstanceID: inst.ID,
		StepID:     step.ID,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Action:     action,
		Comments:   comments,
		Metadata:   metadata,
		CreatedAt:  now,
	}

	if err := e.instances.CommitTransition(ctx, inst, expected, exec); err != nil {
		return nil, fmt.Errorf("commit terminal: %w", err)
	}

	e.logger.Info("instance finished",
		"instance_id", inst.ID,
		"status", inst.Status,
		"step_id", step.ID,
		"action", action,
		"actor_id", actorID,
	)
	e.publish(ctx, event, inst, action)
	return inst, nil
}

// commitMove фиксирует перемещение instance на toStep перехода.
func (e *Engine) commitMove(ctx context.Context, tpl *domain.WorkflowTemplate, inst *domain.WorkflowInstance, step *domain.WorkflowStep, tr *domain.WorkflowTransition, actorID, actorRole, action, comments string, metadata map[string]any) (*domain.WorkflowInstance, error) {
	if _, ok := tpl.StepByID(tr.ToStepID); !ok {
		return nil, fmt.Errorf("transition %s: to_step %s not in template: %w", tr.ID, tr.ToStepID, ErrInvalidAction)
	}

	now := e.now()
	expected := inst.Version
	inst.MoveTo(tr.ToStepID, now)

	exec := &domain.WorkflowExecution{
		ID:         uuid.New(),
		InstanceID: inst.ID,
		StepID:     step.ID,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Action:     action,
		Comments:   comments,
		Metadata:   metadata,
		CreatedAt:  now,
	}

	if err := e.instances.CommitTransition(ctx, inst, expected, exec); err != nil {
		return nil, fmt.Errorf("commit move: %w", err)
	}

	e.logger.Info("instance advanced",
		"instance_id", inst.ID,
		"from_step", step.ID,
		"to_step", tr.ToStepID,
		"action", action,
		"actor_id", actorID,
		"version", inst.Version,
	)
	e.publish(ctx, EventAdvanced, inst, action)
	return inst, nil
}

// autoAdvance синхронно проходит autoAdvance-шаги от имени системного
// актора, пока не встретит обычный шаг или терминальный статус.
//
// Цепочка ограничена: возврат на уже посещённый шаг прекращает её
// с ErrAutoAdvanceCycle (закоммиченные звенья остаются). Шаг с более
// чем одним действием цепочку останавливает — единственное действие
// и есть контракт autoAdvance.
func (e *Engine) autoAdvance(ctx context.Context, tpl *domain.WorkflowTemplate, inst *domain.WorkflowInstance) (*domain.WorkflowInstance, error) {
	visited := make(map[uuid.UUID]bool)

	for inst.Status == domain.StatusInProgress {
		step, ok := tpl.StepByID(inst.CurrentStepID)
		if !ok {
			return nil, fmt.Errorf("instance %s: current step %s: %w", inst.ID, inst.CurrentStepID, repo.ErrNotFound)
		}
		if !step.AutoAdvance {
			break
		}
		if visited[step.ID] {
			e.logger.Warn("auto-advance cycle detected",
				"instance_id", inst.ID,
				"step_id", step.ID,
			)
			return inst, fmt.Errorf("instance %s at step %s: %w", inst.ID, step.ID, ErrAutoAdvanceCycle)
		}
		visited[step.ID] = true

		if len(step.Actions) != 1 {
			e.logger.Warn("auto-advance step declares multiple actions, stopping chain",
				"instance_id", inst.ID,
				"step_id", step.ID,
				"actions", step.Actions,
			)
			break
		}

		var err error
		inst, err = e.advanceOnce(ctx, tpl, inst, domain.SystemActor, step.RequiredRole, step.Actions[0], "", nil)
		if err != nil {
			return nil, fmt.Errorf("auto-advance at step %s: %w", step.ID, err)
		}
	}

	return inst, nil
}

// publish отправляет доменное событие, если publisher настроен.
func (e *Engine) publish(ctx context.Context, event string, inst *domain.WorkflowInstance, action string) {
	if e.events == nil {
		return
	}
	e.events.PublishInstanceEvent(ctx, event, inst, action)
}

// IsConflict сообщает, является ли ошибка проигранной оптимистической
// гонкой, которую вызывающая сторона разрешает повторным чтением.
func IsConflict(err error) bool {
	return errors.Is(err, repo.ErrVersionConflict)
}
