package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// WorkflowTemplate — определение многошагового процесса согласования.
//
// Template — это "рецепт": набор шагов с ролевыми воротами и переходы
// между ними. Один template порождает множество instances, каждый
// привязан к конкретному бизнес-объекту (entityType/entityId).
type WorkflowTemplate struct {
	// ID — уникальный идентификатор template.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя ("Регистрация участника").
	Name string `json:"name"`

	// Description — описание назначения процесса.
	Description string `json:"description,omitempty"`

	// EntityType — тип бизнес-объекта, которым управляет процесс
	// (например, "CONTESTANT", "CONTRACT").
	EntityType string `json:"entity_type"`

	// IsActive — флаг активности. По неактивным templates
	// новые instances не создаются.
	IsActive bool `json:"is_active"`

	// Steps — шаги процесса (загружаются жадно вместе с template).
	Steps []WorkflowStep `json:"steps,omitempty"`

	// Transitions — переходы между шагами.
	Transitions []WorkflowTransition `json:"transitions,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// WorkflowStep — состояние процесса: шаг, на котором instance ждёт
// действия от актора с требуемой ролью.
type WorkflowStep struct {
	// ID — уникальный идентификатор шага.
	ID uuid.UUID `json:"id"`

	// TemplateID — ссылка на родительский template.
	TemplateID uuid.UUID `json:"template_id"`

	// Name — имя шага ("Первичная проверка").
	Name string `json:"name"`

	// StepOrder — номинальный порядковый номер, уникальный в рамках
	// template. Маршрутизация идёт по переходам, а не по порядку;
	// StepOrder = 1 лишь задаёт начальный шаг.
	StepOrder int `json:"step_order"`

	// RequiredRole — единственная роль, которой разрешено подавать
	// действия, пока instance находится на этом шаге.
	RequiredRole string `json:"required_role"`

	// Actions — непустой набор меток действий, принимаемых шагом.
	Actions []string `json:"actions"`

	// AutoAdvance — шаг проходится движком самостоятельно,
	// без ожидания внешнего актора.
	AutoAdvance bool `json:"auto_advance"`

	// TimeoutHours — дедлайн шага в часах; nil — без дедлайна.
	// По истечении вмешивается Sweeper.
	TimeoutHours *int `json:"timeout_hours,omitempty"`
}

// AcceptsAction проверяет, объявлено ли действие на шаге.
func (s *WorkflowStep) AcceptsAction(action string) bool {
	for _, a := range s.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// WorkflowTransition — направленное ребро между двумя шагами,
// срабатывающее на конкретное действие.
type WorkflowTransition struct {
	// ID — уникальный идентификатор перехода.
	ID uuid.UUID `json:"id"`

	// TemplateID — ссылка на template.
	TemplateID uuid.UUID `json:"template_id"`

	// FromStepID, ToStepID — шаги того же template.
	FromStepID uuid.UUID `json:"from_step_id"`
	ToStepID   uuid.UUID `json:"to_step_id"`

	// Condition — метка действия, активирующая переход.
	Condition string `json:"condition"`

	// Priority — при нескольких переходах с одинаковыми
	// (FromStepID, Condition) выигрывает наибольший. Совпадение
	// приоритетов — дефект шаблона, который ловит Validator.
	Priority int `json:"priority"`
}

// StepByID возвращает шаг template по ID.
func (t *WorkflowTemplate) StepByID(id uuid.UUID) (*WorkflowStep, bool) {
	for i := range t.Steps {
		if t.Steps[i].ID == id {
			return &t.Steps[i], true
		}
	}
	return nil, false
}

// InitialStep возвращает шаг с StepOrder = 1.
func (t *WorkflowTemplate) InitialStep() (*WorkflowStep, bool) {
	for i := range t.Steps {
		if t.Steps[i].StepOrder == 1 {
			return &t.Steps[i], true
		}
	}
	return nil, false
}

// TransitionsFrom возвращает переходы из шага по действию,
// отсортированные по убыванию Priority.
func (t *WorkflowTemplate) TransitionsFrom(stepID uuid.UUID, action string) []WorkflowTransition {
	var out []WorkflowTransition
	for _, tr := range t.Transitions {
		if tr.FromStepID == stepID && tr.Condition == action {
			out = append(out, tr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// HasOutgoing проверяет, есть ли у шага хоть один исходящий переход.
// Шаг без исходящих переходов — неявно терминальный.
func (t *WorkflowTemplate) HasOutgoing(stepID uuid.UUID) bool {
	for _, tr := range t.Transitions {
		if tr.FromStepID == stepID {
			return true
		}
	}
	return false
}
