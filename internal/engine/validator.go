package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
)

// IssueCode — классификация структурной проблемы шаблона.
type IssueCode string

const (
	// IssueNoInitialStep — нет шага с step_order = 1.
	IssueNoInitialStep IssueCode = "NO_INITIAL_STEP"

	// IssueUnreachableStep — шаг (кроме начального) не является
	// toStep ни одного перехода.
	IssueUnreachableStep IssueCode = "UNREACHABLE_STEP"

	// IssueUncoveredAction — действие объявлено на шаге, но не
	// покрыто ни одним переходом, при том что шаг не терминальный.
	IssueUncoveredAction IssueCode = "UNCOVERED_ACTION"

	// IssueAmbiguousRouting — несколько переходов с одинаковыми
	// (fromStep, condition) и совпадающим priority.
	IssueAmbiguousRouting IssueCode = "AMBIGUOUS_ROUTING"

	// IssueOrphanTransition — переход ссылается на шаг вне шаблона.
	IssueOrphanTransition IssueCode = "ORPHAN_TRANSITION"
)

// Issue — одна найденная проблема шаблона.
type Issue struct {
	Code         IssueCode  `json:"code"`
	StepID       *uuid.UUID `json:"step_id,omitempty"`
	TransitionID *uuid.UUID `json:"transition_id,omitempty"`
	Message      string     `json:"message"`
}

// ValidationResult — итог проверки шаблона.
// Шаблон может провалить несколько проверок одновременно — каждая
// даёт отдельную запись в Issues.
type ValidationResult struct {
	IsValid bool    `json:"is_valid"`
	Issues  []Issue `json:"issues"`
}

// ValidateTemplate выполняет чистую структурную проверку шаблона.
//
// Никогда не возвращает ошибку и не имеет побочных эффектов —
// вызывающая сторона сама решает, блокировать ли создание instance
// по невалидному шаблону. Движок вызывает её неявно перед стартом.
func ValidateTemplate(tpl *domain.WorkflowTemplate) ValidationResult {
	var issues []Issue

	steps := make(map[uuid.UUID]*domain.WorkflowStep, len(tpl.Steps))
	for i := range tpl.Steps {
		steps[tpl.Steps[i].ID] = &tpl.Steps[i]
	}

	initial, hasInitial := tpl.InitialStep()
	if !hasInitial {
		issues = append(issues, Issue{
			Code:    IssueNoInitialStep,
			Message: "template has no step with step_order = 1",
		})
	}

	issues = append(issues, checkOrphanTransitions(tpl, steps)...)
	issues = append(issues, checkUnreachableSteps(tpl, steps, initial)...)
	issues = append(issues, checkUncoveredActions(tpl, steps)...)
	issues = append(issues, checkAmbiguousRouting(tpl)...)

	return ValidationResult{
		IsValid: len(issues) == 0,
		Issues:  issues,
	}
}

// checkOrphanTransitions ищет переходы, ссылающиеся на чужие шаги.
func checkOrphanTransitions(tpl *domain.WorkflowTemplate, steps map[uuid.UUID]*domain.WorkflowStep) []Issue {
	var issues []Issue
	for i := range tpl.Transitions {
		tr := &tpl.Transitions[i]
		if _, ok := steps[tr.FromStepID]; !ok {
			trID := tr.ID
			issues = append(issues, Issue{
				Code:         IssueOrphanTransition,
				TransitionID: &trID,
				Message:      fmt.Sprintf("transition %s: from_step %s does not belong to template", tr.ID, tr.FromStepID),
			})
		}
		if _, ok := steps[tr.ToStepID]; !ok {
			trID := tr.ID
			issues = append(issues, Issue{
				Code:         IssueOrphanTransition,
				TransitionID: &trID,
				Message:      fmt.Sprintf("transition %s: to_step %s does not belong to template", tr.ID, tr.ToStepID),
			})
		}
	}
	return issues
}

// checkUnreachableSteps проверяет, что каждый шаг, кроме начального,
// достижим хотя бы одним переходом.
func checkUnreachableSteps(tpl *domain.WorkflowTemplate, steps map[uuid.UUID]*domain.WorkflowStep, initial *domain.WorkflowStep) []Issue {
	reachable := make(map[uuid.UUID]bool)
	for _, tr := range tpl.Transitions {
		reachable[tr.ToStepID] = true
	}

	var issues []Issue
	for id, step := range steps {
		if initial != nil && id == initial.ID {
			continue
		}
		if !reachable[id] {
			stepID := id
			issues = append(issues, Issue{
				Code:    IssueUnreachableStep,
				StepID:  &stepID,
				Message: fmt.Sprintf("step %q (order %d) is not the target of any transition", step.Name, step.StepOrder),
			})
		}
	}
	return issues
}

// checkUncoveredActions проверяет, что каждое объявленное действие
// покрыто переходом. Шаг без исходящих переходов вообще — неявно
// терминальный, его действия разрешаются конвенцией COMPLETE/REJECT.
func checkUncoveredActions(tpl *domain.WorkflowTemplate, steps map[uuid.UUID]*domain.WorkflowStep) []Issue {
	var issues []Issue
	for id, step := range steps {
		if !tpl.HasOutgoing(id) {
			continue
		}
		for _, action := range step.Actions {
			if len(tpl.TransitionsFrom(id, action)) == 0 {
				stepID := id
				issues = append(issues, Issue{
					Code:    IssueUncoveredAction,
					StepID:  &stepID,
					Message: fmt.Sprintf("step %q declares action %s with no matching transition", step.Name, action),
				})
			}
		}
	}
	return issues
}

// checkAmbiguousRouting ищет пары (fromStep, condition) с
// неразличимыми по priority переходами.
func checkAmbiguousRouting(tpl *domain.WorkflowTemplate) []Issue {
	type key struct {
		from     uuid.UUID
		action   string
		priority int
	}

	seen := make(map[key]uuid.UUID)
	reported := make(map[key]bool)
	var issues []Issue

	for _, tr := range tpl.Transitions {
		k := key{from: tr.FromStepID, action: tr.Condition, priority: tr.Priority}
		if _, dup := seen[k]; dup && !reported[k] {
			reported[k] = true
			trID := tr.ID
			issues = append(issues, Issue{
				Code:         IssueAmbiguousRouting,
				TransitionID: &trID,
				Message: fmt.Sprintf("step %s: multiple transitions for action %s share priority %d",
					tr.FromStepID, tr.Condition, tr.Priority),
			})
			continue
		}
		seen[k] = tr.ID
	}
	return issues
}
