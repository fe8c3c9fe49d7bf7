package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
)

func validTemplate() *domain.WorkflowTemplate {
	tplID := uuid.New()
	s1 := domain.WorkflowStep{
		ID: uuid.New(), TemplateID: tplID, Name: "Подача", StepOrder: 1,
		RequiredRole: "ORGANIZER", Actions: []string{domain.ActionComplete},
	}
	s2 := domain.WorkflowStep{
		ID: uuid.New(), TemplateID: tplID, Name: "Решение", StepOrder: 2,
		RequiredRole: "BOARD", Actions: []string{domain.ActionComplete, domain.ActionReject},
	}

	return &domain.WorkflowTemplate{
		ID: tplID, Name: "Тест", EntityType: "X",
		Steps: []domain.WorkflowStep{s1, s2},
		Transitions: []domain.WorkflowTransition{
			{ID: uuid.New(), TemplateID: tplID, FromStepID: s1.ID, ToStepID: s2.ID, Condition: domain.ActionComplete},
		},
	}
}

func issueCodes(res ValidationResult) map[IssueCode]int {
	codes := make(map[IssueCode]int)
	for _, issue := range res.Issues {
		codes[issue.Code]++
	}
	return codes
}

func TestValidateTemplate_Valid(t *testing.T) {
	res := ValidateTemplate(validTemplate())

	if !res.IsValid {
		t.Errorf("expected valid template, got issues: %v", res.Issues)
	}
	if len(res.Issues) != 0 {
		t.Errorf("expected no issues, got %d", len(res.Issues))
	}
}

func TestValidateTemplate_NoInitialStep(t *testing.T) {
	tpl := validTemplate()
	tpl.Steps[0].StepOrder = 5

	res := ValidateTemplate(tpl)

	if res.IsValid {
		t.Fatal("expected invalid template")
	}
	if issueCodes(res)[IssueNoInitialStep] != 1 {
		t.Errorf("expected NO_INITIAL_STEP, got %v", res.Issues)
	}
}

func TestValidateTemplate_UnreachableStep(t *testing.T) {
	tpl := validTemplate()
	// Шаг, в который не ведёт ни один переход
	tpl.Steps = append(tpl.Steps, domain.WorkflowStep{
		ID: uuid.New(), TemplateID: tpl.ID, Name: "Остров", StepOrder: 3,
		RequiredRole: "ADMIN", Actions: []string{domain.ActionComplete},
	})

	res := ValidateTemplate(tpl)

	if res.IsValid {
		t.Fatal("expected invalid template")
	}
	codes := issueCodes(res)
	if codes[IssueUnreachableStep] != 1 {
		t.Errorf("expected UNREACHABLE_STEP, got %v", res.Issues)
	}
}

func TestValidateTemplate_UncoveredAction(t *testing.T) {
	tpl := validTemplate()
	// REJECT на первом шаге не покрыт переходом, а шаг не терминальный
	tpl.Steps[0].Actions = append(tpl.Steps[0].Actions, domain.ActionReject)

	res := ValidateTemplate(tpl)

	if res.IsValid {
		t.Fatal("expected invalid template")
	}
	codes := issueCodes(res)
	if codes[IssueUncoveredAction] != 1 {
		t.Errorf("expected UNCOVERED_ACTION, got %v", res.Issues)
	}
}

func TestValidateTemplate_TerminalStepActionsAllowed(t *testing.T) {
	tpl := validTemplate()
	// Второй шаг без исходящих переходов — неявно терминальный;
	// его COMPLETE/REJECT разрешаются конвенцией, не переходами
	res := ValidateTemplate(tpl)

	if codes := issueCodes(res); codes[IssueUncoveredAction] != 0 {
		t.Errorf("terminal step actions must not be flagged, got %v", res.Issues)
	}
}

func TestValidateTemplate_AmbiguousRouting(t *testing.T) {
	tpl := validTemplate()
	// Второй переход s1 -COMPLETE-> с тем же priority
	tpl.Transitions = append(tpl.Transitions, domain.WorkflowTransition{
		ID: uuid.New(), TemplateID: tpl.ID,
		FromStepID: tpl.Steps[0].ID, ToStepID: tpl.Steps[1].ID,
		Condition: domain.ActionComplete, Priority: 0,
	})

	res := ValidateTemplate(tpl)

	if res.IsValid {
		t.Fatal("expected invalid template")
	}
	if issueCodes(res)[IssueAmbiguousRouting] != 1 {
		t.Errorf("expected AMBIGUOUS_ROUTING, got %v", res.Issues)
	}
}

func TestValidateTemplate_DistinctPrioritiesNotAmbiguous(t *testing.T) {
	tpl := validTemplate()
	tpl.Transitions = append(tpl.Transitions, domain.WorkflowTransition{
		ID: uuid.New(), TemplateID: tpl.ID,
		FromStepID: tpl.Steps[0].ID, ToStepID: tpl.Steps[1].ID,
		Condition: domain.ActionComplete, Priority: 10,
	})

	res := ValidateTemplate(tpl)

	if !res.IsValid {
		t.Errorf("distinct priorities are legal, got issues: %v", res.Issues)
	}
}

func TestValidateTemplate_OrphanTransition(t *testing.T) {
	tpl := validTemplate()
	tpl.Transitions = append(tpl.Transitions, domain.WorkflowTransition{
		ID: uuid.New(), TemplateID: tpl.ID,
		FromStepID: tpl.Steps[0].ID, ToStepID: uuid.New(), // чужой шаг
		Condition: domain.ActionReject,
	})

	res := ValidateTemplate(tpl)

	if res.IsValid {
		t.Fatal("expected invalid template")
	}
	if issueCodes(res)[IssueOrphanTransition] != 1 {
		t.Errorf("expected ORPHAN_TRANSITION, got %v", res.Issues)
	}
}

func TestValidateTemplate_MultipleIssues(t *testing.T) {
	tpl := validTemplate()
	tpl.Steps[0].StepOrder = 5
	tpl.Transitions = append(tpl.Transitions, domain.WorkflowTransition{
		ID: uuid.New(), TemplateID: tpl.ID,
		FromStepID: uuid.New(), ToStepID: tpl.Steps[1].ID,
		Condition: domain.ActionComplete,
	})

	res := ValidateTemplate(tpl)

	if res.IsValid {
		t.Fatal("expected invalid template")
	}
	if len(res.Issues) < 2 {
		t.Errorf("each failed check should contribute its own issue, got %v", res.Issues)
	}
}
