package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
	"github.com/shaiso/Vizir/internal/repo"
)

// --- Fakes ---

type fakeTemplates struct {
	tpl *domain.WorkflowTemplate
}

func (f *fakeTemplates) GetFull(_ context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	if f.tpl == nil || f.tpl.ID != id {
		return nil, repo.ErrNotFound
	}
	return f.tpl, nil
}

// fakeInstances воспроизводит версионную семантику CommitTransition
// в памяти.
type fakeInstances struct {
	instances  map[uuid.UUID]domain.WorkflowInstance
	executions []domain.WorkflowExecution

	// failCommit подменяет результат следующего CommitTransition.
	failCommit error
}

func newFakeInstances() *fakeInstances {
	return &fakeInstances{instances: make(map[uuid.UUID]domain.WorkflowInstance)}
}

func (f *fakeInstances) Create(_ context.Context, inst *domain.WorkflowInstance) error {
	if _, ok := f.instances[inst.ID]; ok {
		return repo.ErrAlreadyExists
	}
	f.instances[inst.ID] = *inst
	return nil
}

func (f *fakeInstances) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := inst
	return &out, nil
}

func (f *fakeInstances) CommitTransition(_ context.Context, inst *domain.WorkflowInstance, expectedVersion int, exec *domain.WorkflowExecution) error {
	if f.failCommit != nil {
		err := f.failCommit
		f.failCommit = nil
		return err
	}

	stored, ok := f.instances[inst.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("instance %s expected version %d: %w", inst.ID, expectedVersion, repo.ErrVersionConflict)
	}

	committed := *inst
	committed.Version = expectedVersion + 1
	f.instances[inst.ID] = committed
	f.executions = append(f.executions, *exec)

	inst.Version = expectedVersion + 1
	return nil
}

type capturedEvent struct {
	event  string
	action string
	status domain.InstanceStatus
}

type fakeEvents struct {
	published []capturedEvent
}

func (f *fakeEvents) PublishInstanceEvent(_ context.Context, event string, inst *domain.WorkflowInstance, action string) {
	f.published = append(f.published, capturedEvent{event: event, action: action, status: inst.Status})
}

// --- Template fixture ---

// testTemplate: Заявка (ORGANIZER) → Проверка (BOARD) → Финализация
// (ADMIN, autoAdvance). REJECT на втором шаге возвращает на первый.
type fixture struct {
	tpl *domain.WorkflowTemplate
	s1  *domain.WorkflowStep
	s2  *domain.WorkflowStep
	s3  *domain.WorkflowStep
}

func testTemplate(t *testing.T) *fixture {
	t.Helper()

	tplID := uuid.New()
	s1 := domain.WorkflowStep{
		ID: uuid.New(), TemplateID: tplID, Name: "Заявка",
		StepOrder: 1, RequiredRole: "ORGANIZER",
		Actions: []string{domain.ActionComplete},
	}
	s2 := domain.WorkflowStep{
		ID: uuid.New(), TemplateID: tplID, Name: "Проверка",
		StepOrder: 2, RequiredRole: "BOARD",
		Actions: []string{domain.ActionComplete, domain.ActionReject},
	}
	s3 := domain.WorkflowStep{
		ID: uuid.New(), TemplateID: tplID, Name: "Финализация",
		StepOrder: 3, RequiredRole: "ADMIN",
		Actions: []string{domain.ActionComplete}, AutoAdvance: true,
	}

	tpl := &domain.WorkflowTemplate{
		ID:         tplID,
		Name:       "Регистрация участника",
		EntityType: "CONTESTANT",
		IsActive:   true,
		Steps:      []domain.WorkflowStep{s1, s2, s3},
		Transitions: []domain.WorkflowTransition{
			{ID: uuid.New(), TemplateID: tplID, FromStepID: s1.ID, ToStepID: s2.ID, Condition: domain.ActionComplete},
			{ID: uuid.New(), TemplateID: tplID, FromStepID: s2.ID, ToStepID: s3.ID, Condition: domain.ActionComplete},
			{ID: uuid.New(), TemplateID: tplID, FromStepID: s2.ID, ToStepID: s1.ID, Condition: domain.ActionReject},
		},
	}

	if res := ValidateTemplate(tpl); !res.IsValid {
		t.Fatalf("fixture template should be valid, got issues: %v", res.Issues)
	}

	return &fixture{tpl: tpl, s1: &tpl.Steps[0], s2: &tpl.Steps[1], s3: &tpl.Steps[2]}
}

func newTestEngine(fix *fixture) (*Engine, *fakeInstances, *fakeEvents) {
	instances := newFakeInstances()
	events := &fakeEvents{}
	eng := New(Config{
		Templates: &fakeTemplates{tpl: fix.tpl},
		Instances: instances,
		Events:    events,
	})
	return eng, instances, events
}

// --- StartInstance ---

func TestStartInstance(t *testing.T) {
	fix := testTemplate(t)
	eng, instances, events := newTestEngine(fix)

	inst, err := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-42", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inst.Status != domain.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", inst.Status)
	}
	if inst.CurrentStepID != fix.s1.ID {
		t.Error("instance should start at the step with step_order = 1")
	}
	if inst.Version != 1 {
		t.Errorf("version = %d, want 1", inst.Version)
	}
	if inst.InitiatedBy != "user-1" {
		t.Errorf("initiated_by = %s, want user-1", inst.InitiatedBy)
	}

	if len(instances.instances) != 1 {
		t.Error("instance should be persisted")
	}
	if len(events.published) != 1 || events.published[0].event != EventStarted {
		t.Errorf("expected single %s event, got %v", EventStarted, events.published)
	}
}

func TestStartInstance_InactiveTemplate(t *testing.T) {
	fix := testTemplate(t)
	fix.tpl.IsActive = false
	eng, _, _ := newTestEngine(fix)

	_, err := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")
	if !errors.Is(err, ErrTemplateInactive) {
		t.Errorf("expected ErrTemplateInactive, got %v", err)
	}
}

func TestStartInstance_InvalidTemplate(t *testing.T) {
	fix := testTemplate(t)
	// Убираем начальный шаг — шаблон становится невалидным
	fix.tpl.Steps[0].StepOrder = 99
	eng, _, _ := newTestEngine(fix)

	_, err := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")
	if !errors.Is(err, ErrTemplateInvalid) {
		t.Errorf("expected ErrTemplateInvalid, got %v", err)
	}
}

// --- Advance ---

func TestAdvance_MoveToNextStep(t *testing.T) {
	fix := testTemplate(t)
	eng, instances, _ := newTestEngine(fix)

	inst, err := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	got, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID,
		ActorID:    "user-2",
		ActorRole:  "ORGANIZER",
		Action:     domain.ActionComplete,
		Comments:   "готово",
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	if got.CurrentStepID != fix.s2.ID {
		t.Error("instance should move to the second step")
	}
	if got.Status != domain.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", got.Status)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2 after one committed transition", got.Version)
	}

	if len(instances.executions) != 1 {
		t.Fatalf("expected 1 execution row, got %d", len(instances.executions))
	}
	exec := instances.executions[0]
	if exec.StepID != fix.s1.ID || exec.Action != domain.ActionComplete || exec.ActorID != "user-2" {
		t.Errorf("execution row mismatch: %+v", exec)
	}
}

func TestAdvance_WrongRole(t *testing.T) {
	fix := testTemplate(t)
	eng, instances, _ := newTestEngine(fix)

	inst, _ := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")

	_, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID,
		ActorID:    "user-2",
		ActorRole:  "BOARD", // шаг требует ORGANIZER
		Action:     domain.ActionComplete,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Отказ не должен мутировать instance
	stored := instances.instances[inst.ID]
	if stored.Version != 1 || stored.CurrentStepID != fix.s1.ID {
		t.Error("failed advance must not mutate the instance")
	}
	if len(instances.executions) != 0 {
		t.Error("failed advance must not write execution rows")
	}
}

func TestAdvance_UndeclaredAction(t *testing.T) {
	fix := testTemplate(t)
	eng, _, _ := newTestEngine(fix)

	inst, _ := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")

	_, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID,
		ActorID:    "user-2",
		ActorRole:  "ORGANIZER",
		Action:     domain.ActionReject, // не объявлено на первом шаге
	})
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
}

func TestAdvance_RejectMovesBack(t *testing.T) {
	fix := testTemplate(t)
	eng, _, _ := newTestEngine(fix)

	inst, _ := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")
	inst, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "u", ActorRole: "ORGANIZER", Action: domain.ActionComplete,
	})
	if err != nil {
		t.Fatalf("advance to step 2: %v", err)
	}

	// REJECT объявлен переходом назад — это move, не терминал
	got, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "b", ActorRole: "BOARD", Action: domain.ActionReject,
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != domain.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS (REJECT with a transition moves)", got.Status)
	}
	if got.CurrentStepID != fix.s1.ID {
		t.Error("REJECT transition should move the instance back to the first step")
	}
}

func TestAdvance_AutoAdvanceToCompletion(t *testing.T) {
	fix := testTemplate(t)
	eng, instances, events := newTestEngine(fix)

	inst, _ := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")
	inst, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "u", ActorRole: "ORGANIZER", Action: domain.ActionComplete,
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	// BOARD завершает проверку; третий шаг autoAdvance и без исходящих
	// переходов — движок доводит instance до COMPLETED сам.
	got, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "b", ActorRole: "BOARD", Action: domain.ActionComplete,
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set on terminal status")
	}
	// start(v1) → s2(v2) → s3(v3) → терминал(v4)
	if got.Version != 4 {
		t.Errorf("version = %d, want 4", got.Version)
	}

	// Авто-шаг записан от имени системного актора
	last := instances.executions[len(instances.executions)-1]
	if last.ActorID != domain.SystemActor {
		t.Errorf("auto-advance actor = %s, want %s", last.ActorID, domain.SystemActor)
	}
	if last.ActorRole != fix.s3.RequiredRole {
		t.Errorf("auto-advance role = %s, want %s", last.ActorRole, fix.s3.RequiredRole)
	}

	final := events.published[len(events.published)-1]
	if final.event != EventCompleted {
		t.Errorf("final event = %s, want %s", final.event, EventCompleted)
	}
}

func TestAdvance_VersionConflict(t *testing.T) {
	fix := testTemplate(t)
	eng, instances, _ := newTestEngine(fix)

	inst, _ := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")

	instances.failCommit = fmt.Errorf("stale: %w", repo.ErrVersionConflict)

	_, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "u", ActorRole: "ORGANIZER", Action: domain.ActionComplete,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsConflict(err) {
		t.Errorf("IsConflict should recognize the wrapped conflict, got %v", err)
	}

	stored := instances.instances[inst.ID]
	if stored.Version != 1 {
		t.Error("lost race must leave the stored instance unchanged")
	}
}

func TestAdvance_FinishedInstance(t *testing.T) {
	fix := testTemplate(t)
	eng, instances, _ := newTestEngine(fix)

	inst, _ := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")
	if _, err := eng.Cancel(context.Background(), inst.ID, "admin", "ADMIN", ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "u", ActorRole: "ORGANIZER", Action: domain.ActionComplete,
	})
	if !errors.Is(err, ErrInstanceFinished) {
		t.Errorf("expected ErrInstanceFinished, got %v", err)
	}

	execs := len(instances.executions)
	if execs != 1 { // только CANCEL
		t.Errorf("expected 1 execution row, got %d", execs)
	}
}

// --- Ambiguous routing at runtime ---

func TestAdvance_PriorityTieFails(t *testing.T) {
	fix := testTemplate(t)
	// Два перехода s1 -COMPLETE-> с равным priority
	fix.tpl.Transitions = append(fix.tpl.Transitions, domain.WorkflowTransition{
		ID: uuid.New(), TemplateID: fix.tpl.ID,
		FromStepID: fix.s1.ID, ToStepID: fix.s3.ID,
		Condition: domain.ActionComplete, Priority: 0,
	})
	eng, instances, _ := newTestEngine(fix)

	// Seed напрямую: StartInstance отклонил бы невалидный шаблон
	inst := domain.WorkflowInstance{
		ID: uuid.New(), TemplateID: fix.tpl.ID,
		EntityType: "CONTESTANT", EntityID: "c-1",
		Status: domain.StatusInProgress, CurrentStepID: fix.s1.ID,
		Version: 1, StartedAt: time.Now(), StepEnteredAt: time.Now(),
	}
	instances.instances[inst.ID] = inst

	_, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "u", ActorRole: "ORGANIZER", Action: domain.ActionComplete,
	})
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("priority tie must fail hard with ErrInvalidAction, got %v", err)
	}
}

func TestAdvance_HigherPriorityWins(t *testing.T) {
	fix := testTemplate(t)
	fix.tpl.Transitions = append(fix.tpl.Transitions, domain.WorkflowTransition{
		ID: uuid.New(), TemplateID: fix.tpl.ID,
		FromStepID: fix.s1.ID, ToStepID: fix.s3.ID,
		Condition: domain.ActionComplete, Priority: 10,
	})
	eng, instances, _ := newTestEngine(fix)

	inst := domain.WorkflowInstance{
		ID: uuid.New(), TemplateID: fix.tpl.ID,
		EntityType: "CONTESTANT", EntityID: "c-1",
		Status: domain.StatusInProgress, CurrentStepID: fix.s1.ID,
		Version: 1, StartedAt: time.Now(), StepEnteredAt: time.Now(),
	}
	instances.instances[inst.ID] = inst

	got, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "u", ActorRole: "ORGANIZER", Action: domain.ActionComplete,
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	// Переход с priority 10 ведёт на третий шаг (autoAdvance → COMPLETED)
	if got.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED via the priority-10 transition", got.Status)
	}
}

// --- Cancel ---

func TestCancel(t *testing.T) {
	fix := testTemplate(t)
	eng, instances, events := newTestEngine(fix)

	inst, _ := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")

	got, err := eng.Cancel(context.Background(), inst.ID, "admin", "ADMIN", "дубликат")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}

	exec := instances.executions[0]
	if exec.Action != domain.ActionCancel || exec.Comments != "дубликат" {
		t.Errorf("cancel execution mismatch: %+v", exec)
	}

	final := events.published[len(events.published)-1]
	if final.event != EventCancelled {
		t.Errorf("event = %s, want %s", final.event, EventCancelled)
	}

	// Повторная отмена — уже терминальный instance
	if _, err := eng.Cancel(context.Background(), inst.ID, "admin", "ADMIN", ""); !errors.Is(err, ErrInstanceFinished) {
		t.Errorf("expected ErrInstanceFinished, got %v", err)
	}
}

// --- Timeout ---

func overdueFixture(t *testing.T) (*fixture, *Engine, *fakeInstances, *fakeEvents, uuid.UUID) {
	t.Helper()

	fix := testTemplate(t)
	hours := 1
	fix.tpl.Steps[1].TimeoutHours = &hours // Проверка: дедлайн 1 час

	eng, instances, events := newTestEngine(fix)

	inst := domain.WorkflowInstance{
		ID: uuid.New(), TemplateID: fix.tpl.ID,
		EntityType: "CONTESTANT", EntityID: "c-1",
		Status: domain.StatusInProgress, CurrentStepID: fix.s2.ID,
		Version: 2, InitiatedBy: "user-1",
		StartedAt:     time.Now().Add(-3 * time.Hour),
		StepEnteredAt: time.Now().Add(-2 * time.Hour),
	}
	instances.instances[inst.ID] = inst
	return fix, eng, instances, events, inst.ID
}

func TestTimeout_MarksTimedOut(t *testing.T) {
	fix, eng, instances, events, id := overdueFixture(t)

	got, err := eng.Timeout(context.Background(), id)
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}

	if got.Status != domain.StatusTimedOut {
		t.Errorf("status = %s, want TIMED_OUT", got.Status)
	}
	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}

	exec := instances.executions[0]
	if exec.Action != domain.ActionTimeout || exec.ActorID != domain.SweeperActor {
		t.Errorf("timeout execution mismatch: %+v", exec)
	}
	if exec.ActorRole != fix.s2.RequiredRole {
		t.Errorf("timeout actor role = %s, want %s", exec.ActorRole, fix.s2.RequiredRole)
	}

	if events.published[len(events.published)-1].event != EventTimedOut {
		t.Error("expected instance.timed_out event")
	}
}

func TestTimeout_Idempotent(t *testing.T) {
	_, eng, instances, _, id := overdueFixture(t)

	if _, err := eng.Timeout(context.Background(), id); err != nil {
		t.Fatalf("first timeout: %v", err)
	}

	// Повторный вызов по обработанному instance — тихий no-op
	got, err := eng.Timeout(context.Background(), id)
	if err != nil {
		t.Fatalf("second timeout: %v", err)
	}
	if got.Status != domain.StatusTimedOut {
		t.Errorf("status = %s, want TIMED_OUT", got.Status)
	}
	if len(instances.executions) != 1 {
		t.Errorf("second pass must not write execution rows, got %d", len(instances.executions))
	}
}

func TestTimeout_DeadlineNotExceeded(t *testing.T) {
	fix, eng, instances, _, _ := overdueFixture(t)

	fresh := domain.WorkflowInstance{
		ID: uuid.New(), TemplateID: fix.tpl.ID,
		EntityType: "CONTESTANT", EntityID: "c-2",
		Status: domain.StatusInProgress, CurrentStepID: fix.s2.ID,
		Version: 1, StartedAt: time.Now(), StepEnteredAt: time.Now(),
	}
	instances.instances[fresh.ID] = fresh

	// Дедлайн ещё не истёк — no-op
	got, err := eng.Timeout(context.Background(), fresh.ID)
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if got.Status != domain.StatusInProgress || got.Version != 1 {
		t.Error("instance within its deadline must not be touched")
	}
}

func TestTimeout_DeclaredTransition(t *testing.T) {
	fix, eng, instances, _, id := overdueFixture(t)

	// Объявляем TIMEOUT-переход: эскалация обратно на первый шаг
	fix.tpl.Transitions = append(fix.tpl.Transitions, domain.WorkflowTransition{
		ID: uuid.New(), TemplateID: fix.tpl.ID,
		FromStepID: fix.s2.ID, ToStepID: fix.s1.ID,
		Condition: domain.ActionTimeout,
	})

	got, err := eng.Timeout(context.Background(), id)
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}

	if got.Status != domain.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS (TIMEOUT transition moves)", got.Status)
	}
	if got.CurrentStepID != fix.s1.ID {
		t.Error("TIMEOUT transition should move the instance, not kill it")
	}

	exec := instances.executions[0]
	if exec.Action != domain.ActionTimeout || exec.ActorID != domain.SweeperActor {
		t.Errorf("timeout execution mismatch: %+v", exec)
	}
}

// --- Auto-advance cycle guard ---

func TestAutoAdvance_CycleDetected(t *testing.T) {
	tplID := uuid.New()
	a := domain.WorkflowStep{
		ID: uuid.New(), TemplateID: tplID, Name: "A", StepOrder: 1,
		RequiredRole: "SYSTEM", Actions: []string{domain.ActionComplete}, AutoAdvance: true,
	}
	b := domain.WorkflowStep{
		ID: uuid.New(), TemplateID: tplID, Name: "B", StepOrder: 2,
		RequiredRole: "SYSTEM", Actions: []string{domain.ActionComplete}, AutoAdvance: true,
	}
	tpl := &domain.WorkflowTemplate{
		ID: tplID, Name: "Цикл", EntityType: "X", IsActive: true,
		Steps: []domain.WorkflowStep{a, b},
		Transitions: []domain.WorkflowTransition{
			{ID: uuid.New(), TemplateID: tplID, FromStepID: a.ID, ToStepID: b.ID, Condition: domain.ActionComplete},
			{ID: uuid.New(), TemplateID: tplID, FromStepID: b.ID, ToStepID: a.ID, Condition: domain.ActionComplete},
		},
	}

	instances := newFakeInstances()
	eng := New(Config{
		Templates: &fakeTemplates{tpl: tpl},
		Instances: instances,
	})

	_, err := eng.StartInstance(context.Background(), tplID, "X", "x-1", "user-1")
	if !errors.Is(err, ErrAutoAdvanceCycle) {
		t.Fatalf("expected ErrAutoAdvanceCycle, got %v", err)
	}

	// Закоммиченные звенья цепочки остаются
	if len(instances.executions) == 0 {
		t.Error("committed links of the chain must survive the cycle error")
	}
}

func TestAutoAdvance_MultiActionStopsChain(t *testing.T) {
	fix := testTemplate(t)
	// Третий шаг объявляет два действия — autoAdvance не знает, какое
	// выбрать, и останавливает цепочку
	fix.tpl.Steps[2].Actions = []string{domain.ActionComplete, domain.ActionReject}

	eng, _, _ := newTestEngine(fix)

	inst, _ := eng.StartInstance(context.Background(), fix.tpl.ID, "CONTESTANT", "c-1", "user-1")
	inst, _ = eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "u", ActorRole: "ORGANIZER", Action: domain.ActionComplete,
	})

	got, err := eng.Advance(context.Background(), AdvanceCommand{
		InstanceID: inst.ID, ActorID: "b", ActorRole: "BOARD", Action: domain.ActionComplete,
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	if got.Status != domain.StatusInProgress || got.CurrentStepID != fix.s3.ID {
		t.Error("ambiguous auto-advance step should hold the instance in place")
	}
}
