package sweeper

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

type fakeCandidates struct {
	overdue []domain.WorkflowInstance
	err     error
}

func (f *fakeCandidates) ListOverdue(_ context.Context, limit int) ([]domain.WorkflowInstance, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.overdue) > limit {
		return f.overdue[:limit], nil
	}
	return f.overdue, nil
}

// fakeAdvancer управляет исходом Timeout по каждому instance.
type fakeAdvancer struct {
	results map[uuid.UUID]timeoutResult
	calls   []uuid.UUID
}

type timeoutResult struct {
	inst *domain.WorkflowInstance
	err  error
}

func (f *fakeAdvancer) Timeout(_ context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	f.calls = append(f.calls, id)
	r, ok := f.results[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return r.inst, r.err
}

func overdueInstance(version int) domain.WorkflowInstance {
	return domain.WorkflowInstance{
		ID:            uuid.New(),
		TemplateID:    uuid.New(),
		EntityType:    "CONTESTANT",
		EntityID:      "c-1",
		Status:        domain.StatusInProgress,
		CurrentStepID: uuid.New(),
		Version:       version,
		StartedAt:     time.Now().Add(-3 * time.Hour),
		StepEnteredAt: time.Now().Add(-2 * time.Hour),
	}
}

func timedOutCopy(inst domain.WorkflowInstance) *domain.WorkflowInstance {
	out := inst
	out.Status = domain.StatusTimedOut
	out.Version = inst.Version + 1
	now := time.Now()
	out.CompletedAt = &now
	return &out
}

func advancedCopy(inst domain.WorkflowInstance) *domain.WorkflowInstance {
	out := inst
	out.CurrentStepID = uuid.New()
	out.Version = inst.Version + 1
	out.StepEnteredAt = time.Now()
	return &out
}

func TestTick_Empty(t *testing.T) {
	sw := New(Config{
		Instances: &fakeCandidates{},
		Engine:    &fakeAdvancer{},
	})

	stats, err := sw.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Candidates != 0 {
		t.Errorf("candidates = %d, want 0", stats.Candidates)
	}
}

func TestTick_ClassifiesOutcomes(t *testing.T) {
	timedOut := overdueInstance(2)
	advanced := overdueInstance(3)
	raced := overdueInstance(1)
	broken := overdueInstance(1)

	adv := &fakeAdvancer{results: map[uuid.UUID]timeoutResult{
		timedOut.ID: {inst: timedOutCopy(timedOut)},
		advanced.ID: {inst: advancedCopy(advanced)},
		raced.ID:    {err: fmt.Errorf("commit: %w", repo.ErrVersionConflict)},
		broken.ID:   {err: errors.New("boom")},
	}}

	sw := New(Config{
		Instances: &fakeCandidates{overdue: []domain.WorkflowInstance{timedOut, advanced, raced, broken}},
		Engine:    adv,
	})

	stats, err := sw.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Candidates != 4 {
		t.Errorf("candidates = %d, want 4", stats.Candidates)
	}
	if stats.TimedOut != 1 {
		t.Errorf("timed_out = %d, want 1", stats.TimedOut)
	}
	if stats.Advanced != 1 {
		t.Errorf("advanced = %d, want 1", stats.Advanced)
	}
	// Проигранная гонка — не ошибка
	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}
	if stats.Errors != 1 {
		t.Errorf("errors = %d, want 1", stats.Errors)
	}

	// Ошибка одного instance не блокирует остальные
	if len(adv.calls) != 4 {
		t.Errorf("all candidates must be attempted, got %d calls", len(adv.calls))
	}
}

func TestTick_AlreadyProcessedIsSkipped(t *testing.T) {
	// Кандидат выбран, но между выборкой и Timeout его уже обработали:
	// движок возвращает instance без изменений
	stale := overdueInstance(5)
	unchanged := stale

	sw := New(Config{
		Instances: &fakeCandidates{overdue: []domain.WorkflowInstance{stale}},
		Engine: &fakeAdvancer{results: map[uuid.UUID]timeoutResult{
			stale.ID: {inst: &unchanged},
		}},
	})

	stats, err := sw.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Skipped != 1 || stats.TimedOut != 0 || stats.Advanced != 0 {
		t.Errorf("no-op result should count as skipped: %+v", stats)
	}
}

func TestTick_ListError(t *testing.T) {
	sw := New(Config{
		Instances: &fakeCandidates{err: errors.New("db down")},
		Engine:    &fakeAdvancer{},
	})

	if _, err := sw.Tick(context.Background()); err == nil {
		t.Fatal("candidate query failure must be fatal for the tick")
	}
}

func TestTick_BatchLimit(t *testing.T) {
	var overdue []domain.WorkflowInstance
	results := make(map[uuid.UUID]timeoutResult)
	for range 5 {
		inst := overdueInstance(1)
		overdue = append(overdue, inst)
		results[inst.ID] = timeoutResult{inst: timedOutCopy(inst)}
	}

	adv := &fakeAdvancer{results: results}
	sw := New(Config{
		Instances: &fakeCandidates{overdue: overdue},
		Engine:    adv,
		BatchSize: 3,
	})

	stats, err := sw.Tick(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Candidates != 3 {
		t.Errorf("candidates = %d, want batch size 3", stats.Candidates)
	}
}

func TestNextTick_Interval(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := NextTick("", time.Minute, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(time.Minute)) {
		t.Errorf("next = %s, want %s", next, from.Add(time.Minute))
	}
}

func TestNextTick_Cron(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	// Cron имеет приоритет над интервалом
	next, err := NextTick("0 * * * *", time.Minute, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %s, want top of the hour %s", next, want)
	}
}

func TestNextTick_Invalid(t *testing.T) {
	if _, err := NextTick("not a cron", time.Minute, time.Now()); err == nil {
		t.Error("invalid cron expression must fail")
	}
	if _, err := NextTick("", 0, time.Now()); err == nil {
		t.Error("non-positive interval must fail")
	}
}
