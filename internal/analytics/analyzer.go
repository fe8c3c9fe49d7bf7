package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
	"github.com/shaiso/Vizir/internal/repo"
)

// Множитель медианы по умолчанию: шаг считается медленным, если его
// средний dwell time превышает медиану по шаблону более чем вдвое.
const defaultSlowMultiplier = 2.0

// Store — выборки, нужные анализатору. Реализуется repo.ExecutionRepo.
type Store interface {
	MetricsForTemplate(ctx context.Context, templateID uuid.UUID, from, to time.Time) (*repo.TemplateMetricsRow, error)
	ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]domain.WorkflowExecution, error)
	StartTimesForTemplate(ctx context.Context, templateID uuid.UUID) (map[uuid.UUID]time.Time, error)
}

// Analyzer — read-only агрегация по историческим instances и их
// execution-строкам. Никогда не мутирует состояние.
type Analyzer struct {
	store          Store
	slowMultiplier float64
}

// Config — конфигурация Analyzer.
type Config struct {
	Store Store

	// SlowMultiplier — порог медленного шага как множитель медианы
	// (default: 2.0).
	SlowMultiplier float64
}

// New создаёт новый Analyzer.
func New(cfg Config) *Analyzer {
	m := cfg.SlowMultiplier
	if m <= 0 {
		m = defaultSlowMultiplier
	}
	return &Analyzer{store: cfg.Store, slowMultiplier: m}
}

// Metrics — сводка по шаблону за период.
type Metrics struct {
	TotalInstances int `json:"total_instances"`

	// CompletionRate — доля COMPLETED среди всех стартовавших.
	CompletionRate float64 `json:"completion_rate"`

	// AvgCompletionTime — среднее время от старта до завершения,
	// только по COMPLETED instances. Незавершённые и отклонённые
	// входят в TotalInstances, но не в среднее.
	AvgCompletionTime time.Duration `json:"avg_completion_time"`
}

// GetMetrics считает сводку по instances шаблона, стартовавшим
// в диапазоне [from, to).
func (a *Analyzer) GetMetrics(ctx context.Context, templateID uuid.UUID, from, to time.Time) (*Metrics, error) {
	row, err := a.store.MetricsForTemplate(ctx, templateID, from, to)
	if err != nil {
		return nil, fmt.Errorf("metrics query: %w", err)
	}

	m := &Metrics{TotalInstances: row.TotalInstances}
	if row.TotalInstances > 0 {
		m.CompletionRate = float64(row.Completed) / float64(row.TotalInstances)
	}
	if row.AvgCompletionSeconds != nil {
		m.AvgCompletionTime = time.Duration(*row.AvgCompletionSeconds * float64(time.Second))
	}
	return m, nil
}

// StepDwell — средний dwell time одного шага.
type StepDwell struct {
	StepID       uuid.UUID     `json:"step_id"`
	AvgDwellTime time.Duration `json:"avg_dwell_time"`
	Visits       int           `json:"visits"`
}

// BottleneckReport — результат анализа узких мест.
type BottleneckReport struct {
	// SlowSteps — шаги, чей средний dwell time превышает медиану
	// по шаблону в SlowMultiplier раз; по убыванию среднего.
	SlowSteps []StepDwell `json:"slow_steps"`

	// MedianDwell — медиана средних dwell time по шагам шаблона.
	MedianDwell time.Duration `json:"median_dwell"`
}

// GetBottlenecks вычисляет dwell time каждого шага по истории
// instances шаблона и выделяет медленные шаги.
func (a *Analyzer) GetBottlenecks(ctx context.Context, templateID uuid.UUID) (*BottleneckReport, error) {
	executions, err := a.store.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("load executions: %w", err)
	}
	started, err := a.store.StartTimesForTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("load start times: %w", err)
	}

	dwells := ComputeStepDwellTimes(started, executions)
	return buildReport(dwells, a.slowMultiplier), nil
}

// ComputeStepDwellTimes считает dwell time по посещениям шагов.
//
// Dwell одного посещения — интервал между моментом входа на шаг и
// execution-строкой, которая шаг покинула. Вход восстанавливается
// из пар соседних строк одного instance; для первой строки instance
// вход — это startedAt. Требует executions, отсортированных по
// (instance, created_at) — формат ListByTemplate.
func ComputeStepDwellTimes(started map[uuid.UUID]time.Time, executions []domain.WorkflowExecution) map[uuid.UUID][]time.Duration {
	dwells := make(map[uuid.UUID][]time.Duration)

	var prevInstance uuid.UUID
	var prevAt time.Time

	for _, e := range executions {
		enteredAt := prevAt
		if e.InstanceID != prevInstance {
			at, ok := started[e.InstanceID]
			if !ok {
				// Instance без startedAt — нечем заякорить первый
				// интервал; пропускаем строку.
				prevInstance = e.InstanceID
				prevAt = e.CreatedAt
				continue
			}
			enteredAt = at
		}

		if d := e.CreatedAt.Sub(enteredAt); d >= 0 {
			dwells[e.StepID] = append(dwells[e.StepID], d)
		}

		prevInstance = e.InstanceID
		prevAt = e.CreatedAt
	}

	return dwells
}

// buildReport агрегирует dwell-выборки в отчёт.
func buildReport(dwells map[uuid.UUID][]time.Duration, multiplier float64) *BottleneckReport {
	if len(dwells) == 0 {
		return &BottleneckReport{SlowSteps: []StepDwell{}}
	}

	averages := make([]StepDwell, 0, len(dwells))
	for stepID, ds := range dwells {
		var total time.Duration
		for _, d := range ds {
			total += d
		}
		averages = append(averages, StepDwell{
			StepID:       stepID,
			AvgDwellTime: total / time.Duration(len(ds)),
			Visits:       len(ds),
		})
	}

	median := medianDwell(averages)
	threshold := time.Duration(multiplier * float64(median))

	slow := make([]StepDwell, 0)
	for _, s := range averages {
		if s.AvgDwellTime > threshold {
			slow = append(slow, s)
		}
	}
	sort.Slice(slow, func(i, j int) bool {
		return slow[i].AvgDwellTime > slow[j].AvgDwellTime
	})

	return &BottleneckReport{SlowSteps: slow, MedianDwell: median}
}

// medianDwell — медиана средних dwell time по шагам.
func medianDwell(averages []StepDwell) time.Duration {
	sorted := make([]time.Duration, len(averages))
	for i, s := range averages {
		sorted[i] = s.AvgDwellTime
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
