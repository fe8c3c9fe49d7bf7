package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vizir/internal/domain"
)

// ExecutionRepo — репозиторий для workflow_executions.
//
// Записи append-only: вставку делает InstanceRepo.CommitTransition
// в транзакции перехода, здесь — только чтение.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// ListByInstance возвращает историю instance в порядке фиксации.
func (r *ExecutionRepo) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.WorkflowExecution, error) {
	query := `
		SELECT id, instance_id, step_id, actor_id, actor_role, action, comments, metadata, created_at
		FROM workflow_executions
		WHERE instance_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

// ListByTemplate возвращает execution-строки всех instances шаблона,
// сгруппированные по instance и упорядоченные по времени — формат,
// который ожидает dwell-time анализ.
func (r *ExecutionRepo) ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]domain.WorkflowExecution, error) {
	query := `
		SELECT e.id, e.instance_id, e.step_id, e.actor_id, e.actor_role,
		       e.action, e.comments, e.metadata, e.created_at
		FROM workflow_executions e
		JOIN workflow_instances i ON i.id = e.instance_id
		WHERE i.template_id = $1
		ORDER BY e.instance_id, e.created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("list executions by template: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

// --- Аналитические выборки ---

// TemplateMetricsRow — сырой агрегат по instances шаблона.
type TemplateMetricsRow struct {
	TotalInstances int
	Completed      int
	// AvgCompletionSeconds — среднее (completedAt − startedAt) только
	// по COMPLETED instances; nil, если таких нет.
	AvgCompletionSeconds *float64
}

// MetricsForTemplate агрегирует instances шаблона, стартовавшие
// в диапазоне [from, to).
func (r *ExecutionRepo) MetricsForTemplate(ctx context.Context, templateID uuid.UUID, from, to time.Time) (*TemplateMetricsRow, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'COMPLETED'),
		       AVG(EXTRACT(EPOCH FROM completed_at - started_at))
		           FILTER (WHERE status = 'COMPLETED')
		FROM workflow_instances
		WHERE template_id = $1
		  AND started_at >= $2
		  AND started_at < $3
	`
	var row TemplateMetricsRow
	err := r.pool.QueryRow(ctx, query, templateID, from, to).Scan(
		&row.TotalInstances,
		&row.Completed,
		&row.AvgCompletionSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("template metrics: %w", err)
	}
	return &row, nil
}

// StartTimesForTemplate возвращает startedAt каждого instance шаблона.
// Нужно dwell-time анализу: первый интервал instance отсчитывается
// от запуска, а не от первой execution-строки.
func (r *ExecutionRepo) StartTimesForTemplate(ctx context.Context, templateID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, started_at FROM workflow_instances WHERE template_id = $1
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list start times: %w", err)
	}
	defer rows.Close()

	started := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var id uuid.UUID
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan start time: %w", err)
		}
		started[id] = at
	}
	return started, rows.Err()
}

// --- Helpers ---

func collectExecutions(rows pgx.Rows) ([]domain.WorkflowExecution, error) {
	var executions []domain.WorkflowExecution
	for rows.Next() {
		var e domain.WorkflowExecution
		var comments *string
		var metadataJSON []byte

		if err := rows.Scan(
			&e.ID,
			&e.InstanceID,
			&e.StepID,
			&e.ActorID,
			&e.ActorRole,
			&e.Action,
			&comments,
			&metadataJSON,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}

		if comments != nil {
			e.Comments = *comments
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}
