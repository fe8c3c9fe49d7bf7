package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vizir/internal/domain"
)

// InstanceRepo — репозиторий для workflow_instances.
//
// Единственный путь мутации instance после создания —
// CommitTransition с оптимистической версионной проверкой.
type InstanceRepo struct {
	pool *pgxpool.Pool
}

// NewInstanceRepo создаёт новый InstanceRepo.
func NewInstanceRepo(pool *pgxpool.Pool) *InstanceRepo {
	return &InstanceRepo{pool: pool}
}

// Create сохраняет новый instance.
func (r *InstanceRepo) Create(ctx context.Context, inst *domain.WorkflowInstance) error {
	query := `
		INSERT INTO workflow_instances
			(id, template_id, entity_type, entity_id, status, current_step_id,
			 version, initiated_by, started_at, step_entered_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		inst.ID,
		inst.TemplateID,
		inst.EntityType,
		inst.EntityID,
		inst.Status,
		inst.CurrentStepID,
		inst.Version,
		inst.InitiatedBy,
		inst.StartedAt,
		inst.StepEnteredAt,
		inst.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// GetByID возвращает instance по ID.
func (r *InstanceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	query := instanceColumns + ` WHERE id = $1`
	inst, err := scanInstance(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// InstanceFilter — параметры фильтрации instances.
type InstanceFilter struct {
	TemplateID *uuid.UUID
	EntityType string
	EntityID   string
	Status     domain.InstanceStatus
	Limit      int
	Offset     int
}

// List возвращает instances с фильтрацией.
func (r *InstanceRepo) List(ctx context.Context, filter InstanceFilter) ([]domain.WorkflowInstance, error) {
	query := instanceColumns + `
		WHERE ($1::uuid IS NULL OR template_id = $1)
		  AND ($2::text IS NULL OR entity_type = $2)
		  AND ($3::text IS NULL OR entity_id = $3)
		  AND ($4::text IS NULL OR status = $4)
		ORDER BY started_at DESC
		LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.TemplateID),
		nullString(filter.EntityType),
		nullString(filter.EntityID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// ListOverdue возвращает IN_PROGRESS instances, чей текущий шаг
// просидел дольше своего timeout_hours. Кандидаты для Sweeper'а.
func (r *InstanceRepo) ListOverdue(ctx context.Context, limit int) ([]domain.WorkflowInstance, error) {
	query := `
		SELECT i.id, i.template_id, i.entity_type, i.entity_id, i.status, i.current_step_id,
		       i.version, i.initiated_by, i.started_at, i.step_entered_at, i.completed_at
		FROM workflow_instances i
		JOIN workflow_steps s ON s.id = i.current_step_id
		WHERE i.status = 'IN_PROGRESS'
		  AND s.timeout_hours IS NOT NULL
		  AND i.step_entered_at + make_interval(hours => s.timeout_hours) < NOW()
		ORDER BY i.step_entered_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue instances: %w", err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// CommitTransition атомарно фиксирует переход: условный UPDATE
// instance плюс INSERT execution-строки в одной транзакции.
//
// UPDATE обусловлен версией, прочитанной вызывающей стороной
// (WHERE version = $expected); version инкрементируется в той же
// команде. Ноль затронутых строк означает либо проигранную гонку
// (ErrVersionConflict), либо исчезнувший instance (ErrNotFound).
func (r *InstanceRepo) CommitTransition(ctx context.Context, inst *domain.WorkflowInstance, expectedVersion int, exec *domain.WorkflowExecution) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE workflow_instances
			SET status = $3,
			    current_step_id = $4,
			    step_entered_at = $5,
			    completed_at = $6,
			    version = version + 1
			WHERE id = $1 AND version = $2
		`,
			inst.ID,
			expectedVersion,
			inst.Status,
			inst.CurrentStepID,
			inst.StepEnteredAt,
			inst.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("update instance: %w", err)
		}

		if result.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM workflow_instances WHERE id = $1)`,
				inst.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check instance: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return fmt.Errorf("instance %s expected version %d: %w",
				inst.ID, expectedVersion, ErrVersionConflict)
		}

		metadataJSON, err := json.Marshal(exec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO workflow_executions
				(id, instance_id, step_id, actor_id, actor_role, action, comments, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			exec.ID,
			exec.InstanceID,
			exec.StepID,
			exec.ActorID,
			exec.ActorRole,
			exec.Action,
			nullString(exec.Comments),
			metadataJSON,
			exec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert execution: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	inst.Version = expectedVersion + 1
	return nil
}

// --- Helpers ---

const instanceColumns = `
	SELECT id, template_id, entity_type, entity_id, status, current_step_id,
	       version, initiated_by, started_at, step_entered_at, completed_at
	FROM workflow_instances
`

func scanInstance(row pgx.Row) (*domain.WorkflowInstance, error) {
	var inst domain.WorkflowInstance
	err := row.Scan(
		&inst.ID,
		&inst.TemplateID,
		&inst.EntityType,
		&inst.EntityID,
		&inst.Status,
		&inst.CurrentStepID,
		&inst.Version,
		&inst.InitiatedBy,
		&inst.StartedAt,
		&inst.StepEnteredAt,
		&inst.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan instance: %w", err)
	}
	return &inst, nil
}

func collectInstances(rows pgx.Rows) ([]domain.WorkflowInstance, error) {
	var instances []domain.WorkflowInstance
	for rows.Next() {
		var inst domain.WorkflowInstance
		if err := rows.Scan(
			&inst.ID,
			&inst.TemplateID,
			&inst.EntityType,
			&inst.EntityID,
			&inst.Status,
			&inst.CurrentStepID,
			&inst.Version,
			&inst.InitiatedBy,
			&inst.StartedAt,
			&inst.StepEnteredAt,
			&inst.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
