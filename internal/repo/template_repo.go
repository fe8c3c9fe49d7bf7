package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vizir/internal/domain"
)

// TemplateRepo — репозиторий для workflow_templates, workflow_steps
// и workflow_transitions.
//
// Структурные изменения (AddStep, AddTransition) запрещаются, как
// только на template ссылается хоть один instance: любое изменение
// графа может осиротить currentStepId живого процесса.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

// NewTemplateRepo создаёт новый TemplateRepo.
func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

// --- Template CRUD ---

// Create создаёт новый template.
func (r *TemplateRepo) Create(ctx context.Context, tpl *domain.WorkflowTemplate) error {
	query := `
		INSERT INTO workflow_templates (id, name, description, entity_type, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		tpl.ID,
		tpl.Name,
		nullString(tpl.Description),
		tpl.EntityType,
		tpl.IsActive,
		tpl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// GetByID возвращает template без шагов и переходов.
func (r *TemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	query := `
		SELECT id, name, description, entity_type, is_active, created_at
		FROM workflow_templates
		WHERE id = $1
	`
	return scanTemplate(r.pool.QueryRow(ctx, query, id))
}

// GetFull возвращает template с жадно загруженными шагами и переходами.
func (r *TemplateRepo) GetFull(ctx context.Context, id uuid.UUID) (*domain.WorkflowTemplate, error) {
	tpl, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	steps, err := r.listSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl.Steps = steps

	transitions, err := r.listTransitions(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl.Transitions = transitions

	return tpl, nil
}

// List возвращает все templates (без шагов).
func (r *TemplateRepo) List(ctx context.Context) ([]domain.WorkflowTemplate, error) {
	query := `
		SELECT id, name, description, entity_type, is_active, created_at
		FROM workflow_templates
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []domain.WorkflowTemplate
	for rows.Next() {
		var tpl domain.WorkflowTemplate
		var description *string
		if err := rows.Scan(
			&tpl.ID,
			&tpl.Name,
			&description,
			&tpl.EntityType,
			&tpl.IsActive,
			&tpl.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if description != nil {
			tpl.Description = *description
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// SetActive включает или выключает template.
func (r *TemplateRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE workflow_templates SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет template. Запрещено, пока существуют instances —
// их история хранится для аудита.
func (r *TemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		referenced, err := templateReferenced(ctx, tx, id)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("template %s has instances: %w", id, ErrInvalidState)
		}

		result, err := tx.Exec(ctx, `DELETE FROM workflow_templates WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- Steps ---

// AddStep добавляет шаг к template. Дубликат step_order в рамках
// template отклоняется с ErrAlreadyExists.
func (r *TemplateRepo) AddStep(ctx context.Context, step *domain.WorkflowStep) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.guardMutable(ctx, tx, step.TemplateID); err != nil {
			return err
		}

		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM workflow_steps
				WHERE template_id = $1 AND step_order = $2
			)
		`, step.TemplateID, step.StepOrder).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check step order: %w", err)
		}
		if exists {
			return fmt.Errorf("step_order %d already used in template %s: %w",
				step.StepOrder, step.TemplateID, ErrAlreadyExists)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO workflow_steps
				(id, template_id, name, step_order, required_role, actions, auto_advance, timeout_hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			step.ID,
			step.TemplateID,
			step.Name,
			step.StepOrder,
			step.RequiredRole,
			step.Actions,
			step.AutoAdvance,
			step.TimeoutHours,
		)
		if err != nil {
			return fmt.Errorf("insert step: %w", err)
		}
		return nil
	})
}

// AddTransition добавляет переход. Шаги перехода обязаны принадлежать
// тому же template — иначе ErrInvalidState.
func (r *TemplateRepo) AddTransition(ctx context.Context, tr *domain.WorkflowTransition) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.guardMutable(ctx, tx, tr.TemplateID); err != nil {
			return err
		}

		var count int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM workflow_steps
			WHERE template_id = $1 AND id = ANY($2)
		`, tr.TemplateID, []uuid.UUID{tr.FromStepID, tr.ToStepID}).Scan(&count)
		if err != nil {
			return fmt.Errorf("check transition steps: %w", err)
		}

		// Само-переход (from = to) требует одной строки, обычный — двух.
		want := 2
		if tr.FromStepID == tr.ToStepID {
			want = 1
		}
		if count != want {
			return fmt.Errorf("transition references steps outside template %s: %w",
				tr.TemplateID, ErrInvalidState)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO workflow_transitions
				(id, template_id, from_step_id, to_step_id, condition, priority)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			tr.ID,
			tr.TemplateID,
			tr.FromStepID,
			tr.ToStepID,
			tr.Condition,
			tr.Priority,
		)
		if err != nil {
			return fmt.Errorf("insert transition: %w", err)
		}
		return nil
	})
}

// --- Helpers ---

// guardMutable запрещает структурные изменения template, на который
// уже ссылаются instances.
func (r *TemplateRepo) guardMutable(ctx context.Context, tx pgx.Tx, templateID uuid.UUID) error {
	referenced, err := templateReferenced(ctx, tx, templateID)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("template %s is referenced by instances and is immutable: %w",
			templateID, ErrInvalidState)
	}
	return nil
}

func templateReferenced(ctx context.Context, tx pgx.Tx, templateID uuid.UUID) (bool, error) {
	var referenced bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM workflow_instances WHERE template_id = $1)
	`, templateID).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("check template references: %w", err)
	}
	return referenced, nil
}

func (r *TemplateRepo) listSteps(ctx context.Context, templateID uuid.UUID) ([]domain.WorkflowStep, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, template_id, name, step_order, required_role, actions, auto_advance, timeout_hours
		FROM workflow_steps
		WHERE template_id = $1
		ORDER BY step_order ASC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.WorkflowStep
	for rows.Next() {
		var step domain.WorkflowStep
		if err := rows.Scan(
			&step.ID,
			&step.TemplateID,
			&step.Name,
			&step.StepOrder,
			&step.RequiredRole,
			&step.Actions,
			&step.AutoAdvance,
			&step.TimeoutHours,
		); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (r *TemplateRepo) listTransitions(ctx context.Context, templateID uuid.UUID) ([]domain.WorkflowTransition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, template_id, from_step_id, to_step_id, condition, priority
		FROM workflow_transitions
		WHERE template_id = $1
		ORDER BY priority DESC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []domain.WorkflowTransition
	for rows.Next() {
		var tr domain.WorkflowTransition
		if err := rows.Scan(
			&tr.ID,
			&tr.TemplateID,
			&tr.FromStepID,
			&tr.ToStepID,
			&tr.Condition,
			&tr.Priority,
		); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		transitions = append(transitions, tr)
	}
	return transitions, rows.Err()
}

func scanTemplate(row pgx.Row) (*domain.WorkflowTemplate, error) {
	var tpl domain.WorkflowTemplate
	var description *string

	err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&description,
		&tpl.EntityType,
		&tpl.IsActive,
		&tpl.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}

	if description != nil {
		tpl.Description = *description
	}
	return &tpl, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
