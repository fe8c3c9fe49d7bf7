package sweeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Vizir/internal/domain"
	"github.com/shaiso/Vizir/internal/engine"
)

const defaultBatchSize = 100

// Advancer — часть Transition Engine, нужная Sweeper'у.
type Advancer interface {
	Timeout(ctx context.Context, instanceID uuid.UUID) (*domain.WorkflowInstance, error)
}

// CandidateStore — выборка просроченных instances.
// Реализуется repo.InstanceRepo.
type CandidateStore interface {
	ListOverdue(ctx context.Context, limit int) ([]domain.WorkflowInstance, error)
}

// Sweeper обрабатывает instances, пересидевшие дедлайн шага.
//
// Sweeper — такой же конкурентный вызывающий, как и люди через API:
// его Timeout подчиняется той же версионной проверке, поэтому гонка
// с живым актором разрешается без блокировок, а повторный проход по
// уже обработанному instance — тихий no-op.
type Sweeper struct {
	instances CandidateStore
	eng       Advancer
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Sweeper.
type Config struct {
	Instances CandidateStore
	Engine    Advancer
	Logger    *slog.Logger
	BatchSize int // instances за один проход (default: 100)
}

// New создаёт новый Sweeper.
func New(cfg Config) *Sweeper {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		instances: cfg.Instances,
		eng:       cfg.Engine,
		logger:    logger,
		batchSize: batchSize,
	}
}

// TickStats — итог одного прохода.
type TickStats struct {
	Candidates int // просроченных instances найдено
	TimedOut   int // помечено TIMED_OUT
	Advanced   int // продвинуто TIMEOUT-переходом
	Skipped    int // проигранные гонки и уже обработанные
	Errors     int // ошибок по отдельным instances
}

// Tick выполняет один проход Sweeper'а.
//
// Ошибка одного instance не блокирует остальные: она логируется,
// instance останется просроченным и будет подхвачен следующим
// проходом. Фатальна только ошибка самой выборки кандидатов.
func (s *Sweeper) Tick(ctx context.Context) (TickStats, error) {
	var stats TickStats

	candidates, err := s.instances.ListOverdue(ctx, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list overdue instances: %w", err)
	}

	stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	s.logger.Debug("found overdue instances", "count", len(candidates))

	for i := range candidates {
		before := &candidates[i]

		after, err := s.eng.Timeout(ctx, before.ID)
		if err != nil {
			if engine.IsConflict(err) {
				// Кто-то успел продвинуть instance первым.
				s.logger.Debug("sweep lost race",
					"instance_id", before.ID,
				)
				stats.Skipped++
				continue
			}
			s.logger.Error("failed to time out instance",
				"instance_id", before.ID,
				"step_id", before.CurrentStepID,
				"error", err,
			)
			stats.Errors++
			continue
		}

		switch {
		case after.Status == domain.StatusTimedOut:
			stats.TimedOut++
		case after.Version > before.Version:
			stats.Advanced++
		default:
			stats.Skipped++
		}
	}

	s.logger.Info("sweep completed",
		"candidates", stats.Candidates,
		"timed_out", stats.TimedOut,
		"advanced", stats.Advanced,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
	)

	return stats, nil
}
