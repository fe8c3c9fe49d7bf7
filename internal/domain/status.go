package domain

// InstanceStatus — статус выполнения workflow instance.
//
// Жизненный цикл:
//
//	IN_PROGRESS → COMPLETED
//	            ↘ REJECTED
//	            ↘ TIMED_OUT  (через Sweeper)
//	            ↘ CANCELLED  (явное действие инициатора/администратора)
type InstanceStatus string

const (
	// StatusInProgress — instance находится на одном из шагов шаблона.
	StatusInProgress InstanceStatus = "IN_PROGRESS"

	// StatusCompleted — процесс успешно пройден до конца.
	StatusCompleted InstanceStatus = "COMPLETED"

	// StatusRejected — процесс завершён отказом.
	StatusRejected InstanceStatus = "REJECTED"

	// StatusCancelled — процесс отменён явным действием.
	StatusCancelled InstanceStatus = "CANCELLED"

	// StatusTimedOut — шаг превысил дедлайн, и для него не было
	// TIMEOUT-перехода.
	StatusTimedOut InstanceStatus = "TIMED_OUT"
)

// IsTerminal возвращает true, если статус финальный.
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Конвенциональные действия.
//
// Шаблоны могут объявлять любые метки действий ("APPROVE",
// "REQUEST_CHANGES", ...), но четыре метки имеют зафиксированную
// семантику в Transition Engine:
//
//   - COMPLETE без исходящего перехода → instance переходит в COMPLETED
//   - REJECT без исходящего перехода   → instance переходит в REJECTED
//   - TIMEOUT                          → действие, выполняемое Sweeper'ом
//   - CANCEL                           → записывается в историю при отмене
//
// Это зафиксированная конвенция, а не вывод по имени: любая другая
// метка без подходящего перехода — ошибка.
const (
	ActionComplete = "COMPLETE"
	ActionReject   = "REJECT"
	ActionTimeout  = "TIMEOUT"
	ActionCancel   = "CANCEL"
)

// Зарезервированные системные акторы.
const (
	// SystemActor — актор авто-продвижения (autoAdvance шаги).
	SystemActor = "system"

	// SweeperActor — актор Timeout Sweeper.
	SweeperActor = "system:sweeper"
)
