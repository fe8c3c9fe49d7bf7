package engine

import "errors"

// Ошибки Transition Engine.
var (
	// ErrForbidden — роль актора не совпадает с requiredRole текущего шага.
	ErrForbidden = errors.New("actor role not allowed at current step")

	// ErrInvalidAction — действие не объявлено на текущем шаге либо
	// для него нет разрешимого перехода.
	ErrInvalidAction = errors.New("action not allowed at current step")

	// ErrInstanceFinished — instance уже в терминальном статусе.
	ErrInstanceFinished = errors.New("instance already finished")

	// ErrTemplateInactive — template деактивирован, новые instances
	// не создаются.
	ErrTemplateInactive = errors.New("template is not active")

	// ErrTemplateInvalid — template не прошёл структурную валидацию.
	ErrTemplateInvalid = errors.New("template failed validation")

	// ErrAutoAdvanceCycle — цепочка авто-продвижения вернулась на уже
	// посещённый шаг. Зафиксированные до этого переходы остаются.
	ErrAutoAdvanceCycle = errors.New("auto-advance chain revisited a step")

	// ErrNoInitialStep — у template нет шага с step_order = 1.
	ErrNoInitialStep = errors.New("template has no initial step")
)

// ValidationError — ошибка структуры шаблона с контекстом.
type ValidationError struct {
	Code    IssueCode // классификация проблемы
	Message string    // описание
	Err     error     // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
