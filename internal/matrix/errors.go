package matrix

import "errors"

// Ошибки валидации запроса на создание очереди.
var (
	// ErrEmptyTechniques — запрос не содержит техник.
	ErrEmptyTechniques = errors.New("request has no techniques")

	// ErrEmptyTactics — запрос не содержит тактик.
	ErrEmptyTactics = errors.New("request has no tactics")

	// ErrDuplicateAxisValue — ось содержит повторяющееся значение.
	ErrDuplicateAxisValue = errors.New("duplicate axis value")

	// ErrUnknownCatalogID — идентификатор отсутствует в справочнике.
	ErrUnknownCatalogID = errors.New("unknown catalog id")

	// ErrUnknownDistance — неизвестная категория дистанции.
	ErrUnknownDistance = errors.New("unknown distance category")

	// ErrMissingNegotiation — запрос без родительского кейса.
	ErrMissingNegotiation = errors.New("negotiation id is required")
)

// ValidationError — ошибка валидации запроса с контекстом.
// Запрос отклоняется синхронно, очередь не создаётся.
type ValidationError struct {
	Field   string // поле запроса, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "field " + e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
