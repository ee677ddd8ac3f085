package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrNoPendingRuns — в очереди не осталось симуляций в статусе PENDING.
	// Сигнал завершения для drain-цикла, а не сбой.
	ErrNoPendingRuns = errors.New("no pending runs")

	// ErrStatusConflict — guarded-обновление не прошло: статус строки
	// уже изменён конкурентной операцией (например, stopQueue перевёл
	// симуляцию в ABORTED, пока движок считал результат).
	ErrStatusConflict = errors.New("status conflict")
)
