package evaluator

import "errors"

// Ошибки оценщика.
var (
	// ErrRunNotFound — симуляция не найдена в БД.
	ErrRunNotFound = errors.New("simulation run not found")

	// ErrAlreadyEvaluated — у симуляции уже есть вердикт.
	ErrAlreadyEvaluated = errors.New("simulation run already evaluated")

	// ErrNotEvaluable — оценке подлежат только завершённые
	// симуляции с исходом AGREEMENT.
	ErrNotEvaluable = errors.New("simulation run is not evaluable")
)
