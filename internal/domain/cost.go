package domain

import "time"

// Константы стоимости и длительности. Значения фиксированы на уровне
// домена; компоненты берут их как значения по умолчанию для своих Config.
const (
	// CostPerSimulation — оценочная стоимость одной симуляции.
	// EstimatedCost очереди = TotalSimulations × CostPerSimulation.
	CostPerSimulation = 0.05

	// CostPerRound — стоимость одного сыгранного раунда.
	// ActualCost симуляции = TotalRounds × CostPerRound.
	CostPerRound = 0.01

	// DefaultMaxRounds — лимит раундов симуляции, если кейс не задал свой.
	DefaultMaxRounds = 10

	// DefaultMaxRetries — лимит retry после сбоев движка.
	DefaultMaxRetries = 3

	// AvgSimulationDuration — средняя длительность одной симуляции,
	// используется для ETA: remaining × AvgSimulationDuration.
	AvgSimulationDuration = 90 * time.Second
)
