package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Доменные метрики оркестрации. Регистрируются в default registry при
// загрузке пакета; /metrics поднимает promhttp в каждом бинарнике.
var (
	// SimulationsTotal — симуляции, достигшие терминального статуса.
	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "negotium_simulations_total",
		Help: "Simulations finished, labeled by terminal status",
	}, []string{"status"})

	// SimulationDuration — длительность симуляции от захвата до фиксации.
	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "negotium_simulation_duration_seconds",
		Help:    "Wall-clock duration of a single simulation",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// ActiveDrains — очереди с работающим drain-циклом.
	ActiveDrains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "negotium_active_drains",
		Help: "Queues currently being drained",
	})

	// StaleReaped — RUNNING-симуляции, закрытые reaper-ом по давности.
	StaleReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotium_stale_runs_reaped_total",
		Help: "Running simulations reaped as stale",
	})

	// ExecutorRetries — повторные попытки после сбоя исполнителя.
	ExecutorRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotium_executor_retries_total",
		Help: "Simulation retries after executor faults",
	})

	// EventsForwarded — события, пересланные из хаба в RabbitMQ.
	EventsForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotium_events_forwarded_total",
		Help: "Hub events forwarded to the fanout exchange",
	})

	// EvaluationsTotal — обработанные запросы на оценку.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "negotium_evaluations_total",
		Help: "Evaluation requests processed, labeled by result",
	}, []string{"result"})
)
