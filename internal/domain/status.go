package domain

// QueueStatus — статус очереди симуляций.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	          RUNNING ⇄ PAUSED
//	          RUNNING → FAILED (необработанная ошибка drain-цикла)
//
// stopQueue переводит очередь в COMPLETED из любого активного статуса,
// restartFailedSimulations возвращает её в PENDING.
type QueueStatus string

const (
	// QueueStatusPending — очередь создана, ожидает диспетчеризации.
	QueueStatusPending QueueStatus = "PENDING"

	// QueueStatusRunning — drain-цикл очереди выполняет симуляции.
	QueueStatusRunning QueueStatus = "RUNNING"

	// QueueStatusPaused — очередь приостановлена пользователем или
	// pause-сигналом из движка переговоров.
	QueueStatusPaused QueueStatus = "PAUSED"

	// QueueStatusCompleted — все симуляции достигли терминального статуса.
	QueueStatusCompleted QueueStatus = "COMPLETED"

	// QueueStatusFailed — drain-цикл завершился необработанной ошибкой.
	QueueStatusFailed QueueStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s QueueStatus) IsTerminal() bool {
	switch s {
	case QueueStatusCompleted, QueueStatusFailed:
		return true
	default:
		return false
	}
}

// IsDispatchable возвращает true, если очередь может получать симуляции
// на выполнение. Scheduler сканирует только такие очереди.
func (s QueueStatus) IsDispatchable() bool {
	return s == QueueStatusPending || s == QueueStatusRunning
}

// SimulationStatus — статус одной симуляции переговоров.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED | FAILED | TIMEOUT | PAUSED | ABORTED
//
// FAILED и TIMEOUT возвращаются в PENDING только через явный
// restartFailedSimulations, автоматического повтора терминальных
// статусов нет. RUNNING → PENDING происходит при ограниченном retry
// после сбоя движка.
type SimulationStatus string

const (
	// SimulationStatusPending — симуляция ожидает своей очереди диспетчеризации.
	SimulationStatusPending SimulationStatus = "PENDING"

	// SimulationStatusRunning — симуляция выполняется движком переговоров.
	SimulationStatusRunning SimulationStatus = "RUNNING"

	// SimulationStatusCompleted — переговоры завершились результатом
	// (соглашение, явное прекращение или walk-away).
	SimulationStatusCompleted SimulationStatus = "COMPLETED"

	// SimulationStatusFailed — сбой движка после исчерпания retry
	// либо нераспознанный исход.
	SimulationStatusFailed SimulationStatus = "FAILED"

	// SimulationStatusTimeout — раунды исчерпаны без результата либо
	// симуляция зависла и снята reaper'ом.
	SimulationStatusTimeout SimulationStatus = "TIMEOUT"

	// SimulationStatusPaused — движок сообщил pause-сигнал.
	SimulationStatusPaused SimulationStatus = "PAUSED"

	// SimulationStatusAborted — симуляция остановлена через stopQueue.
	SimulationStatusAborted SimulationStatus = "ABORTED"
)

// IsTerminal возвращает true, если статус финальный (симуляция завершена).
// PAUSED не терминален: resume возвращает такие симуляции в PENDING.
func (s SimulationStatus) IsTerminal() bool {
	switch s {
	case SimulationStatusCompleted, SimulationStatusFailed,
		SimulationStatusTimeout, SimulationStatusAborted:
		return true
	default:
		return false
	}
}

// IsFailure возвращает true для терминальных неуспешных статусов.
// Они входят в failed-счётчик агрегатов очереди.
func (s SimulationStatus) IsFailure() bool {
	switch s {
	case SimulationStatusFailed, SimulationStatusTimeout, SimulationStatusAborted:
		return true
	default:
		return false
	}
}

// NegotiationStatus — статус родительского переговорного кейса.
type NegotiationStatus string

const (
	// NegotiationStatusDraft — кейс настраивается, очередь ещё не запущена.
	NegotiationStatusDraft NegotiationStatus = "DRAFT"

	// NegotiationStatusRunning — очередь симуляций кейса активна.
	NegotiationStatusRunning NegotiationStatus = "RUNNING"

	// NegotiationStatusCompleted — очередь симуляций кейса завершена.
	NegotiationStatusCompleted NegotiationStatus = "COMPLETED"
)
