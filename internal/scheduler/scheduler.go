package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Default configuration values.
const (
	defaultCronExpr          = "0 3 * * *"
	defaultSnapshotRetention = 7 * 24 * time.Hour
	defaultLogRetention      = 90 * 24 * time.Hour
)

// MaintenanceStore — retention-операции над строками симуляций.
type MaintenanceStore interface {
	ClearFinishedSnapshots(ctx context.Context, before time.Time) (int64, error)
	TruncateConversationLogs(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler — планировщик обслуживания БД.
//
// По cron-расписанию выполняет retention-sweeps:
//   - обнуляет recovery-снимки давно завершённых симуляций
//   - обнуляет сырые логи переговоров старше retention-окна
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock: Tick вызывается
// только лидером.
type Scheduler struct {
	runs MaintenanceStore

	schedule cron.Schedule

	mu      sync.Mutex
	nextDue time.Time

	snapshotRetention time.Duration
	logRetention      time.Duration

	logger *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	// Хранилище симуляций
	Runs MaintenanceStore

	// CronExpr — расписание sweeps (default: "0 3 * * *", каждый день в 3:00)
	CronExpr string

	// SnapshotRetention — сколько держать recovery-снимки завершённых
	// симуляций (default: 7 дней)
	SnapshotRetention time.Duration

	// LogRetention — сколько держать сырые логи переговоров (default: 90 дней)
	LogRetention time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Scheduler. Возвращает ошибку, если cron-выражение
// не парсится.
func New(cfg Config) (*Scheduler, error) {
	expr := cfg.CronExpr
	if expr == "" {
		expr = defaultCronExpr
	}

	schedule, err := ParseCronExpr(expr)
	if err != nil {
		return nil, err
	}

	snapshotRetention := cfg.SnapshotRetention
	if snapshotRetention <= 0 {
		snapshotRetention = defaultSnapshotRetention
	}

	logRetention := cfg.LogRetention
	if logRetention <= 0 {
		logRetention = defaultLogRetention
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		runs:              cfg.Runs,
		schedule:          schedule,
		nextDue:           schedule.Next(time.Now()),
		snapshotRetention: snapshotRetention,
		logRetention:      logRetention,
		logger:            logger,
	}, nil
}

// NextDue возвращает время следующего запуска sweeps.
// Безопасно для вызова из других горутин (health-endpoint).
func (s *Scheduler) NextDue() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDue
}

// Tick проверяет расписание и выполняет просроченные sweeps.
//
// Вызывается из основного цикла раз в минуту; между срабатываниями
// cron-расписания тик ничего не делает. Ошибки одного sweep
// логируются и не блокируют выполнение остальных.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := s.nextDue
	s.mu.Unlock()

	if now.Before(due) {
		return
	}

	s.logger.Info("maintenance sweep started", "due_at", due)

	s.sweepSnapshots(ctx, now)
	s.sweepConversationLogs(ctx, now)

	// Пропущенные за время простоя срабатывания не навёрстываются:
	// sweeps идемпотентны по порогу даты.
	next := s.schedule.Next(now)
	s.mu.Lock()
	s.nextDue = next
	s.mu.Unlock()

	s.logger.Info("maintenance sweep finished", "next_due", next)
}

// sweepSnapshots обнуляет recovery-снимки терминально завершённых
// симуляций старше порога хранения.
func (s *Scheduler) sweepSnapshots(ctx context.Context, now time.Time) {
	before := now.Add(-s.snapshotRetention)

	cleared, err := s.runs.ClearFinishedSnapshots(ctx, before)
	if err != nil {
		s.logger.Error("failed to clear recovery snapshots", "error", err)
		return
	}

	if cleared > 0 {
		s.logger.Info("recovery snapshots cleared", "count", cleared, "before", before)
	}
}

// sweepConversationLogs обнуляет сырые логи переговоров старше
// retention-окна.
func (s *Scheduler) sweepConversationLogs(ctx context.Context, now time.Time) {
	before := now.Add(-s.logRetention)

	truncated, err := s.runs.TruncateConversationLogs(ctx, before)
	if err != nil {
		s.logger.Error("failed to truncate conversation logs", "error", err)
		return
	}

	if truncated > 0 {
		s.logger.Info("conversation logs truncated", "count", truncated, "before", before)
	}
}
