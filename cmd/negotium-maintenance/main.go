// Negotium Maintenance — retention-sweeps по расписанию.
//
// Maintenance:
//   - Обнуляет recovery-снимки давно завершённых симуляций
//   - Обнуляет сырые логи переговоров старше retention-окна
//
// Бинарь можно запускать в нескольких экземплярах: лидер выбирается
// через pg_try_advisory_lock, sweeps выполняет только лидер.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Negotium/internal/repo"
	"github.com/shaiso/Negotium/internal/scheduler"
	"github.com/shaiso/Negotium/internal/telemetry"
)

const maintLockKey int64 = 535353

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting negotium-maintenance")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	runRepo := repo.NewRunRepo(pool)

	sched, err := scheduler.New(scheduler.Config{
		Runs:              runRepo,
		CronExpr:          os.Getenv("MAINT_CRON"),
		SnapshotRetention: time.Duration(getEnvInt("SNAPSHOT_RETENTION_DAYS", 0)) * 24 * time.Hour,
		LogRetention:      time.Duration(getEnvInt("LOG_RETENTION_DAYS", 0)) * 24 * time.Hour,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	// Advisory lock привязан к сессии, поэтому лидерство держим на
	// выделенном соединении: лок, взятый через пул, остался бы на
	// случайном соединении и unlock мог бы уйти на другое.
	lockConn, err := pool.Acquire(ctx)
	if err != nil {
		logger.Error("failed to acquire lock connection", "error", err)
		os.Exit(1)
	}
	defer lockConn.Release()

	// maintenance loop
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)

		tk := time.NewTicker(time.Minute)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = lockConn.Exec(context.Background(), "select pg_advisory_unlock($1)", maintLockKey)
			}
		}()

		for {
			select {
			case t := <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := lockConn.QueryRow(ctx, "select pg_try_advisory_lock($1)", maintLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock query failed", "error", err)
						continue
					}
					if !ok {
						// не лидер — пропускаем тик
						continue
					}
					hasLock = true
					logger.Info("maintenance leadership acquired")
				}

				sched.Tick(ctx, t)

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok next=%s", sched.NextDue().UTC().Format(time.RFC3339))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("MAINT_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения; лок отпускаем до закрытия соединения
	<-ctx.Done()
	<-loopDone
	logger.Info("negotium-maintenance stopped")
}

func getEnvInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
