// Negotium Evaluator — оценивает завершённые переговоры.
//
// Evaluator:
//   - Получает запросы на оценку из RabbitMQ
//   - Добирает пропущенное периодическим опросом БД
//   - Запрашивает вердикт у движка переговоров
//   - Сохраняет оценку и публикует событие simulation.evaluated
//
// Evaluators масштабируются горизонтально: клейм атомарен на уровне
// строки, двойная оценка исключена идемпотентностью по вердикту.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Negotium/internal/engine"
	"github.com/shaiso/Negotium/internal/evaluator"
	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/mq"
	"github.com/shaiso/Negotium/internal/repo"
	"github.com/shaiso/Negotium/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting negotium-evaluator")

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

	// Локальный хаб: события оценки уходят внешним потребителям
	// через forwarder, если брокер доступен.
	hub := events.NewHub()

	// RabbitMQ
	var forwarder *mq.EventForwarder
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		forwarder = mq.NewEventForwarder(hub, mq.NewPublisher(mqConn, logger), logger)
		forwarder.Start(ctx)
	}

	// Клиент движка переговоров: тот же движок выставляет и оценку
	verdicts := engine.NewHTTPEngine(engine.Config{
		BaseURL: getEnv("ENGINE_URL", "http://localhost:58011"),
		APIKey:  os.Getenv("ENGINE_API_KEY"),
	})

	// Создаём evaluator
	ev := evaluator.New(evaluator.Config{
		Runs:        runRepo,
		Engine:      verdicts,
		Broadcaster: hub,
		Conn:        mqConn,
		Logger:      logger,
	})

	// Запускаем evaluator
	if err := ev.Start(ctx); err != nil {
		logger.Error("failed to start evaluator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("EVAL_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем evaluator
	ev.Stop()
	if forwarder != nil {
		forwarder.Stop()
	}
	logger.Info("negotium-evaluator stopped")
}

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
