// Negotium Server — API и оркестратор очередей симуляций.
//
// Server:
//   - Поднимает REST API и WebSocket-трансляцию событий
//   - Диспетчеризует очереди симуляций (последовательные drain-циклы)
//   - Возвращает зависшие и осиротевшие симуляции в оборот
//   - Публикует события и запросы на оценку в RabbitMQ
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Negotium/internal/api"
	"github.com/shaiso/Negotium/internal/engine"
	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/matrix"
	"github.com/shaiso/Negotium/internal/mq"
	"github.com/shaiso/Negotium/internal/orchestrator"
	"github.com/shaiso/Negotium/internal/repo"
	"github.com/shaiso/Negotium/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "negotium_server_http_requests_total",
		Help: "Total HTTP requests handled by negotium-server",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting negotium-server")

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

	// Создаём репозитории
	negotiationRepo := repo.NewNegotiationRepo(pool)
	queueRepo := repo.NewQueueRepo(pool)
	runRepo := repo.NewRunRepo(pool)
	catalogRepo := repo.NewCatalogRepo(pool)

	// Внутрипроцессный событийный хаб: WebSocket-клиенты подписываются
	// напрямую, внешние потребители получают копию через RabbitMQ.
	hub := events.NewHub()

	// RabbitMQ: сервер работает и без брокера — события остаются
	// во внутрипроцессном хабе, downstream-оценка отключается.
	var publisher *mq.Publisher
	var forwarder *mq.EventForwarder
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in hub-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
		forwarder = mq.NewEventForwarder(hub, publisher, logger)
		forwarder.Start(ctx)
	}

	// Клиент движка переговоров
	negotiationEngine := engine.NewHTTPEngine(engine.Config{
		BaseURL: getEnv("ENGINE_URL", "http://localhost:58011"),
		APIKey:  os.Getenv("ENGINE_API_KEY"),
	})

	// Создаём orchestrator
	orchCfg := orchestrator.Config{
		Queues:       queueRepo,
		Runs:         runRepo,
		Negotiations: negotiationRepo,
		Products:     catalogRepo,
		Engine:       negotiationEngine,
		Matrix: matrix.New(matrix.Config{
			Catalogs:          catalogRepo,
			DefaultMaxRetries: getEnvInt("SIM_MAX_RETRIES", 0),
		}),
		Broadcaster:   hub,
		TickInterval:  time.Duration(getEnvInt("SCHED_TICK_SECONDS", 0)) * time.Second,
		RunDelay:      time.Duration(getEnvInt("RUN_DELAY_MS", 0)) * time.Millisecond,
		StaleAfter:    time.Duration(getEnvInt("STALE_THRESHOLD_MINUTES", 0)) * time.Minute,
		RecoveryAfter: time.Duration(getEnvInt("RECOVERY_THRESHOLD_MINUTES", 0)) * time.Minute,
		Logger:        logger,
	}
	// Присваиваем только ненулевой указатель: типизированный nil в
	// интерфейсном поле обошёл бы проверку publisher == nil.
	if publisher != nil {
		orchCfg.Publisher = publisher
	}

	orch := orchestrator.New(orchCfg)

	// Запускаем orchestrator
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Orchestrator: orch,
		Negotiations: negotiationRepo,
		Runs:         runRepo,
		Catalogs:     catalogRepo,
		Hub:          hub,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	orch.Stop()
	if forwarder != nil {
		forwarder.Stop()
	}

	logger.Info("stopped")
}

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getEnvInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
