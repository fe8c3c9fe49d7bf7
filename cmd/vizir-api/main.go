package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Vizir/internal/analytics"
	"github.com/shaiso/Vizir/internal/api"
	"github.com/shaiso/Vizir/internal/engine"
	"github.com/shaiso/Vizir/internal/mq"
	"github.com/shaiso/Vizir/internal/repo"
	"github.com/shaiso/Vizir/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vizir_api_http_requests_total",
		Help: "Total HTTP requests handled by vizir_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting vizir-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	templateRepo := repo.NewTemplateRepo(pool)
	instanceRepo := repo.NewInstanceRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)

	// События в RabbitMQ опциональны: без AMQP_URL движок работает
	// без публикации.
	var publisher *mq.Publisher
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		conn, err := mq.NewConnection(amqpURL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		publisher, err = mq.NewPublisher(conn, logger)
		if err != nil {
			logger.Error("failed to create publisher", "error", err)
			os.Exit(1)
		}
		logger.Info("event publishing enabled")
	} else {
		logger.Info("AMQP_URL not set, event publishing disabled")
	}

	// Движок переходов
	engCfg := engine.Config{
		Templates: templateRepo,
		Instances: instanceRepo,
		Logger:    logger,
	}
	if publisher != nil {
		engCfg.Events = publisher
	}
	eng := engine.New(engCfg)

	// Аналитика
	analyzer := analytics.New(analytics.Config{
		Store:          executionRepo,
		SlowMultiplier: slowMultiplier(),
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		TemplateRepo:  templateRepo,
		InstanceRepo:  instanceRepo,
		ExecutionRepo: executionRepo,
		Engine:        eng,
		Analyzer:      analyzer,
		Logger:        logger,
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
	if v := os.Getenv("API_PORT"); v != "" {
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
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// slowMultiplier читает порог медленного шага из окружения.
func slowMultiplier() float64 {
	raw := os.Getenv("SLOW_STEP_MULTIPLIER")
	if raw == "" {
		return 0 // analytics.New применит default
	}
	var m float64
	if _, err := fmt.Sscanf(raw, "%f", &m); err != nil {
		return 0
	}
	return m
}
