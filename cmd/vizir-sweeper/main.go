package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Vizir/internal/engine"
	"github.com/shaiso/Vizir/internal/repo"
	"github.com/shaiso/Vizir/internal/sweeper"
	"github.com/shaiso/Vizir/internal/telemetry"
)

// Ключ advisory-блокировки лидера: в каждый момент метёт ровно один
// процесс vizir-sweeper.
const sweepLockKey int64 = 727272

const defaultSweepInterval = 60 * time.Second

var (
	sweepTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vizir_sweeper_ticks_total",
		Help: "Total sweep passes executed",
	})
	sweepTimedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vizir_sweeper_timed_out_total",
		Help: "Instances marked TIMED_OUT by the sweeper",
	})
	sweepAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vizir_sweeper_advanced_total",
		Help: "Instances advanced via TIMEOUT transitions",
	})
	sweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vizir_sweeper_errors_total",
		Help: "Per-instance sweep errors",
	})
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting vizir-sweeper")

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
	logger.Info("connected to database")

	templateRepo := repo.NewTemplateRepo(pool)
	instanceRepo := repo.NewInstanceRepo(pool)

	eng := engine.New(engine.Config{
		Templates: templateRepo,
		Instances: instanceRepo,
		Logger:    logger,
	})

	sw := sweeper.New(sweeper.Config{
		Instances: instanceRepo,
		Engine:    eng,
		Logger:    logger,
		BatchSize: batchSize(),
	})

	interval := sweepInterval()
	cronExpr := os.Getenv("SWEEP_CRON")

	// sweep loop
	go func() {
		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", sweepLockKey)
			}
		}()

		next := time.Now()
		for {
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			var err error
			next, err = sweeper.NextTick(cronExpr, interval, time.Now())
			if err != nil {
				logger.Error("invalid sweep schedule", "error", err)
				os.Exit(1)
			}

			// пытаемся стать лидером (или подтвердить лидерство)
			if !hasLock {
				var ok bool
				if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", sweepLockKey).Scan(&ok); err != nil {
					logger.Warn("leader lock error", "error", err)
					continue
				}
				hasLock = ok
			}

			if !hasLock {
				// не лидер — пропускаем проход
				continue
			}

			sweepTicks.Inc()
			stats, err := sw.Tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("sweep failed", "error", err)
				continue
			}

			sweepTimedOut.Add(float64(stats.TimedOut))
			sweepAdvanced.Add(float64(stats.Advanced))
			sweepErrors.Add(float64(stats.Errors))
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SWEEP_PORT"); v != "" {
		port = ":" + v
	}

	server := &http.Server{Addr: port, Handler: mux}

	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// sweepInterval читает интервал проходов из окружения.
func sweepInterval() time.Duration {
	raw := os.Getenv("SWEEP_INTERVAL_SEC")
	if raw == "" {
		return defaultSweepInterval
	}
	sec, err := strconv.Atoi(raw)
	if err != nil || sec < 1 {
		return defaultSweepInterval
	}
	return time.Duration(sec) * time.Second
}

// batchSize читает размер батча из окружения.
func batchSize() int {
	raw := os.Getenv("SWEEP_BATCH_SIZE")
	if raw == "" {
		return 0 // sweeper.New применит default
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
