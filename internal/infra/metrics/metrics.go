package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	UpdaterRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updater_runs_total",
		Help: "Количество проходов планировщика обновлений",
	}, []string{"provider", "status"})

	UpdaterUserErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updater_user_errors_total",
		Help: "Ошибки обработки отдельных пользователей при обновлении",
	}, []string{"provider"})

	DispatchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_errors_total",
		Help: "Ошибки отправки контента в чаты",
	}, []string{"provider"})

	RequestQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "request_queue_depth",
		Help: "Размер партии запросов после слива очереди",
	})

	RequestRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "request_retries_total",
		Help: "Запросы, возвращённые в очередь после неудачи",
	})

	RequestsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "requests_processed_total",
		Help: "Обработанные запросы по операциям и статусу",
	}, []string{"op", "status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		UpdaterRuns,
		UpdaterUserErrors,
		DispatchErrors,
		RequestQueueDepth,
		RequestRetries,
		RequestsProcessed,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
