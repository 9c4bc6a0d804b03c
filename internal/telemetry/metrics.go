package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Harvester/internal/domain"
)

// Prometheus метрики. Экспортируются на /metrics endpoint демона.
var (
	// AccountsRunning — количество аккаунтов в статусе RUNNING.
	AccountsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_accounts_running",
		Help: "Number of accounts currently executing a run.",
	})

	// RunsTotal — завершённые прогоны по результату.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_runs_total",
		Help: "Finished account runs by outcome.",
	}, []string{"outcome"})

	// StepsSkippedTotal — пропущенные по precondition шаги.
	StepsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_steps_skipped_total",
		Help: "Steps skipped due to unmet preconditions.",
	}, []string{"step"})

	// EndpointFailuresTotal — сбои endpoint'ов (с переключением pool).
	EndpointFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_endpoint_failures_total",
		Help: "Endpoint failures observed by the pool.",
	}, []string{"endpoint"})

	// PoolResetsTotal — полные мягкие сбросы pool (все endpoint'ы сбоили).
	PoolResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pool_soft_resets_total",
		Help: "Full-pool soft resets of endpoint failure counters.",
	})

	// FeeEscalationsTotal — повторы с повышенной комиссией.
	FeeEscalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_fee_escalations_total",
		Help: "Fee escalation retries by step kind.",
	}, []string{"step"})
)

// MetricsObserver транслирует события жизненного цикла в Prometheus метрики.
type MetricsObserver struct{}

func (MetricsObserver) AccountStarted(string, string) {
	AccountsRunning.Inc()
}

func (MetricsObserver) AccountFinished(_ string, outcome *domain.Outcome) {
	AccountsRunning.Dec()
	if outcome.Success {
		RunsTotal.WithLabelValues("success").Inc()
	} else {
		RunsTotal.WithLabelValues("failure").Inc()
	}
}

func (MetricsObserver) EndpointFailed(url string, _ error) {
	EndpointFailuresTotal.WithLabelValues(url).Inc()
}

func (MetricsObserver) EndpointRecovered(string) {}

func (MetricsObserver) StepSkipped(_ string, step domain.StepKind, _ string) {
	StepsSkippedTotal.WithLabelValues(string(step)).Inc()
}
