package telemetry

import (
	"log/slog"

	"github.com/shaiso/Harvester/internal/domain"
)

// Observer — получатель событий жизненного цикла.
//
// Ядро сообщает о событиях через этот интерфейс и ничего не знает
// о формате и месте хранения. Реализации: LogObserver (slog),
// MetricsObserver (Prometheus), events.Publisher (RabbitMQ).
type Observer interface {
	// AccountStarted — executor взял аккаунт в работу.
	AccountStarted(address string, runID string)

	// AccountFinished — прогон аккаунта завершён.
	AccountFinished(address string, outcome *domain.Outcome)

	// EndpointFailed — endpoint помечен сбойным, pool переключился.
	EndpointFailed(url string, err error)

	// EndpointRecovered — endpoint снова отвечает, счётчик сброшен.
	EndpointRecovered(url string)

	// StepSkipped — шаг пропущен по precondition (не ошибка).
	StepSkipped(address string, step domain.StepKind, reason string)
}

// NopObserver — заглушка, игнорирующая все события.
type NopObserver struct{}

func (NopObserver) AccountStarted(string, string)                    {}
func (NopObserver) AccountFinished(string, *domain.Outcome)          {}
func (NopObserver) EndpointFailed(string, error)                     {}
func (NopObserver) EndpointRecovered(string)                         {}
func (NopObserver) StepSkipped(string, domain.StepKind, string)      {}

// LogObserver пишет события жизненного цикла в структурированный лог.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) AccountStarted(address string, runID string) {
	o.Logger.Info("account started", "address", address, "run_id", runID)
}

func (o *LogObserver) AccountFinished(address string, outcome *domain.Outcome) {
	if outcome.Success {
		o.Logger.Info("account finished",
			"address", address,
			"run_id", outcome.RunID,
			"steps_done", outcome.StepsDone,
			"steps_skipped", outcome.StepsSkipped,
			"duration", outcome.Duration(),
		)
		return
	}
	o.Logger.Warn("account failed",
		"address", address,
		"run_id", outcome.RunID,
		"steps_done", outcome.StepsDone,
		"error", outcome.ErrorText(),
	)
}

func (o *LogObserver) EndpointFailed(url string, err error) {
	o.Logger.Warn("endpoint failed", "endpoint", url, "error", err)
}

func (o *LogObserver) EndpointRecovered(url string) {
	o.Logger.Info("endpoint recovered", "endpoint", url)
}

func (o *LogObserver) StepSkipped(address string, step domain.StepKind, reason string) {
	o.Logger.Info("step skipped", "address", address, "step", step, "reason", reason)
}

// MultiObserver рассылает каждое событие всем вложенным observer'ам.
type MultiObserver []Observer

func (m MultiObserver) AccountStarted(address string, runID string) {
	for _, o := range m {
		o.AccountStarted(address, runID)
	}
}

func (m MultiObserver) AccountFinished(address string, outcome *domain.Outcome) {
	for _, o := range m {
		o.AccountFinished(address, outcome)
	}
}

func (m MultiObserver) EndpointFailed(url string, err error) {
	for _, o := range m {
		o.EndpointFailed(url, err)
	}
}

func (m MultiObserver) EndpointRecovered(url string) {
	for _, o := range m {
		o.EndpointRecovered(url)
	}
}

func (m MultiObserver) StepSkipped(address string, step domain.StepKind, reason string) {
	for _, o := range m {
		o.StepSkipped(address, step, reason)
	}
}
