package fees

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"

	"github.com/shaiso/Harvester/internal/chain"
	"github.com/shaiso/Harvester/internal/domain"
	"github.com/shaiso/Harvester/internal/telemetry"
)

// ErrRetryBudgetExhausted — бюджет повторов с эскалацией комиссии
// исчерпан, последняя попытка всё ещё underpriced.
var ErrRetryBudgetExhausted = errors.New("fee retry budget exhausted")

// defaultMultiplier применяется к профилям без заданного множителя.
// Эскалация обязана повышать комиссию: множитель всегда строго больше 1.
const defaultMultiplier = 1.25

// Profile — профиль комиссии для одного типа шага.
//
// Profile иммутабелен: параметры конкретной попытки вычисляются
// чистой функцией ForAttempt, хранимые значения никогда не мутируются.
// Эскалация тем самым не может «протечь» в последующие вызовы.
type Profile struct {
	// GasLimitMin / GasLimitMax — диапазон gas limit; конкретное
	// значение выбирается случайно на каждую попытку.
	GasLimitMin uint64
	GasLimitMax uint64

	// MaxFeePerGas — базовый max fee, wei.
	MaxFeePerGas uint64

	// PriorityFee — базовый priority fee, wei.
	PriorityFee uint64

	// RetryBudget — сколько эскалированных повторов допустимо
	// после базовой попытки.
	RetryBudget int

	// Multiplier — во сколько раз растут обе компоненты комиссии
	// на каждую эскалацию.
	Multiplier float64
}

// Params — параметры комиссии одной конкретной попытки.
type Params struct {
	GasLimit     uint64
	MaxFeePerGas uint64
	PriorityFee  uint64
}

// ForAttempt вычисляет параметры комиссии для попытки attempt
// (0 — базовая). Чистая функция от профиля и номера попытки:
// fee = base · multiplier^attempt.
func (p Profile) ForAttempt(attempt int) Params {
	mult := math.Pow(p.Multiplier, float64(attempt))

	gasLimit := p.GasLimitMin
	if p.GasLimitMax > p.GasLimitMin {
		gasLimit += uint64(rand.Int63n(int64(p.GasLimitMax - p.GasLimitMin + 1)))
	}

	return Params{
		GasLimit:     gasLimit,
		MaxFeePerGas: uint64(float64(p.MaxFeePerGas) * mult),
		PriorityFee:  uint64(float64(p.PriorityFee) * mult),
	}
}

// Schedule — профили комиссий по типам шагов.
type Schedule struct {
	profiles map[domain.StepKind]Profile
	fallback Profile
}

// NewSchedule создаёт Schedule с профилем по умолчанию
// и переопределениями по типам шагов. Профили с незаданным
// множителем получают defaultMultiplier.
func NewSchedule(fallback Profile, overrides map[domain.StepKind]Profile) *Schedule {
	profiles := make(map[domain.StepKind]Profile, len(overrides))
	for kind, p := range overrides {
		profiles[kind] = normalize(p)
	}
	return &Schedule{profiles: profiles, fallback: normalize(fallback)}
}

// normalize приводит профиль к рабочему виду: множитель, не повышающий
// комиссию, заменяется на defaultMultiplier — иначе multiplier^attempt
// занижал бы (или обнулял) комиссию эскалированных попыток.
func normalize(p Profile) Profile {
	if p.Multiplier <= 1 {
		p.Multiplier = defaultMultiplier
	}
	return p
}

// For возвращает профиль для типа шага.
func (s *Schedule) For(kind domain.StepKind) Profile {
	if p, ok := s.profiles[kind]; ok {
		return p
	}
	return s.fallback
}

// Escalator выполняет fee-чувствительные операции с эскалацией.
type Escalator struct {
	schedule *Schedule
	logger   *slog.Logger
}

// NewEscalator создаёт Escalator.
func NewEscalator(schedule *Schedule, logger *slog.Logger) *Escalator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Escalator{schedule: schedule, logger: logger}
}

// Submit выполняет action с параметрами комиссии для попытки 0.
// На underpriced-отказ action перевызывается с эскалированными
// параметрами, пока не исчерпан RetryBudget профиля — тогда
// возвращается ErrRetryBudgetExhausted. Любая другая ошибка
// распространяется без эскалации.
func (e *Escalator) Submit(ctx context.Context, kind domain.StepKind, action func(ctx context.Context, params Params) error) error {
	profile := e.schedule.For(kind)

	for attempt := 0; ; attempt++ {
		err := action(ctx, profile.ForAttempt(attempt))
		if err == nil {
			return nil
		}
		if !IsUnderpriced(err) {
			return err
		}
		if attempt >= profile.RetryBudget {
			return fmt.Errorf("%w after %d attempts: %v", ErrRetryBudgetExhausted, attempt+1, err)
		}

		telemetry.FeeEscalationsTotal.WithLabelValues(string(kind)).Inc()
		e.logger.Debug("fee underpriced, escalating",
			"step", kind,
			"attempt", attempt+1,
			"budget", profile.RetryBudget,
			"error", err,
		)
	}
}

// IsUnderpriced определяет, является ли ошибка отказом из-за
// заниженной комиссии.
func IsUnderpriced(err error) bool {
	var rpcErr *chain.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Message)
	return strings.Contains(msg, "underpriced") ||
		strings.Contains(msg, "fee too low") ||
		strings.Contains(msg, "max fee per gas less than block base fee")
}
