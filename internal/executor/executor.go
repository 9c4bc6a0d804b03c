package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Harvester/internal/chain"
	"github.com/shaiso/Harvester/internal/domain"
	"github.com/shaiso/Harvester/internal/telemetry"
)

// Default configuration values.
const (
	defaultStepDelayMin = 20 * time.Second
	defaultStepDelayMax = 90 * time.Second
)

// Run — состояние одного прогона, передаваемое step executor'ам.
type Run struct {
	// Account — аккаунт, «одолженный» на время прогона.
	Account *domain.Account

	// RunID — уникальный идентификатор прогона.
	RunID uuid.UUID

	// Logger — логгер с полями address и run_id.
	Logger *slog.Logger

	// approved — токены, для которых allowance уже проверен/выдан
	// в этом прогоне (token → true).
	approved map[string]bool
}

// TaskExecutor прогоняет один аккаунт через цепочку шагов.
//
// Шаги выполняются последовательно со случайной паузой между ними
// (перед первым шагом паузы нет). Невыполненное предусловие шага —
// пропуск, а не ошибка: цепочка продолжается. Первая невосстановимая
// ошибка обрывает оставшиеся шаги.
type TaskExecutor struct {
	registry *Registry
	approver *ApproveStep
	deps     *Deps

	steps        []domain.StepKind
	stepDelayMin time.Duration
	stepDelayMax time.Duration

	observer telemetry.Observer
	logger   *slog.Logger
}

// Config — конфигурация TaskExecutor.
type Config struct {
	// Deps — зависимости step executor'ов.
	Deps *Deps

	// Steps — последовательность шагов одного прогона.
	Steps []domain.StepKind

	// StepDelayMin / StepDelayMax — диапазон паузы между шагами.
	StepDelayMin time.Duration
	StepDelayMax time.Duration

	// Observer — получатель событий (default: NopObserver).
	Observer telemetry.Observer

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт TaskExecutor. Каждый тип шага из Config.Steps должен
// быть известен реестру — иначе ошибка конфигурации на старте.
func New(cfg Config) (*TaskExecutor, error) {
	if len(cfg.Steps) == 0 {
		return nil, fmt.Errorf("step sequence is empty")
	}

	registry := NewRegistry(cfg.Deps)
	for _, kind := range cfg.Steps {
		if _, err := registry.Get(kind); err != nil {
			return nil, err
		}
	}

	stepDelayMin := cfg.StepDelayMin
	if stepDelayMin <= 0 {
		stepDelayMin = defaultStepDelayMin
	}
	stepDelayMax := cfg.StepDelayMax
	if stepDelayMax < stepDelayMin {
		stepDelayMax = defaultStepDelayMax
		if stepDelayMax < stepDelayMin {
			stepDelayMax = stepDelayMin
		}
	}

	observer := cfg.Observer
	if observer == nil {
		observer = telemetry.NopObserver{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	approver, _ := registry.Get(domain.StepApprove)

	return &TaskExecutor{
		registry:     registry,
		approver:     approver.(*ApproveStep),
		deps:         cfg.Deps,
		steps:        cfg.Steps,
		stepDelayMin: stepDelayMin,
		stepDelayMax: stepDelayMax,
		observer:     observer,
		logger:       logger,
	}, nil
}

// Run выполняет цепочку шагов для одного аккаунта и возвращает результат.
// Успех — только если цепочка дошла до конца без невосстановимой ошибки.
func (e *TaskExecutor) Run(ctx context.Context, acct *domain.Account) *domain.Outcome {
	runID := uuid.New()
	logger := telemetry.WithRunID(telemetry.WithAccount(e.logger, acct.Address), runID.String())

	run := &Run{
		Account:  acct,
		RunID:    runID,
		Logger:   logger,
		approved: make(map[string]bool),
	}

	outcome := &domain.Outcome{
		RunID:     runID,
		StartedAt: time.Now(),
	}

	e.observer.AccountStarted(acct.Address, runID.String())
	logger.Info("run started", "steps", len(e.steps))

	defer func() {
		outcome.FinishedAt = time.Now()
		e.observer.AccountFinished(acct.Address, outcome)
	}()

	for i, kind := range e.steps {
		if i > 0 {
			if err := sleepCtx(ctx, randDelay(e.stepDelayMin, e.stepDelayMax)); err != nil {
				outcome.Err = err
				return outcome
			}
		}

		if err := e.runStep(ctx, run, kind, outcome); err != nil {
			outcome.Err = fmt.Errorf("step %s: %w", kind, err)
			logger.Warn("run aborted",
				"step", kind,
				"steps_done", outcome.StepsDone,
				"error", err,
			)
			return outcome
		}
	}

	outcome.Success = true
	logger.Info("run completed",
		"steps_done", outcome.StepsDone,
		"steps_skipped", outcome.StepsSkipped,
	)
	return outcome
}

// runStep выполняет один шаг: предусловие → ленивый approve → Execute.
func (e *TaskExecutor) runStep(ctx context.Context, run *Run, kind domain.StepKind, outcome *domain.Outcome) error {
	step, err := e.registry.Get(kind)
	if err != nil {
		return err
	}

	if pc, ok := step.(preconditioned); ok {
		skip, reason, err := pc.Precondition(ctx, run)
		if err != nil {
			return fmt.Errorf("precondition: %w", err)
		}
		if skip {
			run.Logger.Info("step skipped", "step", kind, "reason", reason)
			e.observer.StepSkipped(run.Account.Address, kind, reason)
			outcome.StepsSkipped++
			return nil
		}
	}

	if sp, ok := step.(spending); ok {
		token, spender := sp.SpendsToken()
		if err := e.ensureAllowance(ctx, run, token, spender); err != nil {
			return fmt.Errorf("ensure allowance: %w", err)
		}
	}

	run.Logger.Debug("step started", "step", kind)
	if err := step.Execute(ctx, run); err != nil {
		return err
	}
	outcome.StepsDone++
	return nil
}

// ensureAllowance лениво выдаёт allowance: не чаще одного раза
// на токен за прогон, и только если allowance ещё не выдан.
func (e *TaskExecutor) ensureAllowance(ctx context.Context, run *Run, token string, spender string) error {
	if run.approved[token] {
		return nil
	}

	var allowance *big.Int
	err := e.deps.Caller.Do(ctx, func(ctx context.Context, ep *chain.Endpoint) error {
		a, err := e.deps.Client.Allowance(ctx, ep.URL, token, run.Account.Address, spender)
		if err != nil {
			return err
		}
		allowance = a
		return nil
	})
	if err != nil {
		return err
	}

	if allowance.Sign() > 0 {
		run.approved[token] = true
		return nil
	}

	run.Logger.Info("issuing approval", "token", token, "spender", spender)
	if err := e.approver.ApproveFor(ctx, run, token, spender); err != nil {
		return err
	}

	run.approved[token] = true
	return nil
}

// sleepCtx спит с учётом отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// randDelay возвращает случайную паузу из [min, max].
func randDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}
