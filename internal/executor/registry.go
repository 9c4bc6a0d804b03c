package executor

import (
	"context"
	"fmt"

	"github.com/shaiso/Harvester/internal/domain"
)

// StepExecutor — интерфейс выполнения конкретного типа шага.
//
// Реализации: ClaimStep, ApproveStep, SwapStep.
type StepExecutor interface {
	// Kind возвращает тип шага.
	Kind() domain.StepKind

	// Execute выполняет шаг для текущего прогона.
	Execute(ctx context.Context, run *Run) error
}

// preconditioned — опциональный интерфейс шага с предусловием.
// Невыполненное предусловие — не ошибка: шаг пропускается,
// цепочка продолжается.
type preconditioned interface {
	Precondition(ctx context.Context, run *Run) (skip bool, reason string, err error)
}

// spending — опциональный интерфейс шага, тратящего токен через
// сторонний контракт. Executor перед таким шагом лениво выдаёт
// allowance, если он ещё не выдан (не чаще раза на токен за прогон).
type spending interface {
	SpendsToken() (token string, spender string)
}

// Registry — реестр step executor'ов по типу шага.
type Registry struct {
	executors map[domain.StepKind]StepExecutor
}

// NewRegistry создаёт реестр с зарегистрированными executor'ами
// по умолчанию: claim, approve, swap_ab, swap_ba.
func NewRegistry(deps *Deps) *Registry {
	r := &Registry{executors: make(map[domain.StepKind]StepExecutor)}
	r.Register(&ClaimStep{deps: deps})
	r.Register(&ApproveStep{deps: deps})
	r.Register(&SwapStep{
		deps: deps,
		kind: domain.StepSwapAB,
		in:   deps.Contracts.TokenA,
		out:  deps.Contracts.TokenB,
	})
	r.Register(&SwapStep{
		deps: deps,
		kind: domain.StepSwapBA,
		in:   deps.Contracts.TokenB,
		out:  deps.Contracts.TokenA,
	})
	return r
}

// Register добавляет executor для типа шага.
func (r *Registry) Register(step StepExecutor) {
	r.executors[step.Kind()] = step
}

// Get возвращает executor для типа шага.
func (r *Registry) Get(kind domain.StepKind) (StepExecutor, error) {
	step, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStepKind, kind)
	}
	return step, nil
}
