// Package executor прогоняет аккаунты через цепочки шагов.
//
// TaskExecutor выполняет шаги последовательно со случайными паузами,
// проверяя предусловия (баланс, allowance) перед каждым шагом.
// Конкретные типы шагов (claim, approve, swap) реализуют StepExecutor
// и регистрируются в Registry.
//
// Структура:
//   - executor.go — TaskExecutor: цепочка, паузы, предусловия, ленивый approve
//   - registry.go — реестр step executor'ов по типу шага
//   - steps.go    — ClaimStep, ApproveStep, SwapStep и общие зависимости
package executor
