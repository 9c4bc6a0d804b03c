package domain

// AccountStatus — статус аккаунта в ротации.
//
// Жизненный цикл:
//
//	READY → RUNNING → COMPLETED → READY (после cooldown)
//	                ↘ FAILED    → READY (после короткого backoff)
//	COMPLETED → RETIRED (finite-режим, достигнут лимит прогонов)
type AccountStatus string

const (
	// StatusReady — аккаунт готов к планированию (с учётом NextEligibleAt).
	StatusReady AccountStatus = "READY"

	// StatusRunning — аккаунт выполняет прогон прямо сейчас.
	StatusRunning AccountStatus = "RUNNING"

	// StatusCompleted — последний прогон завершился успешно.
	StatusCompleted AccountStatus = "COMPLETED"

	// StatusFailed — последний прогон завершился ошибкой.
	StatusFailed AccountStatus = "FAILED"

	// StatusRetired — аккаунт выведен из ротации навсегда
	// (finite-режим, лимит успешных прогонов достигнут).
	StatusRetired AccountStatus = "RETIRED"
)

// IsTerminal возвращает true, если статус финальный.
// Единственный финальный статус — RETIRED: из него нет переходов.
func (s AccountStatus) IsTerminal() bool {
	return s == StatusRetired
}
