// Package fees реализует политику эскалации комиссии.
//
// Узлы отклоняют транзакции с заниженной комиссией ("underpriced").
// Escalator повторяет fee-чувствительную операцию с комиссией,
// умноженной на multiplier^attempt, в пределах RetryBudget профиля.
//
// Профили иммутабельны: параметры каждой попытки вычисляются чистой
// функцией Profile.ForAttempt, поэтому эскалация не затрагивает
// конфигурацию и не влияет на последующие несвязанные вызовы.
package fees
