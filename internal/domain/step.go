package domain

// StepKind — тип шага внутри прогона аккаунта.
//
// Шаг существует только на время одного вызова executor'а
// и не имеет персистентной идентичности.
type StepKind string

const (
	// StepClaim — получение токенов из faucet/airdrop контракта.
	StepClaim StepKind = "claim"

	// StepApprove — выдача allowance роутеру на трату токена.
	StepApprove StepKind = "approve"

	// StepSwapAB — обмен токена A на токен B.
	StepSwapAB StepKind = "swap_ab"

	// StepSwapBA — обмен токена B обратно на токен A.
	StepSwapBA StepKind = "swap_ba"
)

// ParseStepKind парсит строку из конфигурации в StepKind.
// Неизвестные значения возвращаются как есть — валидация
// выполняется реестром executor'ов при старте.
func ParseStepKind(s string) StepKind {
	return StepKind(s)
}
