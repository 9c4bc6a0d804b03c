package domain

import (
	"time"
)

// Account — кошелёк, выполняющий цепочки операций независимо от остальных.
//
// Account иммутабелен после загрузки из файла ключей. Владельцем
// состояния аккаунта является registry; executor лишь «одалживает»
// аккаунт на время одного прогона.
type Account struct {
	// Address — адрес кошелька (0x...).
	Address string

	// PrivateKey — приватный ключ в hex. Ядро не интерпретирует его —
	// ключ передаётся как есть в слой подписи транзакций.
	PrivateKey string
}

// AccountState — состояние одного аккаунта в registry.
type AccountState struct {
	// Status — текущий статус аккаунта.
	Status AccountStatus

	// NextEligibleAt — время, раньше которого аккаунт не планируется.
	// Двигается только вперёд относительно момента установки.
	NextEligibleAt time.Time

	// RunCount — количество успешно завершённых прогонов.
	RunCount int

	// ErrorCount — количество прогонов, завершившихся ошибкой.
	ErrorCount int

	// LastError — текст последней ошибки (пустая строка, если не было).
	LastError string
}

// Eligible проверяет, готов ли аккаунт к запуску в момент now.
// Аккаунт готов, если он не выполняется сейчас, не выведен из ротации
// и прошёл свой cooldown.
func (s *AccountState) Eligible(now time.Time) bool {
	if s.Status == StatusRunning || s.Status == StatusRetired {
		return false
	}
	return !now.Before(s.NextEligibleAt)
}
