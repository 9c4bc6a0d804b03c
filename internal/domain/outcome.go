package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome — результат одного прогона аккаунта.
type Outcome struct {
	// RunID — уникальный идентификатор прогона.
	RunID uuid.UUID

	// Success — true, если вся цепочка шагов дошла до конца
	// без невосстановимой ошибки. Пропущенные шаги успеху не мешают.
	Success bool

	// Err — ошибка, оборвавшая цепочку (nil при успехе).
	Err error

	// StepsDone — количество фактически выполненных шагов.
	StepsDone int

	// StepsSkipped — количество шагов, пропущенных по precondition
	// (недостаточный баланс и т.п.).
	StepsSkipped int

	// StartedAt / FinishedAt — границы прогона.
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration возвращает продолжительность прогона.
func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// ErrorText возвращает текст ошибки или пустую строку.
func (o *Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
