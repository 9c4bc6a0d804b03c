package registry

import "errors"

// Ошибки registry.
var (
	// ErrInvalidTransition — недопустимый переход состояния
	// (аккаунт уже выполняется или выведен из ротации).
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownAccount — аккаунт не зарегистрирован.
	ErrUnknownAccount = errors.New("unknown account")
)
