package scheduler

import "errors"

// Ошибки scheduler'а.
var (
	// ErrRunPanicked — прогон аккаунта завершился паникой.
	ErrRunPanicked = errors.New("run panicked")

	// ErrInvalidWindow — некорректное cron-выражение окна активности.
	ErrInvalidWindow = errors.New("invalid activity window")
)
