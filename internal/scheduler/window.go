package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Window — окно активности по cron-расписанию.
//
// Окно открывается в каждый момент срабатывания cron-выражения
// и остаётся открытым duration. Вне окна scheduler не запускает
// новые прогоны (уже запущенные не прерываются). Используется
// в unbounded-режиме, чтобы активность аккаунтов группировалась
// в заданные часы — например, ежедневные claim-окна.
type Window struct {
	schedule cron.Schedule
	duration time.Duration
}

// NewWindow создаёт Window из cron-выражения и длительности.
func NewWindow(expr string, duration time.Duration) (*Window, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrInvalidWindow, expr, err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidWindow)
	}
	return &Window{schedule: schedule, duration: duration}, nil
}

// Open проверяет, открыто ли окно в момент now: было ли срабатывание
// расписания в последние duration.
func (w *Window) Open(now time.Time) bool {
	next := w.schedule.Next(now.Add(-w.duration))
	return !next.After(now)
}

// NextOpening возвращает ближайшее время открытия окна после now.
func (w *Window) NextOpening(now time.Time) time.Time {
	if w.Open(now) {
		return now
	}
	return w.schedule.Next(now)
}
