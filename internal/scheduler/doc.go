// Package scheduler реализует координирующий цикл системы.
//
// Loop — единственная управляющая горутина: каждый тик она считает
// свободные слоты (потолок минус выполняющиеся), выбирает готовые
// аккаунты из registry и запускает прогоны со случайной паузой между
// стартами. В finite-режиме цикл завершается сам, когда все аккаунты
// выведены из ротации.
//
// Структура:
//   - scheduler.go — Loop: тики, слоты, запуск прогонов, изоляция паник
//   - window.go    — Window: cron-окно активности для unbounded-режима
package scheduler
