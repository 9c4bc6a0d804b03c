// Package events публикует события жизненного цикла прогонов
// в RabbitMQ через topic exchange.
//
// Publisher реализует telemetry.Observer и подключается к шедулеру
// как дополнительный наблюдатель. Ошибки публикации не влияют на
// прогоны: шина событий — вспомогательный канал для внешних
// потребителей (дашборды, алертинг).
package events
