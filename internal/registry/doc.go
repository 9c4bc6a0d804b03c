// Package registry хранит состояние аккаунтов: готовность,
// статус выполнения, счётчики прогонов и cooldown'ы.
//
// Registry — единственный владелец состояния: все переходы
// выполняются атомарно под общим мьютексом. Готовность аккаунта
// (eligibility) не хранится, а вычисляется: аккаунт готов, если
// не выполняется сейчас, не выведен из ротации и прошёл cooldown.
package registry
