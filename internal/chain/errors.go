package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Ошибки сетевого слоя.
var (
	// ErrTransport — транспортная ошибка (connection refused, 5xx,
	// обрыв соединения). Подлежит failover и retry.
	ErrTransport = errors.New("transport error")

	// ErrNoHealthyEndpoint — ни один endpoint не прошёл health probe.
	// Фатальная ошибка старта: система не должна запускаться.
	ErrNoHealthyEndpoint = errors.New("no healthy endpoint")

	// ErrWrongNetwork — endpoint отвечает, но chain id не совпадает
	// с ожидаемым. Трактуется как нездоровый endpoint.
	ErrWrongNetwork = errors.New("unexpected chain id")

	// ErrTxReverted — транзакция попала в блок, но завершилась revert'ом.
	ErrTxReverted = errors.New("transaction reverted")
)

// RPCError — ошибка уровня JSON-RPC: узел ответил, но отклонил запрос.
// Не является транспортной — failover по ней не выполняется.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsTransport классифицирует ошибку как транспортную.
//
// Транспортные: таймаут, сетевые ошибки, HTTP 5xx (обёрнутые в
// ErrTransport). RPCError и отмена контекста транспортными не являются.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
