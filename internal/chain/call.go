package chain

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Harvester/internal/telemetry"
)

// Default call options.
const (
	defaultCallTimeout = 20 * time.Second
	defaultMaxRetries  = 3
	defaultRetryDelay  = 3 * time.Second
)

// CallOptions — параметры устойчивого вызова.
type CallOptions struct {
	// Timeout — дедлайн одной попытки.
	Timeout time.Duration

	// MaxRetries — общее количество попыток (включая первую).
	MaxRetries int

	// RetryDelay — пауза между попытками.
	RetryDelay time.Duration
}

// Caller выполняет удалённые вызовы через Pool с таймаутом,
// ограниченным количеством повторов и failover'ом.
//
// Транспортная ошибка или таймаут помечает текущий endpoint сбойным
// (pool переключается) и вызов повторяется. Нетранспортные ошибки
// (RPCError, отмена контекста) распространяются сразу — их обработка
// принадлежит вызывающему коду. После исчерпания попыток возвращается
// последняя наблюдавшаяся ошибка.
type Caller struct {
	pool   *Pool
	opts   CallOptions
	logger *slog.Logger
}

// NewCaller создаёт Caller.
func NewCaller(pool *Pool, opts CallOptions, logger *slog.Logger) *Caller {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCallTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Caller{pool: pool, opts: opts, logger: logger}
}

// Do выполняет fn против текущего endpoint'а pool'а.
func (c *Caller) Do(ctx context.Context, fn func(ctx context.Context, ep *Endpoint) error) error {
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		ep := c.pool.Current()

		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		err := fn(callCtx, ep)
		cancel()

		if err == nil {
			c.pool.MarkHealthy(ep)
			return nil
		}

		// Отмена всего вызова — не сбой endpoint'а.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !IsTransport(err) {
			return err
		}

		c.pool.MarkFailed(ep, err)
		lastErr = err

		if attempt == c.opts.MaxRetries {
			break
		}

		telemetry.WithEndpoint(c.logger, ep.URL).Debug("retrying call",
			"attempt", attempt,
			"max_retries", c.opts.MaxRetries,
			"error", err,
		)

		select {
		case <-time.After(c.opts.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
