package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestCaller(t *testing.T, pool *Pool, maxRetries int) *Caller {
	t.Helper()
	return NewCaller(pool, CallOptions{
		Timeout:    time.Second,
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	}, nil)
}

func TestCallerFailover(t *testing.T) {
	a := rpcServer(t, testChainID)
	b := rpcServer(t, testChainID)
	pool := newTestPool(t, []string{a.URL, b.URL})
	caller := newTestCaller(t, pool, 3)

	// Первая попытка (endpoint a) падает транспортной ошибкой,
	// вторая уходит уже на b и успешна.
	var seen []string
	err := caller.Do(context.Background(), func(ctx context.Context, ep *Endpoint) error {
		seen = append(seen, ep.URL)
		if ep.URL == a.URL {
			return fmt.Errorf("%w: connection refused", ErrTransport)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if len(seen) != 2 || seen[0] != a.URL || seen[1] != b.URL {
		t.Errorf("expected attempts [a b], got %v", seen)
	}
	if pool.Current().URL != b.URL {
		t.Errorf("pool should stay on %s, got %s", b.URL, pool.Current().URL)
	}
}

func TestCallerNonTransportPropagatesImmediately(t *testing.T) {
	a := rpcServer(t, testChainID)
	pool := newTestPool(t, []string{a.URL})
	caller := newTestCaller(t, pool, 3)

	rpcErr := &RPCError{Code: -32000, Message: "execution reverted"}
	attempts := 0
	err := caller.Do(context.Background(), func(ctx context.Context, ep *Endpoint) error {
		attempts++
		return rpcErr
	})

	var got *RPCError
	if !errors.As(err, &got) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("non-transport error should not be retried, got %d attempts", attempts)
	}
	// Endpoint не помечен сбойным: узел ответил, отказала сама операция.
	if pool.Snapshot()[0].Failures != 0 {
		t.Error("endpoint should stay healthy on rpc error")
	}
}

func TestCallerRetryExhaustion(t *testing.T) {
	a := rpcServer(t, testChainID)
	b := rpcServer(t, testChainID)
	pool := newTestPool(t, []string{a.URL, b.URL})
	caller := newTestCaller(t, pool, 3)

	attempts := 0
	err := caller.Do(context.Background(), func(ctx context.Context, ep *Endpoint) error {
		attempts++
		return fmt.Errorf("%w: timeout", ErrTransport)
	})

	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected last transport error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestCallerContextCancellation(t *testing.T) {
	a := rpcServer(t, testChainID)
	pool := newTestPool(t, []string{a.URL})
	caller := newTestCaller(t, pool, 5)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := caller.Do(ctx, func(ctx context.Context, ep *Endpoint) error {
		attempts++
		cancel()
		return fmt.Errorf("%w: interrupted", ErrTransport)
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("cancelled call should not retry, got %d attempts", attempts)
	}
}

func TestIsTransport(t *testing.T) {
	if !IsTransport(fmt.Errorf("%w: boom", ErrTransport)) {
		t.Error("wrapped ErrTransport should be transport")
	}
	if !IsTransport(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be transport")
	}
	if IsTransport(context.Canceled) {
		t.Error("cancellation is not a transport failure")
	}
	if IsTransport(&RPCError{Code: -32000, Message: "underpriced"}) {
		t.Error("rpc error is not a transport failure")
	}
}
