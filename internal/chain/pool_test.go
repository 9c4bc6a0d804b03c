package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testChainID = 10143

// rpcServer поднимает фейковый JSON-RPC узел, отвечающий на eth_chainId.
func rpcServer(t *testing.T, chainID uint64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":"0x%x"}`, chainID)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestPool(t *testing.T, urls []string) *Pool {
	t.Helper()
	pool, err := NewPool(context.Background(), PoolConfig{
		URLs:    urls,
		ChainID: testChainID,
		Client:  NewClient(2 * time.Second),
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return pool
}

func TestNewPoolProbesEndpoints(t *testing.T) {
	good := rpcServer(t, testChainID)
	wrong := rpcServer(t, 1) // другая сеть

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	pool := newTestPool(t, []string{dead.URL, wrong.URL, good.URL})

	// Текущим становится первый здоровый endpoint.
	if pool.Current().URL != good.URL {
		t.Errorf("expected current %s, got %s", good.URL, pool.Current().URL)
	}

	snapshot := pool.Snapshot()
	if snapshot[0].Failures != 1 || snapshot[1].Failures != 1 {
		t.Error("unhealthy endpoints should start with one failure")
	}
	if snapshot[2].Failures != 0 || !snapshot[2].Current {
		t.Error("healthy endpoint should be current with zero failures")
	}
}

func TestNewPoolRefusesWhenAllUnhealthy(t *testing.T) {
	wrong := rpcServer(t, 1)

	_, err := NewPool(context.Background(), PoolConfig{
		URLs:    []string{wrong.URL},
		ChainID: testChainID,
		Client:  NewClient(2 * time.Second),
	})
	if !errors.Is(err, ErrNoHealthyEndpoint) {
		t.Fatalf("expected ErrNoHealthyEndpoint, got %v", err)
	}
}

func TestMarkFailedSwitchesToNextHealthy(t *testing.T) {
	a := rpcServer(t, testChainID)
	b := rpcServer(t, testChainID)
	c := rpcServer(t, testChainID)

	pool := newTestPool(t, []string{a.URL, b.URL, c.URL})
	if pool.Current().URL != a.URL {
		t.Fatalf("expected current %s", a.URL)
	}

	pool.MarkFailed(pool.Current(), errors.New("timeout"))
	if pool.Current().URL != b.URL {
		t.Errorf("expected switch to %s, got %s", b.URL, pool.Current().URL)
	}

	pool.MarkFailed(pool.Current(), errors.New("timeout"))
	if pool.Current().URL != c.URL {
		t.Errorf("expected switch to %s, got %s", c.URL, pool.Current().URL)
	}
}

func TestMarkFailedSoftReset(t *testing.T) {
	a := rpcServer(t, testChainID)
	b := rpcServer(t, testChainID)

	pool := newTestPool(t, []string{a.URL, b.URL})

	// Роняем оба endpoint'а: a получает сбой, указатель уходит на b;
	// сбой b не оставляет здоровых — пул делает мягкий сброс.
	pool.MarkFailed(pool.Current(), errors.New("timeout"))
	if pool.Current().URL != b.URL {
		t.Fatalf("expected switch to %s", b.URL)
	}
	pool.MarkFailed(pool.Current(), errors.New("timeout"))

	// После сброса оба счётчика обнулились, указатель перешёл
	// на первый обнулившийся после прежнего — a.
	if pool.Current().URL != a.URL {
		t.Errorf("after soft reset expected %s, got %s", a.URL, pool.Current().URL)
	}
	for _, s := range pool.Snapshot() {
		if s.Failures != 0 {
			t.Errorf("endpoint %s should have zero failures after reset, got %d", s.URL, s.Failures)
		}
	}
}

func TestMarkHealthyResetsFailures(t *testing.T) {
	a := rpcServer(t, testChainID)
	b := rpcServer(t, testChainID)

	pool := newTestPool(t, []string{a.URL, b.URL})

	failed := pool.Current()
	pool.MarkFailed(failed, errors.New("timeout"))
	pool.MarkHealthy(failed)

	for _, s := range pool.Snapshot() {
		if s.URL == failed.URL && s.Failures != 0 {
			t.Errorf("recovered endpoint should have zero failures, got %d", s.Failures)
		}
	}
}
