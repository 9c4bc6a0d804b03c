package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Harvester/internal/telemetry"
)

// Pool — упорядоченный набор RPC endpoint'ов с failover.
//
// Pool хранит указатель на текущий endpoint и счётчик подряд идущих
// сбоев для каждого. Состав пула фиксируется при старте и больше
// не меняется. Все операции над указателем и счётчиками выполняются
// под одним мьютексом: одновременные сбои от разных аккаунтов
// не могут привести указатель в несогласованное состояние.
type Pool struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	current   int

	logger   *slog.Logger
	observer telemetry.Observer
}

// Endpoint — один RPC узел.
//
// Поля failures и lastErr защищены мьютексом Pool.
type Endpoint struct {
	// URL — адрес узла.
	URL string

	failures int
	lastErr  error
}

// EndpointStatus — снимок состояния endpoint'а (для probe и статистики).
type EndpointStatus struct {
	URL      string
	Failures int
	LastErr  string
	Current  bool
}

// PoolConfig — конфигурация Pool.
type PoolConfig struct {
	// URLs — адреса узлов в порядке предпочтения.
	URLs []string

	// ChainID — ожидаемый идентификатор сети. Endpoint с другим
	// chain id считается нездоровым.
	ChainID uint64

	// Client — клиент для health probe при старте.
	Client *Client

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger

	// Observer — получатель событий endpointFailed/endpointRecovered
	// (default: NopObserver).
	Observer telemetry.Observer
}

// NewPool создаёт Pool и выполняет health probe каждого endpoint'а.
//
// Endpoint должен отвечать и подтвердить ожидаемый chain id.
// Если ни один endpoint не здоров, Pool отказывается инициализироваться
// с ErrNoHealthyEndpoint — система не должна стартовать.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("%w: endpoint list is empty", ErrNoHealthyEndpoint)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observer := cfg.Observer
	if observer == nil {
		observer = telemetry.NopObserver{}
	}

	p := &Pool{
		endpoints: make([]*Endpoint, 0, len(cfg.URLs)),
		logger:    logger,
		observer:  observer,
	}

	healthy := 0
	firstHealthy := -1
	for i, url := range cfg.URLs {
		ep := &Endpoint{URL: url}

		if err := probe(ctx, cfg.Client, url, cfg.ChainID); err != nil {
			ep.failures = 1
			ep.lastErr = err
			logger.Warn("endpoint probe failed", "endpoint", url, "error", err)
		} else {
			healthy++
			if firstHealthy < 0 {
				firstHealthy = i
			}
			logger.Info("endpoint healthy", "endpoint", url)
		}

		p.endpoints = append(p.endpoints, ep)
	}

	if healthy == 0 {
		return nil, fmt.Errorf("%w: probed %d endpoints", ErrNoHealthyEndpoint, len(cfg.URLs))
	}

	p.current = firstHealthy
	logger.Info("endpoint pool ready",
		"endpoints", len(p.endpoints),
		"healthy", healthy,
		"current", p.endpoints[p.current].URL,
	)

	return p, nil
}

// probe проверяет, что узел отвечает и обслуживает ожидаемую сеть.
func probe(ctx context.Context, client *Client, url string, chainID uint64) error {
	got, err := client.ChainID(ctx, url)
	if err != nil {
		return err
	}
	if got != chainID {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongNetwork, got, chainID)
	}
	return nil
}

// Current возвращает активный endpoint.
func (p *Pool) Current() *Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.current]
}

// MarkFailed фиксирует сбой endpoint'а и переключает указатель.
//
// Указатель сканирует по кругу до следующего endpoint'а без сбоев
// (среди равных — меньший индекс по направлению сканирования).
// Если таких нет, счётчики всех endpoint'ов уменьшаются на единицу
// (не ниже нуля) — мягкий сброс пула, возвращающий узлы в ротацию
// без полного забвения недавней нестабильности, — после чего
// указатель переходит на первый обнулившийся endpoint после прежнего.
func (p *Pool) MarkFailed(ep *Endpoint, err error) {
	p.mu.Lock()

	ep.failures++
	ep.lastErr = err

	for {
		if next, ok := p.scanFrom(p.current); ok {
			p.current = next
			break
		}

		// Мягкий сброс: все счётчики вниз на единицу.
		for _, e := range p.endpoints {
			if e.failures > 0 {
				e.failures--
			}
		}
		telemetry.PoolResetsTotal.Inc()
		p.logger.Warn("all endpoints failing, soft reset of failure counters")
	}

	failures := ep.failures
	currentURL := p.endpoints[p.current].URL
	p.mu.Unlock()

	p.observer.EndpointFailed(ep.URL, err)
	p.logger.Warn("endpoint marked failed",
		"endpoint", ep.URL,
		"failures", failures,
		"switched_to", currentURL,
	)
}

// scanFrom ищет по кругу первый endpoint без сбоев после индекса from.
func (p *Pool) scanFrom(from int) (int, bool) {
	n := len(p.endpoints)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if p.endpoints[idx].failures == 0 {
			return idx, true
		}
	}
	return 0, false
}

// MarkHealthy сбрасывает счётчик сбоев endpoint'а.
func (p *Pool) MarkHealthy(ep *Endpoint) {
	p.mu.Lock()
	recovered := ep.failures > 0
	ep.failures = 0
	ep.lastErr = nil
	p.mu.Unlock()

	if recovered {
		p.observer.EndpointRecovered(ep.URL)
	}
}

// Snapshot возвращает снимок состояния всех endpoint'ов.
func (p *Pool) Snapshot() []EndpointStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]EndpointStatus, 0, len(p.endpoints))
	for i, ep := range p.endpoints {
		s := EndpointStatus{
			URL:      ep.URL,
			Failures: ep.failures,
			Current:  i == p.current,
		}
		if ep.lastErr != nil {
			s.LastErr = ep.lastErr.Error()
		}
		statuses = append(statuses, s)
	}
	return statuses
}
