package registry

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shaiso/Harvester/internal/domain"
)

// Default configuration values.
const (
	defaultRoundMin   = 6 * time.Hour
	defaultRoundMax   = 12 * time.Hour
	defaultBackoffMin = 5 * time.Minute
	defaultBackoffMax = 20 * time.Minute
)

// retiredHorizon — «недостижимое» время для выведенных аккаунтов.
const retiredHorizon = 100 * 365 * 24 * time.Hour

// Registry — единственный источник истины о состоянии аккаунтов.
//
// Все переходы состояния одного аккаунта сериализованы общим
// мьютексом: две конкурентные операции над одним аккаунтом не могут
// гонять друг друга. Сам по себе Registry не ограничивает количество
// одновременно выполняющихся аккаунтов — это забота scheduler'а.
type Registry struct {
	mu       sync.Mutex
	accounts []*domain.Account
	states   map[string]*domain.AccountState

	roundMin   time.Duration
	roundMax   time.Duration
	backoffMin time.Duration
	backoffMax time.Duration
	maxRuns    int

	now    func() time.Time
	logger *slog.Logger
}

// Config — конфигурация Registry.
type Config struct {
	// RoundMin / RoundMax — диапазон cooldown после успешного прогона.
	RoundMin time.Duration
	RoundMax time.Duration

	// BackoffMin / BackoffMax — диапазон паузы после ошибки.
	// Существенно короче cooldown'а успеха: упавший аккаунт
	// получает повторный шанс быстро.
	BackoffMin time.Duration
	BackoffMax time.Duration

	// MaxRuns — лимит успешных прогонов (finite-режим).
	// 0 — без лимита, аккаунты не выводятся из ротации.
	MaxRuns int

	// Now — источник времени (для тестов). Default: time.Now.
	Now func() time.Time

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Registry.
func New(cfg Config) *Registry {
	if cfg.RoundMin <= 0 {
		cfg.RoundMin = defaultRoundMin
	}
	if cfg.RoundMax < cfg.RoundMin {
		cfg.RoundMax = cfg.RoundMin
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = defaultBackoffMin
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		accounts:   make([]*domain.Account, 0),
		states:     make(map[string]*domain.AccountState),
		roundMin:   cfg.RoundMin,
		roundMax:   cfg.RoundMax,
		backoffMin: cfg.BackoffMin,
		backoffMax: cfg.BackoffMax,
		maxRuns:    cfg.MaxRuns,
		now:        now,
		logger:     logger,
	}
}

// Register добавляет аккаунт с начальным состоянием READY.
// Идемпотентен: повторная регистрация того же адреса ничего не меняет.
func (r *Registry) Register(acct *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.states[acct.Address]; exists {
		return
	}

	r.accounts = append(r.accounts, acct)
	r.states[acct.Address] = &domain.AccountState{
		Status:         domain.StatusReady,
		NextEligibleAt: r.now(),
	}
}

// Shuffle один раз перемешивает порядок обхода аккаунтов.
// Вызывается после загрузки, до старта scheduler'а.
func (r *Registry) Shuffle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	rand.Shuffle(len(r.accounts), func(i, j int) {
		r.accounts[i], r.accounts[j] = r.accounts[j], r.accounts[i]
	})
}

// ListEligible возвращает аккаунты, готовые к запуску в момент now,
// в порядке регистрации (или перемешанном — после Shuffle).
func (r *Registry) ListEligible(now time.Time) []*domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	var eligible []*domain.Account
	for _, acct := range r.accounts {
		if r.states[acct.Address].Eligible(now) {
			eligible = append(eligible, acct)
		}
	}
	return eligible
}

// MarkRunning переводит аккаунт в RUNNING.
// Возвращает ErrInvalidTransition, если аккаунт уже выполняется
// или выведен из ротации.
func (r *Registry) MarkRunning(acct *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[acct.Address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, acct.Address)
	}
	if state.Status == domain.StatusRunning {
		return fmt.Errorf("%w: %s already running", ErrInvalidTransition, acct.Address)
	}
	if state.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is retired", ErrInvalidTransition, acct.Address)
	}

	state.Status = domain.StatusRunning
	return nil
}

// MarkFinished фиксирует результат прогона.
//
// Успех: status=COMPLETED, runCount++, следующий запуск через
// случайный интервал [roundMin, roundMax]. Ошибка: status=FAILED,
// errorCount++, повтор через короткий [backoffMin, backoffMax].
// В finite-режиме аккаунт, достигший MaxRuns, выводится из ротации
// навсегда вне зависимости от исхода последнего прогона.
func (r *Registry) MarkFinished(acct *domain.Account, outcome *domain.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[acct.Address]
	if !ok {
		return
	}

	now := r.now()

	if outcome.Success {
		state.Status = domain.StatusCompleted
		state.RunCount++
		state.NextEligibleAt = now.Add(randDuration(r.roundMin, r.roundMax))
	} else {
		state.Status = domain.StatusFailed
		state.ErrorCount++
		state.LastError = outcome.ErrorText()
		state.NextEligibleAt = now.Add(randDuration(r.backoffMin, r.backoffMax))
	}

	if r.maxRuns > 0 && state.RunCount >= r.maxRuns {
		state.Status = domain.StatusRetired
		state.NextEligibleAt = now.Add(retiredHorizon)
		r.logger.Info("account retired",
			"address", acct.Address,
			"run_count", state.RunCount,
		)
	}
}

// State возвращает копию состояния аккаунта.
func (r *Registry) State(address string) (domain.AccountState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[address]
	if !ok {
		return domain.AccountState{}, false
	}
	return *state, true
}

// Stats — сводка по всем аккаунтам.
type Stats struct {
	Total     int
	Running   int
	Eligible  int
	Completed int
	Failed    int
	Retired   int
}

// Stats возвращает текущую сводку.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := Stats{Total: len(r.accounts)}
	for _, acct := range r.accounts {
		state := r.states[acct.Address]
		switch state.Status {
		case domain.StatusRunning:
			s.Running++
		case domain.StatusCompleted:
			s.Completed++
		case domain.StatusFailed:
			s.Failed++
		case domain.StatusRetired:
			s.Retired++
		}
		if state.Eligible(now) {
			s.Eligible++
		}
	}
	return s
}

// randDuration возвращает случайную длительность из [min, max].
func randDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}
