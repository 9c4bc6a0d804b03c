package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shaiso/Harvester/internal/domain"
	"github.com/shaiso/Harvester/internal/registry"
)

// Default configuration values.
const (
	defaultPollInterval   = 30 * time.Second
	defaultLaunchDelayMin = 5 * time.Second
	defaultLaunchDelayMax = 30 * time.Second
	defaultCrashCooldown  = time.Minute
)

// Runner выполняет один прогон аккаунта. Реализуется executor.TaskExecutor.
type Runner interface {
	Run(ctx context.Context, acct *domain.Account) *domain.Outcome
}

// Reporter получает записи о завершённых прогонах (опционально).
// Реализуется report.RunLog.
type Reporter interface {
	RecordRun(ctx context.Context, acct *domain.Account, outcome *domain.Outcome) error
}

// Loop — координирующий цикл системы.
//
// Loop — единственная управляющая горутина: каждый тик она выбирает
// готовые аккаунты из registry и запускает для них прогоны, не
// превышая потолок одновременности. Запущенные прогоны не блокируют
// цикл; их завершение отслеживается через WaitGroup, так что Stop
// дожидается всех незавершённых прогонов, и ни один результат
// не теряется молча.
type Loop struct {
	registry *registry.Registry
	runner   Runner
	reporter Reporter
	window   *Window

	ceiling        int
	pollInterval   time.Duration
	launchDelayMin time.Duration
	launchDelayMax time.Duration
	crashCooldown  time.Duration
	finiteRuns     bool

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	tasks      sync.WaitGroup
	done       chan struct{}
}

// Config — конфигурация Loop.
type Config struct {
	// Registry — источник истины о состоянии аккаунтов.
	Registry *registry.Registry

	// Runner — executor прогонов.
	Runner Runner

	// Reporter — получатель записей о завершённых прогонах (опционально).
	Reporter Reporter

	// Window — окно активности (опционально; nil — всегда открыто).
	Window *Window

	// Ceiling — потолок одновременно выполняющихся аккаунтов.
	Ceiling int

	// PollInterval — пауза между тиками (default: 30s).
	PollInterval time.Duration

	// LaunchDelayMin / LaunchDelayMax — случайная пауза между
	// запусками внутри одного тика. Размазывает старты, чтобы
	// не обрушить на сеть всплеск одновременных запросов.
	LaunchDelayMin time.Duration
	LaunchDelayMax time.Duration

	// CrashCooldown — пауза после паники внутри тика (default: 1m).
	CrashCooldown time.Duration

	// FiniteRuns — завершать цикл, когда все аккаунты выведены
	// из ротации. false — цикл работает, пока не остановят.
	FiniteRuns bool

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт Loop.
func New(cfg Config) *Loop {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	launchDelayMin := cfg.LaunchDelayMin
	if launchDelayMin < 0 {
		launchDelayMin = defaultLaunchDelayMin
	}
	launchDelayMax := cfg.LaunchDelayMax
	if launchDelayMax < launchDelayMin {
		launchDelayMax = launchDelayMin
	}

	crashCooldown := cfg.CrashCooldown
	if crashCooldown <= 0 {
		crashCooldown = defaultCrashCooldown
	}

	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		registry:       cfg.Registry,
		runner:         cfg.Runner,
		reporter:       cfg.Reporter,
		window:         cfg.Window,
		ceiling:        ceiling,
		pollInterval:   pollInterval,
		launchDelayMin: launchDelayMin,
		launchDelayMax: launchDelayMax,
		crashCooldown:  crashCooldown,
		finiteRuns:     cfg.FiniteRuns,
		logger:         logger,
		done:           make(chan struct{}),
	}
}

// Start запускает цикл в отдельной горутине.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancelFunc = cancel

	l.logger.Info("starting scheduler loop",
		"ceiling", l.ceiling,
		"poll_interval", l.pollInterval,
		"finite_runs", l.finiteRuns,
	)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx)
	}()
}

// Stop останавливает цикл и дожидается завершения всех прогонов.
func (l *Loop) Stop() {
	l.logger.Info("stopping scheduler loop...")

	if l.cancelFunc != nil {
		l.cancelFunc()
	}

	l.wg.Wait()
	l.logger.Info("scheduler loop stopped")
}

// Done закрывается, когда цикл завершился сам (finite-режим)
// и все прогоны присоединены.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// run — тело цикла.
func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	// Точка присоединения: ни один прогон не бросается без
	// наблюдения его результата.
	defer l.tasks.Wait()

	for {
		l.tick(ctx)

		if ctx.Err() != nil {
			return
		}

		if l.finished() {
			l.logger.Info("all accounts retired, scheduler loop finished")
			return
		}

		if err := sleepCtx(ctx, l.pollInterval); err != nil {
			return
		}
	}
}

// tick — один виток планирования. Паника внутри тика не роняет цикл:
// она логируется, после чего цикл выдерживает фиксированный cooldown.
func (l *Loop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduler tick panicked", "panic", r)
			_ = sleepCtx(ctx, l.crashCooldown)
		}
	}()

	now := time.Now()

	if l.window != nil && !l.window.Open(now) {
		return
	}

	stats := l.registry.Stats()
	slots := l.ceiling - stats.Running
	if slots <= 0 {
		return
	}

	eligible := l.registry.ListEligible(now)
	if len(eligible) == 0 {
		return
	}

	if len(eligible) > slots {
		eligible = eligible[:slots]
	}

	l.logger.Debug("dispatching accounts",
		"eligible", len(eligible),
		"slots", slots,
		"running", stats.Running,
	)

	for i, acct := range eligible {
		if err := l.registry.MarkRunning(acct); err != nil {
			l.logger.Warn("skipping account", "address", acct.Address, "reason", err)
			continue
		}

		l.tasks.Add(1)
		go l.runOne(ctx, acct)

		// Пауза между запусками внутри тика.
		if i < len(eligible)-1 {
			if err := sleepCtx(ctx, randDelay(l.launchDelayMin, l.launchDelayMax)); err != nil {
				return
			}
		}
	}
}

// runOne выполняет один прогон и сообщает результат registry.
// Паника внутри прогона изолируется: аккаунт помечается упавшим,
// цикл продолжает работу.
func (l *Loop) runOne(ctx context.Context, acct *domain.Account) {
	defer l.tasks.Done()

	outcome := l.safeRun(ctx, acct)
	l.registry.MarkFinished(acct, outcome)

	if l.reporter != nil {
		if err := l.reporter.RecordRun(ctx, acct, outcome); err != nil {
			l.logger.Warn("failed to record run",
				"address", acct.Address,
				"error", err,
			)
		}
	}
}

// safeRun вызывает Runner, превращая панику в failed-результат.
func (l *Loop) safeRun(ctx context.Context, acct *domain.Account) (outcome *domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("run panicked", "address", acct.Address, "panic", r)
			outcome = &domain.Outcome{
				Err:        ErrRunPanicked,
				StartedAt:  time.Now(),
				FinishedAt: time.Now(),
			}
		}
	}()

	return l.runner.Run(ctx, acct)
}

// finished проверяет условие завершения finite-режима: каждому
// аккаунту больше нечего делать (выведен из ротации или дорабатывает
// последний прогон) и никто не станет готовым позже.
func (l *Loop) finished() bool {
	if !l.finiteRuns {
		return false
	}
	stats := l.registry.Stats()
	return stats.Retired+stats.Running >= stats.Total && stats.Eligible == 0
}

// sleepCtx спит с учётом отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// randDelay возвращает случайную паузу из [min, max].
func randDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}
