package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Harvester/internal/domain"
	"github.com/shaiso/Harvester/internal/registry"
)

// fakeRunner — Runner с управляемым поведением и учётом одновременности.
type fakeRunner struct {
	mu            sync.Mutex
	running       int
	maxConcurrent int
	runs          int

	delay   time.Duration
	outcome func(acct *domain.Account) *domain.Outcome
}

func (f *fakeRunner) Run(ctx context.Context, acct *domain.Account) *domain.Outcome {
	f.mu.Lock()
	f.running++
	f.runs++
	if f.running > f.maxConcurrent {
		f.maxConcurrent = f.running
	}
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.running--
	f.mu.Unlock()

	if f.outcome != nil {
		return f.outcome(acct)
	}
	return &domain.Outcome{Success: true, StartedAt: time.Now(), FinishedAt: time.Now()}
}

func (f *fakeRunner) stats() (maxConcurrent, runs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxConcurrent, f.runs
}

func newSchedulerRegistry(n int, maxRuns int) (*registry.Registry, []*domain.Account) {
	reg := registry.New(registry.Config{
		RoundMin:   time.Hour,
		RoundMax:   time.Hour,
		BackoffMin: time.Hour,
		BackoffMax: time.Hour,
		MaxRuns:    maxRuns,
	})
	accounts := make([]*domain.Account, 0, n)
	for i := 0; i < n; i++ {
		acct := &domain.Account{Address: fmt.Sprintf("0x%040x", i+1)}
		reg.Register(acct)
		accounts = append(accounts, acct)
	}
	return reg, accounts
}

func waitDone(t *testing.T, loop *Loop, timeout time.Duration) {
	t.Helper()
	select {
	case <-loop.Done():
	case <-time.After(timeout):
		t.Fatal("scheduler did not finish in time")
	}
}

func TestLoopRespectsCeiling(t *testing.T) {
	reg, _ := newSchedulerRegistry(6, 1)
	runner := &fakeRunner{delay: 30 * time.Millisecond}

	loop := New(Config{
		Registry:       reg,
		Runner:         runner,
		Ceiling:        2,
		PollInterval:   5 * time.Millisecond,
		LaunchDelayMin: time.Millisecond,
		LaunchDelayMax: time.Millisecond,
		FiniteRuns:     true,
	})

	loop.Start(context.Background())
	waitDone(t, loop, 5*time.Second)
	loop.Stop()

	maxConcurrent, runs := runner.stats()
	if maxConcurrent > 2 {
		t.Errorf("concurrency ceiling violated: %d running at once", maxConcurrent)
	}
	if runs != 6 {
		t.Errorf("expected 6 runs, got %d", runs)
	}
}

func TestLoopFiniteTermination(t *testing.T) {
	// Короткий кулдаун: каждому аккаунту нужно два прогона до вывода
	// из ротации, второй — после кулдауна первого.
	reg := registry.New(registry.Config{
		RoundMin: 5 * time.Millisecond,
		RoundMax: 5 * time.Millisecond,
		MaxRuns:  2,
	})
	for i := 0; i < 3; i++ {
		reg.Register(&domain.Account{Address: fmt.Sprintf("0x%040x", i+1)})
	}

	runner := &fakeRunner{}
	loop := New(Config{
		Registry:       reg,
		Runner:         runner,
		Ceiling:        3,
		PollInterval:   time.Millisecond,
		LaunchDelayMin: time.Millisecond,
		LaunchDelayMax: time.Millisecond,
		FiniteRuns:     true,
	})

	loop.Start(context.Background())
	waitDone(t, loop, 5*time.Second)
	loop.Stop()

	stats := reg.Stats()
	if stats.Retired != 3 {
		t.Errorf("expected all accounts retired, got %d", stats.Retired)
	}
	if _, runs := runner.stats(); runs != 6 {
		t.Errorf("expected 6 runs total, got %d", runs)
	}
}

func TestLoopIsolatesRunPanic(t *testing.T) {
	reg, accounts := newSchedulerRegistry(2, 1)
	runner := &fakeRunner{
		outcome: func(acct *domain.Account) *domain.Outcome {
			if acct.Address == accounts[0].Address {
				panic("step executor bug")
			}
			return &domain.Outcome{Success: true}
		},
	}

	loop := New(Config{
		Registry:       reg,
		Runner:         runner,
		Ceiling:        2,
		PollInterval:   time.Millisecond,
		LaunchDelayMin: time.Millisecond,
		LaunchDelayMax: time.Millisecond,
		FiniteRuns:     true,
		CrashCooldown:  time.Millisecond,
	})

	loop.Start(context.Background())

	// Паника одного прогона не мешает второму аккаунту завершиться
	// и выйти из ротации; сам цикл продолжает работать.
	deadline := time.After(5 * time.Second)
	for {
		stats := reg.Stats()
		if stats.Retired == 1 && stats.Failed == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("unexpected stats: %+v", stats)
		case <-time.After(5 * time.Millisecond):
		}
	}
	loop.Stop()

	state, _ := reg.State(accounts[0].Address)
	if state.Status != domain.StatusFailed {
		t.Errorf("panicked account should be FAILED, got %s", state.Status)
	}
	if state.LastError != ErrRunPanicked.Error() {
		t.Errorf("expected last error %q, got %q", ErrRunPanicked.Error(), state.LastError)
	}
}

func TestLoopStopJoinsRunningTasks(t *testing.T) {
	reg, _ := newSchedulerRegistry(1, 0)
	runner := &fakeRunner{delay: 50 * time.Millisecond}

	loop := New(Config{
		Registry:       reg,
		Runner:         runner,
		Ceiling:        1,
		PollInterval:   time.Millisecond,
		LaunchDelayMin: time.Millisecond,
		LaunchDelayMax: time.Millisecond,
	})

	loop.Start(context.Background())

	// Дожидаемся старта прогона.
	deadline := time.After(time.Second)
	for reg.Stats().Running == 0 {
		select {
		case <-deadline:
			t.Fatal("run did not start")
		case <-time.After(time.Millisecond):
		}
	}

	// Stop блокируется до присоединения прогона: после возврата
	// результат уже зафиксирован в registry.
	loop.Stop()

	stats := reg.Stats()
	if stats.Running != 0 {
		t.Errorf("no runs should be in flight after Stop, got %d", stats.Running)
	}
	if _, runs := runner.stats(); runs == 0 {
		t.Error("run should have completed")
	}
}

func TestLoopReportsOutcomes(t *testing.T) {
	reg, _ := newSchedulerRegistry(2, 1)
	runner := &fakeRunner{}

	var mu sync.Mutex
	recorded := make(map[string]bool)
	reporter := reporterFunc(func(ctx context.Context, acct *domain.Account, outcome *domain.Outcome) error {
		mu.Lock()
		recorded[acct.Address] = outcome.Success
		mu.Unlock()
		return nil
	})

	loop := New(Config{
		Registry:       reg,
		Runner:         runner,
		Reporter:       reporter,
		Ceiling:        2,
		PollInterval:   time.Millisecond,
		LaunchDelayMin: time.Millisecond,
		LaunchDelayMax: time.Millisecond,
		FiniteRuns:     true,
	})

	loop.Start(context.Background())
	waitDone(t, loop, 5*time.Second)
	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 2 {
		t.Errorf("expected 2 recorded runs, got %d", len(recorded))
	}
}

// reporterFunc адаптирует функцию к интерфейсу Reporter.
type reporterFunc func(ctx context.Context, acct *domain.Account, outcome *domain.Outcome) error

func (f reporterFunc) RecordRun(ctx context.Context, acct *domain.Account, outcome *domain.Outcome) error {
	return f(ctx, acct, outcome)
}
