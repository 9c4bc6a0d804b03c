package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Harvester/internal/domain"
)

func testAccount(addr string) *domain.Account {
	return &domain.Account{Address: addr, PrivateKey: "deadbeef"}
}

func newTestRegistry(cfg Config, now time.Time) *Registry {
	cfg.Now = func() time.Time { return now }
	return New(cfg)
}

func TestRegisterIdempotent(t *testing.T) {
	reg := New(Config{})
	acct := testAccount("0xaaa")

	reg.Register(acct)
	reg.Register(acct)
	reg.Register(testAccount("0xaaa"))

	stats := reg.Stats()
	if stats.Total != 1 {
		t.Fatalf("expected 1 account, got %d", stats.Total)
	}
}

func TestListEligibleOrder(t *testing.T) {
	now := time.Now()
	reg := newTestRegistry(Config{}, now)

	addrs := []string{"0xaaa", "0xbbb", "0xccc"}
	for _, a := range addrs {
		reg.Register(testAccount(a))
	}

	eligible := reg.ListEligible(now)
	if len(eligible) != 3 {
		t.Fatalf("expected 3 eligible, got %d", len(eligible))
	}
	for i, a := range addrs {
		if eligible[i].Address != a {
			t.Errorf("position %d: expected %s, got %s", i, a, eligible[i].Address)
		}
	}
}

func TestMarkRunningTransitions(t *testing.T) {
	now := time.Now()
	reg := newTestRegistry(Config{}, now)
	acct := testAccount("0xaaa")
	reg.Register(acct)

	if err := reg.MarkRunning(acct); err != nil {
		t.Fatalf("first MarkRunning: %v", err)
	}

	// Повторный запуск выполняющегося аккаунта запрещён.
	if err := reg.MarkRunning(acct); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Выполняющийся аккаунт не в списке готовых.
	if eligible := reg.ListEligible(now); len(eligible) != 0 {
		t.Errorf("running account should not be eligible, got %d", len(eligible))
	}

	if err := reg.MarkRunning(testAccount("0xzzz")); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
}

func TestMarkFinishedSuccessCooldown(t *testing.T) {
	now := time.Now()
	roundMin, roundMax := 6*time.Hour, 12*time.Hour
	reg := newTestRegistry(Config{
		RoundMin:   roundMin,
		RoundMax:   roundMax,
		BackoffMin: 5 * time.Minute,
		BackoffMax: 20 * time.Minute,
	}, now)

	acct := testAccount("0xaaa")
	reg.Register(acct)
	if err := reg.MarkRunning(acct); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	reg.MarkFinished(acct, &domain.Outcome{Success: true})

	state, ok := reg.State(acct.Address)
	if !ok {
		t.Fatal("state not found")
	}
	if state.Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", state.Status)
	}
	if state.RunCount != 1 {
		t.Errorf("expected run count 1, got %d", state.RunCount)
	}

	cooldown := state.NextEligibleAt.Sub(now)
	if cooldown < roundMin || cooldown > roundMax {
		t.Errorf("cooldown %v outside [%v, %v]", cooldown, roundMin, roundMax)
	}

	if eligible := reg.ListEligible(now); len(eligible) != 0 {
		t.Error("account in cooldown should not be eligible")
	}
	if eligible := reg.ListEligible(now.Add(roundMax + time.Second)); len(eligible) != 1 {
		t.Error("account should be eligible after cooldown")
	}
}

func TestMarkFinishedFailureBackoff(t *testing.T) {
	now := time.Now()
	backoffMin, backoffMax := 5*time.Minute, 20*time.Minute
	reg := newTestRegistry(Config{
		RoundMin:   6 * time.Hour,
		RoundMax:   12 * time.Hour,
		BackoffMin: backoffMin,
		BackoffMax: backoffMax,
	}, now)

	acct := testAccount("0xaaa")
	reg.Register(acct)
	if err := reg.MarkRunning(acct); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	reg.MarkFinished(acct, &domain.Outcome{Err: errors.New("claim reverted")})

	state, _ := reg.State(acct.Address)
	if state.Status != domain.StatusFailed {
		t.Errorf("expected FAILED, got %s", state.Status)
	}
	if state.ErrorCount != 1 {
		t.Errorf("expected error count 1, got %d", state.ErrorCount)
	}
	if state.LastError != "claim reverted" {
		t.Errorf("unexpected last error: %q", state.LastError)
	}
	if state.RunCount != 0 {
		t.Errorf("failed run should not increment run count, got %d", state.RunCount)
	}

	// Backoff короче cooldown'а успеха: упавший аккаунт повторяется раньше.
	backoff := state.NextEligibleAt.Sub(now)
	if backoff < backoffMin || backoff > backoffMax {
		t.Errorf("backoff %v outside [%v, %v]", backoff, backoffMin, backoffMax)
	}
}

func TestRetireAfterMaxRuns(t *testing.T) {
	now := time.Now()
	reg := newTestRegistry(Config{
		RoundMin: time.Hour,
		RoundMax: time.Hour,
		MaxRuns:  2,
	}, now)

	acct := testAccount("0xaaa")
	reg.Register(acct)

	for i := 0; i < 2; i++ {
		if err := reg.MarkRunning(acct); err != nil {
			t.Fatalf("run %d: MarkRunning: %v", i, err)
		}
		reg.MarkFinished(acct, &domain.Outcome{Success: true})
	}

	state, _ := reg.State(acct.Address)
	if state.Status != domain.StatusRetired {
		t.Fatalf("expected RETIRED after %d runs, got %s", 2, state.Status)
	}

	// Выведенный аккаунт не возвращается в ротацию и не запускается.
	if eligible := reg.ListEligible(now.Add(365 * 24 * time.Hour)); len(eligible) != 0 {
		t.Error("retired account should never be eligible")
	}
	if err := reg.MarkRunning(acct); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for retired account, got %v", err)
	}

	stats := reg.Stats()
	if stats.Retired != 1 {
		t.Errorf("expected 1 retired, got %d", stats.Retired)
	}
}

func TestStats(t *testing.T) {
	now := time.Now()
	reg := newTestRegistry(Config{
		RoundMin:   time.Hour,
		RoundMax:   time.Hour,
		BackoffMin: time.Minute,
		BackoffMax: time.Minute,
	}, now)

	a, b, c := testAccount("0xaaa"), testAccount("0xbbb"), testAccount("0xccc")
	reg.Register(a)
	reg.Register(b)
	reg.Register(c)

	if err := reg.MarkRunning(a); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := reg.MarkRunning(b); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	reg.MarkFinished(b, &domain.Outcome{Err: errors.New("boom")})

	stats := reg.Stats()
	if stats.Total != 3 {
		t.Errorf("total: got %d", stats.Total)
	}
	if stats.Running != 1 {
		t.Errorf("running: got %d", stats.Running)
	}
	if stats.Failed != 1 {
		t.Errorf("failed: got %d", stats.Failed)
	}
	// Готов только нетронутый аккаунт: a выполняется, b в backoff.
	if stats.Eligible != 1 {
		t.Errorf("eligible: got %d", stats.Eligible)
	}
}
