package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/Harvester/internal/chain"
	"github.com/shaiso/Harvester/internal/config"
	"github.com/shaiso/Harvester/internal/domain"
	"github.com/shaiso/Harvester/internal/events"
	"github.com/shaiso/Harvester/internal/executor"
	"github.com/shaiso/Harvester/internal/fees"
	"github.com/shaiso/Harvester/internal/registry"
	"github.com/shaiso/Harvester/internal/report"
	"github.com/shaiso/Harvester/internal/scheduler"
	"github.com/shaiso/Harvester/internal/telemetry"
	"github.com/shaiso/Harvester/internal/wallet"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the farming daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(*configPath)
		},
	}
}

func runDaemon(configPath string) error {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting harvester", "version", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Аккаунты
	accounts, err := wallet.Load(cfg.Accounts.File)
	if err != nil {
		return err
	}
	logger.Info("accounts loaded", "count", len(accounts))

	reg := registry.New(registry.Config{
		RoundMin:   cfg.Schedule.RoundMin.Std(),
		RoundMax:   cfg.Schedule.RoundMax.Std(),
		BackoffMin: cfg.Schedule.BackoffMin.Std(),
		BackoffMax: cfg.Schedule.BackoffMax.Std(),
		MaxRuns:    cfg.Schedule.MaxRuns,
		Logger:     logger,
	})
	for _, acct := range accounts {
		reg.Register(acct)
	}
	if cfg.Accounts.Shuffle {
		reg.Shuffle()
	}

	// Наблюдатели: лог и метрики всегда, события — по конфигурации
	observers := telemetry.MultiObserver{
		&telemetry.LogObserver{Logger: logger},
		telemetry.MetricsObserver{},
	}

	if cfg.Events.Enabled {
		eventsURL := cfg.Events.URL
		if eventsURL == "" {
			eventsURL = events.DefaultURL()
		}
		conn, err := events.NewConnection(eventsURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events disabled", "error", err)
		} else {
			defer conn.Close()
			publisher, err := events.NewPublisher(conn, logger)
			if err != nil {
				logger.Warn("failed to setup event publisher", "error", err)
			} else {
				observers = append(observers, publisher)
				logger.Info("RabbitMQ connected")
			}
		}
	}

	// Сеть: клиент, pool с health probe, call wrapper'ы
	client := chain.NewClient(cfg.Chain.CallTimeout.Std())

	pool, err := chain.NewPool(ctx, chain.PoolConfig{
		URLs:     cfg.Chain.Endpoints,
		ChainID:  cfg.Chain.ChainID,
		Client:   client,
		Logger:   logger,
		Observer: observers,
	})
	if err != nil {
		return err
	}

	caller := chain.NewCaller(pool, chain.CallOptions{
		Timeout:    cfg.Chain.CallTimeout.Std(),
		MaxRetries: cfg.Chain.MaxRetries,
		RetryDelay: cfg.Chain.RetryDelay.Std(),
	}, logger)

	// Ожидание квитанции живёт дольше обычного вызова.
	receiptCaller := chain.NewCaller(pool, chain.CallOptions{
		Timeout:    cfg.Chain.ReceiptTimeout.Std(),
		MaxRetries: cfg.Chain.MaxRetries,
		RetryDelay: cfg.Chain.RetryDelay.Std(),
	}, logger)

	// Комиссии
	schedule, err := buildFeeSchedule(cfg.Fees)
	if err != nil {
		return err
	}
	escalator := fees.NewEscalator(schedule, logger)

	// Executor
	minNative, err := weiUint64(cfg.Executor.MinNativeWei)
	if err != nil {
		return fmt.Errorf("executor: min_native_wei: %w", err)
	}
	minToken, err := weiUint64(cfg.Executor.MinTokenWei)
	if err != nil {
		return fmt.Errorf("executor: min_token_wei: %w", err)
	}

	steps := make([]domain.StepKind, 0, len(cfg.Executor.Steps))
	for _, raw := range cfg.Executor.Steps {
		steps = append(steps, domain.ParseStepKind(raw))
	}

	exec, err := executor.New(executor.Config{
		Deps: &executor.Deps{
			Client:        client,
			Caller:        caller,
			ReceiptCaller: receiptCaller,
			Fees:          escalator,
			Contracts: executor.Contracts{
				TokenA: cfg.Executor.Contracts.TokenA,
				TokenB: cfg.Executor.Contracts.TokenB,
				Router: cfg.Executor.Contracts.Router,
				Faucet: cfg.Executor.Contracts.Faucet,
			},
			ReceiptPoll:    cfg.Chain.ReceiptPoll.Std(),
			MinNativeWei:   minNative,
			MinTokenWei:    minToken,
			SwapPortionMin: cfg.Executor.SwapPortionMin,
			SwapPortionMax: cfg.Executor.SwapPortionMax,
		},
		Steps:        steps,
		StepDelayMin: cfg.Executor.StepDelayMin.Std(),
		StepDelayMax: cfg.Executor.StepDelayMax.Std(),
		Observer:     observers,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	// Журнал прогонов (опционально)
	var reporter scheduler.Reporter
	if cfg.Report.Enabled {
		dbPool, err := report.NewPool(ctx, cfg.Report.DSN)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		defer dbPool.Close()
		reporter = report.NewRunLog(dbPool)
		logger.Info("run log connected")
	}

	// Окно активности (опционально)
	var window *scheduler.Window
	if cfg.Schedule.Window != "" {
		window, err = scheduler.NewWindow(cfg.Schedule.Window, cfg.Schedule.WindowDuration.Std())
		if err != nil {
			return err
		}
	}

	loop := scheduler.New(scheduler.Config{
		Registry:       reg,
		Runner:         exec,
		Reporter:       reporter,
		Window:         window,
		Ceiling:        cfg.Schedule.Ceiling,
		PollInterval:   cfg.Schedule.PollInterval.Std(),
		LaunchDelayMin: cfg.Schedule.LaunchDelayMin.Std(),
		LaunchDelayMax: cfg.Schedule.LaunchDelayMax.Std(),
		FiniteRuns:     cfg.Schedule.MaxRuns > 0,
		Logger:         logger,
	})
	loop.Start(ctx)

	// HTTP mux: /healthz + /metrics
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		go func() {
			logger.Info("listening", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("http server error", "error", err)
				cancel()
			}
		}()
	}

	// Работаем до сигнала или до завершения finite-режима
	select {
	case <-ctx.Done():
	case <-loop.Done():
	}

	loop.Stop()

	stats := reg.Stats()
	logger.Info("harvester stopped",
		"completed", stats.Completed,
		"failed", stats.Failed,
		"retired", stats.Retired,
	)
	return nil
}

// buildFeeSchedule собирает fees.Schedule из конфигурации.
func buildFeeSchedule(cfg config.FeesConfig) (*fees.Schedule, error) {
	fallback, err := buildFeeProfile("default", cfg.Default)
	if err != nil {
		return nil, err
	}

	overrides := make(map[domain.StepKind]fees.Profile, len(cfg.Steps))
	for raw, pc := range cfg.Steps {
		profile, err := buildFeeProfile(raw, pc)
		if err != nil {
			return nil, err
		}
		overrides[domain.ParseStepKind(raw)] = profile
	}

	return fees.NewSchedule(fallback, overrides), nil
}

func buildFeeProfile(name string, pc config.FeeProfileConfig) (fees.Profile, error) {
	maxFee, err := weiUint64(pc.MaxFeePerGas)
	if err != nil {
		return fees.Profile{}, fmt.Errorf("fees: %s: max_fee_per_gas: %w", name, err)
	}
	priority, err := weiUint64(pc.PriorityFee)
	if err != nil {
		return fees.Profile{}, fmt.Errorf("fees: %s: priority_fee: %w", name, err)
	}
	return fees.Profile{
		GasLimitMin:  pc.GasLimitMin,
		GasLimitMax:  pc.GasLimitMax,
		MaxFeePerGas: maxFee,
		PriorityFee:  priority,
		RetryBudget:  pc.RetryBudget,
		Multiplier:   pc.Multiplier,
	}, nil
}

// weiUint64 разбирает десятичную wei-строку в uint64. Пустая строка — 0.
func weiUint64(s string) (uint64, error) {
	v, err := config.ParseWei(s)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("wei value %s is too large", v)
	}
	return v.Uint64(), nil
}
