package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration — обёртка над time.Duration с разбором из YAML
// в формате time.ParseDuration ("30s", "6h").
type Duration time.Duration

// UnmarshalYAML реализует yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std возвращает значение как time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config — полная конфигурация демона.
type Config struct {
	// LogLevel — уровень логирования: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// MetricsAddr — адрес HTTP-сервера /metrics и /healthz.
	// Пустая строка отключает сервер.
	MetricsAddr string `yaml:"metrics_addr"`

	Chain    ChainConfig    `yaml:"chain"`
	Accounts AccountsConfig `yaml:"accounts"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Executor ExecutorConfig `yaml:"executor"`
	Fees     FeesConfig     `yaml:"fees"`
	Report   ReportConfig   `yaml:"report"`
	Events   EventsConfig   `yaml:"events"`
}

// ChainConfig — сеть и endpoint'ы.
type ChainConfig struct {
	// Endpoints — список JSON-RPC endpoint'ов в порядке предпочтения.
	Endpoints []string `yaml:"endpoints"`

	// ChainID — ожидаемый идентификатор сети.
	ChainID uint64 `yaml:"chain_id"`

	// CallTimeout — таймаут одной попытки вызова.
	CallTimeout Duration `yaml:"call_timeout"`

	// MaxRetries — попытки вызова до возврата ошибки.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay — пауза между попытками.
	RetryDelay Duration `yaml:"retry_delay"`

	// ReceiptTimeout — таймаут ожидания квитанции транзакции.
	ReceiptTimeout Duration `yaml:"receipt_timeout"`

	// ReceiptPoll — интервал опроса квитанции.
	ReceiptPoll Duration `yaml:"receipt_poll"`
}

// AccountsConfig — источник аккаунтов.
type AccountsConfig struct {
	// File — путь к файлу "address,privatekey".
	File string `yaml:"file"`

	// Shuffle — перемешать порядок аккаунтов при старте.
	Shuffle bool `yaml:"shuffle"`
}

// ScheduleConfig — параметры цикла шедулера и реестра аккаунтов.
type ScheduleConfig struct {
	// Ceiling — максимум одновременно выполняемых прогонов.
	Ceiling int `yaml:"ceiling"`

	// PollInterval — интервал тиков шедулера.
	PollInterval Duration `yaml:"poll_interval"`

	// LaunchDelayMin/Max — случайная пауза между запусками прогонов.
	LaunchDelayMin Duration `yaml:"launch_delay_min"`
	LaunchDelayMax Duration `yaml:"launch_delay_max"`

	// RoundMin/Max — кулдаун после успешного прогона.
	RoundMin Duration `yaml:"round_min"`
	RoundMax Duration `yaml:"round_max"`

	// BackoffMin/Max — кулдаун после неудачного прогона.
	// BackoffMax должен быть меньше RoundMin.
	BackoffMin Duration `yaml:"backoff_min"`
	BackoffMax Duration `yaml:"backoff_max"`

	// MaxRuns — прогонов на аккаунт до вывода из ротации.
	// 0 — без ограничения.
	MaxRuns int `yaml:"max_runs"`

	// Window — cron-выражение начала окна активности.
	// Пустая строка — работать всегда.
	Window string `yaml:"window"`

	// WindowDuration — длительность окна активности.
	WindowDuration Duration `yaml:"window_duration"`
}

// ExecutorConfig — шаги прогона и адреса контрактов.
type ExecutorConfig struct {
	// Steps — последовательность шагов прогона:
	// claim, approve, swap_ab, swap_ba.
	Steps []string `yaml:"steps"`

	// StepDelayMin/Max — случайная пауза между шагами.
	StepDelayMin Duration `yaml:"step_delay_min"`
	StepDelayMax Duration `yaml:"step_delay_max"`

	// MinNativeWei — порог нативного баланса для пропуска claim.
	MinNativeWei string `yaml:"min_native_wei"`

	// MinTokenWei — минимальный баланс токена для свопа.
	MinTokenWei string `yaml:"min_token_wei"`

	// SwapPortionMin/Max — доля баланса на своп, проценты.
	SwapPortionMin int `yaml:"swap_portion_min"`
	SwapPortionMax int `yaml:"swap_portion_max"`

	Contracts ContractsConfig `yaml:"contracts"`
}

// ContractsConfig — адреса контрактов.
type ContractsConfig struct {
	TokenA string `yaml:"token_a"`
	TokenB string `yaml:"token_b"`
	Router string `yaml:"router"`
	Faucet string `yaml:"faucet"`
}

// FeesConfig — профили комиссий по шагам.
type FeesConfig struct {
	// Default — профиль для шагов без собственного.
	Default FeeProfileConfig `yaml:"default"`

	// Steps — профили по типам шагов.
	Steps map[string]FeeProfileConfig `yaml:"steps"`
}

// FeeProfileConfig — один профиль комиссий.
type FeeProfileConfig struct {
	GasLimitMin  uint64  `yaml:"gas_limit_min"`
	GasLimitMax  uint64  `yaml:"gas_limit_max"`
	MaxFeePerGas string  `yaml:"max_fee_per_gas"`
	PriorityFee  string  `yaml:"priority_fee"`
	RetryBudget  int     `yaml:"retry_budget"`
	Multiplier   float64 `yaml:"multiplier"`
}

// ReportConfig — журнал прогонов в PostgreSQL.
type ReportConfig struct {
	Enabled bool `yaml:"enabled"`

	// DSN базы. Переменная окружения DB_URL имеет приоритет.
	DSN string `yaml:"dsn"`
}

// EventsConfig — публикация событий в RabbitMQ.
type EventsConfig struct {
	Enabled bool `yaml:"enabled"`

	// URL брокера. Переменная окружения RABBITMQ_URL имеет приоритет.
	URL string `yaml:"url"`
}

// Load читает конфигурацию из YAML-файла, применяет переменные
// окружения и проверяет корректность.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if dsn := os.Getenv("DB_URL"); dsn != "" {
		cfg.Report.DSN = dsn
	}
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		cfg.Events.URL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет инварианты конфигурации.
func (c *Config) Validate() error {
	if len(c.Chain.Endpoints) == 0 {
		return errors.New("chain: at least one endpoint is required")
	}
	if c.Chain.ChainID == 0 {
		return errors.New("chain: chain_id is required")
	}
	if c.Accounts.File == "" {
		return errors.New("accounts: file is required")
	}
	if c.Schedule.Ceiling < 1 {
		return errors.New("schedule: ceiling must be at least 1")
	}
	if c.Schedule.RoundMin > c.Schedule.RoundMax {
		return errors.New("schedule: round_min must not exceed round_max")
	}
	if c.Schedule.BackoffMin > c.Schedule.BackoffMax {
		return errors.New("schedule: backoff_min must not exceed backoff_max")
	}
	if c.Schedule.RoundMin > 0 && c.Schedule.BackoffMax >= c.Schedule.RoundMin {
		return errors.New("schedule: backoff_max must be less than round_min")
	}
	if (c.Schedule.Window == "") != (c.Schedule.WindowDuration == 0) {
		return errors.New("schedule: window and window_duration must be set together")
	}
	if len(c.Executor.Steps) == 0 {
		return errors.New("executor: at least one step is required")
	}
	if c.Executor.SwapPortionMin > c.Executor.SwapPortionMax {
		return errors.New("executor: swap_portion_min must not exceed swap_portion_max")
	}
	if err := validateFeeProfile("fees.default", c.Fees.Default); err != nil {
		return err
	}
	for step, profile := range c.Fees.Steps {
		if err := validateFeeProfile("fees.steps."+step, profile); err != nil {
			return err
		}
	}
	if c.Report.Enabled && c.Report.DSN == "" {
		return errors.New("report: dsn is required when enabled")
	}
	return nil
}

func validateFeeProfile(name string, p FeeProfileConfig) error {
	if p.GasLimitMin > p.GasLimitMax {
		return fmt.Errorf("%s: gas_limit_min must not exceed gas_limit_max", name)
	}
	if p.Multiplier != 0 && p.Multiplier <= 1 {
		return fmt.Errorf("%s: multiplier must be greater than 1", name)
	}
	if _, err := parseWei(p.MaxFeePerGas); err != nil {
		return fmt.Errorf("%s: max_fee_per_gas: %w", name, err)
	}
	if _, err := parseWei(p.PriorityFee); err != nil {
		return fmt.Errorf("%s: priority_fee: %w", name, err)
	}
	return nil
}

// ParseWei разбирает десятичную строку в wei. Пустая строка — nil.
func ParseWei(s string) (*big.Int, error) {
	return parseWei(s)
}

func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei value %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative wei value %q", s)
	}
	return v, nil
}
