package executor

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/shaiso/Harvester/internal/chain"
	"github.com/shaiso/Harvester/internal/domain"
	"github.com/shaiso/Harvester/internal/fees"
)

// Contracts — адреса контрактов, с которыми работают шаги.
type Contracts struct {
	// TokenA / TokenB — торгуемая пара ERC-20 токенов.
	TokenA string
	TokenB string

	// Router — контракт обмена (spender для allowance).
	Router string

	// Faucet — контракт раздачи (шаг claim).
	Faucet string
}

// Deps — общие зависимости step executor'ов.
type Deps struct {
	Client        *chain.Client
	Caller        *chain.Caller
	ReceiptCaller *chain.Caller
	Fees          *fees.Escalator
	Contracts     Contracts

	// ReceiptPoll — интервал опроса квитанции транзакции.
	ReceiptPoll time.Duration

	// MinNativeWei — минимальный баланс нативной монеты для шагов,
	// тратящих только gas.
	MinNativeWei uint64

	// MinTokenWei — минимальный баланс продаваемого токена для swap.
	MinTokenWei uint64

	// SwapPortionMin / SwapPortionMax — какая доля баланса (в процентах)
	// уходит в обмен; конкретное значение случайно на каждый swap.
	SwapPortionMin int
	SwapPortionMax int
}

// submitTx отправляет транзакцию с эскалацией комиссии и дожидается
// квитанции. Underpriced-отказ узла проходит сквозь Caller (это не
// транспортная ошибка) и обрабатывается Escalator'ом; транспортные
// сбои обрабатывает сам Caller через failover.
func (d *Deps) submitTx(ctx context.Context, run *Run, kind domain.StepKind, to string, data string, value *big.Int) error {
	return d.Fees.Submit(ctx, kind, func(ctx context.Context, params fees.Params) error {
		var txHash string
		err := d.Caller.Do(ctx, func(ctx context.Context, ep *chain.Endpoint) error {
			tx := &chain.TxRequest{
				From:                 run.Account.Address,
				To:                   to,
				Data:                 data,
				Gas:                  chain.HexUint(params.GasLimit),
				MaxFeePerGas:         chain.HexUint(params.MaxFeePerGas),
				MaxPriorityFeePerGas: chain.HexUint(params.PriorityFee),
			}
			if value != nil && value.Sign() > 0 {
				tx.Value = chain.HexBig(value)
			}

			hash, err := d.Client.SendTransaction(ctx, ep.URL, tx)
			if err != nil {
				return err
			}
			txHash = hash
			return nil
		})
		if err != nil {
			return err
		}

		run.Logger.Debug("transaction sent", "step", kind, "tx_hash", txHash)

		var receipt *chain.Receipt
		err = d.ReceiptCaller.Do(ctx, func(ctx context.Context, ep *chain.Endpoint) error {
			r, err := d.Client.WaitForReceipt(ctx, ep.URL, txHash, d.ReceiptPoll)
			if err != nil {
				return err
			}
			receipt = r
			return nil
		})
		if err != nil {
			return fmt.Errorf("wait receipt %s: %w", txHash, err)
		}
		if !receipt.Succeeded() {
			return fmt.Errorf("%w: tx %s", chain.ErrTxReverted, txHash)
		}

		run.Logger.Info("transaction confirmed",
			"step", kind,
			"tx_hash", txHash,
			"block", receipt.BlockNumber,
		)
		return nil
	})
}

// nativeBalance читает баланс нативной монеты через pool.
func (d *Deps) nativeBalance(ctx context.Context, address string) (*big.Int, error) {
	var balance *big.Int
	err := d.Caller.Do(ctx, func(ctx context.Context, ep *chain.Endpoint) error {
		b, err := d.Client.Balance(ctx, ep.URL, address)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	return balance, err
}

// tokenBalance читает баланс ERC-20 токена через pool.
func (d *Deps) tokenBalance(ctx context.Context, token string, owner string) (*big.Int, error) {
	var balance *big.Int
	err := d.Caller.Do(ctx, func(ctx context.Context, ep *chain.Endpoint) error {
		b, err := d.Client.TokenBalance(ctx, ep.URL, token, owner)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	return balance, err
}

// --- ClaimStep ---

// ClaimStep — шаг claim: получение токенов из faucet контракта.
type ClaimStep struct {
	deps *Deps
}

// Kind возвращает тип шага.
func (s *ClaimStep) Kind() domain.StepKind {
	return domain.StepClaim
}

// Precondition: на claim тратится только gas — проверяем баланс
// нативной монеты.
func (s *ClaimStep) Precondition(ctx context.Context, run *Run) (bool, string, error) {
	balance, err := s.deps.nativeBalance(ctx, run.Account.Address)
	if err != nil {
		return false, "", err
	}
	if balance.Cmp(new(big.Int).SetUint64(s.deps.MinNativeWei)) < 0 {
		return true, "native balance below minimum", nil
	}
	return false, "", nil
}

// Execute вызывает claim() на faucet контракте.
func (s *ClaimStep) Execute(ctx context.Context, run *Run) error {
	data := chain.EncodeCall(chain.SelectorClaim)
	return s.deps.submitTx(ctx, run, domain.StepClaim, s.deps.Contracts.Faucet, data, nil)
}

// --- ApproveStep ---

// ApproveStep — шаг approve: выдача роутеру allowance на трату токена.
//
// Используется и как явный шаг цепочки (approve TokenA для Router),
// и лениво — executor вызывает ApproveFor перед swap'ом, если
// allowance ещё не выдан.
type ApproveStep struct {
	deps *Deps
}

// Kind возвращает тип шага.
func (s *ApproveStep) Kind() domain.StepKind {
	return domain.StepApprove
}

// Execute выдаёт allowance роутеру на TokenA.
func (s *ApproveStep) Execute(ctx context.Context, run *Run) error {
	return s.ApproveFor(ctx, run, s.deps.Contracts.TokenA, s.deps.Contracts.Router)
}

// ApproveFor выдаёт spender'у неограниченный allowance на token.
func (s *ApproveStep) ApproveFor(ctx context.Context, run *Run, token string, spender string) error {
	data := chain.EncodeCall(chain.SelectorApprove,
		chain.EncodeAddress(spender),
		chain.EncodeUint(chain.MaxUint256),
	)
	return s.deps.submitTx(ctx, run, domain.StepApprove, token, data, nil)
}

// --- SwapStep ---

// SwapStep — шаг обмена: продаёт случайную долю баланса токена in
// за токен out через Router.
type SwapStep struct {
	deps *Deps
	kind domain.StepKind
	in   string
	out  string
}

// Kind возвращает тип шага.
func (s *SwapStep) Kind() domain.StepKind {
	return s.kind
}

// Precondition: swap тратит токен in — проверяем его баланс.
func (s *SwapStep) Precondition(ctx context.Context, run *Run) (bool, string, error) {
	balance, err := s.deps.tokenBalance(ctx, s.in, run.Account.Address)
	if err != nil {
		return false, "", err
	}
	if balance.Cmp(new(big.Int).SetUint64(s.deps.MinTokenWei)) < 0 {
		return true, "token balance below minimum", nil
	}
	return false, "", nil
}

// SpendsToken сообщает executor'у, что шаг тратит токен in через Router.
func (s *SwapStep) SpendsToken() (string, string) {
	return s.in, s.deps.Contracts.Router
}

// Execute выполняет swap(in, out, amount) на Router.
func (s *SwapStep) Execute(ctx context.Context, run *Run) error {
	balance, err := s.deps.tokenBalance(ctx, s.in, run.Account.Address)
	if err != nil {
		return err
	}

	amount := s.portionOf(balance)
	if amount.Sign() <= 0 {
		return fmt.Errorf("swap amount is zero (balance %s)", balance)
	}

	data := chain.EncodeCall(chain.SelectorSwap,
		chain.EncodeAddress(s.in),
		chain.EncodeAddress(s.out),
		chain.EncodeUint(amount),
	)
	return s.deps.submitTx(ctx, run, s.kind, s.deps.Contracts.Router, data, nil)
}

// portionOf возвращает случайную долю баланса в настроенном диапазоне.
func (s *SwapStep) portionOf(balance *big.Int) *big.Int {
	min, max := s.deps.SwapPortionMin, s.deps.SwapPortionMax
	if min <= 0 {
		min = 1
	}
	if max < min {
		max = min
	}
	percent := min + rand.Intn(max-min+1)

	amount := new(big.Int).Mul(balance, big.NewInt(int64(percent)))
	return amount.Div(amount, big.NewInt(100))
}
