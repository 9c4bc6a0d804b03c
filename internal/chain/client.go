package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// Client — минимальный JSON-RPC клиент для EVM-совместимых узлов.
//
// Client не привязан к конкретному endpoint'у: URL передаётся в каждый
// вызов. Выбором endpoint'а и failover'ом занимаются Pool и Caller.
type Client struct {
	httpClient *http.Client
}

// NewClient создаёт новый Client.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call выполняет один JSON-RPC вызов к узлу по указанному URL.
//
// Транспортные сбои (ошибка HTTP-запроса, статус >= 400) оборачиваются
// в ErrTransport. Ошибка из JSON-RPC ответа возвращается как *RPCError.
func (c *Client) Call(ctx context.Context, url string, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: http status %d", ErrTransport, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrTransport, err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// ChainID возвращает идентификатор сети узла (eth_chainId).
func (c *Client) ChainID(ctx context.Context, url string) (uint64, error) {
	result, err := c.Call(ctx, url, "eth_chainId", nil)
	if err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

// Balance возвращает баланс нативной монеты в wei (eth_getBalance).
func (c *Client) Balance(ctx context.Context, url string, address string) (*big.Int, error) {
	result, err := c.Call(ctx, url, "eth_getBalance", []any{address, "latest"})
	if err != nil {
		return nil, err
	}
	return parseHexBig(result)
}

// TokenBalance возвращает баланс ERC-20 токена (eth_call balanceOf).
func (c *Client) TokenBalance(ctx context.Context, url string, token string, owner string) (*big.Int, error) {
	data := EncodeCall(SelectorBalanceOf, EncodeAddress(owner))
	return c.callUint(ctx, url, token, data)
}

// Allowance возвращает текущий allowance владельца для spender'а
// (eth_call allowance).
func (c *Client) Allowance(ctx context.Context, url string, token string, owner string, spender string) (*big.Int, error) {
	data := EncodeCall(SelectorAllowance, EncodeAddress(owner), EncodeAddress(spender))
	return c.callUint(ctx, url, token, data)
}

// SendTransaction отправляет транзакцию (eth_sendTransaction)
// и возвращает её hash.
func (c *Client) SendTransaction(ctx context.Context, url string, tx *TxRequest) (string, error) {
	result, err := c.Call(ctx, url, "eth_sendTransaction", []any{tx})
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("unmarshal tx hash: %w", err)
	}
	return hash, nil
}

// Receipt — квитанция исполненной транзакции.
type Receipt struct {
	TxHash      string `json:"transactionHash"`
	BlockNumber string `json:"blockNumber"`
	GasUsed     string `json:"gasUsed"`
	Status      string `json:"status"` // "0x1" — успех, "0x0" — revert
}

// Succeeded возвращает true, если транзакция исполнилась без revert'а.
func (r *Receipt) Succeeded() bool {
	return r.Status == "0x1"
}

// WaitForReceipt опрашивает узел, пока квитанция транзакции не появится
// или не истечёт контекст. Отсутствие квитанции — временная ситуация
// (транзакция ещё не в блоке), опрос продолжается.
func (c *Client) WaitForReceipt(ctx context.Context, url string, txHash string, pollInterval time.Duration) (*Receipt, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			result, err := c.Call(ctx, url, "eth_getTransactionReceipt", []any{txHash})
			if err != nil {
				return nil, err
			}
			if string(result) == "null" || len(result) == 0 {
				continue
			}
			var receipt Receipt
			if err := json.Unmarshal(result, &receipt); err != nil {
				return nil, fmt.Errorf("unmarshal receipt: %w", err)
			}
			return &receipt, nil
		}
	}
}

// TxRequest — транзакция в формате eth_sendTransaction.
// Подписью занимается узел (аккаунты разблокированы на стороне RPC).
type TxRequest struct {
	From                 string `json:"from"`
	To                   string `json:"to"`
	Value                string `json:"value,omitempty"`
	Data                 string `json:"data,omitempty"`
	Gas                  string `json:"gas,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
}

// callUint выполняет eth_call и парсит результат как uint256.
func (c *Client) callUint(ctx context.Context, url string, to string, data string) (*big.Int, error) {
	result, err := c.Call(ctx, url, "eth_call", []any{
		map[string]string{"to": to, "data": data},
		"latest",
	})
	if err != nil {
		return nil, err
	}
	return parseHexBig(result)
}

func parseHexUint(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unmarshal hex: %w", err)
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("parse hex %q", s)
	}
	return v.Uint64(), nil
}

func parseHexBig(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unmarshal hex: %w", err)
	}
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("parse hex %q", s)
	}
	return v, nil
}
