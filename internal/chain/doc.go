// Package chain реализует сетевой слой: JSON-RPC клиент, pool
// endpoint'ов с failover и устойчивую обёртку вызовов.
//
// Структура:
//   - client.go — JSON-RPC клиент (chain id, балансы, allowance, транзакции)
//   - pool.go   — Pool endpoint'ов: health probe, счётчики сбоев, failover
//   - call.go   — Caller: таймаут + повторы + failover вокруг любого вызова
//   - abi.go    — кодирование calldata для стандартных методов
//   - errors.go — классификация ошибок (транспортные / RPC)
//
// Использование:
//
//	client := chain.NewClient(cfg.RequestTimeout)
//	pool, err := chain.NewPool(ctx, chain.PoolConfig{
//	    URLs:    cfg.Endpoints,
//	    ChainID: cfg.ChainID,
//	    Client:  client,
//	    Logger:  logger,
//	})
//	caller := chain.NewCaller(pool, chain.CallOptions{...}, logger)
//
//	err = caller.Do(ctx, func(ctx context.Context, ep *chain.Endpoint) error {
//	    _, err := client.Balance(ctx, ep.URL, address)
//	    return err
//	})
package chain
