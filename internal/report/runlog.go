package report

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Harvester/internal/domain"
)

// RunLog — журнал завершённых прогонов в PostgreSQL.
//
// Одна строка на прогон. Журнал вспомогательный: шедулер логирует
// ошибку записи и продолжает работу, прогоны от базы не зависят.
type RunLog struct {
	pool *pgxpool.Pool
}

// NewRunLog создаёт новый RunLog.
func NewRunLog(pool *pgxpool.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// RecordRun записывает результат завершённого прогона.
func (r *RunLog) RecordRun(ctx context.Context, account *domain.Account, outcome *domain.Outcome) error {
	query := `
		INSERT INTO runs (id, address, success, error, steps_done, steps_skipped, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		outcome.RunID,
		account.Address,
		outcome.Success,
		outcome.ErrorText(),
		outcome.StepsDone,
		outcome.StepsSkipped,
		outcome.StartedAt,
		outcome.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LastRuns возвращает последние n прогонов аккаунта, новые первыми.
func (r *RunLog) LastRuns(ctx context.Context, address string, n int) ([]*domain.Outcome, error) {
	query := `
		SELECT id, success, error, steps_done, steps_skipped, started_at, finished_at
		FROM runs
		WHERE address = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, address, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var outcomes []*domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var errText string
		if err := rows.Scan(&o.RunID, &o.Success, &errText, &o.StepsDone, &o.StepsSkipped, &o.StartedAt, &o.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if errText != "" {
			o.Err = fmt.Errorf("%s", errText)
		}
		outcomes = append(outcomes, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return outcomes, nil
}
