// Package report ведёт журнал завершённых прогонов в PostgreSQL.
//
// RunLog реализует scheduler.Reporter: по одной строке на прогон,
// с результатом, количеством выполненных и пропущенных шагов и
// временными метками. Структура таблицы:
//
//	CREATE TABLE runs (
//	    id            UUID PRIMARY KEY,
//	    address       TEXT NOT NULL,
//	    success       BOOLEAN NOT NULL,
//	    error         TEXT NOT NULL DEFAULT '',
//	    steps_done    INT NOT NULL,
//	    steps_skipped INT NOT NULL,
//	    started_at    TIMESTAMPTZ NOT NULL,
//	    finished_at   TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX runs_address_idx ON runs (address, finished_at DESC);
package report
