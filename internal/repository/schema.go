package repository

import "fmt"

const (
	TableSignals      = "signals"
	TableSignalAssets = "signal_assets"
	TableRuns         = "workflow_runs"
	TableSteps        = "workflow_steps"
)

// SchemaStatements returns the idempotent DDL for database db.
func SchemaStatements(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    category       LowCardinality(String),
    date           Date,
    time_slot      String,
    bias           LowCardinality(String),
    confidence     UInt8,
    importance     UInt8,
    notify         UInt8,
    summary        String,
    llm_status     LowCardinality(String),
    llm_provider   LowCardinality(String),
    prompt_version UInt16,
    payload        String,
    created_at     DateTime64(3, 'UTC'),
    version        UInt64
) ENGINE = ReplacingMergeTree(version)
ORDER BY (category, date, time_slot)`, db, TableSignals),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    category   LowCardinality(String),
    date       Date,
    time_slot  String,
    ticker     String,
    price      Float64,
    bias       LowCardinality(String),
    confluence String,
    reasoning  String,
    created_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (category, date, time_slot, ticker)`, db, TableSignalAssets),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    run_id      String,
    workflow    LowCardinality(String),
    category    LowCardinality(String),
    date        Date,
    time_slot   String,
    cron        String,
    status      LowCardinality(String),
    error       String,
    started_at  DateTime64(3, 'UTC'),
    duration_ms UInt64,
    recorded_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (category, started_at, run_id)
TTL toDateTime(started_at) + INTERVAL 90 DAY`, db, TableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    run_id      String,
    step_id     LowCardinality(String),
    skill       LowCardinality(String),
    status      LowCardinality(String),
    error       String,
    started_at  DateTime64(3, 'UTC'),
    duration_ms UInt64,
    recorded_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (run_id, started_at, step_id)
TTL toDateTime(started_at) + INTERVAL 90 DAY`, db, TableSteps),
	}
}
