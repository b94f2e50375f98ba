package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"SignalPulse/internal/domain/models"
	domrepo "SignalPulse/internal/domain/repository"
	pkgch "SignalPulse/pkg/clickhouse"
	applogger "SignalPulse/pkg/logger"
	"SignalPulse/pkg/util"
)

const aggregateTable = "aggregate_metrics"

var aggregateColumns = []string{
	"date", "scope_kind", "scope_value",
	"total_signals", "winning_signals", "losing_signals",
	"win_rate", "avg_return", "total_return",
	"sharpe_ratio", "sortino_ratio", "max_drawdown", "profit_factor",
	"avg_holding_hours", "best_trade", "worst_trade",
	"avg_alpha", "avg_benchmark", "version",
}

// AggregateSchema is the DDL for the aggregate table. ReplacingMergeTree keeps
// the highest version per (date, scope), so a recompute overwrites the row.
var AggregateSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + aggregateTable + ` (
        date              Date,
        scope_kind        LowCardinality(String),
        scope_value       LowCardinality(String),
        total_signals     UInt32,
        winning_signals   UInt32,
        losing_signals    UInt32,
        win_rate          Float64,
        avg_return        Float64,
        total_return      Float64,
        sharpe_ratio      Float64,
        sortino_ratio     Float64,
        max_drawdown      Float64,
        profit_factor     Float64,
        avg_holding_hours Float64,
        best_trade        Float64,
        worst_trade       Float64,
        avg_alpha         Float64,
        avg_benchmark     Float64,
        version           UInt64
    ) ENGINE = ReplacingMergeTree(version)
    ORDER BY (date, scope_kind, scope_value)`,
}

// CHAggregateStore implements AggregateStore backed by ClickHouse.
type CHAggregateStore struct {
	db  *sql.DB
	l   *applogger.Logger
	now func() time.Time
}

var _ domrepo.AggregateStore = (*CHAggregateStore)(nil)

func NewCHAggregateStore(ch *pkgch.Client, l *applogger.Logger) *CHAggregateStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHAggregateStore{db: ch.DB(), l: l, now: time.Now}
}

func (s *CHAggregateStore) Upsert(ctx context.Context, recs []models.AggregateMetricsRecord) error {
	if len(recs) == 0 {
		return nil
	}
	start := time.Now()
	version := uint64(s.now().UnixNano())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin aggregate batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertAggregateSQL())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare aggregate insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, aggregateArgs(r, version)...); err != nil {
			_ = tx.Rollback()
			s.l.Error("clickhouse aggregate insert error",
				applogger.String("scope", r.Scope.String()),
				applogger.Error(err),
			)
			return fmt.Errorf("insert aggregate %s: %w", r.Scope, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit aggregate batch: %w", err)
	}

	s.l.Debug("clickhouse aggregates upserted",
		applogger.Int("rows", len(recs)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHAggregateStore) Get(ctx context.Context, date time.Time, scope models.Scope) (*models.AggregateMetricsRecord, error) {
	q := `SELECT ` + strings.Join(aggregateColumns[:len(aggregateColumns)-1], ", ") + `
        FROM ` + aggregateTable + ` FINAL
        WHERE date = ? AND scope_kind = ? AND scope_value = ?
        LIMIT 1`

	row := s.db.QueryRowContext(ctx, q, util.Day(date), string(scope.Kind), scope.Value)
	var (
		rec              models.AggregateMetricsRecord
		kind             string
		total, win, lose uint32
	)
	err := row.Scan(
		&rec.Date, &kind, &rec.Scope.Value,
		&total, &win, &lose,
		&rec.WinRate, &rec.AvgReturn, &rec.TotalReturn,
		&rec.Sharpe, &rec.Sortino, &rec.MaxDrawdown, &rec.ProfitFactor,
		&rec.AvgHoldingHours, &rec.BestTrade, &rec.WorstTrade,
		&rec.AvgAlpha, &rec.AvgBenchmark,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate %s: %w", scope, err)
	}
	rec.Date = util.Day(rec.Date)
	rec.Scope.Kind = models.ScopeKind(kind)
	rec.TotalSignals, rec.WinningSignals, rec.LosingSignals = int(total), int(win), int(lose)
	return &rec, nil
}

func (s *CHAggregateStore) Close() error {
	return nil
}

func insertAggregateSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s)", aggregateTable, strings.Join(aggregateColumns, ", "))
}

func aggregateArgs(r models.AggregateMetricsRecord, version uint64) []interface{} {
	return []interface{}{
		util.Day(r.Date), string(r.Scope.Kind), r.Scope.Value,
		uint32(r.TotalSignals), uint32(r.WinningSignals), uint32(r.LosingSignals),
		r.WinRate, r.AvgReturn, r.TotalReturn,
		r.Sharpe, r.Sortino, r.MaxDrawdown, r.ProfitFactor,
		r.AvgHoldingHours, r.BestTrade, r.WorstTrade,
		r.AvgAlpha, r.AvgBenchmark, version,
	}
}
