package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrRunNotFound indicates no optimization run exists for the id.
	ErrRunNotFound = errors.New("storage: optimization run not found")
)

const (
	listConsumptionBetweenSQL = `SELECT
        household_id,
        ts,
        consumption_kwh,
        COALESCE(country, ''),
        created_at
    FROM consumption_records
    WHERE ts >= $1
      AND ts < $2
      AND ($3 = '' OR country = $3)
    ORDER BY ts, household_id;`

	consumptionWindowSQL = `SELECT
        COALESCE(MIN(ts), 'epoch'::timestamptz),
        COALESCE(MAX(ts), 'epoch'::timestamptz),
        COUNT(*)
    FROM consumption_records
    WHERE ($1 = '' OR country = $1);`

	deleteConsumptionBetweenSQL = `DELETE FROM consumption_records
    WHERE ts >= $1 AND ts < $2 AND ($3 = '' OR country = $3);`

	insertRunSQL = `INSERT INTO optimization_runs (
        id,
        source,
        mode,
        country,
        window_from,
        window_to,
        fairness_weight,
        profit_weight,
        cost_recovery_target,
        min_price,
        max_price,
        solver_status,
        solver_runtime_seconds,
        objective_value,
        total_revenue,
        cost_recovery_pct,
        avg_price_per_kwh,
        price_std,
        price_min,
        price_max,
        gini_coefficient,
        coefficient_of_variation,
        curve
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23
    );`

	getRunSQL = `SELECT
        id, source, mode, country, window_from, window_to,
        fairness_weight, profit_weight, cost_recovery_target, min_price, max_price,
        solver_status, solver_runtime_seconds, objective_value,
        total_revenue, cost_recovery_pct, avg_price_per_kwh, price_std, price_min, price_max,
        gini_coefficient, coefficient_of_variation, curve, created_at
    FROM optimization_runs
    WHERE id = $1;`

	listRecentRunsSQL = `SELECT
        id, source, mode, country, window_from, window_to,
        fairness_weight, profit_weight, cost_recovery_target, min_price, max_price,
        solver_status, solver_runtime_seconds, objective_value,
        total_revenue, cost_recovery_pct, avg_price_per_kwh, price_std, price_min, price_max,
        gini_coefficient, coefficient_of_variation, curve, created_at
    FROM optimization_runs
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ConsumptionStore defines operations for consumption persistence.
type ConsumptionStore interface {
	InsertConsumption(ctx context.Context, rows []ConsumptionRow) (int64, error)
	ListConsumptionBetween(ctx context.Context, from, to time.Time, country string) ([]ConsumptionRow, error)
	ConsumptionWindow(ctx context.Context, country string) (from, to time.Time, count int64, err error)
	DeleteConsumptionBetween(ctx context.Context, from, to time.Time, country string) error
}

// RunStore defines operations for optimization run persistence.
type RunStore interface {
	InsertRun(ctx context.Context, run OptimizationRun) error
	GetRun(ctx context.Context, id uuid.UUID) (OptimizationRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]OptimizationRun, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to consumption records and optimization runs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// InsertConsumption bulk-inserts consumption rows via COPY.
func (s *Store) InsertConsumption(ctx context.Context, rows []ConsumptionRow) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		row := rows[i]
		return []any{row.HouseholdID, row.Timestamp, row.ConsumptionKWh, row.Country}, nil
	})

	count, copyErr := pool.CopyFrom(ctx,
		pgx.Identifier{"consumption_records"},
		[]string{"household_id", "ts", "consumption_kwh", "country"},
		source,
	)
	if copyErr != nil {
		return 0, fmt.Errorf("copy consumption records: %w", copyErr)
	}
	return count, nil
}

// ListConsumptionBetween lists consumption rows within a time window,
// optionally filtered by country.
func (s *Store) ListConsumptionBetween(ctx context.Context, from, to time.Time, country string) ([]ConsumptionRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listConsumptionBetweenSQL, from, to, country)
	if queryErr != nil {
		return nil, fmt.Errorf("list consumption between: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ConsumptionRow, 0)
	for rows.Next() {
		var row ConsumptionRow
		if err := rows.Scan(&row.HouseholdID, &row.Timestamp, &row.ConsumptionKWh, &row.Country, &row.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// ConsumptionWindow reports the stored time range and row count.
func (s *Store) ConsumptionWindow(ctx context.Context, country string) (time.Time, time.Time, int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, time.Time{}, 0, err
	}

	var from, to time.Time
	var count int64
	if scanErr := pool.QueryRow(ctx, consumptionWindowSQL, country).Scan(&from, &to, &count); scanErr != nil {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("consumption window: %w", scanErr)
	}
	return from, to, count, nil
}

// DeleteConsumptionBetween removes consumption rows in a window, used before
// re-ingesting the same period.
func (s *Store) DeleteConsumptionBetween(ctx context.Context, from, to time.Time, country string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteConsumptionBetweenSQL, from, to, country); execErr != nil {
		return fmt.Errorf("delete consumption between: %w", execErr)
	}
	return nil
}

// InsertRun persists a completed optimization run.
func (s *Store) InsertRun(ctx context.Context, run OptimizationRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertRunSQL,
		run.ID,
		run.Source,
		run.Mode,
		run.Country,
		run.WindowFrom,
		run.WindowTo,
		run.FairnessWeight,
		run.ProfitWeight,
		run.CostRecoveryTarget.String(),
		run.MinPrice,
		run.MaxPrice,
		run.SolverStatus,
		run.SolverRuntime.Seconds(),
		run.ObjectiveValue,
		run.TotalRevenue.String(),
		run.CostRecoveryPct.String(),
		run.AvgPricePerKWh,
		run.PriceStd,
		run.PriceMin,
		run.PriceMax,
		run.GiniCoefficient,
		run.CoefficientOfVariation,
		[]byte(run.Curve),
	)
	if execErr != nil {
		return fmt.Errorf("insert optimization run: %w", execErr)
	}
	return nil
}

// GetRun loads a single optimization run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (OptimizationRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return OptimizationRun{}, err
	}

	run, scanErr := scanRun(pool.QueryRow(ctx, getRunSQL, id))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return OptimizationRun{}, ErrRunNotFound
		}
		return OptimizationRun{}, scanErr
	}
	return run, nil
}

// ListRecentRuns lists the most recent optimization runs.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]OptimizationRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]OptimizationRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func scanRun(row pgx.Row) (OptimizationRun, error) {
	var (
		run            OptimizationRun
		targetStr      string
		revenueStr     string
		recoveryStr    string
		runtimeSeconds float64
		curve          []byte
	)

	if err := row.Scan(
		&run.ID,
		&run.Source,
		&run.Mode,
		&run.Country,
		&run.WindowFrom,
		&run.WindowTo,
		&run.FairnessWeight,
		&run.ProfitWeight,
		&targetStr,
		&run.MinPrice,
		&run.MaxPrice,
		&run.SolverStatus,
		&runtimeSeconds,
		&run.ObjectiveValue,
		&revenueStr,
		&recoveryStr,
		&run.AvgPricePerKWh,
		&run.PriceStd,
		&run.PriceMin,
		&run.PriceMax,
		&run.GiniCoefficient,
		&run.CoefficientOfVariation,
		&curve,
		&run.CreatedAt,
	); err != nil {
		return OptimizationRun{}, err
	}

	var convErr error
	run.CostRecoveryTarget, convErr = decimal.NewFromString(targetStr)
	if convErr != nil {
		return OptimizationRun{}, fmt.Errorf("parse cost recovery target: %w", convErr)
	}
	run.TotalRevenue, convErr = decimal.NewFromString(revenueStr)
	if convErr != nil {
		return OptimizationRun{}, fmt.Errorf("parse total revenue: %w", convErr)
	}
	run.CostRecoveryPct, convErr = decimal.NewFromString(recoveryStr)
	if convErr != nil {
		return OptimizationRun{}, fmt.Errorf("parse cost recovery pct: %w", convErr)
	}

	run.SolverRuntime = time.Duration(runtimeSeconds * float64(time.Second))
	run.Curve = curve
	return run, nil
}
