package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tariff-optimizer/internal/alerting"
	"tariff-optimizer/internal/config"
	"tariff-optimizer/internal/optimizer"
	"tariff-optimizer/internal/pricing"
	"tariff-optimizer/internal/scheduler"
	"tariff-optimizer/internal/storage"
)

// Result bundles everything one repricing cycle produced.
type Result struct {
	Run     storage.OptimizationRun
	Outcome optimizer.Outcome
	Costs   []pricing.HouseholdCost
	Metrics pricing.FairnessMetrics
}

// Service orchestrates the repricing cycle: load a consumption window,
// optimize a tariff, score it, persist the run, and alert on failures or
// equity breaches.
type Service struct {
	scheduler   *scheduler.Scheduler
	consumption storage.ConsumptionStore
	runs        storage.RunStore
	notifier    alerting.Notifier
	engine      *optimizer.Optimizer
	logger      zerolog.Logger

	country       string
	windowDays    int
	optimizerCfg  config.OptimizerConfig
	giniThreshold float64
	channels      []string
	alertsOn      bool
	locker        storage.AdvisoryLocker
	lockKey       int64
}

// New constructs the repricing service.
func New(cfg *config.Config, sched *scheduler.Scheduler, consumption storage.ConsumptionStore, runs storage.RunStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := consumption.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:     sched,
		consumption:   consumption,
		runs:          runs,
		notifier:      notifier,
		engine:        optimizer.New(logger),
		logger:        logger.With().Str("component", "service").Logger(),
		country:       cfg.Entsoe.Country,
		windowDays:    cfg.Scheduler.WindowDays,
		optimizerCfg:  cfg.Optimizer,
		giniThreshold: cfg.Alerting.GiniThreshold,
		channels:      cfg.Alerting.Channels,
		alertsOn:      cfg.Alerting.Enabled,
		locker:        locker,
		lockKey:       cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned repricing loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket executes one repricing cycle for a bucket.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	from := bucket.Add(-time.Duration(s.windowDays) * 24 * time.Hour)
	_, err = s.RepriceWindow(ctx, from, bucket, 0)
	if err != nil {
		s.alertFailure(ctx, bucket, err)
	}
	return err
}

// RepriceWindow optimizes a tariff over [from, to). A non-positive target is
// derived from the configured target price and the window's total
// consumption.
func (s *Service) RepriceWindow(ctx context.Context, from, to time.Time, target float64) (Result, error) {
	if s.consumption == nil {
		return Result{}, fmt.Errorf("consumption store not configured")
	}

	rows, err := s.consumption.ListConsumptionBetween(ctx, from, to, s.country)
	if err != nil {
		return Result{}, fmt.Errorf("load consumption window: %w", err)
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("no consumption data between %s and %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	records := RowsToRecords(rows)
	if target <= 0 {
		target = s.optimizerCfg.TargetPricePerKWh * pricing.TotalConsumption(records)
	}

	opts := optimizer.Options{
		CostRecoveryTarget: target,
		FairnessWeight:     s.optimizerCfg.FairnessWeight,
		ProfitWeight:       s.optimizerCfg.ProfitWeight,
		MinPrice:           s.optimizerCfg.MinPrice,
		MaxPrice:           s.optimizerCfg.MaxPrice,
		SolveTimeout:       s.optimizerCfg.SolverTimeout,
		Mode:               optimizer.Mode(s.optimizerCfg.Mode),
		MinCostRecoveryPct: s.optimizerCfg.MinCostRecoveryPct,
		MaxCostRecoveryPct: s.optimizerCfg.MaxCostRecoveryPct,
	}

	outcome, err := s.engine.Optimize(ctx, records, opts)
	if err != nil {
		return Result{}, err
	}

	costs, metrics := pricing.Score(records, outcome.Curve)

	run, err := BuildRun("optimizer", s.country, from, to, target, opts, outcome, metrics)
	if err != nil {
		return Result{}, err
	}

	if s.runs != nil {
		if err := s.runs.InsertRun(ctx, run); err != nil {
			s.logger.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to persist optimization run")
		}
	}

	s.logger.Info().
		Str("run_id", run.ID.String()).
		Str("status", outcome.Status).
		Float64("gini", metrics.GiniCoefficient).
		Str("revenue", run.TotalRevenue.StringFixed(2)).
		Msg("repricing completed")

	result := Result{Run: run, Outcome: outcome, Costs: costs, Metrics: metrics}
	s.alertEquity(ctx, result)
	return result, nil
}

func (s *Service) alertEquity(ctx context.Context, result Result) {
	if !s.alertsOn || s.notifier == nil || s.giniThreshold <= 0 {
		return
	}
	if result.Metrics.GiniCoefficient <= s.giniThreshold {
		return
	}

	note := alerting.Notification{
		RunID:         result.Run.ID,
		Bucket:        result.Run.WindowTo,
		Mode:          result.Run.Mode,
		SolverStatus:  result.Run.SolverStatus,
		Gini:          result.Metrics.GiniCoefficient,
		GiniThreshold: s.giniThreshold,
		TotalRevenue:  result.Run.TotalRevenue,
		Target:        result.Run.CostRecoveryTarget,
		Channels:      s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("run_id", result.Run.ID.String()).Msg("failed to dispatch equity alert")
	}
}

func (s *Service) alertFailure(ctx context.Context, bucket time.Time, cause error) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	note := alerting.Notification{
		Bucket:        bucket,
		Mode:          s.optimizerCfg.Mode,
		Channels:      s.channels,
		FailureReason: cause.Error(),
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch failure alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// RowsToRecords converts persisted consumption rows into the core record type.
func RowsToRecords(rows []storage.ConsumptionRow) []pricing.ConsumptionRecord {
	records := make([]pricing.ConsumptionRecord, len(rows))
	for i, row := range rows {
		records[i] = pricing.ConsumptionRecord{
			HouseholdID:    row.HouseholdID,
			Timestamp:      row.Timestamp,
			ConsumptionKWh: row.ConsumptionKWh,
		}
	}
	return records
}

// BuildRun assembles a persistable optimization run from an outcome.
func BuildRun(source, country string, from, to time.Time, target float64, opts optimizer.Options, outcome optimizer.Outcome, metrics pricing.FairnessMetrics) (storage.OptimizationRun, error) {
	curve, err := MarshalCurve(outcome.Curve)
	if err != nil {
		return storage.OptimizationRun{}, err
	}

	recoveryPct := 0.0
	if target > 0 {
		recoveryPct = outcome.TotalRevenue / target * 100
	}

	return storage.OptimizationRun{
		ID:                     uuid.New(),
		Source:                 source,
		Mode:                   string(opts.Mode),
		Country:                country,
		WindowFrom:             from,
		WindowTo:               to,
		FairnessWeight:         outcome.FairnessWeight,
		ProfitWeight:           outcome.ProfitWeight,
		CostRecoveryTarget:     decimal.NewFromFloat(target),
		MinPrice:               opts.MinPrice,
		MaxPrice:               opts.MaxPrice,
		SolverStatus:           outcome.Status,
		SolverRuntime:          outcome.Runtime,
		ObjectiveValue:         outcome.ObjectiveValue,
		TotalRevenue:           decimal.NewFromFloat(outcome.TotalRevenue),
		CostRecoveryPct:        decimal.NewFromFloat(recoveryPct),
		AvgPricePerKWh:         outcome.MeanPrice,
		PriceStd:               outcome.PriceStd,
		PriceMin:               outcome.PriceMin,
		PriceMax:               outcome.PriceMax,
		GiniCoefficient:        metrics.GiniCoefficient,
		CoefficientOfVariation: metrics.CoefficientOfVariation,
		Curve:                  curve,
		CreatedAt:              time.Now().UTC(),
	}, nil
}

// MarshalCurve serialises a price curve into the stored JSON shape.
func MarshalCurve(curve pricing.PriceCurve) (json.RawMessage, error) {
	points := make([]storage.CurvePoint, len(curve))
	for i, point := range curve {
		points[i] = storage.CurvePoint{Timestamp: point.Timestamp, PricePerKWh: point.PricePerKWh}
	}
	raw, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("marshal price curve: %w", err)
	}
	return raw, nil
}

// UnmarshalCurve restores a price curve from its stored JSON shape.
func UnmarshalCurve(raw json.RawMessage) (pricing.PriceCurve, error) {
	var points []storage.CurvePoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("unmarshal price curve: %w", err)
	}
	curve := make(pricing.PriceCurve, len(points))
	for i, point := range points {
		curve[i] = pricing.PricePoint{Timestamp: point.Timestamp, PricePerKWh: point.PricePerKWh}
	}
	return curve, nil
}
