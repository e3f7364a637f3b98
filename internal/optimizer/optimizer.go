package optimizer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tariff-optimizer/internal/pricing"
)

// Mode selects the regulatory regime the tariff is priced under.
type Mode string

const (
	// ModeRegulated requires revenue to meet or exceed the minimum recovery
	// bound as a hard constraint.
	ModeRegulated Mode = "regulated"
	// ModeMarket lets revenue float inside a percentage band around the
	// target, with asymmetric penalties on shortfall and excess.
	ModeMarket Mode = "market"
)

// ParseMode maps user input onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRegulated:
		return ModeRegulated, nil
	case ModeMarket:
		return ModeMarket, nil
	default:
		return "", fmt.Errorf("unknown mode %q (available: regulated, market)", s)
	}
}

// Solver statuses surfaced on the outcome.
const (
	StatusOptimal   = "Optimal"
	StatusNotSolved = "NotSolved"
	StatusUndefined = "Undefined"
)

// Options parameterise one optimization invocation.
type Options struct {
	CostRecoveryTarget float64
	FairnessWeight     float64
	ProfitWeight       float64
	MinPrice           float64
	MaxPrice           float64
	SolveTimeout       time.Duration
	Mode               Mode
	// Revenue band as percentages of the target. MinCostRecoveryPct is a
	// hard floor in both modes; MaxCostRecoveryPct caps revenue in market
	// mode only.
	MinCostRecoveryPct float64
	MaxCostRecoveryPct float64
	// Relative optimality gap the solve is allowed to stop at.
	GapTolerance float64
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeRegulated
	}
	if o.SolveTimeout <= 0 {
		o.SolveTimeout = 30 * time.Second
	}
	if o.MinCostRecoveryPct == 0 {
		o.MinCostRecoveryPct = 100
	}
	if o.MaxCostRecoveryPct == 0 {
		o.MaxCostRecoveryPct = 110
	}
	if o.GapTolerance == 0 {
		o.GapTolerance = 0.01
	}
	return o
}

// Outcome is the terminal result of one optimization invocation.
type Outcome struct {
	Curve          pricing.PriceCurve
	Status         string
	Runtime        time.Duration
	ObjectiveValue float64
	TotalRevenue   float64
	MeanPrice      float64
	PriceStd       float64
	PriceMin       float64
	PriceMax       float64
	// Weights actually used, post-renormalization.
	FairnessWeight float64
	ProfitWeight   float64
	// Realised deviation from the revenue target.
	Shortfall float64
	Excess    float64
}

// Optimizer derives a price curve maximizing a weighted blend of revenue and
// fairness subject to cost-recovery constraints. Each invocation is
// self-contained; an Optimizer holds no state between calls.
type Optimizer struct {
	logger zerolog.Logger
}

// New constructs an Optimizer.
func New(logger zerolog.Logger) *Optimizer {
	return &Optimizer{logger: logger.With().Str("component", "optimizer").Logger()}
}

// Optimize builds and solves the pricing LP for the given consumption series.
// A timed-out solve returns a usable fallback curve with StatusNotSolved;
// infeasible and unbounded problems return ErrInfeasible and ErrUnbounded.
func (o *Optimizer) Optimize(ctx context.Context, records []pricing.ConsumptionRecord, opts Options) (Outcome, error) {
	opts = opts.withDefaults()

	opts, err := validate(records, opts)
	if err != nil {
		return Outcome{}, err
	}

	prob := buildProblem(records, opts)

	o.logger.Info().
		Int("periods", len(prob.timestamps)).
		Str("mode", string(opts.Mode)).
		Float64("fairness_weight", opts.FairnessWeight).
		Float64("profit_weight", opts.ProfitWeight).
		Str("objective", prob.plan.objective.String()).
		Msg("solving pricing problem")

	start := time.Now()
	result := solveWithTimeout(ctx, prob, opts.SolveTimeout)
	runtime := time.Since(start)

	switch {
	case result.err == nil && !result.timedOut:
		// solved to optimality
	case result.timedOut:
		o.logger.Warn().Dur("timeout", opts.SolveTimeout).
			Msg("solver hit time limit; using fallback prices")
	case isInfeasible(result.err):
		return Outcome{}, ErrInfeasible
	case isUnbounded(result.err):
		return Outcome{}, ErrUnbounded
	default:
		o.logger.Warn().Err(result.err).Msg("solver returned unexpected status; using fallback prices")
	}

	curve := prob.extractCurve(result.x)
	outcome := o.summarize(records, curve, prob, result, runtime)

	o.logger.Info().
		Str("status", outcome.Status).
		Float64("total_revenue", outcome.TotalRevenue).
		Float64("price_std", outcome.PriceStd).
		Dur("runtime", runtime).
		Msg("optimization completed")

	return outcome, nil
}

func validate(records []pricing.ConsumptionRecord, opts Options) (Options, error) {
	if opts.FairnessWeight < 0 || opts.FairnessWeight > 1 {
		return opts, &ConfigurationError{Reason: fmt.Sprintf("fairness_weight %.4f outside [0,1]", opts.FairnessWeight)}
	}
	if opts.ProfitWeight < 0 || opts.ProfitWeight > 1 {
		return opts, &ConfigurationError{Reason: fmt.Sprintf("profit_weight %.4f outside [0,1]", opts.ProfitWeight)}
	}
	if opts.MinPrice >= opts.MaxPrice {
		return opts, &ConfigurationError{Reason: fmt.Sprintf("min_price %.4f must be below max_price %.4f", opts.MinPrice, opts.MaxPrice)}
	}
	if opts.Mode == ModeMarket && opts.MinCostRecoveryPct > opts.MaxCostRecoveryPct {
		return opts, &ConfigurationError{Reason: "min_cost_recovery_pct exceeds max_cost_recovery_pct"}
	}

	if sum := opts.FairnessWeight + opts.ProfitWeight; sum > 1 {
		opts.FairnessWeight /= sum
		opts.ProfitWeight /= sum
	}

	if len(records) == 0 {
		return opts, &DegenerateInputError{Reason: "empty consumption series"}
	}
	if pricing.TotalConsumption(records) <= 0 {
		return opts, &DegenerateInputError{Reason: "total consumption is zero"}
	}
	return opts, nil
}

func (o *Optimizer) summarize(records []pricing.ConsumptionRecord, curve pricing.PriceCurve, prob *problem, result solveResult, runtime time.Duration) Outcome {
	prices := curve.Prices()
	mean := meanOf(prices)

	var revenue float64
	for i, c := range prob.consumption {
		revenue += c * prices[i]
	}

	outcome := Outcome{
		Curve:          curve,
		Status:         result.status,
		Runtime:        runtime,
		TotalRevenue:   revenue,
		MeanPrice:      mean,
		PriceStd:       populationStd(prices, mean),
		PriceMin:       minOf(prices),
		PriceMax:       maxOf(prices),
		FairnessWeight: prob.opts.FairnessWeight,
		ProfitWeight:   prob.opts.ProfitWeight,
		Shortfall:      math.Max(0, prob.opts.CostRecoveryTarget-revenue),
		Excess:         math.Max(0, revenue-prob.opts.CostRecoveryTarget),
	}
	outcome.ObjectiveValue = prob.objectiveValue(prices, revenue, outcome.Shortfall, outcome.Excess)
	return outcome
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStd(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
