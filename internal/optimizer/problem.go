package optimizer

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"tariff-optimizer/internal/pricing"
)

// objectiveCase enumerates the mutually exclusive objective regimes selected
// from the fairness/profit weights at build time.
type objectiveCase int

const (
	objectiveWeighted objectiveCase = iota
	objectivePureFairness
	objectivePureProfit
)

func (c objectiveCase) String() string {
	switch c {
	case objectivePureFairness:
		return "pure_fairness"
	case objectivePureProfit:
		return "pure_profit"
	default:
		return "weighted"
	}
}

// plan is the decision table for one invocation: mode × weight regime mapped
// onto an objective case, revenue band, and soft penalties. Built once, then
// consulted during problem assembly.
type plan struct {
	objective        objectiveCase
	minRevenue       float64
	maxRevenue       float64 // enforced only when capRevenue
	capRevenue       bool
	capTotalPrice    bool // anti-degeneracy row
	shortfallPenalty float64
	excessPenalty    float64
}

func buildPlan(opts Options) plan {
	p := plan{
		objective:  objectiveWeighted,
		minRevenue: opts.CostRecoveryTarget * opts.MinCostRecoveryPct / 100,
	}

	switch {
	case opts.FairnessWeight == 1 && opts.ProfitWeight == 0:
		p.objective = objectivePureFairness
	case opts.ProfitWeight == 1 && opts.FairnessWeight == 0:
		p.objective = objectivePureProfit
	}

	if opts.Mode == ModeMarket {
		p.capRevenue = true
		p.maxRevenue = opts.CostRecoveryTarget * opts.MaxCostRecoveryPct / 100

		switch p.objective {
		case objectivePureProfit:
			// Light fairness-free penalty discouraging large deviation
			// from the target.
			p.shortfallPenalty = 0.1
			p.excessPenalty = 0.01
		case objectiveWeighted:
			// Asymmetric: shortfall weighs 5x more than excess.
			if opts.CostRecoveryTarget > 0 {
				p.shortfallPenalty = 0.5 / opts.CostRecoveryTarget
				p.excessPenalty = 0.1 / opts.CostRecoveryTarget
			}
		}
	}

	// Prevent the trivial all-prices-at-maximum solution that dominates a
	// profit-leaning objective under a bare revenue floor.
	if opts.FairnessWeight < 0.5 && opts.Mode == ModeRegulated {
		p.capTotalPrice = true
	}

	return p
}

// problem holds the LP in the standard form min cᵀx s.t. Ax=b, x≥0 expected
// by gonum's simplex. Prices are shifted by the lower bound (p_t = L + y_t)
// and every inequality carries an explicit slack column.
type problem struct {
	opts Options
	plan plan

	timestamps  []time.Time
	consumption []float64
	total       float64

	c []float64
	a *mat.Dense
	b []float64

	// variable column offsets
	offY, offMean, offPos, offNeg int
	offShort, offExcess           int
}

func buildProblem(records []pricing.ConsumptionRecord, opts Options) *problem {
	timestamps := pricing.UniqueTimestamps(records)
	load := pricing.LoadByTimestamp(records)

	t := len(timestamps)
	consumption := make([]float64, t)
	var total float64
	for i, ts := range timestamps {
		consumption[i] = load[ts.UnixNano()]
		total += consumption[i]
	}

	p := buildPlan(opts)

	low, width := opts.MinPrice, opts.MaxPrice-opts.MinPrice

	// Columns: y(t), mean, pos(t), neg(t), shortfall, excess, then slacks for
	// the price bounds (t), the mean bound, the revenue floor, and the
	// optional revenue cap and total-price cap.
	offY := 0
	offMean := t
	offPos := t + 1
	offNeg := 2*t + 1
	offShort := 3*t + 1
	offExcess := 3*t + 2
	offSlackY := 3*t + 3
	offSlackMean := 4*t + 3
	offSlackMin := 4*t + 4
	next := 4*t + 5

	offSlackMax := -1
	if p.capRevenue {
		offSlackMax = next
		next++
	}
	offSlackCap := -1
	if p.capTotalPrice {
		offSlackCap = next
		next++
	}
	n := next

	// Rows: mean definition, t deviation definitions, revenue balance,
	// t price bounds, mean bound, revenue floor, optional cap rows.
	m := 2*t + 4
	if p.capRevenue {
		m++
	}
	if p.capTotalPrice {
		m++
	}

	a := mat.NewDense(m, n, nil)
	b := make([]float64, m)

	row := 0

	// T·mean = Σ price_t  ⇒  T·ym − Σ y_t = 0
	for i := 0; i < t; i++ {
		a.Set(row, offY+i, -1)
	}
	a.Set(row, offMean, float64(t))
	row++

	// price_t − mean = pos_t − neg_t
	for i := 0; i < t; i++ {
		a.Set(row, offY+i, 1)
		a.Set(row, offMean, -1)
		a.Set(row, offPos+i, -1)
		a.Set(row, offNeg+i, 1)
		row++
	}

	// total_revenue − target = excess − shortfall
	for i := 0; i < t; i++ {
		a.Set(row, offY+i, consumption[i])
	}
	a.Set(row, offShort, 1)
	a.Set(row, offExcess, -1)
	b[row] = opts.CostRecoveryTarget - low*total
	row++

	// y_t ≤ width
	for i := 0; i < t; i++ {
		a.Set(row, offY+i, 1)
		a.Set(row, offSlackY+i, 1)
		b[row] = width
		row++
	}

	// The mean of bounded prices shares their bounds.
	a.Set(row, offMean, 1)
	a.Set(row, offSlackMean, 1)
	b[row] = width
	row++

	// total_revenue ≥ min_revenue
	for i := 0; i < t; i++ {
		a.Set(row, offY+i, consumption[i])
	}
	a.Set(row, offSlackMin, -1)
	b[row] = p.minRevenue - low*total
	row++

	if p.capRevenue {
		for i := 0; i < t; i++ {
			a.Set(row, offY+i, consumption[i])
		}
		a.Set(row, offSlackMax, 1)
		b[row] = p.maxRevenue - low*total
		row++
	}

	if p.capTotalPrice {
		for i := 0; i < t; i++ {
			a.Set(row, offY+i, 1)
		}
		a.Set(row, offSlackCap, 1)
		b[row] = 0.95*opts.MaxPrice*float64(t) - low*float64(t)
		row++
	}

	c := make([]float64, n)
	switch p.objective {
	case objectivePureFairness:
		// maximize −Σ abs_dev ⇒ minimize Σ (pos + neg)
		for i := 0; i < t; i++ {
			c[offPos+i] = 1
			c[offNeg+i] = 1
		}
	case objectivePureProfit:
		// maximize revenue ⇒ minimize −Σ c_t·y_t (constant term dropped)
		for i := 0; i < t; i++ {
			c[offY+i] = -consumption[i]
		}
	default:
		maxRevenue := opts.MaxPrice * total
		maxDeviation := float64(t) * width
		for i := 0; i < t; i++ {
			c[offY+i] = -opts.ProfitWeight * consumption[i] / maxRevenue
			c[offPos+i] = opts.FairnessWeight / maxDeviation
			c[offNeg+i] = opts.FairnessWeight / maxDeviation
		}
	}
	c[offShort] += p.shortfallPenalty
	c[offExcess] += p.excessPenalty

	return &problem{
		opts:        opts,
		plan:        p,
		timestamps:  timestamps,
		consumption: consumption,
		total:       total,
		c:           c,
		a:           a,
		b:           b,
		offY:        offY,
		offMean:     offMean,
		offPos:      offPos,
		offNeg:      offNeg,
		offShort:    offShort,
		offExcess:   offExcess,
	}
}

// extractCurve turns a solution vector into a price curve. A nil vector, or
// any unresolved component, falls back to target/Σconsumption clamped into
// the price bounds rather than failing the run.
func (p *problem) extractCurve(x []float64) pricing.PriceCurve {
	fallback := clampPrice(p.fallbackPrice(), p.opts)

	curve := make(pricing.PriceCurve, len(p.timestamps))
	for i, ts := range p.timestamps {
		price := fallback
		if x != nil && p.offY+i < len(x) && !isNaN(x[p.offY+i]) {
			price = clampPrice(p.opts.MinPrice+x[p.offY+i], p.opts)
		}
		curve[i] = pricing.PricePoint{Timestamp: ts, PricePerKWh: price}
	}
	return curve
}

func (p *problem) fallbackPrice() float64 {
	if p.total <= 0 {
		return p.opts.MinPrice
	}
	return p.opts.CostRecoveryTarget / p.total
}

// objectiveValue recomputes the true objective (constants included) from the
// realised curve, matching the case selected at build time.
func (p *problem) objectiveValue(prices []float64, revenue, shortfall, excess float64) float64 {
	mean := meanOf(prices)
	var deviation float64
	for _, price := range prices {
		d := price - mean
		if d < 0 {
			d = -d
		}
		deviation += d
	}

	switch p.plan.objective {
	case objectivePureFairness:
		return -deviation
	case objectivePureProfit:
		return revenue - p.plan.shortfallPenalty*shortfall - p.plan.excessPenalty*excess
	default:
		maxRevenue := p.opts.MaxPrice * p.total
		maxDeviation := float64(len(prices)) * (p.opts.MaxPrice - p.opts.MinPrice)
		value := p.opts.ProfitWeight*(revenue/maxRevenue) +
			p.opts.FairnessWeight*(1-deviation/maxDeviation)
		return value - p.plan.shortfallPenalty*shortfall - p.plan.excessPenalty*excess
	}
}

func clampPrice(v float64, opts Options) float64 {
	if v < opts.MinPrice {
		return opts.MinPrice
	}
	if v > opts.MaxPrice {
		return opts.MaxPrice
	}
	return v
}

func isNaN(v float64) bool { return v != v }
