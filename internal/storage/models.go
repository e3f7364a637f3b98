package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsumptionRow is a persisted household meter reading.
type ConsumptionRow struct {
	HouseholdID    int64
	Timestamp      time.Time
	ConsumptionKWh float64
	Country        string
	CreatedAt      time.Time
}

// OptimizationRun captures one completed tariff derivation: the parameters,
// the solver verdict, realised revenue and price statistics, the fairness
// snapshot, and the produced curve as JSON.
type OptimizationRun struct {
	ID         uuid.UUID
	Source     string // optimizer | flat | tou | dynamic
	Mode       string
	Country    string
	WindowFrom time.Time
	WindowTo   time.Time

	FairnessWeight     float64
	ProfitWeight       float64
	CostRecoveryTarget decimal.Decimal
	MinPrice           float64
	MaxPrice           float64

	SolverStatus   string
	SolverRuntime  time.Duration
	ObjectiveValue float64

	TotalRevenue    decimal.Decimal
	CostRecoveryPct decimal.Decimal
	AvgPricePerKWh  float64
	PriceStd        float64
	PriceMin        float64
	PriceMax        float64

	GiniCoefficient        float64
	CoefficientOfVariation float64

	Curve     json.RawMessage
	CreatedAt time.Time
}

// CurvePoint is the JSON shape of one price curve entry stored on a run.
type CurvePoint struct {
	Timestamp   time.Time `json:"timestamp"`
	PricePerKWh float64   `json:"price_per_kwh"`
}
