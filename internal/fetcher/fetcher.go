package fetcher

import (
	"context"
	"time"
)

// LoadPoint is one country-level actual-load observation.
type LoadPoint struct {
	Timestamp time.Time
	LoadMW    float64
}

// LoadFetcher retrieves actual load data for a bidding zone.
type LoadFetcher interface {
	FetchActualLoad(ctx context.Context, country string, from, to time.Time) ([]LoadPoint, error)
}
