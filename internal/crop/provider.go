package crop

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("prediction not found")

// SortOrder selects how a Store orders query results.
type SortOrder int

const (
	SortNone SortOrder = iota
	// SortNewest orders by creation time, newest first.
	SortNewest
	// SortYearDesc orders by crop year, latest first.
	SortYearDesc
)

// Query describes a record lookup. Filter criteria may be pushed down to the
// backing store; the engine re-applies them, so partial pushdown is fine.
type Query struct {
	Filter Filter
	Sort   SortOrder
	Limit  int // 0 = unlimited
}

// Store is the contract the in-memory and SQL stores must satisfy.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Find(ctx context.Context, q Query) ([]Record, error)
	// DeleteBefore removes records created before cutoff and returns how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Predictor abstracts the external ML prediction service.
type Predictor interface {
	Predict(ctx context.Context, req PredictionRequest) (PredictionResult, error)
	ReferenceData(ctx context.Context) (ReferenceData, error)
	Health(ctx context.Context) (HealthStatus, error)
}

// Publisher announces newly stored predictions to downstream consumers.
type Publisher interface {
	PredictionCreated(ctx context.Context, rec Record) error
}

// Locator resolves the map coordinates of a state.
type Locator interface {
	Locate(ctx context.Context, state string) (lat, lng float64, ok bool)
}
