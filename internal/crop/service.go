package crop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAccuracyRate = 87.5
	defaultHistoryLimit = 10
	// recordsPerYear bounds how many records the yield-trends report reads per requested year.
	recordsPerYear = 12
)

// Service orchestrates the prediction service, the record store and the
// aggregation reports.
type Service struct {
	store     Store
	predictor Predictor
	publisher Publisher
	locator   Locator
	log       *zap.Logger
	now       func() time.Time

	accuracyRate float64
	historyLimit int

	mu      sync.RWMutex
	catalog ReferenceData
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher notified after each stored prediction.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithLocator sets the coordinate lookup used by the geographic report.
func WithLocator(l Locator) Option { return func(s *Service) { s.locator = l } }

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAccuracyRate sets the model accuracy reported by the performance report.
func WithAccuracyRate(pct float64) Option { return func(s *Service) { s.accuracyRate = pct } }

// WithHistoryLimit sets how many records the historical feed returns.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a new Service.
func NewService(store Store, predictor Predictor, opts ...Option) *Service {
	s := &Service{
		store:        store,
		predictor:    predictor,
		log:          zap.NewNop(),
		now:          time.Now,
		accuracyRate: defaultAccuracyRate,
		historyLimit: defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("component", "crop-service"))
	return s
}

// Prediction is the outcome of a relayed prediction request.
type Prediction struct {
	Record  Record
	Request PredictionRequest
	Result  PredictionResult
}

// Predict relays req to the prediction service, stores the result and
// publishes a creation event. Publish failures are logged only.
func (s *Service) Predict(ctx context.Context, req PredictionRequest) (Prediction, error) {
	if s.predictor == nil {
		return Prediction{}, fmt.Errorf("no prediction service configured")
	}

	res, err := s.predictor.Predict(ctx, req)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}

	rec := Record{
		ID:                 uuid.NewString(),
		CropType:           req.Crop,
		State:              req.State,
		District:           req.District,
		Season:             ParseSeason(req.Season),
		CropYear:           req.CropYear,
		Area:               req.Area,
		Production:         Float(res.ProductionTons),
		Yield:              Float(res.YieldPerHectare),
		CreatedAt:          s.now().UTC(),
		ProductionAnalysis: res.Insights.ProductionAnalysis,
		YieldAnalysis:      res.Insights.YieldAnalysis,
		Recommendations:    res.Insights.Recommendations,
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return Prediction{}, fmt.Errorf("store prediction: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PredictionCreated(ctx, rec); err != nil {
			s.log.Warn("publish prediction event failed", zap.String("id", rec.ID), zap.Error(err))
		}
	}

	s.log.Info("prediction stored",
		zap.String("id", rec.ID),
		zap.String("crop", rec.CropType),
		zap.String("state", rec.State),
		zap.Float64("production", res.ProductionTons))

	return Prediction{Record: rec, Request: req, Result: res}, nil
}

// HistoricalEntry is one row of the historical feed.
type HistoricalEntry struct {
	Year                int     `json:"year"`
	PredictedProduction float64 `json:"predicted_production"`
	YieldPerHectare     float64 `json:"yield_per_hectare"`
	CropType            string  `json:"crop_type"`
	State               string  `json:"state"`
	District            string  `json:"district"`
	Season              string  `json:"season"`
	Area                float64 `json:"area"`
}

// Historical returns the most recent predictions, newest first.
func (s *Service) Historical(ctx context.Context) ([]HistoricalEntry, error) {
	records, err := s.store.Find(ctx, Query{Sort: SortNewest, Limit: s.historyLimit})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]HistoricalEntry, 0, len(records))
	for _, r := range records {
		out = append(out, HistoricalEntry{
			Year:                r.Year(),
			PredictedProduction: r.ProductionTons(),
			YieldPerHectare:     r.YieldPerHectare(),
			CropType:            r.CropName(),
			State:               r.StateName(),
			District:            r.DistrictName(),
			Season:              r.SeasonName(),
			Area:                r.AreaHectares(),
		})
	}
	return out, nil
}

// Geographic builds the per-state report, attaching coordinates when known.
func (s *Service) Geographic(ctx context.Context, state string) ([]StateSummary, error) {
	f := Filter{State: state}
	records, err := s.store.Find(ctx, Query{Filter: f})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	rows := GeographicReport(records, f)
	if s.locator != nil {
		for i := range rows {
			if lat, lng, ok := s.locator.Locate(ctx, rows[i].State); ok {
				rows[i].Lat, rows[i].Lng = Float(lat), Float(lng)
			}
		}
	}
	return rows, nil
}

// YieldTrends builds the per-year report over the latest years*12 records.
func (s *Service) YieldTrends(ctx context.Context, cropType, state string, years int) ([]YearTrend, error) {
	f := Filter{Crop: cropType, State: state}
	q := Query{Filter: f, Sort: SortYearDesc}
	if years > 0 {
		q.Limit = years * recordsPerYear
	}
	records, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return YieldTrendsReport(records, f), nil
}

// CropComparison builds the per-crop efficiency report.
func (s *Service) CropComparison(ctx context.Context, f Filter) ([]CropComparison, error) {
	records, err := s.store.Find(ctx, Query{Filter: f})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return CropComparisonReport(records, f), nil
}

// Seasonal builds the per-season success report.
func (s *Service) Seasonal(ctx context.Context, f Filter) ([]SeasonSummary, error) {
	records, err := s.store.Find(ctx, Query{Filter: f})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return SeasonalReport(records, f), nil
}

// Performance builds the single-aggregate performance report.
func (s *Service) Performance(ctx context.Context, f Filter) (PerformanceMetrics, error) {
	records, err := s.store.Find(ctx, Query{Filter: f})
	if err != nil {
		return PerformanceMetrics{}, fmt.Errorf("load records: %w", err)
	}
	return PerformanceReport(records, f, s.accuracyRate), nil
}

// Insights returns the advisory payload for a stored prediction.
// Unknown ids yield ErrNotFound.
func (s *Service) Insights(ctx context.Context, id string) (Insights, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Insights{}, err
	}
	return BuildInsights(rec), nil
}

// RefreshCatalog reloads the reference catalog from the prediction service
// while probing its health.
func (s *Service) RefreshCatalog(ctx context.Context) error {
	if s.predictor == nil {
		return fmt.Errorf("no prediction service configured")
	}

	var (
		ref    ReferenceData
		health HealthStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ref, err = s.predictor.ReferenceData(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		health, err = s.predictor.Health(gctx)
		if err != nil {
			s.log.Warn("prediction service health probe failed", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}

	if health.Status != "" && !health.ModelLoaded {
		s.log.Warn("prediction service reports model not loaded", zap.String("status", health.Status))
	}

	s.mu.Lock()
	s.catalog = ref
	s.mu.Unlock()

	s.log.Debug("reference catalog refreshed",
		zap.Int("states", len(ref.States)),
		zap.Int("crops", len(ref.Crops)))
	return nil
}

// Catalog returns the cached reference catalog.
func (s *Service) Catalog() ReferenceData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Districts returns the cached districts of state. The result is empty for
// unknown states.
func (s *Service) Districts(state string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	districts := s.catalog.DistrictsByState[state]
	if districts == nil {
		return []string{}
	}
	return append([]string(nil), districts...)
}

// ModelHealth relays the prediction service health.
func (s *Service) ModelHealth(ctx context.Context) (HealthStatus, error) {
	if s.predictor == nil {
		return HealthStatus{}, fmt.Errorf("no prediction service configured")
	}
	return s.predictor.Health(ctx)
}

// Prune removes records older than maxAge.
func (s *Service) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-maxAge)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	if n > 0 {
		s.log.Info("pruned records", zap.Int("removed", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Import stores pre-built records, assigning ids and creation times where missing.
func (s *Service) Import(ctx context.Context, records []Record) (int, error) {
	for i, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now().UTC()
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return i, fmt.Errorf("import record %d: %w", i, err)
		}
	}
	return len(records), nil
}
