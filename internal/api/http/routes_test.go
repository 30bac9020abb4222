package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/crop-yield-analytics/internal/crop"
	"github.com/i474232898/crop-yield-analytics/internal/crop/mlservice"
	"github.com/i474232898/crop-yield-analytics/internal/metrics"
	"github.com/i474232898/crop-yield-analytics/internal/store"
)

type stubPredictor struct {
	err    error
	ref    crop.ReferenceData
	health crop.HealthStatus
	last   crop.PredictionRequest
}

func (s *stubPredictor) Predict(_ context.Context, req crop.PredictionRequest) (crop.PredictionResult, error) {
	s.last = req
	if s.err != nil {
		return crop.PredictionResult{}, s.err
	}
	return crop.PredictionResult{
		ProductionTons:  req.Area * 4.5,
		YieldPerHectare: 4.5,
		AreaHectares:    req.Area,
		Unit:            "tons",
		Insights: crop.ServiceInsight{
			ProductionAnalysis: "Good production potential",
			YieldAnalysis:      "Average yield expected: 4.5 tons/hectare.",
		},
	}, nil
}

func (s *stubPredictor) ReferenceData(context.Context) (crop.ReferenceData, error) {
	return s.ref, nil
}

func (s *stubPredictor) Health(context.Context) (crop.HealthStatus, error) {
	if s.err != nil {
		return crop.HealthStatus{}, s.err
	}
	return s.health, nil
}

type testEnv struct {
	app       *fiber.App
	svc       *crop.Service
	mem       *store.MemoryStore
	predictor *stubPredictor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore(0)
	pred := &stubPredictor{}
	svc := crop.NewService(mem, pred)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc, metrics.New())
	return &testEnv{app: app, svc: svc, mem: mem, predictor: pred}
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []crop.Record{
		{ID: "r1", CropType: "Rice", State: "Maharashtra", District: "Pune", Season: crop.SeasonKharif, CropYear: 2022, Area: 1000, Production: crop.Float(4500), Yield: crop.Float(4.5)},
		{ID: "r2", CropType: "Wheat", State: "Maharashtra", District: "Nashik", Season: crop.SeasonRabi, CropYear: 2023, Area: 800, Production: crop.Float(3360), Yield: crop.Float(4.2)},
		{ID: "r3", CropType: "Rice", State: "Punjab", District: "Ludhiana", Season: crop.SeasonKharif, CropYear: 2023, Area: 1200, Production: crop.Float(7200), Yield: crop.Float(6)},
	}
	for i := range records {
		records[i].CreatedAt = base.Add(time.Duration(i) * time.Hour)
	}
	_, err := e.svc.Import(context.Background(), records)
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

type errorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

const validPrediction = `{
	"state_name": "Maharashtra",
	"district_name": "Pune",
	"season": "Kharif",
	"crop": "Rice",
	"crop_year": "2024",
	"area": 100
}`

func TestPredictionRelay(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodPost, "/prediction", validPrediction)
	require.Equal(t, http.StatusOK, status, string(body))

	got := decode[predictionResponse](t, body)
	assert.True(t, got.Success)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, 450.0, got.Prediction.PredictedProduction)
	assert.Equal(t, "tons", got.Prediction.Unit)
	assert.Equal(t, 2024, got.Inputs.CropYear)
	assert.Equal(t, []string{}, got.Insights.Recommendations)
	assert.Equal(t, 2024, e.predictor.last.CropYear)

	stored, err := e.mem.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, crop.SeasonKharif, stored.Season)
}

func TestPredictionValidation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `state_name=Goa`},
		{"missing crop", `{"state_name":"Goa","district_name":"North Goa","season":"Kharif","crop_year":2024,"area":5}`},
		{"blank district", `{"state_name":"Goa","district_name":"  ","season":"Kharif","crop":"Rice","crop_year":2024,"area":5}`},
		{"zero area", `{"state_name":"Goa","district_name":"North Goa","season":"Kharif","crop":"Rice","crop_year":2024,"area":0}`},
		{"year out of range", `{"state_name":"Goa","district_name":"North Goa","season":"Kharif","crop":"Rice","crop_year":1800,"area":5}`},
		{"year not numeric", `{"state_name":"Goa","district_name":"North Goa","season":"Kharif","crop":"Rice","crop_year":"soon","area":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, http.MethodPost, "/prediction", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, string(body))
			assert.True(t, decode[errorBody](t, body).Error)
		})
	}
	assert.Zero(t, e.mem.Len())
}

func TestPredictionUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"rejected", &mlservice.RejectedError{Status: 400, Message: "Unknown crop: Quinoa"}, http.StatusBadRequest, "Unknown crop: Quinoa"},
		{"breaker open", mlservice.ErrCircuitOpen, http.StatusBadGateway, "prediction service unavailable"},
		{"server error", mlservice.ErrServerError, http.StatusBadGateway, "prediction service unavailable"},
		{"other", errors.New("connection refused"), http.StatusInternalServerError, "prediction failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.predictor.err = tt.err

			status, body := e.do(t, http.MethodPost, "/prediction", validPrediction)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, decode[errorBody](t, body).Message)
			assert.Zero(t, e.mem.Len())
		})
	}
}

func TestHistorical(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	status, body := e.do(t, http.MethodGet, "/historical", "")
	require.Equal(t, http.StatusOK, status)

	entries := decode[[]crop.HistoricalEntry](t, body)
	require.Len(t, entries, 3)
	assert.Equal(t, "Punjab", entries[0].State)
	assert.Equal(t, 2023, entries[0].Year)
}

func TestGeographic(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	status, body := e.do(t, http.MethodGet, "/analytics/geographic", "")
	require.Equal(t, http.StatusOK, status)
	rows := decode[[]crop.StateSummary](t, body)
	require.Len(t, rows, 2)
	assert.Equal(t, "Maharashtra", rows[0].State)
	assert.Equal(t, 7860.0, rows[0].TotalProduction)
	assert.Equal(t, []string{"Pune", "Nashik"}, rows[0].Districts)

	status, body = e.do(t, http.MethodGet, "/analytics/geographic?state=Punjab", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]crop.StateSummary](t, body), 1)
}

func TestGeographicEmptyStoreReturnsEmptyArray(t *testing.T) {
	e := newTestEnv(t)
	status, body := e.do(t, http.MethodGet, "/analytics/geographic", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestYieldTrends(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	status, body := e.do(t, http.MethodGet, "/analytics/yield-trends?crop=Rice", "")
	require.Equal(t, http.StatusOK, status)
	rows := decode[[]crop.YearTrend](t, body)
	require.Len(t, rows, 2)
	assert.Equal(t, 2022, rows[0].Year)
	assert.Equal(t, 2023, rows[1].Year)
	assert.Equal(t, 6.0, rows[1].AvgYield)

	for _, q := range []string{"years=0", "years=51", "years=abc"} {
		status, _ = e.do(t, http.MethodGet, "/analytics/yield-trends?"+q, "")
		assert.Equal(t, http.StatusBadRequest, status, q)
	}
}

func TestCropComparison(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	status, body := e.do(t, http.MethodPost, "/analytics/crop-comparison", `{"crops":["Rice","Wheat"],"year":"2023"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	rows := decode[[]crop.CropComparison](t, body)
	require.Len(t, rows, 2)
	assert.Equal(t, "Wheat", rows[0].Crop)
	assert.InDelta(t, 84.0, rows[0].Efficiency, 1e-9)
	assert.Equal(t, "Rice", rows[1].Crop)
	assert.Equal(t, 100.0, rows[1].Efficiency)

	status, body = e.do(t, http.MethodPost, "/analytics/crop-comparison", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]crop.CropComparison](t, body), 2)

	status, _ = e.do(t, http.MethodPost, "/analytics/crop-comparison", `{"crops":`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSeasonal(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	status, body := e.do(t, http.MethodGet, "/analytics/seasonal?seasons=rabi,%20Zaid", "")
	require.Equal(t, http.StatusOK, status)
	rows := decode[[]crop.SeasonSummary](t, body)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rabi", rows[0].Season)
	assert.InDelta(t, 100.0, rows[0].SuccessRate, 1e-9)

	status, body = e.do(t, http.MethodGet, "/analytics/seasonal?state=Punjab", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]crop.SeasonSummary](t, body), 1)
}

func TestSeasonalRejectsUnknownSeasonNames(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)
	_, err := e.svc.Import(context.Background(), []crop.Record{
		{ID: "r4", CropType: "Rice", State: "Goa", CropYear: 2023, Area: 10, Production: crop.Float(40)},
	})
	require.NoError(t, err)

	for _, q := range []string{"Summer", "Kharif,Summer", "Whole%20Year"} {
		t.Run(q, func(t *testing.T) {
			status, body := e.do(t, http.MethodGet, "/analytics/seasonal?seasons="+q, "")
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, decode[errorBody](t, body).Message, "invalid season")
		})
	}

	status, body := e.do(t, http.MethodGet, "/analytics/seasonal?seasons=unknown", "")
	require.Equal(t, http.StatusOK, status)
	rows := decode[[]crop.SeasonSummary](t, body)
	require.Len(t, rows, 1)
	assert.Equal(t, "Unknown", rows[0].Season)
	assert.Equal(t, 1, rows[0].Predictions)
}

func TestPerformance(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	status, body := e.do(t, http.MethodPost, "/analytics/performance", `{"state":"Maharashtra"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	m := decode[crop.PerformanceMetrics](t, body)
	assert.Equal(t, 2, m.TotalPredictions)
	assert.Equal(t, 87.5, m.AccuracyRate)
	assert.Equal(t, 3930.0, m.AverageProduction)
	assert.Equal(t, "Pune", m.BestPerformingDistrict)
	assert.Equal(t, 570.0, m.SeasonalVariance)

	status, body = e.do(t, http.MethodPost, "/analytics/performance", `{"crop":"Millet","year":2020}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{
		"totalPredictions": 0,
		"accuracyRate": 0,
		"averageProduction": 0,
		"bestPerformingDistrict": "N/A",
		"seasonalVariance": 0
	}`, string(body))
}

func TestInsights(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	status, body := e.do(t, http.MethodGet, "/analytics/insights/r3", "")
	require.Equal(t, http.StatusOK, status)
	in := decode[crop.Insights](t, body)
	assert.Equal(t, "r3", in.PredictionID)
	assert.Equal(t, "Expected production of 7200 tons", in.ProductionAnalysis)
	assert.Equal(t, "Average yield of 6.00 tons per hectare", in.YieldAnalysis)
	assert.Len(t, in.RiskFactors, 3)

	status, body = e.do(t, http.MethodGet, "/analytics/insights/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "prediction not found", decode[errorBody](t, body).Message)
}

func TestReferenceData(t *testing.T) {
	e := newTestEnv(t)

	status, _ := e.do(t, http.MethodGet, "/reference/unique-values", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	e.predictor.ref = crop.ReferenceData{
		States:           []string{"Goa"},
		Crops:            []string{"Rice"},
		DistrictsByState: map[string][]string{"Goa": {"North Goa", "South Goa"}},
	}
	require.NoError(t, e.svc.RefreshCatalog(context.Background()))

	status, body := e.do(t, http.MethodGet, "/reference/unique-values", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Goa"}, decode[crop.ReferenceData](t, body).States)

	status, body = e.do(t, http.MethodGet, "/reference/districts/Goa", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"districts":["North Goa","South Goa"]}`, string(body))

	status, body = e.do(t, http.MethodGet, "/reference/districts/Kerala", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"districts":[]}`, string(body))
}

func TestModelHealth(t *testing.T) {
	e := newTestEnv(t)
	e.predictor.health = crop.HealthStatus{Status: "healthy", ModelLoaded: true}

	status, body := e.do(t, http.MethodGet, "/reference/ml-health", "")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[crop.HealthStatus](t, body).ModelLoaded)

	e.predictor.err = errors.New("dial tcp: connection refused")
	status, _ = e.do(t, http.MethodGet, "/reference/ml-health", "")
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestFlexIntUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{`2024`, 2024, false},
		{`"2024"`, 2024, false},
		{`" 2024 "`, 2024, false},
		{`2024.0`, 2024, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`2024.5`, 0, true},
		{`"twenty"`, 0, true},
	}
	for _, tt := range tests {
		var n flexInt
		err := json.Unmarshal([]byte(tt.in), &n)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, int(n), tt.in)
	}
}
