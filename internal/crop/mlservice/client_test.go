package mlservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/crop-yield-analytics/internal/crop"
)

var fastBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBackoff(fastBackoff)}, opts...)
	return New(srv.Client(), srv.URL+"/", opts...)
}

var rice = crop.PredictionRequest{
	State:    "Punjab",
	District: "Ludhiana",
	Season:   "Kharif",
	Crop:     "Rice",
	CropYear: 2024,
	Area:     120,
}

func TestPredict(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Punjab", body["state_name"])
		assert.Equal(t, "Ludhiana", body["district_name"])
		assert.Equal(t, float64(2024), body["crop_year"])

		_, _ = w.Write([]byte(`{
			"success": true,
			"prediction": {"predicted_production": 540.5, "yield_per_hectare": 4.5, "area_hectares": 120, "unit": "tons"},
			"insights": {
				"production_analysis": "Good production potential with 540.5 tons expected.",
				"yield_analysis": "Average yield expected: 4.5 tons/hectare.",
				"recommendations": ["Monitor soil moisture levels"]
			}
		}`))
	}))

	res, err := c.Predict(context.Background(), rice)
	require.NoError(t, err)
	assert.Equal(t, 540.5, res.ProductionTons)
	assert.Equal(t, 4.5, res.YieldPerHectare)
	assert.Equal(t, 120.0, res.AreaHectares)
	assert.Equal(t, "tons", res.Unit)
	assert.Equal(t, "Average yield expected: 4.5 tons/hectare.", res.Insights.YieldAnalysis)
	assert.Equal(t, []string{"Monitor soil moisture levels"}, res.Insights.Recommendations)
}

func TestPredictDefaultsUnitAndArea(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"prediction": {"predicted_production": 10, "yield_per_hectare": 1}}`))
	}))

	res, err := c.Predict(context.Background(), rice)
	require.NoError(t, err)
	assert.Equal(t, "tons", res.Unit)
	assert.Equal(t, rice.Area, res.AreaHectares)
}

func TestPredictRejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Unknown crop: Quinoa"}`))
	}))

	_, err := c.Predict(context.Background(), rice)
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	assert.Equal(t, "Unknown crop: Quinoa", rej.Message)
	assert.EqualValues(t, 1, calls.Load())
}

func TestPredictRejectionWithoutBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.Predict(context.Background(), rice)
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Not Found", rej.Message)
}

func TestPredictRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"prediction": {"predicted_production": 1, "yield_per_hectare": 1, "area_hectares": 1}}`))
	}))

	res, err := c.Predict(context.Background(), rice)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.ProductionTons)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPredictGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Predict(context.Background(), rice)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.EqualValues(t, fastBackoff.MaxRetries+1, calls.Load())
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []gobreaker.State
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}),
		WithBackoff(BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond}),
		WithStateObserver(func(_ string, _, to gobreaker.State) { transitions = append(transitions, to) }),
	)

	for i := 0; i < 6; i++ {
		_, err := c.Health(context.Background())
		require.ErrorIs(t, err, ErrServerError)
	}

	_, err := c.Health(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestPredictHonoursContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), WithBackoff(BackoffConfig{MaxRetries: 5, InitialInterval: time.Second}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Predict(ctx, rice)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestReferenceDataAndHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unique-values", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"states": ["Punjab"],
			"districts": ["Ludhiana"],
			"seasons": ["Kharif"],
			"crops": ["Rice"],
			"district_state_mapping": {"Punjab": ["Ludhiana"]}
		}`))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "healthy", "service": "ML API", "model_loaded": true, "timestamp": "2024-07-01T10:00:00.123456"}`))
	})
	c := newTestClient(t, mux)

	ref, err := c.ReferenceData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Punjab"}, ref.States)
	assert.Equal(t, []string{"Ludhiana"}, ref.DistrictsByState["Punjab"])

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.ModelLoaded)
	assert.Equal(t, "2024-07-01T10:00:00.123456", h.Timestamp)
}

func TestInvalidConfiguration(t *testing.T) {
	c := New(nil, "http://127.0.0.1:1")
	_, err := c.Health(context.Background())
	require.ErrorIs(t, err, errNoHTTPClient)
}
