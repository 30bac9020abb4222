package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/crop-yield-analytics/internal/crop"
)

// Client implements crop.Predictor against the ML prediction HTTP API.
type Client struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     *zap.Logger
}

type options struct {
	backoff       BackoffConfig
	log           *zap.Logger
	onStateChange func(name string, from, to gobreaker.State)
}

// Option configures a Client.
type Option func(*options)

// WithBackoff overrides the retry schedule.
func WithBackoff(b BackoffConfig) Option { return func(o *options) { o.backoff = b } }

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithStateObserver registers a callback invoked on circuit breaker transitions.
func WithStateObserver(fn func(name string, from, to gobreaker.State)) Option {
	return func(o *options) { o.onStateChange = fn }
}

// New creates a Client for the service rooted at baseURL.
func New(client *http.Client, baseURL string, opts ...Option) *Client {
	o := options{
		backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log.With(zap.String("component", "mlservice"))
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mlservice",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if o.onStateChange != nil {
				o.onStateChange(name, from, to)
			}
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{Client: client, Backoff: o.backoff},
		circuit: cb,
		log:     log,
	}
}

// Predict posts req to /predict and normalizes the response.
func (c *Client) Predict(ctx context.Context, req crop.PredictionRequest) (crop.PredictionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return crop.PredictionResult{}, fmt.Errorf("encode prediction request: %w", err)
	}

	buildRequest := func() (*http.Request, error) {
		r, err := http.NewRequest(http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return crop.PredictionResult{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Success    bool `json:"success"`
		Prediction struct {
			PredictedProduction float64 `json:"predicted_production"`
			YieldPerHectare     float64 `json:"yield_per_hectare"`
			AreaHectares        float64 `json:"area_hectares"`
			Unit                string  `json:"unit"`
		} `json:"prediction"`
		Insights crop.ServiceInsight `json:"insights"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return crop.PredictionResult{}, fmt.Errorf("decode prediction response: %w", err)
	}

	unit := payload.Prediction.Unit
	if unit == "" {
		unit = "tons"
	}
	area := payload.Prediction.AreaHectares
	if area == 0 {
		area = req.Area
	}

	return crop.PredictionResult{
		ProductionTons:  payload.Prediction.PredictedProduction,
		YieldPerHectare: payload.Prediction.YieldPerHectare,
		AreaHectares:    area,
		Unit:            unit,
		Insights:        payload.Insights,
	}, nil
}

// ReferenceData fetches /unique-values.
func (c *Client) ReferenceData(ctx context.Context) (crop.ReferenceData, error) {
	var ref crop.ReferenceData
	if err := c.getJSON(ctx, "/unique-values", &ref); err != nil {
		return crop.ReferenceData{}, err
	}
	return ref, nil
}

// Health fetches /health.
func (c *Client) Health(ctx context.Context) (crop.HealthStatus, error) {
	var h crop.HealthStatus
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return crop.HealthStatus{}, err
	}
	return h, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
