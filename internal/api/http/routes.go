package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/crop-yield-analytics/internal/crop"
	"github.com/i474232898/crop-yield-analytics/internal/crop/mlservice"
	"github.com/i474232898/crop-yield-analytics/internal/metrics"
)

var validate = validator.New()

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

type handler struct {
	service *crop.Service
	metrics *metrics.Metrics
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. m may be nil.
func RegisterRoutes(app *fiber.App, service *crop.Service, m *metrics.Metrics) {
	h := &handler{service: service, metrics: m}

	app.Post("/prediction", h.predict)
	app.Get("/historical", h.historical)

	analytics := app.Group("/analytics")
	analytics.Get("/geographic", h.geographic)
	analytics.Get("/yield-trends", h.yieldTrends)
	analytics.Post("/crop-comparison", h.cropComparison)
	analytics.Get("/seasonal", h.seasonal)
	analytics.Post("/performance", h.performance)
	analytics.Get("/insights/:predictionId", h.insights)

	reference := app.Group("/reference")
	reference.Get("/unique-values", h.uniqueValues)
	reference.Get("/districts/:state", h.districts)
	reference.Get("/ml-health", h.modelHealth)
}

func (h *handler) predict(c *fiber.Ctx) error {
	var req predictionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.normalize()
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	out, err := h.service.Predict(c.UserContext(), req.toDomain())
	if err != nil {
		var rej *mlservice.RejectedError
		switch {
		case errors.As(err, &rej):
			h.metrics.Prediction("rejected")
			return fiber.NewError(fiber.StatusBadRequest, rej.Message)
		case errors.Is(err, mlservice.ErrCircuitOpen),
			errors.Is(err, mlservice.ErrRateLimited),
			errors.Is(err, mlservice.ErrServerError):
			h.metrics.Prediction("unavailable")
			return fiber.NewError(fiber.StatusBadGateway, "prediction service unavailable")
		default:
			h.metrics.Prediction("failed")
			return fiber.NewError(fiber.StatusInternalServerError, "prediction failed")
		}
	}

	h.metrics.Prediction("success")
	return c.JSON(newPredictionResponse(out))
}

func (h *handler) historical(c *fiber.Ctx) error {
	entries, err := h.service.Historical(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch historical data")
	}
	return c.JSON(entries)
}

func (h *handler) geographic(c *fiber.Ctx) error {
	defer h.metrics.ObserveReport("geographic", time.Now())

	rows, err := h.service.Geographic(c.UserContext(), c.Query("state"))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute geographic report")
	}
	return c.JSON(rows)
}

func (h *handler) yieldTrends(c *fiber.Ctx) error {
	defer h.metrics.ObserveReport("yield_trends", time.Now())

	q := yieldTrendsQuery{Years: defaultTrendYears}
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	rows, err := h.service.YieldTrends(c.UserContext(), q.Crop, q.State, q.Years)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute yield trends")
	}
	return c.JSON(rows)
}

func (h *handler) cropComparison(c *fiber.Ctx) error {
	defer h.metrics.ObserveReport("crop_comparison", time.Now())

	var req cropComparisonRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return err
	}

	rows, err := h.service.CropComparison(c.UserContext(), req.filter())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute crop comparison")
	}
	return c.JSON(rows)
}

func (h *handler) seasonal(c *fiber.Ctx) error {
	defer h.metrics.ObserveReport("seasonal", time.Now())

	seasons, err := parseSeasons(c.Query("seasons"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	f := crop.Filter{
		Crop:    c.Query("crop"),
		State:   c.Query("state"),
		Seasons: seasons,
	}
	rows, err := h.service.Seasonal(c.UserContext(), f)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute seasonal analysis")
	}
	return c.JSON(rows)
}

func (h *handler) performance(c *fiber.Ctx) error {
	defer h.metrics.ObserveReport("performance", time.Now())

	var req performanceRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return err
	}

	perf, err := h.service.Performance(c.UserContext(), req.filter())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute performance metrics")
	}
	return c.JSON(perf)
}

func (h *handler) insights(c *fiber.Ctx) error {
	insights, err := h.service.Insights(c.UserContext(), c.Params("predictionId"))
	if err != nil {
		if errors.Is(err, crop.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "prediction not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch prediction insights")
	}
	return c.JSON(insights)
}

func (h *handler) uniqueValues(c *fiber.Ctx) error {
	catalog := h.service.Catalog()
	if len(catalog.States) == 0 {
		return fiber.NewError(fiber.StatusServiceUnavailable, "reference data not loaded")
	}
	return c.JSON(catalog)
}

func (h *handler) districts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"districts": h.service.Districts(c.Params("state"))})
}

func (h *handler) modelHealth(c *fiber.Ctx) error {
	health, err := h.service.ModelHealth(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "prediction service unreachable")
	}
	return c.JSON(health)
}

// parseOptionalBody decodes a JSON body when one is present.
func parseOptionalBody(c *fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}
