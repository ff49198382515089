package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/metricas-service/internal/api/dto"
	"github.com/spec-kit/metricas-service/internal/auth"
	"github.com/spec-kit/metricas-service/internal/service"
	apperrors "github.com/spec-kit/metricas-service/pkg/util"
)

// MetricsHandler exposes the performance metrics endpoints.
type MetricsHandler struct {
	metrics *service.MetricService
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metricService *service.MetricService) *MetricsHandler {
	return &MetricsHandler{metrics: metricService}
}

// List handles GET /metricas, scoped by the caller's role.
func (h *MetricsHandler) List(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	snapshots, err := h.metrics.ListFor(c.Context(), claims.UserID, claims.Role)
	if err != nil {
		return err
	}
	items := make([]dto.MetricResponse, 0, len(snapshots))
	for i := range snapshots {
		items = append(items, dto.NewMetricResponse(&snapshots[i]))
	}
	return c.JSON(fiber.Map{"metricas": items, "cantidad": len(items)})
}

// Create handles POST /metricas.
func (h *MetricsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateMetricRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AgenteID == "" {
		return apperrors.NewValidationError("agente_id required", nil)
	}

	snapshot, err := h.metrics.Record(c.Context(), req.AgenteID, req.Values())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"mensaje":  "métricas creadas",
		"metricas": dto.NewMetricResponse(snapshot),
	})
}

// Update handles PUT /metricas/:id.
func (h *MetricsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateMetricRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	snapshot, err := h.metrics.Update(c.Context(), c.Params("id"), req.Update())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"mensaje":  "métricas actualizadas",
		"metricas": dto.NewMetricResponse(snapshot),
	})
}

// Delete handles DELETE /metricas/:id.
func (h *MetricsHandler) Delete(c *fiber.Ctx) error {
	if err := h.metrics.Delete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"mensaje": "métricas eliminadas"})
}

// GlobalAverage handles GET /metricas/global: the per-field mean over
// the full snapshot history of every agent.
func (h *MetricsHandler) GlobalAverage(c *fiber.Ctx) error {
	agg, err := h.metrics.GlobalAverage(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"metricas": dto.NewAggregateResponse(agg)})
}

// ApplyGlobalValues handles POST /metricas/global: one fresh snapshot
// per agent carrying the submitted baseline.
func (h *MetricsHandler) ApplyGlobalValues(c *fiber.Ctx) error {
	var req dto.MetricFields
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	created, err := h.metrics.ApplyGlobalValues(c.Context(), req.Values())
	if err != nil {
		return err
	}
	items := make([]dto.MetricResponse, 0, len(created))
	for i := range created {
		items = append(items, dto.NewMetricResponse(&created[i]))
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"mensaje":  "métricas globales creadas",
		"metricas": items,
	})
}
