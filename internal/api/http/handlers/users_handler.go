package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/metricas-service/internal/api/dto"
	"github.com/spec-kit/metricas-service/internal/auth"
	"github.com/spec-kit/metricas-service/internal/domain"
	"github.com/spec-kit/metricas-service/internal/service"
	apperrors "github.com/spec-kit/metricas-service/pkg/util"
)

// UsersHandler exposes the user directory endpoints.
type UsersHandler struct {
	users   *service.UserService
	metrics *service.MetricService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService, metricService *service.MetricService) *UsersHandler {
	return &UsersHandler{users: userService, metrics: metricService}
}

// List handles GET /usuarios.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"usuarios": items, "cantidad": len(items)})
}

// ListAgents handles GET /usuarios/agentes: every agent with their
// latest snapshot values.
func (h *UsersHandler) ListAgents(c *fiber.Ctx) error {
	agents, err := h.metrics.AgentsWithCurrent(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.AgentOverviewResponse, 0, len(agents))
	for _, agent := range agents {
		items = append(items, dto.NewAgentOverviewResponse(agent))
	}
	return c.JSON(fiber.Map{"agentes": items, "cantidad": len(items)})
}

// Get handles GET /usuarios/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"usuario": dto.NewUserResponse(user)})
}

// Create handles POST /usuarios.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Nombre == "" || req.Email == "" || req.Password == "" || req.Rol == "" {
		return apperrors.NewValidationError("nombre, email, password and rol required", nil)
	}

	user, err := h.users.Create(c.Context(), service.CreateUserInput{
		Name:     req.Nombre,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Rol),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"mensaje": "usuario creado",
		"usuario": dto.NewUserResponse(user),
	})
}

// Update handles PUT /usuarios/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.UpdateUserInput{
		Name:     req.Nombre,
		Email:    req.Email,
		Password: req.Password,
	}
	if req.Rol != nil {
		role := domain.Role(*req.Rol)
		input.Role = &role
	}

	user, err := h.users.Update(c.Context(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"mensaje": "usuario actualizado",
		"usuario": dto.NewUserResponse(user),
	})
}

// Delete handles DELETE /usuarios/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	if err := h.users.Delete(c.Context(), c.Params("id"), claims.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"mensaje": "usuario eliminado"})
}

// SaveAgentMetrics handles POST /usuarios/agentes: rename or create an
// agent and append a snapshot in one call.
func (h *UsersHandler) SaveAgentMetrics(c *fiber.Ctx) error {
	var req dto.SaveAgentMetricsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	agent, snapshot, err := h.users.SaveAgentMetrics(c.Context(), service.SaveAgentMetricsInput{
		AgentID: req.ID,
		Name:    req.Nombre,
		Values:  req.Values(),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"mensaje":  "agente y métricas guardados",
		"agente":   dto.NewUserResponse(agent),
		"metricas": dto.NewMetricResponse(snapshot),
	})
}
