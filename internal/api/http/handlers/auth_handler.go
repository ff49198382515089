package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/metricas-service/internal/api/dto"
	"github.com/spec-kit/metricas-service/internal/domain"
	"github.com/spec-kit/metricas-service/internal/service"
	apperrors "github.com/spec-kit/metricas-service/pkg/util"
)

// AuthHandler exposes login and self-registration endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, _, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(dto.LoginResponse{
		Token:   token,
		Usuario: dto.NewUserResponse(user),
	})
}

// Register handles POST /auth/registrar.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Nombre == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("nombre, email and password required", nil)
	}

	user, err := h.auth.Register(c.Context(), service.CreateUserInput{
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
