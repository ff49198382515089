package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/metricas-service/internal/auth"
	"github.com/spec-kit/metricas-service/internal/domain"
	"github.com/spec-kit/metricas-service/internal/repository"
	apperrors "github.com/spec-kit/metricas-service/pkg/util"
)

// AuthService coordinates login and self-registration flows.
type AuthService struct {
	users     repository.UserRepository
	directory *UserService
	tokenMgr  *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(users repository.UserRepository, directory *UserService, tokenMgr *auth.TokenManager) *AuthService {
	return &AuthService{users: users, directory: directory, tokenMgr: tokenMgr}
}

// Login authenticates by email and password and issues a session token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	if email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("email and password required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}

// Register creates an account through the directory. A missing role
// defaults to agente; supervisors are only created when asked for
// explicitly.
func (s *AuthService) Register(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if input.Role == "" {
		input.Role = domain.RoleAgent
	}
	return s.directory.Create(ctx, input)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
