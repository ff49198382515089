package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/metricas-service/internal/auth"
	"github.com/spec-kit/metricas-service/internal/config"
	"github.com/spec-kit/metricas-service/internal/domain"
	"github.com/spec-kit/metricas-service/internal/repository"
	apperrors "github.com/spec-kit/metricas-service/pkg/util"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CreateUserInput carries the fields required to create a user.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UpdateUserInput carries a partial user update. Nil fields are left
// unchanged.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *domain.Role
}

// SaveAgentMetricsInput combines an agent identity with a fresh
// snapshot, as submitted by the dashboard's bulk editor.
type SaveAgentMetricsInput struct {
	AgentID string
	Name    string
	Values  domain.MetricValues
}

// UserService is the user directory: it owns identity creation,
// lookup, mutation and deletion, and enforces uniqueness.
type UserService struct {
	users      repository.UserRepository
	metrics    repository.MetricRepository
	cache      AggregateCache
	directory  config.DirectoryConfig
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService builds the directory service.
func NewUserService(users repository.UserRepository, metrics repository.MetricRepository, cache AggregateCache, directory config.DirectoryConfig, bcryptCost int, logger *zap.Logger) *UserService {
	return &UserService{
		users:      users,
		metrics:    metrics,
		cache:      cache,
		directory:  directory,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Create validates and persists a new user. Creating an agent also
// writes an initial zero-valued snapshot so the agent's current
// metrics view is always defined.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	if len(name) < 2 {
		return nil, apperrors.NewValidationError("name must be at least 2 characters", nil)
	}
	if !emailPattern.MatchString(input.Email) {
		return nil, apperrors.NewValidationError("invalid email format", nil)
	}
	if !s.emailDomainAllowed(input.Email) {
		return nil, apperrors.NewValidationError(
			"email domain not allowed",
			map[string]any{"allowed_domains": s.directory.AllowedEmailDomains},
		)
	}
	if len(input.Password) < 6 {
		return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
	}
	if !input.Role.IsValid() {
		return nil, apperrors.NewValidationError("invalid role", nil)
	}

	if err := s.checkEmailFree(ctx, input.Email, ""); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	if user.Role == domain.RoleAgent {
		snapshot := &domain.MetricSnapshot{AgentID: user.ID}
		if err := s.metrics.Create(ctx, snapshot); err != nil {
			return nil, apperrors.MapError(err)
		}
		s.invalidateAggregate(ctx)
	}

	return user, nil
}

// GetByID looks up a single user.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// List returns every user ordered by role, then name.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Update applies a partial update. Email changes are re-checked for
// uniqueness and password changes are re-hashed.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if len(name) < 2 {
			return nil, apperrors.NewValidationError("name must be at least 2 characters", nil)
		}
		if !strings.EqualFold(name, user.Name) {
			if err := s.checkNameFree(ctx, name, user.ID); err != nil {
				return nil, err
			}
		}
		user.Name = name
	}
	if input.Email != nil {
		email := *input.Email
		if !emailPattern.MatchString(email) {
			return nil, apperrors.NewValidationError("invalid email format", nil)
		}
		if !strings.EqualFold(email, user.Email) {
			if err := s.checkEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
		}
		user.Email = email
	}
	if input.Password != nil {
		if len(*input.Password) < 6 {
			return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
		}
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		user.PasswordHash = hash
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, apperrors.NewValidationError("invalid role", nil)
		}
		user.Role = *input.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Delete removes a user and, through the store's cascade, every
// snapshot recorded for them. Callers can never delete themselves.
func (s *UserService) Delete(ctx context.Context, id, callerID string) error {
	if id == callerID {
		return apperrors.NewValidationError("cannot delete your own user", nil)
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}
	s.invalidateAggregate(ctx)
	return nil
}

// SaveAgentMetrics renames or creates an agent and appends a snapshot
// in one call, backing the dashboard's combined agent editor. A new
// agent gets a generated organizational email and the configured
// default password.
func (s *UserService) SaveAgentMetrics(ctx context.Context, input SaveAgentMetricsInput) (*domain.User, *domain.MetricSnapshot, error) {
	var agent *domain.User

	if input.AgentID != "" {
		existing, err := s.users.GetByID(ctx, input.AgentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, apperrors.NewNotFound("agent", map[string]any{"id": input.AgentID})
			}
			return nil, nil, apperrors.MapError(err)
		}
		if existing.Role != domain.RoleAgent {
			return nil, nil, apperrors.NewNotFound("agent", map[string]any{"id": input.AgentID})
		}
		if name := strings.TrimSpace(input.Name); name != "" && name != existing.Name {
			existing.Name = name
			if err := s.users.Update(ctx, existing); err != nil {
				return nil, nil, apperrors.MapError(err)
			}
		}
		agent = existing
	} else {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			name = fmt.Sprintf("Agente_%d", time.Now().UnixMilli())
		}
		created, err := s.Create(ctx, CreateUserInput{
			Name:     name,
			Email:    s.generatedAgentEmail(name),
			Password: s.directory.DefaultAgentPassword,
			Role:     domain.RoleAgent,
		})
		if err != nil {
			return nil, nil, err
		}
		agent = created
	}

	snapshot := &domain.MetricSnapshot{AgentID: agent.ID, Values: input.Values}
	if err := s.metrics.Create(ctx, snapshot); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	s.invalidateAggregate(ctx)
	return agent, snapshot, nil
}

// EnsureDefaultSupervisor seeds the configured supervisor account when
// the directory holds no supervisor at all. Without it a fresh install
// has no account able to create others.
func (s *UserService) EnsureDefaultSupervisor(ctx context.Context) error {
	if !s.directory.SeedDefaultSupervisor || s.directory.DefaultSupervisorPass == "" {
		return nil
	}

	count, err := s.users.CountByRole(ctx, domain.RoleSupervisor)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(s.directory.DefaultSupervisorPass, s.bcryptCost)
	if err != nil {
		return apperrors.MapError(err)
	}
	user := &domain.User{
		Name:         s.directory.DefaultSupervisorName,
		Email:        s.directory.DefaultSupervisorEmail,
		PasswordHash: hash,
		Role:         domain.RoleSupervisor,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("seeded default supervisor", zap.String("email", user.Email))
	return nil
}

func (s *UserService) emailDomainAllowed(email string) bool {
	lowered := strings.ToLower(email)
	for _, domainName := range s.directory.AllowedEmailDomains {
		if strings.HasSuffix(lowered, "@"+domainName) {
			return true
		}
	}
	return false
}

func (s *UserService) generatedAgentEmail(name string) string {
	local := strings.ToLower(strings.Join(strings.Fields(name), "."))
	domainName := "example.com"
	if len(s.directory.AllowedEmailDomains) > 0 {
		domainName = s.directory.AllowedEmailDomains[0]
	}
	return local + "@" + domainName
}

func (s *UserService) checkEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if existing.ID == selfID {
		return nil
	}
	return apperrors.NewConflict("email already registered", nil)
}

func (s *UserService) checkNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.users.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if existing.ID == selfID {
		return nil
	}
	return apperrors.NewConflict("name already registered", nil)
}

func (s *UserService) invalidateAggregate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
