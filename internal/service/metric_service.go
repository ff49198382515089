package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/metricas-service/internal/domain"
	"github.com/spec-kit/metricas-service/internal/repository"
	apperrors "github.com/spec-kit/metricas-service/pkg/util"
)

// AggregateCache caches the team-wide average between reads. A nil
// cache disables caching entirely.
type AggregateCache interface {
	Get(ctx context.Context) (*domain.AggregateMetrics, bool)
	Set(ctx context.Context, agg *domain.AggregateMetrics)
	Invalidate(ctx context.Context)
}

// MetricService is the metrics store: per-agent snapshots plus the two
// team-wide operations, which are deliberately kept distinct. The
// history-wide average reads every snapshot ever written; the bulk
// baseline writes one fresh snapshot per agent.
type MetricService struct {
	metrics repository.MetricRepository
	users   repository.UserRepository
	cache   AggregateCache
}

// NewMetricService builds the service.
func NewMetricService(metrics repository.MetricRepository, users repository.UserRepository, cache AggregateCache) *MetricService {
	return &MetricService{metrics: metrics, users: users, cache: cache}
}

// Record stores a new snapshot for the given agent. Fields absent from
// the submission stay zero; values are not range-checked.
func (s *MetricService) Record(ctx context.Context, agentID string, values domain.MetricValues) (*domain.MetricSnapshot, error) {
	if agentID == "" {
		return nil, apperrors.NewValidationError("agent id required", nil)
	}

	agent, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if agent.Role != domain.RoleAgent {
		return nil, apperrors.NewNotFound("agent", map[string]any{"id": agentID})
	}

	snapshot := &domain.MetricSnapshot{
		AgentID:    agentID,
		AgentName:  agent.Name,
		AgentEmail: agent.Email,
		Values:     values,
	}
	if err := s.metrics.Create(ctx, snapshot); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidate(ctx)
	return snapshot, nil
}

// ListFor returns snapshots scoped by the caller's role: a supervisor
// sees everyone's history, an agent only their own. Both orders are
// newest first.
func (s *MetricService) ListFor(ctx context.Context, callerID string, role domain.Role) ([]domain.MetricSnapshot, error) {
	var (
		snapshots []domain.MetricSnapshot
		err       error
	)
	if role == domain.RoleSupervisor {
		snapshots, err = s.metrics.ListAll(ctx)
	} else {
		snapshots, err = s.metrics.ListByAgent(ctx, callerID)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return snapshots, nil
}

// Update applies a partial correction to an existing snapshot.
func (s *MetricService) Update(ctx context.Context, id string, update repository.MetricUpdate) (*domain.MetricSnapshot, error) {
	snapshot, err := s.metrics.UpdatePartial(ctx, id, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("metric", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	s.invalidate(ctx)
	return snapshot, nil
}

// Delete removes a snapshot.
func (s *MetricService) Delete(ctx context.Context, id string) error {
	if err := s.metrics.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("metric", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}
	s.invalidate(ctx)
	return nil
}

// GlobalAverage computes the per-field mean over the entire snapshot
// history. With no snapshots at all it returns zeros, never an error.
func (s *MetricService) GlobalAverage(ctx context.Context) (*domain.AggregateMetrics, error) {
	if s.cache != nil {
		if agg, ok := s.cache.Get(ctx); ok {
			return agg, nil
		}
	}

	agg, err := s.metrics.GlobalAverage(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, agg)
	}
	return agg, nil
}

// ApplyGlobalValues writes one new snapshot carrying the given values
// for every agent, atomically. It is not the inverse of GlobalAverage:
// it seeds a baseline rather than touching existing rows.
func (s *MetricService) ApplyGlobalValues(ctx context.Context, values domain.MetricValues) ([]domain.MetricSnapshot, error) {
	created, err := s.metrics.InsertForAllAgents(ctx, values)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(created) == 0 {
		return nil, apperrors.NewNotFound("agents", nil)
	}
	s.invalidate(ctx)
	return created, nil
}

// AgentsWithCurrent lists every agent with their latest snapshot
// values, zero-valued for agents without history.
func (s *MetricService) AgentsWithCurrent(ctx context.Context) ([]domain.AgentOverview, error) {
	agents, err := s.metrics.AgentsWithLatest(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// CurrentPerAgent maps each agent id to their latest snapshot values.
func (s *MetricService) CurrentPerAgent(ctx context.Context) (map[string]domain.MetricValues, error) {
	agents, err := s.AgentsWithCurrent(ctx)
	if err != nil {
		return nil, err
	}
	current := make(map[string]domain.MetricValues, len(agents))
	for _, agent := range agents {
		current[agent.ID] = agent.Current
	}
	return current, nil
}

func (s *MetricService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
