package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/metricas-service/internal/domain"
	"github.com/spec-kit/metricas-service/internal/repository"
)

// fakeStore is an in-memory stand-in for both repositories, close
// enough to the SQL semantics to exercise the services: case-
// insensitive lookups, newest-first listings and the delete cascade.
type fakeStore struct {
	users     []*domain.User
	snapshots []*domain.MetricSnapshot
	seq       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) nextTime() time.Time {
	f.seq++
	return time.Unix(1700000000, 0).Add(time.Duration(f.seq) * time.Second)
}

// UserRepository

func (f *fakeStore) Create(_ context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := f.nextTime()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	f.users = append(f.users, &stored)
	return nil
}

func (f *fakeStore) Update(_ context.Context, user *domain.User) error {
	for _, stored := range f.users {
		if stored.ID == user.ID {
			user.UpdatedAt = f.nextTime()
			*stored = *user
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, stored := range f.users {
		if stored.ID == id {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, stored := range f.users {
		if strings.EqualFold(stored.Email, email) {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetByName(_ context.Context, name string) (*domain.User, error) {
	for _, stored := range f.users {
		if strings.EqualFold(stored.Name, name) {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(f.users))
	for _, stored := range f.users {
		out = append(out, *stored)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (f *fakeStore) CountByRole(_ context.Context, role domain.Role) (int, error) {
	count := 0
	for _, stored := range f.users {
		if stored.Role == role {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	for i, stored := range f.users {
		if stored.ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			kept := f.snapshots[:0]
			for _, snapshot := range f.snapshots {
				if snapshot.AgentID != id {
					kept = append(kept, snapshot)
				}
			}
			f.snapshots = kept
			return nil
		}
	}
	return pgx.ErrNoRows
}

// MetricRepository

func (f *fakeStore) CreateSnapshot(_ context.Context, snapshot *domain.MetricSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	now := f.nextTime()
	snapshot.CreatedAt = now
	snapshot.UpdatedAt = now
	stored := *snapshot
	f.snapshots = append(f.snapshots, &stored)
	return nil
}

func (f *fakeStore) GetSnapshotByID(_ context.Context, id string) (*domain.MetricSnapshot, error) {
	for _, stored := range f.snapshots {
		if stored.ID == id {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) ListAll(_ context.Context) ([]domain.MetricSnapshot, error) {
	return f.joined(func(*domain.MetricSnapshot) bool { return true }), nil
}

func (f *fakeStore) ListByAgent(_ context.Context, agentID string) ([]domain.MetricSnapshot, error) {
	return f.joined(func(s *domain.MetricSnapshot) bool { return s.AgentID == agentID }), nil
}

func (f *fakeStore) UpdatePartial(_ context.Context, id string, update repository.MetricUpdate) (*domain.MetricSnapshot, error) {
	for _, stored := range f.snapshots {
		if stored.ID != id {
			continue
		}
		if update.TMO != nil {
			stored.Values.TMO = *update.TMO
		}
		if update.TransComercial != nil {
			stored.Values.TransComercial = *update.TransComercial
		}
		if update.TransRetencion != nil {
			stored.Values.TransRetencion = *update.TransRetencion
		}
		if update.ISN != nil {
			stored.Values.ISN = *update.ISN
		}
		if update.EPASatisfaccion != nil {
			stored.Values.EPASatisfaccion = *update.EPASatisfaccion
		}
		if update.EPAResolucion != nil {
			stored.Values.EPAResolucion = *update.EPAResolucion
		}
		if update.EPATrato != nil {
			stored.Values.EPATrato = *update.EPATrato
		}
		if update.VisitasTecnicas != nil {
			stored.Values.VisitasTecnicas = *update.VisitasTecnicas
		}
		stored.UpdatedAt = f.nextTime()
		copied := *stored
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) DeleteSnapshot(_ context.Context, id string) error {
	for i, stored := range f.snapshots {
		if stored.ID == id {
			f.snapshots = append(f.snapshots[:i], f.snapshots[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeStore) GlobalAverage(_ context.Context) (*domain.AggregateMetrics, error) {
	agg := &domain.AggregateMetrics{}
	if len(f.snapshots) == 0 {
		return agg, nil
	}
	for _, s := range f.snapshots {
		agg.TMO += float64(s.Values.TMO)
		agg.TransComercial += s.Values.TransComercial
		agg.TransRetencion += s.Values.TransRetencion
		agg.ISN += s.Values.ISN
		agg.EPASatisfaccion += s.Values.EPASatisfaccion
		agg.EPAResolucion += s.Values.EPAResolucion
		agg.EPATrato += s.Values.EPATrato
		agg.VisitasTecnicas += s.Values.VisitasTecnicas
	}
	n := float64(len(f.snapshots))
	agg.TMO /= n
	agg.TransComercial /= n
	agg.TransRetencion /= n
	agg.ISN /= n
	agg.EPASatisfaccion /= n
	agg.EPAResolucion /= n
	agg.EPATrato /= n
	agg.VisitasTecnicas /= n
	return agg, nil
}

func (f *fakeStore) InsertForAllAgents(ctx context.Context, values domain.MetricValues) ([]domain.MetricSnapshot, error) {
	agents := f.agentsSorted()
	created := make([]domain.MetricSnapshot, 0, len(agents))
	for _, agent := range agents {
		snapshot := &domain.MetricSnapshot{
			AgentID:    agent.ID,
			AgentName:  agent.Name,
			AgentEmail: agent.Email,
			Values:     values,
		}
		if err := f.CreateSnapshot(ctx, snapshot); err != nil {
			return nil, err
		}
		created = append(created, *snapshot)
	}
	return created, nil
}

func (f *fakeStore) AgentsWithLatest(_ context.Context) ([]domain.AgentOverview, error) {
	agents := f.agentsSorted()
	out := make([]domain.AgentOverview, 0, len(agents))
	for _, agent := range agents {
		overview := domain.AgentOverview{
			ID:        agent.ID,
			Name:      agent.Name,
			Email:     agent.Email,
			Role:      agent.Role,
			CreatedAt: agent.CreatedAt,
		}
		for _, snapshot := range f.snapshots {
			if snapshot.AgentID == agent.ID {
				overview.Current = snapshot.Values
			}
		}
		out = append(out, overview)
	}
	return out, nil
}

func (f *fakeStore) agentsSorted() []*domain.User {
	agents := make([]*domain.User, 0)
	for _, stored := range f.users {
		if stored.Role == domain.RoleAgent {
			agents = append(agents, stored)
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents
}

func (f *fakeStore) joined(keep func(*domain.MetricSnapshot) bool) []domain.MetricSnapshot {
	out := make([]domain.MetricSnapshot, 0)
	for i := len(f.snapshots) - 1; i >= 0; i-- {
		snapshot := f.snapshots[i]
		if !keep(snapshot) {
			continue
		}
		copied := *snapshot
		for _, user := range f.users {
			if user.ID == copied.AgentID {
				copied.AgentName = user.Name
				copied.AgentEmail = user.Email
			}
		}
		out = append(out, copied)
	}
	return out
}

// metricRepoAdapter renames the snapshot methods onto the
// repository.MetricRepository interface, which shares method names
// with UserRepository.
type metricRepoAdapter struct {
	*fakeStore
}

func (a metricRepoAdapter) Create(ctx context.Context, snapshot *domain.MetricSnapshot) error {
	return a.CreateSnapshot(ctx, snapshot)
}

func (a metricRepoAdapter) GetByID(ctx context.Context, id string) (*domain.MetricSnapshot, error) {
	return a.GetSnapshotByID(ctx, id)
}

func (a metricRepoAdapter) Delete(ctx context.Context, id string) error {
	return a.DeleteSnapshot(ctx, id)
}

// fakeCache records aggregate cache traffic.
type fakeCache struct {
	stored        *domain.AggregateMetrics
	invalidations int
}

func (c *fakeCache) Get(context.Context) (*domain.AggregateMetrics, bool) {
	if c.stored == nil {
		return nil, false
	}
	return c.stored, true
}

func (c *fakeCache) Set(_ context.Context, agg *domain.AggregateMetrics) {
	c.stored = agg
}

func (c *fakeCache) Invalidate(context.Context) {
	c.stored = nil
	c.invalidations++
}
