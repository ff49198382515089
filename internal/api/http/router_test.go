package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httpapi "github.com/spec-kit/metricas-service/internal/api/http"
	"github.com/spec-kit/metricas-service/internal/api/http/handlers"
	"github.com/spec-kit/metricas-service/internal/auth"
	"github.com/spec-kit/metricas-service/internal/config"
	"github.com/spec-kit/metricas-service/internal/domain"
	"github.com/spec-kit/metricas-service/internal/observability"
	"github.com/spec-kit/metricas-service/internal/repository"
	"github.com/spec-kit/metricas-service/internal/service"
)

// memStore is an in-memory stand-in for both repositories, enough to
// drive the full HTTP stack without Postgres.
type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	snaps []*domain.MetricSnapshot
	seq   int64
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*domain.User)}
}

func (s *memStore) tick() time.Time {
	s.seq++
	return time.Unix(1700000000, 0).Add(time.Duration(s.seq) * time.Second).UTC()
}

func (s *memStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.tick()
	user.CreatedAt, user.UpdatedAt = now, now
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *memStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = s.tick()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool {
		return strings.EqualFold(u.Email, email)
	})
}

func (s *memStore) GetByName(_ context.Context, name string) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool {
		return strings.EqualFold(u.Name, name)
	})
}

func (s *memStore) findUser(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if match(user) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Role != users[j].Role {
			return users[i].Role < users[j].Role
		}
		return users[i].Name < users[j].Name
	})
	return users, nil
}

func (s *memStore) CountByRole(_ context.Context, role domain.Role) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, user := range s.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.users, id)
	kept := s.snaps[:0]
	for _, snap := range s.snaps {
		if snap.AgentID != id {
			kept = append(kept, snap)
		}
	}
	s.snaps = kept
	return nil
}

func (s *memStore) createSnapshot(snapshot *domain.MetricSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	now := s.tick()
	snapshot.CreatedAt, snapshot.UpdatedAt = now, now
	if agent, ok := s.users[snapshot.AgentID]; ok {
		snapshot.AgentName = agent.Name
		snapshot.AgentEmail = agent.Email
	}
	clone := *snapshot
	s.snaps = append(s.snaps, &clone)
	return nil
}

func (s *memStore) snapshotsNewestFirst(agentID string) []domain.MetricSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MetricSnapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		if agentID == "" || snap.AgentID == agentID {
			out = append(out, *snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// metricMem adapts memStore to repository.MetricRepository; the method
// sets of the two repositories collide on names.
type metricMem struct {
	store *memStore
}

func (m metricMem) Create(_ context.Context, snapshot *domain.MetricSnapshot) error {
	return m.store.createSnapshot(snapshot)
}

func (m metricMem) GetByID(_ context.Context, id string) (*domain.MetricSnapshot, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, snap := range m.store.snaps {
		if snap.ID == id {
			clone := *snap
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m metricMem) ListAll(_ context.Context) ([]domain.MetricSnapshot, error) {
	return m.store.snapshotsNewestFirst(""), nil
}

func (m metricMem) ListByAgent(_ context.Context, agentID string) ([]domain.MetricSnapshot, error) {
	return m.store.snapshotsNewestFirst(agentID), nil
}

func (m metricMem) UpdatePartial(_ context.Context, id string, update repository.MetricUpdate) (*domain.MetricSnapshot, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, snap := range m.store.snaps {
		if snap.ID != id {
			continue
		}
		v := &snap.Values
		if update.TMO != nil {
			v.TMO = *update.TMO
		}
		if update.TransComercial != nil {
			v.TransComercial = *update.TransComercial
		}
		if update.TransRetencion != nil {
			v.TransRetencion = *update.TransRetencion
		}
		if update.ISN != nil {
			v.ISN = *update.ISN
		}
		if update.EPASatisfaccion != nil {
			v.EPASatisfaccion = *update.EPASatisfaccion
		}
		if update.EPAResolucion != nil {
			v.EPAResolucion = *update.EPAResolucion
		}
		if update.EPATrato != nil {
			v.EPATrato = *update.EPATrato
		}
		if update.VisitasTecnicas != nil {
			v.VisitasTecnicas = *update.VisitasTecnicas
		}
		snap.UpdatedAt = m.store.tick()
		clone := *snap
		return &clone, nil
	}
	return nil, pgx.ErrNoRows
}

func (m metricMem) Delete(_ context.Context, id string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for i, snap := range m.store.snaps {
		if snap.ID == id {
			m.store.snaps = append(m.store.snaps[:i], m.store.snaps[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m metricMem) GlobalAverage(_ context.Context) (*domain.AggregateMetrics, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	agg := &domain.AggregateMetrics{}
	if len(m.store.snaps) == 0 {
		return agg, nil
	}
	for _, snap := range m.store.snaps {
		agg.TMO += float64(snap.Values.TMO)
		agg.TransComercial += snap.Values.TransComercial
		agg.TransRetencion += snap.Values.TransRetencion
		agg.ISN += snap.Values.ISN
		agg.EPASatisfaccion += snap.Values.EPASatisfaccion
		agg.EPAResolucion += snap.Values.EPAResolucion
		agg.EPATrato += snap.Values.EPATrato
		agg.VisitasTecnicas += snap.Values.VisitasTecnicas
	}
	n := float64(len(m.store.snaps))
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

func (m metricMem) InsertForAllAgents(_ context.Context, values domain.MetricValues) ([]domain.MetricSnapshot, error) {
	agents := m.agentsByName()
	created := make([]domain.MetricSnapshot, 0, len(agents))
	for _, agent := range agents {
		snapshot := domain.MetricSnapshot{AgentID: agent.ID, Values: values}
		if err := m.store.createSnapshot(&snapshot); err != nil {
			return nil, err
		}
		created = append(created, snapshot)
	}
	return created, nil
}

func (m metricMem) AgentsWithLatest(_ context.Context) ([]domain.AgentOverview, error) {
	agents := m.agentsByName()
	overviews := make([]domain.AgentOverview, 0, len(agents))
	for _, agent := range agents {
		overview := domain.AgentOverview{
			ID:        agent.ID,
			Name:      agent.Name,
			Email:     agent.Email,
			Role:      agent.Role,
			CreatedAt: agent.CreatedAt,
		}
		if snaps := m.store.snapshotsNewestFirst(agent.ID); len(snaps) > 0 {
			overview.Current = snaps[0].Values
		}
		overviews = append(overviews, overview)
	}
	return overviews, nil
}

func (m metricMem) agentsByName() []domain.User {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	agents := make([]domain.User, 0)
	for _, user := range m.store.users {
		if user.Role == domain.RoleAgent {
			agents = append(agents, *user)
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents
}

type noopCache struct{}

func (noopCache) Get(context.Context) (*domain.AggregateMetrics, bool) { return nil, false }
func (noopCache) Set(context.Context, *domain.AggregateMetrics)       {}
func (noopCache) Invalidate(context.Context)                          {}

func newTestApp(t *testing.T) (*fiber.App, *memStore) {
	t.Helper()
	store := newMemStore()
	metrics := metricMem{store: store}
	logger := zap.NewNop()
	cache := noopCache{}
	dirCfg := config.DirectoryConfig{
		AllowedEmailDomains:  []string{"telecentro.com.ar", "telecentro.com"},
		DefaultAgentPassword: "agente123",
	}

	userService := service.NewUserService(store, metrics, cache, dirCfg, bcrypt.MinCost, logger)
	metricService := service.NewMetricService(metrics, store, cache)
	tokenMgr := auth.NewTokenManager("router-test-secret", time.Hour)
	authService := service.NewAuthService(store, userService, tokenMgr)

	app := fiber.New()
	httpapi.RegisterMiddlewares(app, logger, observability.NewMetrics(), 0)
	httpapi.RegisterRoutes(app, httpapi.RouteConfig{
		Health:         handlers.NewHealthHandler("metricas-service", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService, metricService),
		Metrics:        handlers.NewMetricsHandler(metricService),
		AuthMiddleware: auth.NewMiddleware(tokenMgr),
	})
	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func registerAndLogin(t *testing.T, app *fiber.App, name, email, password, role string) (token, id string) {
	t.Helper()
	status, _ := doJSON(t, app, stdhttp.MethodPost, "/auth/registrar", "", fiber.Map{
		"nombre": name, "email": email, "password": password, "rol": role,
	})
	require.Equal(t, stdhttp.StatusCreated, status)

	status, body := doJSON(t, app, stdhttp.MethodPost, "/auth/login", "", fiber.Map{
		"email": email, "password": password,
	})
	require.Equal(t, stdhttp.StatusOK, status)
	token, _ = body["token"].(string)
	require.NotEmpty(t, token)
	usuario, _ := body["usuario"].(map[string]any)
	require.NotNil(t, usuario)
	id, _ = usuario["id"].(string)
	require.NotEmpty(t, id)
	return token, id
}

func TestMetricsLifecycleOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	supToken, _ := registerAndLogin(t, app, "Jefa Lopez", "jefa.lopez@telecentro.com", "superclave", "supervisor")
	agToken, agentID := registerAndLogin(t, app, "Ana Perez", "ana.perez@telecentro.com", "secreta1", "agente")

	status, body := doJSON(t, app, stdhttp.MethodPost, "/metricas", supToken, fiber.Map{
		"agente_id": agentID, "tmo": 300, "isn": 80.5,
	})
	require.Equal(t, stdhttp.StatusCreated, status)
	created, _ := body["metricas"].(map[string]any)
	require.NotNil(t, created)
	snapshotID, _ := created["id"].(string)
	require.NotEmpty(t, snapshotID)
	assert.Equal(t, float64(300), created["tmo"])

	// Registration seeds a zero snapshot, so the agent now sees two.
	status, body = doJSON(t, app, stdhttp.MethodGet, "/metricas", agToken, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, float64(2), body["cantidad"])
	items, _ := body["metricas"].([]any)
	require.Len(t, items, 2)
	newest, _ := items[0].(map[string]any)
	assert.Equal(t, float64(300), newest["tmo"])
	assert.Equal(t, "Ana Perez", newest["nombre_agente"])

	status, body = doJSON(t, app, stdhttp.MethodPut, "/metricas/"+snapshotID, supToken, fiber.Map{
		"tmo": 250,
	})
	require.Equal(t, stdhttp.StatusOK, status)
	updated, _ := body["metricas"].(map[string]any)
	assert.Equal(t, float64(250), updated["tmo"])
	assert.Equal(t, 80.5, updated["isn"])

	status, _ = doJSON(t, app, stdhttp.MethodDelete, "/metricas/"+snapshotID, supToken, nil)
	require.Equal(t, stdhttp.StatusOK, status)

	status, body = doJSON(t, app, stdhttp.MethodGet, "/metricas", agToken, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, float64(1), body["cantidad"])
}

func TestRouteAuthenticationAndRoleGates(t *testing.T) {
	app, _ := newTestApp(t)

	supToken, supID := registerAndLogin(t, app, "Jefa Lopez", "jefa.lopez@telecentro.com", "superclave", "supervisor")
	agToken, agentID := registerAndLogin(t, app, "Ana Perez", "ana.perez@telecentro.com", "secreta1", "agente")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"no token on metrics", stdhttp.MethodGet, "/metricas", "", nil, stdhttp.StatusUnauthorized},
		{"garbage token", stdhttp.MethodGet, "/metricas", "not.a.jwt", nil, stdhttp.StatusUnauthorized},
		{"agent cannot record", stdhttp.MethodPost, "/metricas", agToken, fiber.Map{"agente_id": agentID, "tmo": 1}, stdhttp.StatusForbidden},
		{"agent cannot list users", stdhttp.MethodGet, "/usuarios", agToken, nil, stdhttp.StatusForbidden},
		{"agent cannot delete users", stdhttp.MethodDelete, "/usuarios/" + supID, agToken, nil, stdhttp.StatusForbidden},
		{"agent cannot apply globals", stdhttp.MethodPost, "/metricas/global", agToken, fiber.Map{"tmo": 1}, stdhttp.StatusForbidden},
		{"agent reads own metrics", stdhttp.MethodGet, "/metricas", agToken, nil, stdhttp.StatusOK},
		{"agent reads agent roster", stdhttp.MethodGet, "/usuarios/agentes", agToken, nil, stdhttp.StatusOK},
		{"supervisor lists users", stdhttp.MethodGet, "/usuarios", supToken, nil, stdhttp.StatusOK},
		{"health is public", stdhttp.MethodGet, "/health/live", "", nil, stdhttp.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := doJSON(t, app, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestGlobalValuesFanOutOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	supToken, _ := registerAndLogin(t, app, "Jefa Lopez", "jefa.lopez@telecentro.com", "superclave", "supervisor")
	_, anaID := registerAndLogin(t, app, "Ana Perez", "ana.perez@telecentro.com", "secreta1", "agente")
	_, brunoID := registerAndLogin(t, app, "Bruno Diaz", "bruno.diaz@telecentro.com", "secreta1", "agente")

	status, body := doJSON(t, app, stdhttp.MethodPost, "/metricas/global", supToken, fiber.Map{
		"tmo": 280, "isn": 75.0,
	})
	require.Equal(t, stdhttp.StatusCreated, status)
	items, _ := body["metricas"].([]any)
	require.Len(t, items, 2)

	agentIDs := map[string]bool{}
	for _, item := range items {
		snap, _ := item.(map[string]any)
		assert.Equal(t, float64(280), snap["tmo"])
		if id, ok := snap["agente_id"].(string); ok {
			agentIDs[id] = true
		}
	}
	assert.True(t, agentIDs[anaID])
	assert.True(t, agentIDs[brunoID])

	status, body = doJSON(t, app, stdhttp.MethodGet, "/metricas/global", supToken, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	agg, _ := body["metricas"].(map[string]any)
	require.NotNil(t, agg)
	// Two zero seed snapshots plus two fan-out snapshots at tmo 280.
	assert.Equal(t, float64(140), agg["tmo"])
}

func TestDuplicateRegistrationOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	registerAndLogin(t, app, "Ana Perez", "ana.perez@telecentro.com", "secreta1", "agente")

	status, body := doJSON(t, app, stdhttp.MethodPost, "/auth/registrar", "", fiber.Map{
		"nombre": "Otra Ana", "email": "ANA.PEREZ@telecentro.com", "password": "secreta1",
	})
	require.Equal(t, stdhttp.StatusBadRequest, status)
	errBody, _ := body["error"].(map[string]any)
	require.NotNil(t, errBody)
	assert.Equal(t, "CONFLICT", errBody["code"])
}

func TestLoginRejectsBadCredentialsOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	registerAndLogin(t, app, "Ana Perez", "ana.perez@telecentro.com", "secreta1", "agente")

	for _, creds := range []fiber.Map{
		{"email": "ana.perez@telecentro.com", "password": "wrong"},
		{"email": "nadie@telecentro.com", "password": "secreta1"},
	} {
		status, body := doJSON(t, app, stdhttp.MethodPost, "/auth/login", "", creds)
		assert.Equal(t, stdhttp.StatusUnauthorized, status, fmt.Sprintf("creds %v", creds))
		errBody, _ := body["error"].(map[string]any)
		require.NotNil(t, errBody)
		assert.Equal(t, "UNAUTHORIZED", errBody["code"])
	}
}
