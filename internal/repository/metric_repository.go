package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/metricas-service/internal/domain"
)

// MetricUpdate carries a partial snapshot update. Nil fields keep their
// stored values (COALESCE semantics).
type MetricUpdate struct {
	TMO             *int
	TransComercial  *float64
	TransRetencion  *float64
	ISN             *float64
	EPASatisfaccion *float64
	EPAResolucion   *float64
	EPATrato        *float64
	VisitasTecnicas *float64
}

// MetricRepository defines persistence access for metric snapshots.
type MetricRepository interface {
	Create(ctx context.Context, snapshot *domain.MetricSnapshot) error
	GetByID(ctx context.Context, id string) (*domain.MetricSnapshot, error)
	ListAll(ctx context.Context) ([]domain.MetricSnapshot, error)
	ListByAgent(ctx context.Context, agentID string) ([]domain.MetricSnapshot, error)
	UpdatePartial(ctx context.Context, id string, update MetricUpdate) (*domain.MetricSnapshot, error)
	Delete(ctx context.Context, id string) error
	GlobalAverage(ctx context.Context) (*domain.AggregateMetrics, error)
	InsertForAllAgents(ctx context.Context, values domain.MetricValues) ([]domain.MetricSnapshot, error)
	AgentsWithLatest(ctx context.Context) ([]domain.AgentOverview, error)
}

type metricRepository struct {
	db Querier
}

// NewMetricRepository returns a Postgres-backed implementation.
func NewMetricRepository(db Querier) MetricRepository {
	return &metricRepository{db: db}
}

const snapshotColumns = `m.id, m.agente_id, m.tmo, m.trans_comercial, m.trans_retencion, m.isn,
        m.epa_satisfaccion, m.epa_resolucion, m.epa_trato, m.visitas_tecnicas, m.created_at, m.updated_at`

func (r *metricRepository) Create(ctx context.Context, snapshot *domain.MetricSnapshot) error {
	const query = `
        INSERT INTO metricas (id, agente_id, tmo, trans_comercial, trans_retencion, isn,
            epa_satisfaccion, epa_resolucion, epa_trato, visitas_tecnicas)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at, updated_at`

	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	v := snapshot.Values
	return r.db.QueryRow(ctx, query,
		snapshot.ID,
		snapshot.AgentID,
		v.TMO,
		v.TransComercial,
		v.TransRetencion,
		v.ISN,
		v.EPASatisfaccion,
		v.EPAResolucion,
		v.EPATrato,
		v.VisitasTecnicas,
	).Scan(&snapshot.CreatedAt, &snapshot.UpdatedAt)
}

func (r *metricRepository) GetByID(ctx context.Context, id string) (*domain.MetricSnapshot, error) {
	const query = `
        SELECT ` + snapshotColumns + `
        FROM metricas m WHERE m.id=$1`

	var snapshot domain.MetricSnapshot
	if err := scanSnapshot(r.db.QueryRow(ctx, query, id), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *metricRepository) ListAll(ctx context.Context) ([]domain.MetricSnapshot, error) {
	const query = `
        SELECT ` + snapshotColumns + `, u.nombre, u.email
        FROM metricas m
        JOIN usuarios u ON m.agente_id = u.id
        ORDER BY m.created_at DESC`

	return r.queryJoined(ctx, query)
}

func (r *metricRepository) ListByAgent(ctx context.Context, agentID string) ([]domain.MetricSnapshot, error) {
	const query = `
        SELECT ` + snapshotColumns + `, u.nombre, u.email
        FROM metricas m
        JOIN usuarios u ON m.agente_id = u.id
        WHERE m.agente_id=$1
        ORDER BY m.created_at DESC`

	return r.queryJoined(ctx, query, agentID)
}

func (r *metricRepository) UpdatePartial(ctx context.Context, id string, update MetricUpdate) (*domain.MetricSnapshot, error) {
	const query = `
        UPDATE metricas m
        SET tmo = COALESCE($1, tmo),
            trans_comercial = COALESCE($2, trans_comercial),
            trans_retencion = COALESCE($3, trans_retencion),
            isn = COALESCE($4, isn),
            epa_satisfaccion = COALESCE($5, epa_satisfaccion),
            epa_resolucion = COALESCE($6, epa_resolucion),
            epa_trato = COALESCE($7, epa_trato),
            visitas_tecnicas = COALESCE($8, visitas_tecnicas),
            updated_at = NOW()
        WHERE m.id=$9
        RETURNING ` + snapshotColumns

	var snapshot domain.MetricSnapshot
	err := scanSnapshot(r.db.QueryRow(ctx, query,
		update.TMO,
		update.TransComercial,
		update.TransRetencion,
		update.ISN,
		update.EPASatisfaccion,
		update.EPAResolucion,
		update.EPATrato,
		update.VisitasTecnicas,
		id,
	), &snapshot)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *metricRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM metricas WHERE id=$1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *metricRepository) GlobalAverage(ctx context.Context) (*domain.AggregateMetrics, error) {
	const query = `
        SELECT
            COALESCE(AVG(tmo), 0),
            COALESCE(AVG(trans_comercial), 0),
            COALESCE(AVG(trans_retencion), 0),
            COALESCE(AVG(isn), 0),
            COALESCE(AVG(epa_satisfaccion), 0),
            COALESCE(AVG(epa_resolucion), 0),
            COALESCE(AVG(epa_trato), 0),
            COALESCE(AVG(visitas_tecnicas), 0)
        FROM metricas`

	var agg domain.AggregateMetrics
	if err := r.db.QueryRow(ctx, query).Scan(
		&agg.TMO,
		&agg.TransComercial,
		&agg.TransRetencion,
		&agg.ISN,
		&agg.EPASatisfaccion,
		&agg.EPAResolucion,
		&agg.EPATrato,
		&agg.VisitasTecnicas,
	); err != nil {
		return nil, err
	}
	return &agg, nil
}

// InsertForAllAgents writes one snapshot per agent inside a single
// transaction, so a failure mid-loop leaves nothing applied.
func (r *metricRepository) InsertForAllAgents(ctx context.Context, values domain.MetricValues) ([]domain.MetricSnapshot, error) {
	const agentsQuery = `SELECT id, nombre, email FROM usuarios WHERE rol=$1 ORDER BY nombre`
	const insertQuery = `
        INSERT INTO metricas (id, agente_id, tmo, trans_comercial, trans_retencion, isn,
            epa_satisfaccion, epa_resolucion, epa_trato, visitas_tecnicas)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at, updated_at`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, agentsQuery, domain.RoleAgent)
	if err != nil {
		return nil, err
	}

	type agentRow struct {
		id, name, email string
	}
	agents := make([]agentRow, 0)
	for rows.Next() {
		var a agentRow
		if err := rows.Scan(&a.id, &a.name, &a.email); err != nil {
			rows.Close()
			return nil, err
		}
		agents = append(agents, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	created := make([]domain.MetricSnapshot, 0, len(agents))
	for _, agent := range agents {
		snapshot := domain.MetricSnapshot{
			ID:         uuid.NewString(),
			AgentID:    agent.id,
			AgentName:  agent.name,
			AgentEmail: agent.email,
			Values:     values,
		}
		if err := tx.QueryRow(ctx, insertQuery,
			snapshot.ID,
			snapshot.AgentID,
			values.TMO,
			values.TransComercial,
			values.TransRetencion,
			values.ISN,
			values.EPASatisfaccion,
			values.EPAResolucion,
			values.EPATrato,
			values.VisitasTecnicas,
		).Scan(&snapshot.CreatedAt, &snapshot.UpdatedAt); err != nil {
			return nil, err
		}
		created = append(created, snapshot)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *metricRepository) AgentsWithLatest(ctx context.Context) ([]domain.AgentOverview, error) {
	const query = `
        SELECT
            u.id, u.nombre, u.email, u.rol, u.created_at,
            COALESCE(m.tmo, 0),
            COALESCE(m.trans_comercial, 0),
            COALESCE(m.trans_retencion, 0),
            COALESCE(m.isn, 0),
            COALESCE(m.epa_satisfaccion, 0),
            COALESCE(m.epa_resolucion, 0),
            COALESCE(m.epa_trato, 0),
            COALESCE(m.visitas_tecnicas, 0)
        FROM usuarios u
        LEFT JOIN LATERAL (
            SELECT * FROM metricas
            WHERE agente_id = u.id
            ORDER BY created_at DESC
            LIMIT 1
        ) m ON true
        WHERE u.rol = $1
        ORDER BY u.nombre`

	rows, err := r.db.Query(ctx, query, domain.RoleAgent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]domain.AgentOverview, 0)
	for rows.Next() {
		var overview domain.AgentOverview
		if err := rows.Scan(
			&overview.ID,
			&overview.Name,
			&overview.Email,
			&overview.Role,
			&overview.CreatedAt,
			&overview.Current.TMO,
			&overview.Current.TransComercial,
			&overview.Current.TransRetencion,
			&overview.Current.ISN,
			&overview.Current.EPASatisfaccion,
			&overview.Current.EPAResolucion,
			&overview.Current.EPATrato,
			&overview.Current.VisitasTecnicas,
		); err != nil {
			return nil, err
		}
		agents = append(agents, overview)
	}
	return agents, rows.Err()
}

func (r *metricRepository) queryJoined(ctx context.Context, query string, args ...any) ([]domain.MetricSnapshot, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.MetricSnapshot, 0)
	for rows.Next() {
		var snapshot domain.MetricSnapshot
		if err := scanSnapshotJoined(rows, &snapshot); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

func scanSnapshot(row pgx.Row, snapshot *domain.MetricSnapshot) error {
	return row.Scan(
		&snapshot.ID,
		&snapshot.AgentID,
		&snapshot.Values.TMO,
		&snapshot.Values.TransComercial,
		&snapshot.Values.TransRetencion,
		&snapshot.Values.ISN,
		&snapshot.Values.EPASatisfaccion,
		&snapshot.Values.EPAResolucion,
		&snapshot.Values.EPATrato,
		&snapshot.Values.VisitasTecnicas,
		&snapshot.CreatedAt,
		&snapshot.UpdatedAt,
	)
}

func scanSnapshotJoined(row pgx.Row, snapshot *domain.MetricSnapshot) error {
	return row.Scan(
		&snapshot.ID,
		&snapshot.AgentID,
		&snapshot.Values.TMO,
		&snapshot.Values.TransComercial,
		&snapshot.Values.TransRetencion,
		&snapshot.Values.ISN,
		&snapshot.Values.EPASatisfaccion,
		&snapshot.Values.EPAResolucion,
		&snapshot.Values.EPATrato,
		&snapshot.Values.VisitasTecnicas,
		&snapshot.CreatedAt,
		&snapshot.UpdatedAt,
		&snapshot.AgentName,
		&snapshot.AgentEmail,
	)
}
