package dto

import (
	"time"

	"github.com/spec-kit/metricas-service/internal/domain"
	"github.com/spec-kit/metricas-service/internal/repository"
)

// MetricFields carries submitted snapshot values. Absent fields decode
// to zero, which is exactly the stored default.
type MetricFields struct {
	TMO             int     `json:"tmo"`
	TransComercial  float64 `json:"trans_comercial"`
	TransRetencion  float64 `json:"trans_retencion"`
	ISN             float64 `json:"isn"`
	EPASatisfaccion float64 `json:"epa_satisfaccion"`
	EPAResolucion   float64 `json:"epa_resolucion"`
	EPATrato        float64 `json:"epa_trato"`
	VisitasTecnicas float64 `json:"visitas_tecnicas"`
}

// Values converts the payload to domain metric values.
func (f MetricFields) Values() domain.MetricValues {
	return domain.MetricValues{
		TMO:             f.TMO,
		TransComercial:  f.TransComercial,
		TransRetencion:  f.TransRetencion,
		ISN:             f.ISN,
		EPASatisfaccion: f.EPASatisfaccion,
		EPAResolucion:   f.EPAResolucion,
		EPATrato:        f.EPATrato,
		VisitasTecnicas: f.VisitasTecnicas,
	}
}

// CreateMetricRequest payload for POST /metricas.
type CreateMetricRequest struct {
	AgenteID string `json:"agente_id"`
	MetricFields
}

// UpdateMetricRequest payload for PUT /metricas/:id. Nil fields keep
// their stored values.
type UpdateMetricRequest struct {
	TMO             *int     `json:"tmo"`
	TransComercial  *float64 `json:"trans_comercial"`
	TransRetencion  *float64 `json:"trans_retencion"`
	ISN             *float64 `json:"isn"`
	EPASatisfaccion *float64 `json:"epa_satisfaccion"`
	EPAResolucion   *float64 `json:"epa_resolucion"`
	EPATrato        *float64 `json:"epa_trato"`
	VisitasTecnicas *float64 `json:"visitas_tecnicas"`
}

// Update converts the payload to a repository partial update.
func (r UpdateMetricRequest) Update() repository.MetricUpdate {
	return repository.MetricUpdate{
		TMO:             r.TMO,
		TransComercial:  r.TransComercial,
		TransRetencion:  r.TransRetencion,
		ISN:             r.ISN,
		EPASatisfaccion: r.EPASatisfaccion,
		EPAResolucion:   r.EPAResolucion,
		EPATrato:        r.EPATrato,
		VisitasTecnicas: r.VisitasTecnicas,
	}
}

// SaveAgentMetricsRequest payload for POST /usuarios/agentes.
type SaveAgentMetricsRequest struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
	MetricFields
}

// MetricResponse is one snapshot on the wire. Agent name and email are
// present on supervisor-scoped reads.
type MetricResponse struct {
	ID              string    `json:"id"`
	AgenteID        string    `json:"agente_id"`
	NombreAgente    string    `json:"nombre_agente,omitempty"`
	EmailAgente     string    `json:"email_agente,omitempty"`
	TMO             int       `json:"tmo"`
	TransComercial  float64   `json:"trans_comercial"`
	TransRetencion  float64   `json:"trans_retencion"`
	ISN             float64   `json:"isn"`
	EPASatisfaccion float64   `json:"epa_satisfaccion"`
	EPAResolucion   float64   `json:"epa_resolucion"`
	EPATrato        float64   `json:"epa_trato"`
	VisitasTecnicas float64   `json:"visitas_tecnicas"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewMetricResponse maps a snapshot onto its wire form.
func NewMetricResponse(snapshot *domain.MetricSnapshot) MetricResponse {
	return MetricResponse{
		ID:              snapshot.ID,
		AgenteID:        snapshot.AgentID,
		NombreAgente:    snapshot.AgentName,
		EmailAgente:     snapshot.AgentEmail,
		TMO:             snapshot.Values.TMO,
		TransComercial:  snapshot.Values.TransComercial,
		TransRetencion:  snapshot.Values.TransRetencion,
		ISN:             snapshot.Values.ISN,
		EPASatisfaccion: snapshot.Values.EPASatisfaccion,
		EPAResolucion:   snapshot.Values.EPAResolucion,
		EPATrato:        snapshot.Values.EPATrato,
		VisitasTecnicas: snapshot.Values.VisitasTecnicas,
		CreatedAt:       snapshot.CreatedAt,
		UpdatedAt:       snapshot.UpdatedAt,
	}
}

// AggregateResponse is the team-wide average on the wire.
type AggregateResponse struct {
	TMO             float64 `json:"tmo"`
	TransComercial  float64 `json:"trans_comercial"`
	TransRetencion  float64 `json:"trans_retencion"`
	ISN             float64 `json:"isn"`
	EPASatisfaccion float64 `json:"epa_satisfaccion"`
	EPAResolucion   float64 `json:"epa_resolucion"`
	EPATrato        float64 `json:"epa_trato"`
	VisitasTecnicas float64 `json:"visitas_tecnicas"`
}

// NewAggregateResponse maps an aggregate onto its wire form.
func NewAggregateResponse(agg *domain.AggregateMetrics) AggregateResponse {
	return AggregateResponse{
		TMO:             agg.TMO,
		TransComercial:  agg.TransComercial,
		TransRetencion:  agg.TransRetencion,
		ISN:             agg.ISN,
		EPASatisfaccion: agg.EPASatisfaccion,
		EPAResolucion:   agg.EPAResolucion,
		EPATrato:        agg.EPATrato,
		VisitasTecnicas: agg.VisitasTecnicas,
	}
}
