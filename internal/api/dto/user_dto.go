package dto

import (
	"time"

	"github.com/spec-kit/metricas-service/internal/domain"
)

// UserResponse is the public view of a user. The password hash never
// leaves the service.
type UserResponse struct {
	ID        string    `json:"id"`
	Nombre    string    `json:"nombre"`
	Email     string    `json:"email"`
	Rol       string    `json:"rol"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse maps a domain user onto its public view.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Nombre:    user.Name,
		Email:     user.Email,
		Rol:       string(user.Role),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// CreateUserRequest payload for POST /usuarios.
type CreateUserRequest struct {
	Nombre   string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Rol      string `json:"rol"`
}

// UpdateUserRequest payload for PUT /usuarios/:id. Absent fields keep
// their stored values.
type UpdateUserRequest struct {
	Nombre   *string `json:"nombre"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Rol      *string `json:"rol"`
}

// AgentOverviewResponse is an agent with their latest snapshot values,
// as rendered in the team table.
type AgentOverviewResponse struct {
	ID              string    `json:"id"`
	Nombre          string    `json:"nombre"`
	Email           string    `json:"email"`
	Rol             string    `json:"rol"`
	CreatedAt       time.Time `json:"created_at"`
	TMO             int       `json:"tmo"`
	TransComercial  float64   `json:"trans_comercial"`
	TransRetencion  float64   `json:"trans_retencion"`
	ISN             float64   `json:"isn"`
	EPASatisfaccion float64   `json:"epa_satisfaccion"`
	EPAResolucion   float64   `json:"epa_resolucion"`
	EPATrato        float64   `json:"epa_trato"`
	VisitasTecnicas float64   `json:"visitas_tecnicas"`
}

// NewAgentOverviewResponse maps an overview onto its wire form.
func NewAgentOverviewResponse(overview domain.AgentOverview) AgentOverviewResponse {
	return AgentOverviewResponse{
		ID:              overview.ID,
		Nombre:          overview.Name,
		Email:           overview.Email,
		Rol:             string(overview.Role),
		CreatedAt:       overview.CreatedAt,
		TMO:             overview.Current.TMO,
		TransComercial:  overview.Current.TransComercial,
		TransRetencion:  overview.Current.TransRetencion,
		ISN:             overview.Current.ISN,
		EPASatisfaccion: overview.Current.EPASatisfaccion,
		EPAResolucion:   overview.Current.EPAResolucion,
		EPATrato:        overview.Current.EPATrato,
		VisitasTecnicas: overview.Current.VisitasTecnicas,
	}
}
