package domain

import "time"

// MetricValues carries the measurable fields of one snapshot. TMO is
// average handling time in seconds; the remaining fields are survey or
// rate percentages. Values are stored as submitted, without clamping.
type MetricValues struct {
	TMO             int
	TransComercial  float64
	TransRetencion  float64
	ISN             float64
	EPASatisfaccion float64
	EPAResolucion   float64
	EPATrato        float64
	VisitasTecnicas float64
}

// MetricSnapshot is one recorded measurement for an agent. An agent
// accumulates many snapshots over time; the newest one is that agent's
// "current" view.
type MetricSnapshot struct {
	ID         string
	AgentID    string
	AgentName  string
	AgentEmail string
	Values     MetricValues
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AggregateMetrics is the per-field arithmetic mean over the full
// snapshot history of every agent.
type AggregateMetrics struct {
	TMO             float64
	TransComercial  float64
	TransRetencion  float64
	ISN             float64
	EPASatisfaccion float64
	EPAResolucion   float64
	EPATrato        float64
	VisitasTecnicas float64
}

// AgentOverview pairs an agent identity with its latest snapshot
// values, zero-valued when the agent has no snapshots yet.
type AgentOverview struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
	Current   MetricValues
}
