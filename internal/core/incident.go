package core

import (
	"context"
	"os"

	"logisticscore/pkg/domain"
)

// IncidentResolver supplies the incident a new request belongs to when the
// caller does not name one explicitly.
type IncidentResolver interface {
	ActiveIncident(ctx context.Context) (string, error)
}

// StaticIncidentResolver always resolves to a fixed incident ID.
type StaticIncidentResolver string

func (r StaticIncidentResolver) ActiveIncident(context.Context) (string, error) {
	if r == "" {
		return "", domain.ValidationError{Field: "incident_id", Message: "no active incident configured"}
	}
	return string(r), nil
}

// EnvIncidentResolver reads the active incident from LOGISTICS_ACTIVE_INCIDENT
// on every call, so operators can repoint it without a restart.
type EnvIncidentResolver struct{}

func (EnvIncidentResolver) ActiveIncident(context.Context) (string, error) {
	id := os.Getenv("LOGISTICS_ACTIVE_INCIDENT")
	if id == "" {
		return "", domain.ValidationError{Field: "incident_id", Message: "LOGISTICS_ACTIVE_INCIDENT is not set"}
	}
	return id, nil
}
