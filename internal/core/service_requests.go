package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"logisticscore/pkg/domain"
)

// RequestPatch describes a partial update to a request's mutable fields.
// Nil pointers leave the field untouched. NeededBy is doubly indirect so a
// patch can distinguish "leave as is" (nil) from "clear the deadline"
// (pointer to nil).
type RequestPatch struct {
	Title            *string
	Section          *string
	Priority         *Priority
	Justification    *string
	DeliveryLocation *string
	Comms            *string
	Links            *[]string
	NeededBy         **time.Time
	Training         *bool
}

// RequestFilter narrows ListRequests. Zero-valued fields match everything.
type RequestFilter struct {
	IncidentID string
	Status     RequestStatus
	Priority   Priority
	Search     string
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func newRequestNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REQ-" + strings.ToUpper(raw[:8])
}

// CreateRequest opens a new request in DRAFT. When the input names no
// incident the configured resolver supplies the active one.
func (s *Service) CreateRequest(ctx context.Context, input ResourceRequest) (ResourceRequest, Result, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return ResourceRequest{}, Result{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return ResourceRequest{}, Result{}, domain.ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(input.Section) == "" {
		return ResourceRequest{}, Result{}, domain.ValidationError{Field: "section", Message: "requesting section is required"}
	}
	if !validPriority(input.Priority) {
		return ResourceRequest{}, Result{}, domain.ValidationError{Field: "priority", Message: "unknown priority " + string(input.Priority)}
	}
	if input.IncidentID == "" {
		if s.incidents == nil {
			return ResourceRequest{}, Result{}, domain.ValidationError{Field: "incident_id", Message: "incident is required"}
		}
		incident, err := s.incidents.ActiveIncident(ctx)
		if err != nil {
			return ResourceRequest{}, Result{}, err
		}
		input.IncidentID = incident
	}
	if input.RequesterID == "" {
		input.RequesterID = actor
	}
	// The store assigns identity, timestamps, and the initial version.
	input.Base = domain.Base{}
	input.Version = 0
	input.Status = StatusDraft
	input.Number = newRequestNumber()

	var created ResourceRequest
	result, err := s.run(ctx, "create_request", &created.ID, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateRequest(input)
		return err
	})
	if err != nil {
		return ResourceRequest{}, result, err
	}
	return created, result, nil
}

// GetRequest fetches one request by ID.
func (s *Service) GetRequest(ctx context.Context, id string) (ResourceRequest, error) {
	request, ok := s.store.GetRequest(id)
	if !ok {
		return ResourceRequest{}, domain.NotFoundError{Entity: EntityRequest, ID: id}
	}
	return request, nil
}

// ListRequests returns requests matching the filter, most recently updated
// first. When the filter names no incident and a resolver is configured the
// active incident scopes the listing; a resolver with no active incident
// fails the call. Search matches case-insensitively against the title and
// the descriptions of the request's line items.
func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]ResourceRequest, error) {
	if filter.IncidentID == "" && s.incidents != nil {
		incident, err := s.incidents.ActiveIncident(ctx)
		if err != nil {
			return nil, err
		}
		filter.IncidentID = incident
	}
	var matched []ResourceRequest
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		for _, request := range view.ListRequests() {
			if filter.IncidentID != "" && request.IncidentID != filter.IncidentID {
				continue
			}
			if filter.Status != "" && request.Status != filter.Status {
				continue
			}
			if filter.Priority != "" && request.Priority != filter.Priority {
				continue
			}
			if search != "" && !matchesSearch(view, request, search) {
				continue
			}
			matched = append(matched, request)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched, nil
}

func matchesSearch(view domain.TransactionView, request ResourceRequest, search string) bool {
	if strings.Contains(strings.ToLower(request.Title), search) {
		return true
	}
	for _, item := range view.ItemsByRequest(request.ID) {
		if strings.Contains(strings.ToLower(item.Description), search) {
			return true
		}
	}
	return false
}

// UpdateRequest applies a partial update to a request's descriptive fields.
// The request's status is never changed here; use TransitionStatus.
func (s *Service) UpdateRequest(ctx context.Context, id string, expectedVersion int64, patch RequestPatch) (ResourceRequest, Result, error) {
	if _, err := requireActor(ctx); err != nil {
		return ResourceRequest{}, Result{}, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return ResourceRequest{}, Result{}, domain.ValidationError{Field: "title", Message: "title cannot be cleared"}
	}
	if patch.Priority != nil && !validPriority(*patch.Priority) {
		return ResourceRequest{}, Result{}, domain.ValidationError{Field: "priority", Message: "unknown priority " + string(*patch.Priority)}
	}

	var updated ResourceRequest
	result, err := s.run(ctx, "update_request", &id, func(tx domain.Transaction) error {
		current, ok := tx.FindRequest(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityRequest, ID: id}
		}
		if domain.IsTerminalStatus(current.Status) {
			return domain.ValidationError{Field: "status", Message: "request " + id + " is " + string(current.Status) + " and can no longer be edited"}
		}
		var err error
		updated, err = tx.UpdateRequest(id, expectedVersion, func(r *ResourceRequest) error {
			status := r.Status
			applyPatch(r, patch)
			r.Status = status
			return nil
		})
		return err
	})
	if err != nil {
		return ResourceRequest{}, result, err
	}
	return updated, result, nil
}

func applyPatch(r *ResourceRequest, patch RequestPatch) {
	if patch.Title != nil {
		r.Title = *patch.Title
	}
	if patch.Section != nil {
		r.Section = *patch.Section
	}
	if patch.Priority != nil {
		r.Priority = *patch.Priority
	}
	if patch.Justification != nil {
		r.Justification = *patch.Justification
	}
	if patch.DeliveryLocation != nil {
		r.DeliveryLocation = *patch.DeliveryLocation
	}
	if patch.Comms != nil {
		r.Comms = *patch.Comms
	}
	if patch.Links != nil {
		r.Links = append([]string(nil), (*patch.Links)...)
	}
	if patch.NeededBy != nil {
		if *patch.NeededBy == nil {
			r.NeededBy = nil
		} else {
			t := **patch.NeededBy
			r.NeededBy = &t
		}
	}
	if patch.Training != nil {
		r.Training = *patch.Training
	}
}

// DeleteRequest removes a request and cascades to its items, approvals, and
// fulfillments. The audit trail survives and stays queryable by request ID.
func (s *Service) DeleteRequest(ctx context.Context, id string, expectedVersion int64) (Result, error) {
	if _, err := requireActor(ctx); err != nil {
		return Result{}, err
	}
	return s.run(ctx, "delete_request", &id, func(tx domain.Transaction) error {
		current, ok := tx.FindRequest(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityRequest, ID: id}
		}
		if expectedVersion >= 0 && current.Version != expectedVersion {
			return domain.ConcurrencyConflictError{Entity: EntityRequest, ID: id, Expected: expectedVersion, Actual: current.Version}
		}
		return tx.DeleteRequest(id)
	})
}

// ListItems returns the line items of a request.
func (s *Service) ListItems(ctx context.Context, requestID string) ([]RequestItem, error) {
	if _, ok := s.store.GetRequest(requestID); !ok {
		return nil, domain.NotFoundError{Entity: EntityRequest, ID: requestID}
	}
	return s.store.ListItems(requestID), nil
}

// ListApprovals returns the approval chain of a request, oldest first.
func (s *Service) ListApprovals(ctx context.Context, requestID string) ([]Approval, error) {
	if _, ok := s.store.GetRequest(requestID); !ok {
		return nil, domain.NotFoundError{Entity: EntityRequest, ID: requestID}
	}
	return s.store.ListApprovals(requestID), nil
}

// ListFulfillments returns the fulfillments recorded against a request.
func (s *Service) ListFulfillments(ctx context.Context, requestID string) ([]Fulfillment, error) {
	if _, ok := s.store.GetRequest(requestID); !ok {
		return nil, domain.NotFoundError{Entity: EntityRequest, ID: requestID}
	}
	return s.store.ListFulfillments(requestID), nil
}

// ListAuditTrail returns the field-level audit trail for an entity, oldest
// first. The trail remains available after the entity is deleted.
func (s *Service) ListAuditTrail(ctx context.Context, entity EntityType, entityID string) []AuditRecord {
	return s.store.ListAuditTrail(entity, entityID)
}
