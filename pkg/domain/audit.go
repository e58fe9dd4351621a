package domain

import (
	"context"
	"strconv"
	"strings"
	"time"
)

type actorKeyType struct{}

var actorKey actorKeyType

// WithActor attaches the opaque acting user identifier to the context. Every
// mutating service call requires one.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFrom extracts the acting user identifier from the context.
func ActorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// FieldStatusAuto names the synthetic audit field recording an automatic
// downgrade of a delivery-bound transition. Old value holds the requested
// status, new value the applied one.
const FieldStatusAuto = "status.auto"

// Field is one auditable name/value pair of an entity snapshot.
type Field struct {
	Name  string
	Value string
}

// FieldChange is the output of a diff: one changed field with its old and
// new values.
type FieldChange struct {
	Name string
	Old  string
	New  string
}

// RequestFields lists the audited fields of a request. Version and the
// bookkeeping timestamps are intentionally absent.
func RequestFields(r ResourceRequest) []Field {
	return []Field{
		{Name: "number", Value: r.Number},
		{Name: "incident_id", Value: r.IncidentID},
		{Name: "title", Value: r.Title},
		{Name: "section", Value: r.Section},
		{Name: "priority", Value: string(r.Priority)},
		{Name: "status", Value: string(r.Status)},
		{Name: "requester_id", Value: r.RequesterID},
		{Name: "justification", Value: r.Justification},
		{Name: "delivery_location", Value: r.DeliveryLocation},
		{Name: "comms", Value: r.Comms},
		{Name: "links", Value: strings.Join(r.Links, ",")},
		{Name: "needed_by", Value: formatTimePtr(r.NeededBy)},
		{Name: "training", Value: strconv.FormatBool(r.Training)},
	}
}

// ItemFields lists the audited fields of a line item.
func ItemFields(it RequestItem) []Field {
	return []Field{
		{Name: "kind", Value: it.Kind},
		{Name: "catalog_ref", Value: formatStringPtr(it.CatalogRef)},
		{Name: "description", Value: it.Description},
		{Name: "quantity", Value: it.Quantity.String()},
		{Name: "unit", Value: it.Unit},
		{Name: "instructions", Value: it.Instructions},
	}
}

// ApprovalFields lists the audited fields of an approval record.
func ApprovalFields(a Approval) []Field {
	return []Field{
		{Name: "action", Value: string(a.Action)},
		{Name: "actor_id", Value: a.ActorID},
		{Name: "note", Value: formatStringPtr(a.Note)},
	}
}

// FulfillmentFields lists the audited fields of a fulfillment attempt.
func FulfillmentFields(f Fulfillment) []Field {
	return []Field{
		{Name: "item_id", Value: formatStringPtr(f.ItemID)},
		{Name: "kind", Value: f.Kind},
		{Name: "supplier_ref", Value: formatStringPtr(f.SupplierRef)},
		{Name: "assigned_ref", Value: formatStringPtr(f.AssignedRef)},
		{Name: "eta", Value: formatTimePtr(f.ETA)},
		{Name: "status", Value: string(f.Status)},
		{Name: "note", Value: formatStringPtr(f.Note)},
	}
}

// DiffFields computes the changed fields between two snapshots produced by
// the same field-list function. A nil side stands for the empty pre-image of
// a create or the empty post-image of a delete; empty-valued fields on the
// populated side then produce no entry.
func DiffFields(before, after []Field) []FieldChange {
	if before == nil && after == nil {
		return nil
	}
	old := make(map[string]string, len(before))
	for _, f := range before {
		old[f.Name] = f.Value
	}
	ordered := after
	if ordered == nil {
		ordered = before
	}
	var changes []FieldChange
	for _, f := range ordered {
		oldValue := old[f.Name]
		newValue := f.Value
		if after == nil {
			oldValue, newValue = f.Value, ""
		}
		if oldValue == newValue {
			continue
		}
		changes = append(changes, FieldChange{Name: f.Name, Old: oldValue, New: newValue})
	}
	return changes
}

func formatStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
