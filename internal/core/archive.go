package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"logisticscore/internal/blob"
	"logisticscore/pkg/domain"
)

// RequestSnapshot is the immutable export of a request at a point in time:
// the request row plus all children and the full audit trail. Snapshots feed
// downstream document generation and after-action review.
type RequestSnapshot struct {
	Request      ResourceRequest `json:"request"`
	Items        []RequestItem   `json:"items"`
	Approvals    []Approval      `json:"approvals"`
	Fulfillments []Fulfillment   `json:"fulfillments"`
	AuditTrail   []AuditRecord   `json:"audit_trail"`
	Training     bool            `json:"training"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// OpenArchiveStore builds the archive blob store named by the configuration.
// S3 settings come from the LOGISTICS_BLOB_S3_* variables.
func OpenArchiveStore(ctx context.Context, cfg Config) (blob.Store, error) {
	switch blob.Driver(cfg.ArchiveDriver) {
	case blob.DriverFilesystem, "":
		return blob.NewFilesystem(cfg.ArchiveFSRoot)
	case blob.DriverS3:
		return blob.OpenFromEnv(ctx)
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.ArchiveDriver)
	}
}

// Snapshot assembles a consistent RequestSnapshot from a single store view.
func (s *Service) Snapshot(ctx context.Context, requestID string) (RequestSnapshot, error) {
	var snapshot RequestSnapshot
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		request, ok := view.FindRequest(requestID)
		if !ok {
			return domain.NotFoundError{Entity: EntityRequest, ID: requestID}
		}
		snapshot = RequestSnapshot{
			Request:      request,
			Items:        view.ItemsByRequest(requestID),
			Approvals:    view.ApprovalsByRequest(requestID),
			Fulfillments: view.FulfillmentsByRequest(requestID),
			Training:     request.Training,
		}
		return nil
	})
	if err != nil {
		return RequestSnapshot{}, err
	}
	snapshot.AuditTrail = s.store.ListAuditTrail(EntityRequest, requestID)
	snapshot.GeneratedAt = s.now()
	return snapshot, nil
}

// ArchiveRequestSnapshot writes a request snapshot to the configured archive
// store. Keys encode incident, number, and version, and the store refuses to
// overwrite an existing key, so archives are write-once. Training requests
// are watermarked in the blob metadata.
func (s *Service) ArchiveRequestSnapshot(ctx context.Context, requestID string) (blob.Info, error) {
	if s.archive == nil {
		return blob.Info{}, domain.ConstraintViolationError{Message: "no archive store configured"}
	}
	ctx, span := s.tracer.Start(ctx, "archive_request_snapshot")
	start := time.Now()

	info, err := s.archiveSnapshot(ctx, requestID)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, "archive_request_snapshot", err == nil, duration)
	if err != nil {
		s.logger.Error("archive failed", "request_id", requestID, "error", err)
		return blob.Info{}, err
	}
	s.logger.Info("request archived", "request_id", requestID, "key", info.Key, "size", info.Size)
	return info, nil
}

func (s *Service) archiveSnapshot(ctx context.Context, requestID string) (blob.Info, error) {
	snapshot, err := s.Snapshot(ctx, requestID)
	if err != nil {
		return blob.Info{}, err
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := fmt.Sprintf("requests/%s/%s-v%d.json",
		snapshot.Request.IncidentID, snapshot.Request.Number, snapshot.Request.Version)
	opts := blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"request_id":  snapshot.Request.ID,
			"incident_id": snapshot.Request.IncidentID,
			"version":     fmt.Sprintf("%d", snapshot.Request.Version),
		},
	}
	if snapshot.Training {
		opts.Metadata["watermark"] = "TRAINING"
	}
	return s.archive.Put(ctx, key, bytes.NewReader(payload), opts)
}
