package core

import (
	"context"

	"logisticscore/pkg/domain"
)

func editableRequest(tx domain.Transaction, requestID string) (ResourceRequest, error) {
	request, ok := tx.FindRequest(requestID)
	if !ok {
		return ResourceRequest{}, domain.NotFoundError{Entity: EntityRequest, ID: requestID}
	}
	if domain.IsTerminalStatus(request.Status) {
		return ResourceRequest{}, domain.ValidationError{
			Field:   "status",
			Message: "request " + requestID + " is " + string(request.Status) + " and can no longer be edited",
		}
	}
	return request, nil
}

// touchRequest bumps the request version under the optimistic check, making
// child mutations visible as request-level changes.
func touchRequest(tx domain.Transaction, requestID string, expectedVersion int64) error {
	_, err := tx.UpdateRequest(requestID, expectedVersion, func(*ResourceRequest) error { return nil })
	return err
}

// AddItem appends a line item to a request and bumps the request version.
func (s *Service) AddItem(ctx context.Context, requestID string, expectedVersion int64, item RequestItem) (RequestItem, Result, error) {
	if _, err := requireActor(ctx); err != nil {
		return RequestItem{}, Result{}, err
	}
	var created RequestItem
	result, err := s.run(ctx, "add_item", &created.ID, func(tx domain.Transaction) error {
		if _, err := editableRequest(tx, requestID); err != nil {
			return err
		}
		if err := touchRequest(tx, requestID, expectedVersion); err != nil {
			return err
		}
		item.RequestID = requestID
		var err error
		created, err = tx.CreateItem(item)
		return err
	})
	if err != nil {
		return RequestItem{}, result, err
	}
	return created, result, nil
}

// UpdateItem edits a line item in place and bumps the request version.
func (s *Service) UpdateItem(ctx context.Context, requestID, itemID string, expectedVersion int64, mutator func(*RequestItem) error) (RequestItem, Result, error) {
	if _, err := requireActor(ctx); err != nil {
		return RequestItem{}, Result{}, err
	}
	var updated RequestItem
	result, err := s.run(ctx, "update_item", &itemID, func(tx domain.Transaction) error {
		if _, err := editableRequest(tx, requestID); err != nil {
			return err
		}
		item, ok := tx.Snapshot().FindItem(itemID)
		if !ok || item.RequestID != requestID {
			return domain.NotFoundError{Entity: EntityRequestItem, ID: itemID}
		}
		if err := touchRequest(tx, requestID, expectedVersion); err != nil {
			return err
		}
		var err error
		updated, err = tx.UpdateItem(itemID, func(i *RequestItem) error {
			if err := mutator(i); err != nil {
				return err
			}
			i.RequestID = requestID
			return nil
		})
		return err
	})
	if err != nil {
		return RequestItem{}, result, err
	}
	return updated, result, nil
}

// RemoveItem deletes a line item and bumps the request version. The last
// item of a request at or past APPROVED cannot be removed, since those
// states require at least one item.
func (s *Service) RemoveItem(ctx context.Context, requestID, itemID string, expectedVersion int64) (Result, error) {
	if _, err := requireActor(ctx); err != nil {
		return Result{}, err
	}
	return s.run(ctx, "remove_item", &itemID, func(tx domain.Transaction) error {
		request, err := editableRequest(tx, requestID)
		if err != nil {
			return err
		}
		view := tx.Snapshot()
		item, ok := view.FindItem(itemID)
		if !ok || item.RequestID != requestID {
			return domain.NotFoundError{Entity: EntityRequestItem, ID: itemID}
		}
		rank, onChain := domain.StatusRank(request.Status)
		approvedRank, _ := domain.StatusRank(StatusApproved)
		if onChain && rank >= approvedRank && len(view.ItemsByRequest(requestID)) == 1 {
			return domain.ValidationError{
				Field:   "items",
				Message: "request " + requestID + " is " + string(request.Status) + " and must keep at least one item",
			}
		}
		if err := touchRequest(tx, requestID, expectedVersion); err != nil {
			return err
		}
		return tx.DeleteItem(itemID)
	})
}
