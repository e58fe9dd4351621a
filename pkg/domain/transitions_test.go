package domain

import "testing"

func TestForwardChainTransitions(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		want     bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusReviewed, true},
		{StatusReviewed, StatusApproved, true},
		{StatusApproved, StatusAssigned, true},
		{StatusAssigned, StatusInTransit, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusDelivered, StatusClosed, true},
		// forward jumps along the chain are legal
		{StatusDraft, StatusApproved, true},
		{StatusSubmitted, StatusAssigned, true},
		// backward movement is not
		{StatusApproved, StatusDraft, false},
		{StatusDelivered, StatusAssigned, false},
		// self transitions are not
		{StatusDraft, StatusDraft, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDeniedReachableFromSubmittedAndReviewedOnly(t *testing.T) {
	for status := range ValidRequestStatuses() {
		got := CanTransition(status, StatusDenied)
		want := status == StatusSubmitted || status == StatusReviewed
		if got != want {
			t.Fatalf("CanTransition(%s, DENIED) = %v, want %v", status, got, want)
		}
	}
}

func TestCancelledReachableBeforeDeliveredOnly(t *testing.T) {
	allowed := map[RequestStatus]bool{
		StatusDraft:     true,
		StatusSubmitted: true,
		StatusReviewed:  true,
		StatusApproved:  true,
		StatusAssigned:  true,
		StatusInTransit: true,
	}
	for status := range ValidRequestStatuses() {
		if got := CanTransition(status, StatusCancelled); got != allowed[status] {
			t.Fatalf("CanTransition(%s, CANCELLED) = %v, want %v", status, got, allowed[status])
		}
	}
}

func TestTerminalStatusesAdmitNoExit(t *testing.T) {
	for _, terminal := range []RequestStatus{StatusClosed, StatusDenied, StatusCancelled} {
		if !IsTerminalStatus(terminal) {
			t.Fatalf("expected %s to be terminal", terminal)
		}
		for target := range ValidRequestStatuses() {
			if CanTransition(terminal, target) {
				t.Fatalf("terminal %s must not transition to %s", terminal, target)
			}
		}
	}
	if IsTerminalStatus(StatusDelivered) {
		t.Fatal("DELIVERED is not terminal")
	}
}

func TestApprovalActionMapping(t *testing.T) {
	cases := map[RequestStatus]ApprovalAction{
		StatusSubmitted: ApprovalSubmit,
		StatusReviewed:  ApprovalReview,
		StatusApproved:  ApprovalApprove,
		StatusDenied:    ApprovalDeny,
		StatusCancelled: ApprovalCancel,
	}
	for target, want := range cases {
		action, ok := ApprovalActionFor(target)
		if !ok || action != want {
			t.Fatalf("ApprovalActionFor(%s) = %q, %v, want %q", target, action, ok, want)
		}
	}
	for _, target := range []RequestStatus{StatusDraft, StatusAssigned, StatusInTransit, StatusDelivered, StatusClosed} {
		if _, ok := ApprovalActionFor(target); ok {
			t.Fatalf("ApprovalActionFor(%s) should not map to an action", target)
		}
	}
}

func TestDeliveryFallback(t *testing.T) {
	if got := DeliveryFallback(CompletenessNone); got != StatusAssigned {
		t.Fatalf("fallback for none = %s, want ASSIGNED", got)
	}
	if got := DeliveryFallback(CompletenessPartial); got != StatusInTransit {
		t.Fatalf("fallback for partial = %s, want INTRANSIT", got)
	}
}

func TestFulfillmentTransitions(t *testing.T) {
	cases := []struct {
		from, to FulfillmentStatus
		want     bool
	}{
		{FulfillmentPending, FulfillmentAssigned, true},
		{FulfillmentAssigned, FulfillmentInTransit, true},
		{FulfillmentInTransit, FulfillmentDelivered, true},
		{FulfillmentPending, FulfillmentDelivered, true},
		{FulfillmentPending, FulfillmentCancelled, true},
		{FulfillmentInTransit, FulfillmentCancelled, true},
		{FulfillmentDelivered, FulfillmentCancelled, false},
		{FulfillmentCancelled, FulfillmentPending, false},
		{FulfillmentAssigned, FulfillmentPending, false},
	}
	for _, tc := range cases {
		if got := CanTransitionFulfillment(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransitionFulfillment(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
