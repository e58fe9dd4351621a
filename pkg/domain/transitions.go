package domain

// forwardChain is the ordered happy path of the request lifecycle. Any move
// to a later position in the chain is a legal forward transition; denied and
// cancelled branch off it per CanTransition.
var forwardChain = []RequestStatus{
	StatusDraft,
	StatusSubmitted,
	StatusReviewed,
	StatusApproved,
	StatusAssigned,
	StatusInTransit,
	StatusDelivered,
	StatusClosed,
}

var statusRank = func() map[RequestStatus]int {
	m := make(map[RequestStatus]int, len(forwardChain))
	for i, s := range forwardChain {
		m[s] = i
	}
	return m
}()

// terminalStatuses admit no further transitions.
var terminalStatuses = map[RequestStatus]struct{}{
	StatusClosed:    {},
	StatusDenied:    {},
	StatusCancelled: {},
}

// ValidRequestStatuses returns the set of recognised request statuses keyed
// for membership tests.
func ValidRequestStatuses() map[RequestStatus]struct{} {
	set := make(map[RequestStatus]struct{}, len(forwardChain)+2)
	for _, s := range forwardChain {
		set[s] = struct{}{}
	}
	set[StatusDenied] = struct{}{}
	set[StatusCancelled] = struct{}{}
	return set
}

// IsTerminalStatus reports whether no transition may leave the given status.
func IsTerminalStatus(s RequestStatus) bool {
	_, ok := terminalStatuses[s]
	return ok
}

// StatusRank returns the position of a status on the forward chain. Denied
// and cancelled are not on the chain and report ok=false.
func StatusRank(s RequestStatus) (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

// CanTransition reports whether the lifecycle permits moving a request from
// one status to another. Forward movement along the chain may skip
// intermediate states; denied is reachable from submitted or reviewed only;
// cancelled is reachable from any state prior to delivered.
func CanTransition(from, to RequestStatus) bool {
	if IsTerminalStatus(from) || from == to {
		return false
	}
	fromRank, fromOnChain := statusRank[from]
	switch to {
	case StatusDenied:
		return from == StatusSubmitted || from == StatusReviewed
	case StatusCancelled:
		return fromOnChain && fromRank < statusRank[StatusDelivered]
	}
	toRank, toOnChain := statusRank[to]
	if !fromOnChain || !toOnChain {
		return false
	}
	return toRank > fromRank
}

// ApprovalActionFor maps a transition target to the approval-chain action it
// records, if any.
func ApprovalActionFor(to RequestStatus) (ApprovalAction, bool) {
	switch to {
	case StatusSubmitted:
		return ApprovalSubmit, true
	case StatusReviewed:
		return ApprovalReview, true
	case StatusApproved:
		return ApprovalApprove, true
	case StatusDenied:
		return ApprovalDeny, true
	case StatusCancelled:
		return ApprovalCancel, true
	default:
		return "", false
	}
}

// DeliveryFallback returns the status a delivery-bound transition downgrades
// to when fulfillment completeness does not support delivered.
func DeliveryFallback(c Completeness) RequestStatus {
	if c == CompletenessPartial {
		return StatusInTransit
	}
	return StatusAssigned
}

// fulfillmentChain mirrors forwardChain for the fulfillment sub-machine.
var fulfillmentChain = []FulfillmentStatus{
	FulfillmentPending,
	FulfillmentAssigned,
	FulfillmentInTransit,
	FulfillmentDelivered,
}

var fulfillmentRank = func() map[FulfillmentStatus]int {
	m := make(map[FulfillmentStatus]int, len(fulfillmentChain))
	for i, s := range fulfillmentChain {
		m[s] = i
	}
	return m
}()

// ValidFulfillmentStatuses returns the set of recognised fulfillment
// statuses keyed for membership tests.
func ValidFulfillmentStatuses() map[FulfillmentStatus]struct{} {
	set := make(map[FulfillmentStatus]struct{}, len(fulfillmentChain)+1)
	for _, s := range fulfillmentChain {
		set[s] = struct{}{}
	}
	set[FulfillmentCancelled] = struct{}{}
	return set
}

// IsTerminalFulfillmentStatus reports whether a fulfillment status admits no
// further transitions.
func IsTerminalFulfillmentStatus(s FulfillmentStatus) bool {
	return s == FulfillmentDelivered || s == FulfillmentCancelled
}

// CanTransitionFulfillment reports whether a fulfillment may move between
// the given statuses, under the same forward-movement discipline as the
// request machine.
func CanTransitionFulfillment(from, to FulfillmentStatus) bool {
	if IsTerminalFulfillmentStatus(from) || from == to {
		return false
	}
	fromRank, fromOnChain := fulfillmentRank[from]
	if to == FulfillmentCancelled {
		return fromOnChain
	}
	toRank, toOnChain := fulfillmentRank[to]
	if !fromOnChain || !toOnChain {
		return false
	}
	return toRank > fromRank
}
