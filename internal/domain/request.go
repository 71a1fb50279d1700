package domain

import "time"

// RequestStatus is the admission state of an unregistered requester.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestSnoozed  RequestStatus = "snoozed"
)

// Decision is an admin's verdict on a pending access request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionSnooze  Decision = "snooze"
)

// requestTransitions is the allowed state graph. Approved and rejected
// are terminal; snoozed cycles back to pending when the wake time
// passes.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestRejected, RequestSnoozed},
	RequestSnoozed:  {RequestPending},
	RequestApproved: {},
	RequestRejected: {},
}

// CanTransition reports whether from -> to is an allowed request state
// change.
func CanTransition(from, to RequestStatus) bool {
	for _, s := range requestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AccessRequest tracks one requester through the admission lifecycle.
// There is at most one live request per requester; approval creates the
// Actor and terminates the request.
type AccessRequest struct {
	ID          string        `json:"id"`
	RequesterID int64         `json:"requester_id"`
	DisplayName string        `json:"display_name"`
	Status      RequestStatus `json:"status"`
	WakeAt      *time.Time    `json:"wake_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewAccessRequest creates a pending request for a first-contact
// requester.
func NewAccessRequest(id string, requesterID int64, displayName string, now time.Time) *AccessRequest {
	return &AccessRequest{
		ID:          id,
		RequesterID: requesterID,
		DisplayName: displayName,
		Status:      RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Resolved reports whether the request reached a terminal state.
func (r *AccessRequest) Resolved() bool {
	return r.Status == RequestApproved || r.Status == RequestRejected
}

// Approve moves the request to its approved terminal state.
func (r *AccessRequest) Approve(now time.Time) error {
	return r.transition(RequestApproved, nil, now)
}

// Reject moves the request to its rejected terminal state.
func (r *AccessRequest) Reject(now time.Time) error {
	return r.transition(RequestRejected, nil, now)
}

// Snooze defers the request until wakeAt. A request may be snoozed and
// woken any number of times before a terminal decision.
func (r *AccessRequest) Snooze(wakeAt time.Time, now time.Time) error {
	return r.transition(RequestSnoozed, &wakeAt, now)
}

// Wake returns a snoozed request to pending. It only fires once the
// wake time has passed, and never on a request in any other state.
func (r *AccessRequest) Wake(now time.Time) error {
	if r.Status != RequestSnoozed {
		return ErrRequestAlreadyResolved
	}
	if r.WakeAt == nil || now.Before(*r.WakeAt) {
		return ErrWakeNotDue
	}
	return r.transition(RequestPending, nil, now)
}

func (r *AccessRequest) transition(to RequestStatus, wakeAt *time.Time, now time.Time) error {
	if !CanTransition(r.Status, to) {
		return ErrRequestAlreadyResolved
	}
	r.Status = to
	r.WakeAt = wakeAt
	r.UpdatedAt = now
	return nil
}
