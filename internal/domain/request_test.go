package domain

import (
	"testing"
	"time"
)

func TestNewAccessRequest(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	req := NewAccessRequest("req-1", 42, "New Driver", now)

	if req.Status != RequestPending {
		t.Errorf("Expected status %s, got %s", RequestPending, req.Status)
	}
	if req.RequesterID != 42 {
		t.Errorf("Expected requester 42, got %d", req.RequesterID)
	}
	if req.WakeAt != nil {
		t.Errorf("Expected no wake time, got %v", req.WakeAt)
	}
}

func TestAccessRequest_Approve(t *testing.T) {
	now := time.Now()
	req := NewAccessRequest("req-1", 42, "New Driver", now)

	if err := req.Approve(now); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.Status != RequestApproved {
		t.Errorf("Expected status %s, got %s", RequestApproved, req.Status)
	}
	if !req.Resolved() {
		t.Error("Expected approved request to be resolved")
	}
}

func TestAccessRequest_DecisionAfterResolution(t *testing.T) {
	now := time.Now()
	req := NewAccessRequest("req-1", 42, "New Driver", now)

	if err := req.Approve(now); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := req.Reject(now); err != ErrRequestAlreadyResolved {
		t.Errorf("Expected ErrRequestAlreadyResolved, got %v", err)
	}
	if err := req.Snooze(now.Add(time.Hour), now); err != ErrRequestAlreadyResolved {
		t.Errorf("Expected ErrRequestAlreadyResolved, got %v", err)
	}
	if req.Status != RequestApproved {
		t.Errorf("Expected status to stay %s, got %s", RequestApproved, req.Status)
	}
}

func TestAccessRequest_SnoozeWakeCycle(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	req := NewAccessRequest("req-1", 42, "New Driver", now)

	wakeAt := now.Add(time.Hour)
	if err := req.Snooze(wakeAt, now); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.Status != RequestSnoozed {
		t.Errorf("Expected status %s, got %s", RequestSnoozed, req.Status)
	}
	if req.WakeAt == nil || !req.WakeAt.Equal(wakeAt) {
		t.Errorf("Expected wake at %v, got %v", wakeAt, req.WakeAt)
	}

	// Never wakes before the wake time.
	if err := req.Wake(now.Add(30 * time.Minute)); err != ErrWakeNotDue {
		t.Errorf("Expected ErrWakeNotDue, got %v", err)
	}
	if req.Status != RequestSnoozed {
		t.Errorf("Expected early wake to leave status %s, got %s", RequestSnoozed, req.Status)
	}

	// Wakes exactly once when the wake time passes.
	if err := req.Wake(wakeAt); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.Status != RequestPending {
		t.Errorf("Expected status %s, got %s", RequestPending, req.Status)
	}
	if req.WakeAt != nil {
		t.Errorf("Expected wake time cleared, got %v", req.WakeAt)
	}

	// A second wake has nothing to do.
	if err := req.Wake(wakeAt.Add(time.Minute)); err != ErrRequestAlreadyResolved {
		t.Errorf("Expected ErrRequestAlreadyResolved, got %v", err)
	}
}

func TestAccessRequest_SnoozeMayRepeat(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	req := NewAccessRequest("req-1", 42, "New Driver", now)

	for i := 0; i < 3; i++ {
		wakeAt := now.Add(time.Hour)
		if err := req.Snooze(wakeAt, now); err != nil {
			t.Fatalf("Cycle %d: unexpected snooze error: %v", i, err)
		}
		if err := req.Wake(wakeAt); err != nil {
			t.Fatalf("Cycle %d: unexpected wake error: %v", i, err)
		}
		now = wakeAt
	}

	if err := req.Reject(now); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.Status != RequestRejected {
		t.Errorf("Expected status %s, got %s", RequestRejected, req.Status)
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(RequestPending, RequestSnoozed) {
		t.Error("Expected pending -> snoozed to be allowed")
	}
	if CanTransition(RequestApproved, RequestPending) {
		t.Error("Expected approved to be terminal")
	}
	if CanTransition(RequestRejected, RequestSnoozed) {
		t.Error("Expected rejected to be terminal")
	}
	if CanTransition(RequestSnoozed, RequestApproved) {
		t.Error("Expected snoozed to only return to pending")
	}
}
