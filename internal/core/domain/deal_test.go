package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDealStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to DealStatus
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusRejected, false},
		{StatusRejected, StatusAccepted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDealStatus_IsTerminal(t *testing.T) {
	for status, terminal := range map[DealStatus]bool{
		StatusPending:   false,
		StatusAccepted:  false,
		StatusRejected:  true,
		StatusCompleted: true,
		StatusCancelled: true,
	} {
		if got := status.IsTerminal(); got != terminal {
			t.Errorf("%s: IsTerminal() = %v, want %v", status, got, terminal)
		}
	}
}

func entry(old *DealStatus, next DealStatus, ts time.Time) StatusLogEntry {
	return StatusLogEntry{DealID: "d1", OldStatus: old, NewStatus: next, ActorID: "u1", Timestamp: ts}
}

func TestReplay_ReproducesCurrentStatus(t *testing.T) {
	now := time.Now()
	pending := StatusPending
	accepted := StatusAccepted

	status, err := Replay([]StatusLogEntry{
		entry(nil, StatusPending, now),
		entry(&pending, StatusAccepted, now.Add(time.Minute)),
		entry(&accepted, StatusCompleted, now.Add(2*time.Minute)),
	})
	if err != nil {
		t.Fatalf("Replay returned error: %v", err)
	}
	if status != StatusCompleted {
		t.Errorf("replayed status = %s, want %s", status, StatusCompleted)
	}
}

func TestReplay_RejectsReorderedLog(t *testing.T) {
	now := time.Now()
	pending := StatusPending
	accepted := StatusAccepted

	if _, err := Replay([]StatusLogEntry{
		entry(nil, StatusPending, now),
		entry(&accepted, StatusCompleted, now.Add(time.Minute)),
		entry(&pending, StatusAccepted, now.Add(2*time.Minute)),
	}); err == nil {
		t.Fatal("expected error for reordered log")
	}
}

func TestReplay_RejectsIllegalEntry(t *testing.T) {
	now := time.Now()
	pending := StatusPending

	_, err := Replay([]StatusLogEntry{
		entry(nil, StatusPending, now),
		entry(&pending, StatusCompleted, now.Add(time.Minute)),
	})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestReplay_EmptyLog(t *testing.T) {
	if _, err := Replay(nil); err == nil {
		t.Fatal("expected error for empty log")
	}
}

func TestCanActorTransition(t *testing.T) {
	deal := &Deal{StudentID: "student", TeacherID: "teacher"}

	cases := []struct {
		actor string
		next  DealStatus
		want  bool
	}{
		{"teacher", StatusAccepted, true},
		{"teacher", StatusRejected, true},
		{"student", StatusAccepted, false},
		{"student", StatusRejected, false},
		{"student", StatusCancelled, true},
		{"teacher", StatusCancelled, true},
		{"student", StatusCompleted, true},
		{"teacher", StatusCompleted, true},
		{"stranger", StatusCancelled, false},
		{"stranger", StatusAccepted, false},
	}
	for _, tc := range cases {
		if got := CanActorTransition(deal, tc.actor, tc.next); got != tc.want {
			t.Errorf("actor %s -> %s: got %v, want %v", tc.actor, tc.next, got, tc.want)
		}
	}
}
