package domain

import (
	"fmt"
	"time"
)

// DealStatus represents the lifecycle state of a deal negotiation.
type DealStatus string

const (
	StatusPending   DealStatus = "pending"
	StatusAccepted  DealStatus = "accepted"
	StatusRejected  DealStatus = "rejected"
	StatusCompleted DealStatus = "completed"
	StatusCancelled DealStatus = "cancelled"
)

// validTransitions defines the allowed state machine transitions.
var validTransitions = map[DealStatus][]DealStatus{
	StatusPending:  {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether a transition from the current status to next is valid.
func (s DealStatus) CanTransitionTo(next DealStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s DealStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Deal is a bilateral skill-exchange negotiation bound to a chat.
// There is at most one active deal per chat, and the status is only ever
// mutated through the deal service's transition path.
type Deal struct {
	ID            string     `json:"id"`
	ChatID        int64      `json:"chat_id"`
	Status        DealStatus `json:"status"`
	StudentID     string     `json:"student_id"`
	TeacherID     string     `json:"teacher_id"`
	ProposedSkill string     `json:"proposed_skill,omitempty"`
	ProposedTime  string     `json:"proposed_time,omitempty"`
	ProposedPlace string     `json:"proposed_place,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StatusLogEntry records a single status transition on a deal. Entries are
// immutable and appended only after the transition has committed remotely,
// so their order is commit order.
type StatusLogEntry struct {
	DealID    string      `json:"deal_id"`
	OldStatus *DealStatus `json:"old_status,omitempty"` // nil for the creating entry
	NewStatus DealStatus  `json:"new_status"`
	ActorID   string      `json:"actor_id"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Replay folds a deal's full status log from the initial state and returns
// the resulting status. It fails if any entry is out of order or records a
// transition outside the allowed table.
func Replay(entries []StatusLogEntry) (DealStatus, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("replay: empty status log")
	}
	first := entries[0]
	if first.OldStatus != nil {
		return "", fmt.Errorf("replay: first entry has prior status %s", *first.OldStatus)
	}
	current := first.NewStatus
	for _, e := range entries[1:] {
		if e.OldStatus == nil {
			return "", fmt.Errorf("replay: duplicate creating entry for deal %s", e.DealID)
		}
		if *e.OldStatus != current {
			return "", fmt.Errorf("replay: entry expects status %s, log is at %s", *e.OldStatus, current)
		}
		if !current.CanTransitionTo(e.NewStatus) {
			return "", fmt.Errorf("replay: %w (from %s to %s)", ErrIllegalTransition, current, e.NewStatus)
		}
		current = e.NewStatus
	}
	return current, nil
}

// CanActorTransition enforces who may apply a given transition: accepting or
// rejecting a proposal is the teacher's call, completing or cancelling is
// open to either counterparty.
func CanActorTransition(d *Deal, actorID string, next DealStatus) bool {
	switch next {
	case StatusAccepted, StatusRejected:
		return actorID == d.TeacherID
	case StatusCompleted, StatusCancelled:
		return actorID == d.StudentID || actorID == d.TeacherID
	default:
		return false
	}
}
