package devserver

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

// proposeDeal creates the pending deal for a chat. The proposer becomes the
// deal's student side; the chat's other member is the teacher.
func (s *store) proposeDeal(chatID int64, actorID, skill, timeStr, place string, now time.Time) (*domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("propose: %w", domain.ErrDealNotFound)
	}
	if actorID != ch.StudentID && actorID != ch.TeacherID {
		return nil, fmt.Errorf("propose: %w: not a chat member", domain.ErrForbidden)
	}
	if existing, ok := s.deals[chatID]; ok && !existing.Status.IsTerminal() {
		return nil, fmt.Errorf("propose: %w", domain.ErrConflict)
	}

	studentID, teacherID := ch.StudentID, ch.TeacherID
	if actorID == ch.TeacherID {
		studentID, teacherID = ch.TeacherID, ch.StudentID
	}

	deal := &domain.Deal{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		Status:        domain.StatusPending,
		StudentID:     studentID,
		TeacherID:     teacherID,
		ProposedSkill: skill,
		ProposedTime:  timeStr,
		ProposedPlace: place,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.deals[chatID] = deal
	s.logs[deal.ID] = append(s.logs[deal.ID], domain.StatusLogEntry{
		DealID:    deal.ID,
		NewStatus: domain.StatusPending,
		ActorID:   actorID,
		Reason:    "deal proposed",
		Timestamp: now,
	})

	clone := *deal
	return &clone, nil
}

// updateDealStatus validates and applies one transition under the store lock,
// so two racing clients serialize here and the loser sees the rejection.
func (s *store) updateDealStatus(chatID int64, actorID string, newStatus domain.DealStatus, reason string, now time.Time) (*domain.Deal, *domain.DealStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deal, ok := s.deals[chatID]
	if !ok {
		return nil, nil, fmt.Errorf("update status: %w", domain.ErrDealNotFound)
	}
	if !deal.Status.CanTransitionTo(newStatus) {
		return nil, nil, fmt.Errorf("update status: %w (from %s to %s)", domain.ErrIllegalTransition, deal.Status, newStatus)
	}
	if !domain.CanActorTransition(deal, actorID, newStatus) {
		return nil, nil, fmt.Errorf("update status: %w", domain.ErrForbidden)
	}

	old := deal.Status
	deal.Status = newStatus
	deal.UpdatedAt = now
	s.logs[deal.ID] = append(s.logs[deal.ID], domain.StatusLogEntry{
		DealID:    deal.ID,
		OldStatus: &old,
		NewStatus: newStatus,
		ActorID:   actorID,
		Reason:    reason,
		Timestamp: now,
	})

	clone := *deal
	return &clone, &old, nil
}

func (s *store) dealByChat(chatID int64) (*domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deal, ok := s.deals[chatID]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	clone := *deal
	return &clone, nil
}

// dealsForUser returns the user's non-cancelled deals, newest first omitted:
// insertion order is good enough for a test double.
func (s *store) dealsForUser(userID string) []*domain.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Deal
	for _, d := range s.deals {
		if d.Status == domain.StatusCancelled {
			continue
		}
		if d.StudentID == userID || d.TeacherID == userID {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out
}

func (s *store) logsForDeal(dealID string) ([]domain.StatusLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.logs[dealID]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	out := make([]domain.StatusLogEntry, len(entries))
	copy(out, entries)
	return out, nil
}
