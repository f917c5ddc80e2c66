package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
	"github.com/skillswap/skillswap-client/internal/core/ports"
	"github.com/skillswap/skillswap-client/internal/metrics"
)

// DealService drives the negotiation state machine. It keeps a local snapshot
// of each chat's deal, validates transitions against the allowed table before
// touching the network, and mutates the snapshot only after the remote commit
// succeeded. The audit log therefore never records a transition the server
// did not accept.
type DealService struct {
	gw    ports.Gateway
	audit *AuditLog
	now   func() time.Time
	log   zerolog.Logger

	mu    sync.Mutex
	deals map[int64]*domain.Deal // chat id -> last committed snapshot
}

var _ ports.DealService = (*DealService)(nil)

func NewDealService(gw ports.Gateway, log zerolog.Logger) *DealService {
	return &DealService{
		gw:    gw,
		audit: NewAuditLog(),
		now:   time.Now,
		log:   log,
		deals: make(map[int64]*domain.Deal),
	}
}

type statusUpdateRequest struct {
	Status domain.DealStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
}

// Propose creates the initial pending deal for a chat. A still-active deal on
// the same chat is a conflict, checked locally first and enforced again by
// the server.
func (s *DealService) Propose(ctx context.Context, chatID int64, terms ports.DealTerms) (*domain.Deal, error) {
	s.mu.Lock()
	if existing, ok := s.deals[chatID]; ok && !existing.Status.IsTerminal() {
		s.mu.Unlock()
		metrics.TransitionsRejectedTotal.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("propose: %w", domain.ErrConflict)
	}
	s.mu.Unlock()

	resp, err := s.gw.Do(ctx, ports.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/deals/chats/%d/propose", chatID),
		Body:   terms,
	})
	if err != nil {
		return nil, err
	}

	deal, err := decodeDeal(resp)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.deals[chatID] = deal
	s.mu.Unlock()

	s.audit.Append(domain.StatusLogEntry{
		DealID:    deal.ID,
		NewStatus: deal.Status,
		ActorID:   deal.StudentID,
		Reason:    "deal proposed",
		Timestamp: s.now(),
	})
	metrics.TransitionsTotal.WithLabelValues("", string(deal.Status)).Inc()

	s.log.Info().Str("deal_id", deal.ID).Int64("chat_id", chatID).Str("skill", terms.Skill).Msg("deal proposed")
	return deal, nil
}

// ApplyTransition moves the chat's deal to newStatus on behalf of actorID.
// Validation order: transition table, then actor policy, then the remote
// commit. A failure at any point leaves the local record and log untouched.
func (s *DealService) ApplyTransition(ctx context.Context, chatID int64, newStatus domain.DealStatus, actorID, reason string) (*domain.Deal, error) {
	s.mu.Lock()
	current, ok := s.deals[chatID]
	if !ok {
		s.mu.Unlock()
		deal, err := s.GetChatDeal(ctx, chatID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		current = deal
	}
	oldStatus := current.Status
	s.mu.Unlock()

	if !oldStatus.CanTransitionTo(newStatus) {
		metrics.TransitionsRejectedTotal.WithLabelValues("illegal_transition").Inc()
		return nil, fmt.Errorf("%w (from %s to %s)", domain.ErrIllegalTransition, oldStatus, newStatus)
	}
	if !domain.CanActorTransition(current, actorID, newStatus) {
		metrics.TransitionsRejectedTotal.WithLabelValues("forbidden").Inc()
		return nil, fmt.Errorf("%w: actor %s may not set %s", domain.ErrForbidden, actorID, newStatus)
	}

	resp, err := s.gw.Do(ctx, ports.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/deals/chats/%d/status", chatID),
		Body:   statusUpdateRequest{Status: newStatus, Reason: reason},
	})
	if err != nil {
		// Two clients can race at the server; the loser sees the server's
		// rejection here and the local snapshot stays as it was.
		return nil, err
	}

	deal, err := decodeDeal(resp)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Re-check against the snapshot under the lock: a concurrent local call
	// may have committed first, and the log must follow commit order.
	if snap, ok := s.deals[chatID]; ok && snap.Status != oldStatus {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w (from %s to %s)", domain.ErrIllegalTransition, snap.Status, newStatus)
	}
	s.deals[chatID] = deal
	s.mu.Unlock()

	prior := oldStatus
	s.audit.Append(domain.StatusLogEntry{
		DealID:    deal.ID,
		OldStatus: &prior,
		NewStatus: deal.Status,
		ActorID:   actorID,
		Reason:    reason,
		Timestamp: s.now(),
	})
	metrics.TransitionsTotal.WithLabelValues(string(oldStatus), string(deal.Status)).Inc()

	s.log.Info().
		Str("deal_id", deal.ID).
		Str("from", string(oldStatus)).
		Str("to", string(deal.Status)).
		Str("actor_id", actorID).
		Msg("deal transition committed")
	return deal, nil
}

// GetChatDeal fetches the current deal for a chat and refreshes the local
// snapshot.
func (s *DealService) GetChatDeal(ctx context.Context, chatID int64) (*domain.Deal, error) {
	resp, err := s.gw.Do(ctx, ports.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/deals/chats/%d", chatID),
	})
	if err != nil {
		return nil, err
	}
	deal, err := decodeDeal(resp)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.deals[chatID] = deal
	s.mu.Unlock()
	return deal, nil
}

// GetMyDeals returns the caller's deals as reported by the server.
func (s *DealService) GetMyDeals(ctx context.Context) ([]*domain.Deal, error) {
	resp, err := s.gw.Do(ctx, ports.Request{Method: http.MethodGet, Path: "/deals/my"})
	if err != nil {
		return nil, err
	}
	var deals []*domain.Deal
	if err := decodeJSON(resp, &deals); err != nil {
		return nil, err
	}
	return deals, nil
}

// GetDealLogs returns the server-side transition history for a deal.
func (s *DealService) GetDealLogs(ctx context.Context, dealID string) ([]domain.StatusLogEntry, error) {
	resp, err := s.gw.Do(ctx, ports.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/deals/%s/logs", dealID),
	})
	if err != nil {
		return nil, err
	}
	var entries []domain.StatusLogEntry
	if err := decodeJSON(resp, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AuditLog returns the locally committed transition history for a deal.
func (s *DealService) AuditLog(dealID string) []domain.StatusLogEntry {
	return s.audit.Entries(dealID)
}

func decodeDeal(resp *ports.Response) (*domain.Deal, error) {
	var deal domain.Deal
	if err := decodeJSON(resp, &deal); err != nil {
		return nil, fmt.Errorf("decode deal: %w", err)
	}
	if deal.ID == "" {
		return nil, errors.New("decode deal: missing id")
	}
	return &deal, nil
}

// decodeJSON unmarshals a gateway response body into out. A void response
// leaves out untouched.
func decodeJSON(resp *ports.Response, out any) error {
	if len(resp.Body) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}
