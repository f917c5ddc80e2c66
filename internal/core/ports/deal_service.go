package ports

import (
	"context"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

// DealTerms are the proposed conditions of a skill swap. All fields stay
// optional until the counterparty accepts.
type DealTerms struct {
	Skill string `json:"skill"`
	Time  string `json:"time"`
	Place string `json:"place"`
}

// DealService validates and applies deal status transitions. It is the sole
// writer of the deal's status and of its audit log.
type DealService interface {
	// Propose creates the initial pending deal for a chat. It fails with
	// domain.ErrConflict when an active deal already exists.
	Propose(ctx context.Context, chatID int64, terms DealTerms) (*domain.Deal, error)
	// ApplyTransition moves a deal to newStatus on behalf of actorID. The
	// transition is committed remotely before any local state changes.
	ApplyTransition(ctx context.Context, chatID int64, newStatus domain.DealStatus, actorID, reason string) (*domain.Deal, error)
	GetChatDeal(ctx context.Context, chatID int64) (*domain.Deal, error)
	GetMyDeals(ctx context.Context) ([]*domain.Deal, error)
	GetDealLogs(ctx context.Context, dealID string) ([]domain.StatusLogEntry, error)
	// AuditLog returns the locally committed transition history for a deal,
	// in commit order.
	AuditLog(dealID string) []domain.StatusLogEntry
}
