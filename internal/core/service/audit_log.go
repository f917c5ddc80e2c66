package service

import (
	"sync"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

// AuditLog is the append-only record of committed deal transitions. The deal
// service is its sole writer; entries are appended only after the remote
// commit succeeded, so per-deal order is commit order.
type AuditLog struct {
	mu      sync.RWMutex
	entries map[string][]domain.StatusLogEntry // deal id -> ordered entries
}

func NewAuditLog() *AuditLog {
	return &AuditLog{entries: make(map[string][]domain.StatusLogEntry)}
}

// Append records one committed transition.
func (l *AuditLog) Append(entry domain.StatusLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.DealID] = append(l.entries[entry.DealID], entry)
}

// Entries returns a copy of the log for one deal, in commit order.
func (l *AuditLog) Entries(dealID string) []domain.StatusLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.entries[dealID]
	out := make([]domain.StatusLogEntry, len(src))
	copy(out, src)
	return out
}
