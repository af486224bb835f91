package app

import (
	"context"
	"strings"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"go.uber.org/zap"
)

// HistoryRepository persists the customer-notified flag of history entries.
type HistoryRepository interface {
	MarkHistoryNotified(ctx context.Context, orderID int64, entryID string) error
}

var captureMarkers = []string{"Captured amount", "Invoice", "Capture"}

// IsCaptureRelatedHistoryEntry matches entries written by invoice, capture
// or email side effects. It is a comment heuristic: an entry qualifies when
// its comment mentions a capture or invoice, or when it carries the order's
// current status.
func IsCaptureRelatedHistoryEntry(e domain.HistoryEntry, o *domain.Order) bool {
	for _, m := range captureMarkers {
		if strings.Contains(e.Comment, m) {
			return true
		}
	}
	return e.Status != "" && e.Status == o.Status
}

// HistoryReconciler flags the latest capture-related history entry as
// customer notified once the matching email went out.
type HistoryReconciler struct {
	repo   HistoryRepository
	logger *zap.Logger
}

func NewHistoryReconciler(repo HistoryRepository, logger *zap.Logger) *HistoryReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryReconciler{repo: repo, logger: logger}
}

// MarkLatestNotified flags the newest matching entry in memory. It returns
// the entry index and whether a flag changed.
func (h *HistoryReconciler) MarkLatestNotified(o *domain.Order) (int, bool) {
	for _, i := range o.HistoryNewestFirst() {
		if !IsCaptureRelatedHistoryEntry(o.History[i], o) {
			continue
		}
		if o.History[i].IsCustomerNotified {
			return i, false
		}
		o.History[i].IsCustomerNotified = true
		return i, true
	}
	return -1, false
}

// Reconcile marks the latest matching entry and persists it. Failures are
// logged only.
func (h *HistoryReconciler) Reconcile(ctx context.Context, o *domain.Order) {
	i, changed := h.MarkLatestNotified(o)
	if !changed {
		return
	}
	entry := o.History[i]
	if entry.ID == "" || h.repo == nil {
		return
	}
	if err := h.repo.MarkHistoryNotified(ctx, o.EntityID, entry.ID); err != nil {
		h.logger.Warn("mark history notified failed",
			zap.String("order_id", o.IncrementID),
			zap.String("history_id", entry.ID),
			zap.Error(err),
		)
	}
}
