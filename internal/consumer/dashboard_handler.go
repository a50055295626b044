package consumer

import (
	"context"
)

// Invalidator drops a cached read model so the next read recomputes it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// DashboardHandler reacts to activity events by invalidating the dashboard
// summary cache. It never touches activity state; the write side stays the
// sole status authority.
type DashboardHandler struct {
	cache Invalidator
}

// NewDashboardHandler constructs a handler over the provided cache.
func NewDashboardHandler(cache Invalidator) *DashboardHandler {
	return &DashboardHandler{cache: cache}
}

// Handle invalidates the dashboard for any activity event. Both created and
// status-changed events shift the summary counts, so there is nothing to
// inspect in the payload.
func (h *DashboardHandler) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case "activity.created", "activity.status_changed":
		return h.cache.Invalidate(ctx)
	default:
		return nil
	}
}
