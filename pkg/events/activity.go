// Package events defines shared cross-service event payloads.
package events

import "time"

// ActivityCreated represents the message emitted when a new activity is accepted.
type ActivityCreated struct {
	ActivityID string     `json:"activity_id"`
	Name       string     `json:"name"`
	Priority   string     `json:"priority"`
	CreatorID  string     `json:"creator_id"`
	AssigneeID string     `json:"assignee_id,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ActivityStatusChanged tracks status transitions (pending, done) so read-side
// consumers can invalidate dashboards without polling the store.
type ActivityStatusChanged struct {
	ActivityID     string    `json:"activity_id"`
	ActorID        string    `json:"actor_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status"`
	Remarks        string    `json:"remarks"`
	OccurredAt     time.Time `json:"occurred_at"`
}
