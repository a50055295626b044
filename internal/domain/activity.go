package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the two-state lifecycle of an activity.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusDone
}

// Priority ranks an activity for triage. It never affects transitions.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority values.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// OrDefault substitutes the medium priority when p is unset.
func (p Priority) OrDefault() Priority {
	if p == "" {
		return PriorityMedium
	}
	return p
}

// CreationRemarks is recorded on the synthetic audit entry seeded at creation.
const CreationRemarks = "Activity created"

// MinRemarksLength is the minimum number of characters a transition remark must carry.
const MinRemarksLength = 10

// Activity is a trackable unit of work. Status is never written directly;
// every status the activity has ever held is backed by an ActivityUpdate row.
type Activity struct {
	ID          string
	Name        string
	Description string
	Status      Status
	Priority    Priority
	CreatorID   string
	AssigneeID  string
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActivityUpdate is one immutable entry in an activity's append-only audit
// trail. PreviousStatus is nil only on the creation entry.
type ActivityUpdate struct {
	ID             string
	ActivityID     string
	ActorID        string
	PreviousStatus *Status
	NewStatus      Status
	Remarks        string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}

// RequestContext carries optional request metadata into audit entries.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// NewActivity is the store-level creation payload.
type NewActivity struct {
	Name        string
	Description string
	Priority    Priority
	CreatorID   string
	AssigneeID  string
	DueDate     *time.Time
}

// Validate checks the creation constraints. now anchors the due-date check so
// stores and tests share one clock.
func (n NewActivity) Validate(now time.Time) error {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return &ValidationError{Reason: "name is required"}
	}
	if utf8.RuneCountInString(name) > 255 {
		return &ValidationError{Reason: "name must be at most 255 characters"}
	}
	if strings.TrimSpace(n.Description) == "" {
		return &ValidationError{Reason: "description is required"}
	}
	if !n.Priority.OrDefault().Valid() {
		return &ValidationError{Reason: fmt.Sprintf("invalid priority %q", n.Priority)}
	}
	if strings.TrimSpace(n.CreatorID) == "" {
		return &ValidationError{Reason: "creator is required"}
	}
	if n.DueDate != nil && beforeDay(*n.DueDate, now) {
		return &ValidationError{Reason: "due date must be today or later"}
	}
	return nil
}

// DetailPatch describes an edit to the unrestricted activity fields. Nil
// fields are left unchanged. Status is deliberately absent.
type DetailPatch struct {
	Name         *string
	Description  *string
	Priority     *Priority
	DueDate      *time.Time
	ClearDueDate bool
}

// ValidateRemarks enforces the audit remark contract shared by transitions
// and the store-level append path.
func ValidateRemarks(remarks string) error {
	if utf8.RuneCountInString(strings.TrimSpace(remarks)) < MinRemarksLength {
		return &ValidationError{Reason: fmt.Sprintf("remarks must be at least %d characters", MinRemarksLength)}
	}
	return nil
}

// beforeDay reports whether t falls on an earlier calendar day than ref (UTC).
func beforeDay(t, ref time.Time) bool {
	ty, tm, td := t.UTC().Date()
	ry, rm, rd := ref.UTC().Date()
	if ty != ry {
		return ty < ry
	}
	if tm != rm {
		return tm < rm
	}
	return td < rd
}
