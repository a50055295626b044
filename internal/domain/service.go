// Package domain defines the business logic for the activity tracker.
package domain

import (
	"context"
	"time"
)

// Principal is the authenticated identity acting on an activity. The core
// never inspects role names; elevated authority is resolved upstream into a
// single capability check.
type Principal interface {
	ID() string
	HasElevatedAuthority() bool
}

// Cursor models the pagination token for activity listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ListFilter narrows an activity listing. Zero values match everything.
type ListFilter struct {
	CreatorID  string
	AssigneeID string
	Status     Status
}

// Summary aggregates activity counts for the dashboard read side.
type Summary struct {
	Total       int64     `json:"total"`
	Pending     int64     `json:"pending"`
	Done        int64     `json:"done"`
	Overdue     int64     `json:"overdue"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ActivityStore captures persistence operations. TransitionAndAudit is the
// only way a stored status ever changes, and it must execute the status write
// and the audit append as one atomic unit serialized per activity.
type ActivityStore interface {
	CreateActivity(ctx context.Context, input NewActivity) (*Activity, error)
	GetActivity(ctx context.Context, activityID string) (*Activity, error)
	ListUpdates(ctx context.Context, activityID string) ([]ActivityUpdate, error)
	TransitionAndAudit(ctx context.Context, activityID, actorID string, newStatus Status, remarks string, reqCtx RequestContext) (*Activity, error)
	UpdateDetails(ctx context.Context, activityID string, patch DetailPatch) (*Activity, error)
	DeleteActivity(ctx context.Context, activityID string) error
	ListActivities(ctx context.Context, filter ListFilter, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	StatusCounts(ctx context.Context) (Summary, error)
}

// Service is the status transition authority. All status changes, and the
// audit entries that justify them, flow through here.
type Service struct {
	store ActivityStore
}

// NewService constructs a Service.
func NewService(store ActivityStore) *Service {
	return &Service{store: store}
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	Name        string
	Description string
	Priority    Priority
	AssigneeID  string
	DueDate     *time.Time
}

// TransitionResult is the outcome of a successful transition request.
type TransitionResult struct {
	Activity             *Activity
	AvailableTransitions []Status
}

// CreateActivity validates the payload and persists a new pending activity.
// The store seeds the creation audit entry in the same atomic unit as the
// insert, so the audit invariant holds from the first row.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput, creator Principal) (*Activity, error) {
	candidate := NewActivity{
		Name:        input.Name,
		Description: input.Description,
		Priority:    input.Priority.OrDefault(),
		CreatorID:   creator.ID(),
		AssigneeID:  input.AssigneeID,
		DueDate:     input.DueDate,
	}
	if err := candidate.Validate(time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.store.CreateActivity(ctx, candidate)
}

// RequestTransition moves an activity between pending and done. Checks run in
// a fixed order: remarks, status value, authorization, then the state machine
// itself inside the store's atomic write.
func (s *Service) RequestTransition(ctx context.Context, activityID string, actor Principal, newStatus Status, remarks string, reqCtx RequestContext) (*TransitionResult, error) {
	if err := ValidateRemarks(remarks); err != nil {
		return nil, err
	}
	if !newStatus.Valid() {
		return nil, &ValidationError{Reason: "invalid status " + string(newStatus)}
	}

	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	// Evaluated fresh on every call; standing is never cached on the activity.
	if !CanUpdateStatus(activity, actor) {
		return nil, &AuthorizationError{Reason: "actor may not change the status of this activity"}
	}

	updated, err := s.store.TransitionAndAudit(ctx, activityID, actor.ID(), newStatus, remarks, reqCtx)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{
		Activity:             updated,
		AvailableTransitions: AvailableTransitions(updated.Status),
	}, nil
}

// CanUpdateStatus is the authorization rule for transitions: creator,
// assignee, or elevated authority.
func CanUpdateStatus(activity *Activity, actor Principal) bool {
	if actor.HasElevatedAuthority() {
		return true
	}
	id := actor.ID()
	if id == activity.CreatorID {
		return true
	}
	return activity.AssigneeID != "" && id == activity.AssigneeID
}

// AvailableTransitions returns the legal next statuses. In the two-state
// model this is always exactly the other status.
func AvailableTransitions(current Status) []Status {
	if current == StatusPending {
		return []Status{StatusDone}
	}
	return []Status{StatusPending}
}

// GetActivityWithHistory fetches an activity together with its ordered audit
// trail.
func (s *Service) GetActivityWithHistory(ctx context.Context, activityID string) (*Activity, []ActivityUpdate, error) {
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, nil, err
	}
	updates, err := s.store.ListUpdates(ctx, activityID)
	if err != nil {
		return nil, nil, err
	}
	return activity, updates, nil
}

// EditActivity applies unrestricted field edits. The same standing rule as
// transitions applies; status is untouched and no audit entry is written.
func (s *Service) EditActivity(ctx context.Context, activityID string, actor Principal, patch DetailPatch) (*Activity, error) {
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !CanUpdateStatus(activity, actor) {
		return nil, &AuthorizationError{Reason: "actor may not edit this activity"}
	}
	return s.store.UpdateDetails(ctx, activityID, patch)
}

// DeleteActivity removes an activity and its audit trail. Only pending
// activities may be deleted, unless the actor holds elevated authority.
func (s *Service) DeleteActivity(ctx context.Context, activityID string, actor Principal) error {
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if !CanUpdateStatus(activity, actor) {
		return &AuthorizationError{Reason: "actor may not delete this activity"}
	}
	if activity.Status != StatusPending && !actor.HasElevatedAuthority() {
		return &AuthorizationError{Reason: "only pending activities may be deleted"}
	}
	return s.store.DeleteActivity(ctx, activityID)
}

// ListActivities fetches activities with cursor pagination.
func (s *Service) ListActivities(ctx context.Context, filter ListFilter, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.store.ListActivities(ctx, filter, cursor, limit)
}

// StatusSummary aggregates status counts for the dashboard.
func (s *Service) StatusSummary(ctx context.Context) (Summary, error) {
	return s.store.StatusCounts(ctx)
}
