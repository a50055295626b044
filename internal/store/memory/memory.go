// Package memory provides an in-memory ActivityStore for unit tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"example.com/tracker/internal/domain"
)

type record struct {
	mu       sync.Mutex // serializes transitions on this activity
	activity domain.Activity
	updates  []domain.ActivityUpdate
}

// Store keeps activities and their audit trails in memory. Transitions on a
// single activity are serialized by a per-record mutex, matching the row-lock
// semantics of the Postgres store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	seq     int64
	clock   func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*record),
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the store clock. Intended for tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// CreateActivity inserts a pending activity and seeds its creation audit
// entry in one step.
func (s *Store) CreateActivity(ctx context.Context, input domain.NewActivity) (*domain.Activity, error) {
	now := s.clock()
	if err := input.Validate(now); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	activity := domain.Activity{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Status:      domain.StatusPending,
		Priority:    input.Priority.OrDefault(),
		CreatorID:   input.CreatorID,
		AssigneeID:  input.AssigneeID,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	rec := &record{activity: activity}
	rec.updates = append(rec.updates, domain.ActivityUpdate{
		ID:         s.nextUpdateID(),
		ActivityID: activity.ID,
		ActorID:    input.CreatorID,
		NewStatus:  domain.StatusPending,
		Remarks:    domain.CreationRemarks,
		CreatedAt:  now,
	})
	s.records[activity.ID] = rec

	out := activity
	return &out, nil
}

// GetActivity fetches an activity by ID.
func (s *Store) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	rec, err := s.lookup(activityID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := rec.activity
	return &out, nil
}

// ListUpdates returns the audit trail in chronological order. Entries are
// copied out; callers cannot reach the stored rows.
func (s *Store) ListUpdates(ctx context.Context, activityID string) ([]domain.ActivityUpdate, error) {
	rec, err := s.lookup(activityID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]domain.ActivityUpdate, len(rec.updates))
	copy(out, rec.updates)
	return out, nil
}

// TransitionAndAudit changes the status and appends the audit entry under the
// per-activity lock. PreviousStatus is the status read under that lock, so
// concurrent transitions observe a well-defined order.
func (s *Store) TransitionAndAudit(ctx context.Context, activityID, actorID string, newStatus domain.Status, remarks string, reqCtx domain.RequestContext) (*domain.Activity, error) {
	if !newStatus.Valid() {
		return nil, &domain.ValidationError{Reason: "invalid status " + string(newStatus)}
	}
	if err := domain.ValidateRemarks(remarks); err != nil {
		return nil, err
	}

	rec, err := s.lookup(activityID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	previous := rec.activity.Status
	if previous == newStatus {
		return nil, &domain.ValidationError{Reason: "activity is already " + string(newStatus)}
	}

	now := s.clock()
	rec.activity.Status = newStatus
	rec.activity.UpdatedAt = now
	rec.updates = append(rec.updates, domain.ActivityUpdate{
		ID:             s.nextUpdateID(),
		ActivityID:     activityID,
		ActorID:        actorID,
		PreviousStatus: &previous,
		NewStatus:      newStatus,
		Remarks:        remarks,
		IPAddress:      reqCtx.IPAddress,
		UserAgent:      reqCtx.UserAgent,
		CreatedAt:      now,
	})

	out := rec.activity
	return &out, nil
}

// UpdateDetails edits the unrestricted fields. Status is never touched here.
func (s *Store) UpdateDetails(ctx context.Context, activityID string, patch domain.DetailPatch) (*domain.Activity, error) {
	rec, err := s.lookup(activityID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	next := rec.activity
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Priority != nil {
		next.Priority = *patch.Priority
	}
	if patch.ClearDueDate {
		next.DueDate = nil
	} else if patch.DueDate != nil {
		due := *patch.DueDate
		next.DueDate = &due
	}

	candidate := domain.NewActivity{
		Name:        next.Name,
		Description: next.Description,
		Priority:    next.Priority,
		CreatorID:   next.CreatorID,
		AssigneeID:  next.AssigneeID,
	}
	if err := candidate.Validate(s.clock()); err != nil {
		return nil, err
	}

	next.UpdatedAt = s.clock()
	rec.activity = next
	out := next
	return &out, nil
}

// DeleteActivity removes an activity and its audit trail.
func (s *Store) DeleteActivity(ctx context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[activityID]; !ok {
		return domain.ErrActivityNotFound
	}
	delete(s.records, activityID)
	return nil
}

// ListActivities returns activities ordered by creation time descending with
// cursor pagination.
func (s *Store) ListActivities(ctx context.Context, filter domain.ListFilter, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	all := make([]domain.Activity, 0, len(s.records))
	for _, rec := range s.records {
		rec.mu.Lock()
		all = append(all, rec.activity)
		rec.mu.Unlock()
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	results := make([]domain.Activity, 0, limit)
	for _, activity := range all {
		if !matches(activity, filter) {
			continue
		}
		if cursor != nil && !after(cursor, activity) {
			continue
		}
		results = append(results, activity)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// StatusCounts aggregates activity counts for the dashboard.
func (s *Store) StatusCounts(ctx context.Context) (domain.Summary, error) {
	now := s.clock()
	summary := domain.Summary{GeneratedAt: now}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		rec.mu.Lock()
		activity := rec.activity
		rec.mu.Unlock()

		summary.Total++
		switch activity.Status {
		case domain.StatusPending:
			summary.Pending++
			if activity.DueDate != nil && activity.DueDate.Before(now) {
				summary.Overdue++
			}
		case domain.StatusDone:
			summary.Done++
		}
	}
	return summary, nil
}

func (s *Store) lookup(activityID string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[activityID]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	return rec, nil
}

// nextUpdateID produces update IDs that sort in insertion order, mirroring
// the bigserial key of the Postgres audit table.
func (s *Store) nextUpdateID() string {
	return fmt.Sprintf("%016d", atomic.AddInt64(&s.seq, 1))
}

func matches(activity domain.Activity, filter domain.ListFilter) bool {
	if filter.CreatorID != "" && activity.CreatorID != filter.CreatorID {
		return false
	}
	if filter.AssigneeID != "" && activity.AssigneeID != filter.AssigneeID {
		return false
	}
	if filter.Status != "" && activity.Status != filter.Status {
		return false
	}
	return true
}

func after(cursor *domain.Cursor, activity domain.Activity) bool {
	if activity.CreatedAt.Before(cursor.CreatedAt) {
		return true
	}
	return activity.CreatedAt.Equal(cursor.CreatedAt) && activity.ID < cursor.ID
}
