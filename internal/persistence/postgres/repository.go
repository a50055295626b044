package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tracker/internal/domain"
	"example.com/tracker/internal/observability"
	"example.com/tracker/pkg/events"
)

const activityColumns = `activity_id, name, description, status, priority, creator_id, COALESCE(assignee_id, ''), due_date, created_at, updated_at`

// Repository provides Postgres-backed persistence for activities, their audit
// trail, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateActivity inserts a pending activity, seeds the creation audit entry,
// and records outbox events inside a single transaction.
func (r *Repository) CreateActivity(ctx context.Context, input domain.NewActivity) (*domain.Activity, error) {
	now := time.Now().UTC()
	if err := input.Validate(now); err != nil {
		return nil, err
	}

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

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storage(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertActivity = `INSERT INTO activities (activity_id, name, description, status, priority, creator_id, assignee_id, due_date, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = tx.Exec(ctx, insertActivity,
		activity.ID,
		activity.Name,
		activity.Description,
		activity.Status,
		activity.Priority,
		activity.CreatorID,
		nullIfEmpty(activity.AssigneeID),
		activity.DueDate,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return nil, storage(err)
	}

	if err = r.insertUpdate(ctx, tx, domain.ActivityUpdate{
		ActivityID: activity.ID,
		ActorID:    activity.CreatorID,
		NewStatus:  domain.StatusPending,
		Remarks:    domain.CreationRemarks,
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}

	if err = r.insertOutbox(ctx, tx, activity.ID, "activity.created", events.ActivityCreated{
		ActivityID: activity.ID,
		Name:       activity.Name,
		Priority:   string(activity.Priority),
		CreatorID:  activity.CreatorID,
		AssigneeID: activity.AssigneeID,
		DueDate:    activity.DueDate,
		CreatedAt:  activity.CreatedAt,
	}); err != nil {
		return nil, err
	}

	if err = r.insertOutbox(ctx, tx, activity.ID, "activity.status_changed", events.ActivityStatusChanged{
		ActivityID: activity.ID,
		ActorID:    activity.CreatorID,
		NewStatus:  string(domain.StatusPending),
		Remarks:    domain.CreationRemarks,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, storage(err)
	}
	observability.RecordActivityPersisted(now)
	return &activity, nil
}

// GetActivity retrieves an activity by ID.
func (r *Repository) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE activity_id=$1`, activityColumns)

	row := r.pool.QueryRow(ctx, query, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActivityNotFound
		}
		return nil, storage(err)
	}
	return activity, nil
}

// ListUpdates returns the audit trail in insertion order. The table carries a
// bigserial key, so ordering by it reproduces chronological order even when
// two entries share a timestamp.
func (r *Repository) ListUpdates(ctx context.Context, activityID string) ([]domain.ActivityUpdate, error) {
	const query = `SELECT update_id, activity_id, actor_id, previous_status, new_status, remarks, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
        FROM activity_updates WHERE activity_id=$1 ORDER BY update_id`

	rows, err := r.pool.Query(ctx, query, activityID)
	if err != nil {
		return nil, storage(err)
	}
	defer rows.Close()

	updates := make([]domain.ActivityUpdate, 0)
	for rows.Next() {
		var (
			update   domain.ActivityUpdate
			updateID int64
			previous *string
		)
		if err := rows.Scan(&updateID, &update.ActivityID, &update.ActorID, &previous, &update.NewStatus, &update.Remarks, &update.IPAddress, &update.UserAgent, &update.CreatedAt); err != nil {
			return nil, storage(err)
		}
		update.ID = strconv.FormatInt(updateID, 10)
		if previous != nil {
			status := domain.Status(*previous)
			update.PreviousStatus = &status
		}
		updates = append(updates, update)
	}
	if err := rows.Err(); err != nil {
		return nil, storage(err)
	}
	return updates, nil
}

// TransitionAndAudit performs the status change and the audit append as one
// atomic unit. The activity row is locked for the duration of the
// transaction, so concurrent transitions serialize and each audit entry's
// previous_status reflects the status actually held immediately before it.
func (r *Repository) TransitionAndAudit(ctx context.Context, activityID, actorID string, newStatus domain.Status, remarks string, reqCtx domain.RequestContext) (*domain.Activity, error) {
	if !newStatus.Valid() {
		return nil, &domain.ValidationError{Reason: "invalid status " + string(newStatus)}
	}
	if err := domain.ValidateRemarks(remarks); err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storage(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	lockQuery := fmt.Sprintf(`SELECT %s FROM activities WHERE activity_id=$1 FOR UPDATE`, activityColumns)

	activity, err := scanActivity(tx.QueryRow(ctx, lockQuery, activityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrActivityNotFound
			return nil, err
		}
		return nil, storage(err)
	}

	previous := activity.Status
	if previous == newStatus {
		err = &domain.ValidationError{Reason: "activity is already " + string(newStatus)}
		return nil, err
	}

	now := time.Now().UTC()
	if _, err = tx.Exec(ctx, `UPDATE activities SET status=$2, updated_at=$3 WHERE activity_id=$1`, activityID, newStatus, now); err != nil {
		return nil, storage(err)
	}

	if err = r.insertUpdate(ctx, tx, domain.ActivityUpdate{
		ActivityID:     activityID,
		ActorID:        actorID,
		PreviousStatus: &previous,
		NewStatus:      newStatus,
		Remarks:        remarks,
		IPAddress:      reqCtx.IPAddress,
		UserAgent:      reqCtx.UserAgent,
		CreatedAt:      now,
	}); err != nil {
		return nil, err
	}

	if err = r.insertOutbox(ctx, tx, activityID, "activity.status_changed", events.ActivityStatusChanged{
		ActivityID:     activityID,
		ActorID:        actorID,
		PreviousStatus: string(previous),
		NewStatus:      string(newStatus),
		Remarks:        remarks,
		OccurredAt:     now,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, storage(err)
	}

	activity.Status = newStatus
	activity.UpdatedAt = now
	observability.RecordStatusChanged(now)
	return activity, nil
}

// UpdateDetails edits the unrestricted fields under the row lock. Status is
// never touched on this path.
func (r *Repository) UpdateDetails(ctx context.Context, activityID string, patch domain.DetailPatch) (*domain.Activity, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storage(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	lockQuery := fmt.Sprintf(`SELECT %s FROM activities WHERE activity_id=$1 FOR UPDATE`, activityColumns)

	activity, err := scanActivity(tx.QueryRow(ctx, lockQuery, activityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrActivityNotFound
			return nil, err
		}
		return nil, storage(err)
	}

	if patch.Name != nil {
		activity.Name = *patch.Name
	}
	if patch.Description != nil {
		activity.Description = *patch.Description
	}
	if patch.Priority != nil {
		activity.Priority = *patch.Priority
	}
	if patch.ClearDueDate {
		activity.DueDate = nil
	} else if patch.DueDate != nil {
		due := *patch.DueDate
		activity.DueDate = &due
	}

	candidate := domain.NewActivity{
		Name:        activity.Name,
		Description: activity.Description,
		Priority:    activity.Priority,
		CreatorID:   activity.CreatorID,
		AssigneeID:  activity.AssigneeID,
	}
	if err = candidate.Validate(time.Now().UTC()); err != nil {
		return nil, err
	}

	activity.UpdatedAt = time.Now().UTC()
	if _, err = tx.Exec(ctx,
		`UPDATE activities SET name=$2, description=$3, priority=$4, due_date=$5, updated_at=$6 WHERE activity_id=$1`,
		activityID, activity.Name, activity.Description, activity.Priority, activity.DueDate, activity.UpdatedAt,
	); err != nil {
		return nil, storage(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, storage(err)
	}
	return activity, nil
}

// DeleteActivity removes the activity; the audit trail follows via cascade.
func (r *Repository) DeleteActivity(ctx context.Context, activityID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE activity_id=$1`, activityID)
	if err != nil {
		return storage(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// ListActivities returns activities ordered by creation time descending.
func (r *Repository) ListActivities(ctx context.Context, filter domain.ListFilter, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM activities WHERE 1=1`, activityColumns)
	args := []interface{}{}

	if filter.CreatorID != "" {
		args = append(args, filter.CreatorID)
		query += fmt.Sprintf(` AND creator_id=$%d`, len(args))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		query += fmt.Sprintf(` AND assignee_id=$%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		query += fmt.Sprintf(` AND (created_at, activity_id) < ($%d, $%d)`, len(args)-1, len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, activity_id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, storage(err)
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, storage(err)
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storage(err)
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// StatusCounts aggregates the dashboard summary in one query.
func (r *Repository) StatusCounts(ctx context.Context) (domain.Summary, error) {
	now := time.Now().UTC()
	const query = `SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status='pending'),
            COUNT(*) FILTER (WHERE status='done'),
            COUNT(*) FILTER (WHERE status='pending' AND due_date IS NOT NULL AND due_date < $1)
        FROM activities`

	summary := domain.Summary{GeneratedAt: now}
	if err := r.pool.QueryRow(ctx, query, now).Scan(&summary.Total, &summary.Pending, &summary.Done, &summary.Overdue); err != nil {
		return domain.Summary{}, storage(err)
	}
	return summary, nil
}

func (r *Repository) insertUpdate(ctx context.Context, tx pgx.Tx, update domain.ActivityUpdate) error {
	const stmt = `INSERT INTO activity_updates (activity_id, actor_id, previous_status, new_status, remarks, ip_address, user_agent, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	var previous interface{}
	if update.PreviousStatus != nil {
		previous = string(*update.PreviousStatus)
	}

	_, err := tx.Exec(ctx, stmt,
		update.ActivityID,
		update.ActorID,
		previous,
		update.NewStatus,
		update.Remarks,
		nullIfEmpty(update.IPAddress),
		nullIfEmpty(update.UserAgent),
		update.CreatedAt,
	)
	if err != nil {
		return storage(err)
	}
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, activityID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return storage(err)
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return storage(fmt.Errorf("unknown event type: %s", eventType))
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	// Partitioning by activity keeps per-activity event order intact.
	_, err = tx.Exec(ctx, stmt,
		"activity",
		activityID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		activityID,
		body,
	)
	if err != nil {
		return storage(err)
	}
	return nil
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var activity domain.Activity
	if err := row.Scan(
		&activity.ID,
		&activity.Name,
		&activity.Description,
		&activity.Status,
		&activity.Priority,
		&activity.CreatorID,
		&activity.AssigneeID,
		&activity.DueDate,
		&activity.CreatedAt,
		&activity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &activity, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// storage wraps infrastructure failures, leaving domain errors untouched.
func storage(err error) error {
	var validation *domain.ValidationError
	var authorization *domain.AuthorizationError
	var storageErr *domain.StorageError
	if errors.As(err, &validation) || errors.As(err, &authorization) || errors.As(err, &storageErr) || errors.Is(err, domain.ErrActivityNotFound) {
		return err
	}
	return &domain.StorageError{Err: err}
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"activity.created": {
		Topic:         "activity_events",
		SchemaSubject: "activity_events-value",
	},
	"activity.status_changed": {
		Topic:         "activity_status_changed",
		SchemaSubject: "activity_status_changed-value",
	},
}
