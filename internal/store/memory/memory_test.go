package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tracker/internal/domain"
)

func seedActivity(t *testing.T, store *Store) *domain.Activity {
	t.Helper()
	activity, err := store.CreateActivity(context.Background(), domain.NewActivity{
		Name:        "Inventory recount",
		Description: "Recount the warehouse inventory",
		CreatorID:   "u1",
	})
	require.NoError(t, err)
	return activity
}

func TestCreateSeedsCreationEntry(t *testing.T) {
	store := NewStore()
	activity := seedActivity(t, store)

	updates, err := store.ListUpdates(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Nil(t, updates[0].PreviousStatus)
	require.Equal(t, domain.StatusPending, updates[0].NewStatus)
	require.Equal(t, domain.CreationRemarks, updates[0].Remarks)
}

func TestTransitionRecordsPreviousStatus(t *testing.T) {
	store := NewStore()
	activity := seedActivity(t, store)

	updated, err := store.TransitionAndAudit(context.Background(), activity.ID, "u1", domain.StatusDone, "wrapped up this afternoon", domain.RequestContext{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusDone, updated.Status)

	updates, err := store.ListUpdates(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.Equal(t, domain.StatusPending, *updates[1].PreviousStatus)
}

func TestTransitionRejectsNoOp(t *testing.T) {
	store := NewStore()
	activity := seedActivity(t, store)

	_, err := store.TransitionAndAudit(context.Background(), activity.ID, "u1", domain.StatusPending, "still pending over here", domain.RequestContext{})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)

	updates, listErr := store.ListUpdates(context.Background(), activity.ID)
	require.NoError(t, listErr)
	require.Len(t, updates, 1)
}

func TestListUpdatesReturnsCopies(t *testing.T) {
	store := NewStore()
	activity := seedActivity(t, store)

	updates, err := store.ListUpdates(context.Background(), activity.ID)
	require.NoError(t, err)
	updates[0].Remarks = "tampered with"
	updates[0].NewStatus = domain.StatusDone

	fresh, err := store.ListUpdates(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CreationRemarks, fresh[0].Remarks)
	require.Equal(t, domain.StatusPending, fresh[0].NewStatus)
}

func TestConcurrentTransitionsSerialize(t *testing.T) {
	store := NewStore()
	activity := seedActivity(t, store)

	// Hammer the same activity from many goroutines; every committed entry
	// must chain off the status the activity actually held.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		status := domain.StatusDone
		if i%2 == 1 {
			status = domain.StatusPending
		}
		wg.Add(1)
		go func(status domain.Status) {
			defer wg.Done()
			_, _ = store.TransitionAndAudit(context.Background(), activity.ID, "u1", status, "concurrent status change", domain.RequestContext{})
		}(status)
	}
	wg.Wait()

	current, err := store.GetActivity(context.Background(), activity.ID)
	require.NoError(t, err)

	updates, err := store.ListUpdates(context.Background(), activity.ID)
	require.NoError(t, err)
	require.NotEmpty(t, updates)
	require.Nil(t, updates[0].PreviousStatus)
	require.Equal(t, current.Status, updates[len(updates)-1].NewStatus)
	for i := 1; i < len(updates); i++ {
		require.NotNil(t, updates[i].PreviousStatus)
		require.Equal(t, updates[i-1].NewStatus, *updates[i].PreviousStatus)
	}
}

func TestListActivitiesPagination(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store := NewStore().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	for i := 0; i < 5; i++ {
		seedActivity(t, store)
	}

	first, cursor, err := store.ListActivities(context.Background(), domain.ListFilter{}, nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.NotNil(t, cursor)

	second, _, err := store.ListActivities(context.Background(), domain.ListFilter{}, cursor, 3)
	require.NoError(t, err)
	require.Len(t, second, 2)

	seen := map[string]bool{}
	for _, activity := range append(first, second...) {
		require.False(t, seen[activity.ID])
		seen[activity.ID] = true
	}
}

func TestStatusCounts(t *testing.T) {
	store := NewStore()

	first := seedActivity(t, store)
	seedActivity(t, store)
	_, err := store.TransitionAndAudit(context.Background(), first.ID, "u1", domain.StatusDone, "wrapped up this afternoon", domain.RequestContext{})
	require.NoError(t, err)

	summary, err := store.StatusCounts(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.Total)
	require.EqualValues(t, 1, summary.Pending)
	require.EqualValues(t, 1, summary.Done)
}

func TestDeleteUnknownActivity(t *testing.T) {
	store := NewStore()
	err := store.DeleteActivity(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
}
