package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWritesInitialHistory(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGormComplaintRepository(gdb, NewGormReservationLedger(gdb))
	ctx := context.Background()

	c := newComplaint("a@campus.edu", models.PriorityNormal, "2025-03-12", "9-10 AM")
	require.NoError(t, repo.CreateWithReservation(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "9-10 AM", *got.SlotLabel)

	hist, err := repo.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Nil(t, hist[0].FromStatus)
	assert.Equal(t, models.StatusPending, hist[0].ToStatus)
	assert.Equal(t, "a@campus.edu", hist[0].ActorID)
}

func TestGetByIDNotFound(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGormComplaintRepository(gdb, NewGormReservationLedger(gdb))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrComplaintNotFound)
	assert.ErrorIs(t, err, domainerr.ErrNotFound)
}

func TestApplyStatusIsCompareAndSet(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGormComplaintRepository(gdb, NewGormReservationLedger(gdb))
	ctx := context.Background()

	c := newComplaint("a@campus.edu", models.PriorityNormal, "", "")
	require.NoError(t, repo.CreateWithReservation(ctx, c))

	staff := models.Actor{ID: "staff@campus.edu", Role: models.RoleStaff}
	now := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	updated, err := repo.ApplyStatus(ctx, c.ID, StatusUpdate{
		From: models.StatusPending, To: models.StatusInProgress, UpdatedAt: now, Actor: staff,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)

	// A second writer still believing the complaint is Pending loses.
	_, err = repo.ApplyStatus(ctx, c.ID, StatusUpdate{
		From: models.StatusPending, To: models.StatusResolved, UpdatedAt: now, Actor: staff,
	})
	assert.ErrorIs(t, err, ErrStatusChanged)
	assert.ErrorIs(t, err, domainerr.ErrInvalidTransition)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)

	hist, err := repo.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, models.StatusPending, *hist[1].FromStatus)
	assert.Equal(t, models.StatusInProgress, hist[1].ToStatus)

	_, err = repo.ApplyStatus(ctx, "missing", StatusUpdate{From: models.StatusPending, To: models.StatusResolved, Actor: staff})
	assert.ErrorIs(t, err, ErrComplaintNotFound)
}

func TestApplyStatusStoresReopenAndAssignment(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGormComplaintRepository(gdb, NewGormReservationLedger(gdb))
	ctx := context.Background()

	c := newComplaint("a@campus.edu", models.PriorityNormal, "", "")
	require.NoError(t, repo.CreateWithReservation(ctx, c))
	now := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)

	updated, err := repo.ApplyStatus(ctx, c.ID, StatusUpdate{
		From: models.StatusPending, To: models.StatusAssigned,
		AssignedTo: strPtr("tech@campus.edu"), AssignedSupervisor: strPtr("sup@campus.edu"),
		UpdatedAt: now, Actor: models.Actor{ID: "sup@campus.edu", Role: models.RoleSupervisor},
	})
	require.NoError(t, err)
	assert.Equal(t, "tech@campus.edu", *updated.AssignedTo)
	assert.Equal(t, "sup@campus.edu", *updated.AssignedSupervisor)

	_, err = repo.ApplyStatus(ctx, c.ID, StatusUpdate{
		From: models.StatusAssigned, To: models.StatusResolved, UpdatedAt: now,
		Actor: models.Actor{ID: "tech@campus.edu", Role: models.RoleMaintenance},
	})
	require.NoError(t, err)

	reopenedAt := now.Add(time.Hour)
	updated, err = repo.ApplyStatus(ctx, c.ID, StatusUpdate{
		From: models.StatusResolved, To: models.StatusReopened,
		ReopenedAt: &reopenedAt, ReopenedNote: strPtr("still flickering"), Note: strPtr("still flickering"),
		UpdatedAt: reopenedAt, Actor: models.Actor{ID: "a@campus.edu", Role: models.RoleStudent},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReopened, updated.Status)
	assert.Equal(t, "still flickering", *updated.ReopenedNote)
	require.NotNil(t, updated.ReopenedAt)
	assert.True(t, reopenedAt.Equal(*updated.ReopenedAt))
	assert.Equal(t, models.PriorityLow, updated.Priority)
}

func TestListFiltersAndPaginates(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGormComplaintRepository(gdb, NewGormReservationLedger(gdb))
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c := newComplaint("a@campus.edu", models.PriorityNormal, "", "")
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.CreateWithReservation(ctx, c))
	}
	other := newComplaint("b@campus.edu", models.PriorityNormal, "", "")
	other.Category = "Plumbing"
	require.NoError(t, repo.CreateWithReservation(ctx, other))

	list, total, err := repo.List(ctx, ComplaintFilter{SubmitterID: "a@campus.edu", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt), "newest first")

	list, total, err = repo.List(ctx, ComplaintFilter{Category: "Plumbing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, other.ID, list[0].ID)
}

func TestRetryPolicy(t *testing.T) {
	busy := errors.New("database is locked")

	t.Run("retries transient errors until success", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{Attempts: 3, Base: time.Millisecond}.run(context.Background(), func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{Attempts: 3, Base: time.Millisecond}.run(context.Background(), func() error {
			calls++
			return busy
		})
		assert.ErrorIs(t, err, busy)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		calls := 0
		err := DefaultRetryPolicy.run(context.Background(), func() error {
			calls++
			return ErrSlotTaken
		})
		assert.ErrorIs(t, err, ErrSlotTaken)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := DefaultRetryPolicy.run(ctx, func() error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isTransient(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isTransient(errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")))
	assert.False(t, isTransient(errors.New("UNIQUE constraint failed: slot_reservations.slot_date")))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: slot_reservations.slot_date")))
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_slot_reservation_date_label"`)))
	assert.False(t, isUniqueViolation(nil))
}
