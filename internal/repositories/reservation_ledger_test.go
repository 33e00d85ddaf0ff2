package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentNormalReservationsExactlyOneWins(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGormComplaintRepository(gdb, NewGormReservationLedger(gdb))

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = repo.CreateWithReservation(context.Background(),
				newComplaint(fmt.Sprintf("s%d@campus.edu", i), models.PriorityNormal, "2025-03-12", "10-11 AM"))
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotTaken)
		assert.ErrorIs(t, err, domainerr.ErrSchedulingConflict)
		assert.Equal(t, "slot_taken", domainerr.Rule(err))
	}
	assert.Equal(t, 1, wins)

	var complaints int64
	require.NoError(t, gdb.Model(&models.Complaint{}).Count(&complaints).Error)
	assert.Equal(t, int64(1), complaints, "losers must leave no complaint behind")

	var reservations int64
	require.NoError(t, gdb.Model(&models.SlotReservation{}).Count(&reservations).Error)
	assert.Equal(t, int64(1), reservations)
}

func TestHighPriorityBypassesExistingReservation(t *testing.T) {
	gdb := newTestDB(t)
	ledger := NewGormReservationLedger(gdb)
	repo := NewGormComplaintRepository(gdb, ledger)
	ctx := context.Background()

	normal := newComplaint("a@campus.edu", models.PriorityNormal, "2025-03-12", "10-11 AM")
	require.NoError(t, repo.CreateWithReservation(ctx, normal))

	high1 := newComplaint("b@campus.edu", models.PriorityHigh, "2025-03-12", "10-11 AM")
	high2 := newComplaint("c@campus.edu", models.PriorityHigh, "2025-03-12", "10-11 AM")
	require.NoError(t, repo.CreateWithReservation(ctx, high1))
	require.NoError(t, repo.CreateWithReservation(ctx, high2))

	occ, err := ledger.Occupancy(ctx, "2025-03-12")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"10-11 AM": normal.ID}, occ)

	high, err := ledger.HighBookings(ctx, "2025-03-12")
	require.NoError(t, err)
	assert.Equal(t, int64(2), high["10-11 AM"])
}

func TestSameLabelOnDifferentDatesDoesNotConflict(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGormComplaintRepository(gdb, NewGormReservationLedger(gdb))
	ctx := context.Background()

	require.NoError(t, repo.CreateWithReservation(ctx, newComplaint("a@campus.edu", models.PriorityNormal, "2025-03-12", "10-11 AM")))
	require.NoError(t, repo.CreateWithReservation(ctx, newComplaint("b@campus.edu", models.PriorityNormal, "2025-03-13", "10-11 AM")))
	require.NoError(t, repo.CreateWithReservation(ctx, newComplaint("c@campus.edu", models.PriorityNormal, "2025-03-12", "11-12 AM")))
}

func TestDeleteReleasesSlot(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewGormComplaintRepository(gdb, NewGormReservationLedger(gdb))
	ctx := context.Background()

	first := newComplaint("a@campus.edu", models.PriorityNormal, "2025-03-12", "10-11 AM")
	require.NoError(t, repo.CreateWithReservation(ctx, first))

	err := repo.CreateWithReservation(ctx, newComplaint("b@campus.edu", models.PriorityNormal, "2025-03-12", "10-11 AM"))
	require.ErrorIs(t, err, ErrSlotTaken)

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.NoError(t, repo.CreateWithReservation(ctx, newComplaint("b@campus.edu", models.PriorityNormal, "2025-03-12", "10-11 AM")))

	assert.ErrorIs(t, repo.Delete(ctx, first.ID), ErrComplaintNotFound)
}
