package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/facility_triage/internal/config"
	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/feed"
	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/internal/repositories"
	"github.com/facility_triage/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	student      = models.Actor{ID: "ana@campus.edu", Role: models.RoleStudent}
	otherStudent = models.Actor{ID: "ben@campus.edu", Role: models.RoleStudent}
	staffActor   = models.Actor{ID: "desk@campus.edu", Role: models.RoleStaff}
	supervisorA  = models.Actor{ID: "sup1@campus.edu", Role: models.RoleSupervisor}
	supervisorB  = models.Actor{ID: "sup2@campus.edu", Role: models.RoleSupervisor}
	admin        = models.Actor{ID: "root@campus.edu", Role: models.RoleAdmin}

	// 09:30 falls in the 08:00-10:00 intake window.
	inWindow  = time.Date(2025, 9, 10, 9, 30, 0, 0, time.UTC)
	outWindow = time.Date(2025, 9, 10, 11, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev feed.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		out = append(out, m.Title)
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	repo      repositories.ComplaintRepository
	svc       *triageService
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "triage.db"), db.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	policy := config.DefaultPolicy()
	policy.Timezone = "UTC"

	ledger := repositories.NewGormReservationLedger(gdb)
	repo := repositories.NewGormComplaintRepository(gdb, ledger)
	pub := &recordingPublisher{}
	notifier := &recordingNotifier{}
	svc, err := NewTriageService(repo, ledger, policy, pub, notifier)
	require.NoError(t, err)

	ts := svc.(*triageService)
	ts.now = func() time.Time { return now }
	return &fixture{db: gdb, repo: repo, svc: ts, publisher: pub, notifier: notifier}
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func leakRequest(date, label string) SubmitRequest {
	return SubmitRequest{
		Subject:     "Sink",
		Description: "The sink in room 12 is leaking",
		Category:    "Plumbing",
		SlotDate:    date,
		SlotLabel:   label,
	}
}

func TestConcurrentStudentsSameSlotOneConflict(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*models.Complaint, 2)
	errs := make([]error, 2)
	for i, actor := range []models.Actor{student, otherStudent} {
		wg.Add(1)
		go func(i int, actor models.Actor) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Submit(ctx, actor, leakRequest("2025-09-10", "9-10 AM"))
		}(i, actor)
	}
	wg.Wait()
	f.svc.Wait()

	var created *models.Complaint
	var conflict error
	for i := range errs {
		if errs[i] == nil {
			created = results[i]
		} else {
			conflict = errs[i]
		}
	}
	require.NotNil(t, created, "one submission must succeed")
	require.Error(t, conflict, "the other submission must fail")
	assert.ErrorIs(t, conflict, domainerr.ErrSchedulingConflict)
	assert.Equal(t, "slot_taken", domainerr.Rule(conflict))

	assert.Equal(t, "9-10 AM", *created.SlotLabel)
	assert.Equal(t, models.PriorityNormal, created.SchedulingPriority)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, int64(1), f.count(t, &models.Complaint{}))
}

func TestUrgentFireHazardBypassesSlotUniqueness(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()
	slotDate := inWindow.AddDate(0, 0, 40).Format("2006-01-02")

	// A Normal booking already holds the slot.
	date, label := slotDate, "6-7 PM"
	existing := &models.Complaint{
		Subject: "Paint", Description: "Paint peeling", Category: "Other",
		SubmitterID: otherStudent.ID, SubmitterRole: models.RoleStudent,
		Priority: models.PriorityLow, SchedulingPriority: models.PriorityNormal,
		Status: models.StatusPending, SlotDate: &date, SlotLabel: &label, CreatedAt: inWindow,
	}
	require.NoError(t, f.repo.CreateWithReservation(ctx, existing))

	c, err := f.svc.Submit(ctx, student, SubmitRequest{
		Subject:     "Lab",
		Description: "URGENT: fire hazard in lab",
		Category:    "Electrical",
		SlotDate:    slotDate,
		SlotLabel:   "6-7 PM",
	})
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, models.PriorityHigh, c.SchedulingPriority)
	assert.Equal(t, models.PriorityHigh, c.Priority)
	assert.Equal(t, int64(2), f.count(t, &models.Complaint{}))
	assert.Equal(t, int64(1), f.count(t, &models.SlotReservation{}))
	assert.Contains(t, f.notifier.titles(), "High-priority complaint")
}

func TestHighPriorityIgnoresIntakeWindow(t *testing.T) {
	f := newFixture(t, outWindow)
	_, err := f.svc.Submit(context.Background(), student, SubmitRequest{
		Subject: "Smoke", Description: "smoke coming from the socket", Category: "Electrical",
		SlotDate: "2025-09-11", SlotLabel: "8-9 AM",
	})
	assert.NoError(t, err)
	f.svc.Wait()
}

func TestNormalOutsideIntakeWindowCreatesNothing(t *testing.T) {
	f := newFixture(t, outWindow)
	_, err := f.svc.Submit(context.Background(), student, leakRequest("2025-09-11", "9-10 AM"))

	assert.ErrorIs(t, err, domainerr.ErrOutOfEligibilityWindow)
	assert.Equal(t, "intake_window_closed", domainerr.Rule(err))
	assert.Zero(t, f.count(t, &models.Complaint{}))
	assert.Zero(t, f.count(t, &models.SlotReservation{}))
}

func TestNormalDateBeyondRangeRejected(t *testing.T) {
	f := newFixture(t, inWindow)
	_, err := f.svc.Submit(context.Background(), student, leakRequest("2025-09-17", "9-10 AM"))
	assert.ErrorIs(t, err, domainerr.ErrOutOfEligibilityWindow)
	assert.Equal(t, "date_out_of_range", domainerr.Rule(err))

	_, err = f.svc.Submit(context.Background(), student, leakRequest("2025-09-16", "9-10 AM"))
	assert.NoError(t, err)
	f.svc.Wait()
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor models.Actor
		req   SubmitRequest
		kind  error
		rule  string
	}{
		{"missing slot", student, leakRequest("", ""), domainerr.ErrValidation, "missing_slot"},
		{"half a slot", student, leakRequest("2025-09-10", ""), domainerr.ErrValidation, "missing_slot"},
		{"unknown slot", student, leakRequest("2025-09-10", "7-8 AM"), domainerr.ErrValidation, "unknown_slot"},
		{"bad date", student, leakRequest("10/09/2025", "9-10 AM"), domainerr.ErrValidation, "invalid_slot_date"},
		{"missing subject", student, SubmitRequest{Description: "x", Category: "Plumbing"}, domainerr.ErrValidation, "missing_subject"},
		{"missing description", student, SubmitRequest{Subject: "x", Description: "  ", Category: "Plumbing"}, domainerr.ErrValidation, "missing_description"},
		{"missing category", student, SubmitRequest{Subject: "x", Description: "y"}, domainerr.ErrValidation, "missing_category"},
		{"unknown category", student, SubmitRequest{Subject: "x", Description: "y", Category: "Weather"}, domainerr.ErrValidation, "unknown_category"},
		{"staff-only category", student, SubmitRequest{Subject: "x", Description: "y", Category: "Furniture", SlotDate: "2025-09-10", SlotLabel: "9-10 AM"}, domainerr.ErrValidation, "category_not_allowed"},
		{"staff with slot", staffActor, leakRequest("2025-09-10", "9-10 AM"), domainerr.ErrValidation, "slot_not_accepted"},
		{"maintenance cannot submit", models.Actor{ID: "m@campus.edu", Role: models.RoleMaintenance}, leakRequest("", ""), domainerr.ErrForbidden, "submitter_role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.rule, domainerr.Rule(err))
		})
	}
	assert.Zero(t, f.count(t, &models.Complaint{}), "no rejected submission may be persisted")
}

func TestStaffSubmitsWithoutSlot(t *testing.T) {
	f := newFixture(t, outWindow)
	c, err := f.svc.Submit(context.Background(), staffActor, SubmitRequest{
		Subject: "Chair", Description: "Broken chair in office 3", Category: "Furniture",
		Location: strPtr("  Office 3 "),
	})
	require.NoError(t, err)
	f.svc.Wait()

	assert.False(t, c.HasSlot())
	assert.Equal(t, "Office 3", *c.Location)
	assert.Equal(t, models.PriorityMedium, c.Priority)
	assert.Zero(t, f.count(t, &models.SlotReservation{}))
	assert.Equal(t, []string{feed.EventCreated}, f.publisher.types())
}

func TestPendingToResolvedByRole(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()
	c, err := f.svc.Submit(ctx, student, leakRequest("2025-09-10", "9-10 AM"))
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, student, c.ID, models.StatusResolved, "")
	assert.ErrorIs(t, err, domainerr.ErrInvalidTransition)
	got, err := f.svc.Get(ctx, staffActor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status, "rejected transition leaves the complaint unchanged")

	resolved, err := f.svc.Transition(ctx, staffActor, c.ID, models.StatusResolved, "fixed the washer")
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, models.StatusResolved, resolved.Status)
	assert.Equal(t, c.Priority, resolved.Priority)
	assert.Equal(t, *c.SlotLabel, *resolved.SlotLabel)
	assert.Contains(t, f.notifier.titles(), "Complaint status updated")

	hist, err := f.svc.History(ctx, student, c.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "fixed the washer", *hist[1].Note)
}

func TestReopenRules(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()
	c, err := f.svc.Submit(ctx, student, leakRequest("2025-09-10", "9-10 AM"))
	require.NoError(t, err)

	_, err = f.svc.Reopen(ctx, student, c.ID, "still leaking")
	assert.ErrorIs(t, err, domainerr.ErrInvalidTransition, "only resolved complaints reopen")

	_, err = f.svc.Transition(ctx, staffActor, c.ID, models.StatusResolved, "")
	require.NoError(t, err)

	_, err = f.svc.Reopen(ctx, otherStudent, c.ID, "still leaking")
	assert.ErrorIs(t, err, domainerr.ErrInvalidTransition)
	_, err = f.svc.Reopen(ctx, staffActor, c.ID, "still leaking")
	assert.ErrorIs(t, err, domainerr.ErrInvalidTransition)
	_, err = f.svc.Reopen(ctx, student, c.ID, "   ")
	assert.ErrorIs(t, err, domainerr.ErrValidation)

	reopened, err := f.svc.Reopen(ctx, student, c.ID, "still leaking")
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, models.StatusReopened, reopened.Status)
	assert.Equal(t, "still leaking", *reopened.ReopenedNote)
	require.NotNil(t, reopened.ReopenedAt)
	assert.True(t, inWindow.Equal(*reopened.ReopenedAt))
	assert.Contains(t, f.notifier.titles(), "Complaint reopened")
}

func TestAssignAndSupervisorOwnership(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()
	c, err := f.svc.Submit(ctx, student, leakRequest("2025-09-10", "9-10 AM"))
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, supervisorA, c.ID, AssignRequest{})
	assert.ErrorIs(t, err, domainerr.ErrValidation)
	_, err = f.svc.Assign(ctx, student, c.ID, AssignRequest{AssignedTo: "fix@campus.edu"})
	assert.ErrorIs(t, err, domainerr.ErrInvalidTransition)

	assigned, err := f.svc.Assign(ctx, supervisorA, c.ID, AssignRequest{AssignedTo: "fix@campus.edu"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, assigned.Status)
	assert.Equal(t, "fix@campus.edu", *assigned.AssignedTo)
	assert.Equal(t, supervisorA.ID, *assigned.AssignedSupervisor)

	_, err = f.svc.Assign(ctx, supervisorB, c.ID, AssignRequest{AssignedTo: "other@campus.edu"})
	assert.ErrorIs(t, err, domainerr.ErrInvalidTransition)

	reassigned, err := f.svc.Assign(ctx, supervisorA, c.ID, AssignRequest{AssignedTo: "other@campus.edu"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, reassigned.Status)
	assert.Equal(t, "other@campus.edu", *reassigned.AssignedTo)

	_, err = f.svc.Transition(ctx, supervisorA, c.ID, models.StatusAssigned, "")
	assert.Equal(t, "assignee_required", domainerr.Rule(err))
	f.svc.Wait()
	assert.Contains(t, f.notifier.titles(), "Complaint assigned to you")
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t, inWindow)
	f.notifier.err = errors.New("smtp down")

	c, err := f.svc.Submit(context.Background(), student, leakRequest("2025-09-10", "9-10 AM"))
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, int64(1), f.count(t, &models.Complaint{}))
	assert.NotEmpty(t, f.notifier.titles())
	_, err = f.svc.Get(context.Background(), student, c.ID)
	assert.NoError(t, err)
}

func TestPersistenceFailureIsReported(t *testing.T) {
	f := newFixture(t, inWindow)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.svc.Submit(context.Background(), student, leakRequest("2025-09-10", "9-10 AM"))
	assert.ErrorIs(t, err, domainerr.ErrPersistenceFailure)
	assert.NotErrorIs(t, err, domainerr.ErrSchedulingConflict)
}

func TestCancelledSubmissionWritesNothing(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Submit(ctx, student, leakRequest("2025-09-10", "9-10 AM"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.count(t, &models.Complaint{}))
}

func TestVisibilityAndListing(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()
	mine, err := f.svc.Submit(ctx, student, leakRequest("2025-09-10", "9-10 AM"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, otherStudent, leakRequest("2025-09-10", "8-9 AM"))
	require.NoError(t, err)
	f.svc.Wait()

	_, err = f.svc.Get(ctx, otherStudent, mine.ID)
	assert.ErrorIs(t, err, domainerr.ErrNotFound)

	items, total, err := f.svc.List(ctx, student, ComplaintQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, mine.ID, items[0].ID)

	_, total, err = f.svc.List(ctx, staffActor, ComplaintQuery{Status: string(models.StatusPending)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, _, err = f.svc.List(ctx, staffActor, ComplaintQuery{Status: "Closed"})
	assert.ErrorIs(t, err, domainerr.ErrValidation)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, student, leakRequest("2025-09-12", "10-11 AM"))
	require.NoError(t, err)
	f.svc.Wait()

	av, err := f.svc.Availability(ctx, student, "2025-09-12", models.PriorityNormal)
	require.NoError(t, err)
	assert.True(t, av.IntakeOpen)
	assert.Equal(t, "2025-09-16", av.EligibleThrough)
	require.Len(t, av.Slots, 11)
	for _, s := range av.Slots {
		if s.Label == "10-11 AM" {
			assert.True(t, s.Booked)
			assert.False(t, s.Eligible)
			assert.Equal(t, "slot_taken", s.Reason)
		} else {
			assert.True(t, s.Eligible, s.Label)
		}
	}

	av, err = f.svc.Availability(ctx, student, "2025-09-12", models.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-29", av.EligibleThrough)
	for _, s := range av.Slots {
		assert.True(t, s.Eligible, s.Label)
	}

	av, err = f.svc.Availability(ctx, student, "2025-09-30", models.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, "date_out_of_range", av.Slots[0].Reason)

	_, err = f.svc.Availability(ctx, student, "2025-09-12", models.PriorityMedium)
	assert.ErrorIs(t, err, domainerr.ErrValidation)
	_, err = f.svc.Availability(ctx, student, "tomorrow", "")
	assert.ErrorIs(t, err, domainerr.ErrValidation)
}

func TestDeleteReleasesSlotAndIsAdminOnly(t *testing.T) {
	f := newFixture(t, inWindow)
	ctx := context.Background()
	c, err := f.svc.Submit(ctx, student, leakRequest("2025-09-10", "9-10 AM"))
	require.NoError(t, err)

	err = f.svc.Delete(ctx, staffActor, c.ID)
	assert.ErrorIs(t, err, domainerr.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, admin, c.ID))
	_, err = f.svc.Submit(ctx, otherStudent, leakRequest("2025-09-10", "9-10 AM"))
	assert.NoError(t, err)

	err = f.svc.Delete(ctx, admin, c.ID)
	assert.ErrorIs(t, err, domainerr.ErrNotFound)
	f.svc.Wait()
	assert.Contains(t, f.publisher.types(), feed.EventDeleted)
}

func strPtr(s string) *string { return &s }
