package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/facility_triage/internal/config"
	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/feed"
	"github.com/facility_triage/internal/lifecycle"
	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/internal/priority"
	"github.com/facility_triage/internal/repositories"
	"github.com/facility_triage/internal/schedule"
	"github.com/google/uuid"
)

const (
	maxSubjectLength  = 200
	backgroundTimeout = 10 * time.Second
)

// Submission rejections. Each names the rule that failed.
var (
	ErrSubmitterRole      = domainerr.New(domainerr.ErrForbidden, "submitter_role", "only students and staff can file complaints")
	ErrMissingSubject     = domainerr.New(domainerr.ErrValidation, "missing_subject", "subject is required")
	ErrSubjectTooLong     = domainerr.Newf(domainerr.ErrValidation, "subject_too_long", "subject must be at most %d characters", maxSubjectLength)
	ErrMissingDescription = domainerr.New(domainerr.ErrValidation, "missing_description", "description is required")
	ErrMissingCategory    = domainerr.New(domainerr.ErrValidation, "missing_category", "category is required")
	ErrUnknownCategory    = domainerr.New(domainerr.ErrValidation, "unknown_category", "category is not one of the configured categories")
	ErrCategoryNotAllowed = domainerr.New(domainerr.ErrValidation, "category_not_allowed", "this category is reserved for staff")
	ErrMissingSlot        = domainerr.New(domainerr.ErrValidation, "missing_slot", "a slot date and label are required")
	ErrSlotNotAccepted    = domainerr.New(domainerr.ErrValidation, "slot_not_accepted", "slot booking is not available for this role")
	ErrMissingAssignee    = domainerr.New(domainerr.ErrValidation, "missing_assignee", "an assignee is required")
	ErrUseAssign          = domainerr.New(domainerr.ErrValidation, "assignee_required", "moving to Assigned requires an assignee; use the assign operation")
	ErrInvalidStatus      = domainerr.New(domainerr.ErrValidation, "invalid_status", "unknown status")
	ErrInvalidPriority    = domainerr.New(domainerr.ErrValidation, "invalid_priority", "priority must be High or Normal")
	ErrDeleteAdminOnly    = domainerr.New(domainerr.ErrForbidden, "admin_only", "only administrators can delete complaints")
)

// SubmitRequest carries the caller's complaint fields.
type SubmitRequest struct {
	Subject       string
	Description   string
	Category      string
	Location      *string
	AttachmentURL *string
	SlotDate      string
	SlotLabel     string
}

// AssignRequest hands a complaint to a maintenance worker, optionally under
// a supervisor.
type AssignRequest struct {
	AssignedTo string
	Supervisor string
	Note       string
}

// ComplaintQuery filters List.
type ComplaintQuery struct {
	Status     string
	Category   string
	AssignedTo string
	Priority   string
	SlotDate   string
	Mine       bool
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// SlotAvailability is one catalog slot on a date.
type SlotAvailability struct {
	Label        string `json:"label"`
	Booked       bool   `json:"booked"`
	HighBookings int64  `json:"highBookings"`
	Eligible     bool   `json:"eligible"`
	Reason       string `json:"reason,omitempty"`
}

// Availability lists the slots of one date as seen by one priority.
type Availability struct {
	Date            string             `json:"date"`
	Priority        models.Priority    `json:"priority"`
	IntakeOpen      bool               `json:"intakeOpen"`
	EligibleFrom    string             `json:"eligibleFrom"`
	EligibleThrough string             `json:"eligibleThrough"`
	Slots           []SlotAvailability `json:"slots"`
}

// TriageService is the entry point for every complaint operation. The actor
// is always passed explicitly.
type TriageService interface {
	// Submit classifies, checks eligibility, reserves and persists a new
	// complaint as one atomic unit.
	Submit(ctx context.Context, actor models.Actor, req SubmitRequest) (*models.Complaint, error)
	Transition(ctx context.Context, actor models.Actor, id string, target models.Status, note string) (*models.Complaint, error)
	Reopen(ctx context.Context, actor models.Actor, id, note string) (*models.Complaint, error)
	Assign(ctx context.Context, actor models.Actor, id string, req AssignRequest) (*models.Complaint, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error)
	List(ctx context.Context, actor models.Actor, q ComplaintQuery) ([]models.Complaint, int64, error)
	History(ctx context.Context, actor models.Actor, id string) ([]models.ComplaintStatusHistory, error)
	Availability(ctx context.Context, actor models.Actor, date string, p models.Priority) (*Availability, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	// AllowedTransitions lists the statuses actor may move c to.
	AllowedTransitions(c *models.Complaint, actor models.Actor) []models.Status
	// Wait blocks until background notifications have finished.
	Wait()
}

type triageService struct {
	repo       repositories.ComplaintRepository
	ledger     repositories.ReservationLedger
	policy     config.Policy
	schedule   *schedule.Policy
	classifier *priority.Classifier
	publisher  feed.Publisher
	notifier   Notifier
	now        func() time.Time
	bg         sync.WaitGroup
}

// NewTriageService wires the coordinator. publisher and notifier may be nil.
func NewTriageService(repo repositories.ComplaintRepository, ledger repositories.ReservationLedger, policy config.Policy, publisher feed.Publisher, notifier Notifier) (TriageService, error) {
	sched, err := policy.SchedulePolicy()
	if err != nil {
		return nil, fmt.Errorf("build schedule policy: %w", err)
	}
	if publisher == nil {
		publisher = feed.NopPublisher{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &triageService{
		repo:       repo,
		ledger:     ledger,
		policy:     policy,
		schedule:   sched,
		classifier: priority.NewClassifier(policy.Lexicon),
		publisher:  publisher,
		notifier:   notifier,
		now:        time.Now,
	}, nil
}

func (s *triageService) Submit(ctx context.Context, actor models.Actor, req SubmitRequest) (*models.Complaint, error) {
	if !actor.Role.IsSubmitterRole() || actor.ID == "" {
		return nil, ErrSubmitterRole
	}
	subject := strings.TrimSpace(req.Subject)
	description := strings.TrimSpace(req.Description)
	category := strings.TrimSpace(req.Category)
	switch {
	case subject == "":
		return nil, ErrMissingSubject
	case len([]rune(subject)) > maxSubjectLength:
		return nil, ErrSubjectTooLong
	case description == "":
		return nil, ErrMissingDescription
	case category == "":
		return nil, ErrMissingCategory
	case !s.policy.KnownCategory(category):
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	case !s.policy.CategoryAllowed(category, actor.Role):
		return nil, fmt.Errorf("%w: %q", ErrCategoryNotAllowed, category)
	}

	now := s.now()
	complaint := &models.Complaint{
		ID:                 uuid.NewString(),
		Subject:            subject,
		Description:        description,
		Category:           models.Category(category),
		Location:           trimmed(req.Location),
		AttachmentURL:      trimmed(req.AttachmentURL),
		SubmitterID:        actor.ID,
		SubmitterRole:      actor.Role,
		Priority:           s.classifier.Classify(description),
		SchedulingPriority: priority.ClassifyUrgency(description, s.policy.UrgencyKeywords),
		Status:             models.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	date := strings.TrimSpace(req.SlotDate)
	label := strings.TrimSpace(req.SlotLabel)
	if s.policy.RequiresSlot(actor.Role) {
		if date == "" || label == "" {
			return nil, ErrMissingSlot
		}
		slot := schedule.Slot{Date: date, Label: label}
		if err := s.schedule.Check(slot, complaint.SchedulingPriority, now); err != nil {
			return nil, err
		}
		complaint.SlotDate = &date
		complaint.SlotLabel = &label
	} else if date != "" || label != "" {
		return nil, ErrSlotNotAccepted
	}

	if err := s.repo.CreateWithReservation(ctx, complaint); err != nil {
		return nil, storeErr("create complaint", err)
	}
	log.Printf("INFO: complaint %s created by %s (priority %s, scheduling %s)",
		complaint.ID, actor.ID, complaint.Priority, complaint.SchedulingPriority)

	s.publish(feed.NewComplaintEvent(feed.EventCreated, complaint, actor.ID, now))
	s.notify(Notification{
		UserID:      actor.ID,
		Role:        string(actor.Role),
		Title:       "Complaint received",
		Message:     receivedMessage(complaint),
		ComplaintID: complaint.ID,
	})
	if complaint.SchedulingPriority == models.PriorityHigh {
		s.notify(Notification{
			Role:        string(models.RoleStaff),
			Title:       "High-priority complaint",
			Message:     fmt.Sprintf("%s: %s", complaint.Category, complaint.Subject),
			ComplaintID: complaint.ID,
		})
	}
	return complaint, nil
}

func (s *triageService) Transition(ctx context.Context, actor models.Actor, id string, target models.Status, note string) (*models.Complaint, error) {
	if !models.IsValidStatus(string(target)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if target == models.StatusAssigned {
		return nil, ErrUseAssign
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("load complaint", err)
	}
	now := s.now()
	ch, err := lifecycle.Apply(current, lifecycle.Request{Actor: actor, Target: target, Note: note, Now: now})
	if err != nil {
		return nil, err
	}
	upd := repositories.StatusUpdate{
		From:         ch.From,
		To:           ch.To,
		ReopenedAt:   ch.ReopenedAt,
		ReopenedNote: ch.ReopenedNote,
		UpdatedAt:    now,
		Actor:        actor,
		Note:         optional(note),
	}
	return s.applyStatus(ctx, current, actor, upd)
}

func (s *triageService) Reopen(ctx context.Context, actor models.Actor, id, note string) (*models.Complaint, error) {
	return s.Transition(ctx, actor, id, models.StatusReopened, note)
}

func (s *triageService) Assign(ctx context.Context, actor models.Actor, id string, req AssignRequest) (*models.Complaint, error) {
	assignee := strings.TrimSpace(req.AssignedTo)
	if assignee == "" {
		return nil, ErrMissingAssignee
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("load complaint", err)
	}

	now := s.now()
	from, to := current.Status, models.StatusAssigned
	if current.Status == models.StatusAssigned {
		// Reassignment keeps the status; only the people change.
		if err := lifecycle.Authorize(current, actor); err != nil {
			return nil, err
		}
	} else {
		ch, err := lifecycle.Apply(current, lifecycle.Request{Actor: actor, Target: models.StatusAssigned, Now: now})
		if err != nil {
			return nil, err
		}
		from, to = ch.From, ch.To
	}

	supervisor := strings.TrimSpace(req.Supervisor)
	if supervisor == "" && actor.Role == models.RoleSupervisor {
		supervisor = actor.ID
	}
	upd := repositories.StatusUpdate{
		From:       from,
		To:         to,
		AssignedTo: &assignee,
		UpdatedAt:  now,
		Actor:      actor,
		Note:       optional(req.Note),
	}
	if supervisor != "" {
		upd.AssignedSupervisor = &supervisor
	}
	updated, err := s.applyStatus(ctx, current, actor, upd)
	if err != nil {
		return nil, err
	}
	s.notify(Notification{
		UserID:      assignee,
		Role:        string(models.RoleMaintenance),
		Title:       "Complaint assigned to you",
		Message:     fmt.Sprintf("%s: %s%s", updated.Category, updated.Subject, slotSuffix(updated)),
		ComplaintID: updated.ID,
	})
	return updated, nil
}

// applyStatus persists upd and emits the follow-up events.
func (s *triageService) applyStatus(ctx context.Context, current *models.Complaint, actor models.Actor, upd repositories.StatusUpdate) (*models.Complaint, error) {
	updated, err := s.repo.ApplyStatus(ctx, current.ID, upd)
	if err != nil {
		return nil, storeErr("update complaint status", err)
	}
	log.Printf("INFO: complaint %s %s -> %s by %s", updated.ID, upd.From, upd.To, actor.ID)

	ev := feed.NewComplaintEvent(feed.EventStatusChanged, updated, actor.ID, upd.UpdatedAt)
	ev.FromStatus = upd.From
	s.publish(ev)

	if upd.From != upd.To && actor.ID != updated.SubmitterID {
		s.notify(Notification{
			UserID:      updated.SubmitterID,
			Role:        string(updated.SubmitterRole),
			Title:       "Complaint status updated",
			Message:     fmt.Sprintf("Your complaint %q is now %s.", updated.Subject, updated.Status),
			ComplaintID: updated.ID,
		})
	}
	if upd.To == models.StatusReopened {
		n := Notification{
			Role:        string(models.RoleStaff),
			Title:       "Complaint reopened",
			Message:     fmt.Sprintf("%q was reopened: %s", updated.Subject, deref(updated.ReopenedNote)),
			ComplaintID: updated.ID,
		}
		if updated.AssignedTo != nil && *updated.AssignedTo != "" {
			n.UserID = *updated.AssignedTo
			n.Role = string(models.RoleMaintenance)
		}
		s.notify(n)
	}
	return updated, nil
}

func (s *triageService) Get(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("load complaint", err)
	}
	if !canView(c, actor) {
		// Hidden complaints look missing rather than forbidden.
		return nil, repositories.ErrComplaintNotFound
	}
	return c, nil
}

func (s *triageService) List(ctx context.Context, actor models.Actor, q ComplaintQuery) ([]models.Complaint, int64, error) {
	if q.Status != "" && !models.IsValidStatus(q.Status) {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, q.Status)
	}
	filter := repositories.ComplaintFilter{
		Status:     models.Status(q.Status),
		Category:   models.Category(q.Category),
		AssignedTo: q.AssignedTo,
		Priority:   models.Priority(q.Priority),
		SlotDate:   q.SlotDate,
		Page:       q.Page,
		Limit:      q.Limit,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
	}
	if q.Mine || !lifecycle.IsPrivileged(actor.Role) {
		filter.SubmitterID = actor.ID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, storeErr("list complaints", err)
	}
	return items, total, nil
}

func (s *triageService) History(ctx context.Context, actor models.Actor, id string) ([]models.ComplaintStatusHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, storeErr("load history", err)
	}
	return rows, nil
}

func (s *triageService) Availability(ctx context.Context, actor models.Actor, date string, p models.Priority) (*Availability, error) {
	if p == "" {
		p = models.PriorityNormal
	}
	if p != models.PriorityHigh && p != models.PriorityNormal {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}
	if _, err := s.schedule.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %q", err, date)
	}
	booked, err := s.ledger.Occupancy(ctx, date)
	if err != nil {
		return nil, storeErr("load occupancy", err)
	}
	high, err := s.ledger.HighBookings(ctx, date)
	if err != nil {
		return nil, storeErr("load occupancy", err)
	}

	now := s.now()
	lo, hi := s.schedule.EligibleDateRange(p, now)
	out := &Availability{
		Date:            date,
		Priority:        p,
		IntakeOpen:      p == models.PriorityHigh || s.schedule.AllowedSubmissionWindow(now),
		EligibleFrom:    lo.Format(schedule.DateLayout),
		EligibleThrough: hi.Format(schedule.DateLayout),
	}
	for _, label := range s.schedule.Catalog().Labels() {
		sa := SlotAvailability{Label: label, HighBookings: high[label]}
		_, sa.Booked = booked[label]
		err := s.schedule.Check(schedule.Slot{Date: date, Label: label}, p, now)
		switch {
		case err != nil:
			sa.Reason = domainerr.Rule(err)
		case sa.Booked && p != models.PriorityHigh:
			sa.Reason = domainerr.Rule(repositories.ErrSlotTaken)
		default:
			sa.Eligible = true
		}
		out.Slots = append(out.Slots, sa)
	}
	return out, nil
}

func (s *triageService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if actor.Role != models.RoleAdmin {
		return ErrDeleteAdminOnly
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr("delete complaint", err)
	}
	log.Printf("INFO: complaint %s deleted by %s", id, actor.ID)
	s.publish(feed.Event{Type: feed.EventDeleted, ComplaintID: id, ActorID: actor.ID, At: s.now()})
	return nil
}

func (s *triageService) AllowedTransitions(c *models.Complaint, actor models.Actor) []models.Status {
	return lifecycle.Allowed(c, actor)
}

func (s *triageService) Wait() { s.bg.Wait() }

// publish and notify run after commit on their own goroutine. Failures are
// logged and never reach the caller.
func (s *triageService) publish(ev feed.Event) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			log.Printf("WARN: failed to publish %s for complaint %s: %v", ev.Type, ev.ComplaintID, err)
		}
	}()
}

func (s *triageService) notify(n Notification) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, n); err != nil {
			log.Printf("WARN: failed to notify %q about complaint %s: %v", n.UserID, n.ComplaintID, err)
		}
	}()
}

// storeErr passes rule errors and cancellation through and wraps everything
// else as a persistence failure.
func storeErr(op string, err error) error {
	var re *domainerr.RuleError
	if errors.As(err, &re) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domainerr.Persistence(op, err)
}

func canView(c *models.Complaint, actor models.Actor) bool {
	return c.SubmitterID == actor.ID || lifecycle.IsPrivileged(actor.Role)
}

func receivedMessage(c *models.Complaint) string {
	return fmt.Sprintf("We received your complaint %q (priority %s).%s", c.Subject, c.Priority, slotSuffix(c))
}

func slotSuffix(c *models.Complaint) string {
	if !c.HasSlot() {
		return ""
	}
	return fmt.Sprintf(" Visit slot: %s, %s.", *c.SlotDate, *c.SlotLabel)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(*s)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
