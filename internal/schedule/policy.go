package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/models"
)

// DateLayout is the wire and storage format of slot dates.
const DateLayout = "2006-01-02"

// Rejections produced by Check. Each names the failing rule.
var (
	ErrUnknownSlot        = domainerr.New(domainerr.ErrValidation, "unknown_slot", "slot label is not part of the service-day catalog")
	ErrInvalidSlotDate    = domainerr.New(domainerr.ErrValidation, "invalid_slot_date", "slot date must use YYYY-MM-DD")
	ErrDateOutOfRange     = domainerr.New(domainerr.ErrOutOfEligibilityWindow, "date_out_of_range", "slot date is outside the eligible date range")
	ErrIntakeWindowClosed = domainerr.New(domainerr.ErrOutOfEligibilityWindow, "intake_window_closed", "normal-priority requests are only accepted during service intake windows")
)

// Window is a half-open clock-time interval [Start, End) measured from midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
}

func (w Window) contains(offset time.Duration) bool {
	return offset >= w.Start && offset < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", clock(w.Start), clock(w.End))
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// Slot is a requested (date, label) pair.
type Slot struct {
	Date  string
	Label string
}

// Policy combines the catalog with submission-time gating and per-priority
// date ranges.
type Policy struct {
	catalog    Catalog
	windows    []Window
	normalDays int
	highDays   int
	loc        *time.Location
}

// PolicyConfig carries the constants a Policy is built from.
type PolicyConfig struct {
	SlotLabels    []string
	IntakeWindows []Window
	NormalDays    int
	HighDays      int
	Location      *time.Location
}

// NewPolicy validates cfg. Intake windows must be non-empty intervals inside
// one day and must not overlap.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	catalog, err := NewCatalog(cfg.SlotLabels)
	if err != nil {
		return nil, err
	}
	if cfg.NormalDays < 0 || cfg.HighDays < 0 {
		return nil, errors.New("schedule: eligibility day counts must not be negative")
	}
	windows := append([]Window(nil), cfg.IntakeWindows...)
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
	for i, w := range windows {
		if w.Start < 0 || w.End > 24*time.Hour || w.Start >= w.End {
			return nil, fmt.Errorf("schedule: invalid intake window %s", w)
		}
		if i > 0 && windows[i-1].End > w.Start {
			return nil, fmt.Errorf("schedule: intake windows %s and %s overlap", windows[i-1], w)
		}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Policy{catalog: catalog, windows: windows, normalDays: cfg.NormalDays, highDays: cfg.HighDays, loc: loc}, nil
}

// Catalog returns the slot grid.
func (p *Policy) Catalog() Catalog { return p.catalog }

// Location returns the time zone all clock and date rules are evaluated in.
func (p *Policy) Location() *time.Location { return p.loc }

// IntakeWindows returns the configured windows in start order.
func (p *Policy) IntakeWindows() []Window { return append([]Window(nil), p.windows...) }

// AllowedSubmissionWindow reports whether now falls in an intake window.
// It applies to Normal-priority submissions only; callers skip it for High.
func (p *Policy) AllowedSubmissionWindow(now time.Time) bool {
	local := now.In(p.loc)
	offset := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	for _, w := range p.windows {
		if w.contains(offset) {
			return true
		}
	}
	return false
}

// EligibleDateRange returns the inclusive [min, max] calendar dates a
// complaint of the given scheduling priority may book, counted from today.
func (p *Policy) EligibleDateRange(priority models.Priority, today time.Time) (time.Time, time.Time) {
	start := p.Day(today)
	days := p.normalDays
	if priority == models.PriorityHigh {
		days = p.highDays
	}
	return start, start.AddDate(0, 0, days)
}

// Day truncates t to midnight in the policy time zone.
func (p *Policy) Day(t time.Time) time.Time {
	local := t.In(p.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
}

// ParseDate parses a slot date in the policy time zone.
func (p *Policy) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, p.loc)
	if err != nil {
		return time.Time{}, ErrInvalidSlotDate
	}
	return d, nil
}

// Check validates a requested slot for priority at time now. High requests
// skip the intake-window gate. The returned errors wrap the package
// rejections so errors.Is works on both the rule and its kind.
func (p *Policy) Check(slot Slot, priority models.Priority, now time.Time) error {
	if !p.catalog.Contains(slot.Label) {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot.Label)
	}
	date, err := p.ParseDate(slot.Date)
	if err != nil {
		return fmt.Errorf("%w: %q", err, slot.Date)
	}
	if priority != models.PriorityHigh && !p.AllowedSubmissionWindow(now) {
		return fmt.Errorf("%w (open: %s)", ErrIntakeWindowClosed, p.describeWindows())
	}
	lo, hi := p.EligibleDateRange(priority, now)
	if date.Before(lo) || date.After(hi) {
		return fmt.Errorf("%w (eligible %s to %s)", ErrDateOutOfRange, lo.Format(DateLayout), hi.Format(DateLayout))
	}
	return nil
}

func (p *Policy) describeWindows() string {
	if len(p.windows) == 0 {
		return "none"
	}
	s := ""
	for i, w := range p.windows {
		if i > 0 {
			s += ", "
		}
		s += w.String()
	}
	return s
}
