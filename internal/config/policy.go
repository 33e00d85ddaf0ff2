// Package config loads the triage policy: categories, slot catalog, intake
// windows, eligibility day counts and classifier vocabularies.
//
// The policy is configuration the triage core consumes; nothing here is
// computed. A missing file yields DefaultPolicy.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/internal/priority"
	"github.com/facility_triage/internal/schedule"
	"gopkg.in/yaml.v3"
)

const defaultPolicyYAML = `# facility triage policy
version: 1
timezone: Local

categories: [Electrical, Plumbing, Cleaning, Security, Internet, Parking, Vehicle, Other]
staff_only_categories: [Furniture, Lab Equipment, Office IT]

# Which submitter roles must book a slot ("required") or may not ("none").
slot_requirement:
  student: required
  staff: none

slots: ["8-9 AM", "9-10 AM", "10-11 AM", "11-12 PM", "12-1 PM", "1-2 PM", "2-3 PM", "3-4 PM", "4-5 PM", "5-6 PM", "6-7 PM"]

# Normal-priority intake windows, half-open [start, end).
intake_windows:
  - {start: "08:00", end: "10:00"}
  - {start: "13:00", end: "15:00"}
  - {start: "18:00", end: "20:00"}

eligibility_days:
  normal: 6
  high: 49

lexicon:
  high: [fire, smoke, sparking, short circuit, electric shock, gas leak, flooding, collapsed, exposed wire]
  medium: [leak, leaking, broken, not working, blocked, clogged, no water, power cut, overflow]
  low: [dusty, paint, noise, slow, squeaky, flickering]

urgency_keywords: [fire, smoke, spark, shock, gas, flood, hazard, danger, injury, emergency, urgent, immediately, asap, critical]
`

// SlotRequirement says whether a submitter role books a slot.
type SlotRequirement string

const (
	SlotRequired SlotRequirement = "required"
	SlotNone     SlotRequirement = "none"
)

// WindowSpec is an intake window as written in YAML ("HH:MM").
type WindowSpec struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// EligibilityDays holds the per-priority booking horizon.
type EligibilityDays struct {
	Normal int `yaml:"normal"`
	High   int `yaml:"high"`
}

// Policy models the policy YAML file.
type Policy struct {
	Version             int                             `yaml:"version"`
	Timezone            string                          `yaml:"timezone"`
	Categories          []string                        `yaml:"categories"`
	StaffOnlyCategories []string                        `yaml:"staff_only_categories"`
	SlotRequirement     map[models.Role]SlotRequirement `yaml:"slot_requirement"`
	Slots               []string                        `yaml:"slots"`
	IntakeWindows       []WindowSpec                    `yaml:"intake_windows"`
	EligibilityDays     EligibilityDays                 `yaml:"eligibility_days"`
	Lexicon             priority.Lexicon                `yaml:"lexicon"`
	UrgencyKeywords     []string                        `yaml:"urgency_keywords"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	var p Policy
	if err := yaml.Unmarshal([]byte(defaultPolicyYAML), &p); err != nil {
		panic(fmt.Sprintf("config: built-in policy is invalid: %v", err))
	}
	return p
}

// LoadPolicy reads path over the defaults. Keys absent from the file keep
// their default values. An empty path or a missing file returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return Policy{}, fmt.Errorf("config: read policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("config: parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the parts of the policy that cannot be caught by the
// schedule package itself.
func (p Policy) Validate() error {
	if len(p.Categories) == 0 {
		return errors.New("config: at least one category is required")
	}
	for role, req := range p.SlotRequirement {
		if !models.IsValidRole(string(role)) || !role.IsSubmitterRole() {
			return fmt.Errorf("config: slot_requirement for unknown submitter role %q", role)
		}
		if req != SlotRequired && req != SlotNone {
			return fmt.Errorf("config: slot_requirement %q for %s must be required or none", req, role)
		}
	}
	if _, err := p.Location(); err != nil {
		return err
	}
	if _, err := p.Windows(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; "" and "Local" mean the process zone.
func (p Policy) Location() (*time.Location, error) {
	if p.Timezone == "" || p.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// Windows converts the YAML intake windows.
func (p Policy) Windows() ([]schedule.Window, error) {
	out := make([]schedule.Window, 0, len(p.IntakeWindows))
	for _, w := range p.IntakeWindows {
		start, err := parseClock(w.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(w.End)
		if err != nil {
			return nil, err
		}
		out = append(out, schedule.Window{Start: start, End: end})
	}
	return out, nil
}

// "24:00" is accepted as an end-of-day bound.
func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("config: clock time %q must be HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// SchedulePolicy builds the eligibility policy.
func (p Policy) SchedulePolicy() (*schedule.Policy, error) {
	loc, err := p.Location()
	if err != nil {
		return nil, err
	}
	windows, err := p.Windows()
	if err != nil {
		return nil, err
	}
	return schedule.NewPolicy(schedule.PolicyConfig{
		SlotLabels:    p.Slots,
		IntakeWindows: windows,
		NormalDays:    p.EligibilityDays.Normal,
		HighDays:      p.EligibilityDays.High,
		Location:      loc,
	})
}

// RequiresSlot reports whether role must book a slot. Unlisted roles do not.
func (p Policy) RequiresSlot(role models.Role) bool {
	return p.SlotRequirement[role] == SlotRequired
}

// CategoryAllowed reports whether role may file under category.
func (p Policy) CategoryAllowed(category string, role models.Role) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	if role != models.RoleStaff {
		return false
	}
	for _, c := range p.StaffOnlyCategories {
		if c == category {
			return true
		}
	}
	return false
}

// KnownCategory reports whether category is in either enumerated set.
func (p Policy) KnownCategory(category string) bool {
	return p.CategoryAllowed(category, models.RoleStaff)
}
