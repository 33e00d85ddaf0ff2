// Package lifecycle holds the complaint status transition table and the
// actor rules attached to each edge.
package lifecycle

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/facility_triage/internal/domainerr"
	"github.com/facility_triage/internal/models"
)

var (
	ErrIllegalTransition  = domainerr.New(domainerr.ErrInvalidTransition, "illegal_transition", "target status is not reachable from the current status")
	ErrActorNotPermitted  = domainerr.New(domainerr.ErrInvalidTransition, "actor_not_permitted", "actor may not perform this transition")
	ErrReopenNotResolved  = domainerr.New(domainerr.ErrInvalidTransition, "reopen_requires_resolved", "only resolved complaints can be reopened")
	ErrReopenNotSubmitter = domainerr.New(domainerr.ErrInvalidTransition, "reopen_not_submitter", "only the original submitter can reopen a complaint")
	ErrReopenNoteRequired = domainerr.New(domainerr.ErrValidation, "reopen_note_required", "a note is required to reopen a complaint")
)

// who names the actor rule guarding an edge.
type who int

const (
	privileged who = iota + 1
	originalSubmitter
)

// transitions is the complete edge set. Anything absent is illegal.
var transitions = map[models.Status]map[models.Status]who{
	models.StatusPending: {
		models.StatusInProgress: privileged,
		models.StatusAssigned:   privileged,
		models.StatusResolved:   privileged,
	},
	models.StatusInProgress: {
		models.StatusAssigned: privileged,
		models.StatusResolved: privileged,
	},
	models.StatusAssigned: {
		models.StatusInProgress: privileged,
		models.StatusResolved:   privileged,
	},
	models.StatusResolved: {
		models.StatusReopened: originalSubmitter,
	},
	models.StatusReopened: {
		models.StatusInProgress: privileged,
		models.StatusAssigned:   privileged,
		models.StatusResolved:   privileged,
	},
}

// privilegedRoles may move complaints through triage.
var privilegedRoles = map[models.Role]bool{
	models.RoleStaff:       true,
	models.RoleSupervisor:  true,
	models.RoleMaintenance: true,
	models.RoleAdmin:       true,
}

// IsPrivileged reports whether role handles complaints.
func IsPrivileged(role models.Role) bool { return privilegedRoles[role] }

// Request asks to move a complaint to Target.
type Request struct {
	Actor  models.Actor
	Target models.Status
	Note   string
	Now    time.Time
}

// Change is the result of a permitted transition. Only these fields may be
// written; priority, category and the time slot are never part of a Change.
type Change struct {
	From         models.Status
	To           models.Status
	ReopenedAt   *time.Time
	ReopenedNote *string
}

// Apply evaluates req against c without mutating c.
func Apply(c *models.Complaint, req Request) (Change, error) {
	rule, ok := transitions[c.Status][req.Target]
	if !ok {
		if req.Target == models.StatusReopened {
			return Change{}, fmt.Errorf("%w (current: %s)", ErrReopenNotResolved, c.Status)
		}
		return Change{}, fmt.Errorf("%w (%s -> %s)", ErrIllegalTransition, c.Status, req.Target)
	}
	if err := permit(rule, c, req.Actor); err != nil {
		return Change{}, err
	}

	ch := Change{From: c.Status, To: req.Target}
	if req.Target == models.StatusReopened {
		note := strings.TrimSpace(req.Note)
		if note == "" {
			return Change{}, ErrReopenNoteRequired
		}
		at := req.Now
		ch.ReopenedAt = &at
		ch.ReopenedNote = &note
	}
	return ch, nil
}

func permit(rule who, c *models.Complaint, actor models.Actor) error {
	switch rule {
	case originalSubmitter:
		if actor.ID == "" || actor.ID != c.SubmitterID {
			return ErrReopenNotSubmitter
		}
		return nil
	case privileged:
		if !privilegedRoles[actor.Role] {
			return fmt.Errorf("%w (role %q)", ErrActorNotPermitted, actor.Role)
		}
		// A complaint handed to a supervisor is theirs to move.
		if actor.Role == models.RoleSupervisor && c.AssignedSupervisor != nil &&
			*c.AssignedSupervisor != "" && *c.AssignedSupervisor != actor.ID {
			return fmt.Errorf("%w (assigned to another supervisor)", ErrActorNotPermitted)
		}
		return nil
	}
	return ErrActorNotPermitted
}

// Authorize checks that actor may handle c without changing its status,
// as when reassigning work that is already Assigned.
func Authorize(c *models.Complaint, actor models.Actor) error {
	return permit(privileged, c, actor)
}

// Allowed lists the statuses actor could move c to right now, ignoring the
// reopen note requirement.
func Allowed(c *models.Complaint, actor models.Actor) []models.Status {
	var out []models.Status
	for to, rule := range transitions[c.Status] {
		if permit(rule, c, actor) == nil {
			out = append(out, to)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyTo returns a copy of c with ch applied.
func ApplyTo(c models.Complaint, ch Change) models.Complaint {
	c.Status = ch.To
	if ch.ReopenedAt != nil {
		c.ReopenedAt = ch.ReopenedAt
		c.ReopenedNote = ch.ReopenedNote
	}
	return c
}
