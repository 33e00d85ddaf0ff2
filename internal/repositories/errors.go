package repositories

import (
	"errors"
	"strings"

	"github.com/facility_triage/internal/domainerr"
	"gorm.io/gorm"
)

// ErrRecordNotFound is gorm's not-found error, re-exported for callers.
var ErrRecordNotFound = gorm.ErrRecordNotFound

var (
	ErrComplaintNotFound = domainerr.New(domainerr.ErrNotFound, "complaint_not_found", "complaint not found")
	ErrSlotTaken         = domainerr.New(domainerr.ErrSchedulingConflict, "slot_taken", "the requested time slot is already reserved")
	ErrStatusChanged     = domainerr.New(domainerr.ErrInvalidTransition, "status_changed_concurrently", "the complaint status changed before this update was applied")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailExists   = errors.New("a user with this email already exists")
)

// isUniqueViolation recognises unique-constraint failures from sqlite and
// postgres, translated or not.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// isTransient recognises lock contention and serialization failures that are
// safe to retry because the failed transaction wrote nothing.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"could not serialize access",
		"deadlock detected",
		"sqlstate 40001",
		"sqlstate 40p01",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
