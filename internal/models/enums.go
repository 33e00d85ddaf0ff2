package models

// Priority is a complaint urgency tier. High/Medium/Low come from the lexicon
// classifier; High/Normal come from the urgency classifier used for scheduling.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
)

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusAssigned   Status = "Assigned"
	StatusResolved   Status = "Resolved"
	StatusReopened   Status = "Reopened"
)

// IsValidStatus reports whether s names a lifecycle state.
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusAssigned, StatusResolved, StatusReopened:
		return true
	}
	return false
}

// Role is the caller's role as supplied by the identity provider.
type Role string

const (
	RoleStudent     Role = "student"
	RoleStaff       Role = "staff"
	RoleSupervisor  Role = "supervisor"
	RoleMaintenance Role = "maintenance"
	RoleAdmin       Role = "admin"
)

// IsValidRole reports whether s names a known role.
func IsValidRole(s string) bool {
	switch Role(s) {
	case RoleStudent, RoleStaff, RoleSupervisor, RoleMaintenance, RoleAdmin:
		return true
	}
	return false
}

// IsSubmitterRole reports whether r may file complaints.
func (r Role) IsSubmitterRole() bool {
	return r == RoleStudent || r == RoleStaff
}

// Category is a complaint category. The accepted set is configuration.
type Category string

// Actor is the identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}
