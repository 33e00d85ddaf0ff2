package models

import "time"

// ComplaintStatusHistory maps to the complaint_status_history table,
// one row per applied lifecycle transition (including creation).
type ComplaintStatusHistory struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ComplaintID string    `json:"complaintId" gorm:"column:complaint_id;not null;size:36;index"`
	FromStatus  *Status   `json:"fromStatus,omitempty" gorm:"column:from_status;size:20"` // nil on creation
	ToStatus    Status    `json:"toStatus" gorm:"column:to_status;not null;size:20"`
	ActorID     string    `json:"actorId" gorm:"column:actor_id;not null;size:255"`
	ActorRole   Role      `json:"actorRole" gorm:"column:actor_role;not null;size:20"`
	Note        *string   `json:"note,omitempty" gorm:"column:note;type:text"`
	ChangedAt   time.Time `json:"changedAt" gorm:"column:changed_at;not null"`
}

// TableName specifies the table name for the ComplaintStatusHistory model
func (ComplaintStatusHistory) TableName() string {
	return "complaint_status_history"
}
