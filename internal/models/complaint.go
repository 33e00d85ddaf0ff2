package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Complaint maps to the complaints table.
// Complaints are deleted physically so that a released slot frees its
// reservation row; there is no soft-delete column.
type Complaint struct {
	ID                 string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Subject            string     `json:"subject" gorm:"column:subject;not null;size:200"`
	Description        string     `json:"description" gorm:"column:description;type:text;not null"`
	Category           Category   `json:"category" gorm:"column:category;not null;size:50;index"`
	Location           *string    `json:"location,omitempty" gorm:"column:location;size:255"`
	SubmitterID        string     `json:"submitterId" gorm:"column:submitter_id;not null;size:255;index"`
	SubmitterRole      Role       `json:"submitterRole" gorm:"column:submitter_role;not null;size:20"`
	Priority           Priority   `json:"priority" gorm:"column:priority;not null;size:20;index"`                       // display tier (lexicon)
	SchedulingPriority Priority   `json:"schedulingPriority" gorm:"column:scheduling_priority;not null;size:20"`        // High or Normal
	Status             Status     `json:"status" gorm:"column:status;not null;default:'Pending';size:20;index"`
	SlotDate           *string    `json:"slotDate,omitempty" gorm:"column:slot_date;size:10;index:idx_complaint_slot"` // YYYY-MM-DD
	SlotLabel          *string    `json:"slotLabel,omitempty" gorm:"column:slot_label;size:50;index:idx_complaint_slot"`
	AssignedTo         *string    `json:"assignedTo,omitempty" gorm:"column:assigned_to;size:255;index"`
	AssignedSupervisor *string    `json:"assignedSupervisor,omitempty" gorm:"column:assigned_supervisor;size:255"`
	AttachmentURL      *string    `json:"attachmentUrl,omitempty" gorm:"column:attachment_url;size:1024"`
	ReopenedAt         *time.Time `json:"reopenedAt,omitempty" gorm:"column:reopened_at"`
	ReopenedNote       *string    `json:"reopenedNote,omitempty" gorm:"column:reopened_note;type:text"`
	CreatedAt          time.Time  `json:"createdAt" gorm:"column:created_at;not null;index"`
	UpdatedAt          time.Time  `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for the Complaint model
func (Complaint) TableName() string {
	return "complaints"
}

// BeforeCreate assigns the opaque identifier when the caller left it empty.
func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HasSlot reports whether the complaint holds a time slot.
func (c *Complaint) HasSlot() bool {
	return c.SlotDate != nil && c.SlotLabel != nil
}
