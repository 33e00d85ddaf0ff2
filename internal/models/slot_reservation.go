package models

import "time"

// SlotReservation is the uniqueness-constrained projection (slot_date,
// slot_label) -> complaint used to prevent double booking of Normal-priority
// complaints. High-priority complaints never write a row here.
type SlotReservation struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SlotDate    string    `json:"slotDate" gorm:"column:slot_date;not null;size:10;uniqueIndex:idx_slot_reservation_date_label"`
	SlotLabel   string    `json:"slotLabel" gorm:"column:slot_label;not null;size:50;uniqueIndex:idx_slot_reservation_date_label"`
	ComplaintID string    `json:"complaintId" gorm:"column:complaint_id;not null;size:36;uniqueIndex"`
	CreatedAt   time.Time `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for the SlotReservation model
func (SlotReservation) TableName() string {
	return "slot_reservations"
}
