package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/facility_triage/internal/models"
	"gorm.io/gorm"
)

// ReservationLedger allocates (date, slot) pairs. Normal-priority
// reservations are unique per pair; High-priority ones share slots freely.
type ReservationLedger interface {
	// Reserve records the reservation inside tx, which must be the
	// transaction that inserts the owning complaint.
	Reserve(tx *gorm.DB, complaintID, date, label string, p models.Priority) error
	// Occupancy maps each booked label on date to the complaint holding it.
	// It is a read-only view and never decides a reservation.
	Occupancy(ctx context.Context, date string) (map[string]string, error)
	// HighBookings counts High-priority complaints per label on date.
	HighBookings(ctx context.Context, date string) (map[string]int64, error)
	// Release drops the reservation of complaintID inside tx.
	Release(tx *gorm.DB, complaintID string) error
}

type gormReservationLedger struct {
	db *gorm.DB
}

// NewGormReservationLedger creates a ledger backed by the slot_reservations table.
func NewGormReservationLedger(db *gorm.DB) ReservationLedger {
	return &gormReservationLedger{db: db}
}

// Reserve inserts the row and lets the unique index on (slot_date,
// slot_label) arbitrate. There is no prior lookup: the insert is the check.
func (l *gormReservationLedger) Reserve(tx *gorm.DB, complaintID, date, label string, p models.Priority) error {
	if p == models.PriorityHigh {
		return nil
	}
	row := models.SlotReservation{SlotDate: date, SlotLabel: label, ComplaintID: complaintID}
	if err := tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w (%s, %s)", ErrSlotTaken, date, label)
		}
		return err
	}
	return nil
}

func (l *gormReservationLedger) Occupancy(ctx context.Context, date string) (map[string]string, error) {
	var rows []models.SlotReservation
	if err := l.db.WithContext(ctx).Where("slot_date = ?", date).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.SlotLabel] = r.ComplaintID
	}
	return out, nil
}

func (l *gormReservationLedger) HighBookings(ctx context.Context, date string) (map[string]int64, error) {
	type row struct {
		SlotLabel string
		N         int64
	}
	var rows []row
	err := l.db.WithContext(ctx).Model(&models.Complaint{}).
		Select("slot_label, COUNT(*) AS n").
		Where("slot_date = ? AND scheduling_priority = ?", date, models.PriorityHigh).
		Group("slot_label").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.SlotLabel] = r.N
	}
	return out, nil
}

func (l *gormReservationLedger) Release(tx *gorm.DB, complaintID string) error {
	err := tx.Where("complaint_id = ?", complaintID).Delete(&models.SlotReservation{}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}
