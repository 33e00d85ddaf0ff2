package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/facility_triage/internal/models"
	"gorm.io/gorm"
)

// ComplaintFilter narrows List. Zero-valued fields are ignored.
type ComplaintFilter struct {
	SubmitterID string
	Status      models.Status
	Category    models.Category
	AssignedTo  string
	Priority    models.Priority
	SlotDate    string
	Page        int
	Limit       int
	SortBy      string
	SortOrder   string
}

// StatusUpdate is a compare-and-set write: it applies only while the stored
// status still equals From.
type StatusUpdate struct {
	From               models.Status
	To                 models.Status
	ReopenedAt         *time.Time
	ReopenedNote       *string
	AssignedTo         *string
	AssignedSupervisor *string
	UpdatedAt          time.Time
	Actor              models.Actor
	Note               *string
}

// ComplaintRepository persists complaints, their status history and, through
// the ledger, their slot reservations.
type ComplaintRepository interface {
	// CreateWithReservation inserts the complaint, its ledger entry and the
	// initial history row as one unit.
	CreateWithReservation(ctx context.Context, complaint *models.Complaint) error
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter ComplaintFilter) ([]models.Complaint, int64, error)
	// ApplyStatus writes upd and a history row. ErrStatusChanged is returned
	// when the stored status no longer equals upd.From.
	ApplyStatus(ctx context.Context, id string, upd StatusUpdate) (*models.Complaint, error)
	History(ctx context.Context, id string) ([]models.ComplaintStatusHistory, error)
	// Delete removes the complaint with its reservation and history.
	Delete(ctx context.Context, id string) error
}

type gormComplaintRepository struct {
	db     *gorm.DB
	ledger ReservationLedger
	retry  RetryPolicy
}

// NewGormComplaintRepository creates a ComplaintRepository writing slots
// through ledger.
func NewGormComplaintRepository(db *gorm.DB, ledger ReservationLedger) ComplaintRepository {
	return &gormComplaintRepository{db: db, ledger: ledger, retry: DefaultRetryPolicy}
}

// NewGormComplaintRepositoryWithRetry is NewGormComplaintRepository with a
// custom retry policy.
func NewGormComplaintRepositoryWithRetry(db *gorm.DB, ledger ReservationLedger, retry RetryPolicy) ComplaintRepository {
	return &gormComplaintRepository{db: db, ledger: ledger, retry: retry}
}

func (r *gormComplaintRepository) CreateWithReservation(ctx context.Context, complaint *models.Complaint) error {
	return r.retry.run(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(complaint).Error; err != nil {
				return err
			}
			if complaint.HasSlot() {
				if err := r.ledger.Reserve(tx, complaint.ID, *complaint.SlotDate, *complaint.SlotLabel, complaint.SchedulingPriority); err != nil {
					return err
				}
			}
			history := models.ComplaintStatusHistory{
				ComplaintID: complaint.ID,
				ToStatus:    complaint.Status,
				ActorID:     complaint.SubmitterID,
				ActorRole:   complaint.SubmitterRole,
				ChangedAt:   complaint.CreatedAt,
			}
			return tx.Create(&history).Error
		})
	})
}

func (r *gormComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&complaint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}
	return &complaint, nil
}

func (r *gormComplaintRepository) List(ctx context.Context, f ComplaintFilter) ([]models.Complaint, int64, error) {
	var complaints []models.Complaint
	var totalItems int64

	queryBuilder := r.db.WithContext(ctx).Model(&models.Complaint{})
	if f.SubmitterID != "" {
		queryBuilder = queryBuilder.Where("submitter_id = ?", f.SubmitterID)
	}
	if f.Status != "" {
		queryBuilder = queryBuilder.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		queryBuilder = queryBuilder.Where("category = ?", f.Category)
	}
	if f.AssignedTo != "" {
		queryBuilder = queryBuilder.Where("assigned_to = ?", f.AssignedTo)
	}
	if f.Priority != "" {
		queryBuilder = queryBuilder.Where("priority = ?", f.Priority)
	}
	if f.SlotDate != "" {
		queryBuilder = queryBuilder.Where("slot_date = ?", f.SlotDate)
	}

	if err := queryBuilder.Count(&totalItems).Error; err != nil {
		return nil, 0, err
	}

	allowedSortByFields := map[string]string{
		"createdAt": "created_at",
		"updatedAt": "updated_at",
		"priority":  "priority",
		"status":    "status",
		"slotDate":  "slot_date",
	}
	if dbSortBy, ok := allowedSortByFields[f.SortBy]; ok {
		sortOrder := "asc"
		if strings.ToLower(f.SortOrder) == "desc" {
			sortOrder = "desc"
		}
		queryBuilder = queryBuilder.Order(dbSortBy + " " + sortOrder)
	} else {
		queryBuilder = queryBuilder.Order("created_at desc")
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if err := queryBuilder.Offset((page - 1) * limit).Limit(limit).Find(&complaints).Error; err != nil {
		return nil, 0, err
	}
	return complaints, totalItems, nil
}

func (r *gormComplaintRepository) ApplyStatus(ctx context.Context, id string, upd StatusUpdate) (*models.Complaint, error) {
	var updated models.Complaint
	err := r.retry.run(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			fields := map[string]interface{}{
				"status":     upd.To,
				"updated_at": upd.UpdatedAt,
			}
			if upd.ReopenedAt != nil {
				fields["reopened_at"] = *upd.ReopenedAt
			}
			if upd.ReopenedNote != nil {
				fields["reopened_note"] = *upd.ReopenedNote
			}
			if upd.AssignedTo != nil {
				fields["assigned_to"] = *upd.AssignedTo
			}
			if upd.AssignedSupervisor != nil {
				fields["assigned_supervisor"] = *upd.AssignedSupervisor
			}

			res := tx.Model(&models.Complaint{}).
				Where("id = ? AND status = ?", id, upd.From).
				Updates(fields)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&models.Complaint{}).Where("id = ?", id).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return ErrComplaintNotFound
				}
				return ErrStatusChanged
			}

			from := upd.From
			history := models.ComplaintStatusHistory{
				ComplaintID: id,
				FromStatus:  &from,
				ToStatus:    upd.To,
				ActorID:     upd.Actor.ID,
				ActorRole:   upd.Actor.Role,
				Note:        upd.Note,
				ChangedAt:   upd.UpdatedAt,
			}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}
			return tx.Where("id = ?", id).First(&updated).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *gormComplaintRepository) History(ctx context.Context, id string) ([]models.ComplaintStatusHistory, error) {
	var rows []models.ComplaintStatusHistory
	err := r.db.WithContext(ctx).
		Where("complaint_id = ?", id).
		Order("changed_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormComplaintRepository) Delete(ctx context.Context, id string) error {
	return r.retry.run(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := r.ledger.Release(tx, id); err != nil {
				return err
			}
			if err := tx.Where("complaint_id = ?", id).Delete(&models.ComplaintStatusHistory{}).Error; err != nil {
				return err
			}
			res := tx.Where("id = ?", id).Delete(&models.Complaint{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrComplaintNotFound
			}
			return nil
		})
	})
}
