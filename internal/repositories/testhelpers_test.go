package repositories

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/facility_triage/internal/models"
	"github.com/facility_triage/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "triage.db"), db.Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func strPtr(s string) *string { return &s }

func newComplaint(submitter string, p models.Priority, date, label string) *models.Complaint {
	c := &models.Complaint{
		Subject:            "Broken light",
		Description:        "The light in room 204 flickers",
		Category:           "Electrical",
		SubmitterID:        submitter,
		SubmitterRole:      models.RoleStudent,
		Priority:           models.PriorityLow,
		SchedulingPriority: p,
		Status:             models.StatusPending,
		CreatedAt:          time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	if date != "" {
		c.SlotDate = strPtr(date)
		c.SlotLabel = strPtr(label)
	}
	return c
}
